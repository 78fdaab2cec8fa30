package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService   services.AttemptService
	integrityService services.IntegrityService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	integrityService services.IntegrityService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:      NewBaseHandler(logger),
		attemptService:   attemptService,
		integrityService: integrityService,
	}
}

// StartAttempt opens a new attempt for the caller
// @Summary Start attempt
// @Tags attempts
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 201 {object} services.StartAttemptResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /assessments/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "assessment_id", assessmentID)

	resp, err := h.attemptService.Start(c.Request.Context(), actor, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SubmitAttempt grades and closes an attempt
// @Summary Submit attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Param answers body services.SubmitAttemptRequest true "Answers"
// @Success 200 {object} services.AttemptResult
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.SubmitAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID, "answers", len(req.Answers))

	result, err := h.attemptService.Submit(c.Request.Context(), actor, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetAttempt returns an attempt report to its student or the assessment owner
// @Summary Attempt report
// @Tags attempts
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.AttemptReportResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	report, err := h.attemptService.GetReport(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if report.Owner != nil {
		c.JSON(http.StatusOK, report.Owner)
		return
	}
	c.JSON(http.StatusOK, report.Result)
}

// ListMyAttempts lists the caller's attempts on one assessment
// @Summary My attempts
// @Tags attempts
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {array} services.AttemptResult
// @Router /assessments/{id}/attempts/me [get]
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	assessmentID := h.parseIDParam(c, "id")
	if assessmentID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	results, err := h.attemptService.ListMine(c.Request.Context(), actor, assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": results})
}

// RecordTabSwitch logs that the student left the exam tab
// @Summary Log tab switch
// @Tags integrity
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.TabSwitchResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts/{id}/integrity/tab-switch [post]
func (h *AttemptHandler) RecordTabSwitch(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	resp, err := h.integrityService.RecordTabSwitch(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
