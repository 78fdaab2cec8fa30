package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

type AssessmentHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
	deliveryService   services.DeliveryService
	reportService     services.ReportService
}

func NewAssessmentHandler(
	assessmentService services.AssessmentService,
	deliveryService services.DeliveryService,
	reportService services.ReportService,
	logger utils.Logger,
) *AssessmentHandler {
	return &AssessmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: assessmentService,
		deliveryService:   deliveryService,
		reportService:     reportService,
	}
}

type listAssessmentsQuery struct {
	Status    string `form:"status"`
	Kind      string `form:"kind"`
	CourseID  uint   `form:"course_id"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}

func (q listAssessmentsQuery) filters() repositories.AssessmentFilters {
	filters := repositories.AssessmentFilters{
		Limit:     q.Limit,
		Offset:    q.Offset,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.Status != "" {
		status := models.AssessmentStatus(q.Status)
		filters.Status = &status
	}
	if q.Kind != "" {
		kind := models.AssessmentKind(q.Kind)
		filters.Kind = &kind
	}
	if q.CourseID != 0 {
		filters.CourseID = &q.CourseID
	}
	return filters
}

// CreateAssessment creates a draft exam or quiz
// @Summary Create assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param assessment body services.CreateAssessmentRequest true "Assessment definition"
// @Success 201 {object} models.Assessment
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /assessments [post]
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.CreateAssessmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating assessment", "kind", req.Kind, "questions", len(req.Questions))

	assessment, err := h.assessmentService.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assessment)
}

// UpdateAssessment replaces the editable fields of an assessment
// @Summary Update assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path int true "Assessment ID"
// @Param assessment body services.UpdateAssessmentRequest true "Assessment definition"
// @Success 200 {object} models.Assessment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id} [put]
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.UpdateAssessmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating assessment", "assessment_id", id)

	assessment, err := h.assessmentService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// PublishAssessment opens an assessment to students
// @Summary Publish assessment
// @Tags assessments
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /assessments/{id}/publish [post]
func (h *AssessmentHandler) PublishAssessment(c *gin.Context) {
	h.transition(c, "Publishing assessment", h.assessmentService.Publish)
}

// UnpublishAssessment returns an assessment to draft
// @Summary Unpublish assessment
// @Tags assessments
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/unpublish [post]
func (h *AssessmentHandler) UnpublishAssessment(c *gin.Context) {
	h.transition(c, "Unpublishing assessment", h.assessmentService.Unpublish)
}

// ArchiveAssessment closes an assessment for good
// @Summary Archive assessment
// @Tags assessments
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/archive [post]
func (h *AssessmentHandler) ArchiveAssessment(c *gin.Context) {
	h.transition(c, "Archiving assessment", h.assessmentService.Archive)
}

type transitionFunc func(ctx context.Context, actor services.Actor, id uint) (*models.Assessment, error)

func (h *AssessmentHandler) transition(c *gin.Context, msg string, apply transitionFunc) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	h.LogRequest(c, msg, "assessment_id", id)

	assessment, err := apply(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// DeleteAssessment removes an assessment with its questions and attempts
// @Summary Delete assessment
// @Tags assessments
// @Param id path int true "Assessment ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting assessment", "assessment_id", id)

	if err := h.assessmentService.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAssessment returns the full definition to its owner
// @Summary Get full assessment
// @Tags assessments
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.GetFull(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// ListAssessments lists the caller's assessments
// @Summary List assessments
// @Tags assessments
// @Produce json
// @Param status query string false "draft, published or archived"
// @Param kind query string false "exam or quiz"
// @Param course_id query int false "Course ID"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} services.AssessmentListResponse
// @Router /assessments [get]
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var query listAssessmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.respondError(c, http.StatusBadRequest, "bad_request", "invalid query parameters")
		return
	}

	resp, err := h.assessmentService.List(c.Request.Context(), actor, query.filters())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TakeAssessment returns the redacted view a student answers from
// @Summary Get safe assessment
// @Tags delivery
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} services.SafeAssessmentResponse
// @Failure 422 {object} ErrorResponse
// @Router /assessments/{id}/take [get]
func (h *AssessmentHandler) TakeAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	view, err := h.deliveryService.GetSafeAssessment(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetAssessmentStats returns aggregate results of an assessment
// @Summary Assessment statistics
// @Tags reports
// @Produce json
// @Param id path int true "Assessment ID"
// @Success 200 {object} services.AssessmentStatistics
// @Failure 403 {object} ErrorResponse
// @Router /assessments/{id}/stats [get]
func (h *AssessmentHandler) GetAssessmentStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	stats, err := h.reportService.GetStatistics(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportResults streams submitted attempts as a spreadsheet
// @Summary Export results
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Assessment ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Router /assessments/{id}/results/export [get]
func (h *AssessmentHandler) ExportResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting results", "assessment_id", id)

	export, err := h.reportService.ExportResults(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, export.ContentType, export.Content)
}
