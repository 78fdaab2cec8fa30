package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

type QuestionBankHandler struct {
	BaseHandler
	service services.QuestionBankService
}

func NewQuestionBankHandler(service services.QuestionBankService, logger utils.Logger) *QuestionBankHandler {
	return &QuestionBankHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== CORE CRUD ENDPOINTS =====

// CreateQuestionBank creates a new question bank
// @Summary Create a question bank
// @Tags question-banks
// @Accept json
// @Produce json
// @Param request body services.QuestionBankRequest true "Question bank"
// @Success 201 {object} models.QuestionBank
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /question-banks [post]
func (h *QuestionBankHandler) CreateQuestionBank(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.QuestionBankRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bank, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bank)
}

// GetQuestionBank returns a bank with its questions
// @Summary Get a question bank
// @Tags question-banks
// @Produce json
// @Param id path int true "Question bank ID"
// @Success 200 {object} models.QuestionBank
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /question-banks/{id} [get]
func (h *QuestionBankHandler) GetQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	bank, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, bank)
}

// ListQuestionBanks lists own and public banks
// @Summary List question banks
// @Tags question-banks
// @Produce json
// @Param name query string false "Name contains"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} services.QuestionBankListResponse
// @Router /question-banks [get]
func (h *QuestionBankHandler) ListQuestionBanks(c *gin.Context) {
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	resp, err := h.service.List(c.Request.Context(), actor, h.parseQuestionBankFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateQuestionBank renames or re-describes a bank
// @Summary Update a question bank
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question bank ID"
// @Param request body services.QuestionBankRequest true "Question bank"
// @Success 200 {object} models.QuestionBank
// @Failure 403 {object} ErrorResponse
// @Router /question-banks/{id} [put]
func (h *QuestionBankHandler) UpdateQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.QuestionBankRequest
	if !h.bindJSON(c, &req) {
		return
	}

	bank, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, bank)
}

// DeleteQuestionBank removes a bank and its questions
// @Summary Delete a question bank
// @Tags question-banks
// @Param id path int true "Question bank ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Router /question-banks/{id} [delete]
func (h *QuestionBankHandler) DeleteQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== QUESTION MANAGEMENT =====

// GetBankQuestions lists the questions of a bank
// @Summary List bank questions
// @Tags question-banks
// @Produce json
// @Param id path int true "Question bank ID"
// @Success 200 {array} models.BankQuestion
// @Router /question-banks/{id}/questions [get]
func (h *QuestionBankHandler) GetBankQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	bank, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": bank.Questions})
}

// AddQuestionsToBank appends authored questions
// @Summary Add questions to a bank
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question bank ID"
// @Param request body services.BankQuestionsRequest true "Questions"
// @Success 201 {array} models.BankQuestion
// @Failure 400 {object} ErrorResponse
// @Router /question-banks/{id}/questions [post]
func (h *QuestionBankHandler) AddQuestionsToBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.BankQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	added, err := h.service.AddQuestions(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": added})
}

// RemoveQuestionFromBank deletes one bank question
// @Summary Remove a bank question
// @Tags question-banks
// @Param id path int true "Question bank ID"
// @Param question_id path int true "Question ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /question-banks/{id}/questions/{question_id} [delete]
func (h *QuestionBankHandler) RemoveQuestionFromBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}

	if err := h.service.RemoveQuestion(c.Request.Context(), actor, id, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateQuestions asks the configured model for draft questions
// @Summary Generate questions
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question bank ID"
// @Param request body services.GenerateQuestionsRequest true "Topic and count"
// @Success 201 {object} services.GenerateQuestionsResponse
// @Failure 422 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /question-banks/{id}/generate [post]
func (h *QuestionBankHandler) GenerateQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.GenerateQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Generating questions", "bank_id", id, "count", req.Count)

	resp, err := h.service.Generate(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ImportIntoAssessment copies bank questions into a draft assessment
// @Summary Import bank questions
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question bank ID"
// @Param assessment_id path int true "Assessment ID"
// @Param request body services.ImportQuestionsRequest false "Question ids, empty for all"
// @Success 200 {object} models.Assessment
// @Failure 409 {object} ErrorResponse
// @Router /question-banks/{id}/import/{assessment_id} [post]
func (h *QuestionBankHandler) ImportIntoAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	assessmentID := h.parseIDParam(c, "assessment_id")
	if assessmentID == 0 {
		return
	}
	actor, ok := h.actorFrom(c)
	if !ok {
		return
	}
	var req services.ImportQuestionsRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Importing bank questions", "bank_id", id, "assessment_id", assessmentID)

	assessment, err := h.service.ImportIntoAssessment(c.Request.Context(), actor, id, assessmentID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// ===== HELPERS =====

func (h *QuestionBankHandler) parseQuestionBankFilters(c *gin.Context) repositories.QuestionBankFilters {
	var query struct {
		Name   string `form:"name"`
		Limit  int    `form:"limit"`
		Offset int    `form:"offset"`
	}
	_ = c.ShouldBindQuery(&query)

	filters := repositories.QuestionBankFilters{Limit: query.Limit, Offset: query.Offset}
	if name := strings.TrimSpace(query.Name); name != "" {
		filters.Name = &name
	}
	return filters
}
