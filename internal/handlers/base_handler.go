package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
)

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Reason           string                    `json:"reason,omitempty"`
	Details          interface{}               `json:"details,omitempty"`
	ValidationErrors services.ValidationErrors `json:"validation_errors,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs through the request scoped logger
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

// parseIDParam returns 0 after writing a 400 when the parameter is not a
// positive integer
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "bad_request", "invalid "+name)
		return 0
	}
	return uint(id)
}

// actorFrom reads the identity set by the auth middleware
func (h *BaseHandler) actorFrom(c *gin.Context) (services.Actor, bool) {
	userID := c.GetString(ContextUserID)
	role, _ := c.Get(ContextUserRole)
	userRole, ok := role.(models.UserRole)
	if userID == "" || !ok {
		h.respondError(c, http.StatusUnauthorized, "unauthorized", "user not authenticated")
		return services.Actor{}, false
	}
	return services.Actor{ID: userID, Role: userRole}, true
}

// bindJSON writes a 400 when the body cannot be decoded
func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "bad_request",
			Message:   "invalid request payload",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
			Path:      c.Request.URL.Path,
		})
		return false
	}
	return true
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

// conflictReasons are refusals caused by the current state of a resource;
// every other policy reason is an unmet precondition of the request.
var conflictReasons = map[services.PolicyReason]bool{
	services.ReasonAttemptConflict:   true,
	services.ReasonAlreadySubmitted:  true,
	services.ReasonAttemptNotActive:  true,
	services.ReasonNotEditable:       true,
	services.ReasonInvalidTransition: true,
}

// handleServiceError maps domain errors to HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	resp := ErrorResponse{
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	}

	var (
		validationErrs services.ValidationErrors
		permissionErr  *services.PermissionError
		policyErr      *services.PolicyViolation
		businessErr    *services.BusinessRuleError
		status         int
	)

	switch {
	case errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		resp.Error = "validation_failed"
		resp.Message = "request validation failed"
		resp.ValidationErrors = validationErrs
	case errors.As(err, &permissionErr):
		status = http.StatusForbidden
		resp.Error = "forbidden"
	case errors.As(err, &policyErr):
		status = http.StatusUnprocessableEntity
		if conflictReasons[policyErr.Reason] {
			status = http.StatusConflict
		}
		resp.Error = "policy_violation"
		resp.Reason = string(policyErr.Reason)
		resp.Message = policyErr.Message
	case errors.As(err, &businessErr):
		status = http.StatusUnprocessableEntity
		resp.Error = "business_rule"
		resp.Reason = businessErr.Rule
		resp.Message = businessErr.Message
		resp.Details = businessErr.Context
	case errors.Is(err, services.ErrAssessmentNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrQuestionBankNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrLessonNotFound):
		status = http.StatusNotFound
		resp.Error = "not_found"
	case errors.Is(err, services.ErrGeneratorUnavailable),
		errors.Is(err, cache.ErrCacheNotAvailable):
		status = http.StatusServiceUnavailable
		resp.Error = "unavailable"
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal_error"
		resp.Message = "internal server error"
		utils.GetLogger(c, h.logger).Error("Unhandled service error", "error", err, "path", c.Request.URL.Path)
	}

	c.AbortWithStatusJSON(status, resp)
}
