package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// Not found
var (
	ErrAssessmentNotFound   = errors.New("assessment not found")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrQuestionBankNotFound = errors.New("question bank not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrLessonNotFound       = errors.New("lesson not found")
)

// ErrGeneratorUnavailable is returned when no question generator is configured
var ErrGeneratorUnavailable = errors.New("question generator is not configured")

type ValidationErrors = validator.ValidationErrors

// Reason codes carried by PolicyViolation
type PolicyReason string

const (
	ReasonNotPublished        PolicyReason = "not_published"
	ReasonOutsideWindow       PolicyReason = "outside_window"
	ReasonNotEnrolled         PolicyReason = "not_enrolled"
	ReasonRetakeNotAllowed    PolicyReason = "retake_not_allowed"
	ReasonMaxAttemptsReached  PolicyReason = "max_attempts_reached"
	ReasonAttemptConflict     PolicyReason = "attempt_conflict"
	ReasonAlreadySubmitted    PolicyReason = "already_submitted"
	ReasonAttemptNotActive    PolicyReason = "attempt_not_active"
	ReasonNotEditable         PolicyReason = "not_editable"
	ReasonInvalidTransition   PolicyReason = "invalid_transition"
	ReasonInvalidWindow       PolicyReason = "invalid_window"
	ReasonIntegrityNotTracked PolicyReason = "integrity_not_tracked"
)

// PolicyViolation is a domain rule refusal with a machine readable reason
type PolicyViolation struct {
	Reason  PolicyReason `json:"reason"`
	Message string       `json:"message"`
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Reason, e.Message)
}

// Is matches another PolicyViolation with the same reason
func (e *PolicyViolation) Is(target error) bool {
	var other *PolicyViolation
	if !errors.As(target, &other) {
		return false
	}
	return other.Reason == e.Reason
}

func NewPolicyViolation(reason PolicyReason, message string) *PolicyViolation {
	return &PolicyViolation{Reason: reason, Message: message}
}

// IsPolicyViolation reports whether err carries the given reason
func IsPolicyViolation(err error, reason PolicyReason) bool {
	var pv *PolicyViolation
	return errors.As(err, &pv) && pv.Reason == reason
}

// PermissionError is returned when the actor lacks rights on a resource
type PermissionError struct {
	UserID     string `json:"user_id"`
	Resource   string `json:"resource"`
	ResourceID uint   `json:"resource_id,omitempty"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resource string, resourceID uint, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		Resource:   resource,
		ResourceID: resourceID,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError reports input that is well formed but unusable, such as
// generated questions that all failed validation.
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}
