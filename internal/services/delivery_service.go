package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

type deliveryService struct {
	serviceCore
}

func NewDeliveryService(core serviceCore) DeliveryService {
	return &deliveryService{serviceCore: core}
}

// GetSafeAssessment returns what the actor may see of an assessment. Owners
// get the full definition in canonical order. Anyone else must be allowed to
// start it and receives a redacted, possibly shuffled copy.
func (s *deliveryService) GetSafeAssessment(ctx context.Context, actor Actor, id uint) (*SafeAssessmentResponse, error) {
	assessment, err := s.loadAssessment(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if actor.Owns(assessment) {
		view, err := BuildDeliveryView(assessment, DeliveryOptions{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build view: %w", err)
		}
		return &SafeAssessmentResponse{AssessmentView: view}, nil
	}

	if err := checkTakeable(ctx, s.serviceCore, actor, assessment, s.clock()); err != nil {
		return nil, err
	}

	prior, err := s.repo.Attempt().CountByStudent(ctx, nil, actor.ID, assessment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	view, err := BuildDeliveryView(assessment, DeliveryOptions{Redact: true, Shuffle: true}, NewRequestRand())
	if err != nil {
		return nil, fmt.Errorf("failed to build view: %w", err)
	}

	s.logger.Debug("Delivered assessment", "assessment_id", id, "student_id", actor.ID, "shuffled", assessment.ShuffleQuestions || assessment.ShuffleOptions)
	return &SafeAssessmentResponse{
		AssessmentView:    view,
		RemainingAttempts: RemainingAttempts(assessment, prior),
		AttemptsUsed:      int(prior),
	}, nil
}

// checkOpen covers the status and window, which only depend on the definition
func checkOpen(a *models.Assessment, now time.Time) error {
	if a.Status != models.StatusPublished {
		return NewPolicyViolation(ReasonNotPublished, "assessment is not published")
	}
	return PolicyFor(a.Kind).CheckWindow(a, now)
}

// checkTakeable applies the checks shared by delivery and start: publication,
// the kind's window and enrollment.
func checkTakeable(ctx context.Context, core serviceCore, actor Actor, a *models.Assessment, now time.Time) error {
	if err := checkOpen(a, now); err != nil {
		return err
	}

	if PolicyFor(a.Kind).RequiresEnrollment(a) {
		enrolled, err := core.repo.Catalog().IsActivelyEnrolled(ctx, actor.ID, a.CourseID)
		if err != nil {
			return fmt.Errorf("enrollment check failed: %w", err)
		}
		if !enrolled {
			return NewPolicyViolation(ReasonNotEnrolled, "an active enrollment in the course is required")
		}
	}
	return nil
}
