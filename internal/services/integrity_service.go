package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
)

const tabSwitchWarning = "Leaving the exam window is recorded and reported to your instructor"

type integrityService struct {
	serviceCore
	feed *cache.IntegrityFeed
}

func NewIntegrityService(core serviceCore, feed *cache.IntegrityFeed) IntegrityService {
	return &integrityService{serviceCore: core, feed: feed}
}

// RecordTabSwitch logs that the student left the exam window. The count is
// advisory and never affects grading.
func (s *integrityService) RecordTabSwitch(ctx context.Context, actor Actor, attemptID uint) (*TabSwitchResponse, error) {
	attempt, err := s.loadAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != actor.ID {
		return nil, NewPermissionError(actor.ID, "attempt", attemptID, "record integrity event", "not owned by student")
	}
	if !PolicyFor(attempt.Kind).TracksIntegrity() {
		return nil, NewPolicyViolation(ReasonIntegrityNotTracked, "integrity events are only tracked for exams")
	}
	if attempt.Status != models.AttemptInProgress {
		return nil, NewPolicyViolation(ReasonAttemptNotActive, "attempt is not in progress")
	}

	at := s.clock()
	count, err := s.repo.Attempt().RecordTabSwitch(ctx, nil, attemptID, at)
	if err != nil {
		if errors.Is(err, repositories.ErrAttemptNotActive) {
			return nil, NewPolicyViolation(ReasonAttemptNotActive, "attempt is not in progress")
		}
		return nil, fmt.Errorf("failed to record tab switch: %w", err)
	}

	s.feed.Publish(ctx, cache.IntegrityNotice{
		Type:           string(events.IntegrityTabSwitch),
		AttemptID:      attemptID,
		AssessmentID:   attempt.AssessmentID,
		StudentID:      attempt.StudentID,
		TabSwitchCount: count,
		At:             at,
	})
	s.publish(ctx, events.IntegrityTabSwitch, map[string]any{
		"attempt_id":       attemptID,
		"assessment_id":    attempt.AssessmentID,
		"student_id":       attempt.StudentID,
		"tab_switch_count": count,
	})

	s.logger.Info("Tab switch recorded", "attempt_id", attemptID, "count", count)
	return &TabSwitchResponse{
		AttemptID:      attemptID,
		TabSwitchCount: count,
		RecordedAt:     at,
		Warning:        tabSwitchWarning,
	}, nil
}

// Watch streams live notices to the owner, an admin or a proctor
func (s *integrityService) Watch(ctx context.Context, actor Actor, assessmentID uint) (<-chan cache.IntegrityNotice, error) {
	assessment, err := s.loadAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(assessment) && actor.Role != models.RoleProctor {
		return nil, NewPermissionError(actor.ID, "assessment", assessmentID, "watch integrity", "not the owner or a proctor")
	}
	if !PolicyFor(assessment.Kind).TracksIntegrity() {
		return nil, NewPolicyViolation(ReasonIntegrityNotTracked, "integrity events are only tracked for exams")
	}

	s.logger.Info("Integrity feed opened", "assessment_id", assessmentID, "watcher_id", actor.ID)
	return s.feed.Subscribe(ctx, assessmentID)
}
