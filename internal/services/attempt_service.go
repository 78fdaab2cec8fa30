package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

type attemptService struct {
	serviceCore
	validator *validator.Validator
}

func NewAttemptService(core serviceCore, validator *validator.Validator) AttemptService {
	return &attemptService{serviceCore: core, validator: validator}
}

// ===== CORE ATTEMPT OPERATIONS =====

// Start opens a new attempt. An in-progress attempt is never resumed here;
// every start counts against the retake policy.
func (s *attemptService) Start(ctx context.Context, actor Actor, assessmentID uint) (*StartAttemptResponse, error) {
	s.logger.Info("Starting attempt", "assessment_id", assessmentID, "student_id", actor.ID)

	assessment, err := s.loadAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := checkTakeable(ctx, s.serviceCore, actor, assessment, now); err != nil {
		return nil, err
	}

	var attempt *models.Attempt
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		// The check above may have read a cached definition
		current, err := s.loadAssessment(ctx, tx, assessmentID)
		if err != nil {
			return err
		}
		if err := checkOpen(current, now); err != nil {
			return err
		}
		assessment = current

		prior, err := s.repo.Attempt().CountByStudent(ctx, tx, actor.ID, assessmentID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if err := CheckEligibility(assessment, prior); err != nil {
			return err
		}

		attempt = &models.Attempt{
			Kind:          assessment.Kind,
			StudentID:     actor.ID,
			AssessmentID:  assessment.ID,
			AttemptNumber: int(prior) + 1,
			CourseID:      assessment.CourseID,
			LessonID:      assessment.LessonID,
			Status:        models.AttemptInProgress,
			TotalMarks:    assessment.TotalMarks,
			StartedAt:     now,
		}
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			if repositories.IsUniqueViolation(err) {
				return NewPolicyViolation(ReasonAttemptConflict, "another attempt was started concurrently")
			}
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.AttemptStarted, map[string]any{
		"attempt_id":     attempt.ID,
		"assessment_id":  assessment.ID,
		"student_id":     actor.ID,
		"attempt_number": attempt.AttemptNumber,
		"kind":           assessment.Kind,
	})

	s.logger.Info("Attempt started successfully",
		"attempt_id", attempt.ID,
		"assessment_id", assessmentID,
		"attempt_number", attempt.AttemptNumber)

	return &StartAttemptResponse{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		AssessmentID:  assessment.ID,
		Kind:          assessment.Kind,
		StartedAt:     attempt.StartedAt,
		Duration:      assessment.Duration,
	}, nil
}

// Submit grades the answers against the stored questions and persists the
// attempt, the statistics and the percentile in one transaction.
func (s *attemptService) Submit(ctx context.Context, actor Actor, attemptID uint, req *SubmitAttemptRequest) (*AttemptResult, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "student_id", actor.ID, "answers", len(req.Answers))

	if errs := s.validator.Validate(req); len(errs) > 0 {
		return nil, errs
	}

	var (
		attempt    *models.Attempt
		assessment *models.Assessment
		result     GradeResult
	)
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.loadAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != actor.ID {
			return NewPermissionError(actor.ID, "attempt", attemptID, "submit", "not owned by student")
		}
		if attempt.IsSubmitted() {
			return NewPolicyViolation(ReasonAlreadySubmitted, "attempt was already submitted")
		}

		assessment, err = s.loadAssessment(ctx, tx, attempt.AssessmentID)
		if err != nil {
			return err
		}

		policy := PolicyFor(attempt.Kind)
		result = Grade(assessment.Questions, req.Answers, GradeOptions{
			NegativeMarking: assessment.NegativeMarking,
			Snapshots:       policy.KeepsSnapshots(),
		})

		submittedAt := s.clock()
		attempt.Status = models.AttemptSubmitted
		attempt.Answers = result.Answers
		attempt.Score = result.Score
		attempt.TotalMarks = result.TotalMarks
		attempt.Percentage = result.Percentage
		attempt.Passed = policy.Passed(assessment, &result)
		attempt.CorrectCount = result.CorrectCount
		attempt.IncorrectCount = result.IncorrectCount
		attempt.UnansweredCount = result.UnansweredCount
		attempt.SubmittedAt = &submittedAt
		attempt.TimeSpent = req.TimeSpent

		submitted, err := s.repo.Attempt().MarkSubmitted(ctx, tx, attempt)
		if err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}
		if !submitted {
			return NewPolicyViolation(ReasonAlreadySubmitted, "attempt was already submitted")
		}

		scores, err := s.repo.Attempt().SubmittedScores(ctx, tx, assessment.ID)
		if err != nil {
			return fmt.Errorf("failed to load scores: %w", err)
		}
		if err := s.repo.Assessment().UpdateStatistics(ctx, tx, assessment.ID, len(scores), Average(scores)); err != nil {
			return fmt.Errorf("failed to update statistics: %w", err)
		}

		if policy.RanksPercentile() {
			percentile := Percentile(attempt.Score, scores)
			if err := s.repo.Attempt().SetPercentile(ctx, tx, attempt.ID, percentile); err != nil {
				return fmt.Errorf("failed to store percentile: %w", err)
			}
			attempt.Percentile = &percentile
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, assessment)
	s.publish(ctx, events.AttemptSubmitted, map[string]any{
		"attempt_id":    attempt.ID,
		"assessment_id": assessment.ID,
		"student_id":    attempt.StudentID,
		"kind":          attempt.Kind,
		"score":         attempt.Score,
		"total_marks":   attempt.TotalMarks,
		"percentage":    attempt.Percentage,
		"passed":        attempt.Passed,
	})

	if result.UnknownCount > 0 {
		s.logger.Warn("Submission referenced unknown questions",
			"attempt_id", attemptID, "unknown", result.UnknownCount)
	}
	s.logger.Info("Attempt submitted successfully",
		"attempt_id", attemptID,
		"score", attempt.Score,
		"total_marks", attempt.TotalMarks,
		"passed", attempt.Passed)

	return buildResult(assessment, attempt, true), nil
}

// GetReport returns the full report to the assessment's owner and the
// student's own result to the student.
func (s *attemptService) GetReport(ctx context.Context, actor Actor, attemptID uint) (*AttemptReportResponse, error) {
	attempt, err := s.loadAttempt(ctx, nil, attemptID)
	if err != nil {
		return nil, err
	}
	assessment, err := s.loadAssessment(ctx, nil, attempt.AssessmentID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Owns(assessment):
		report := &AttemptReport{
			Attempt: attempt,
			Review:  BuildReview(assessment, attempt.Answers, true),
		}
		student, err := s.repo.User().GetByID(ctx, attempt.StudentID)
		if err != nil {
			s.logger.Warn("Failed to resolve student", "student_id", attempt.StudentID, "error", err)
		} else {
			report.Student = student
		}
		return &AttemptReportResponse{Owner: report}, nil
	case attempt.StudentID == actor.ID:
		return &AttemptReportResponse{Result: buildResult(assessment, attempt, true)}, nil
	default:
		return nil, NewPermissionError(actor.ID, "attempt", attemptID, "read", "not the student or the assessment owner")
	}
}

func (s *attemptService) ListMine(ctx context.Context, actor Actor, assessmentID uint) ([]*AttemptResult, error) {
	assessment, err := s.loadAssessment(ctx, nil, assessmentID)
	if err != nil {
		return nil, err
	}

	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
		AssessmentID: &assessmentID,
		StudentID:    &actor.ID,
		Limit:        100,
		SortBy:       "attempt_number",
		SortOrder:    "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	results := make([]*AttemptResult, 0, len(attempts))
	for _, attempt := range attempts {
		results = append(results, buildResult(assessment, attempt, false))
	}
	return results, nil
}

// ===== HELPERS =====

// resultsWithheld reports whether scores stay hidden from the student. They
// are released once the assessment is archived.
func resultsWithheld(a *models.Assessment) bool {
	return !a.ShowResultImmediately && a.Status != models.StatusArchived
}

// buildResult is the student's view of an attempt
func buildResult(a *models.Assessment, attempt *models.Attempt, withReview bool) *AttemptResult {
	result := &AttemptResult{
		AttemptID:     attempt.ID,
		AssessmentID:  attempt.AssessmentID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		StartedAt:     attempt.StartedAt,
		SubmittedAt:   attempt.SubmittedAt,
		TimeSpent:     attempt.TimeSpent,
		TotalMarks:    attempt.TotalMarks,
	}
	if !attempt.IsSubmitted() {
		return result
	}
	if resultsWithheld(a) {
		result.ResultsWithheld = true
		return result
	}

	score := attempt.Score
	passed := attempt.Passed
	result.Score = &score
	result.Percentage = intPtr(attempt.Percentage)
	result.Passed = &passed
	result.CorrectCount = intPtr(attempt.CorrectCount)
	result.IncorrectCount = intPtr(attempt.IncorrectCount)
	result.UnansweredCount = intPtr(attempt.UnansweredCount)
	if attempt.Percentile != nil {
		result.Percentile = intPtr(*attempt.Percentile)
	}
	if withReview && a.ShowCorrectAnswers {
		result.Review = BuildReview(a, attempt.Answers, true)
	}
	return result
}
