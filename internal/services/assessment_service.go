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

type assessmentService struct {
	serviceCore
	validator *validator.Validator
}

func NewAssessmentService(core serviceCore, validator *validator.Validator) AssessmentService {
	return &assessmentService{serviceCore: core, validator: validator}
}

// ===== CORE CRUD OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, actor Actor, req *CreateAssessmentRequest) (*models.Assessment, error) {
	s.logger.Info("Creating assessment", "actor_id", actor.ID, "kind", req.Kind, "title", req.Title)

	if !actor.Role.IsStaff() {
		return nil, NewPermissionError(actor.ID, "assessment", 0, "create", "insufficient role permissions")
	}
	if errs := s.validator.ValidateAssessmentCreate(req); len(errs) > 0 {
		return nil, errs
	}

	courseID, err := s.resolveCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		owner, err := s.repo.Catalog().IsCourseOwner(ctx, courseID, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("course ownership check failed: %w", err)
		}
		if !owner {
			return nil, NewPermissionError(actor.ID, "course", courseID, "create assessment", "not the instructor of this course")
		}
	}

	assessment := &models.Assessment{
		Kind:         req.Kind,
		CourseID:     courseID,
		InstructorID: actor.ID,
		Status:       models.StatusDraft,
		Questions:    buildQuestions(req.Questions, 0),
	}
	if req.Kind == models.KindQuiz {
		assessment.LessonID = uintPtr(*req.LessonID)
	}
	applyDefinition(assessment, &req.AssessmentUpdateRequest)
	RecomputeDerivedFields(assessment)

	err = s.withTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Assessment().Create(ctx, tx, assessment); err != nil {
			return fmt.Errorf("failed to create assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment created successfully",
		"assessment_id", assessment.ID, "total_marks", assessment.TotalMarks, "questions", len(assessment.Questions))
	return s.loadAssessment(ctx, nil, assessment.ID)
}

func (s *assessmentService) Update(ctx context.Context, actor Actor, id uint, req *UpdateAssessmentRequest) (*models.Assessment, error) {
	s.logger.Info("Updating assessment", "assessment_id", id, "actor_id", actor.ID)

	var updated *models.Assessment
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		assessment, err := s.loadAssessment(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, assessment, "update"); err != nil {
			return err
		}
		if err := s.checkEditable(assessment, req); err != nil {
			return err
		}
		if errs := s.validator.ValidateAssessmentUpdate(req, assessment); len(errs) > 0 {
			return errs
		}

		applyDefinition(assessment, req)
		if req.Questions != nil {
			assessment.Questions = buildQuestions(req.Questions, 0)
		}
		RecomputeDerivedFields(assessment)
		if assessment.PassingMarks > assessment.TotalMarks {
			return ValidationErrors{{
				Field:   "passing_marks",
				Message: fmt.Sprintf("cannot exceed total marks (%d)", assessment.TotalMarks),
				Value:   assessment.PassingMarks,
				Rule:    "business_logic",
			}}
		}

		if req.Questions != nil {
			if err := s.repo.Assessment().ReplaceQuestions(ctx, tx, id, assessment.Questions); err != nil {
				return fmt.Errorf("failed to replace questions: %w", err)
			}
		}
		if err := s.repo.Assessment().Update(ctx, tx, assessment); err != nil {
			return fmt.Errorf("failed to update assessment: %w", err)
		}
		updated = assessment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, updated)
	s.logger.Info("Assessment updated successfully", "assessment_id", id, "total_marks", updated.TotalMarks)
	return s.loadAssessment(ctx, nil, id)
}

// ===== STATUS MANAGEMENT =====

func (s *assessmentService) Publish(ctx context.Context, actor Actor, id uint) (*models.Assessment, error) {
	return s.transition(ctx, actor, id, models.StatusPublished)
}

func (s *assessmentService) Unpublish(ctx context.Context, actor Actor, id uint) (*models.Assessment, error) {
	return s.transition(ctx, actor, id, models.StatusDraft)
}

func (s *assessmentService) Archive(ctx context.Context, actor Actor, id uint) (*models.Assessment, error) {
	return s.transition(ctx, actor, id, models.StatusArchived)
}

func (s *assessmentService) transition(ctx context.Context, actor Actor, id uint, status models.AssessmentStatus) (*models.Assessment, error) {
	s.logger.Info("Changing assessment status", "assessment_id", id, "actor_id", actor.ID, "status", status)

	var assessment *models.Assessment
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var err error
		assessment, err = s.loadAssessment(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := requireOwner(actor, assessment, string(status)); err != nil {
			return err
		}

		if errs := s.validator.ValidateStatusTransition(assessment.Status, status, len(assessment.Questions)); len(errs) > 0 {
			return NewPolicyViolation(ReasonInvalidTransition, errs.Error())
		}

		var publishedAt = assessment.PublishedAt
		if status == models.StatusPublished {
			if errs := s.validator.ValidateWindow(assessment.StartDate, assessment.EndDate, s.clock()); len(errs) > 0 {
				return NewPolicyViolation(ReasonInvalidWindow, errs.Error())
			}
			now := s.clock()
			publishedAt = &now
		}

		if err := s.repo.Assessment().UpdateStatus(ctx, tx, id, status, publishedAt); err != nil {
			return fmt.Errorf("failed to update assessment status: %w", err)
		}
		assessment.Status = status
		assessment.PublishedAt = publishedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, assessment)
	if status == models.StatusPublished {
		s.publish(ctx, events.AssessmentPublished, map[string]any{
			"assessment_id": assessment.ID,
			"kind":          assessment.Kind,
			"course_id":     assessment.CourseID,
			"instructor_id": assessment.InstructorID,
			"title":         assessment.Title,
		})
	}

	s.logger.Info("Assessment status changed", "assessment_id", id, "status", status)
	return assessment, nil
}

// Delete removes the assessment with its questions and every attempt
func (s *assessmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	s.logger.Info("Deleting assessment", "assessment_id", id, "actor_id", actor.ID)

	var assessment *models.Assessment
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var err error
		assessment, err = s.repo.Assessment().GetByID(ctx, tx, id)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAssessmentNotFound
			}
			return fmt.Errorf("failed to load assessment: %w", err)
		}
		if err := requireOwner(actor, assessment, "delete"); err != nil {
			return err
		}
		if err := s.repo.Attempt().DeleteByAssessment(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err := s.repo.Assessment().Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("failed to delete assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, assessment)
	s.logger.Info("Assessment deleted successfully", "assessment_id", id)
	return nil
}

// ===== QUERIES =====

// GetFull returns the unredacted definition to its owner
func (s *assessmentService) GetFull(ctx context.Context, actor Actor, id uint) (*models.Assessment, error) {
	assessment, err := s.loadAssessment(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(actor, assessment, "read"); err != nil {
		return nil, err
	}
	return assessment, nil
}

func (s *assessmentService) List(ctx context.Context, actor Actor, filters repositories.AssessmentFilters) (*AssessmentListResponse, error) {
	if !actor.Role.IsStaff() {
		return nil, NewPermissionError(actor.ID, "assessment", 0, "list", "insufficient role permissions")
	}
	if !actor.IsAdmin() {
		filters.InstructorID = &actor.ID
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	assessments, total, err := s.repo.Assessment().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	return &AssessmentListResponse{
		Assessments: assessments,
		Total:       total,
		Limit:       filters.Limit,
		Offset:      filters.Offset,
	}, nil
}

// ===== HELPERS =====

// resolveCourse returns the owning course; a quiz inherits its lesson's course
func (s *assessmentService) resolveCourse(ctx context.Context, req *CreateAssessmentRequest) (uint, error) {
	if req.Kind != models.KindQuiz {
		return req.CourseID, nil
	}
	courseID, err := s.repo.Catalog().GetLessonCourseID(ctx, *req.LessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return 0, ErrLessonNotFound
		}
		return 0, fmt.Errorf("failed to resolve lesson: %w", err)
	}
	return courseID, nil
}

// checkEditable enforces that archived assessments are frozen and questions
// only change while in draft
func (s *assessmentService) checkEditable(a *models.Assessment, req *UpdateAssessmentRequest) error {
	switch {
	case a.Status == models.StatusArchived:
		return NewPolicyViolation(ReasonNotEditable, "archived assessments cannot be edited")
	case req.Questions != nil && a.Status != models.StatusDraft:
		return NewPolicyViolation(ReasonNotEditable, "questions can only be changed while the assessment is a draft")
	}
	return nil
}

// applyDefinition copies the editable fields. Totals are left to
// RecomputeDerivedFields.
func applyDefinition(a *models.Assessment, req *UpdateAssessmentRequest) {
	a.Title = req.Title
	a.Description = req.Description
	a.Instructions = req.Instructions
	a.Duration = req.Duration
	a.PassingMarks = req.PassingMarks
	a.StartDate = req.StartDate
	a.EndDate = req.EndDate

	settings := req.Settings
	a.ShuffleQuestions = settings.ShuffleQuestions
	a.ShuffleOptions = settings.ShuffleOptions
	a.ShowCorrectAnswers = settings.ShowCorrectAnswers
	a.AllowRetake = settings.AllowRetake
	a.NegativeMarking = settings.NegativeMarking
	a.IsFree = settings.IsFree && a.IsQuiz()

	a.ShowResultImmediately = true
	if settings.ShowResultImmediately != nil {
		a.ShowResultImmediately = *settings.ShowResultImmediately
	}
	a.MaxAttempts = settings.MaxAttempts
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = 1
	}
}
