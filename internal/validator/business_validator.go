package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// BusinessValidator handles struct tags plus the rules tags cannot express
type BusinessValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewBusinessValidator() *BusinessValidator {
	validate, trans := newTranslatedValidate()

	bv := &BusinessValidator{validate: validate, trans: trans}
	bv.registerBusinessRules()

	return bv
}

// Validate runs the struct tags of s
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return toValidationErrors(err, bv.trans)
	}
	return nil
}

// ValidateAssessmentCreate validates assessment creation business rules
func (bv *BusinessValidator) ValidateAssessmentCreate(req *AssessmentCreateRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	switch req.Kind {
	case models.KindExam:
		if req.CourseID == 0 {
			errs = append(errs, ValidationError{
				Field:   "course_id",
				Message: "course_id is required for an exam",
				Rule:    "required",
			})
		}
	case models.KindQuiz:
		if req.LessonID == nil || *req.LessonID == 0 {
			errs = append(errs, ValidationError{
				Field:   "lesson_id",
				Message: "lesson_id is required for a quiz",
				Rule:    "required",
			})
		}
		if req.StartDate != nil || req.EndDate != nil {
			errs = append(errs, ValidationError{
				Field:   "start_date",
				Message: "quizzes have no scheduling window",
				Rule:    "business_logic",
			})
		}
	}

	if len(req.Questions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "at least one question is required",
			Rule:    "required",
		})
	}

	errs = append(errs, bv.validateDefinitionRules(&req.AssessmentUpdateRequest)...)
	return errs
}

// ValidateAssessmentUpdate validates assessment update business rules
func (bv *BusinessValidator) ValidateAssessmentUpdate(req *AssessmentUpdateRequest, existing *models.Assessment) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.Validate(req)...)

	if existing.IsQuiz() && (req.StartDate != nil || req.EndDate != nil) {
		errs = append(errs, ValidationError{
			Field:   "start_date",
			Message: "quizzes have no scheduling window",
			Rule:    "business_logic",
		})
	}
	if req.Questions != nil && len(req.Questions) == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "at least one question is required",
			Rule:    "required",
		})
	}

	errs = append(errs, bv.validateDefinitionRules(req)...)
	return errs
}

// ValidateQuestion checks the rules shared by assessment, bank and generated
// questions. path prefixes the reported field names.
func (bv *BusinessValidator) ValidateQuestion(q *QuestionRequest, path string) ValidationErrors {
	var errs ValidationErrors

	correct := 0
	seen := make(map[string]bool, len(q.Options))
	for i, opt := range q.Options {
		if opt.IsCorrect {
			correct++
		}
		if strings.TrimSpace(opt.Text) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%soptions[%d].text", path, i),
				Message: "option text cannot be blank",
				Rule:    "business_logic",
			})
		}
		if opt.ID != "" {
			if seen[opt.ID] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%soptions[%d].id", path, i),
					Message: "option ids must be unique within a question",
					Value:   opt.ID,
					Rule:    "unique",
				})
			}
			seen[opt.ID] = true
		}
	}

	if correct == 0 {
		errs = append(errs, ValidationError{
			Field:   path + "options",
			Message: "at least one option must be correct",
			Rule:    "business_logic",
		})
	}
	if strings.TrimSpace(q.Stem) == "" {
		errs = append(errs, ValidationError{
			Field:   path + "stem",
			Message: "stem cannot be blank",
			Rule:    "business_logic",
		})
	}

	for i, tag := range q.Tags {
		if strings.TrimSpace(tag) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%stags[%d]", path, i),
				Message: "tag cannot be empty",
				Value:   tag,
				Rule:    "business_logic",
			})
		}
	}

	return errs
}

// ValidateQuestions validates a list and reports fields as questions[i].*
func (bv *BusinessValidator) ValidateQuestions(questions []QuestionRequest) ValidationErrors {
	var errs ValidationErrors
	for i := range questions {
		errs = append(errs, bv.ValidateQuestion(&questions[i], fmt.Sprintf("questions[%d].", i))...)
	}
	return errs
}

// ValidateStatusTransition validates assessment status transitions
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.AssessmentStatus, questionCount int) ValidationErrors {
	var errs ValidationErrors

	allowedTransitions := map[models.AssessmentStatus][]models.AssessmentStatus{
		models.StatusDraft:     {models.StatusPublished, models.StatusArchived},
		models.StatusPublished: {models.StatusDraft, models.StatusArchived},
		models.StatusArchived:  {},
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errs = append(errs, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	if newStatus == models.StatusPublished && questionCount == 0 {
		errs = append(errs, ValidationError{
			Field:   "questions",
			Message: "assessment must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errs
}

// ValidateWindow checks a scheduling window at publish time. No window passes.
func (bv *BusinessValidator) ValidateWindow(start, end *time.Time, now time.Time) ValidationErrors {
	var errs ValidationErrors
	if start != nil && end != nil && !end.After(*start) {
		errs = append(errs, ValidationError{
			Field:   "end_date",
			Message: "end_date must be after start_date",
			Value:   end,
			Rule:    "window",
		})
	}
	if end != nil && !end.After(now) {
		errs = append(errs, ValidationError{
			Field:   "end_date",
			Message: "scheduling window has already ended",
			Value:   end,
			Rule:    "window",
		})
	}
	return errs
}

func (bv *BusinessValidator) registerBusinessRules() {
	// Assessment duration in minutes
	bv.validate.RegisterValidation("assessment_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 600
	})

	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 20
	})

	bv.validate.RegisterValidation("assessment_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	bv.validate.RegisterValidation("points_range", func(fl validator.FieldLevel) bool {
		points := fl.Field().Int()
		return points >= 1 && points <= 100
	})

	bv.validate.RegisterValidation("assessment_kind", func(fl validator.FieldLevel) bool {
		kind := models.AssessmentKind(fl.Field().String())
		return kind == models.KindExam || kind == models.KindQuiz
	})

	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch models.DifficultyLevel(fl.Field().String()) {
		case models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard:
			return true
		}
		return false
	})

	registerTranslation(bv.validate, bv.trans, "assessment_duration", "must be between 1 and 600 minutes")
	registerTranslation(bv.validate, bv.trans, "max_attempts", "must be between 1 and 20")
	registerTranslation(bv.validate, bv.trans, "assessment_title", "must be between 1 and 200 characters")
	registerTranslation(bv.validate, bv.trans, "points_range", "must be between 1 and 100")
	registerTranslation(bv.validate, bv.trans, "assessment_kind", "must be exam or quiz")
	registerTranslation(bv.validate, bv.trans, "difficulty_level", "must be easy, medium or hard")
}

// validateDefinitionRules covers what create and update share
func (bv *BusinessValidator) validateDefinitionRules(req *AssessmentUpdateRequest) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, bv.ValidateQuestions(req.Questions)...)

	if req.StartDate != nil && req.EndDate != nil && !req.EndDate.After(*req.StartDate) {
		errs = append(errs, ValidationError{
			Field:   "end_date",
			Message: "end_date must be after start_date",
			Value:   req.EndDate,
			Rule:    "window",
		})
	}

	if req.Questions != nil {
		total := 0
		for _, q := range req.Questions {
			if q.Points > 0 {
				total += q.Points
			} else {
				total++
			}
		}
		if req.PassingMarks > total {
			errs = append(errs, ValidationError{
				Field:   "passing_marks",
				Message: fmt.Sprintf("cannot exceed total marks (%d)", total),
				Value:   req.PassingMarks,
				Rule:    "business_logic",
			})
		}
	}

	return errs
}
