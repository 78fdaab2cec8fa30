package validator

import (
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// OptionRequest is one answer choice. An empty ID gets a generated one.
type OptionRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	Text      string `json:"text" validate:"required,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionRequest is a single-correct multiple choice question
type QuestionRequest struct {
	Stem        string                 `json:"stem" validate:"required,max=4000"`
	Options     []OptionRequest        `json:"options" validate:"required,min=2,max=10,dive"`
	Explanation *string                `json:"explanation" validate:"omitempty,max=2000"`
	Points      int                    `json:"points" validate:"omitempty,points_range"`
	Difficulty  models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Tags        []string               `json:"tags" validate:"omitempty,max=10,dive,max=50"`
}

// AssessmentSettingsRequest carries the behaviour flags
type AssessmentSettingsRequest struct {
	ShuffleQuestions      bool  `json:"shuffle_questions"`
	ShuffleOptions        bool  `json:"shuffle_options"`
	ShowResultImmediately *bool `json:"show_result_immediately"`
	ShowCorrectAnswers    bool  `json:"show_correct_answers"`
	AllowRetake           bool  `json:"allow_retake"`
	MaxAttempts           int   `json:"max_attempts" validate:"omitempty,max_attempts"`
	NegativeMarking       bool  `json:"negative_marking"`
	IsFree                bool  `json:"is_free"`
}

// AssessmentUpdateRequest replaces the editable fields of an assessment. Nil
// Questions keeps the current question list.
type AssessmentUpdateRequest struct {
	Title        string                    `json:"title" validate:"required,assessment_title"`
	Description  *string                   `json:"description" validate:"omitempty,max=2000"`
	Instructions *string                   `json:"instructions" validate:"omitempty,max=4000"`
	Duration     int                       `json:"duration" validate:"required,assessment_duration"`
	PassingMarks int                       `json:"passing_marks" validate:"min=0"`
	Settings     AssessmentSettingsRequest `json:"settings"`
	StartDate    *time.Time                `json:"start_date"`
	EndDate      *time.Time                `json:"end_date"`
	Questions    []QuestionRequest         `json:"questions" validate:"omitempty,max=200,dive"`

	// Accepted for compatibility and always recomputed
	TotalMarks        *int `json:"total_marks,omitempty"`
	PassingPercentage *int `json:"passing_percentage,omitempty"`
}

// AssessmentCreateRequest defines an exam (course scoped) or a quiz (lesson scoped)
type AssessmentCreateRequest struct {
	Kind     models.AssessmentKind `json:"kind" validate:"required,assessment_kind"`
	CourseID uint                  `json:"course_id"`
	LessonID *uint                 `json:"lesson_id"`
	AssessmentUpdateRequest
}

// AnswerRequest selects one option by id or by canonical index. Neither, or
// index -1, means unanswered.
type AnswerRequest struct {
	QuestionID       uint   `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id" validate:"omitempty,max=64"`
	SelectedIndex    *int   `json:"selected_index" validate:"omitempty,min=-1"`
}

type SubmitAttemptRequest struct {
	Answers   []AnswerRequest `json:"answers" validate:"omitempty,max=500,dive"`
	TimeSpent int             `json:"time_spent" validate:"min=0"`
}

type QuestionBankRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsPublic    bool    `json:"is_public"`
}

type BankQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" validate:"required,min=1,max=100,dive"`
}

type GenerateQuestionsRequest struct {
	Topic      string                 `json:"topic" validate:"required,min=3,max=500"`
	Count      int                    `json:"count" validate:"required,min=1,max=20"`
	Difficulty models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
}

// ImportQuestionsRequest copies bank questions into a draft assessment. An
// empty list imports the whole bank.
type ImportQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"omitempty,max=200"`
}
