package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// UnansweredIndex is the selection sentinel for a skipped question.
const UnansweredIndex = -1

type Attempt struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Kind          AssessmentKind `json:"kind" gorm:"not null;size:10"`
	StudentID     string         `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_sequence,priority:1"`
	AssessmentID  uint           `json:"assessment_id" gorm:"not null;index;uniqueIndex:idx_attempt_sequence,priority:2"`
	AttemptNumber int            `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempt_sequence,priority:3"`
	CourseID      uint           `json:"course_id" gorm:"not null;index"`
	LessonID      *uint          `json:"lesson_id,omitempty"`
	Status        AttemptStatus  `json:"status" gorm:"not null;size:20;default:in_progress;index"`

	Answers datatypes.JSONSlice[AnswerRecord] `json:"answers" gorm:"type:jsonb"`

	// Scoring
	Score           float64 `json:"score"`
	TotalMarks      int     `json:"total_marks"`
	Percentage      int     `json:"percentage"`
	Passed          bool    `json:"passed"`
	CorrectCount    int     `json:"correct_count"`
	IncorrectCount  int     `json:"incorrect_count"`
	UnansweredCount int     `json:"unanswered_count"`
	Percentile      *int    `json:"percentile,omitempty"` // exams only, snapshot at submit

	// Timing. StartedAt and SubmittedAt come from the server clock.
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	TimeSpent   int        `json:"time_spent"` // seconds, client reported

	// Integrity, exams only
	TabSwitchCount  int                            `json:"tab_switch_count" gorm:"not null;default:0"`
	TabSwitchEvents datatypes.JSONSlice[time.Time] `json:"tab_switch_events,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Assessment *Assessment `json:"-" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) IsSubmitted() bool {
	return a.Status == AttemptSubmitted
}

// AnswerRecord is one graded answer inside an attempt.
type AnswerRecord struct {
	QuestionID       uint              `json:"question_id"`
	SelectedOptionID string            `json:"selected_option_id,omitempty"`
	SelectedIndex    int               `json:"selected_index"`
	IsCorrect        bool              `json:"is_correct"`
	Unanswered       bool              `json:"unanswered"`
	PointsEarned     float64           `json:"points_earned"`
	Snapshot         *QuestionSnapshot `json:"snapshot,omitempty"`
}
