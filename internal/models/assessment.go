package models

import (
	"time"
)

type AssessmentKind string

const (
	KindExam AssessmentKind = "exam"
	KindQuiz AssessmentKind = "quiz"
)

type AssessmentStatus string

const (
	StatusDraft     AssessmentStatus = "draft"
	StatusPublished AssessmentStatus = "published"
	StatusArchived  AssessmentStatus = "archived"
)

type Assessment struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	Kind         AssessmentKind   `json:"kind" gorm:"not null;size:10;default:exam;index"`
	CourseID     uint             `json:"course_id" gorm:"not null;index"`
	LessonID     *uint            `json:"lesson_id,omitempty" gorm:"index"`
	InstructorID string           `json:"instructor_id" gorm:"not null;index;size:255"`
	Title        string           `json:"title" gorm:"not null;size:200"`
	Description  *string          `json:"description,omitempty" gorm:"type:text"`
	Instructions *string          `json:"instructions,omitempty" gorm:"type:text"`
	Duration     int              `json:"duration" gorm:"not null"` // minutes
	Status       AssessmentStatus `json:"status" gorm:"not null;size:20;default:draft;index"`

	// Derived on every save from the question list
	TotalMarks        int `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks      int `json:"passing_marks" gorm:"not null;default:0"`
	PassingPercentage int `json:"passing_percentage" gorm:"not null;default:0"`

	AssessmentSettings

	// Scheduling window, exams only
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Running statistics, recomputed on every submit
	AttemptCount int     `json:"attempt_count" gorm:"not null;default:0"`
	AverageScore float64 `json:"average_score" gorm:"not null;default:0"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
}

// AssessmentSettings holds the behaviour flags. It is embedded in the
// assessments row rather than kept in its own table.
type AssessmentSettings struct {
	ShuffleQuestions      bool `json:"shuffle_questions" gorm:"not null;default:false"`
	ShuffleOptions        bool `json:"shuffle_options" gorm:"not null;default:false"`
	ShowResultImmediately bool `json:"show_result_immediately" gorm:"not null"`
	ShowCorrectAnswers    bool `json:"show_correct_answers" gorm:"not null;default:false"`
	AllowRetake           bool `json:"allow_retake" gorm:"not null;default:false"`
	MaxAttempts           int  `json:"max_attempts" gorm:"not null;default:1"`
	NegativeMarking       bool `json:"negative_marking" gorm:"not null;default:false"`
	IsFree                bool `json:"is_free" gorm:"not null;default:false"` // quiz only: no enrollment needed
}

func (Assessment) TableName() string {
	return "assessments"
}

func (a *Assessment) IsQuiz() bool {
	return a.Kind == KindQuiz
}

func (a *Assessment) IsOwnedBy(userID string) bool {
	return a.InstructorID != "" && a.InstructorID == userID
}

// HasWindow reports whether a scheduling window was supplied.
func (a *Assessment) HasWindow() bool {
	return a.StartDate != nil || a.EndDate != nil
}

// InWindow reports whether t falls inside the scheduling window. An absent
// bound is open.
func (a *Assessment) InWindow(t time.Time) bool {
	if a.StartDate != nil && t.Before(*a.StartDate) {
		return false
	}
	if a.EndDate != nil && t.After(*a.EndDate) {
		return false
	}
	return true
}

// QuestionByID returns the question with the given id or nil.
func (a *Assessment) QuestionByID(id uint) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}
