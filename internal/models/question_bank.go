package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionSource string

const (
	SourceManual    QuestionSource = "manual"
	SourceGenerated QuestionSource = "generated"
)

// QuestionBank is an instructor-owned library of reusable questions. Bank
// questions are copied into an assessment, never referenced.
type QuestionBank struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"not null;size:200"`
	Description  *string `json:"description,omitempty" gorm:"type:text"`
	IsPublic     bool    `json:"is_public" gorm:"not null;default:false"`
	InstructorID string  `json:"instructor_id" gorm:"not null;index;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []BankQuestion `json:"questions,omitempty" gorm:"foreignKey:BankID;constraint:OnDelete:CASCADE"`

	QuestionCount int `json:"question_count" gorm:"-"`
}

func (QuestionBank) TableName() string {
	return "question_banks"
}

type BankQuestion struct {
	ID          uint                        `json:"id" gorm:"primaryKey"`
	BankID      uint                        `json:"bank_id" gorm:"not null;index"`
	Stem        string                      `json:"stem" gorm:"type:text;not null"`
	Options     datatypes.JSONSlice[Option] `json:"options" gorm:"type:jsonb;not null"`
	Explanation *string                     `json:"explanation,omitempty" gorm:"type:text"`
	Points      int                         `json:"points" gorm:"not null;default:1"`
	Difficulty  DifficultyLevel             `json:"difficulty" gorm:"size:10;default:medium"`
	Tags        datatypes.JSONSlice[string] `json:"tags,omitempty" gorm:"type:jsonb"`
	Source      QuestionSource              `json:"source" gorm:"size:20;default:manual"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BankQuestion) TableName() string {
	return "bank_questions"
}

// ToQuestion copies the bank entry into a fresh assessment question.
func (b *BankQuestion) ToQuestion(assessmentID uint, position int) Question {
	opts := make([]Option, len(b.Options))
	copy(opts, b.Options)
	tags := make([]string, len(b.Tags))
	copy(tags, b.Tags)
	return Question{
		AssessmentID: assessmentID,
		Position:     position,
		Stem:         b.Stem,
		Options:      opts,
		Explanation:  b.Explanation,
		Points:       b.Points,
		Difficulty:   b.Difficulty,
		Tags:         tags,
	}
}
