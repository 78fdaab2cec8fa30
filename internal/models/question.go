package models

import (
	"time"

	"gorm.io/datatypes"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Option is one answer choice. IDs are stable across shuffles so grading never
// depends on presentation order.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

func (o Option) Correct() bool {
	return o.IsCorrect != nil && *o.IsCorrect
}

type Question struct {
	ID           uint                        `json:"id" gorm:"primaryKey"`
	AssessmentID uint                        `json:"assessment_id" gorm:"not null;index"`
	Position     int                         `json:"position" gorm:"not null;default:0"`
	Stem         string                      `json:"stem" gorm:"type:text;not null"`
	Options      datatypes.JSONSlice[Option] `json:"options" gorm:"type:jsonb;not null"`
	Explanation  *string                     `json:"explanation,omitempty" gorm:"type:text"`
	Points       int                         `json:"points" gorm:"not null;default:1"`
	Difficulty   DifficultyLevel             `json:"difficulty,omitempty" gorm:"size:10;default:medium"`
	Tags         datatypes.JSONSlice[string] `json:"tags,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectIndex returns the index of the first option flagged correct, or -1.
func (q *Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct() {
			return i
		}
	}
	return -1
}

// OptionIndex returns the canonical index of the option with the given id, or -1.
func (q *Question) OptionIndex(optionID string) int {
	for i, opt := range q.Options {
		if opt.ID == optionID {
			return i
		}
	}
	return -1
}

// QuestionSnapshot is the denormalized copy stored with each exam answer so that
// historical review does not change when the source question is edited.
type QuestionSnapshot struct {
	Stem        string   `json:"stem"`
	Options     []Option `json:"options"`
	Explanation *string  `json:"explanation,omitempty"`
	Points      int      `json:"points"`
}

func (q *Question) Snapshot() *QuestionSnapshot {
	opts := make([]Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = o
		if o.IsCorrect != nil {
			v := *o.IsCorrect
			opts[i].IsCorrect = &v
		}
	}
	var expl *string
	if q.Explanation != nil {
		e := *q.Explanation
		expl = &e
	}
	return &QuestionSnapshot{
		Stem:        q.Stem,
		Options:     opts,
		Explanation: expl,
		Points:      q.Points,
	}
}

func BoolPtr(b bool) *bool {
	return &b
}
