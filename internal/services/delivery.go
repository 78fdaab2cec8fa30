package services

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jinzhu/copier"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// AssessmentView is the payload sent to whoever takes or previews an
// assessment. For test-takers every question is redacted.
type AssessmentView struct {
	ID                uint                  `json:"id"`
	Kind              models.AssessmentKind `json:"kind"`
	CourseID          uint                  `json:"course_id"`
	LessonID          *uint                 `json:"lesson_id,omitempty"`
	Title             string                `json:"title"`
	Description       *string               `json:"description,omitempty"`
	Instructions      *string               `json:"instructions,omitempty"`
	Duration          int                   `json:"duration"`
	TotalMarks        int                   `json:"total_marks"`
	PassingMarks      int                   `json:"passing_marks"`
	PassingPercentage int                   `json:"passing_percentage"`
	NegativeMarking   bool                  `json:"negative_marking"`
	StartDate         *time.Time            `json:"start_date,omitempty"`
	EndDate           *time.Time            `json:"end_date,omitempty"`
	Questions         []models.Question     `json:"questions"`
	Redacted          bool                  `json:"redacted"`
}

type DeliveryOptions struct {
	Redact bool
	// Shuffling follows the assessment flags; owners see canonical order
	Shuffle bool
}

// NewRequestRand returns an unseeded source for one request's permutations
func NewRequestRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// BuildDeliveryView deep copies the definition and applies redaction and
// shuffling to the copy. The source assessment is never modified.
func BuildDeliveryView(a *models.Assessment, opts DeliveryOptions, rng *rand.Rand) (*AssessmentView, error) {
	view := &AssessmentView{
		ID:                a.ID,
		Kind:              a.Kind,
		CourseID:          a.CourseID,
		LessonID:          a.LessonID,
		Title:             a.Title,
		Description:       a.Description,
		Instructions:      a.Instructions,
		Duration:          a.Duration,
		TotalMarks:        a.TotalMarks,
		PassingMarks:      a.PassingMarks,
		PassingPercentage: a.PassingPercentage,
		NegativeMarking:   a.NegativeMarking,
		StartDate:         a.StartDate,
		EndDate:           a.EndDate,
		Redacted:          opts.Redact,
	}

	questions := make([]models.Question, 0, len(a.Questions))
	if err := copier.CopyWithOption(&questions, &a.Questions, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy questions: %w", err)
	}
	// copier leaves the jsonb slices shared with the source
	for i := range questions {
		detachQuestion(&questions[i])
	}

	if opts.Redact {
		for i := range questions {
			RedactQuestion(&questions[i])
		}
	}

	if opts.Shuffle && rng != nil {
		if a.ShuffleQuestions {
			rng.Shuffle(len(questions), func(i, j int) {
				questions[i], questions[j] = questions[j], questions[i]
			})
		}
		if a.ShuffleOptions {
			for i := range questions {
				options := questions[i].Options
				rng.Shuffle(len(options), func(x, y int) {
					options[x], options[y] = options[y], options[x]
				})
			}
		}
	}

	view.Questions = questions
	return view, nil
}

func detachQuestion(q *models.Question) {
	options := make(datatypes.JSONSlice[models.Option], len(q.Options))
	for i, opt := range q.Options {
		options[i] = opt
		if opt.IsCorrect != nil {
			correct := *opt.IsCorrect
			options[i].IsCorrect = &correct
		}
	}
	q.Options = options
	q.Tags = append(datatypes.JSONSlice[string](nil), q.Tags...)
	if q.Explanation != nil {
		explanation := *q.Explanation
		q.Explanation = &explanation
	}
}

// RedactQuestion strips everything that reveals the answer
func RedactQuestion(q *models.Question) {
	q.Explanation = nil
	for i := range q.Options {
		q.Options[i].IsCorrect = nil
	}
}

// ReviewItem is one answered question in a post-submit review
type ReviewItem struct {
	QuestionID       uint            `json:"question_id"`
	Stem             string          `json:"stem"`
	Options          []models.Option `json:"options"`
	Explanation      *string         `json:"explanation,omitempty"`
	Points           int             `json:"points"`
	SelectedOptionID string          `json:"selected_option_id,omitempty"`
	SelectedIndex    int             `json:"selected_index"`
	Unanswered       bool            `json:"unanswered"`
	IsCorrect        *bool           `json:"is_correct,omitempty"`
	PointsEarned     *float64        `json:"points_earned,omitempty"`
}

// BuildReview pairs each answer with the question as it was answered. Exams
// read the stored snapshot; quizzes fall back to the live question. Answers
// for unknown questions are left out. With reveal false the correctness
// flags, per-question points and explanations are redacted.
func BuildReview(a *models.Assessment, answers []models.AnswerRecord, reveal bool) []ReviewItem {
	items := make([]ReviewItem, 0, len(answers))
	for _, ans := range answers {
		var snap *models.QuestionSnapshot
		if ans.Snapshot != nil {
			snap = ans.Snapshot
		} else if q := a.QuestionByID(ans.QuestionID); q != nil {
			snap = q.Snapshot()
		}
		if snap == nil {
			continue
		}

		item := ReviewItem{
			QuestionID:       ans.QuestionID,
			Stem:             snap.Stem,
			Points:           snap.Points,
			SelectedOptionID: ans.SelectedOptionID,
			SelectedIndex:    ans.SelectedIndex,
			Unanswered:       ans.Unanswered,
		}
		if reveal {
			points := ans.PointsEarned
			item.IsCorrect = models.BoolPtr(ans.IsCorrect)
			item.PointsEarned = &points
		}

		item.Options = make([]models.Option, len(snap.Options))
		for i, opt := range snap.Options {
			item.Options[i] = models.Option{ID: opt.ID, Text: opt.Text}
			if reveal && opt.IsCorrect != nil {
				item.Options[i].IsCorrect = models.BoolPtr(*opt.IsCorrect)
			}
		}
		if reveal && snap.Explanation != nil {
			expl := *snap.Explanation
			item.Explanation = &expl
		}

		items = append(items, item)
	}
	return items
}
