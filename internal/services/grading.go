package services

import (
	"math"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// NegativeMarkingFactor is the share of a question's points deducted for a
// wrong answer when negative marking is on.
const NegativeMarkingFactor = 0.25

type SubmittedAnswer = validator.AnswerRequest

type GradeOptions struct {
	NegativeMarking bool
	Snapshots       bool
}

type GradeResult struct {
	Answers         []models.AnswerRecord
	Score           float64
	TotalMarks      int
	Percentage      int
	CorrectCount    int
	IncorrectCount  int
	UnansweredCount int
	// Answers naming a question outside the assessment
	UnknownCount int
}

// Grade scores answers against the authoritative question list. It produces
// one record per question in question order, followed by records for answers
// that reference unknown questions. Score always equals the sum of
// PointsEarned and is never negative.
func Grade(questions []models.Question, answers []SubmittedAnswer, opts GradeOptions) GradeResult {
	var result GradeResult

	byQuestion := make(map[uint]SubmittedAnswer, len(answers))
	var unknown []SubmittedAnswer
	known := make(map[uint]bool, len(questions))
	for i := range questions {
		known[questions[i].ID] = true
	}
	for _, ans := range answers {
		if !known[ans.QuestionID] {
			unknown = append(unknown, ans)
			continue
		}
		// First answer for a question wins
		if _, dup := byQuestion[ans.QuestionID]; !dup {
			byQuestion[ans.QuestionID] = ans
		}
	}

	raw := 0.0
	result.Answers = make([]models.AnswerRecord, 0, len(questions)+len(unknown))
	for i := range questions {
		q := &questions[i]
		result.TotalMarks += q.Points

		record := models.AnswerRecord{QuestionID: q.ID, SelectedIndex: models.UnansweredIndex}
		if opts.Snapshots {
			record.Snapshot = q.Snapshot()
		}

		ans, ok := byQuestion[q.ID]
		index, answered := resolveSelection(q, ans)
		if !ok || !answered {
			record.Unanswered = true
			result.UnansweredCount++
			result.Answers = append(result.Answers, record)
			continue
		}

		record.SelectedIndex = index
		if index >= 0 {
			record.SelectedOptionID = q.Options[index].ID
		}

		if index >= 0 && index == q.CorrectIndex() {
			record.IsCorrect = true
			record.PointsEarned = float64(q.Points)
			result.CorrectCount++
		} else {
			if opts.NegativeMarking {
				record.PointsEarned = -NegativeMarkingFactor * float64(q.Points)
			}
			result.IncorrectCount++
		}
		raw += record.PointsEarned
		result.Answers = append(result.Answers, record)
	}

	for _, ans := range unknown {
		record := models.AnswerRecord{
			QuestionID:       ans.QuestionID,
			SelectedOptionID: ans.SelectedOptionID,
			SelectedIndex:    models.UnansweredIndex,
		}
		if ans.SelectedIndex != nil {
			record.SelectedIndex = *ans.SelectedIndex
		}
		result.Answers = append(result.Answers, record)
		result.UnknownCount++
	}

	if raw < 0 {
		absorbDeficit(result.Answers, -raw)
		raw = 0
	}

	result.Score = raw
	result.Percentage = Percentage(result.Score, result.TotalMarks)
	return result
}

// resolveSelection maps an answer to a canonical option index. Option ids take
// precedence over indexes. An unknown option id or an out of range index is an
// answered, wrong selection reported as index -1.
func resolveSelection(q *models.Question, ans SubmittedAnswer) (int, bool) {
	if ans.SelectedOptionID != "" {
		return q.OptionIndex(ans.SelectedOptionID), true
	}
	if ans.SelectedIndex == nil || *ans.SelectedIndex == models.UnansweredIndex {
		return models.UnansweredIndex, false
	}
	idx := *ans.SelectedIndex
	if idx < 0 || idx >= len(q.Options) {
		return -1, true
	}
	return idx, true
}

// absorbDeficit shrinks deductions from the last answer backwards until the
// total reaches zero, so the floored score still equals the per-answer sum.
func absorbDeficit(records []models.AnswerRecord, deficit float64) {
	for i := len(records) - 1; i >= 0 && deficit > 0; i-- {
		if records[i].PointsEarned >= 0 {
			continue
		}
		take := math.Min(-records[i].PointsEarned, deficit)
		records[i].PointsEarned += take
		deficit -= take
	}
}

// Percentage is round(score / total × 100), 0 for an empty assessment
func Percentage(score float64, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(score / float64(total) * 100))
}
