package services

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// AttemptPolicy holds the rules that differ between exams and lesson quizzes.
// Delivery and grading are shared; only these decisions vary by kind.
type AttemptPolicy interface {
	Kind() models.AssessmentKind
	CheckWindow(a *models.Assessment, now time.Time) error
	RequiresEnrollment(a *models.Assessment) bool
	Passed(a *models.Assessment, result *GradeResult) bool
	KeepsSnapshots() bool
	TracksIntegrity() bool
	RanksPercentile() bool
}

func PolicyFor(kind models.AssessmentKind) AttemptPolicy {
	if kind == models.KindQuiz {
		return quizPolicy{}
	}
	return examPolicy{}
}

type examPolicy struct{}

func (examPolicy) Kind() models.AssessmentKind { return models.KindExam }

// CheckWindow only applies when a window was supplied
func (examPolicy) CheckWindow(a *models.Assessment, now time.Time) error {
	if !a.HasWindow() || a.InWindow(now) {
		return nil
	}
	if a.StartDate != nil && now.Before(*a.StartDate) {
		return NewPolicyViolation(ReasonOutsideWindow,
			fmt.Sprintf("assessment opens at %s", a.StartDate.UTC().Format(time.RFC3339)))
	}
	return NewPolicyViolation(ReasonOutsideWindow, "assessment window has closed")
}

func (examPolicy) RequiresEnrollment(*models.Assessment) bool { return true }

// Passed compares raw marks for exams
func (examPolicy) Passed(a *models.Assessment, result *GradeResult) bool {
	return result.Score >= float64(a.PassingMarks)
}

func (examPolicy) KeepsSnapshots() bool  { return true }
func (examPolicy) TracksIntegrity() bool { return true }
func (examPolicy) RanksPercentile() bool { return true }

type quizPolicy struct{}

func (quizPolicy) Kind() models.AssessmentKind { return models.KindQuiz }

// Quizzes live inside a lesson and have no scheduling window
func (quizPolicy) CheckWindow(*models.Assessment, time.Time) error { return nil }

func (quizPolicy) RequiresEnrollment(a *models.Assessment) bool { return !a.IsFree }

// Passed compares the rounded percentage for quizzes
func (quizPolicy) Passed(a *models.Assessment, result *GradeResult) bool {
	return result.Percentage >= a.PassingPercentage
}

func (quizPolicy) KeepsSnapshots() bool  { return false }
func (quizPolicy) TracksIntegrity() bool { return false }
func (quizPolicy) RanksPercentile() bool { return false }

// CheckEligibility applies the retake policy to the number of attempts the
// student already has. The unique attempt index remains the real guarantee.
func CheckEligibility(a *models.Assessment, priorCount int64) error {
	if !a.AllowRetake {
		if priorCount > 0 {
			return NewPolicyViolation(ReasonRetakeNotAllowed, "retakes are not allowed for this assessment")
		}
		return nil
	}
	if priorCount >= int64(a.MaxAttempts) {
		return NewPolicyViolation(ReasonMaxAttemptsReached,
			fmt.Sprintf("maximum of %d attempts reached", a.MaxAttempts))
	}
	return nil
}

// RemainingAttempts is what CheckEligibility would still allow
func RemainingAttempts(a *models.Assessment, priorCount int64) int {
	limit := int64(1)
	if a.AllowRetake {
		limit = int64(a.MaxAttempts)
	}
	return int(max(0, limit-priorCount))
}
