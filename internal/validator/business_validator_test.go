package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

func validQuestion() QuestionRequest {
	return QuestionRequest{
		Stem: "2 + 2 = ?",
		Options: []OptionRequest{
			{Text: "3"},
			{Text: "4", IsCorrect: true},
		},
		Points: 1,
	}
}

func validExam() *AssessmentCreateRequest {
	return &AssessmentCreateRequest{
		Kind:     models.KindExam,
		CourseID: 10,
		AssessmentUpdateRequest: AssessmentUpdateRequest{
			Title:        "Midterm",
			Duration:     60,
			PassingMarks: 1,
			Questions:    []QuestionRequest{validQuestion(), validQuestion()},
		},
	}
}

func hasField(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateAssessmentCreate(t *testing.T) {
	v := New()
	lesson := uint(3)
	start := time.Now().Add(time.Hour)
	end := start.Add(-time.Minute)

	tests := []struct {
		name      string
		mutate    func(r *AssessmentCreateRequest)
		wantField string
	}{
		{"valid exam", func(r *AssessmentCreateRequest) {}, ""},
		{"valid quiz", func(r *AssessmentCreateRequest) {
			r.Kind = models.KindQuiz
			r.CourseID = 0
			r.LessonID = &lesson
		}, ""},
		{"unknown kind", func(r *AssessmentCreateRequest) { r.Kind = "survey" }, "kind"},
		{"exam without course", func(r *AssessmentCreateRequest) { r.CourseID = 0 }, "course_id"},
		{"quiz without lesson", func(r *AssessmentCreateRequest) { r.Kind = models.KindQuiz }, "lesson_id"},
		{"no questions", func(r *AssessmentCreateRequest) { r.Questions = nil }, "questions"},
		{"zero duration", func(r *AssessmentCreateRequest) { r.Duration = 0 }, "duration"},
		{"blank title", func(r *AssessmentCreateRequest) { r.Title = "" }, "title"},
		{"single option", func(r *AssessmentCreateRequest) {
			r.Questions[0].Options = r.Questions[0].Options[:1]
		}, "questions[0].options"},
		{"no correct option", func(r *AssessmentCreateRequest) {
			r.Questions[1].Options[1].IsCorrect = false
		}, "questions[1].options"},
		{"points out of range", func(r *AssessmentCreateRequest) { r.Questions[0].Points = 101 }, "questions[0].points"},
		{"inverted window", func(r *AssessmentCreateRequest) {
			r.StartDate = &start
			r.EndDate = &end
		}, "end_date"},
		{"passing above total", func(r *AssessmentCreateRequest) { r.PassingMarks = 3 }, "passing_marks"},
		{"duplicate option ids", func(r *AssessmentCreateRequest) {
			r.Questions[0].Options[0].ID = "a"
			r.Questions[0].Options[1].ID = "a"
		}, "questions[0].options[1].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validExam()
			req.Questions = []QuestionRequest{validQuestion(), validQuestion()}
			tt.mutate(req)

			errs := v.ValidateAssessmentCreate(req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}
			if !hasField(errs, tt.wantField) {
				t.Errorf("expected error on %s, got %+v", tt.wantField, errs)
			}
		})
	}
}

func TestTranslatedMessages(t *testing.T) {
	v := New()
	req := validExam()
	req.Duration = 0
	req.Questions[0].Points = 500

	errs := v.ValidateAssessmentCreate(req)
	for _, e := range errs {
		if e.Field == "questions[0].points" && !strings.Contains(e.Message, "between 1 and 100") {
			t.Errorf("unexpected message %q", e.Message)
		}
		if e.Field == "duration" && !strings.Contains(e.Message, "required") {
			t.Errorf("unexpected message %q", e.Message)
		}
	}
}

func TestValidateStatusTransition(t *testing.T) {
	v := New()

	tests := []struct {
		from, to  models.AssessmentStatus
		questions int
		ok        bool
	}{
		{models.StatusDraft, models.StatusPublished, 3, true},
		{models.StatusDraft, models.StatusPublished, 0, false},
		{models.StatusPublished, models.StatusDraft, 3, true},
		{models.StatusPublished, models.StatusArchived, 3, true},
		{models.StatusArchived, models.StatusPublished, 3, false},
		{models.StatusDraft, models.StatusDraft, 3, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			errs := v.ValidateStatusTransition(tt.from, tt.to, tt.questions)
			if (len(errs) == 0) != tt.ok {
				t.Errorf("expected ok=%v, got %v", tt.ok, errs)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	v := New()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	later := now.Add(2 * time.Hour)

	tests := []struct {
		name       string
		start, end *time.Time
		ok         bool
	}{
		{"no window", nil, nil, true},
		{"open ended", &past, nil, true},
		{"upcoming", &future, &later, true},
		{"already ended", &past, &past, false},
		{"inverted", &later, &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateWindow(tt.start, tt.end, now)
			if (len(errs) == 0) != tt.ok {
				t.Errorf("expected ok=%v, got %v", tt.ok, errs)
			}
		})
	}
}

func TestValidationErrorsErr(t *testing.T) {
	var empty ValidationErrors
	if empty.Err() != nil {
		t.Error("empty list should be a nil error")
	}
	errs := ValidationErrors{{Field: "title", Message: "is required"}}
	if errs.Err() == nil || !strings.Contains(errs.Error(), "title") {
		t.Errorf("unexpected error %v", errs.Err())
	}
}
