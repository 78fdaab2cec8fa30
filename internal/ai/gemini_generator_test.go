package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

func TestParseDrafts(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantCount   int
		wantErr     bool
		wantCorrect []int
	}{
		{
			name:        "plain json",
			raw:         `[{"stem":"2+2?","options":["3","4"],"correct_index":1,"points":2}]`,
			wantCount:   1,
			wantCorrect: []int{1},
		},
		{
			name:        "fenced json",
			raw:         "```json\n[{\"stem\":\"Capital of France?\",\"options\":[\"Paris\",\"Rome\",\"Oslo\"],\"correct_index\":0}]\n```",
			wantCount:   1,
			wantCorrect: []int{0},
		},
		{
			name:        "correct index out of range",
			raw:         `[{"stem":"x","options":["a","b"],"correct_index":5}]`,
			wantCount:   1,
			wantCorrect: []int{-1},
		},
		{
			name:    "not json",
			raw:     "Sure! Here are your questions",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDrafts(tt.raw, "")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d questions, want %d", len(got), tt.wantCount)
			}
			for i, q := range got {
				if q.Difficulty != models.DifficultyMedium {
					t.Errorf("difficulty = %q, want medium", q.Difficulty)
				}
				correct := -1
				for j, opt := range q.Options {
					if opt.IsCorrect {
						correct = j
					}
				}
				if correct != tt.wantCorrect[i] {
					t.Errorf("correct option = %d, want %d", correct, tt.wantCorrect[i])
				}
			}
		})
	}
}

func TestDisabledGenerator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := NewGeminiGenerator(context.Background(), "", "", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Enabled() {
		t.Fatal("generator without key should be disabled")
	}
	if _, err := g.Generate(context.Background(), GenerateParams{Topic: "go", Count: 1}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("got %v, want ErrNotConfigured", err)
	}
}
