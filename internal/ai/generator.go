package ai

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// ErrNotConfigured is returned by a generator built without credentials
var ErrNotConfigured = errors.New("question generator is not configured")

// GenerateParams describes the questions to draft
type GenerateParams struct {
	Topic      string
	Count      int
	Difficulty models.DifficultyLevel
}

// QuestionGenerator drafts multiple choice questions. Drafts are untrusted
// and must pass the usual question validation before they are stored.
type QuestionGenerator interface {
	Generate(ctx context.Context, params GenerateParams) ([]validator.QuestionRequest, error)
	Enabled() bool
}
