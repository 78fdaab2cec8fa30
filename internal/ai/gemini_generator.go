package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// draft mirrors the JSON shape requested from the model
type draft struct {
	Stem        string   `json:"stem"`
	Options     []string `json:"options"`
	CorrectIdx  int      `json:"correct_index"`
	Explanation string   `json:"explanation"`
	Points      int      `json:"points"`
	Tags        []string `json:"tags"`
}

type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewGeminiGenerator returns a disabled generator when apiKey is empty
func NewGeminiGenerator(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, question generation is disabled")
		return &GeminiGenerator{logger: logger}, nil
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.4)

	return &GeminiGenerator{client: client, model: model, logger: logger}, nil
}

func (g *GeminiGenerator) Enabled() bool {
	return g != nil && g.model != nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, params GenerateParams) ([]validator.QuestionRequest, error) {
	if !g.Enabled() {
		return nil, ErrNotConfigured
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildPrompt(params)))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	questions, err := ParseDrafts(text.String(), params.Difficulty)
	if err != nil {
		return nil, err
	}
	g.logger.Info("Generated question drafts", "topic", params.Topic, "requested", params.Count, "received", len(questions))
	return questions, nil
}

func (g *GeminiGenerator) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func buildPrompt(params GenerateParams) string {
	difficulty := params.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	return fmt.Sprintf(`You write multiple choice questions for course assessments.
Write %d questions about: %s
Difficulty: %s
Each question has between 2 and 6 options and exactly one correct option.
Respond with a JSON array only. Each element has the fields:
"stem" (string), "options" (array of strings), "correct_index" (0-based integer),
"explanation" (string), "points" (integer 1-5), "tags" (array of short strings).`,
		params.Count, params.Topic, difficulty)
}

// ParseDrafts converts the model output into question requests. Code fences
// around the JSON are tolerated; an out of range correct_index leaves every
// option incorrect so validation rejects the draft.
func ParseDrafts(raw string, difficulty models.DifficultyLevel) ([]validator.QuestionRequest, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var drafts []draft
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &drafts); err != nil {
		return nil, fmt.Errorf("parse generated questions: %w", err)
	}

	questions := make([]validator.QuestionRequest, 0, len(drafts))
	for _, d := range drafts {
		q := validator.QuestionRequest{
			Stem:       strings.TrimSpace(d.Stem),
			Points:     d.Points,
			Difficulty: difficulty,
			Tags:       d.Tags,
		}
		if q.Difficulty == "" {
			q.Difficulty = models.DifficultyMedium
		}
		if expl := strings.TrimSpace(d.Explanation); expl != "" {
			q.Explanation = &expl
		}
		for i, text := range d.Options {
			q.Options = append(q.Options, validator.OptionRequest{
				Text:      text,
				IsCorrect: i == d.CorrectIdx,
			})
		}
		questions = append(questions, q)
	}
	return questions, nil
}
