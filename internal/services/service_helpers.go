package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
)

// serviceCore is what every stateful service shares
type serviceCore struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher
	cache     *cache.CacheManager
	now       func() time.Time
}

func (c *serviceCore) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

func (c *serviceCore) clock() time.Time {
	if c.now != nil {
		return c.now().UTC()
	}
	return time.Now().UTC()
}

// publish runs after commit; a failed publish is logged and swallowed
func (c *serviceCore) publish(ctx context.Context, eventType events.EventType, data map[string]any) {
	if c.publisher == nil {
		return
	}
	event := events.NewEvent(eventType, data)
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("Failed to publish event", "event_type", eventType, "event_id", event.ID, "error", err)
	}
}

// invalidate drops cached views of an assessment once a transaction committed
func (c *serviceCore) invalidate(ctx context.Context, a *models.Assessment) {
	if c.cache == nil || a == nil {
		return
	}
	cache.InvalidateAssessmentCache(ctx, c.cache, a.ID, a.InstructorID)
}

// loadAssessment reads the definition with its questions. A nil tx reads
// through the definition cache.
func (c *serviceCore) loadAssessment(ctx context.Context, tx *gorm.DB, id uint) (*models.Assessment, error) {
	a, err := c.repo.Assessment().GetByIDWithQuestions(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to load assessment: %w", err)
	}
	return a, nil
}

func (c *serviceCore) loadAttempt(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	attempt, err := c.repo.Attempt().GetByID(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return attempt, nil
}

// requireOwner rejects actors that neither own the assessment nor are admins
func requireOwner(actor Actor, a *models.Assessment, action string) error {
	if actor.Owns(a) {
		return nil
	}
	return NewPermissionError(actor.ID, "assessment", a.ID, action, "not the owner of this assessment")
}

// RecomputeDerivedFields recalculates totals from the question list. Client
// supplied totals are never trusted.
func RecomputeDerivedFields(a *models.Assessment) {
	total := 0
	for _, q := range a.Questions {
		total += q.Points
	}
	a.TotalMarks = total
	a.PassingPercentage = 0
	if total > 0 {
		a.PassingPercentage = int(math.Round(float64(a.PassingMarks) / float64(total) * 100))
	}
}

// buildQuestions converts validated requests into stored questions in
// request order, starting at position start.
func buildQuestions(reqs []QuestionRequest, start int) []models.Question {
	questions := make([]models.Question, 0, len(reqs))
	for i, req := range reqs {
		q := models.Question{
			Position:    start + i,
			Stem:        req.Stem,
			Options:     buildOptions(req),
			Explanation: req.Explanation,
			Points:      req.Points,
			Difficulty:  req.Difficulty,
			Tags:        req.Tags,
		}
		if q.Points == 0 {
			q.Points = 1
		}
		if q.Difficulty == "" {
			q.Difficulty = models.DifficultyMedium
		}
		questions = append(questions, q)
	}
	return questions
}

func buildOptions(req QuestionRequest) []models.Option {
	options := make([]models.Option, len(req.Options))
	for i, opt := range req.Options {
		id := opt.ID
		if id == "" {
			id = uuid.NewString()
		}
		options[i] = models.Option{ID: id, Text: opt.Text, IsCorrect: models.BoolPtr(opt.IsCorrect)}
	}
	return options
}

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }
