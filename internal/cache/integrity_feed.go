package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// IntegrityNotice is the payload pushed to proctors watching an assessment.
type IntegrityNotice struct {
	Type           string    `json:"type"`
	AttemptID      uint      `json:"attempt_id"`
	AssessmentID   uint      `json:"assessment_id"`
	StudentID      string    `json:"student_id"`
	TabSwitchCount int       `json:"tab_switch_count"`
	At             time.Time `json:"at"`
}

// IntegrityFeed fans integrity events out over Redis pub/sub so every replica
// can serve live proctor connections.
type IntegrityFeed struct {
	client *redis.Client
	logger *slog.Logger
}

func NewIntegrityFeed(client *redis.Client, logger *slog.Logger) *IntegrityFeed {
	return &IntegrityFeed{client: client, logger: logger}
}

func IntegrityChannel(assessmentID uint) string {
	return fmt.Sprintf("integrity:assessment:%d", assessmentID)
}

// Publish is best effort; a missing Redis leaves the feed silent.
func (f *IntegrityFeed) Publish(ctx context.Context, notice IntegrityNotice) {
	if f == nil || f.client == nil {
		return
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		f.logger.Error("Failed to marshal integrity notice", "error", err)
		return
	}
	if err := f.client.Publish(ctx, IntegrityChannel(notice.AssessmentID), payload).Err(); err != nil {
		f.logger.Warn("Failed to publish integrity notice",
			"error", err,
			"attempt_id", notice.AttemptID)
	}
}

// Subscribe streams notices for one assessment until ctx is done. The returned
// channel is closed when the subscription ends.
func (f *IntegrityFeed) Subscribe(ctx context.Context, assessmentID uint) (<-chan IntegrityNotice, error) {
	if f == nil || f.client == nil {
		return nil, ErrCacheNotAvailable
	}

	sub := f.client.Subscribe(ctx, IntegrityChannel(assessmentID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe integrity feed: %w", err)
	}

	out := make(chan IntegrityNotice)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var notice IntegrityNotice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					f.logger.Warn("Dropping malformed integrity notice", "error", err)
					continue
				}
				select {
				case out <- notice:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
