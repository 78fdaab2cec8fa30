package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	AssessmentPublished EventType = "assessment.published"
	AttemptStarted      EventType = "attempt.started"
	AttemptSubmitted    EventType = "attempt.submitted"
	IntegrityTabSwitch  EventType = "integrity.tab_switch"
)

const (
	eventSource  = "assessment-engine"
	eventVersion = "1.0"
)

// Event is the envelope every domain event is published in
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewEvent(eventType EventType, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher delivers events after the owning transaction commits.
// Publishing failures never undo the domain operation.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
