package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lingolab/vocab-srs/internal/domain"
)

// Event types emitted by the repetition engine.
const (
	// TypeRecordCreated is emitted when a review record is inserted.
	TypeRecordCreated = "review_record.created"

	// TypeReviewApplied is emitted after a review outcome has been persisted.
	TypeReviewApplied = "review.applied"

	// TypeReviewConflict is emitted each time a conditional update loses a race.
	TypeReviewConflict = "review.conflict"
)

// ReviewEvent describes something that happened to a review record.
// Fields that do not apply to an event type are left zero.
type ReviewEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	RecordID uuid.UUID `json:"record_id"`
	UserID   int64     `json:"user_id"`
	ListID   int64     `json:"list_id"`

	Outcome              domain.ReviewOutcome `json:"outcome,omitempty"`
	Status               domain.ReviewStatus  `json:"status,omitempty"`
	PreviousIntervalDays int                  `json:"previous_interval_days,omitempty"`
	NewIntervalDays      int                  `json:"new_interval_days,omitempty"`

	// Attempt is the 1-based attempt number of the read-modify-write cycle
	Attempt int `json:"attempt,omitempty"`

	// OccurredAt is when the event happened, according to the emitter's clock
	OccurredAt time.Time `json:"occurred_at"`
}

// NewReviewEvent creates a ReviewEvent of the given type for record.
func NewReviewEvent(eventType string, record *domain.ReviewRecord, occurredAt time.Time) *ReviewEvent {
	event := &ReviewEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: occurredAt,
	}
	if record != nil {
		event.RecordID = record.ID
		event.UserID = record.UserID
		event.ListID = record.ListID
		event.Status = record.Status
		event.NewIntervalDays = record.IntervalDays
	}
	return event
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ReviewEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *ReviewEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *ReviewEvent) error { return nil }
