package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// ErrNilEvent is returned when a nil event is emitted.
var ErrNilEvent = errors.New("event is nil")

type subscription struct {
	handler EventHandler
	// types is empty for handlers that receive every event.
	types []string
}

func (s subscription) wants(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// Bus delivers review events synchronously to the handlers subscribed to
// their type, in subscription order.
type Bus struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *slog.Logger
}

// Verify interface compliance at compile time
var _ EventEmitter = (*Bus)(nil)

// NewBus creates an empty Bus. If logger is nil, a default logger will be used.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With(slog.String("component", "event_bus"))}
}

// Subscribe registers handler for the given event types, or for every type
// when none are given.
func (b *Bus) Subscribe(handler EventHandler, types ...string) {
	if handler == nil {
		panic("handler cannot be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscription{handler: handler, types: slices.Clone(types)})
}

// EmitEvent implements EventEmitter. Every matching handler sees the event
// even when an earlier one fails; the failures are joined.
func (b *Bus) EmitEvent(ctx context.Context, event *ReviewEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.RLock()
	subs := b.subscriptions
	b.mu.RUnlock()

	var errs []error
	delivered := 0
	for _, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++
		if err := sub.handler.HandleEvent(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				slog.String("event_type", event.Type),
				slog.String("record_id", event.RecordID.String()),
				slog.Int64("user_id", event.UserID),
				slog.Int64("list_id", event.ListID),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s handler %T: %w", event.Type, sub.handler, err))
		}
	}

	b.logger.Debug("event delivered",
		slog.String("event_type", event.Type),
		slog.Int("handlers", delivered))
	return errors.Join(errs...)
}
