package events

import (
	"sync"
	"time"

	"giftwrap/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	WorkItemUpdated      = "work_item.updated"
	ScheduleUpdated      = "schedule.updated"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Booking   *model.Booking      `json:"booking,omitempty"`
	From      model.BookingStatus `json:"from,omitempty"`
	To        model.BookingStatus `json:"to,omitempty"`
	Item      *model.WorkItem     `json:"item,omitempty"`
	WorkerID  string              `json:"worker_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every event type listed.
func (b *EventBus) SubscribeAll(handler EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type. Handler errors are logged
// and never reach the publisher.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; subscribers hand off slow work themselves.
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event_type", event.Type).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}
