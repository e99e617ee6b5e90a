package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types published by the reservation feed.
const (
	TypeFeedUpdated   = "feed.updated"
	TypeFeedError     = "feed.error"
	TypeStatusChanged = "reservation.status_changed"
)

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// FeedError is the payload of TypeFeedError.
type FeedError struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// FeedUpdated is the payload of TypeFeedUpdated.
type FeedUpdated struct {
	Generation  uint64 `json:"generation"`
	CurrentPage int    `json:"currentPage"`
	Total       int    `json:"total"`
	Loaded      int    `json:"loaded"`
}

// StatusChanged is the payload of TypeStatusChanged.
type StatusChanged struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON encodes payload and publishes it under evType.
func (b *EventBus) PublishJSON(evType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: evType, Payload: data})
	return nil
}
