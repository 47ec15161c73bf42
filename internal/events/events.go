// Package events provides in-process pub/sub for booking lifecycle events.
package events

import (
	"sync"
	"time"

	"klemz/internal/models"
)

// Event types published by the booking core.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeSessionLogout    = "session.logout"
)

// Event is a lightweight domain event.
type Event struct {
	Type          string
	Appointment   *models.Appointment // set for booking.created
	AppointmentID string              // set for booking.cancelled
	UserID        string
	CreatedAt     time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus is an in-process event bus. Handlers run synchronously on the
// publisher's goroutine; the caller decides the concurrency model.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
