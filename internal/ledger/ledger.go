// Package ledger is the read view over a user's own appointments, split into
// today's bookings and full history, with cancellation.
package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"klemz/internal/events"
	"klemz/internal/gateway"
	"klemz/internal/metrics"
	"klemz/internal/models"
)

// Gateway is the slice of the appointment client the ledger uses.
type Gateway interface {
	ListByUser(ctx context.Context, userID string) ([]models.Appointment, error)
	Remove(ctx context.Context, appointmentID string) error
}

// EventPublisher announces cancellations.
type EventPublisher interface {
	Publish(event events.Event)
}

// Ledger partitions a user's appointments. "Bookings" are the appointments
// created today and are a subset of "history", which is everything sorted by
// creation time descending.
type Ledger struct {
	gw     Gateway
	bus    EventPublisher
	logger *zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	userID   string
	bookings []models.Appointment
	history  []models.Appointment
}

// New constructs an empty ledger.
func New(gw Gateway, bus EventPublisher, logger *zerolog.Logger) *Ledger {
	return &Ledger{gw: gw, bus: bus, logger: logger, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Refresh re-reads the user's appointments and rebuilds both views. The
// optimistic removals Cancel performs are reconciled with the remote here,
// on the next screen focus.
func (l *Ledger) Refresh(ctx context.Context, userID string) error {
	appts, err := l.gw.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	history := append([]models.Appointment(nil), appts...)
	sort.Slice(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})

	today := l.now()
	var bookings []models.Appointment
	for _, a := range history {
		if models.SameDay(a.CreatedAt, today) {
			bookings = append(bookings, a)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.userID = userID
	l.history = history
	l.bookings = bookings
	return nil
}

// Bookings returns today's bookings from the last refresh.
func (l *Ledger) Bookings() []models.Appointment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Appointment(nil), l.bookings...)
}

// History returns all appointments from the last refresh, newest first.
func (l *Ledger) History() []models.Appointment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Appointment(nil), l.history...)
}

// HasBookingToday reports whether the user already booked today. A user
// with an active booking cannot start another flow until cancelling it.
func (l *Ledger) HasBookingToday() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bookings) > 0
}

// Cancel deletes the appointment remotely and, on success only, removes it
// from the local bookings view. History is left for the next refresh. Any
// failure, NotFoundError included, leaves local state untouched and is
// surfaced to the caller.
func (l *Ledger) Cancel(ctx context.Context, appointmentID string) error {
	if err := l.gw.Remove(ctx, appointmentID); err != nil {
		var nfErr *gateway.NotFoundError
		if errors.As(err, &nfErr) {
			l.logger.Debug().Str("appointment", appointmentID).Msg("cancellation target already gone")
		}
		return err
	}

	l.mu.Lock()
	kept := l.bookings[:0]
	for _, a := range l.bookings {
		if a.ID != appointmentID {
			kept = append(kept, a)
		}
	}
	l.bookings = kept
	userID := l.userID
	l.mu.Unlock()

	metrics.IncBookingCancelled()
	l.logger.Info().Str("appointment", appointmentID).Msg("booking cancelled")

	if l.bus != nil {
		l.bus.Publish(events.Event{
			Type:          events.TypeBookingCancelled,
			AppointmentID: appointmentID,
			UserID:        userID,
		})
	}
	return nil
}
