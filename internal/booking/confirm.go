// Package booking binds a staged draft to a chosen service offering and
// submits the creation request.
package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"klemz/internal/events"
	"klemz/internal/gateway"
	"klemz/internal/metrics"
	"klemz/internal/models"
	"klemz/internal/session"
)

// ErrNoOffering fails a submit before any gateway call is made.
var ErrNoOffering = errors.New("please select a haircut before confirming")

// ErrNoDraft means nothing is staged; the user must pick a slot first.
var ErrNoDraft = errors.New("no slot selected, please pick a barber and time first")

// Creator is the slice of the gateway the confirmer uses.
type Creator interface {
	Create(ctx context.Context, req gateway.CreateRequest) (*models.Appointment, error)
}

// DraftStore reads and clears the staged selection.
type DraftStore interface {
	Read(ctx context.Context) (*models.DraftBooking, error)
	Clear(ctx context.Context) error
}

// Identity resolves the owning user.
type Identity interface {
	Current(ctx context.Context) (*session.Session, error)
}

// EventPublisher announces successful creations.
type EventPublisher interface {
	Publish(event events.Event)
}

// Confirmer runs the confirmation step. All bookings are for the current
// date; the remote only honors same-day creation.
type Confirmer struct {
	gw     Creator
	drafts DraftStore
	ids    Identity
	bus    EventPublisher
	logger *zerolog.Logger
}

// NewConfirmer wires a confirmer.
func NewConfirmer(gw Creator, drafts DraftStore, ids Identity, bus EventPublisher, logger *zerolog.Logger) *Confirmer {
	return &Confirmer{gw: gw, drafts: drafts, ids: ids, bus: bus, logger: logger}
}

// Confirm submits the staged draft with the chosen offering. Exactly one
// create call is issued per invocation. On success the draft is cleared and
// booking.created is published. A remote rejection (ValidationError, e.g.
// the slot was taken after all) leaves the draft intact so the user can pick
// another slot; its message is returned verbatim.
func (c *Confirmer) Confirm(ctx context.Context, offering *models.ServiceOffering) (*models.Appointment, error) {
	if offering == nil || offering.ID == "" {
		return nil, ErrNoOffering
	}

	d, err := c.drafts.Read(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNoDraft
	}

	sess, err := c.ids.Current(ctx)
	if err != nil {
		return nil, err
	}

	appt, err := c.gw.Create(ctx, gateway.CreateRequest{
		ProviderID:     d.Provider.ID,
		UserID:         sess.User.ID,
		OfferingID:     offering.ID,
		TimeOfDay:      d.TimeOfDay,
		Date:           d.Date,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		var vErr *gateway.ValidationError
		if errors.As(err, &vErr) {
			metrics.IncBookingCreated("rejected")
			c.logger.Info().Str("reason", vErr.Message).Msg("booking rejected by remote")
		} else {
			metrics.IncBookingCreated("error")
		}
		return nil, err
	}

	if err := c.drafts.Clear(ctx); err != nil {
		// The booking exists remotely; a lingering draft is only cosmetic.
		c.logger.Warn().Err(err).Msg("clearing draft after successful booking failed")
	}

	metrics.IncBookingCreated("created")
	c.logger.Info().
		Str("appointment", appt.ID).
		Str("barber", d.Provider.ID).
		Str("time", d.TimeOfDay).
		Str("date", d.Date).
		Msg("booking confirmed")

	if c.bus != nil {
		c.bus.Publish(events.Event{
			Type:        events.TypeBookingCreated,
			Appointment: appt,
			UserID:      sess.User.ID,
		})
	}
	return appt, nil
}
