// Package directory aggregates providers with the current day's already
// booked time slots.
package directory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"klemz/internal/events"
	"klemz/internal/models"
)

// Gateway is the slice of the appointment client the directory uses.
type Gateway interface {
	ListProviders(ctx context.Context) ([]models.Provider, error)
	ListToday(ctx context.Context) []models.Appointment
}

// Directory holds the current provider list. UnavailableTimes is recomputed
// from scratch on every refresh; stale entries from a prior day or a since
// cancelled booking never survive.
type Directory struct {
	gw     Gateway
	logger *zerolog.Logger

	mu        sync.Mutex
	gen       string
	providers []models.Provider
}

// New constructs an empty directory.
func New(gw Gateway, logger *zerolog.Logger) *Directory {
	return &Directory{gw: gw, logger: logger}
}

// WatchBookings re-refreshes the directory whenever the user's own booking
// state changes, so freed or newly taken slots show up immediately.
func (d *Directory) WatchBookings(bus *events.Bus) {
	refresh := func(events.Event) {
		if _, err := d.Refresh(context.Background()); err != nil {
			d.logger.Warn().Err(err).Msg("directory refresh after booking change failed")
		}
	}
	bus.Subscribe(events.TypeBookingCreated, refresh)
	bus.Subscribe(events.TypeBookingCancelled, refresh)
}

// Refresh fetches providers and today's appointments, then recomputes each
// provider's unavailable times as a pure function of both results. The
// provider fetch failing aborts the refresh; the today fetch is best-effort
// and degrades to "no known conflicts".
//
// Refreshes can overlap when a new one starts while an older response is in
// flight; each refresh carries a generation token and only the latest
// generation is allowed to publish its result.
func (d *Directory) Refresh(ctx context.Context) ([]models.Provider, error) {
	gen := uuid.NewString()
	d.mu.Lock()
	d.gen = gen
	d.mu.Unlock()

	providers, err := d.gw.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	today := d.gw.ListToday(ctx)

	annotated := annotate(providers, today)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		// A newer refresh superseded this one while we were waiting on the
		// network; its result wins.
		d.logger.Debug().Msg("discarding stale directory refresh")
		return d.snapshotLocked(), nil
	}
	d.providers = annotated
	return d.snapshotLocked(), nil
}

// Providers returns the latest refreshed list.
func (d *Directory) Providers() []models.Provider {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Provider returns a provider by id from the latest refresh.
func (d *Directory) Provider(id string) (*models.Provider, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.providers {
		if d.providers[i].ID == id {
			p := d.providers[i]
			return &p, true
		}
	}
	return nil, false
}

func (d *Directory) snapshotLocked() []models.Provider {
	out := make([]models.Provider, len(d.providers))
	copy(out, d.providers)
	return out
}

// annotate builds fresh unavailable-time sets. It never consults prior
// state, so the result is exactly {appt.time : appt.barber == provider}.
func annotate(providers []models.Provider, today []models.Appointment) []models.Provider {
	byProvider := make(map[string]map[string]struct{})
	for _, appt := range today {
		id := appt.Provider.ID
		if id == "" {
			continue
		}
		if byProvider[id] == nil {
			byProvider[id] = make(map[string]struct{})
		}
		byProvider[id][appt.TimeOfDay] = struct{}{}
	}

	out := make([]models.Provider, len(providers))
	for i, p := range providers {
		p.UnavailableTimes = byProvider[p.ID]
		if p.UnavailableTimes == nil {
			p.UnavailableTimes = map[string]struct{}{}
		}
		out[i] = p
	}
	return out
}
