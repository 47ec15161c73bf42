package directory

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klemz/internal/events"
	"klemz/internal/models"
)

type fakeGateway struct {
	providers    []models.Provider
	providersErr error
	today        []models.Appointment
	calls        int
}

func (f *fakeGateway) ListProviders(context.Context) ([]models.Provider, error) {
	f.calls++
	return f.providers, f.providersErr
}

func (f *fakeGateway) ListToday(context.Context) []models.Appointment {
	return f.today
}

func newDirectory(gw Gateway) *Directory {
	logger := zerolog.New(io.Discard)
	return New(gw, &logger)
}

func appt(barberID, timeOfDay string) models.Appointment {
	return models.Appointment{Provider: models.ProviderRef{ID: barberID}, TimeOfDay: timeOfDay}
}

func TestRefreshAnnotatesUnavailableTimes(t *testing.T) {
	gw := &fakeGateway{
		providers: []models.Provider{{ID: "b1"}, {ID: "b2"}},
		today: []models.Appointment{
			appt("b1", "10:00 AM"),
			appt("b1", "02:00 PM"),
			appt("b2", "11:00 AM"),
			appt("", "09:00 AM"), // no provider reference, ignored
		},
	}
	dir := newDirectory(gw)

	providers, err := dir.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, map[string]struct{}{"10:00 AM": {}, "02:00 PM": {}}, providers[0].UnavailableTimes)
	assert.Equal(t, map[string]struct{}{"11:00 AM": {}}, providers[1].UnavailableTimes)
}

func TestRefreshNeverAccumulatesStaleSlots(t *testing.T) {
	gw := &fakeGateway{
		providers: []models.Provider{{ID: "b1"}},
		today:     []models.Appointment{appt("b1", "10:00 AM")},
	}
	dir := newDirectory(gw)

	_, err := dir.Refresh(context.Background())
	require.NoError(t, err)
	p, ok := dir.Provider("b1")
	require.True(t, ok)
	assert.True(t, p.Unavailable("10:00 AM"))

	// The 10:00 booking was cancelled elsewhere; a refresh must drop it.
	gw.today = []models.Appointment{appt("b1", "03:00 PM")}
	_, err = dir.Refresh(context.Background())
	require.NoError(t, err)

	p, ok = dir.Provider("b1")
	require.True(t, ok)
	assert.False(t, p.Unavailable("10:00 AM"))
	assert.True(t, p.Unavailable("03:00 PM"))
}

func TestRefreshDegradesWithoutTodayData(t *testing.T) {
	gw := &fakeGateway{providers: []models.Provider{{ID: "b1"}}, today: nil}
	dir := newDirectory(gw)

	providers, err := dir.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	// No known conflicts: every slot selectable.
	assert.Empty(t, providers[0].UnavailableTimes)
	assert.NotNil(t, providers[0].UnavailableTimes)
}

func TestRefreshProviderFetchFailureAborts(t *testing.T) {
	gw := &fakeGateway{providersErr: errors.New("boom")}
	dir := newDirectory(gw)

	_, err := dir.Refresh(context.Background())
	require.Error(t, err)
	assert.Empty(t, dir.Providers())
}

func TestWatchBookingsTriggersRefresh(t *testing.T) {
	gw := &fakeGateway{providers: []models.Provider{{ID: "b1"}}}
	dir := newDirectory(gw)
	bus := events.NewBus()
	dir.WatchBookings(bus)

	bus.Publish(events.Event{Type: events.TypeBookingCreated})
	bus.Publish(events.Event{Type: events.TypeBookingCancelled})

	assert.Equal(t, 2, gw.calls)
	assert.Len(t, dir.Providers(), 1)
}
