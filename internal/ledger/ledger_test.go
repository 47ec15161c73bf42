package ledger

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klemz/internal/events"
	"klemz/internal/gateway"
	"klemz/internal/models"
)

var testNow = time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

type fakeGateway struct {
	appts     []models.Appointment
	listErr   error
	removeErr error
	removed   []string
}

func (f *fakeGateway) ListByUser(_ context.Context, _ string) ([]models.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.appts, nil
}

func (f *fakeGateway) Remove(_ context.Context, id string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, id)
	return nil
}

func newLedger(gw *fakeGateway, bus *events.Bus) *Ledger {
	logger := zerolog.New(io.Discard)
	return New(gw, bus, &logger).WithClock(func() time.Time { return testNow })
}

func TestRefreshPartitionsAndSorts(t *testing.T) {
	gw := &fakeGateway{appts: []models.Appointment{
		{ID: "old", CreatedAt: testNow.AddDate(0, 0, -1)},
		{ID: "morning", CreatedAt: testNow.Add(-4 * time.Hour)},
		{ID: "noon", CreatedAt: testNow.Add(-2 * time.Hour)},
	}}
	l := newLedger(gw, nil)
	require.NoError(t, l.Refresh(context.Background(), "u1"))

	history := l.History()
	require.Len(t, history, 3)
	assert.Equal(t, "noon", history[0].ID)
	assert.Equal(t, "morning", history[1].ID)
	assert.Equal(t, "old", history[2].ID)

	bookings := l.Bookings()
	require.Len(t, bookings, 2)
	assert.Equal(t, "noon", bookings[0].ID)
	assert.Equal(t, "morning", bookings[1].ID)
	assert.True(t, l.HasBookingToday())
}

func TestRefreshFailureKeepsLastView(t *testing.T) {
	gw := &fakeGateway{appts: []models.Appointment{
		{ID: "a1", CreatedAt: testNow},
	}}
	l := newLedger(gw, nil)
	require.NoError(t, l.Refresh(context.Background(), "u1"))

	gw.listErr = &gateway.NetworkError{Op: "list"}
	require.Error(t, l.Refresh(context.Background(), "u1"))
	assert.Len(t, l.Bookings(), 1, "stale view should survive a failed refresh")
}

func TestHasBookingTodayIgnoresHistory(t *testing.T) {
	gw := &fakeGateway{appts: []models.Appointment{
		{ID: "old", CreatedAt: testNow.AddDate(0, 0, -3)},
	}}
	l := newLedger(gw, nil)
	require.NoError(t, l.Refresh(context.Background(), "u1"))

	assert.False(t, l.HasBookingToday())
	assert.Len(t, l.History(), 1)
}

func TestCancelRemovesExactlyTheTarget(t *testing.T) {
	gw := &fakeGateway{appts: []models.Appointment{
		{ID: "a1", CreatedAt: testNow},
		{ID: "a2", CreatedAt: testNow},
	}}
	bus := events.NewBus()
	var cancelled []events.Event
	bus.Subscribe(events.TypeBookingCancelled, func(e events.Event) {
		cancelled = append(cancelled, e)
	})

	l := newLedger(gw, bus)
	require.NoError(t, l.Refresh(context.Background(), "u1"))
	require.NoError(t, l.Cancel(context.Background(), "a1"))

	bookings := l.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, "a2", bookings[0].ID)
	assert.Equal(t, []string{"a1"}, gw.removed)

	require.Len(t, cancelled, 1)
	assert.Equal(t, "a1", cancelled[0].AppointmentID)
	assert.Equal(t, "u1", cancelled[0].UserID)

	// History reconciles on the next refresh, not eagerly.
	assert.Len(t, l.History(), 2)
}

func TestCancelFailureLeavesLocalStateUntouched(t *testing.T) {
	gw := &fakeGateway{appts: []models.Appointment{
		{ID: "a1", CreatedAt: testNow},
	}}
	l := newLedger(gw, nil)
	require.NoError(t, l.Refresh(context.Background(), "u1"))

	gw.removeErr = &gateway.NotFoundError{ID: "a1"}
	err := l.Cancel(context.Background(), "a1")

	var nfErr *gateway.NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "a1", nfErr.ID)
	assert.Len(t, l.Bookings(), 1)
}
