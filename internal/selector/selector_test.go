package selector

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klemz/internal/models"
)

type memStager struct {
	staged []models.DraftBooking
	err    error
}

func (m *memStager) Stage(_ context.Context, d models.DraftBooking) error {
	if m.err != nil {
		return m.err
	}
	m.staged = append(m.staged, d)
	return nil
}

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newSelector(stager *memStager) *Selector {
	logger := zerolog.New(io.Discard)
	return New(stager, &logger).WithClock(func() time.Time { return testNow })
}

func providerWithBooking(times ...string) models.Provider {
	taken := make(map[string]struct{}, len(times))
	for _, v := range times {
		taken[v] = struct{}{}
	}
	return models.Provider{ID: "b1", FullName: "Kwame", UnavailableTimes: taken}
}

func TestChooseRequiresOpenPicker(t *testing.T) {
	sel := newSelector(&memStager{})
	_, err := sel.Choose(context.Background(), 7, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotPicking)
}

func TestChoose(t *testing.T) {
	tests := []struct {
		name    string
		taken   []string
		at      time.Time
		wantErr error
	}{
		{"free slot accepted", nil, testNow.Add(time.Hour), nil},
		{"taken slot rejected", []string{"10:00 AM"}, testNow.Add(time.Hour), ErrSlotTaken},
		{"other slot unaffected by conflict", []string{"10:00 AM"}, testNow.Add(2 * time.Hour), nil},
		{"slot equal to now accepted", nil, testNow, nil},
		{"past slot rejected", nil, testNow.Add(-time.Minute), ErrPastSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stager := &memStager{}
			sel := newSelector(stager)
			require.NoError(t, sel.Open(7, providerWithBooking(tt.taken...)))

			d, err := sel.Choose(context.Background(), 7, tt.at)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, stager.staged, "rejected selection must not stage")
				// A rejection keeps the picker open for another try.
				assert.Equal(t, StatePickerOpen, sel.State(7))
				return
			}

			require.NoError(t, err)
			require.Len(t, stager.staged, 1)
			assert.Equal(t, "b1", stager.staged[0].Provider.ID)
			assert.Equal(t, models.FormatTimeOfDay(tt.at), d.TimeOfDay)
			assert.Equal(t, "06/01/2025", d.Date)
			assert.Equal(t, StateIdle, sel.State(7))
		})
	}
}

func TestStageFailureKeepsPickerOpen(t *testing.T) {
	stager := &memStager{err: errors.New("store down")}
	sel := newSelector(stager)
	require.NoError(t, sel.Open(7, providerWithBooking()))

	_, err := sel.Choose(context.Background(), 7, testNow.Add(time.Hour))
	require.Error(t, err)
	assert.Equal(t, StatePickerOpen, sel.State(7))
}

func TestOpenAndClose(t *testing.T) {
	sel := newSelector(&memStager{})

	assert.Equal(t, StateIdle, sel.State(7))
	require.NoError(t, sel.Open(7, providerWithBooking()))
	assert.Equal(t, StatePickerOpen, sel.State(7))

	p, ok := sel.Provider(7)
	require.True(t, ok)
	assert.Equal(t, "b1", p.ID)

	sel.Close(7)
	assert.Equal(t, StateIdle, sel.State(7))
	_, ok = sel.Provider(7)
	assert.False(t, ok)
}

func TestPickersAreIndependentPerUser(t *testing.T) {
	sel := newSelector(&memStager{})
	require.NoError(t, sel.Open(1, providerWithBooking()))
	assert.Equal(t, StatePickerOpen, sel.State(1))
	assert.Equal(t, StateIdle, sel.State(2))
}
