package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimeOfDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"morning", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), "10:00 AM"},
		{"single digit hour pads", time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), "09:30 AM"},
		{"afternoon", time.Date(2025, 6, 1, 15, 45, 0, 0, time.UTC), "03:45 PM"},
		{"midnight", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), "12:00 AM"},
		{"noon", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), "12:00 PM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeOfDay(tt.in))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "06/01/2025", FormatDate(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "12/31/2024", FormatDate(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)))
}

func TestSameDay(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC)
	assert.True(t, SameDay(base, time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)))
	assert.False(t, SameDay(base, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	assert.False(t, SameDay(base, time.Date(2024, 6, 1, 0, 0, 1, 0, time.UTC)))
}

func TestAppointmentWireShape(t *testing.T) {
	raw := `{
		"_id": "a1",
		"barberID": {"_id": "b1", "fullName": "Kwame"},
		"haircutID": {"name": "Fade", "price": 20},
		"time": "10:00 AM",
		"date": "06/01/2025",
		"createdAt": "2025-06-01T08:30:00Z"
	}`

	var appt Appointment
	require.NoError(t, json.Unmarshal([]byte(raw), &appt))
	assert.Equal(t, "a1", appt.ID)
	assert.Equal(t, "b1", appt.Provider.ID)
	assert.Equal(t, "Kwame", appt.Provider.FullName)
	assert.Equal(t, "Fade", appt.Offering.Name)
	assert.Equal(t, 20.0, appt.Offering.Price)
	assert.Equal(t, "10:00 AM", appt.TimeOfDay)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC), appt.CreatedAt)
}

func TestProviderUnavailable(t *testing.T) {
	p := Provider{UnavailableTimes: map[string]struct{}{"10:00 AM": {}}}
	assert.True(t, p.Unavailable("10:00 AM"))
	assert.False(t, p.Unavailable("11:00 AM"))

	var empty Provider
	assert.False(t, empty.Unavailable("10:00 AM"))
}
