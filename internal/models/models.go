// Package models holds the wire and domain types shared across the booking core.
package models

import "time"

// Time-of-day and date strings travel as opaque locale-formatted values and
// are compared byte-for-byte against remote-supplied ones. All formatting
// happens here so every caller produces identical strings.
const (
	TimeOfDayLayout = "03:04 PM"
	DateLayout      = "01/02/2006"
)

// FormatTimeOfDay renders t as a slot label, e.g. "10:00 AM".
func FormatTimeOfDay(t time.Time) string {
	return t.Format(TimeOfDayLayout)
}

// FormatDate renders t as a booking date, e.g. "06/01/2025".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// User is the minimal identity the core needs from the auth collaborator.
type User struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Provider is a bookable barber. UnavailableTimes is derived from today's
// appointments on every directory refresh and is never persisted.
type Provider struct {
	ID           string `json:"_id"`
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Seat         int    `json:"seat"`
	ProfileImage string `json:"profileImage,omitempty"`

	UnavailableTimes map[string]struct{} `json:"-"`
}

// Unavailable reports whether the given time-of-day is already booked for
// the provider, per the latest refresh.
func (p *Provider) Unavailable(timeOfDay string) bool {
	_, ok := p.UnavailableTimes[timeOfDay]
	return ok
}

// ServiceOffering is a haircut from the catalog. Immutable once fetched.
type ServiceOffering struct {
	ID    string  `json:"_id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ProviderRef is the embedded provider record the remote nests in
// appointment payloads.
type ProviderRef struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName,omitempty"`
}

// OfferingRef is the embedded haircut record nested in appointment payloads.
type OfferingRef struct {
	ID    string  `json:"_id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`
}

// Appointment is a persisted booking. Created only through confirmation,
// destroyed only through explicit cancellation.
type Appointment struct {
	ID        string      `json:"_id"`
	Provider  ProviderRef `json:"barberID"`
	UserID    string      `json:"userID,omitempty"`
	Offering  OfferingRef `json:"haircutID"`
	TimeOfDay string      `json:"time"`
	Date      string      `json:"date"`
	CreatedAt time.Time   `json:"createdAt"`
}

// DraftBooking is an in-progress slot selection. It has no identity of its
// own; it exists only between slot acceptance and confirmation. The owning
// user is implicit: one draft per device, resolved from the session at
// confirmation time.
type DraftBooking struct {
	Provider  Provider
	TimeOfDay string
	Date      string
}
