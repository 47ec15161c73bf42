package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"klemz/internal/events"
	"klemz/internal/models"
)

// reminderLead is how far ahead of the slot the heads-up goes out.
const reminderLead = 30 * time.Minute

// reminderSet tracks one pending timer per appointment.
type reminderSet struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newReminderSet() *reminderSet {
	return &reminderSet{timers: make(map[string]*time.Timer)}
}

func (r *reminderSet) schedule(appointmentID string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[appointmentID]; ok {
		t.Stop()
	}
	r.timers[appointmentID] = time.AfterFunc(d, func() {
		r.cancel(appointmentID)
		fn()
	})
}

func (r *reminderSet) cancel(appointmentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[appointmentID]; ok {
		t.Stop()
		delete(r.timers, appointmentID)
	}
}

func (r *reminderSet) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

func (r *reminderSet) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// WatchReminders schedules a heads-up message ahead of every booking made
// through this bot. Bookings are same-day only, so reminders never outlive
// the process by more than a day; cancellation and logout drop them.
func (b *Bot) WatchReminders(ctx context.Context, bus *events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, func(e events.Event) {
		if e.Appointment == nil {
			return
		}
		chatID, ok := b.state.chatFor(e.UserID)
		if !ok {
			return
		}
		wait, ok := untilReminder(e.Appointment.TimeOfDay, b.now(), reminderLead)
		if !ok {
			return
		}
		appt := *e.Appointment
		b.reminders.schedule(appt.ID, wait, func() {
			if ctx.Err() != nil {
				return
			}
			b.send(ctx, chatID, fmt.Sprintf(
				"⏰ Reminder: your appointment at %s is coming up. Code: %s", appt.TimeOfDay, appt.ID))
		})
	})
	bus.Subscribe(events.TypeBookingCancelled, func(e events.Event) {
		b.reminders.cancel(e.AppointmentID)
	})
	bus.Subscribe(events.TypeSessionLogout, func(events.Event) {
		b.reminders.cancelAll()
	})
}

// untilReminder converts a slot label like "10:00 AM" into the wait before
// the heads-up should fire today. Slots already inside the lead window get
// no reminder.
func untilReminder(timeOfDay string, now time.Time, lead time.Duration) (time.Duration, bool) {
	clock, err := time.Parse(models.TimeOfDayLayout, timeOfDay)
	if err != nil {
		return 0, false
	}
	y, m, d := now.Date()
	at := time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, now.Location())
	wait := at.Sub(now) - lead
	if wait <= 0 {
		return 0, false
	}
	return wait, true
}
