// Package audit keeps a local trail of booking lifecycle events and exports
// appointment history to Excel.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"

	"klemz/internal/events"
)

// Record is one audit trail row.
type Record struct {
	ID            string
	Event         string
	AppointmentID string
	ProviderID    string
	UserID        string
	TimeOfDay     string
	Date          string
	CreatedAt     time.Time
}

// Trail is a sqlite-backed audit log.
type Trail struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// NewTrail opens (and if needed creates) the trail at path.
func NewTrail(path string, logger *zerolog.Logger) (*Trail, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id             TEXT PRIMARY KEY,
			event          TEXT NOT NULL,
			appointment_id TEXT NOT NULL,
			provider_id    TEXT,
			user_id        TEXT,
			time_of_day    TEXT,
			date           TEXT,
			created_at     TIMESTAMP NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Trail{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (t *Trail) Close() error {
	return t.db.Close()
}

// Watch records every created and cancelled booking, one row per event.
func (t *Trail) Watch(bus *events.Bus) {
	bus.Subscribe(events.TypeBookingCreated, func(e events.Event) {
		rec := Record{
			Event:  e.Type,
			UserID: e.UserID,
		}
		if e.Appointment != nil {
			rec.AppointmentID = e.Appointment.ID
			rec.ProviderID = e.Appointment.Provider.ID
			rec.TimeOfDay = e.Appointment.TimeOfDay
			rec.Date = e.Appointment.Date
		}
		t.record(rec)
	})
	bus.Subscribe(events.TypeBookingCancelled, func(e events.Event) {
		t.record(Record{
			Event:         e.Type,
			AppointmentID: e.AppointmentID,
			UserID:        e.UserID,
		})
	})
}

func (t *Trail) record(rec Record) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now()

	_, err := t.db.Exec(`
		INSERT INTO audit_log (id, event, appointment_id, provider_id, user_id, time_of_day, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Event, rec.AppointmentID, rec.ProviderID, rec.UserID,
		rec.TimeOfDay, rec.Date, rec.CreatedAt)
	if err != nil {
		t.logger.Error().Err(err).Str("event", rec.Event).Msg("audit write failed")
	}
}

// Records returns the trail for one user, oldest first.
func (t *Trail) Records(ctx context.Context, userID string) ([]Record, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, event, appointment_id, provider_id, user_id, time_of_day, date, created_at
		FROM audit_log
		WHERE user_id = ?
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Event, &rec.AppointmentID, &rec.ProviderID,
			&rec.UserID, &rec.TimeOfDay, &rec.Date, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
