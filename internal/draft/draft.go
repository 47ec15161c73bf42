// Package draft stages the in-progress booking selection between the slot
// picker and the confirmation step.
package draft

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"klemz/internal/events"
	"klemz/internal/models"
	"klemz/internal/storage"
)

// Store is the single-slot staging area for a draft booking. Staging
// overwrites any prior draft; concurrent staging is last-write-wins.
type Store struct {
	kv     storage.KV
	logger *zerolog.Logger
}

// NewStore constructs a draft store over kv.
func NewStore(kv storage.KV, logger *zerolog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Stage replaces the staged draft with d.
func (s *Store) Stage(ctx context.Context, d models.DraftBooking) error {
	barberRaw, err := json.Marshal(d.Provider)
	if err != nil {
		return err
	}
	timeRaw, err := json.Marshal(d.TimeOfDay)
	if err != nil {
		return err
	}
	dateRaw, err := json.Marshal(d.Date)
	if err != nil {
		return err
	}

	if err := s.kv.Set(ctx, storage.KeyBarber, barberRaw); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, storage.KeyTime, timeRaw); err != nil {
		return err
	}
	return s.kv.Set(ctx, storage.KeyDate, dateRaw)
}

// Read returns the staged draft, or nil when nothing usable is staged.
// Corrupt records are logged and treated as absent.
func (s *Store) Read(ctx context.Context) (*models.DraftBooking, error) {
	barberRaw, err := s.kv.Get(ctx, storage.KeyBarber)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var d models.DraftBooking
	if err := json.Unmarshal(barberRaw, &d.Provider); err != nil || d.Provider.ID == "" {
		s.logger.Warn().Msg("staged barber record is unreadable, dropping draft")
		return nil, nil
	}

	if raw, err := s.kv.Get(ctx, storage.KeyTime); err == nil {
		if err := json.Unmarshal(raw, &d.TimeOfDay); err != nil {
			d.TimeOfDay = ""
		}
	}
	if raw, err := s.kv.Get(ctx, storage.KeyDate); err == nil {
		if err := json.Unmarshal(raw, &d.Date); err != nil {
			d.Date = ""
		}
	}

	if d.TimeOfDay == "" || d.Date == "" {
		s.logger.Warn().Msg("staged slot is incomplete, dropping draft")
		return nil, nil
	}
	return &d, nil
}

// WatchSessions clears the staged draft when the session ends. A draft
// staged under one account must not survive into the next.
func (s *Store) WatchSessions(bus *events.Bus) {
	bus.Subscribe(events.TypeSessionLogout, func(events.Event) {
		if err := s.Clear(context.Background()); err != nil {
			s.logger.Warn().Err(err).Msg("clearing draft on logout failed")
		}
	})
}

// Clear removes any staged draft.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.KeyBarber); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, storage.KeyTime); err != nil {
		return err
	}
	return s.kv.Delete(ctx, storage.KeyDate)
}
