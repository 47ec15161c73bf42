// Package session exposes the slice of the auth collaborator the booking
// core needs: a bearer token and the owning user identity. Login and
// registration themselves live outside this repository.
package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"klemz/internal/events"
	"klemz/internal/models"
	"klemz/internal/storage"
)

// ErrNotAuthenticated means no usable session exists locally.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Session is the current credential set.
type Session struct {
	Token string
	User  models.User
}

// EventPublisher decouples the manager from the bus wiring.
type EventPublisher interface {
	Publish(event events.Event)
}

// Manager reads and writes session state in the durable KV store.
type Manager struct {
	kv     storage.KV
	bus    EventPublisher
	logger *zerolog.Logger
}

// NewManager constructs a session manager over kv.
func NewManager(kv storage.KV, bus EventPublisher, logger *zerolog.Logger) *Manager {
	return &Manager{kv: kv, bus: bus, logger: logger}
}

// Current returns the stored session. A missing or unparseable record is
// ErrNotAuthenticated, never a crash.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	tokenRaw, err := m.kv.Get(ctx, storage.KeyAuthToken)
	if err != nil || len(tokenRaw) == 0 {
		return nil, ErrNotAuthenticated
	}

	var token string
	if err := json.Unmarshal(tokenRaw, &token); err != nil {
		// Tokens written by older clients may be raw strings.
		token = string(tokenRaw)
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	userRaw, err := m.kv.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, ErrNotAuthenticated
	}
	var user models.User
	if err := json.Unmarshal(userRaw, &user); err != nil || user.ID == "" {
		m.logger.Warn().Msg("stored user record is unreadable, treating session as absent")
		return nil, ErrNotAuthenticated
	}

	return &Session{Token: token, User: user}, nil
}

// Token implements gateway.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// SetCredentials stores a new session, replacing any prior one.
func (m *Manager) SetCredentials(ctx context.Context, token string, user models.User) error {
	tokenRaw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	userRaw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, storage.KeyAuthToken, tokenRaw); err != nil {
		return err
	}
	return m.kv.Set(ctx, storage.KeyUser, userRaw)
}

// Logout tears the session down and announces it so dependent state (the
// staged draft in particular) gets cleared as well.
func (m *Manager) Logout(ctx context.Context) error {
	var userID string
	if s, err := m.Current(ctx); err == nil {
		userID = s.User.ID
	}

	if err := m.kv.Delete(ctx, storage.KeyAuthToken); err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, storage.KeyUser); err != nil {
		return err
	}

	if m.bus != nil {
		m.bus.Publish(events.Event{Type: events.TypeSessionLogout, UserID: userID})
	}
	m.logger.Info().Msg("session cleared")
	return nil
}
