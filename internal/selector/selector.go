// Package selector implements the slot picking state machine.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"klemz/internal/metrics"
	"klemz/internal/models"
)

// State is the picker state for one user.
type State string

const (
	// StateIdle means no slot picking is in progress.
	StateIdle State = "idle"
	// StatePickerOpen means a provider is selected and a date/time is awaited.
	// A rejected candidate keeps the picker open.
	StatePickerOpen State = "picker_open"
)

// ErrSlotTaken is the user-facing conflict signal for a locally known
// collision. The authoritative check still happens server-side at creation.
var ErrSlotTaken = errors.New("this time is already booked, please choose another time")

// ErrPastSlot rejects candidates strictly before now; a slot equal to now is
// still selectable.
var ErrPastSlot = errors.New("this time has already passed, please choose an upcoming time")

// ErrNotPicking means no picker is open for the user.
var ErrNotPicking = errors.New("no provider selected")

// DraftStager stores the accepted selection.
type DraftStager interface {
	Stage(ctx context.Context, d models.DraftBooking) error
}

// session is one user's picker.
type session struct {
	state    State
	provider models.Provider
}

// Selector drives the Idle → PickerOpen → (rejected | accepted) flow and
// stages the draft booking on acceptance.
type Selector struct {
	drafts DraftStager
	logger *zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	sessions    map[int64]*session
	transitions map[State][]State
}

// New constructs a selector.
func New(drafts DraftStager, logger *zerolog.Logger) *Selector {
	return &Selector{
		drafts:   drafts,
		logger:   logger,
		now:      time.Now,
		sessions: map[int64]*session{},
		transitions: map[State][]State{
			StateIdle:       {StatePickerOpen},
			StatePickerOpen: {StateIdle, StatePickerOpen},
		},
	}
}

// WithClock overrides the time source, for tests.
func (s *Selector) WithClock(now func() time.Time) *Selector {
	s.now = now
	return s
}

// State returns the picker state for the user.
func (s *Selector) State(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess.state
	}
	return StateIdle
}

// canTransition checks the transition table.
func (s *Selector) canTransition(from, to State) bool {
	for _, allowed := range s.transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Open starts picking a slot for the given provider.
func (s *Selector) Open(userID int64, provider models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil {
		sess = &session{state: StateIdle}
		s.sessions[userID] = sess
	}
	if !s.canTransition(sess.state, StatePickerOpen) {
		return fmt.Errorf("cannot open picker from state %s", sess.state)
	}
	sess.state = StatePickerOpen
	sess.provider = provider
	return nil
}

// Provider returns the provider the open picker targets.
func (s *Selector) Provider(userID int64) (*models.Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[userID]
	if sess == nil || sess.state != StatePickerOpen {
		return nil, false
	}
	p := sess.provider
	return &p, true
}

// Choose validates the candidate instant against the open picker's provider.
// A conflict or past slot rejects the candidate and keeps the picker open;
// otherwise the draft is staged and the picker closes.
//
// The conflict check is advisory only: the unavailable-times snapshot can be
// stale the moment another booking commits, so the remote re-checks at
// creation time.
func (s *Selector) Choose(ctx context.Context, userID int64, at time.Time) (*models.DraftBooking, error) {
	s.mu.Lock()
	sess := s.sessions[userID]
	if sess == nil || sess.state != StatePickerOpen {
		s.mu.Unlock()
		return nil, ErrNotPicking
	}
	provider := sess.provider
	s.mu.Unlock()

	if at.Before(s.now()) {
		return nil, ErrPastSlot
	}

	timeOfDay := models.FormatTimeOfDay(at)
	if provider.Unavailable(timeOfDay) {
		metrics.IncSlotConflictRejected()
		s.logger.Info().
			Str("barber", provider.ID).
			Str("time", timeOfDay).
			Msg("slot rejected by local conflict check")
		return nil, ErrSlotTaken
	}

	d := models.DraftBooking{
		Provider:  provider,
		TimeOfDay: timeOfDay,
		Date:      models.FormatDate(at),
	}
	if err := s.drafts.Stage(ctx, d); err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess.state = StateIdle
	s.mu.Unlock()
	return &d, nil
}

// Close abandons the open picker without staging anything.
func (s *Selector) Close(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[userID]; sess != nil {
		sess.state = StateIdle
	}
}
