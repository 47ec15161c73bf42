package bot

import (
	"sync"

	"klemz/internal/models"
)

// chatState holds per-user UI state that is not part of the booking core:
// the offering list shown last and the one currently chosen.
type chatState struct {
	Offerings []models.ServiceOffering
	Chosen    *models.ServiceOffering
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*chatState
	// chats maps remote user IDs to the Telegram chat they talk from,
	// so event-driven sends (reminders) know where to go.
	chats map[string]int64
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*chatState), chats: make(map[string]int64)}
}

func (s *stateStore) rememberChat(remoteUserID string, chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[remoteUserID] = chatID
}

func (s *stateStore) chatFor(remoteUserID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chatID, ok := s.chats[remoteUserID]
	return chatID, ok
}

func (s *stateStore) get(userID int64) *chatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &chatState{}
		s.m[userID] = st
	}
	return st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
