package history

import (
	"sync"

	"github.com/hupe1980/chatloop/chat"
)

// Store persists conversation histories keyed by session ID. A missing
// session reads as empty history rather than an error so callers can start
// sessions lazily.
type Store interface {
	Get(sessionID string) ([]chat.Message, error)
	Save(sessionID string, messages []chat.Message) error
	Append(sessionID string, messages ...chat.Message) error
	Delete(sessionID string) error
}

// InMemoryStore is a volatile Store implementation holding histories in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Returned slices are copies to prevent
// external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Message
}

// NewInMemoryStore constructs an empty in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string][]chat.Message)}
}

// Get returns a copy of the stored history, or empty history for an unknown session.
func (s *InMemoryStore) Get(sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message{}, s.sessions[sessionID]...), nil
}

// Save replaces the session's history with a copy of the given messages.
func (s *InMemoryStore) Save(sessionID string, messages []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append([]chat.Message{}, messages...)
	return nil
}

// Append adds messages to an existing or newly created session.
func (s *InMemoryStore) Append(sessionID string, messages ...chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
	return nil
}

// Delete removes the session; deleting an unknown session is a no-op.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
