package session

import (
	"context"
	"sync"

	"github.com/candlewick/agentdesk/internal/model/chat"
)

// Store keeps per-session conversation history in process memory.
// Sessions live until the process exits; there is no deletion.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]chat.Turn
}

// NewStore bootstraps the in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string][]chat.Turn),
	}
}

// Create provisions an empty session. Creating an existing session is a no-op.
func (s *Store) Create(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = make([]chat.Turn, 0, 16)
	}
	return nil
}

// Exists reports whether a session has been created.
func (s *Store) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// Append adds a turn to the session history, creating the session lazily.
// Turns are append-only; nothing ever mutates or removes them.
func (s *Store) Append(_ context.Context, sessionID string, turn chat.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turn)
	return nil
}

// History returns a copy of the stored turns. Unknown sessions degrade to
// an empty history so a fresh chat page never errors. Turns with no text
// render with the missing-content sentinel.
func (s *Store) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	copied := make([]chat.Turn, len(turns))
	for i, t := range turns {
		copied[i] = chat.Turn{Role: t.Role, Text: t.DisplayText()}
	}
	return copied, nil
}
