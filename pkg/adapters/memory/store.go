package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/agentloop/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Sessions live for the lifetime of the process. Safe for concurrent use.
type Store struct {
	data map[string][]domain.Message
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]domain.Message),
	}
}

// Load returns a copy of the session log, creating the session on first reference.
func (s *Store) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	msgs, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if _, ok := s.data[sessionID]; !ok {
			s.data[sessionID] = []domain.Message{}
		}
		msgs = s.data[sessionID]
		s.mu.Unlock()
	}

	// Copy on read so callers can't mutate store state through shared maps/pointers
	return cloneMessages(msgs), nil
}

// Save replaces the session log with a copy of msgs.
func (s *Store) Save(ctx context.Context, sessionID string, msgs []domain.Message) error {
	copied := cloneMessages(msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// List returns known sessions in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func cloneMessages(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
