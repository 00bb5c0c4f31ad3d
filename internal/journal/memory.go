package journal

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Used by tests and by matches
// configured without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (s *MemoryStore) Append(_ context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		s.entries[entry.MatchID] = append(s.entries[entry.MatchID], entry)
	}
	return nil
}

func (s *MemoryStore) Match(_ context.Context, matchID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.entries[matchID]
	if limit > 0 && limit < len(stored) {
		stored = stored[len(stored)-limit:]
	}
	return append([]Entry(nil), stored...), nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
