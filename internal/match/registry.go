package match

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"gridrush/server/internal/state"
)

// ErrUnknownMatch reports a lookup for a match id the registry does not
// hold.
var ErrUnknownMatch = errors.New("unknown match")

// Registry is the only cross-match shared state: an id-keyed lookup of the
// live matches.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{matches: make(map[string]*Match)}
}

// NewID mints a match id.
func NewID() string {
	return uuid.NewString()
}

// Start assembles a match, registers it, and launches its goroutine. The
// match removes itself when it finishes.
func (r *Registry) Start(ctx context.Context, game *state.Game, cfg Config, deps Deps) *Match {
	if game.ID == "" {
		game.ID = NewID()
	}
	m := New(game, cfg, deps)

	r.mu.Lock()
	r.matches[m.ID()] = m
	r.mu.Unlock()

	go func() {
		m.Run(ctx)
		r.mu.Lock()
		delete(r.matches, m.ID())
		r.mu.Unlock()
	}()
	return m
}

// Lookup resolves a match by id.
func (r *Registry) Lookup(id string) (*Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, ErrUnknownMatch
	}
	return m, nil
}

// Len reports how many matches are live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// IDs lists the live match ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	return ids
}
