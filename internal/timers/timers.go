// Package timers runs the deferred continuations the engine leans on: combat
// countdowns and the post-fall turn close. Continuations are keyed so a
// terminal state reached first can cancel the pending one; a continuation
// that fires after its player disconnected still runs against the last known
// state.
package timers

import (
	"sync"
	"time"
)

// Key scopes one continuation to a match, a player, and a purpose.
type Key struct {
	MatchID  string
	PlayerID string
	Kind     string
}

const (
	KindCombatCountdown = "combat-countdown"
	KindFallGrace       = "fall-grace"
)

// Scheduler owns the pending continuations for one process.
type Scheduler struct {
	mu      sync.Mutex
	pending map[Key]*time.Timer
	closed  bool
}

// NewScheduler builds an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[Key]*time.Timer)}
}

// Schedule arms fn to run after d, replacing any pending continuation under
// the same key. fn runs on its own goroutine; callers are expected to post
// back into their match queue rather than mutate state directly.
func (s *Scheduler) Schedule(key Key, d time.Duration, fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if existing, ok := s.pending[key]; ok {
		existing.Stop()
	}
	s.pending[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending continuation. It reports whether one was armed.
func (s *Scheduler) Cancel(key Key) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	timer, ok := s.pending[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.pending, key)
	return true
}

// CancelMatch drops every continuation belonging to a match. Part of match
// teardown so nothing fires into a dead room.
func (s *Scheduler) CancelMatch(matchID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.pending {
		if key.MatchID == matchID {
			timer.Stop()
			delete(s.pending, key)
		}
	}
}

// Pending reports the number of armed continuations.
func (s *Scheduler) Pending() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels everything and refuses further scheduling.
func (s *Scheduler) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for key, timer := range s.pending {
		timer.Stop()
		delete(s.pending, key)
	}
}
