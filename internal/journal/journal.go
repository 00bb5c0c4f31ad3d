// Package journal records a human-readable narrative of each match: one
// entry per notable event, ordered by a monotonic ULID so stores can replay
// a match in the order it was played.
package journal

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind classifies a narrative entry.
type Kind string

const (
	KindTurn        Kind = "turn"
	KindMove        Kind = "move"
	KindFall        Kind = "fall"
	KindDoor        Kind = "door"
	KindWall        Kind = "wall"
	KindItem        Kind = "item"
	KindCombat      Kind = "combat"
	KindEvade       Kind = "evade"
	KindElimination Kind = "elimination"
	KindWin         Kind = "win"
	KindDisconnect  Kind = "disconnect"
)

// Entry is one line of the match narrative.
type Entry struct {
	ID      string    `json:"id"`
	MatchID string    `json:"matchId"`
	Turn    int       `json:"turn"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	ActorID string    `json:"actorId,omitempty"`
	Text    string    `json:"text"`
}

// Store persists entries. Implementations must tolerate concurrent Append
// calls from different matches.
type Store interface {
	Append(ctx context.Context, entries ...Entry) error
	Match(ctx context.Context, matchID string, limit int) ([]Entry, error)
	Close(ctx context.Context) error
}

const defaultFlushEvery = 16

// Journal buffers entries for a single match and flushes batches to the
// store so gameplay never waits on storage round trips per entry.
type Journal struct {
	matchID    string
	store      Store
	clock      func() time.Time
	flushEvery int

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	pending []Entry
	recent  []Entry
}

// Option tweaks journal construction.
type Option func(*Journal)

// WithClock overrides the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(j *Journal) {
		if clock != nil {
			j.clock = clock
		}
	}
}

// WithFlushEvery sets how many pending entries trigger an automatic flush.
func WithFlushEvery(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.flushEvery = n
		}
	}
}

// New constructs a journal for one match backed by the given store. A nil
// store is allowed; entries then live only in the in-memory recent window.
func New(matchID string, store Store, opts ...Option) *Journal {
	j := &Journal{
		matchID:    matchID,
		store:      store,
		clock:      time.Now,
		flushEvery: defaultFlushEvery,
	}
	for _, opt := range opts {
		opt(j)
	}
	seed := j.clock().UnixNano()
	j.entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
	return j
}

// Record appends one narrative line. The text is formatted immediately so
// callers can pass live state without retention concerns.
func (j *Journal) Record(ctx context.Context, turn int, kind Kind, actorID, format string, args ...any) {
	if j == nil {
		return
	}
	now := j.clock()
	j.mu.Lock()
	entry := Entry{
		ID:      ulid.MustNew(ulid.Timestamp(now), j.entropy).String(),
		MatchID: j.matchID,
		Turn:    turn,
		Time:    now,
		Kind:    kind,
		ActorID: actorID,
		Text:    fmt.Sprintf(format, args...),
	}
	if j.store != nil {
		j.pending = append(j.pending, entry)
	}
	j.recent = append(j.recent, entry)
	if len(j.recent) > 256 {
		j.recent = j.recent[len(j.recent)-256:]
	}
	shouldFlush := len(j.pending) >= j.flushEvery
	j.mu.Unlock()

	if shouldFlush {
		if err := j.Flush(ctx); err != nil {
			// Entries stay pending; the next flush retries them.
			return
		}
	}
}

// Flush writes all pending entries to the store.
func (j *Journal) Flush(ctx context.Context) error {
	if j == nil || j.store == nil {
		return nil
	}
	j.mu.Lock()
	if len(j.pending) == 0 {
		j.mu.Unlock()
		return nil
	}
	batch := append([]Entry(nil), j.pending...)
	j.mu.Unlock()

	if err := j.store.Append(ctx, batch...); err != nil {
		return fmt.Errorf("journal flush: %w", err)
	}

	j.mu.Lock()
	j.pending = j.pending[len(batch):]
	j.mu.Unlock()
	return nil
}

// Recent returns up to n of the latest entries, newest last.
func (j *Journal) Recent(n int) []Entry {
	if j == nil || n <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if n > len(j.recent) {
		n = len(j.recent)
	}
	return append([]Entry(nil), j.recent[len(j.recent)-n:]...)
}

// Pending reports how many entries await a flush.
func (j *Journal) Pending() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}
