// Package rng supplies the random draws the engine depends on: dice rolls,
// fall checks, and evasion checks. Sources are injected so tests can force
// outcomes; the default source is crypto-seeded so clients cannot predict or
// replay a draw.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Roller is the draw surface consumed by the pathfinder and combat resolver.
type Roller interface {
	// Roll returns a uniform integer in [1, sides].
	Roll(sides int) int
	// Chance reports an independent draw succeeding with probability p.
	Chance(p float64) bool
}

// NewSeed generates a seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

type lockedRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller builds a roller over a math/rand source with the given seed.
func NewRoller(seed int64) Roller {
	return &lockedRoller{rng: rand.New(rand.NewSource(seed))}
}

// NewSecureRoller builds a roller seeded from crypto/rand. The error is only
// non-nil when the platform randomness source fails.
func NewSecureRoller() (Roller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewRoller(seed), nil
}

func (r *lockedRoller) Roll(sides int) int {
	if sides < 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(sides) + 1
}

func (r *lockedRoller) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < p
}
