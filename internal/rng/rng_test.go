package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollBounds(t *testing.T) {
	roller := NewRoller(1)
	for _, sides := range []int{4, 6} {
		for i := 0; i < 1000; i++ {
			got := roller.Roll(sides)
			require.GreaterOrEqual(t, got, 1, "roll below die floor")
			require.LessOrEqual(t, got, sides, "roll above die ceiling")
		}
	}
	assert.Zero(t, roller.Roll(0), "degenerate die should roll zero")
}

func TestChanceExtremes(t *testing.T) {
	roller := NewRoller(42)
	for i := 0; i < 100; i++ {
		assert.False(t, roller.Chance(0))
		assert.True(t, roller.Chance(1))
	}
}

func TestChanceConverges(t *testing.T) {
	roller := NewRoller(7)
	const trials = 20000
	hits := 0
	for i := 0; i < trials; i++ {
		if roller.Chance(0.4) {
			hits++
		}
	}
	rate := float64(hits) / trials
	assert.InDelta(t, 0.4, rate, 0.02, "empirical rate should track requested probability")
}

func TestNewSeedDiffers(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "consecutive crypto seeds should differ")
}
