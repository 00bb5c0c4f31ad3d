package match

import (
	"context"
	"testing"
	"time"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/state"
)

func TestRegistryStartAndLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := NewRegistry()
	game := state.NewGame("", state.ModeClassic, grid.NewMap(4, 4, nil, nil, nil))
	p := state.NewPlayer("p1", "Ada", true)
	game.Players = []*state.Player{p}

	m := registry.Start(ctx, game, DefaultConfig(), Deps{Roller: &scriptRoller{}})
	if m.ID() == "" {
		t.Fatal("match id was not minted")
	}
	if got, err := registry.Lookup(m.ID()); err != nil || got != m {
		t.Fatalf("lookup failed: %v", err)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected 1 live match, got %d", registry.Len())
	}

	cancel()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("match did not terminate on context cancel")
	}

	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("match was not deregistered, %d live", registry.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := registry.Lookup(m.ID()); err != ErrUnknownMatch {
		t.Fatalf("expected ErrUnknownMatch, got %v", err)
	}
}
