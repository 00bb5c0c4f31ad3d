package bot

import (
	"testing"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
	"gridrush/server/internal/turn"
)

func newDuel(t *testing.T) (*state.Game, *state.Player, *state.Player) {
	t.Helper()
	game := state.NewGame("m1", state.ModeClassic, grid.NewMap(8, 8, nil, nil, nil))
	actor := state.NewPlayer("bot", "Bot", true)
	actor.Bot = true
	actor.Pos = grid.Coord{X: 0, Y: 0}
	actor.Spawn = actor.Pos
	enemy := state.NewPlayer("enemy", "Enemy", false)
	enemy.Pos = grid.Coord{X: 5, Y: 0}
	enemy.Spawn = enemy.Pos
	game.Players = []*state.Player{actor, enemy}
	return game, actor, enemy
}

func optionsFor(game *state.Game, actor *state.Player) turn.Options {
	sched := turn.NewScheduler(game, rng.NewRoller(1))
	game.CurrentTurnIndex = 0
	_, opts, _ := sched.StartTurn()
	return opts
}

func TestAggressiveClosesDistance(t *testing.T) {
	game, actor, enemy := newDuel(t)
	policy := ForProfile(state.ProfileAggressive, rng.NewRoller(1))

	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionMove {
		t.Fatalf("expected a move, got %s", decision.Kind)
	}
	before := manhattan(actor.Pos, enemy.Pos)
	after := manhattan(decision.Dest, enemy.Pos)
	if after >= before {
		t.Fatalf("move does not close distance: %d -> %d", before, after)
	}
}

func TestAggressiveChallengesAdjacentOpponent(t *testing.T) {
	game, actor, enemy := newDuel(t)
	enemy.Pos = grid.Coord{X: 0, Y: 1}
	policy := ForProfile(state.ProfileAggressive, rng.NewRoller(1))

	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionStartCombat || decision.TargetID != "enemy" {
		t.Fatalf("expected a challenge, got %+v", decision)
	}
}

func TestAggressiveAlwaysAttacks(t *testing.T) {
	policy := ForProfile(state.ProfileAggressive, rng.NewRoller(1))
	if d := policy.CombatAction(nil, 2, 1); d.Kind != ActionAttack {
		t.Fatalf("expected attack, got %s", d.Kind)
	}
}

func TestDefensiveRetreatsAndEvades(t *testing.T) {
	game, actor, enemy := newDuel(t)
	enemy.Pos = grid.Coord{X: 2, Y: 0}
	policy := ForProfile(state.ProfileDefensive, rng.NewRoller(1))

	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionMove {
		t.Fatalf("expected a retreat move, got %s", decision.Kind)
	}
	if manhattan(decision.Dest, enemy.Pos) <= manhattan(actor.Pos, enemy.Pos) {
		t.Fatal("retreat did not increase distance")
	}

	if d := policy.CombatAction(actor, 1, 4); d.Kind != ActionEvade {
		t.Fatalf("expected evade with charges left, got %s", d.Kind)
	}
	if d := policy.CombatAction(actor, 0, 4); d.Kind != ActionAttack {
		t.Fatalf("expected attack without charges, got %s", d.Kind)
	}
}

func TestNormalFlagCarrierHeadsHome(t *testing.T) {
	game, actor, _ := newDuel(t)
	game.Mode = state.ModeCTF
	actor.Inventory = append(actor.Inventory, grid.ItemFlag)
	actor.Pos = grid.Coord{X: 2, Y: 0}

	policy := ForProfile(state.ProfileNormal, rng.NewRoller(1))
	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionMove {
		t.Fatalf("expected a move, got %s", decision.Kind)
	}
	if manhattan(decision.Dest, actor.Spawn) >= manhattan(actor.Pos, actor.Spawn) {
		t.Fatal("carrier is not heading home")
	}
}

func TestNormalGrabsReachableItem(t *testing.T) {
	game, actor, enemy := newDuel(t)
	enemy.Pos = grid.Coord{X: 7, Y: 7}
	game.Map.PlaceItem(grid.Item{Coord: grid.Coord{X: 2, Y: 0}, Kind: grid.ItemPotion})

	policy := ForProfile(state.ProfileNormal, rng.NewRoller(1))
	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionMove || (decision.Dest != grid.Coord{X: 2, Y: 0}) {
		t.Fatalf("expected move onto the item, got %+v", decision)
	}
}

func TestEndTurnWhenNothingToDo(t *testing.T) {
	game := state.NewGame("m1", state.ModeClassic, grid.NewMap(8, 8, nil, nil, nil))
	actor := state.NewPlayer("bot", "Bot", true)
	actor.Bot = true
	game.Players = []*state.Player{actor}

	policy := ForProfile(state.ProfileAggressive, rng.NewRoller(1))
	decision := policy.TurnAction(game, actor, optionsFor(game, actor))
	if decision.Kind != ActionEndTurn {
		t.Fatalf("expected end turn with no opponents, got %s", decision.Kind)
	}
}
