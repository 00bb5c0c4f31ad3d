// Package bot picks actions for non-human players. Policies are pure
// decision functions over the aggregate; the orchestrator translates each
// Decision into the same command path human players use.
package bot

import (
	"gridrush/server/internal/grid"
	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
	"gridrush/server/internal/turn"
)

// ActionKind enumerates the decisions a policy can produce.
type ActionKind string

const (
	ActionEndTurn     ActionKind = "endTurn"
	ActionMove        ActionKind = "move"
	ActionStartCombat ActionKind = "startCombat"
	ActionAttack      ActionKind = "attack"
	ActionEvade       ActionKind = "evade"
)

// Decision is one chosen action with its parameters.
type Decision struct {
	Kind     ActionKind
	Dest     grid.Coord
	TargetID string
}

// Policy decides what a bot does on its turn and during its combat
// sub-turns.
type Policy interface {
	TurnAction(g *state.Game, actor *state.Player, opts turn.Options) Decision
	CombatAction(actor *state.Player, evasionsLeft, life int) Decision
}

// ForProfile maps a player profile to its policy.
func ForProfile(profile state.Profile, roller rng.Roller) Policy {
	switch profile {
	case state.ProfileAggressive:
		return &aggressive{}
	case state.ProfileDefensive:
		return &defensive{}
	default:
		return &normal{roller: roller}
	}
}

func manhattan(a, b grid.Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// nearestOpponent finds the closest other in-play player by grid distance.
func nearestOpponent(g *state.Game, actor *state.Player) (*state.Player, bool) {
	var best *state.Player
	bestDist := 0
	for _, p := range g.InPlay() {
		if p.ID == actor.ID {
			continue
		}
		d := manhattan(actor.Pos, p.Pos)
		if best == nil || d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, best != nil
}

// pickReachable scans the reachable set and keeps the tile that scores best.
// Lower is better; the origin tile is skipped so a "best" tile always means
// actual movement.
func pickReachable(origin grid.Coord, opts turn.Options, score func(grid.Coord, int) int) (grid.Coord, bool) {
	var best grid.Coord
	bestScore := 0
	found := false
	for key, route := range opts.Reachable {
		c, ok := grid.ParseKey(key)
		if !ok || c == origin {
			continue
		}
		s := score(c, route.Weight)
		if !found || s < bestScore {
			best, bestScore, found = c, s, true
		}
	}
	return best, found
}

type aggressive struct{}

func (p *aggressive) TurnAction(g *state.Game, actor *state.Player, opts turn.Options) Decision {
	if actor.Specs.Actions > 0 && len(opts.Opponents) > 0 {
		return Decision{Kind: ActionStartCombat, TargetID: opts.Opponents[0]}
	}
	if target, ok := nearestOpponent(g, actor); ok {
		// Close the distance; spend remaining weight as a tie break so the
		// bot does not wander sideways for free.
		dest, found := pickReachable(actor.Pos, opts, func(c grid.Coord, weight int) int {
			return manhattan(c, target.Pos)*16 + weight
		})
		if found && manhattan(dest, target.Pos) < manhattan(actor.Pos, target.Pos) {
			return Decision{Kind: ActionMove, Dest: dest}
		}
	}
	return Decision{Kind: ActionEndTurn}
}

func (p *aggressive) CombatAction(*state.Player, int, int) Decision {
	return Decision{Kind: ActionAttack}
}

type defensive struct{}

func (p *defensive) TurnAction(g *state.Game, actor *state.Player, opts turn.Options) Decision {
	if target, ok := nearestOpponent(g, actor); ok {
		dest, found := pickReachable(actor.Pos, opts, func(c grid.Coord, weight int) int {
			return -manhattan(c, target.Pos)*16 + weight
		})
		if found && manhattan(dest, target.Pos) > manhattan(actor.Pos, target.Pos) {
			return Decision{Kind: ActionMove, Dest: dest}
		}
	}
	return Decision{Kind: ActionEndTurn}
}

func (p *defensive) CombatAction(_ *state.Player, evasionsLeft, _ int) Decision {
	if evasionsLeft > 0 {
		return Decision{Kind: ActionEvade}
	}
	return Decision{Kind: ActionAttack}
}

type normal struct {
	roller rng.Roller
}

func (p *normal) TurnAction(g *state.Game, actor *state.Player, opts turn.Options) Decision {
	// A flag carrier heads home.
	if g.Mode == state.ModeCTF && actor.HasItem(grid.ItemFlag) {
		if route, ok := opts.Reachable.Route(actor.Spawn); ok && len(route.Path) > 0 {
			return Decision{Kind: ActionMove, Dest: actor.Spawn}
		}
		dest, found := pickReachable(actor.Pos, opts, func(c grid.Coord, weight int) int {
			return manhattan(c, actor.Spawn)*16 + weight
		})
		if found {
			return Decision{Kind: ActionMove, Dest: dest}
		}
		return Decision{Kind: ActionEndTurn}
	}

	// Reachable items are worth a detour.
	if dest, found := pickReachable(actor.Pos, opts, func(c grid.Coord, weight int) int {
		if _, ok := g.Map.ItemAt(c); !ok {
			return 1 << 20
		}
		return weight
	}); found {
		if _, ok := g.Map.ItemAt(dest); ok && len(actor.Inventory) < state.MaxInventory {
			return Decision{Kind: ActionMove, Dest: dest}
		}
	}

	if actor.Specs.Actions > 0 && len(opts.Opponents) > 0 && p.roller.Chance(0.5) {
		return Decision{Kind: ActionStartCombat, TargetID: opts.Opponents[0]}
	}

	if target, ok := nearestOpponent(g, actor); ok {
		dest, found := pickReachable(actor.Pos, opts, func(c grid.Coord, weight int) int {
			return manhattan(c, target.Pos)*16 + weight
		})
		if found && manhattan(dest, target.Pos) < manhattan(actor.Pos, target.Pos) {
			return Decision{Kind: ActionMove, Dest: dest}
		}
	}
	return Decision{Kind: ActionEndTurn}
}

func (p *normal) CombatAction(_ *state.Player, evasionsLeft, life int) Decision {
	if life <= 1 && evasionsLeft > 0 {
		return Decision{Kind: ActionEvade}
	}
	return Decision{Kind: ActionAttack}
}
