// Package state holds the mutable aggregate for one match: the board, the
// players, and the turn bookkeeping. All writes are funneled through the
// orchestrator's single command goroutine.
package state

import "gridrush/server/internal/grid"

// Mode selects the win condition for a match.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeCTF     Mode = "capture-the-flag"
)

// ParseMode validates a mode string from a stored map definition.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModeClassic, ModeCTF:
		return Mode(value), true
	default:
		return "", false
	}
}

// Game is the aggregate root for one match.
type Game struct {
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`

	Map     *grid.Map `json:"-"`
	Players []*Player `json:"players"`

	// CurrentTurnIndex indexes into the in-play player subsequence, not the
	// raw player list.
	CurrentTurnIndex int  `json:"currentTurnIndex"`
	TurnCount        int  `json:"turnCount"`
	Locked           bool `json:"locked"`
	Started          bool `json:"started"`
}

// NewGame builds an aggregate over a prepared board.
func NewGame(id string, mode Mode, m *grid.Map) *Game {
	return &Game{ID: id, Mode: mode, Map: m}
}

// PlayerByID looks a player up, in play or not.
func (g *Game) PlayerByID(id string) (*Player, bool) {
	if g == nil {
		return nil, false
	}
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// InPlay returns the players still taking turns, in seating order.
func (g *Game) InPlay() []*Player {
	if g == nil {
		return nil
	}
	players := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.InPlay() {
			players = append(players, p)
		}
	}
	return players
}

// CurrentPlayer resolves CurrentTurnIndex against the in-play subsequence.
func (g *Game) CurrentPlayer() (*Player, bool) {
	inPlay := g.InPlay()
	if len(inPlay) == 0 {
		return nil, false
	}
	idx := g.CurrentTurnIndex % len(inPlay)
	return inPlay[idx], true
}

// Occupied reports whether an in-play player stands on the coordinate.
func (g *Game) Occupied(c grid.Coord) bool {
	if g == nil {
		return false
	}
	for _, p := range g.Players {
		if p.InPlay() && p.Pos == c {
			return true
		}
	}
	return false
}

// PlayerAt returns the in-play player standing on the coordinate.
func (g *Game) PlayerAt(c grid.Coord) (*Player, bool) {
	if g == nil {
		return nil, false
	}
	for _, p := range g.Players {
		if p.InPlay() && p.Pos == c {
			return p, true
		}
	}
	return nil, false
}

// AdjacentPlayers returns the in-play players on tiles orthogonal to the
// coordinate.
func (g *Game) AdjacentPlayers(c grid.Coord) []*Player {
	if g == nil {
		return nil
	}
	var adjacent []*Player
	for _, n := range c.Neighbors() {
		if p, ok := g.PlayerAt(n); ok {
			adjacent = append(adjacent, p)
		}
	}
	return adjacent
}

// FirstFreeAdjacent finds the first orthogonal neighbor of the coordinate
// that can be entered, in discovery order. Used by the combat loser respawn
// rule.
func (g *Game) FirstFreeAdjacent(c grid.Coord) (grid.Coord, bool) {
	if g == nil || g.Map == nil {
		return grid.Coord{}, false
	}
	for _, n := range c.Neighbors() {
		if _, ok := g.Map.StepCost(n, g.Occupied); ok {
			return n, true
		}
	}
	return grid.Coord{}, false
}

// Resumable reports whether the match can keep running. A match with no
// in-play players is dead.
func (g *Game) Resumable() bool {
	return g != nil && len(g.InPlay()) > 0
}
