// Package turn owns whose turn it is, the per-turn movement and action
// budgets, and the legality checks for moves, door toggles, and wall breaks.
// It orchestrates the pathfinder over the aggregate; combat hands control to
// the combat resolver and suspends the scheduler until it finishes.
package turn

import (
	"errors"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/path"
	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
)

// Phase tracks the current actor's position in the turn lifecycle.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseMovement Phase = "acting-movement"
	PhaseAction   Phase = "acting-action"
	PhaseEnded    Phase = "ended"
)

var (
	ErrNotYourTurn = errors.New("not this player's turn")
	ErrSuspended   = errors.New("turn is suspended by an active combat")
	ErrTurnOver    = errors.New("turn already ended")
	ErrUnreachable = errors.New("destination is not in the reachable set")
	ErrNoActions   = errors.New("no actions left this turn")
	ErrNotAdjacent = errors.New("target tile is not adjacent")
	ErrNoDoor      = errors.New("no door on the target tile")
	ErrNoWall      = errors.New("no breakable wall on the target tile")
	ErrNoBreaker   = errors.New("actor does not hold a wall breaker")
	ErrNoPlayers   = errors.New("no in-play players remain")
)

// Options is everything the current actor can legally do right now. It is
// recomputed at turn start and after any action that changes the grid or the
// actor's position.
type Options struct {
	Reachable path.ReachSet `json:"reachable"`
	Opponents []string      `json:"opponents,omitempty"`
	Doors     []grid.Coord  `json:"doors,omitempty"`
	Walls     []grid.Coord  `json:"walls,omitempty"`
	// AutoEnd is set when the actor has nothing left: no actions and no tile
	// reachable beyond the one they stand on.
	AutoEnd bool `json:"autoEnd"`
}

// MoveResult reports an executed move.
type MoveResult struct {
	From      grid.Coord     `json:"from"`
	To        grid.Coord     `json:"to"`
	Traversal path.Traversal `json:"traversal"`
	// EndsTurn is set when a fall forces the turn to close after the grace
	// delay.
	EndsTurn bool `json:"endsTurn"`
}

// Scheduler drives the turn state machine for one match. It is owned by the
// match goroutine; no internal locking.
type Scheduler struct {
	game      *state.Game
	roller    rng.Roller
	phase     Phase
	suspended bool
}

// NewScheduler wraps the aggregate. The roller feeds fall checks during
// directed moves.
func NewScheduler(game *state.Game, roller rng.Roller) *Scheduler {
	return &Scheduler{game: game, roller: roller, phase: PhaseWaiting}
}

// Phase reports the lifecycle phase of the current turn.
func (s *Scheduler) Phase() Phase {
	if s == nil {
		return PhaseWaiting
	}
	return s.phase
}

// Current resolves the acting player.
func (s *Scheduler) Current() (*state.Player, bool) {
	if s == nil {
		return nil, false
	}
	return s.game.CurrentPlayer()
}

// StartTurn opens the current player's turn: regenerates their budgets and
// computes their options. When the actor can do nothing at all the returned
// options carry AutoEnd and the caller should end the turn immediately.
func (s *Scheduler) StartTurn() (*state.Player, Options, error) {
	actor, ok := s.game.CurrentPlayer()
	if !ok {
		return nil, Options{}, ErrNoPlayers
	}
	actor.ResetTurnBudget()
	s.phase = PhaseMovement
	s.suspended = false
	return actor, s.computeOptions(actor), nil
}

// Refresh recomputes the current actor's options without touching budgets.
func (s *Scheduler) Refresh() (Options, error) {
	actor, ok := s.game.CurrentPlayer()
	if !ok {
		return Options{}, ErrNoPlayers
	}
	return s.computeOptions(actor), nil
}

func (s *Scheduler) computeOptions(actor *state.Player) Options {
	opts := Options{
		Reachable: path.Reachable(s.game.Map, actor.Pos, actor.Specs.MovePoints, s.occupiedExcept(actor)),
	}
	for _, opponent := range s.game.AdjacentPlayers(actor.Pos) {
		if opponent.ID != actor.ID {
			opts.Opponents = append(opts.Opponents, opponent.ID)
		}
	}
	for _, n := range actor.Pos.Neighbors() {
		if _, ok := s.game.Map.DoorAt(n); ok {
			opts.Doors = append(opts.Doors, n)
		}
	}
	if actor.HasItem(grid.ItemWallBreaker) && actor.Specs.Actions > 0 {
		for _, n := range actor.Pos.Neighbors() {
			if s.game.Map.TerrainAt(n) == grid.TerrainWall && s.game.Map.InBounds(n) {
				opts.Walls = append(opts.Walls, n)
			}
		}
	}
	opts.AutoEnd = actor.Specs.Actions == 0 && len(opts.Reachable) == 1
	return opts
}

// occupiedExcept treats every in-play player but the actor as blocking.
func (s *Scheduler) occupiedExcept(actor *state.Player) func(grid.Coord) bool {
	return func(c grid.Coord) bool {
		p, ok := s.game.PlayerAt(c)
		return ok && p.ID != actor.ID
	}
}

func (s *Scheduler) actingPlayer(actorID string) (*state.Player, error) {
	if s.suspended {
		return nil, ErrSuspended
	}
	if s.phase == PhaseEnded {
		// A fall closed the turn; the grace window buys the player nothing
		// beyond time to watch it happen.
		return nil, ErrTurnOver
	}
	actor, ok := s.game.CurrentPlayer()
	if !ok {
		return nil, ErrNoPlayers
	}
	if actor.ID != actorID {
		return nil, ErrNotYourTurn
	}
	return actor, nil
}

// Move validates the destination against the current reachable set and walks
// it, spending move points for the traversed prefix. A fall reports EndsTurn;
// the caller owes the actor a grace delay before closing the turn.
func (s *Scheduler) Move(actorID string, dest grid.Coord) (MoveResult, error) {
	actor, err := s.actingPlayer(actorID)
	if err != nil {
		return MoveResult{}, err
	}

	traction := actor.HasItem(grid.ItemIceTraction)
	traversal, ok := path.Traverse(s.game.Map, actor.Pos, dest, actor.Specs.MovePoints, s.occupiedExcept(actor), s.roller, traction)
	if !ok || len(traversal.Steps) == 0 {
		return MoveResult{}, ErrUnreachable
	}

	result := MoveResult{From: actor.Pos, Traversal: traversal}
	for _, step := range traversal.Steps {
		actor.RecordVisit(step)
	}
	actor.Stats.TilesMoved += len(traversal.Steps)
	actor.Pos = traversal.End(actor.Pos)
	actor.SpendMovePoints(traversal.Cost)
	result.To = actor.Pos
	result.EndsTurn = traversal.Fell
	if traversal.Fell {
		s.phase = PhaseEnded
	}
	return result, nil
}

// ToggleDoor flips an adjacent door and consumes one action.
func (s *Scheduler) ToggleDoor(actorID string, at grid.Coord) (bool, error) {
	actor, err := s.actingPlayer(actorID)
	if err != nil {
		return false, err
	}
	if actor.Specs.Actions <= 0 {
		return false, ErrNoActions
	}
	if !actor.Pos.Adjacent(at) {
		return false, ErrNotAdjacent
	}
	open, ok := s.game.Map.DoorAt(at)
	if !ok {
		return false, ErrNoDoor
	}
	if !open {
		// A door cannot close onto a player.
		if _, occupied := s.game.PlayerAt(at); occupied {
			return false, ErrNoDoor
		}
	}
	s.game.Map.SetDoor(at, !open)
	actor.Specs.Actions--
	s.phase = PhaseAction
	return !open, nil
}

// BreakWall turns an adjacent wall into floor. Requires the wall-breaker
// item; the action cost is consumed here, once.
func (s *Scheduler) BreakWall(actorID string, at grid.Coord) error {
	actor, err := s.actingPlayer(actorID)
	if err != nil {
		return err
	}
	if !actor.HasItem(grid.ItemWallBreaker) {
		return ErrNoBreaker
	}
	if actor.Specs.Actions <= 0 {
		return ErrNoActions
	}
	if !actor.Pos.Adjacent(at) {
		return ErrNotAdjacent
	}
	if !s.game.Map.BreakWall(at) {
		return ErrNoWall
	}
	actor.Specs.Actions--
	actor.Stats.ItemsUsed++
	s.phase = PhaseAction
	return nil
}

// CanFight validates that the actor may open a combat against the opponent:
// it must be the actor's turn, they need an action, and the two must stand on
// adjacent tiles.
func (s *Scheduler) CanFight(actorID, opponentID string) (*state.Player, *state.Player, error) {
	actor, err := s.actingPlayer(actorID)
	if err != nil {
		return nil, nil, err
	}
	if actor.Specs.Actions <= 0 {
		return nil, nil, ErrNoActions
	}
	opponent, ok := s.game.PlayerByID(opponentID)
	if !ok || !opponent.InPlay() {
		return nil, nil, ErrNotAdjacent
	}
	if !actor.Pos.Adjacent(opponent.Pos) {
		return nil, nil, ErrNotAdjacent
	}
	return actor, opponent, nil
}

// Suspend parks the scheduler while a combat runs.
func (s *Scheduler) Suspend() {
	if s == nil {
		return
	}
	s.suspended = true
}

// Resume hands control back after the combat resolver reached a terminal
// state. The action budget for the combat is consumed here.
func (s *Scheduler) Resume() {
	if s == nil {
		return
	}
	s.suspended = false
	if actor, ok := s.game.CurrentPlayer(); ok && actor.Specs.Actions > 0 {
		actor.Specs.Actions--
	}
}

// EndTurn closes the current turn and advances to the next in-play player,
// wrapping modulo the in-play count. The new actor's budgets are reset when
// their turn starts.
func (s *Scheduler) EndTurn(actorID string) (*state.Player, error) {
	if s.suspended {
		return nil, ErrSuspended
	}
	actor, ok := s.game.CurrentPlayer()
	if !ok {
		return nil, ErrNoPlayers
	}
	if actorID != "" {
		if s.phase == PhaseEnded {
			return nil, ErrTurnOver
		}
		if actor.ID != actorID {
			return nil, ErrNotYourTurn
		}
	}

	inPlay := s.game.InPlay()
	s.game.CurrentTurnIndex = (s.game.CurrentTurnIndex + 1) % len(inPlay)
	s.game.TurnCount++
	s.phase = PhaseWaiting

	next, ok := s.game.CurrentPlayer()
	if !ok {
		return nil, ErrNoPlayers
	}
	return next, nil
}

// ForceEndTurn closes the current turn regardless of who asked. Used for the
// post-fall continuation and disconnect cleanup.
func (s *Scheduler) ForceEndTurn() (*state.Player, error) {
	s.suspended = false
	return s.EndTurn("")
}

// NoteElimination realigns CurrentTurnIndex after a player leaves play so the
// index keeps resolving to the same current player. Call it with the player
// who should be acting next.
func (s *Scheduler) NoteElimination(current *state.Player) {
	if s == nil || current == nil {
		return
	}
	inPlay := s.game.InPlay()
	for i, p := range inPlay {
		if p.ID == current.ID {
			s.game.CurrentTurnIndex = i
			return
		}
	}
	if len(inPlay) > 0 {
		s.game.CurrentTurnIndex = s.game.CurrentTurnIndex % len(inPlay)
	}
}
