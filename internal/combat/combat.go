// Package combat resolves one active fight between two players: alternating
// dice-based attacks, evasion attempts, and the forced outcomes caused by
// disconnects and countdown expiry.
package combat

import (
	"errors"

	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
)

// State tracks the combat lifecycle from the challenger's perspective. Won,
// Lost, Evaded, and Disconnected are terminal.
type State string

const (
	StateIdle         State = "idle"
	StateInProgress   State = "in-progress"
	StateWon          State = "won"
	StateLost         State = "lost"
	StateEvaded       State = "evaded"
	StateDisconnected State = "disconnected"
)

// Cause explains why a combat finished.
type Cause string

const (
	CauseNormal        Cause = "normal"
	CauseEvasion       Cause = "evasion"
	CauseDisconnection Cause = "disconnection"
)

const (
	// EvadeChance is the fixed success probability of an evasion attempt.
	EvadeChance = 0.40
	// IcePenalty is subtracted from attack and defense while the combatant
	// stands on ice without traction.
	IcePenalty = 2
	// CountdownFull and CountdownNoEvade are the sub-turn countdowns, in
	// time units, for combatants with and without evasion charges left.
	CountdownFull    = 5
	CountdownNoEvade = 3
)

var (
	ErrNotInProgress = errors.New("combat is not in progress")
	ErrNotYourTurn   = errors.New("not this combatant's sub-turn")
	ErrNoEvasions    = errors.New("no evasion charges left")
	ErrUnknownSide   = errors.New("player is not part of this combat")
)

// Side is one combatant's working snapshot. Life is tracked here during the
// fight and written back to the player through the terminal bookkeeping.
type Side struct {
	Player   *state.Player
	Life     int
	OnIce    bool
	Evasions int
}

func (s *Side) attackTotal(roller rng.Roller) int {
	total := s.Player.Specs.Attack + roller.Roll(int(s.Player.Specs.AttackDie))
	if s.OnIce {
		total -= IcePenalty
	}
	return total
}

func (s *Side) defenseTotal(roller rng.Roller) int {
	total := s.Player.Specs.Defense + roller.Roll(int(s.Player.Specs.DefenseDie))
	if s.OnIce {
		total -= IcePenalty
	}
	return total
}

// Result is the terminal outcome of a combat.
type Result struct {
	Winner *state.Player
	Loser  *state.Player
	Cause  Cause
	// Evader is set when the combat ended by successful evasion; there is no
	// winner or loser in that case.
	Evader *state.Player
}

// AttackOutcome describes one resolved attack exchange.
type AttackOutcome struct {
	AttackerID    string `json:"attackerId"`
	DefenderID    string `json:"defenderId"`
	AttackTotal   int    `json:"attackTotal"`
	DefenseTotal  int    `json:"defenseTotal"`
	Hit           bool   `json:"hit"`
	DefenderLife  int    `json:"defenderLife"`
	Finished      bool   `json:"finished"`
	NextActorID   string `json:"nextActorId,omitempty"`
	NextCountdown int    `json:"nextCountdown,omitempty"`
}

// EvadeOutcome describes one evasion attempt.
type EvadeOutcome struct {
	ActorID       string `json:"actorId"`
	Success       bool   `json:"success"`
	ChargesLeft   int    `json:"chargesLeft"`
	NextActorID   string `json:"nextActorId,omitempty"`
	NextCountdown int    `json:"nextCountdown,omitempty"`
}

// Combat is one active fight. It is owned by the match goroutine; no
// internal locking.
type Combat struct {
	challenger *Side
	opponent   *Side
	actor      *Side
	st         State
	roller     rng.Roller
	result     *Result
}

// New opens a fight between two players. The challenger takes the first
// sub-turn. Both sides receive their per-combat evasion charge budget; the
// onIce flags carry the ice attack/defense penalty resolved from the board.
func New(challenger, opponent *state.Player, challengerOnIce, opponentOnIce bool, roller rng.Roller) *Combat {
	c := &Combat{
		challenger: &Side{
			Player:   challenger,
			Life:     challenger.Specs.Life,
			OnIce:    challengerOnIce,
			Evasions: state.EvasionsPerCombat,
		},
		opponent: &Side{
			Player:   opponent,
			Life:     opponent.Specs.Life,
			OnIce:    opponentOnIce,
			Evasions: state.EvasionsPerCombat,
		},
		st:     StateInProgress,
		roller: roller,
	}
	c.actor = c.challenger
	challenger.Specs.Evasions = state.EvasionsPerCombat
	opponent.Specs.Evasions = state.EvasionsPerCombat
	challenger.Stats.Combats++
	opponent.Stats.Combats++
	return c
}

// State reports the combat lifecycle state.
func (c *Combat) State() State {
	if c == nil {
		return StateIdle
	}
	return c.st
}

// Finished reports whether the combat reached a terminal state.
func (c *Combat) Finished() bool {
	if c == nil {
		return false
	}
	return c.st != StateIdle && c.st != StateInProgress
}

// Result returns the terminal outcome, once there is one.
func (c *Combat) Result() (Result, bool) {
	if c == nil || c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

// ActorID reports whose sub-turn it is.
func (c *Combat) ActorID() string {
	if c == nil || c.actor == nil {
		return ""
	}
	return c.actor.Player.ID
}

// Involves reports whether the player is one of the two combatants.
func (c *Combat) Involves(id string) bool {
	return c != nil && (c.challenger.Player.ID == id || c.opponent.Player.ID == id)
}

// OpponentOf returns the other combatant.
func (c *Combat) OpponentOf(id string) (*state.Player, bool) {
	if c == nil {
		return nil, false
	}
	switch id {
	case c.challenger.Player.ID:
		return c.opponent.Player, true
	case c.opponent.Player.ID:
		return c.challenger.Player, true
	default:
		return nil, false
	}
}

// Countdown reports the sub-turn countdown for the current actor: shorter
// when they have no evasion charges left, so a stalled combat cannot hide
// behind a long timer.
func (c *Combat) Countdown() int {
	if c == nil || c.actor == nil {
		return 0
	}
	if c.actor.Evasions <= 0 {
		return CountdownNoEvade
	}
	return CountdownFull
}

func (c *Combat) side(id string) (*Side, *Side, bool) {
	switch id {
	case c.challenger.Player.ID:
		return c.challenger, c.opponent, true
	case c.opponent.Player.ID:
		return c.opponent, c.challenger, true
	default:
		return nil, nil, false
	}
}

func (c *Combat) flip() {
	if c.actor == c.challenger {
		c.actor = c.opponent
	} else {
		c.actor = c.challenger
	}
}

// Attack resolves one exchange for the given actor. The attacker rolls
// attack + bonus die against the defender's defense + bonus die; a strictly
// greater total costs the defender one life. Life reaching zero is terminal
// and runs the win bookkeeping exactly once.
func (c *Combat) Attack(actorID string) (AttackOutcome, error) {
	if c == nil || c.st != StateInProgress {
		return AttackOutcome{}, ErrNotInProgress
	}
	attacker, defender, ok := c.side(actorID)
	if !ok {
		return AttackOutcome{}, ErrUnknownSide
	}
	if c.actor != attacker {
		return AttackOutcome{}, ErrNotYourTurn
	}

	outcome := AttackOutcome{
		AttackerID:   attacker.Player.ID,
		DefenderID:   defender.Player.ID,
		AttackTotal:  attacker.attackTotal(c.roller),
		DefenseTotal: defender.defenseTotal(c.roller),
	}
	if outcome.AttackTotal > outcome.DefenseTotal {
		outcome.Hit = true
		defender.Life--
		if defender.Life < 0 {
			defender.Life = 0
		}
		attacker.Player.Stats.LifeDealt++
		defender.Player.Stats.LifeTaken++
	}
	outcome.DefenderLife = defender.Life

	if defender.Life == 0 {
		c.finish(attacker, defender, CauseNormal)
		outcome.Finished = true
		return outcome, nil
	}

	c.flip()
	outcome.NextActorID = c.actor.Player.ID
	outcome.NextCountdown = c.Countdown()
	return outcome, nil
}

// ForceAttack resolves an attack on behalf of whoever holds the sub-turn.
// Called when the countdown expires.
func (c *Combat) ForceAttack() (AttackOutcome, error) {
	if c == nil || c.st != StateInProgress {
		return AttackOutcome{}, ErrNotInProgress
	}
	return c.Attack(c.actor.Player.ID)
}

// Evade attempts an escape for the given actor. Success ends the combat with
// no life change on either side; failure hands the sub-turn over. The charge
// is spent either way.
func (c *Combat) Evade(actorID string) (EvadeOutcome, error) {
	if c == nil || c.st != StateInProgress {
		return EvadeOutcome{}, ErrNotInProgress
	}
	evader, _, ok := c.side(actorID)
	if !ok {
		return EvadeOutcome{}, ErrUnknownSide
	}
	if c.actor != evader {
		return EvadeOutcome{}, ErrNotYourTurn
	}
	if evader.Evasions <= 0 {
		return EvadeOutcome{}, ErrNoEvasions
	}

	evader.Evasions--
	evader.Player.Specs.Evasions = evader.Evasions

	outcome := EvadeOutcome{
		ActorID:     evader.Player.ID,
		ChargesLeft: evader.Evasions,
	}
	if c.roller.Chance(EvadeChance) {
		outcome.Success = true
		evader.Player.Stats.Evasions++
		c.st = StateEvaded
		c.result = &Result{Cause: CauseEvasion, Evader: evader.Player}
		c.writeBackLife()
		return outcome, nil
	}

	c.flip()
	outcome.NextActorID = c.actor.Player.ID
	outcome.NextCountdown = c.Countdown()
	return outcome, nil
}

// ForceDisconnect resolves the combat in favor of the remaining side after
// the other combatant drops.
func (c *Combat) ForceDisconnect(leaverID string) (Result, error) {
	if c == nil || c.st != StateInProgress {
		return Result{}, ErrNotInProgress
	}
	loser, winner, ok := c.side(leaverID)
	if !ok {
		return Result{}, ErrUnknownSide
	}
	c.finish(winner, loser, CauseDisconnection)
	return *c.result, nil
}

// finish runs the terminal transition and the once-only statistics update.
func (c *Combat) finish(winner, loser *Side, cause Cause) {
	if cause == CauseDisconnection {
		c.st = StateDisconnected
	} else if winner == c.challenger {
		c.st = StateWon
	} else {
		c.st = StateLost
	}
	winner.Player.Stats.Victories++
	loser.Player.Stats.Defeats++
	c.result = &Result{
		Winner: winner.Player,
		Loser:  loser.Player,
		Cause:  cause,
	}
	c.writeBackLife()
}

// writeBackLife copies the fight snapshots back onto the players.
func (c *Combat) writeBackLife() {
	c.challenger.Player.Specs.Life = c.challenger.Life
	c.opponent.Player.Specs.Life = c.opponent.Life
}
