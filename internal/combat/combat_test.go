package combat

import (
	"testing"

	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
)

// scriptRoller feeds a fixed sequence of die results and chance outcomes.
type scriptRoller struct {
	rolls   []int
	chances []bool
}

func (s *scriptRoller) Roll(sides int) int {
	if len(s.rolls) == 0 {
		return 1
	}
	v := s.rolls[0]
	s.rolls = s.rolls[1:]
	return v
}

func (s *scriptRoller) Chance(p float64) bool {
	if len(s.chances) == 0 {
		return false
	}
	v := s.chances[0]
	s.chances = s.chances[1:]
	return v
}

func fighters() (*state.Player, *state.Player) {
	challenger := state.NewPlayer("challenger", "challenger", true)
	opponent := state.NewPlayer("opponent", "opponent", false)
	return challenger, opponent
}

func TestAttackHitAndSubTurnFlip(t *testing.T) {
	challenger, opponent := fighters()
	// attack 4 + roll 6 = 10 vs defense 4 + roll 3 = 7.
	roller := &scriptRoller{rolls: []int{6, 3}}
	c := New(challenger, opponent, false, false, roller)

	outcome, err := c.Attack("challenger")
	if err != nil {
		t.Fatalf("attack failed: %v", err)
	}
	if outcome.AttackTotal != 10 || outcome.DefenseTotal != 7 {
		t.Fatalf("expected 10 vs 7, got %d vs %d", outcome.AttackTotal, outcome.DefenseTotal)
	}
	if !outcome.Hit {
		t.Fatal("expected a hit")
	}
	if outcome.DefenderLife != state.DefaultLife-1 {
		t.Fatalf("expected defender at %d life, got %d", state.DefaultLife-1, outcome.DefenderLife)
	}
	if outcome.Finished {
		t.Fatal("combat should continue")
	}
	if c.ActorID() != "opponent" {
		t.Fatalf("expected sub-turn to flip to opponent, got %s", c.ActorID())
	}
	if c.State() != StateInProgress {
		t.Fatalf("expected in-progress, got %s", c.State())
	}
}

func TestAttackTieDealsNoDamage(t *testing.T) {
	challenger, opponent := fighters()
	roller := &scriptRoller{rolls: []int{3, 3}}
	c := New(challenger, opponent, false, false, roller)

	outcome, err := c.Attack("challenger")
	if err != nil {
		t.Fatalf("attack failed: %v", err)
	}
	if outcome.Hit {
		t.Fatal("equal totals must not deal damage")
	}
	if outcome.DefenderLife != state.DefaultLife {
		t.Fatalf("expected untouched life, got %d", outcome.DefenderLife)
	}
	if c.ActorID() != "opponent" {
		t.Fatal("sub-turn should still flip on a miss")
	}
}

func TestOutOfTurnAttackRejected(t *testing.T) {
	challenger, opponent := fighters()
	c := New(challenger, opponent, false, false, &scriptRoller{})

	if _, err := c.Attack("opponent"); err != ErrNotYourTurn {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if _, err := c.Attack("stranger"); err != ErrUnknownSide {
		t.Fatalf("expected ErrUnknownSide, got %v", err)
	}
}

func TestLifeFloorsAtZeroAndStatsUpdateOnce(t *testing.T) {
	challenger, opponent := fighters()
	// Challenger always rolls 6 and wins; opponent passes its sub-turn by
	// attacking with a guaranteed miss (roll 1 vs defense roll 6).
	roller := &scriptRoller{rolls: []int{
		6, 1, // hit: opponent 3
		1, 6, // miss
		6, 1, // hit: opponent 2
		1, 6, // miss
		6, 1, // hit: opponent 1
		1, 6, // miss
		6, 1, // hit: opponent 0, terminal
	}}
	c := New(challenger, opponent, false, false, roller)

	for !c.Finished() {
		if _, err := c.Attack(c.ActorID()); err != nil {
			t.Fatalf("attack failed: %v", err)
		}
	}

	if c.State() != StateWon {
		t.Fatalf("expected challenger win, got %s", c.State())
	}
	result, ok := c.Result()
	if !ok || result.Winner.ID != "challenger" || result.Loser.ID != "opponent" {
		t.Fatalf("unexpected result %+v ok=%v", result, ok)
	}
	if result.Cause != CauseNormal {
		t.Fatalf("expected normal cause, got %s", result.Cause)
	}
	if opponent.Specs.Life != 0 {
		t.Fatalf("expected loser at 0 life, got %d", opponent.Specs.Life)
	}
	if challenger.Stats.Victories != 1 || opponent.Stats.Defeats != 1 {
		t.Fatalf("expected single win/loss, got %d/%d", challenger.Stats.Victories, opponent.Stats.Defeats)
	}
	if challenger.Stats.LifeDealt != 4 || opponent.Stats.LifeTaken != 4 {
		t.Fatalf("expected 4 life dealt/taken, got %d/%d", challenger.Stats.LifeDealt, opponent.Stats.LifeTaken)
	}

	// Terminal combats reject further actions.
	if _, err := c.Attack("challenger"); err != ErrNotInProgress {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
}

func TestEvadeSuccessEndsCombatUnchanged(t *testing.T) {
	challenger, opponent := fighters()
	roller := &scriptRoller{chances: []bool{true}}
	c := New(challenger, opponent, false, false, roller)

	outcome, err := c.Evade("challenger")
	if err != nil {
		t.Fatalf("evade failed: %v", err)
	}
	if !outcome.Success {
		t.Fatal("expected evasion success")
	}
	if outcome.ChargesLeft != state.EvasionsPerCombat-1 {
		t.Fatalf("expected charge spent, got %d", outcome.ChargesLeft)
	}
	if c.State() != StateEvaded {
		t.Fatalf("expected evaded state, got %s", c.State())
	}
	result, ok := c.Result()
	if !ok || result.Evader.ID != "challenger" || result.Cause != CauseEvasion {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Winner != nil || result.Loser != nil {
		t.Fatal("evasion has no winner or loser")
	}
	if challenger.Specs.Life != state.DefaultLife || opponent.Specs.Life != state.DefaultLife {
		t.Fatal("evasion must not change life totals")
	}
	if challenger.Stats.Evasions != 1 {
		t.Fatalf("expected one recorded evasion, got %d", challenger.Stats.Evasions)
	}
}

func TestEvadeFailureFlipsAndSpendsCharge(t *testing.T) {
	challenger, opponent := fighters()
	roller := &scriptRoller{chances: []bool{false}}
	c := New(challenger, opponent, false, false, roller)

	outcome, err := c.Evade("challenger")
	if err != nil {
		t.Fatalf("evade failed: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected evasion failure")
	}
	if outcome.ChargesLeft != state.EvasionsPerCombat-1 {
		t.Fatalf("failure must still spend the charge, got %d", outcome.ChargesLeft)
	}
	if c.ActorID() != "opponent" {
		t.Fatal("expected sub-turn flip after failed evasion")
	}
	if c.State() != StateInProgress {
		t.Fatalf("expected in-progress, got %s", c.State())
	}
}

func TestEvadeExhaustedRejected(t *testing.T) {
	challenger, opponent := fighters()
	// Two failures exhaust the budget; keep the fight going by missing on
	// the opponent sub-turns.
	roller := &scriptRoller{
		chances: []bool{false, false},
		rolls:   []int{1, 6, 1, 6},
	}
	c := New(challenger, opponent, false, false, roller)

	if _, err := c.Evade("challenger"); err != nil {
		t.Fatalf("first evade: %v", err)
	}
	if _, err := c.Attack("opponent"); err != nil {
		t.Fatalf("opponent pass: %v", err)
	}
	if _, err := c.Evade("challenger"); err != nil {
		t.Fatalf("second evade: %v", err)
	}
	if _, err := c.Attack("opponent"); err != nil {
		t.Fatalf("opponent pass: %v", err)
	}
	if _, err := c.Evade("challenger"); err != ErrNoEvasions {
		t.Fatalf("expected ErrNoEvasions, got %v", err)
	}
}

func TestCountdownShrinksWithoutEvasions(t *testing.T) {
	challenger, opponent := fighters()
	roller := &scriptRoller{chances: []bool{false, false}, rolls: []int{1, 6, 1, 6}}
	c := New(challenger, opponent, false, false, roller)

	if c.Countdown() != CountdownFull {
		t.Fatalf("expected full countdown, got %d", c.Countdown())
	}
	c.Evade("challenger")
	c.Attack("opponent")
	c.Evade("challenger")
	c.Attack("opponent")
	if c.Countdown() != CountdownNoEvade {
		t.Fatalf("expected reduced countdown after exhausting evasions, got %d", c.Countdown())
	}
}

func TestForceAttackActsForCurrentHolder(t *testing.T) {
	challenger, opponent := fighters()
	roller := &scriptRoller{rolls: []int{6, 1}}
	c := New(challenger, opponent, false, false, roller)

	outcome, err := c.ForceAttack()
	if err != nil {
		t.Fatalf("force attack failed: %v", err)
	}
	if outcome.AttackerID != "challenger" {
		t.Fatalf("expected forced attack by challenger, got %s", outcome.AttackerID)
	}
}

func TestForceDisconnectAwardsRemainingSide(t *testing.T) {
	challenger, opponent := fighters()
	c := New(challenger, opponent, false, false, &scriptRoller{})

	result, err := c.ForceDisconnect("opponent")
	if err != nil {
		t.Fatalf("force disconnect failed: %v", err)
	}
	if result.Winner.ID != "challenger" || result.Loser.ID != "opponent" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Cause != CauseDisconnection {
		t.Fatalf("expected disconnection cause, got %s", result.Cause)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", c.State())
	}
	if challenger.Stats.Victories != 1 || opponent.Stats.Defeats != 1 {
		t.Fatal("disconnect win bookkeeping should apply")
	}
}

func TestIcePenaltyApplies(t *testing.T) {
	challenger, opponent := fighters()
	// Challenger on ice: attack 4 + 6 - 2 = 8 vs defense 4 + 4 = 8, a miss
	// that would have hit on dry ground.
	roller := &scriptRoller{rolls: []int{6, 4}}
	c := New(challenger, opponent, true, false, roller)

	outcome, err := c.Attack("challenger")
	if err != nil {
		t.Fatalf("attack failed: %v", err)
	}
	if outcome.AttackTotal != 8 {
		t.Fatalf("expected penalized total 8, got %d", outcome.AttackTotal)
	}
	if outcome.Hit {
		t.Fatal("penalized attack should miss on a tie")
	}
}

func TestDiceUseAssignedBonusDie(t *testing.T) {
	challenger, opponent := fighters()
	c := New(challenger, opponent, false, false, rng.NewRoller(1))

	// Structural check: the challenger was set up with a d6 attack die and
	// the opponent with a d6 defense die.
	if challenger.Specs.AttackDie != state.D6 || opponent.Specs.DefenseDie != state.D6 {
		t.Fatal("fixture dice wired incorrectly")
	}
	if c.Countdown() != CountdownFull {
		t.Fatalf("fresh combat should use the full countdown, got %d", c.Countdown())
	}
}
