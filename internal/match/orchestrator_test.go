package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"gridrush/server/internal/combat"
	"gridrush/server/internal/grid"
	"gridrush/server/internal/journal"
	"gridrush/server/internal/state"
	"gridrush/server/internal/timers"
)

type scriptRoller struct {
	rolls   []int
	chances []bool
}

func (r *scriptRoller) Roll(sides int) int {
	if len(r.rolls) == 0 {
		return 1
	}
	v := r.rolls[0]
	r.rolls = r.rolls[1:]
	if v > sides {
		v = sides
	}
	return v
}

func (r *scriptRoller) Chance(float64) bool {
	if len(r.chances) == 0 {
		return false
	}
	v := r.chances[0]
	r.chances = r.chances[1:]
	return v
}

type memorySub struct {
	id string

	mu     sync.Mutex
	events []Event
}

func (s *memorySub) ID() string { return s.id }

func (s *memorySub) Deliver(event Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *memorySub) ofType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Event
	for _, e := range s.events {
		if e.Type == t {
			matched = append(matched, e)
		}
	}
	return matched
}

func (s *memorySub) last(t EventType) (Event, bool) {
	matched := s.ofType(t)
	if len(matched) == 0 {
		return Event{}, false
	}
	return matched[len(matched)-1], true
}

// newTestMatch builds a two-player match on an all-floor board. Players sit
// at (0,0) and (0,2), both spawned where they stand.
func newTestMatch(t *testing.T, mode state.Mode, roller *scriptRoller) (*Match, *memorySub, *memorySub) {
	t.Helper()
	board := grid.NewMap(8, 8, nil, nil, nil)
	game := state.NewGame("m-test", mode, board)

	p1 := state.NewPlayer("p1", "Ada", true)
	p1.Pos = grid.Coord{X: 0, Y: 0}
	p1.Spawn = p1.Pos
	p2 := state.NewPlayer("p2", "Brin", false)
	p2.Pos = grid.Coord{X: 0, Y: 2}
	p2.Spawn = p2.Pos
	game.Players = []*state.Player{p1, p2}

	m := New(game, DefaultConfig(), Deps{
		Roller:  roller,
		Journal: journal.New("m-test", nil),
	})
	sub1 := &memorySub{id: "p1"}
	sub2 := &memorySub{id: "p2"}
	m.Subscribe(sub1)
	m.Subscribe(sub2)
	return m, sub1, sub2
}

// pump drains and dispatches staged commands until the ring is empty,
// standing in for the match goroutine.
func pump(ctx context.Context, m *Match) {
	for {
		cmds := m.commands.Drain()
		if len(cmds) == 0 {
			return
		}
		for _, cmd := range cmds {
			if m.finished {
				return
			}
			m.dispatch(ctx, cmd)
		}
	}
}

func start(ctx context.Context, m *Match) {
	m.game.Started = true
	m.beginTurn(ctx)
	pump(ctx, m)
}

func TestTurnStartEmitsOptionsToActorOnly(t *testing.T) {
	ctx := context.Background()
	m, sub1, sub2 := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	start(ctx, m)

	if _, ok := sub1.last(EventTurnChanged); !ok {
		t.Fatal("room did not hear turnChanged")
	}
	if _, ok := sub1.last(EventTurnOptions); !ok {
		t.Fatal("actor did not receive options")
	}
	if got := sub2.ofType(EventTurnOptions); len(got) != 0 {
		t.Fatalf("non-actor received %d option events", len(got))
	}
}

func TestMoveBroadcastsAndSpendsBudget(t *testing.T) {
	ctx := context.Background()
	m, sub1, sub2 := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandMove, Move: &MoveCommand{Dest: grid.Coord{X: 2, Y: 0}}})
	pump(ctx, m)

	p1, _ := m.game.PlayerByID("p1")
	if (p1.Pos != grid.Coord{X: 2, Y: 0}) {
		t.Fatalf("player did not move, at %v", p1.Pos)
	}
	if p1.Specs.MovePoints != state.DefaultSpeed-2 {
		t.Fatalf("expected 2 move points spent, have %d", p1.Specs.MovePoints)
	}
	moved, ok := sub2.last(EventMoved)
	if !ok {
		t.Fatal("room did not hear the move")
	}
	payload := moved.Payload.(MovedPayload)
	if payload.Cost != 2 || payload.Fell {
		t.Fatalf("unexpected move payload %+v", payload)
	}
	if len(sub1.ofType(EventRejected)) != 0 {
		t.Fatal("legal move was rejected")
	}
}

func TestMoveOutOfTurnRejectedSilently(t *testing.T) {
	ctx := context.Background()
	m, _, sub2 := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p2", Type: CommandMove, Move: &MoveCommand{Dest: grid.Coord{X: 0, Y: 3}}})
	pump(ctx, m)

	p2, _ := m.game.PlayerByID("p2")
	if (p2.Pos != grid.Coord{X: 0, Y: 2}) {
		t.Fatal("out-of-turn move mutated state")
	}
	if _, ok := sub2.last(EventRejected); !ok {
		t.Fatal("actor was not told about the rejection")
	}
	if got := sub2.ofType(EventMoved); len(got) != 0 {
		t.Fatal("rejected move was broadcast")
	}
}

func TestUnknownActorRejected(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	ghost := &memorySub{id: "ghost"}
	m.Subscribe(ghost)
	start(ctx, m)

	m.Enqueue(Command{ActorID: "ghost", Type: CommandEndTurn})
	pump(ctx, m)

	rej, ok := ghost.last(EventRejected)
	if !ok {
		t.Fatal("unknown actor got no rejection")
	}
	if rej.Payload.(RejectedPayload).Reason != RejectUnknownActor {
		t.Fatalf("unexpected reason %+v", rej.Payload)
	}
}

func TestEndTurnAdvancesToNextPlayer(t *testing.T) {
	ctx := context.Background()
	m, _, sub2 := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandEndTurn})
	pump(ctx, m)

	current, ok := m.sched.Current()
	if !ok || current.ID != "p2" {
		t.Fatalf("expected p2's turn, got %+v", current)
	}
	if _, ok := sub2.last(EventTurnOptions); !ok {
		t.Fatal("new actor did not receive options")
	}
	if m.game.TurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", m.game.TurnCount)
	}
}

func TestCombatToTheEnd(t *testing.T) {
	ctx := context.Background()
	// Ada always rolls high on attack, Brin rolls low everywhere. Each
	// exchange draws attacker roll then defender roll.
	roller := &scriptRoller{rolls: []int{6, 1}}
	m, sub1, sub2 := newTestMatch(t, state.ModeClassic, roller)

	p1, _ := m.game.PlayerByID("p1")
	p2, _ := m.game.PlayerByID("p2")
	p2.Pos = grid.Coord{X: 0, Y: 1}
	p2.Specs.Life = 1
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	pump(ctx, m)
	if _, ok := sub2.last(EventCombatStarted); !ok {
		t.Fatal("combat start was not broadcast")
	}

	m.Enqueue(Command{ActorID: "p1", Type: CommandAttack})
	pump(ctx, m)

	finished, ok := sub1.last(EventCombatFinished)
	if !ok {
		t.Fatal("combat did not finish")
	}
	payload := finished.Payload.(CombatFinishedPayload)
	if payload.WinnerID != "p1" || payload.LoserID != "p2" {
		t.Fatalf("unexpected outcome %+v", payload)
	}
	if p1.Stats.Victories != 1 || p2.Stats.Defeats != 1 {
		t.Fatalf("stats not updated: %+v %+v", p1.Stats, p2.Stats)
	}
	if p2.Specs.Life != p2.Specs.MaxLife {
		t.Fatalf("loser life not restored, have %d", p2.Specs.Life)
	}
	if payload.Respawn == nil {
		t.Fatal("loser was not repositioned")
	}
	if m.fight != nil {
		t.Fatal("fight still attached after resolution")
	}
	if m.finished {
		t.Fatal("single victory should not end the match")
	}
}

func TestCombatWinThresholdEndsMatch(t *testing.T) {
	ctx := context.Background()
	roller := &scriptRoller{rolls: []int{6, 1}}
	m, sub1, _ := newTestMatch(t, state.ModeClassic, roller)

	p1, _ := m.game.PlayerByID("p1")
	p2, _ := m.game.PlayerByID("p2")
	p1.Stats.Victories = 2
	p2.Pos = grid.Coord{X: 0, Y: 1}
	p2.Specs.Life = 1
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	m.Enqueue(Command{ActorID: "p1", Type: CommandAttack})
	pump(ctx, m)

	won, ok := sub1.last(EventMatchWon)
	if !ok {
		t.Fatal("threshold win was not announced")
	}
	payload := won.Payload.(WinPayload)
	if payload.WinnerID != "p1" || payload.Cause != WinCauseCombatThreshold {
		t.Fatalf("unexpected win %+v", payload)
	}
	if !m.finished {
		t.Fatal("match should be finished")
	}
}

func TestCombatTimeoutForcesAttack(t *testing.T) {
	ctx := context.Background()
	roller := &scriptRoller{rolls: []int{6, 1}}
	m, sub1, _ := newTestMatch(t, state.ModeClassic, roller)

	p2, _ := m.game.PlayerByID("p2")
	p2.Pos = grid.Coord{X: 0, Y: 1}
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	pump(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: commandCombatTimeout})
	pump(ctx, m)

	attack, ok := sub1.last(EventCombatAttack)
	if !ok {
		t.Fatal("timeout did not force an attack")
	}
	if attack.Payload.(combat.AttackOutcome).AttackerID != "p1" {
		t.Fatal("forced attack credited to the wrong side")
	}
}

func TestCaptureTheFlagWin(t *testing.T) {
	ctx := context.Background()
	m, sub1, _ := newTestMatch(t, state.ModeCTF, &scriptRoller{})

	p1, _ := m.game.PlayerByID("p1")
	m.game.Map.PlaceItem(grid.Item{Coord: grid.Coord{X: 1, Y: 0}, Kind: grid.ItemFlag})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandMove, Move: &MoveCommand{Dest: grid.Coord{X: 1, Y: 0}}})
	pump(ctx, m)

	if !p1.CarryingFlag {
		t.Fatal("flag pickup not latched")
	}
	if _, ok := sub1.last(EventFlagCarrier); !ok {
		t.Fatal("carrier notification missing")
	}
	if m.finished {
		t.Fatal("carrying the flag away from spawn must not win")
	}

	m.Enqueue(Command{ActorID: "p1", Type: CommandMove, Move: &MoveCommand{Dest: p1.Spawn}})
	pump(ctx, m)

	won, ok := sub1.last(EventMatchWon)
	if !ok {
		t.Fatal("flag return did not win the match")
	}
	if won.Payload.(WinPayload).Cause != WinCauseFlag {
		t.Fatalf("unexpected cause %+v", won.Payload)
	}
}

func TestFlagAtWrongPositionDoesNotWin(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestMatch(t, state.ModeCTF, &scriptRoller{})

	p1, _ := m.game.PlayerByID("p1")
	p1.Inventory = append(p1.Inventory, grid.ItemFlag)
	p1.CarryingFlag = true
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandMove, Move: &MoveCommand{Dest: grid.Coord{X: 2, Y: 0}}})
	pump(ctx, m)

	if m.finished {
		t.Fatal("flag away from spawn must not win")
	}
}

func TestDisconnectLeavesLastPlayerStanding(t *testing.T) {
	ctx := context.Background()
	m, sub1, _ := newTestMatch(t, state.ModeClassic, &scriptRoller{})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p2", Type: CommandDisconnect})
	pump(ctx, m)

	won, ok := sub1.last(EventMatchWon)
	if !ok {
		t.Fatal("last player standing was not declared")
	}
	payload := won.Payload.(WinPayload)
	if payload.WinnerID != "p1" || payload.Cause != WinCauseLastPlayer {
		t.Fatalf("unexpected win %+v", payload)
	}
}

func TestDisconnectDuringCombatResolvesForRemaining(t *testing.T) {
	ctx := context.Background()
	m, sub1, _ := newTestMatch(t, state.ModeClassic, &scriptRoller{})

	p2, _ := m.game.PlayerByID("p2")
	p2.Pos = grid.Coord{X: 0, Y: 1}
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	m.Enqueue(Command{ActorID: "p2", Type: CommandDisconnect})
	pump(ctx, m)

	finished, ok := sub1.last(EventCombatFinished)
	if !ok {
		t.Fatal("disconnect did not resolve the combat")
	}
	payload := finished.Payload.(CombatFinishedPayload)
	if payload.WinnerID != "p1" {
		t.Fatalf("remaining side should win, got %+v", payload)
	}
}

func TestFallTimeoutEndsTurn(t *testing.T) {
	ctx := context.Background()
	// The single ice tile triggers a fall on entry.
	roller := &scriptRoller{chances: []bool{true}}
	m, sub2, _ := newTestMatch(t, state.ModeClassic, roller)

	board := grid.NewMap(8, 8, []grid.Tile{
		{Coord: grid.Coord{X: 1, Y: 0}, Terrain: grid.TerrainIce},
	}, nil, nil)
	m.game.Map = board
	start(ctx, m)

	// With nil timers the fall continuation is posted straight back onto
	// the ring, so the turn closes within the same pump.
	m.Enqueue(Command{ActorID: "p1", Type: CommandMove, Move: &MoveCommand{Dest: grid.Coord{X: 3, Y: 0}}})
	pump(ctx, m)

	if got := sub2.ofType(EventFell); len(got) != 1 {
		t.Fatalf("expected one fall event, got %d", len(got))
	}
	current, ok := m.sched.Current()
	if !ok || current.ID != "p2" {
		t.Fatal("fall did not close the turn")
	}
}

func TestEliminationAfterDefeatThreshold(t *testing.T) {
	ctx := context.Background()
	roller := &scriptRoller{rolls: []int{6, 1}}
	m, sub1, _ := newTestMatch(t, state.ModeClassic, roller)

	p2, _ := m.game.PlayerByID("p2")
	p2.Pos = grid.Coord{X: 0, Y: 1}
	p2.Specs.Life = 1
	p2.Stats.Defeats = 2
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	m.Enqueue(Command{ActorID: "p1", Type: CommandAttack})
	pump(ctx, m)

	if !p2.Eliminated || !p2.Observer {
		t.Fatal("third defeat should eliminate into observation mode")
	}
	if _, ok := sub1.last(EventEliminated); !ok {
		t.Fatal("elimination was not broadcast")
	}
	// Two players: elimination leaves one standing, so the match ends.
	won, ok := sub1.last(EventMatchWon)
	if !ok {
		t.Fatal("elimination win missing")
	}
	if won.Payload.(WinPayload).Cause != WinCauseElimination {
		t.Fatalf("unexpected cause %+v", won.Payload)
	}
}

func TestEliminatingCurrentActorHandsTurnToNextSeat(t *testing.T) {
	ctx := context.Background()
	// Ada whiffs, Cleo lands the kill. Each exchange draws the attacker die
	// then the defender die.
	roller := &scriptRoller{rolls: []int{1, 4, 6, 1}}
	board := grid.NewMap(8, 8, nil, nil, nil)
	game := state.NewGame("m-test", state.ModeClassic, board)

	p1 := state.NewPlayer("p1", "Ada", true)
	p1.Pos = grid.Coord{X: 0, Y: 0}
	p1.Spawn = p1.Pos
	p1.Specs.Life = 1
	p1.Stats.Defeats = 2
	p2 := state.NewPlayer("p2", "Brin", true)
	p2.Pos = grid.Coord{X: 7, Y: 7}
	p2.Spawn = p2.Pos
	p2.Bot = true
	p2.Profile = state.ProfileAggressive
	p3 := state.NewPlayer("p3", "Cleo", true)
	p3.Pos = grid.Coord{X: 0, Y: 1}
	p3.Spawn = p3.Pos
	game.Players = []*state.Player{p1, p2, p3}

	m := New(game, DefaultConfig(), Deps{
		Roller:  roller,
		Journal: journal.New("m-test", nil),
	})
	room := &memorySub{id: "p3"}
	m.Subscribe(room)
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p3"}})
	m.Enqueue(Command{ActorID: "p1", Type: CommandAttack})
	m.Enqueue(Command{ActorID: "p3", Type: CommandAttack})
	pump(ctx, m)

	if !p1.Eliminated {
		t.Fatal("third defeat should eliminate the challenger")
	}
	if m.finished {
		t.Fatal("two players remain, the match must continue")
	}

	// The bot seat after the eliminated actor gets exactly one announced
	// turn, then play passes on.
	var actors []string
	for _, e := range room.ofType(EventTurnChanged) {
		actors = append(actors, e.Payload.(TurnChangedPayload).ActorID)
	}
	want := []string{"p1", "p2", "p3"}
	if len(actors) != len(want) {
		t.Fatalf("turn announcements %v, want %v", actors, want)
	}
	for i := range want {
		if actors[i] != want[i] {
			t.Fatalf("turn announcements %v, want %v", actors, want)
		}
	}

	for _, e := range room.ofType(EventMoved) {
		if id := e.Payload.(MovedPayload).ActorID; id != "p2" {
			t.Fatalf("unexpected move by %s", id)
		}
	}
}

func TestSubTurnFlipRetiresOutgoingCountdown(t *testing.T) {
	ctx := context.Background()
	roller := &scriptRoller{rolls: []int{1, 6}}
	board := grid.NewMap(8, 8, nil, nil, nil)
	game := state.NewGame("m-test", state.ModeClassic, board)
	p1 := state.NewPlayer("p1", "Ada", true)
	p1.Pos = grid.Coord{X: 0, Y: 0}
	p1.Spawn = p1.Pos
	p2 := state.NewPlayer("p2", "Brin", false)
	p2.Pos = grid.Coord{X: 0, Y: 1}
	p2.Spawn = p2.Pos
	game.Players = []*state.Player{p1, p2}

	clock := timers.NewScheduler()
	defer clock.Close()
	cfg := DefaultConfig()
	cfg.TimeUnit = time.Hour

	m := New(game, cfg, Deps{
		Roller:  roller,
		Journal: journal.New("m-test", nil),
		Timers:  clock,
	})
	m.Subscribe(&memorySub{id: "p1"})
	start(ctx, m)

	m.Enqueue(Command{ActorID: "p1", Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: "p2"}})
	pump(ctx, m)
	if got := clock.Pending(); got != 1 {
		t.Fatalf("expected one armed countdown after combat start, have %d", got)
	}

	m.Enqueue(Command{ActorID: "p1", Type: CommandAttack})
	pump(ctx, m)
	if m.fight == nil || m.fight.ActorID() != "p2" {
		t.Fatal("expected the sub-turn to flip to p2")
	}
	if got := clock.Pending(); got != 1 {
		t.Fatalf("sub-turn flip left a stale countdown armed, pending=%d", got)
	}
}
