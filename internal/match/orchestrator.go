// Package match runs one game to completion. Each match owns a goroutine
// that drains a command ring; every mutation of the aggregate happens on
// that goroutine, so the engine packages below carry no locks.
package match

import (
	"context"
	"sync"
	"time"

	"gridrush/server/internal/bot"
	"gridrush/server/internal/combat"
	"gridrush/server/internal/grid"
	"gridrush/server/internal/journal"
	"gridrush/server/internal/reward"
	"gridrush/server/internal/rng"
	"gridrush/server/internal/state"
	"gridrush/server/internal/telemetry"
	"gridrush/server/internal/timers"
	"gridrush/server/internal/turn"
	"gridrush/server/logging"
	"gridrush/server/logging/combatlog"
	"gridrush/server/logging/matchlog"
)

const commandsTotalMetricKey = "match_commands_total"

// Config tunes one match's timing and win rules.
type Config struct {
	// TimeUnit scales the combat countdown, which is specified in units.
	TimeUnit time.Duration
	// FallGrace is the pause between a fall and the forced end of turn.
	FallGrace time.Duration
	// CombatWinThreshold ends a classic match when one player reaches this
	// many combat victories. Zero disables the rule.
	CombatWinThreshold int
	// EliminationDefeats moves a player into observation mode at this many
	// combat defeats. Zero disables the rule.
	EliminationDefeats int
	// QueueSize bounds the staged-command ring.
	QueueSize int
}

// DefaultConfig returns the production rule set.
func DefaultConfig() Config {
	return Config{
		TimeUnit:           time.Second,
		FallGrace:          3 * time.Second,
		CombatWinThreshold: 3,
		EliminationDefeats: 3,
		QueueSize:          64,
	}
}

func (c Config) withDefaults() Config {
	if c.TimeUnit <= 0 {
		c.TimeUnit = time.Second
	}
	if c.FallGrace <= 0 {
		c.FallGrace = 3 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	return c
}

// Deps bundles the collaborators a match consumes. Zero values degrade to
// no-ops so tests can wire only what they observe.
type Deps struct {
	Roller    rng.Roller
	Timers    *timers.Scheduler
	Journal   *journal.Journal
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Reward    reward.Notifier
	Logger    telemetry.Logger
}

// Match drives one Game aggregate to its terminal state.
type Match struct {
	id     string
	game   *state.Game
	sched  *turn.Scheduler
	roller rng.Roller
	cfg    Config

	fight *combat.Combat

	timers  *timers.Scheduler
	journal *journal.Journal
	pub     logging.Publisher
	metrics telemetry.Metrics
	reward  reward.Notifier
	logger  telemetry.Logger

	bots map[string]bot.Policy

	commands *CommandBuffer
	wake     chan struct{}
	done     chan struct{}

	subMu sync.RWMutex
	subs  map[string]Subscriber

	finished bool
	closed   sync.Once
}

// New assembles a match around a prepared aggregate. Run must be called to
// start processing commands.
func New(game *state.Game, cfg Config, deps Deps) *Match {
	cfg = cfg.withDefaults()
	if deps.Roller == nil {
		roller, err := rng.NewSecureRoller()
		if err != nil {
			roller = rng.NewRoller(time.Now().UnixNano())
		}
		deps.Roller = roller
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NopMetrics()
	}
	if deps.Reward == nil {
		deps.Reward = reward.NopNotifier()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	m := &Match{
		id:       game.ID,
		game:     game,
		sched:    turn.NewScheduler(game, deps.Roller),
		roller:   deps.Roller,
		cfg:      cfg,
		timers:   deps.Timers,
		journal:  deps.Journal,
		pub:      deps.Publisher,
		metrics:  deps.Metrics,
		reward:   deps.Reward,
		logger:   deps.Logger,
		bots:     make(map[string]bot.Policy),
		commands: NewCommandBuffer(cfg.QueueSize, deps.Metrics),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		subs:     make(map[string]Subscriber),
	}
	for _, p := range game.Players {
		if p.Bot {
			m.bots[p.ID] = bot.ForProfile(p.Profile, deps.Roller)
		}
	}
	return m
}

// ID returns the match id.
func (m *Match) ID() string { return m.id }

// Done closes when the match goroutine has exited.
func (m *Match) Done() <-chan struct{} { return m.done }

// Subscribe registers an event consumer. Safe from any goroutine.
func (m *Match) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	m.subMu.Lock()
	m.subs[sub.ID()] = sub
	m.subMu.Unlock()
}

// Unsubscribe removes an event consumer.
func (m *Match) Unsubscribe(id string) {
	m.subMu.Lock()
	delete(m.subs, id)
	m.subMu.Unlock()
}

// Enqueue stages a command for the match goroutine, reporting false when
// the ring is full. A full ring rejects the command back to its sender
// instead of blocking the transport.
func (m *Match) Enqueue(cmd Command) bool {
	if m == nil {
		return false
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	if !m.commands.Push(cmd) {
		m.reject(cmd, RejectQueueFull, "command queue full")
		return false
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// HasPlayer reports whether the id belongs to one of the match's players.
// Player identities are fixed at assembly, so this reads without a lock.
func (m *Match) HasPlayer(id string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.game.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Inspect runs fn on the match goroutine with exclusive access to the
// aggregate and blocks until it has run. It reports false when the match
// finished before fn could be scheduled.
func (m *Match) Inspect(fn func(*state.Game)) bool {
	if m == nil || fn == nil {
		return false
	}
	ran := make(chan struct{})
	cmd := Command{Type: commandInspect, inspect: func(g *state.Game) {
		fn(g)
		close(ran)
	}}
	if !m.Enqueue(cmd) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-m.done:
		return false
	}
}

// Run processes commands until the match ends or the context is cancelled.
// It owns all mutation of the aggregate.
func (m *Match) Run(ctx context.Context) {
	defer m.teardown(ctx)

	m.game.Started = true
	m.beginTurn(ctx)

	for {
		if m.finished {
			return
		}
		select {
		case <-ctx.Done():
			m.endMatch(ctx, "", WinCauseForced)
			return
		case <-m.wake:
			for _, cmd := range m.commands.Drain() {
				m.metrics.Add(commandsTotalMetricKey, 1)
				m.dispatch(ctx, cmd)
				if m.finished {
					return
				}
			}
		}
	}
}

func (m *Match) dispatch(ctx context.Context, cmd Command) {
	if m.finished {
		m.reject(cmd, RejectMatchOver, "match already ended")
		return
	}
	switch cmd.Type {
	case commandCombatTimeout:
		m.handleCombatTimeout(ctx, cmd)
		return
	case commandFallTimeout:
		m.handleFallTimeout(ctx, cmd)
		return
	case commandBeginTurn:
		m.beginTurn(ctx)
		return
	case commandInspect:
		if cmd.inspect != nil {
			cmd.inspect(m.game)
		}
		return
	}
	if _, ok := m.game.PlayerByID(cmd.ActorID); !ok {
		m.reject(cmd, RejectUnknownActor, "unknown player")
		return
	}
	switch cmd.Type {
	case CommandRequestMoves:
		m.handleRequestMoves(cmd)
	case CommandMove:
		m.handleMove(ctx, cmd)
	case CommandEndTurn:
		m.handleEndTurn(ctx, cmd)
	case CommandToggleDoor:
		m.handleToggleDoor(ctx, cmd)
	case CommandBreakWall:
		m.handleBreakWall(ctx, cmd)
	case CommandStartCombat:
		m.handleStartCombat(ctx, cmd)
	case CommandAttack:
		m.handleAttack(ctx, cmd)
		m.driveBotCombat(ctx)
	case CommandEvade:
		m.handleEvade(ctx, cmd)
		m.driveBotCombat(ctx)
	case CommandDisconnect:
		m.handleDisconnect(ctx, cmd)
	default:
		m.reject(cmd, RejectIllegal, "unsupported command")
	}
}

// beginTurn opens the current actor's turn and pushes their options. Bots
// act immediately on the match goroutine.
func (m *Match) beginTurn(ctx context.Context) {
	actor, opts, err := m.sched.StartTurn()
	if err != nil {
		m.endMatch(ctx, "", WinCauseForced)
		return
	}

	m.emit(Event{
		Type:     EventTurnChanged,
		Audience: AudienceMatch,
		Payload:  TurnChangedPayload{ActorID: actor.ID},
	})
	m.emit(Event{
		Type:     EventTurnOptions,
		Audience: AudiencePlayer,
		PlayerID: actor.ID,
		Payload:  optionsPayload(actor.ID, opts),
	})
	matchlog.TurnStarted(ctx, m.pub, m.id, m.game.TurnCount, actor.ID)
	m.journal.Record(ctx, m.game.TurnCount, journal.KindTurn, actor.ID, "%s begins turn %d", actor.Name, m.game.TurnCount)

	if opts.AutoEnd {
		m.advanceTurn(ctx, actor.ID)
		return
	}
	if policy, ok := m.bots[actor.ID]; ok {
		m.runBotTurn(ctx, actor, policy)
	}
}

// runBotTurn executes bot decisions inline until the bot ends its turn or
// opens a combat. Combat sub-turns for bots are driven from the combat
// handlers as sub-turns flip.
func (m *Match) runBotTurn(ctx context.Context, actor *state.Player, policy bot.Policy) {
	for i := 0; i < 8 && !m.finished; i++ {
		if m.fight != nil || m.sched.Phase() == turn.PhaseEnded {
			return
		}
		current, ok := m.sched.Current()
		if !ok || current.ID != actor.ID {
			return
		}
		opts, err := m.sched.Refresh()
		if err != nil {
			return
		}
		decision := policy.TurnAction(m.game, actor, opts)
		switch decision.Kind {
		case bot.ActionMove:
			m.handleMove(ctx, Command{ActorID: actor.ID, Type: CommandMove, Move: &MoveCommand{Dest: decision.Dest}})
		case bot.ActionStartCombat:
			m.handleStartCombat(ctx, Command{ActorID: actor.ID, Type: CommandStartCombat, Combat: &CombatCommand{OpponentID: decision.TargetID}})
			return
		default:
			m.handleEndTurn(ctx, Command{ActorID: actor.ID, Type: CommandEndTurn})
			return
		}
	}
	if !m.finished && m.fight == nil {
		m.handleEndTurn(ctx, Command{ActorID: actor.ID, Type: CommandEndTurn})
	}
}

// driveBotCombat lets a bot combatant take its sub-turn.
func (m *Match) driveBotCombat(ctx context.Context) {
	for !m.finished && m.fight != nil && !m.fight.Finished() {
		actorID := m.fight.ActorID()
		policy, ok := m.bots[actorID]
		if !ok {
			return
		}
		actor, ok := m.game.PlayerByID(actorID)
		if !ok {
			return
		}
		decision := policy.CombatAction(actor, actor.Specs.Evasions, actor.Specs.Life)
		if decision.Kind == bot.ActionEvade && actor.Specs.Evasions > 0 {
			m.handleEvade(ctx, Command{ActorID: actorID, Type: CommandEvade})
			continue
		}
		m.handleAttack(ctx, Command{ActorID: actorID, Type: CommandAttack})
	}
}

func (m *Match) handleRequestMoves(cmd Command) {
	actor, ok := m.sched.Current()
	if !ok || actor.ID != cmd.ActorID {
		m.reject(cmd, RejectIllegal, "not this player's turn")
		return
	}
	opts, err := m.sched.Refresh()
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	m.emit(Event{
		Type:     EventTurnOptions,
		Audience: AudiencePlayer,
		PlayerID: cmd.ActorID,
		Payload:  optionsPayload(cmd.ActorID, opts),
	})
}

func (m *Match) handleMove(ctx context.Context, cmd Command) {
	if cmd.Move == nil {
		m.reject(cmd, RejectIllegal, "missing destination")
		return
	}
	result, err := m.sched.Move(cmd.ActorID, cmd.Move.Dest)
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	actor, _ := m.game.PlayerByID(cmd.ActorID)

	m.emit(Event{
		Type:     EventMoved,
		Audience: AudienceMatch,
		Payload: MovedPayload{
			ActorID: cmd.ActorID,
			From:    result.From,
			To:      result.To,
			Steps:   result.Traversal.Steps,
			Cost:    result.Traversal.Cost,
			Fell:    result.Traversal.Fell,
		},
	})
	matchlog.Move(ctx, m.pub, m.id, m.game.TurnCount, cmd.ActorID, matchlog.MovePayload{
		FromKey: result.From.Key(),
		ToKey:   result.To.Key(),
		Cost:    result.Traversal.Cost,
		Fell:    result.Traversal.Fell,
	})
	m.journal.Record(ctx, m.game.TurnCount, journal.KindMove, cmd.ActorID, "%s moved %s to %s", actor.Name, result.From.Key(), result.To.Key())

	m.pickupItem(ctx, actor)

	if m.checkFlagWin(ctx, actor) {
		return
	}

	if result.Traversal.Fell {
		m.emit(Event{
			Type:     EventFell,
			Audience: AudienceMatch,
			Payload:  MovedPayload{ActorID: cmd.ActorID, To: result.To, Fell: true},
		})
		matchlog.Fall(ctx, m.pub, m.id, m.game.TurnCount, cmd.ActorID, result.To.Key())
		m.journal.Record(ctx, m.game.TurnCount, journal.KindFall, cmd.ActorID, "%s slipped on the ice at %s", actor.Name, result.To.Key())
		m.scheduleFallTimeout(cmd.ActorID)
		return
	}

	m.refreshOptions(cmd.ActorID)
}

// pickupItem applies the item on the actor's tile, if any. Potions are
// consumed on the spot; everything else enters the inventory when there is
// room. Picking up the flag fires the one-time carrier notification and
// assigns the personal respawn tile.
func (m *Match) pickupItem(ctx context.Context, actor *state.Player) {
	item, ok := m.game.Map.ItemAt(actor.Pos)
	if !ok {
		return
	}
	hadFlag := actor.HasItem(grid.ItemFlag)

	switch item.Kind {
	case grid.ItemPotion:
		m.game.Map.TakeItem(actor.Pos)
		if actor.Specs.Life < actor.Specs.MaxLife {
			actor.Specs.Life++
		}
		actor.Stats.ItemsUsed++
		m.emit(Event{
			Type:     EventItemPicked,
			Audience: AudienceMatch,
			Payload:  ItemPayload{ActorID: actor.ID, At: actor.Pos, Kind: item.Kind, Consumed: true},
		})
	default:
		if !actor.AddItem(item.Kind) {
			return
		}
		m.game.Map.TakeItem(actor.Pos)
		m.emit(Event{
			Type:     EventItemPicked,
			Audience: AudienceMatch,
			Payload:  ItemPayload{ActorID: actor.ID, At: actor.Pos, Kind: item.Kind},
		})
	}
	matchlog.Item(ctx, m.pub, m.id, m.game.TurnCount, actor.ID, string(item.Kind))
	m.journal.Record(ctx, m.game.TurnCount, journal.KindItem, actor.ID, "%s picked up a %s", actor.Name, item.Kind)

	if !hadFlag && actor.HasItem(grid.ItemFlag) {
		actor.CarryingFlag = true
		actor.Respawn = actor.Pos
		m.emit(Event{
			Type:     EventFlagCarrier,
			Audience: AudiencePlayer,
			PlayerID: actor.ID,
			Payload:  FlagCarrierPayload{Respawn: actor.Respawn, Spawn: actor.Spawn},
		})
	}
}

// checkFlagWin applies the capture-the-flag win condition.
func (m *Match) checkFlagWin(ctx context.Context, actor *state.Player) bool {
	if m.game.Mode != state.ModeCTF {
		return false
	}
	if !actor.HasItem(grid.ItemFlag) || actor.Pos != actor.Spawn {
		return false
	}
	m.endMatch(ctx, actor.ID, WinCauseFlag)
	return true
}

func (m *Match) handleEndTurn(ctx context.Context, cmd Command) {
	if m.fight != nil {
		m.reject(cmd, RejectIllegal, "combat in progress")
		return
	}
	m.advanceTurn(ctx, cmd.ActorID)
}

// advanceTurn closes the current turn and posts the next turn's opening
// back onto the command ring. Going through the ring instead of calling
// beginTurn directly keeps chained bot turns from growing the stack.
func (m *Match) advanceTurn(ctx context.Context, actorID string) {
	if _, err := m.sched.EndTurn(actorID); err != nil {
		if actorID != "" {
			m.reject(Command{ActorID: actorID, Type: CommandEndTurn}, RejectIllegal, err.Error())
		}
		return
	}
	m.Enqueue(Command{Type: commandBeginTurn})
}

func (m *Match) handleToggleDoor(ctx context.Context, cmd Command) {
	if cmd.Door == nil {
		m.reject(cmd, RejectIllegal, "missing door coordinate")
		return
	}
	open, err := m.sched.ToggleDoor(cmd.ActorID, cmd.Door.At)
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	m.emit(Event{
		Type:     EventDoorToggled,
		Audience: AudienceMatch,
		Payload:  DoorPayload{ActorID: cmd.ActorID, At: cmd.Door.At, Open: open},
	})
	matchlog.Door(ctx, m.pub, m.id, m.game.TurnCount, cmd.ActorID, matchlog.DoorPayload{Key: cmd.Door.At.Key(), Open: open})
	m.journal.Record(ctx, m.game.TurnCount, journal.KindDoor, cmd.ActorID, "door at %s is now %s", cmd.Door.At.Key(), doorWord(open))
	m.refreshOptions(cmd.ActorID)
}

func doorWord(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

func (m *Match) handleBreakWall(ctx context.Context, cmd Command) {
	if cmd.Wall == nil {
		m.reject(cmd, RejectIllegal, "missing wall coordinate")
		return
	}
	if err := m.sched.BreakWall(cmd.ActorID, cmd.Wall.At); err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	m.emit(Event{
		Type:     EventWallBroken,
		Audience: AudienceMatch,
		Payload:  WallPayload{ActorID: cmd.ActorID, At: cmd.Wall.At},
	})
	matchlog.Wall(ctx, m.pub, m.id, m.game.TurnCount, cmd.ActorID, cmd.Wall.At.Key())
	m.journal.Record(ctx, m.game.TurnCount, journal.KindWall, cmd.ActorID, "wall at %s broken", cmd.Wall.At.Key())
	m.refreshOptions(cmd.ActorID)
}

func (m *Match) handleStartCombat(ctx context.Context, cmd Command) {
	if cmd.Combat == nil {
		m.reject(cmd, RejectIllegal, "missing opponent")
		return
	}
	if m.fight != nil {
		m.reject(cmd, RejectIllegal, "combat already in progress")
		return
	}
	challenger, opponent, err := m.sched.CanFight(cmd.ActorID, cmd.Combat.OpponentID)
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}

	m.sched.Suspend()
	m.fight = combat.New(
		challenger, opponent,
		m.onIce(challenger), m.onIce(opponent),
		m.roller,
	)

	m.emit(Event{
		Type:     EventCombatStarted,
		Audience: AudienceMatch,
		Payload: CombatStartedPayload{
			ChallengerID: challenger.ID,
			OpponentID:   opponent.ID,
			ActorID:      m.fight.ActorID(),
			Countdown:    m.fight.Countdown(),
		},
	})
	combatlog.Started(ctx, m.pub, m.id, m.game.TurnCount, challenger.ID, opponent.ID)
	m.journal.Record(ctx, m.game.TurnCount, journal.KindCombat, challenger.ID, "%s challenged %s", challenger.Name, opponent.Name)

	m.scheduleCombatTimeout()
	m.driveBotCombat(ctx)
}

// onIce reports whether the combatant fights with the ice penalty.
func (m *Match) onIce(p *state.Player) bool {
	return m.game.Map.TerrainAt(p.Pos) == grid.TerrainIce && !p.HasItem(grid.ItemIceTraction)
}

func (m *Match) handleAttack(ctx context.Context, cmd Command) {
	if m.fight == nil {
		m.reject(cmd, RejectIllegal, "no combat in progress")
		return
	}
	outcome, err := m.fight.Attack(cmd.ActorID)
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	m.afterAttack(ctx, outcome, false)
}

func (m *Match) afterAttack(ctx context.Context, outcome combat.AttackOutcome, forced bool) {
	m.emit(Event{
		Type:     EventCombatAttack,
		Audience: AudienceMatch,
		Payload:  outcome,
	})
	combatlog.Attack(ctx, m.pub, m.id, m.game.TurnCount, outcome.AttackerID, outcome.DefenderID, combatlog.AttackPayload{
		AttackTotal:  outcome.AttackTotal,
		DefenseTotal: outcome.DefenseTotal,
		Hit:          outcome.Hit,
		DefenderLife: outcome.DefenderLife,
		Forced:       forced,
	})

	if outcome.Finished {
		m.resolveCombat(ctx)
		return
	}
	m.scheduleCombatTimeout()
}

func (m *Match) handleEvade(ctx context.Context, cmd Command) {
	if m.fight == nil {
		m.reject(cmd, RejectIllegal, "no combat in progress")
		return
	}
	outcome, err := m.fight.Evade(cmd.ActorID)
	if err != nil {
		m.reject(cmd, RejectIllegal, err.Error())
		return
	}
	m.emit(Event{
		Type:     EventCombatEvade,
		Audience: AudienceMatch,
		Payload:  outcome,
	})
	combatlog.Evade(ctx, m.pub, m.id, m.game.TurnCount, outcome.ActorID, combatlog.EvadePayload{Success: outcome.Success, ChargesLeft: outcome.ChargesLeft})

	if m.fight.Finished() {
		m.resolveCombat(ctx)
		return
	}
	m.scheduleCombatTimeout()
}

// handleCombatTimeout forces an attack on behalf of whoever stalled.
func (m *Match) handleCombatTimeout(ctx context.Context, cmd Command) {
	if m.fight == nil || m.fight.Finished() {
		return
	}
	// Stale timer from an already-flipped sub-turn.
	if cmd.ActorID != "" && cmd.ActorID != m.fight.ActorID() {
		return
	}
	outcome, err := m.fight.ForceAttack()
	if err != nil {
		return
	}
	m.afterAttack(ctx, outcome, true)
	m.driveBotCombat(ctx)
}

// resolveCombat runs the post-fight bookkeeping: loser respawn, elimination,
// win thresholds, and handing the turn machinery back.
func (m *Match) resolveCombat(ctx context.Context) {
	result, ok := m.fight.Result()
	if !ok {
		return
	}
	m.cancelCombatTimeout()
	m.fight = nil

	payload := CombatFinishedPayload{Cause: result.Cause}
	if result.Evader != nil {
		payload.EvaderID = result.Evader.ID
		m.journal.Record(ctx, m.game.TurnCount, journal.KindEvade, result.Evader.ID, "%s slipped away from the fight", result.Evader.Name)
	}
	if result.Winner != nil && result.Loser != nil {
		payload.WinnerID = result.Winner.ID
		payload.LoserID = result.Loser.ID
		respawn := m.respawnLoser(result.Loser)
		if respawn != nil {
			payload.Respawn = respawn
		}
		m.journal.Record(ctx, m.game.TurnCount, journal.KindCombat, result.Winner.ID, "%s defeated %s", result.Winner.Name, result.Loser.Name)
	}
	m.emit(Event{
		Type:     EventCombatFinished,
		Audience: AudienceMatch,
		Payload:  payload,
	})
	combatlog.Finished(ctx, m.pub, m.id, m.game.TurnCount, combatlog.FinishedPayload{
		Cause:    string(result.Cause),
		WinnerID: payload.WinnerID,
		LoserID:  payload.LoserID,
		EvaderID: payload.EvaderID,
	})

	turnHandedOff := false
	if result.Loser != nil && m.cfg.EliminationDefeats > 0 && result.Loser.Stats.Defeats >= m.cfg.EliminationDefeats {
		if current, cok := m.game.CurrentPlayer(); cok && current.ID == result.Loser.ID {
			turnHandedOff = true
		}
		m.eliminate(ctx, result.Loser)
		if m.finished {
			return
		}
	}
	if result.Winner != nil && m.cfg.CombatWinThreshold > 0 && result.Winner.Stats.Victories >= m.cfg.CombatWinThreshold {
		m.endMatch(ctx, result.Winner.ID, WinCauseCombatThreshold)
		return
	}
	if turnHandedOff {
		// Eliminating the current actor queued the next seat's turn open;
		// resuming here would let that seat act before its turn is announced.
		return
	}

	m.sched.Resume()
	if actor, ok := m.sched.Current(); ok {
		m.refreshOptions(actor.ID)
		if policy, botOK := m.bots[actor.ID]; botOK {
			m.runBotTurn(ctx, actor, policy)
		}
	}
}

// respawnLoser restores the loser's life and repositions them: first free
// tile adjacent to where they fell, else their assigned respawn point.
func (m *Match) respawnLoser(loser *state.Player) *grid.Coord {
	loser.Specs.Life = loser.Specs.MaxLife
	if free, ok := m.game.FirstFreeAdjacent(loser.Pos); ok {
		loser.Pos = free
		return &free
	}
	target := loser.Respawn
	if (target == grid.Coord{}) {
		target = loser.Spawn
	}
	if _, occupied := m.game.PlayerAt(target); !occupied {
		loser.Pos = target
		return &target
	}
	if free, ok := m.game.FirstFreeAdjacent(target); ok {
		loser.Pos = free
		return &free
	}
	return nil
}

// eliminate moves a player into observation mode and checks last-standing.
func (m *Match) eliminate(ctx context.Context, p *state.Player) {
	wasCurrent := false
	if current, ok := m.game.CurrentPlayer(); ok && current.ID == p.ID {
		wasCurrent = true
	}
	p.Eliminated = true
	p.Observer = true

	m.emit(Event{
		Type:     EventEliminated,
		Audience: AudienceMatch,
		Payload:  EliminatedPayload{PlayerID: p.ID, Defeats: p.Stats.Defeats},
	})
	matchlog.Eliminated(ctx, m.pub, m.id, m.game.TurnCount, p.ID)
	m.journal.Record(ctx, m.game.TurnCount, journal.KindElimination, p.ID, "%s was eliminated and now observes", p.Name)

	m.afterLeaving(ctx, p, wasCurrent, WinCauseElimination)
}

// afterLeaving realigns the turn machinery after a player stops playing and
// applies the last-player win check.
func (m *Match) afterLeaving(ctx context.Context, gone *state.Player, wasCurrent bool, cause WinCause) {
	inPlay := m.game.InPlay()
	switch len(inPlay) {
	case 0:
		m.endMatch(ctx, "", WinCauseForced)
		return
	case 1:
		m.endMatch(ctx, inPlay[0].ID, cause)
		return
	}

	if wasCurrent {
		// The departed player held the turn; hand it to the player now at
		// their seat.
		m.game.CurrentTurnIndex = m.game.CurrentTurnIndex % len(inPlay)
		m.Enqueue(Command{Type: commandBeginTurn})
		return
	}
	if current, ok := m.game.CurrentPlayer(); ok {
		m.sched.NoteElimination(current)
	}
}

func (m *Match) handleDisconnect(ctx context.Context, cmd Command) {
	p, ok := m.game.PlayerByID(cmd.ActorID)
	if !ok || !p.Active {
		return
	}

	if m.fight != nil && m.fight.Involves(p.ID) {
		if _, err := m.fight.ForceDisconnect(p.ID); err == nil {
			m.resolveCombat(ctx)
		}
	}

	wasCurrent := false
	if current, cok := m.game.CurrentPlayer(); cok && current.ID == p.ID {
		wasCurrent = true
	}
	p.Active = false
	p.Observer = true
	m.cancelPlayerTimers(p.ID)

	m.emit(Event{
		Type:     EventPlayerLeft,
		Audience: AudienceMatch,
		Payload:  PlayerLeftPayload{PlayerID: p.ID},
	})
	matchlog.Disconnect(ctx, m.pub, m.id, m.game.TurnCount, p.ID)
	m.journal.Record(ctx, m.game.TurnCount, journal.KindDisconnect, p.ID, "%s disconnected", p.Name)
	m.Unsubscribe(p.ID)

	if m.finished {
		return
	}
	m.afterLeaving(ctx, p, wasCurrent, WinCauseLastPlayer)
}

// handleFallTimeout is the deferred continuation after a fall's grace delay.
// It runs on the last known state even if the faller has since dropped.
func (m *Match) handleFallTimeout(ctx context.Context, cmd Command) {
	if m.fight != nil || m.finished {
		return
	}
	if m.sched.Phase() != turn.PhaseEnded {
		return
	}
	// Stale timer: the faller's turn already advanced and another player
	// fell inside the grace window.
	if current, ok := m.sched.Current(); ok && cmd.ActorID != "" && current.ID != cmd.ActorID {
		return
	}
	if _, err := m.sched.ForceEndTurn(); err != nil {
		m.endMatch(ctx, "", WinCauseForced)
		return
	}
	m.Enqueue(Command{Type: commandBeginTurn})
}

func (m *Match) refreshOptions(actorID string) {
	actor, ok := m.sched.Current()
	if !ok || actor.ID != actorID {
		return
	}
	opts, err := m.sched.Refresh()
	if err != nil {
		return
	}
	m.emit(Event{
		Type:     EventTurnOptions,
		Audience: AudiencePlayer,
		PlayerID: actorID,
		Payload:  optionsPayload(actorID, opts),
	})
}

func (m *Match) scheduleCombatTimeout() {
	if m.timers == nil || m.fight == nil {
		return
	}
	actorID := m.fight.ActorID()
	// A sub-turn flip leaves the outgoing side's countdown armed; drop it so
	// it cannot fire against a later sub-turn of the same player.
	if opponent, ok := m.fight.OpponentOf(actorID); ok {
		m.timers.Cancel(timers.Key{MatchID: m.id, PlayerID: opponent.ID, Kind: timers.KindCombatCountdown})
	}
	d := time.Duration(m.fight.Countdown()) * m.cfg.TimeUnit
	m.timers.Schedule(timers.Key{MatchID: m.id, PlayerID: actorID, Kind: timers.KindCombatCountdown}, d, func() {
		m.Enqueue(Command{ActorID: actorID, Type: commandCombatTimeout})
	})
}

func (m *Match) cancelCombatTimeout() {
	if m.timers == nil || m.fight == nil {
		return
	}
	actorID := m.fight.ActorID()
	m.timers.Cancel(timers.Key{MatchID: m.id, PlayerID: actorID, Kind: timers.KindCombatCountdown})
	if opponent, ok := m.fight.OpponentOf(actorID); ok {
		m.timers.Cancel(timers.Key{MatchID: m.id, PlayerID: opponent.ID, Kind: timers.KindCombatCountdown})
	}
}

func (m *Match) scheduleFallTimeout(actorID string) {
	if m.timers == nil {
		m.Enqueue(Command{ActorID: actorID, Type: commandFallTimeout})
		return
	}
	m.timers.Schedule(timers.Key{MatchID: m.id, PlayerID: actorID, Kind: timers.KindFallGrace}, m.cfg.FallGrace, func() {
		m.Enqueue(Command{ActorID: actorID, Type: commandFallTimeout})
	})
}

func (m *Match) cancelPlayerTimers(playerID string) {
	if m.timers == nil {
		return
	}
	m.timers.Cancel(timers.Key{MatchID: m.id, PlayerID: playerID, Kind: timers.KindCombatCountdown})
	m.timers.Cancel(timers.Key{MatchID: m.id, PlayerID: playerID, Kind: timers.KindFallGrace})
}

// endMatch runs the terminal bookkeeping exactly once: the win broadcast,
// the reward callback, the journal flush, and timer cleanup.
func (m *Match) endMatch(ctx context.Context, winnerID string, cause WinCause) {
	if m.finished {
		return
	}
	m.finished = true
	m.game.Locked = true

	lines := make([]PlayerLine, 0, len(m.game.Players))
	outcomes := make([]reward.Outcome, 0, len(m.game.Players))
	for _, p := range m.game.Players {
		lines = append(lines, PlayerLine{PlayerID: p.ID, Name: p.Name, Stats: p.Stats})
		outcomes = append(outcomes, reward.Outcome{
			PlayerID:  p.ID,
			Winner:    p.ID == winnerID,
			Victories: p.Stats.Victories,
			Defeats:   p.Stats.Defeats,
			Evasions:  p.Stats.Evasions,
			LifeDealt: p.Stats.LifeDealt,
			LifeTaken: p.Stats.LifeTaken,
		})
	}

	m.emit(Event{
		Type:     EventMatchWon,
		Audience: AudienceMatch,
		Payload:  WinPayload{WinnerID: winnerID, Cause: cause, Stats: lines},
	})
	matchlog.Win(ctx, m.pub, m.id, m.game.TurnCount, winnerID, string(cause))
	m.journal.Record(ctx, m.game.TurnCount, journal.KindWin, winnerID, "match ended: %s", cause)

	m.reward.MatchEnded(ctx, m.id, outcomes)
	if err := m.journal.Flush(ctx); err != nil {
		m.logger.Printf("match %s: journal flush failed: %v", m.id, err)
	}
}

// teardown deregisters subscribers and cancels timers when the goroutine
// exits.
func (m *Match) teardown(ctx context.Context) {
	if !m.finished {
		m.endMatch(ctx, "", WinCauseForced)
	}
	if m.timers != nil {
		m.timers.CancelMatch(m.id)
	}
	m.subMu.Lock()
	m.subs = make(map[string]Subscriber)
	m.subMu.Unlock()
	m.closed.Do(func() { close(m.done) })
}

// emit fans an event out to the addressed subscribers.
func (m *Match) emit(event Event) {
	event.MatchID = m.id
	event.Turn = m.game.TurnCount

	m.subMu.RLock()
	defer m.subMu.RUnlock()
	switch event.Audience {
	case AudiencePlayer:
		if sub, ok := m.subs[event.PlayerID]; ok {
			sub.Deliver(event)
		}
	default:
		for _, sub := range m.subs {
			sub.Deliver(event)
		}
	}
}

// reject tells the sender their command had no effect. Internal
// continuations carry no sender and are dropped silently.
func (m *Match) reject(cmd Command, reason RejectReason, detail string) {
	if cmd.ActorID == "" {
		return
	}
	m.emit(Event{
		Type:     EventRejected,
		Audience: AudiencePlayer,
		PlayerID: cmd.ActorID,
		Payload:  RejectedPayload{Command: cmd.Type, Reason: reason, Detail: detail},
	})
}
