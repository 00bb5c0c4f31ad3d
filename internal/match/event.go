package match

import (
	"gridrush/server/internal/combat"
	"gridrush/server/internal/grid"
	"gridrush/server/internal/path"
	"gridrush/server/internal/state"
	"gridrush/server/internal/turn"
)

// EventType enumerates the events a match emits to its subscribers.
type EventType string

const (
	EventTurnOptions    EventType = "turnOptions"
	EventMoved          EventType = "moved"
	EventFell           EventType = "fell"
	EventTurnChanged    EventType = "turnChanged"
	EventDoorToggled    EventType = "doorToggled"
	EventWallBroken     EventType = "wallBroken"
	EventItemPicked     EventType = "itemPicked"
	EventFlagCarrier    EventType = "flagCarrier"
	EventCombatStarted  EventType = "combatStarted"
	EventCombatAttack   EventType = "combatAttack"
	EventCombatEvade    EventType = "combatEvade"
	EventCombatFinished EventType = "combatFinished"
	EventEliminated     EventType = "eliminated"
	EventPlayerLeft     EventType = "playerLeft"
	EventMatchWon       EventType = "matchWon"
	EventRejected       EventType = "rejected"
)

// Audience selects who receives an event.
type Audience string

const (
	// AudienceMatch delivers to every subscriber, observers included.
	AudienceMatch Audience = "match"
	// AudiencePlayer delivers to the single subscriber named by PlayerID.
	AudiencePlayer Audience = "player"
)

// Event is one outbound notification.
type Event struct {
	Type     EventType `json:"type"`
	MatchID  string    `json:"matchId"`
	Turn     int       `json:"turn"`
	Audience Audience  `json:"-"`
	// PlayerID is the recipient when Audience is AudiencePlayer.
	PlayerID string `json:"-"`
	Payload  any    `json:"payload,omitempty"`
}

// Subscriber receives the events addressed to it. Deliver must not block;
// slow consumers buffer or drop on their side of the boundary.
type Subscriber interface {
	ID() string
	Deliver(Event)
}

// WinCause explains why a match ended.
type WinCause string

const (
	WinCauseElimination     WinCause = "elimination"
	WinCauseCombatThreshold WinCause = "combat-win-threshold"
	WinCauseFlag            WinCause = "ctf-flag"
	WinCauseLastPlayer      WinCause = "last-player-standing"
	WinCauseForced          WinCause = "forced"
)

// RejectReason classifies why a command had no effect.
type RejectReason string

const (
	RejectQueueFull    RejectReason = "queue_full"
	RejectUnknownActor RejectReason = "unknown_actor"
	RejectIllegal      RejectReason = "illegal"
	RejectMatchOver    RejectReason = "match_over"
)

// TurnOptionsPayload carries the acting player's legal options.
type TurnOptionsPayload struct {
	ActorID   string        `json:"actorId"`
	Reachable path.ReachSet `json:"reachable"`
	Opponents []string      `json:"opponents,omitempty"`
	Doors     []grid.Coord  `json:"doors,omitempty"`
	Walls     []grid.Coord  `json:"walls,omitempty"`
}

// MovedPayload reports an executed move to the room.
type MovedPayload struct {
	ActorID string       `json:"actorId"`
	From    grid.Coord   `json:"from"`
	To      grid.Coord   `json:"to"`
	Steps   []grid.Coord `json:"steps"`
	Cost    int          `json:"cost"`
	Fell    bool         `json:"fell"`
}

// TurnChangedPayload announces the next actor.
type TurnChangedPayload struct {
	ActorID string `json:"actorId"`
}

// DoorPayload reports a toggled door.
type DoorPayload struct {
	ActorID string     `json:"actorId"`
	At      grid.Coord `json:"at"`
	Open    bool       `json:"open"`
}

// WallPayload reports a broken wall.
type WallPayload struct {
	ActorID string     `json:"actorId"`
	At      grid.Coord `json:"at"`
}

// ItemPayload reports a picked-up item.
type ItemPayload struct {
	ActorID string        `json:"actorId"`
	At      grid.Coord    `json:"at"`
	Kind    grid.ItemKind `json:"kind"`
	// Consumed marks items applied on pickup instead of entering the
	// inventory.
	Consumed bool `json:"consumed,omitempty"`
}

// FlagCarrierPayload is the one-time personal notification after picking up
// the flag.
type FlagCarrierPayload struct {
	Respawn grid.Coord `json:"respawn"`
	Spawn   grid.Coord `json:"spawn"`
}

// CombatStartedPayload announces an opened fight.
type CombatStartedPayload struct {
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
	ActorID      string `json:"actorId"`
	Countdown    int    `json:"countdown"`
}

// CombatFinishedPayload announces a resolved fight.
type CombatFinishedPayload struct {
	Cause    combat.Cause `json:"cause"`
	WinnerID string       `json:"winnerId,omitempty"`
	LoserID  string       `json:"loserId,omitempty"`
	EvaderID string       `json:"evaderId,omitempty"`
	// Respawn is where the loser was repositioned, when there was a loser.
	Respawn *grid.Coord `json:"respawn,omitempty"`
}

// EliminatedPayload announces a player entering observation mode.
type EliminatedPayload struct {
	PlayerID string `json:"playerId"`
	Defeats  int    `json:"defeats"`
}

// PlayerLeftPayload announces a disconnect.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// WinPayload carries the terminal match outcome.
type WinPayload struct {
	WinnerID string       `json:"winnerId,omitempty"`
	Cause    WinCause     `json:"cause"`
	Stats    []PlayerLine `json:"stats"`
}

// PlayerLine is one row of the end-of-match scoreboard.
type PlayerLine struct {
	PlayerID string      `json:"playerId"`
	Name     string      `json:"name"`
	Stats    state.Stats `json:"stats"`
}

// RejectedPayload tells one actor their command had no effect.
type RejectedPayload struct {
	Command CommandType  `json:"command"`
	Reason  RejectReason `json:"reason"`
	Detail  string       `json:"detail,omitempty"`
}

func optionsPayload(actorID string, opts turn.Options) TurnOptionsPayload {
	return TurnOptionsPayload{
		ActorID:   actorID,
		Reachable: opts.Reachable,
		Opponents: opts.Opponents,
		Doors:     opts.Doors,
		Walls:     opts.Walls,
	}
}
