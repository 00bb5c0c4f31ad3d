package match

import (
	"time"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/state"
)

// CommandType enumerates the commands a match accepts.
type CommandType string

const (
	CommandRequestMoves CommandType = "RequestMoves"
	CommandMove         CommandType = "Move"
	CommandEndTurn      CommandType = "EndTurn"
	CommandToggleDoor   CommandType = "ToggleDoor"
	CommandBreakWall    CommandType = "BreakWall"
	CommandStartCombat  CommandType = "StartCombat"
	CommandAttack       CommandType = "Attack"
	CommandEvade        CommandType = "Evade"
	CommandDisconnect   CommandType = "Disconnect"

	// Internal continuations posted by the timer scheduler and the turn
	// advance path.
	commandCombatTimeout CommandType = "combatTimeout"
	commandFallTimeout   CommandType = "fallTimeout"
	commandBeginTurn     CommandType = "beginTurn"
	commandInspect       CommandType = "inspect"
)

// MoveCommand carries the requested destination tile.
type MoveCommand struct {
	Dest grid.Coord `json:"dest"`
}

// DoorCommand identifies the door tile to toggle.
type DoorCommand struct {
	At grid.Coord `json:"at"`
}

// WallCommand identifies the wall tile to break.
type WallCommand struct {
	At grid.Coord `json:"at"`
}

// CombatCommand identifies the opponent for a combat challenge.
type CombatCommand struct {
	OpponentID string `json:"opponentId"`
}

// Command represents one player intent staged for the match goroutine.
type Command struct {
	ActorID  string         `json:"actorId"`
	Type     CommandType    `json:"type"`
	IssuedAt time.Time      `json:"issuedAt"`
	Move     *MoveCommand   `json:"move,omitempty"`
	Door     *DoorCommand   `json:"door,omitempty"`
	Wall     *WallCommand   `json:"wall,omitempty"`
	Combat   *CombatCommand `json:"combat,omitempty"`

	// inspect runs on the match goroutine with the aggregate. Set only by
	// Match.Inspect.
	inspect func(*state.Game)
}
