// Package proto defines the websocket wire format: the client command
// envelope and the server's ack, reject, event, and snapshot messages.
package proto

import (
	"gridrush/server/internal/grid"
	"gridrush/server/internal/match"
	"gridrush/server/internal/state"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// Client message type identifiers.
const (
	TypeRequestMoves = "requestMoves"
	TypeMove         = "move"
	TypeEndTurn      = "endTurn"
	TypeToggleDoor   = "toggleDoor"
	TypeBreakWall    = "breakWall"
	TypeStartCombat  = "startCombat"
	TypeAttack       = "attack"
	TypeEvade        = "evade"
)

// Server message type identifiers.
const (
	TypeJoined        = "joined"
	TypeEvent         = "event"
	TypeCommandAck    = "commandAck"
	TypeCommandReject = "commandReject"
)

// CoordMessage is a wire coordinate.
type CoordMessage struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Coord converts to the engine coordinate.
func (c CoordMessage) Coord() grid.Coord {
	return grid.Coord{X: c.X, Y: c.Y}
}

// ClientMessage is the inbound envelope. Fields beyond Type are populated
// per command.
type ClientMessage struct {
	Ver        int           `json:"ver,omitempty"`
	Type       string        `json:"type"`
	Seq        uint64        `json:"seq,omitempty"`
	Dest       *CoordMessage `json:"dest,omitempty"`
	At         *CoordMessage `json:"at,omitempty"`
	OpponentID string        `json:"opponentId,omitempty"`
}

// CommandAckMessage confirms a staged command.
type CommandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// CommandRejectMessage reports a command that was not staged.
type CommandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

// EventMessage wraps a match event for the wire.
type EventMessage struct {
	Ver   int         `json:"ver"`
	Type  string      `json:"type"`
	Event match.Event `json:"event"`
}

// PlayerSnapshot is one player's visible state in a join snapshot.
type PlayerSnapshot struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Avatar     string          `json:"avatar,omitempty"`
	Pos        CoordMessage    `json:"pos"`
	Spawn      CoordMessage    `json:"spawn"`
	Life       int             `json:"life"`
	MaxLife    int             `json:"maxLife"`
	Speed      int             `json:"speed"`
	Attack     int             `json:"attack"`
	Defense    int             `json:"defense"`
	AttackDie  int             `json:"attackDie"`
	DefenseDie int             `json:"defenseDie"`
	Inventory  []grid.ItemKind `json:"inventory,omitempty"`
	Eliminated bool            `json:"eliminated,omitempty"`
	Observer   bool            `json:"observer,omitempty"`
	Bot        bool            `json:"bot,omitempty"`
}

// BoardSnapshot is the static board in a join snapshot. Tiles absent from
// the list are floor.
type BoardSnapshot struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Tiles  []grid.Tile `json:"tiles,omitempty"`
	Doors  []grid.Door `json:"doors,omitempty"`
	Items  []grid.Item `json:"items,omitempty"`
}

// JoinedMessage is the first message of a session: the full match view.
type JoinedMessage struct {
	Ver      int              `json:"ver"`
	Type     string           `json:"type"`
	MatchID  string           `json:"matchId"`
	PlayerID string           `json:"playerId"`
	Mode     state.Mode       `json:"mode"`
	Turn     int              `json:"turn"`
	Board    BoardSnapshot    `json:"board"`
	Players  []PlayerSnapshot `json:"players"`
}

// Snapshot renders the join view of a game for one player.
func Snapshot(matchID, playerID string, game *state.Game) JoinedMessage {
	msg := JoinedMessage{
		Ver:      Version,
		Type:     TypeJoined,
		MatchID:  matchID,
		PlayerID: playerID,
		Mode:     game.Mode,
		Turn:     game.TurnCount,
		Board: BoardSnapshot{
			Width:  game.Map.Width(),
			Height: game.Map.Height(),
			Tiles:  game.Map.Tiles(),
			Doors:  game.Map.Doors(),
			Items:  game.Map.Items(),
		},
	}
	for _, p := range game.Players {
		msg.Players = append(msg.Players, PlayerSnapshot{
			ID:         p.ID,
			Name:       p.Name,
			Avatar:     p.Avatar,
			Pos:        CoordMessage{X: p.Pos.X, Y: p.Pos.Y},
			Spawn:      CoordMessage{X: p.Spawn.X, Y: p.Spawn.Y},
			Life:       p.Specs.Life,
			MaxLife:    p.Specs.MaxLife,
			Speed:      p.Specs.Speed,
			Attack:     p.Specs.Attack,
			Defense:    p.Specs.Defense,
			AttackDie:  int(p.Specs.AttackDie),
			DefenseDie: int(p.Specs.DefenseDie),
			Inventory:  append([]grid.ItemKind(nil), p.Inventory...),
			Eliminated: p.Eliminated,
			Observer:   p.Observer,
			Bot:        p.Bot,
		})
	}
	return msg
}
