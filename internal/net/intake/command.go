// Package intake validates client messages and translates them into match
// commands before they touch the engine.
package intake

import (
	"time"

	"gridrush/server/internal/match"
	"gridrush/server/internal/net/proto"
)

// Reject reasons surfaced to the wire.
const (
	RejectInvalidCommand = "invalid_command"
	RejectUnknownActor   = "unknown_actor"
	RejectQueueLimit     = "queue_limit"
)

// Context carries the per-session lookups the stage step needs.
type Context struct {
	HasPlayer func(string) bool
	Now       func() time.Time
}

// StageClientCommand turns a wire message into a command for the actor's
// match. The returned reason is set when ok is false.
func StageClientCommand(ctx Context, playerID string, msg proto.ClientMessage) (match.Command, bool, string) {
	var zero match.Command

	cmd, ok := clientCommand(msg)
	if !ok {
		return zero, false, RejectInvalidCommand
	}
	if ctx.HasPlayer != nil && !ctx.HasPlayer(playerID) {
		return zero, false, RejectUnknownActor
	}

	cmd.ActorID = playerID
	if ctx.Now != nil {
		cmd.IssuedAt = ctx.Now()
	} else {
		cmd.IssuedAt = time.Now()
	}
	return cmd, true, ""
}

// clientCommand maps a message type onto the command envelope, checking the
// payload the type requires.
func clientCommand(msg proto.ClientMessage) (match.Command, bool) {
	var zero match.Command
	switch msg.Type {
	case proto.TypeRequestMoves:
		return match.Command{Type: match.CommandRequestMoves}, true
	case proto.TypeMove:
		if msg.Dest == nil {
			return zero, false
		}
		return match.Command{Type: match.CommandMove, Move: &match.MoveCommand{Dest: msg.Dest.Coord()}}, true
	case proto.TypeEndTurn:
		return match.Command{Type: match.CommandEndTurn}, true
	case proto.TypeToggleDoor:
		if msg.At == nil {
			return zero, false
		}
		return match.Command{Type: match.CommandToggleDoor, Door: &match.DoorCommand{At: msg.At.Coord()}}, true
	case proto.TypeBreakWall:
		if msg.At == nil {
			return zero, false
		}
		return match.Command{Type: match.CommandBreakWall, Wall: &match.WallCommand{At: msg.At.Coord()}}, true
	case proto.TypeStartCombat:
		if msg.OpponentID == "" {
			return zero, false
		}
		return match.Command{Type: match.CommandStartCombat, Combat: &match.CombatCommand{OpponentID: msg.OpponentID}}, true
	case proto.TypeAttack:
		return match.Command{Type: match.CommandAttack}, true
	case proto.TypeEvade:
		return match.Command{Type: match.CommandEvade}, true
	default:
		return zero, false
	}
}
