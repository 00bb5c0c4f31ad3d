// Package matchlog publishes the structured events for turn flow and board
// changes.
package matchlog

import (
	"context"

	"gridrush/server/logging"
)

const (
	EventTurnStarted logging.EventType = "match.turn_started"
	EventMove        logging.EventType = "match.move"
	EventFall        logging.EventType = "match.fall"
	EventDoor        logging.EventType = "match.door"
	EventWall        logging.EventType = "match.wall"
	EventItem        logging.EventType = "match.item_picked"
	EventEliminated  logging.EventType = "match.eliminated"
	EventWin         logging.EventType = "match.win"
	EventDisconnect  logging.EventType = "match.disconnect"
)

type MovePayload struct {
	FromKey string `json:"from"`
	ToKey   string `json:"to"`
	Cost    int    `json:"cost"`
	Fell    bool   `json:"fell,omitempty"`
}

type DoorPayload struct {
	Key  string `json:"key"`
	Open bool   `json:"open"`
}

type WinPayload struct {
	Cause string `json:"cause"`
}

func TurnStarted(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID string) {
	publish(ctx, pub, logging.Event{Type: EventTurnStarted, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID)})
}

func Move(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID string, payload MovePayload) {
	publish(ctx, pub, logging.Event{Type: EventMove, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID), Payload: payload})
}

func Fall(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID, tileKey string) {
	publish(ctx, pub, logging.Event{Type: EventFall, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID), Payload: map[string]string{"tile": tileKey}})
}

func Door(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID string, payload DoorPayload) {
	publish(ctx, pub, logging.Event{Type: EventDoor, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID), Payload: payload})
}

func Wall(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID, tileKey string) {
	publish(ctx, pub, logging.Event{Type: EventWall, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID), Payload: map[string]string{"tile": tileKey}})
}

func Item(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID, kind string) {
	publish(ctx, pub, logging.Event{Type: EventItem, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(actorID), Payload: map[string]string{"kind": kind}})
}

func Eliminated(ctx context.Context, pub logging.Publisher, matchID string, turn int, playerID string) {
	publish(ctx, pub, logging.Event{Type: EventEliminated, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(playerID), Severity: logging.SeverityWarn})
}

func Win(ctx context.Context, pub logging.Publisher, matchID string, turn int, playerID, cause string) {
	publish(ctx, pub, logging.Event{Type: EventWin, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(playerID), Payload: WinPayload{Cause: cause}})
}

func Disconnect(ctx context.Context, pub logging.Publisher, matchID string, turn int, playerID string) {
	publish(ctx, pub, logging.Event{Type: EventDisconnect, MatchID: matchID, Turn: turn, Actor: logging.PlayerRef(playerID), Severity: logging.SeverityWarn})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	if event.Category == "" {
		event.Category = logging.CategoryGameplay
	}
	pub.Publish(ctx, event)
}
