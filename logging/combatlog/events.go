// Package combatlog publishes the structured events for combat resolution.
package combatlog

import (
	"context"

	"gridrush/server/logging"
)

const (
	// EventStarted is emitted when two players engage.
	EventStarted logging.EventType = "combat.started"
	// EventAttack is emitted for every resolved attack exchange.
	EventAttack logging.EventType = "combat.attack"
	// EventEvade is emitted for every evasion attempt.
	EventEvade logging.EventType = "combat.evade"
	// EventFinished is emitted once per combat on its terminal transition.
	EventFinished logging.EventType = "combat.finished"
)

type AttackPayload struct {
	AttackTotal  int  `json:"attackTotal"`
	DefenseTotal int  `json:"defenseTotal"`
	Hit          bool `json:"hit"`
	DefenderLife int  `json:"defenderLife"`
	Forced       bool `json:"forced,omitempty"`
}

type EvadePayload struct {
	Success     bool `json:"success"`
	ChargesLeft int  `json:"chargesLeft"`
}

type FinishedPayload struct {
	Cause    string `json:"cause"`
	WinnerID string `json:"winnerId,omitempty"`
	LoserID  string `json:"loserId,omitempty"`
	EvaderID string `json:"evaderId,omitempty"`
}

func Started(ctx context.Context, pub logging.Publisher, matchID string, turn int, challengerID, opponentID string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarted,
		MatchID:  matchID,
		Turn:     turn,
		Actor:    logging.PlayerRef(challengerID),
		Targets:  []logging.EntityRef{logging.PlayerRef(opponentID)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
	})
}

func Attack(ctx context.Context, pub logging.Publisher, matchID string, turn int, attackerID, defenderID string, payload AttackPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttack,
		MatchID:  matchID,
		Turn:     turn,
		Actor:    logging.PlayerRef(attackerID),
		Targets:  []logging.EntityRef{logging.PlayerRef(defenderID)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

func Evade(ctx context.Context, pub logging.Publisher, matchID string, turn int, actorID string, payload EvadePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEvade,
		MatchID:  matchID,
		Turn:     turn,
		Actor:    logging.PlayerRef(actorID),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

func Finished(ctx context.Context, pub logging.Publisher, matchID string, turn int, payload FinishedPayload) {
	if pub == nil {
		return
	}
	actor := logging.EntityRef{Kind: logging.EntityKindCombat}
	if payload.WinnerID != "" {
		actor = logging.PlayerRef(payload.WinnerID)
	} else if payload.EvaderID != "" {
		actor = logging.PlayerRef(payload.EvaderID)
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFinished,
		MatchID:  matchID,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
