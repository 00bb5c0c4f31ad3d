// Package reward is the interface to the external notification and reward
// service invoked once when a match ends.
package reward

import "context"

// Outcome is one player's final standing in a finished match.
type Outcome struct {
	PlayerID  string `json:"playerId"`
	Winner    bool   `json:"winner"`
	Victories int    `json:"victories"`
	Defeats   int    `json:"defeats"`
	Evasions  int    `json:"evasions"`
	LifeDealt int    `json:"lifeDealt"`
	LifeTaken int    `json:"lifeTaken"`
}

// Notifier receives the per-player outcomes of a finished match exactly
// once. Implementations live outside the engine; failures are the
// implementation's problem and must not block match teardown.
type Notifier interface {
	MatchEnded(ctx context.Context, matchID string, outcomes []Outcome)
}

type nopNotifier struct{}

func (nopNotifier) MatchEnded(context.Context, string, []Outcome) {}

// NopNotifier discards outcomes. Used when no reward service is wired.
func NopNotifier() Notifier {
	return nopNotifier{}
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, matchID string, outcomes []Outcome)

func (f NotifierFunc) MatchEnded(ctx context.Context, matchID string, outcomes []Outcome) {
	if f == nil {
		return
	}
	f(ctx, matchID, outcomes)
}
