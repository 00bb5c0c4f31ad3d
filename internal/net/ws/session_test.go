package ws

import (
	"encoding/json"
	"testing"

	"gridrush/server/internal/match"
	"gridrush/server/internal/net/proto"
	"gridrush/server/internal/telemetry"
)

func TestSessionDeliverQueuesEventMessage(t *testing.T) {
	s := NewSession("p1", nil, nil, nil)

	s.Deliver(match.Event{Type: match.EventTurnChanged, MatchID: "m1", Turn: 2})

	select {
	case data := <-s.send:
		var msg proto.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode queued event: %v", err)
		}
		if msg.Type != proto.TypeEvent || msg.Ver != proto.Version {
			t.Fatalf("unexpected envelope: %+v", msg)
		}
		if msg.Event.Type != match.EventTurnChanged || msg.Event.Turn != 2 {
			t.Fatalf("unexpected event: %+v", msg.Event)
		}
	default:
		t.Fatalf("expected a queued message")
	}
}

func TestSessionDeliverDropsWhenBufferFull(t *testing.T) {
	counters := telemetry.NewCounters()
	s := NewSession("p1", nil, nil, counters)

	for i := 0; i < sessionSendBuffer+3; i++ {
		s.Deliver(match.Event{Type: match.EventTurnChanged, Turn: i})
	}

	if got := counters.Load(droppedEventsMetricKey); got != 3 {
		t.Fatalf("expected 3 dropped events, got %d", got)
	}
	if len(s.send) != sessionSendBuffer {
		t.Fatalf("expected full buffer, got %d", len(s.send))
	}
}

func TestSessionSendAfterCloseReportsFalse(t *testing.T) {
	s := NewSession("p1", nil, nil, nil)
	s.Close()
	s.Close()

	if s.Send([]byte("{}")) {
		t.Fatalf("expected send to fail after close")
	}
}

func TestSessionID(t *testing.T) {
	s := NewSession("p7", nil, nil, nil)
	if s.ID() != "p7" {
		t.Fatalf("expected p7, got %q", s.ID())
	}
	var nilSession *Session
	if nilSession.ID() != "" {
		t.Fatalf("expected empty id from nil session")
	}
}
