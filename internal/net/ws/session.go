// Package ws runs websocket sessions: one Session per connected player,
// subscribed to its match and relaying staged commands back in.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"gridrush/server/internal/match"
	"gridrush/server/internal/net/proto"
	"gridrush/server/internal/telemetry"
)

const sessionSendBuffer = 32

const droppedEventsMetricKey = "ws_dropped_events_total"

// Session delivers match events to one websocket connection. Deliver never
// blocks the match goroutine: a slow reader's events are dropped once the
// send buffer fills.
type Session struct {
	playerID string
	conn     *websocket.Conn
	logger   telemetry.Logger
	metrics  telemetry.Metrics

	send chan []byte
	quit chan struct{}
	once sync.Once

	// lastSeq is touched only by the read loop goroutine.
	lastSeq uint64
}

// NewSession wraps an upgraded connection. Start must be called to begin
// the writer.
func NewSession(playerID string, conn *websocket.Conn, logger telemetry.Logger, metrics telemetry.Metrics) *Session {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Session{
		playerID: playerID,
		conn:     conn,
		logger:   logger,
		metrics:  metrics,
		send:     make(chan []byte, sessionSendBuffer),
		quit:     make(chan struct{}),
	}
}

// ID implements match.Subscriber.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.playerID
}

// Deliver implements match.Subscriber. It marshals the event and queues it
// without blocking.
func (s *Session) Deliver(event match.Event) {
	if s == nil {
		return
	}
	data, err := json.Marshal(proto.EventMessage{Ver: proto.Version, Type: proto.TypeEvent, Event: event})
	if err != nil {
		s.logger.Printf("ws: marshal event for %s: %v", s.playerID, err)
		return
	}
	s.Send(data)
}

// Start launches the writer goroutine.
func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) writeLoop() {
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-s.quit:
			return
		}
	}
}

// Send writes a raw payload through the queue, reporting false once the
// session has closed or the buffer is full.
func (s *Session) Send(data []byte) bool {
	if s == nil {
		return false
	}
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		s.metrics.Add(droppedEventsMetricKey, 1)
		return false
	}
}

// Close stops the writer and closes the connection. Safe to call more than
// once and from any goroutine.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.quit)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// LastCommandSeq returns the highest acknowledged command sequence.
func (s *Session) LastCommandSeq() uint64 { return s.lastSeq }

// StoreLastCommandSeq records an acknowledged command sequence.
func (s *Session) StoreLastCommandSeq(seq uint64) { s.lastSeq = seq }
