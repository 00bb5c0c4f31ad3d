package ws

import (
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"gridrush/server/internal/match"
	"gridrush/server/internal/net/intake"
	"gridrush/server/internal/net/proto"
	"gridrush/server/internal/state"
	"gridrush/server/internal/telemetry"
)

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Handler upgrades connections and runs the per-player session loop.
type Handler struct {
	registry *match.Registry
	logger   telemetry.Logger
	metrics  telemetry.Metrics
	upgrader websocket.Upgrader
}

// NewHandler builds the websocket endpoint over a match registry.
func NewHandler(registry *match.Registry, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{registry: registry, logger: logger, metrics: metrics, upgrader: upgrader}
}

// Handle runs one session: join snapshot, then staged commands until the
// connection drops.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	matchID := r.URL.Query().Get("match")
	playerID := r.URL.Query().Get("id")
	if matchID == "" || playerID == "" {
		nethttp.Error(w, "missing match or id", nethttp.StatusBadRequest)
		return
	}

	m, err := h.registry.Lookup(matchID)
	if err != nil {
		if errors.Is(err, match.ErrUnknownMatch) {
			nethttp.Error(w, "unknown match", nethttp.StatusNotFound)
			return
		}
		nethttp.Error(w, "lookup failed", nethttp.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("ws: upgrade failed for %s: %v", playerID, err)
		return
	}

	if !m.HasPlayer(playerID) {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	var joined []byte
	ok := m.Inspect(func(g *state.Game) {
		data, err := json.Marshal(proto.Snapshot(matchID, playerID, g))
		if err != nil {
			h.logger.Printf("ws: marshal snapshot for %s: %v", playerID, err)
			return
		}
		joined = data
	})
	if !ok || joined == nil {
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "match over")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, joined); err != nil {
		conn.Close()
		return
	}

	session := NewSession(playerID, conn, h.logger, h.metrics)
	session.Start()
	m.Subscribe(session)
	defer func() {
		m.Unsubscribe(playerID)
		session.Close()
		m.Enqueue(match.Command{ActorID: playerID, Type: match.CommandDisconnect, IssuedAt: time.Now()})
	}()

	stage := intake.Context{HasPlayer: m.HasPlayer}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg proto.ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("ws: discarding malformed message from %s: %v", playerID, err)
			continue
		}

		if msg.Seq > 0 {
			if last := session.LastCommandSeq(); last > 0 && msg.Seq <= last {
				if !h.writeAck(session, msg.Seq) {
					return
				}
				continue
			}
		}

		cmd, ok, reason := intake.StageClientCommand(stage, playerID, msg)
		if !ok {
			if !h.writeReject(session, msg.Seq, reason, false) {
				return
			}
			continue
		}

		if !m.Enqueue(cmd) {
			if !h.writeReject(session, msg.Seq, intake.RejectQueueLimit, true) {
				return
			}
			continue
		}
		if msg.Seq > 0 {
			if !h.writeAck(session, msg.Seq) {
				return
			}
			session.StoreLastCommandSeq(msg.Seq)
		}
	}
}

// writeAck reports false once the session can no longer accept writes.
func (h *Handler) writeAck(session *Session, seq uint64) bool {
	if seq == 0 {
		return true
	}
	data, err := json.Marshal(proto.CommandAckMessage{Ver: proto.Version, Type: proto.TypeCommandAck, Seq: seq})
	if err != nil {
		h.logger.Printf("ws: marshal ack: %v", err)
		return true
	}
	return session.Send(data)
}

func (h *Handler) writeReject(session *Session, seq uint64, reason string, retry bool) bool {
	if seq == 0 {
		return true
	}
	reject := proto.CommandRejectMessage{Ver: proto.Version, Type: proto.TypeCommandReject, Seq: seq, Reason: reason}
	if retry {
		reject.Retry = true
	}
	data, err := json.Marshal(reject)
	if err != nil {
		h.logger.Printf("ws: marshal reject: %v", err)
		return true
	}
	return session.Send(data)
}
