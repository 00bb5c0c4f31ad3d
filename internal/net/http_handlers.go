// Package net exposes the HTTP surface: match lifecycle endpoints, the
// status snapshot, and the websocket upgrade route.
package net

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/google/uuid"

	"gridrush/server/internal/mapload"
	"gridrush/server/internal/match"
	"gridrush/server/internal/net/ws"
	"gridrush/server/internal/state"
	"gridrush/server/internal/telemetry"
)

// HTTPHandlerConfig wires the handler's collaborators.
type HTTPHandlerConfig struct {
	Logger      telemetry.Logger
	Counters    *telemetry.Counters
	MatchConfig match.Config

	// MatchDeps builds per-match collaborators, typically a fresh journal
	// keyed by the match id. Nil means bare no-op deps.
	MatchDeps func(matchID string) match.Deps

	// BaseContext bounds every match goroutine. Nil means Background.
	BaseContext context.Context
}

type createPlayerRequest struct {
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	AttackBonus bool   `json:"attackBonus"`
	Bot         bool   `json:"bot,omitempty"`
	Profile     string `json:"profile,omitempty"`
}

type createMatchRequest struct {
	Map     mapload.Definition    `json:"map"`
	Players []createPlayerRequest `json:"players"`
}

type createdPlayer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bot  bool   `json:"bot,omitempty"`
}

type createMatchResponse struct {
	MatchID string          `json:"matchId"`
	Mode    state.Mode      `json:"mode"`
	Players []createdPlayer `json:"players"`
}

// NewHTTPHandler builds the full route table over a match registry.
func NewHTTPHandler(registry *match.Registry, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	matchDeps := cfg.MatchDeps
	if matchDeps == nil {
		matchDeps = func(string) match.Deps { return match.Deps{} }
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/status", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var counters map[string]uint64
		if cfg.Counters != nil {
			counters = cfg.Counters.Snapshot()
		}
		payload := struct {
			Status     string            `json:"status"`
			ServerTime int64             `json:"serverTime"`
			Matches    int               `json:"matches"`
			Telemetry  map[string]uint64 `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Matches:    registry.Len(),
			Telemetry:  counters,
		}
		writeJSON(w, payload, logger)
	})

	mux.HandleFunc("/api/matches", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			payload := struct {
				Matches []string `json:"matches"`
			}{Matches: registry.IDs()}
			writeJSON(w, payload, logger)
		case nethttp.MethodPost:
			handleCreateMatch(w, r, registry, cfg.MatchConfig, matchDeps, baseCtx, logger)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	wsHandler := ws.NewHandler(registry, ws.HandlerConfig{Logger: logger, Metrics: cfg.Counters})
	mux.HandleFunc("/ws", wsHandler.Handle)

	return mux
}

func handleCreateMatch(
	w nethttp.ResponseWriter,
	r *nethttp.Request,
	registry *match.Registry,
	matchCfg match.Config,
	matchDeps func(string) match.Deps,
	baseCtx context.Context,
	logger telemetry.Logger,
) {
	defer r.Body.Close()

	var req createMatchRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return
	}
	if len(req.Players) < 2 {
		httpError(w, "need at least two players", nethttp.StatusBadRequest)
		return
	}

	matchID := match.NewID()
	game, spawns, err := req.Map.Game(matchID)
	if err != nil {
		httpError(w, err.Error(), nethttp.StatusBadRequest)
		return
	}
	if len(req.Players) > len(spawns) {
		httpError(w, "more players than spawn points", nethttp.StatusBadRequest)
		return
	}

	created := make([]createdPlayer, 0, len(req.Players))
	for i, pr := range req.Players {
		if pr.Name == "" {
			httpError(w, "player name required", nethttp.StatusBadRequest)
			return
		}
		p := state.NewPlayer(uuid.NewString(), pr.Name, pr.AttackBonus)
		p.Avatar = pr.Avatar
		p.Pos = spawns[i]
		p.Spawn = spawns[i]
		if pr.Bot {
			profile, ok := state.ParseProfile(pr.Profile)
			if !ok && pr.Profile != "" {
				httpError(w, "unknown bot profile", nethttp.StatusBadRequest)
				return
			}
			if !ok {
				profile = state.ProfileNormal
			}
			p.Bot = true
			p.Profile = profile
		}
		game.Players = append(game.Players, p)
		created = append(created, createdPlayer{ID: p.ID, Name: p.Name, Bot: p.Bot})
	}

	m := registry.Start(baseCtx, game, matchCfg, matchDeps(matchID))
	logger.Printf("match %s started with %d players on %dx%d board", m.ID(), len(created), req.Map.Width, req.Map.Height)

	data, err := json.Marshal(createMatchResponse{MatchID: m.ID(), Mode: game.Mode, Players: created})
	if err != nil {
		logger.Printf("http: encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(nethttp.StatusCreated)
	w.Write(data)
}

func writeJSON(w nethttp.ResponseWriter, payload any, logger telemetry.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("http: encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, message string, code int) {
	nethttp.Error(w, message, code)
}
