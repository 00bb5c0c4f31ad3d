// Package app wires configuration, logging, storage, and the HTTP surface
// into a runnable server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"gridrush/server/internal/journal"
	"gridrush/server/internal/match"
	servernet "gridrush/server/internal/net"
	"gridrush/server/internal/reward"
	"gridrush/server/internal/telemetry"
	"gridrush/server/internal/timers"
	"gridrush/server/logging"
	loggingsinks "gridrush/server/logging/sinks"
)

// Config is read from the environment.
type Config struct {
	Addr string `env:"GRIDRUSH_ADDR" envDefault:":8080"`

	// JournalDriver selects match journal persistence: memory, file, or
	// postgres.
	JournalDriver string `env:"GRIDRUSH_JOURNAL_DRIVER" envDefault:"memory"`
	JournalPath   string `env:"GRIDRUSH_JOURNAL_PATH" envDefault:"journal.ndjson"`
	JournalDSN    string `env:"GRIDRUSH_JOURNAL_DSN"`

	LogJSONPath string `env:"GRIDRUSH_LOG_JSON_PATH"`

	TimeUnit  time.Duration `env:"GRIDRUSH_TIME_UNIT" envDefault:"1s"`
	FallGrace time.Duration `env:"GRIDRUSH_FALL_GRACE" envDefault:"3s"`

	ShutdownGrace time.Duration `env:"GRIDRUSH_SHUTDOWN_GRACE" envDefault:"5s"`
}

// LoadConfig reads the environment into a Config.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func openJournalStore(cfg Config) (journal.Store, error) {
	switch cfg.JournalDriver {
	case "", "memory":
		return journal.NewMemoryStore(), nil
	case "file":
		return journal.NewFileStore(cfg.JournalPath)
	case "postgres":
		if cfg.JournalDSN == "" {
			return nil, fmt.Errorf("journal driver postgres requires GRIDRUSH_JOURNAL_DSN")
		}
		return journal.NewPostgresStore(cfg.JournalDSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.JournalDriver)
	}
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config) error {
	logger := telemetry.WrapLogger(log.Default())

	logCfg := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsole(os.Stdout)},
	}
	if cfg.LogJSONPath != "" {
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingsinks.NewJSON(file, logCfg.JSON.FlushInterval),
		})
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
	}
	router := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	defer func() {
		if err := router.Close(context.Background()); err != nil {
			logger.Printf("close logging router: %v", err)
		}
	}()

	store, err := openJournalStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Printf("close journal store: %v", err)
		}
	}()

	timerSched := timers.NewScheduler()
	defer timerSched.Close()

	counters := telemetry.NewCounters()
	registry := match.NewRegistry()

	matchCfg := match.DefaultConfig()
	matchCfg.TimeUnit = cfg.TimeUnit
	matchCfg.FallGrace = cfg.FallGrace

	matchDeps := func(matchID string) match.Deps {
		return match.Deps{
			Timers:    timerSched,
			Journal:   journal.New(matchID, store),
			Publisher: router,
			Metrics:   counters,
			Reward:    reward.NopNotifier(),
			Logger:    logger,
		}
	}

	handler := servernet.NewHTTPHandler(registry, servernet.HTTPHandlerConfig{
		Logger:      logger,
		Counters:    counters,
		MatchConfig: matchCfg,
		MatchDeps:   matchDeps,
		BaseContext: ctx,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
