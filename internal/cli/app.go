package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/librarydesk/lending-engine/internal/config"
	"github.com/librarydesk/lending-engine/lending/engine"
)

type globalFlags struct {
	debug   bool
	json    bool
	backend string
	envFile string
}

// app carries the state of one invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	flags   globalFlags
	session *session
}

type session struct {
	engine    *engine.Engine
	backend   *config.Backend
	telemetry *config.Telemetry
	logger    *slog.Logger
}

// open loads the configuration and opens backend and engine once per invocation.
// SQLite databases are migrated on open so a fresh file is usable right away.
func (a *app) open(ctx context.Context) (*session, error) {
	if a.session != nil {
		return a.session, nil
	}

	cfg, err := config.Load(a.flags.envFile)
	if err != nil {
		return nil, err
	}

	if a.flags.backend != "" {
		cfg.Backend = strings.ToLower(a.flags.backend)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	logger := a.newLogger()

	telemetry, err := config.NewTelemetry(ctx, cfg, Version)
	if err != nil {
		return nil, err
	}

	instruments := telemetry.Instruments(logger)

	backend, err := config.OpenBackend(ctx, cfg, instruments)
	if err != nil {
		return nil, errors.Join(err, telemetry.Shutdown())
	}

	if cfg.Backend == config.BackendSQLite {
		if err := backend.Migrate(ctx); err != nil {
			backend.Close()
			return nil, errors.Join(err, telemetry.Shutdown())
		}
	}

	eng, err := engine.New(backend, config.EngineOptions(cfg, policy, instruments)...)
	if err != nil {
		backend.Close()
		return nil, errors.Join(err, telemetry.Shutdown())
	}

	a.session = &session{engine: eng, backend: backend, telemetry: telemetry, logger: logger}

	return a.session, nil
}

func (a *app) close() {
	if a.session == nil {
		return
	}

	a.session.backend.Close()
	if err := a.session.telemetry.Shutdown(); err != nil {
		a.session.logger.Warn("telemetry shutdown failed", "error", err.Error())
	}

	a.session = nil
}

func (a *app) newLogger() *slog.Logger {
	level := slog.LevelInfo
	if a.flags.debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func (a *app) printer() printer {
	return printer{out: a.stdout, json: a.flags.json}
}
