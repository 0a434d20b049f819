package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finnguide/internal/infra/config"
	"finnguide/internal/infra/logger"
	"finnguide/internal/infra/tracer"
)

// runtime is the loaded config plus the logger and tracer built from it.
type runtime struct {
	cfg     *config.Config
	log     *slog.Logger
	cleanup func()
}

// setupRuntime loads the config file and initializes logging and tracing.
// The caller must invoke cleanup once done.
func setupRuntime(ctx context.Context, cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
		_ = closeLog()
	}
	return &runtime{cfg: cfg, log: log, cleanup: cleanup}, nil
}
