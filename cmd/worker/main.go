package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"sourcesage/internal/app"
	"sourcesage/internal/config"
	"sourcesage/internal/infra/worker"
	"sourcesage/internal/observability/logging"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Cache.Backend == config.BackendMemory {
		return fmt.Errorf("cache sweep needs a shared backend; CACHE_BACKEND is %q", cfg.Cache.Backend)
	}

	sweepCfg := worker.LoadSweepConfig(logger)
	if err := sweepCfg.Validate(); err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if store.Err != nil {
		return store.Err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache store close failed", slog.Any("error", err))
		}
	}()

	sweeper := worker.NewSweeper(store.Repo, sweepCfg, logger.With(slog.String("backend", store.Backend)))
	health := worker.NewHealthServer(":"+strconv.Itoa(sweepCfg.HealthPort), sweeper, logger)

	healthErr := make(chan error, 1)
	go func() { healthErr <- health.Start(ctx) }()

	c, err := sweeper.Start(ctx)
	if err != nil {
		return err
	}
	health.SetReady(true)
	logger.Info("worker started",
		slog.String("backend", store.Backend),
		slog.String("schedule", sweepCfg.CronSchedule))

	select {
	case <-ctx.Done():
		logger.Info("shutting down worker...")
		health.SetReady(false)
		<-c.Stop().Done()
		err = <-healthErr
	case err = <-healthErr:
		<-c.Stop().Done()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
