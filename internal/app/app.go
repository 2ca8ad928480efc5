package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/config"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
	"github.com/gokatarajesh/challenge-engine/internal/server"
)

// Application aggregates shared infrastructure (store, cache, HTTP server)
// and the lifecycle worker.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	components *Components
	http       *http.Server

	tickWorker *challenge.TickWorker
	bgCancels  []context.CancelFunc
}

// New bootstraps the logger, backends, services and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store", cfg.StoreDriver).Str("evaluator", cfg.Evaluator.Provider).Msg("starting application bootstrap")

	components, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	routes := make([]server.Registrar, 0, len(components.Services))
	for _, svc := range components.ServiceList() {
		routes = append(routes, challenge.NewHTTPHandler(svc, logger))
	}
	apiServer := server.NewHTTPServer(cfg, logger, components.Pool, components.Redis, routes...)

	var tickWorker *challenge.TickWorker
	if cfg.Schedule.TickInterval > 0 {
		tickWorker = challenge.NewTickWorker(components.ServiceList(), components.Locker, challenge.WorkerOptions{
			Interval: cfg.Schedule.TickInterval,
			LeaseTTL: cfg.Schedule.TickLeaseTTL,
			AutoPost: cfg.Schedule.AutoPost,
		}, logger)
	}

	return &Application{
		cfg:        cfg,
		logger:     logger,
		components: components,
		http:       apiServer,
		tickWorker: tickWorker,
		bgCancels:  make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.components.Close()

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.tickWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.tickWorker.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("tick worker stopped")
			}
		}()
	}
}
