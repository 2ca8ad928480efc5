package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/challenge/ranking"
	"github.com/gokatarajesh/challenge-engine/internal/config"
	"github.com/gokatarajesh/challenge-engine/internal/content"
	"github.com/gokatarajesh/challenge-engine/internal/evaluator/gemini"
	"github.com/gokatarajesh/challenge-engine/internal/evaluator/httpapi"
	"github.com/gokatarajesh/challenge-engine/internal/events"
	"github.com/gokatarajesh/challenge-engine/internal/grading"
	"github.com/gokatarajesh/challenge-engine/internal/lease"
	"github.com/gokatarajesh/challenge-engine/internal/store/memory"
	"github.com/gokatarajesh/challenge-engine/internal/store/postgres"
)

// Components is the shared infrastructure plus one Service per variant.
// Both the API process and the CLI build it.
type Components struct {
	// Pool is nil with the memory store.
	Pool *pgxpool.Pool

	// Redis is nil when REDIS_ADDR is empty; Locker is nil with it.
	Redis  *redis.Client
	Locker challenge.Locker

	// EventsChannel is the Pub/Sub channel events are published on.
	EventsChannel string
	Services      map[challenge.Variant]*challenge.Service

	closers []func()
	logger  zerolog.Logger
}

// Build connects the configured backends and wires the services.
func Build(ctx context.Context, cfg *config.App, logger zerolog.Logger) (*Components, error) {
	c := &Components{
		Services:      make(map[challenge.Variant]*challenge.Service, len(challenge.Variants)),
		EventsChannel: cfg.Redis.EventsChannel,
		logger:        logger,
	}

	store, err := c.buildStore(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var publisher challenge.Publisher
	if cfg.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		c.closers = append(c.closers, func() {
			if err := c.Redis.Close(); err != nil {
				logger.Error().Err(err).Msg("redis shutdown error")
			}
		})
		c.Locker = lease.NewLocker(c.Redis, logger)
		publisher = events.NewPublisher(c.Redis, cfg.Redis.EventsChannel, logger)
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; tick lease, events and content cache disabled")
	}

	evaluator, err := c.buildEvaluator(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	loc, err := cfg.Schedule.LoadLocation()
	if err != nil {
		c.Close()
		return nil, err
	}

	opts := challenge.Options{
		Location:          loc,
		WindowStartOffset: cfg.Schedule.WindowStartOffset,
		WindowEndOffset:   cfg.Schedule.WindowEndOffset,
		Ranking: ranking.Config{
			MinMinutes: cfg.Ranking.MinMinutes,
			MaxMinutes: cfg.Ranking.MaxMinutes,
			MaxBonus:   cfg.Ranking.MaxBonus,
		},
		EvaluatorTimeout: cfg.Grading.EvaluatorTimeout,
		TickConcurrency:  cfg.Schedule.TickConcurrency,
	}
	source := c.buildContent(cfg)
	for _, v := range challenge.Variants {
		c.Services[v] = challenge.NewService(v, challenge.Dependencies{
			Store:     store,
			Content:   source,
			Evaluator: evaluator,
			Publisher: publisher,
		}, opts, logger)
	}
	return c, nil
}

// Service returns the service for v.
func (c *Components) Service(v challenge.Variant) (*challenge.Service, error) {
	svc, ok := c.Services[v]
	if !ok {
		return nil, fmt.Errorf("no service for variant %q", v)
	}
	return svc, nil
}

// ServiceList returns the services in variant order.
func (c *Components) ServiceList() []*challenge.Service {
	out := make([]*challenge.Service, 0, len(c.Services))
	for _, v := range challenge.Variants {
		if svc, ok := c.Services[v]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// Close releases backends in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) buildStore(ctx context.Context, cfg *config.App) (challenge.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		c.logger.Warn().Msg("using in-memory store; state is lost on restart")
		return memory.New(), nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		return postgres.New(pool, c.logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (c *Components) buildEvaluator(ctx context.Context, cfg *config.App) (grading.Evaluator, error) {
	switch cfg.Evaluator.Provider {
	case config.EvaluatorHTTP:
		return httpapi.NewEvaluator(httpapi.Config{
			URL:     cfg.Evaluator.URL,
			APIKey:  cfg.Evaluator.APIKey,
			Timeout: cfg.Evaluator.HTTPTimeout,
		}, c.logger), nil
	case config.EvaluatorGemini:
		ev, err := gemini.NewEvaluator(ctx, gemini.Config{
			APIKey: cfg.Evaluator.GeminiAPIKey,
			Model:  cfg.Evaluator.GeminiModel,
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("init gemini evaluator: %w", err)
		}
		c.closers = append(c.closers, func() { _ = ev.Close() })
		return ev, nil
	default:
		c.logger.Info().Msg("no evaluator configured; non-arithmetic answers graded by exact match")
		return nil, nil
	}
}

func (c *Components) buildContent(cfg *config.App) challenge.ContentSource {
	var sources []challenge.ContentSource
	if cfg.Content.GeneratorURL != "" {
		sources = append(sources, content.NewGenerator(content.Config{
			GeneratorURL: cfg.Content.GeneratorURL,
			GeneratorKey: cfg.Content.GeneratorKey,
			Timeout:      cfg.Content.HTTPTimeout,
		}, c.logger))
	}
	sources = append(sources, content.Arithmetic{})

	var source challenge.ContentSource = content.NewChain(c.logger, sources...)
	if c.Redis != nil {
		source = content.NewCache(source, c.Redis, 0, c.logger)
	}
	return source
}
