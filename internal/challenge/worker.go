package challenge

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

// TickLeaseKey is the lease name shared by every instance's tick worker.
const TickLeaseKey = "challenge:tick:lease"

// Locker hands out short-lived exclusive leases across instances.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// WorkerOptions tunes the TickWorker.
type WorkerOptions struct {
	Interval time.Duration // default: 1m
	LeaseTTL time.Duration // default: 30s
	AutoPost bool          // create today's entity on each tick
}

// TickWorker periodically runs TickAll for each service.
type TickWorker struct {
	services []*Service
	locker   Locker
	opts     WorkerOptions
	logger   zerolog.Logger
}

// NewTickWorker builds a worker. locker may be nil for single-instance setups.
func NewTickWorker(services []*Service, locker Locker, opts WorkerOptions, logger zerolog.Logger) *TickWorker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 30 * time.Second
	}
	return &TickWorker{
		services: services,
		locker:   locker,
		opts:     opts,
		logger:   logging.Component(logger, "tick_worker"),
	}
}

// Run blocks until context cancellation.
func (w *TickWorker) Run(ctx context.Context) error {
	if len(w.services) == 0 {
		return nil
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	// run immediately
	w.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass over every service, holding the cluster-wide lease when
// a locker is configured. It reports whether the pass ran.
func (w *TickWorker) Tick(ctx context.Context) bool {
	if w.locker != nil {
		release, ok, err := w.locker.TryAcquire(ctx, TickLeaseKey, w.opts.LeaseTTL)
		switch {
		case err != nil:
			// ticks are idempotent; proceed without the lease
			w.logger.Warn().Err(err).Msg("tick lease unavailable, ticking anyway")
		case !ok:
			w.logger.Debug().Msg("tick lease held elsewhere, skipping")
			return false
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					w.logger.Warn().Err(err).Msg("release tick lease")
				}
			}()
		}
	}

	for _, svc := range w.services {
		if w.opts.AutoPost {
			day := svc.Today()
			if _, created, err := svc.CreateIfAbsent(ctx, day); err != nil {
				w.logger.Warn().Err(err).Str("variant", string(svc.Variant())).Str("day", day).Msg("auto-post failed")
			} else if created {
				w.logger.Info().Str("variant", string(svc.Variant())).Str("day", day).Msg("auto-posted challenge")
			}
		}
		if _, err := svc.TickAll(ctx); err != nil {
			w.logger.Warn().Err(err).Str("variant", string(svc.Variant())).Msg("tick failed")
		}
	}
	return true
}
