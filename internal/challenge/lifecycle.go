package challenge

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/challenge-engine/internal/challenge/ranking"
	"github.com/gokatarajesh/challenge-engine/internal/metrics"
)

// Activate opens a Scheduled entity once its window has started. It is a
// no-op for any other state; changed reports whether a transition happened.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Entity, bool, error) {
	return s.activate(ctx, id, false)
}

// ActivateNow opens a Scheduled entity immediately, moving its window start to
// now. The window end is pushed out when it already passed.
func (s *Service) ActivateNow(ctx context.Context, id uuid.UUID) (*Entity, bool, error) {
	return s.activate(ctx, id, true)
}

func (s *Service) activate(ctx context.Context, id uuid.UUID, immediate bool) (*Entity, bool, error) {
	var changed bool
	updated, err := s.store.Mutate(ctx, id, func(e *Entity) (bool, error) {
		if e.Variant != s.variant {
			return false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		now := s.now()
		if e.Status != StatusScheduled {
			return false, nil
		}
		if immediate {
			e.WindowStart = now
			if e.WindowEnd.Before(now) {
				e.WindowEnd = now.Add(s.windowLength())
			}
		} else if now.Before(e.WindowStart) {
			return false, nil
		}

		e.Status = StatusActive
		e.ActivatedAt = &now
		e.UpdatedAt = now
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		metrics.Transitions.WithLabelValues(string(s.variant), string(StatusActive)).Inc()
		s.logger.Info().
			Str("entity_id", updated.ID.String()).
			Str("day", updated.Day).
			Bool("immediate", immediate).
			Msg("challenge activated")
		s.publish(ctx, Event{Type: EventActivated, EntityID: updated.ID, Day: updated.Day})
	}
	return updated, changed, nil
}

// PostOrActivate makes sure day's entity exists and is open. With immediate
// set the window starts now; otherwise activation waits for the window.
func (s *Service) PostOrActivate(ctx context.Context, day string, immediate bool) (*Entity, error) {
	e, _, err := s.CreateIfAbsent(ctx, day)
	if err != nil {
		return nil, err
	}
	if immediate {
		e, _, err = s.ActivateNow(ctx, e.ID)
	} else {
		e, _, err = s.Activate(ctx, e.ID)
	}
	return e, err
}

// Close finalizes an Active entity whose window has ended: the closing winner
// is the highest final score, ties going to the faster submission.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*Entity, bool, error) {
	var changed bool
	updated, err := s.store.Mutate(ctx, id, func(e *Entity) (bool, error) {
		if e.Variant != s.variant {
			return false, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		now := s.now()
		if e.Status != StatusActive || !now.After(e.WindowEnd) {
			return false, nil
		}

		if winner, ok := ranking.ClosingWinner(candidates(e.Submissions)); ok {
			wid := winner.ID
			e.ClosingWinnerID = &wid
		}
		e.Status = StatusClosed
		e.ClosedAt = &now
		e.UpdatedAt = now
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		metrics.Transitions.WithLabelValues(string(s.variant), string(StatusClosed)).Inc()
		event := Event{Type: EventClosed, EntityID: updated.ID, Day: updated.Day}
		logEvt := s.logger.Info().
			Str("entity_id", updated.ID.String()).
			Str("day", updated.Day).
			Int("submissions", len(updated.Submissions))
		if updated.ClosingWinnerID != nil {
			if sub, ok := updated.Submission(*updated.ClosingWinnerID); ok {
				event = submissionEvent(EventClosed, updated, *sub)
				logEvt = logEvt.Str("winner_submitter_id", sub.SubmitterID).Float64("winner_final_score", sub.FinalScore)
			}
		}
		logEvt.Msg("challenge closed")
		s.publish(ctx, event)
	}
	return updated, changed, nil
}

// TickReport summarizes one TickAll pass.
type TickReport struct {
	Scanned   int `json:"scanned"`
	Activated int `json:"activated"`
	Closed    int `json:"closed"`
	Failed    int `json:"failed"`
}

// TickAll applies Activate then Close to every Scheduled or Active entity of
// this variant. Entities are processed in parallel and independently: a
// failure is logged, counted and retried on the next tick.
func (s *Service) TickAll(ctx context.Context) (TickReport, error) {
	pending, err := s.store.ListByStatus(ctx, s.variant, StatusScheduled, StatusActive)
	if err != nil {
		return TickReport{}, fmt.Errorf("list pending: %w", err)
	}

	var (
		mu     sync.Mutex
		report = TickReport{Scanned: len(pending)}
		g      errgroup.Group
	)
	g.SetLimit(s.opts.TickConcurrency)

	for _, e := range pending {
		g.Go(func() error {
			activated, closed, err := s.tick(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			if activated {
				report.Activated++
			}
			if closed {
				report.Closed++
			}
			if err != nil {
				report.Failed++
				metrics.TickFailures.WithLabelValues(string(s.variant)).Inc()
				s.logger.Error().Err(err).Str("entity_id", e.ID.String()).Msg("tick failed for challenge")
			}
			return nil
		})
	}
	_ = g.Wait()

	if report.Activated > 0 || report.Closed > 0 || report.Failed > 0 {
		s.logger.Info().
			Int("scanned", report.Scanned).
			Int("activated", report.Activated).
			Int("closed", report.Closed).
			Int("failed", report.Failed).
			Msg("tick complete")
	}
	return report, nil
}

func (s *Service) tick(ctx context.Context, e *Entity) (activated, closed bool, err error) {
	now := s.now()
	if e.Status == StatusScheduled {
		if now.Before(e.WindowStart) {
			return false, false, nil
		}
		if e, activated, err = s.Activate(ctx, e.ID); err != nil {
			return false, false, err
		}
	}
	if e.Status == StatusActive && now.After(e.WindowEnd) {
		if _, closed, err = s.Close(ctx, e.ID); err != nil {
			return activated, false, err
		}
	}
	return activated, closed, nil
}
