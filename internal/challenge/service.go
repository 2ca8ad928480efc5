package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/challenge-engine/internal/challenge/ranking"
	"github.com/gokatarajesh/challenge-engine/internal/grading"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
	"github.com/gokatarajesh/challenge-engine/internal/metrics"
)

const (
	maxAnswerLength     = 2000
	maxIDLength         = 128
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
)

// Options tunes a Service.
type Options struct {
	Location          *time.Location   // default: UTC
	WindowStartOffset time.Duration    // default: 9h after local midnight
	WindowEndOffset   time.Duration    // default: 21h after local midnight
	Ranking           ranking.Config   // zero value uses ranking.DefaultConfig
	EvaluatorTimeout  time.Duration    // default: 8s
	TickConcurrency   int              // default: 4
	Now               func() time.Time // default: time.Now
}

// Dependencies are the collaborators a Service drives.
type Dependencies struct {
	Store     Store
	Content   ContentSource
	Evaluator grading.Evaluator // optional
	Publisher Publisher         // optional
}

// Service owns the lifecycle, submissions and ranking of one variant.
type Service struct {
	variant   Variant
	profile   Profile
	store     Store
	content   ContentSource
	grader    *grading.Grader
	ranking   *ranking.Engine
	publisher Publisher
	opts      Options
	logger    zerolog.Logger
	creating  singleflight.Group
}

// NewService wires a service for variant.
func NewService(variant Variant, deps Dependencies, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.WindowStartOffset == 0 && opts.WindowEndOffset == 0 {
		opts.WindowStartOffset = 9 * time.Hour
		opts.WindowEndOffset = 21 * time.Hour
	}
	if opts.WindowEndOffset < opts.WindowStartOffset {
		opts.WindowEndOffset = opts.WindowStartOffset
	}
	if opts.TickConcurrency <= 0 {
		opts.TickConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	profile := variant.Profile()
	logger = logging.Component(logger, "challenge_service").With().Str("variant", string(variant)).Logger()

	return &Service{
		variant: variant,
		profile: profile,
		store:   deps.Store,
		content: deps.Content,
		grader: grading.NewGrader(deps.Evaluator, grading.Options{
			Timeout:               opts.EvaluatorTimeout,
			MinScore:              profile.MinEvaluatorScore,
			FastPathMismatchScore: profile.FastPathMismatchScore,
			FallbackMismatchScore: profile.FallbackMismatchScore,
		}, logger),
		ranking:   ranking.NewEngine(opts.Ranking),
		publisher: deps.Publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Variant returns the variant this service manages.
func (s *Service) Variant() Variant {
	return s.variant
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// Today returns the current calendar day in the configured location.
func (s *Service) Today() string {
	return s.now().In(s.opts.Location).Format(DayLayout)
}

// Window derives the submission window for day.
func (s *Service) Window(day string) (time.Time, time.Time, error) {
	midnight, err := time.ParseInLocation(DayLayout, day, s.opts.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", ErrValidation, day)
	}
	return midnight.Add(s.opts.WindowStartOffset), midnight.Add(s.opts.WindowEndOffset), nil
}

func (s *Service) windowLength() time.Duration {
	return s.opts.WindowEndOffset - s.opts.WindowStartOffset
}

type createResult struct {
	entity  *Entity
	created bool
}

// CreateIfAbsent returns the entity for day, creating a Scheduled one from
// freshly generated content when none exists. created is false when the
// entity already existed.
func (s *Service) CreateIfAbsent(ctx context.Context, day string) (*Entity, bool, error) {
	start, end, err := s.Window(day)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.store.GetByDay(ctx, s.variant, day)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("lookup %s: %w", day, err)
	}

	v, err, _ := s.creating.Do(day, func() (interface{}, error) {
		return s.create(ctx, day, start, end)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(createResult)
	return res.entity.Clone(), res.created, nil
}

func (s *Service) create(ctx context.Context, day string, start, end time.Time) (createResult, error) {
	if existing, err := s.store.GetByDay(ctx, s.variant, day); err == nil {
		return createResult{entity: existing}, nil
	}
	if s.content == nil {
		return createResult{}, fmt.Errorf("no content source configured")
	}

	content, err := s.content.Generate(ctx, ContentRequest{Variant: s.variant, Day: day})
	if err != nil {
		return createResult{}, fmt.Errorf("generate content for %s: %w", day, err)
	}
	if strings.TrimSpace(content.PromptText) == "" || strings.TrimSpace(content.ExpectedAnswer) == "" {
		return createResult{}, fmt.Errorf("%w: content for %s has no prompt or expected answer", ErrValidation, day)
	}

	now := s.now()
	entity := &Entity{
		ID:             uuid.New(),
		Variant:        s.variant,
		Day:            day,
		PromptText:     strings.TrimSpace(content.PromptText),
		ExpectedAnswer: strings.TrimSpace(content.ExpectedAnswer),
		Topic:          content.Topic,
		Difficulty:     content.Difficulty,
		WindowStart:    start,
		WindowEnd:      end,
		Status:         StatusScheduled,
		Submissions:    []Submission{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	stored, created, err := s.store.Create(ctx, entity)
	if err != nil {
		return createResult{}, fmt.Errorf("create %s: %w", day, err)
	}
	if created {
		s.logger.Info().
			Str("entity_id", stored.ID.String()).
			Str("day", day).
			Time("window_start", start).
			Time("window_end", end).
			Msg("challenge scheduled")
	}
	return createResult{entity: stored, created: created}, nil
}

// Get loads an entity of this service's variant.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entity, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: challenge id is required", ErrValidation)
	}
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Variant != s.variant {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// FindByDay returns the entity scheduled for day.
func (s *Service) FindByDay(ctx context.Context, day string) (*Entity, error) {
	if _, _, err := s.Window(day); err != nil {
		return nil, err
	}
	return s.store.GetByDay(ctx, s.variant, day)
}

// FindActive returns the Active entity whose window contains now. When
// several qualify the most recently opened wins.
func (s *Service) FindActive(ctx context.Context) (*Entity, error) {
	active, err := s.store.ListByStatus(ctx, s.variant, StatusActive)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var found *Entity
	for _, e := range active {
		if !e.Accepting(now) {
			continue
		}
		if found == nil || e.WindowStart.After(found.WindowStart) {
			found = e
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no active %s", ErrNotFound, s.variant)
	}
	return found, nil
}

// FindHistory returns the most recent entities, newest day first.
func (s *Service) FindHistory(ctx context.Context, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.ListHistory(ctx, s.variant, limit)
}

// GetToday returns today's entity.
func (s *Service) GetToday(ctx context.Context) (*Entity, error) {
	return s.FindByDay(ctx, s.Today())
}

// GetActive returns the entity currently accepting submissions.
func (s *Service) GetActive(ctx context.Context) (*Entity, error) {
	return s.FindActive(ctx)
}

// GetHistory returns past and present entities, newest first.
func (s *Service) GetHistory(ctx context.Context, limit int) ([]*Entity, error) {
	return s.FindHistory(ctx, limit)
}

// Submit grades and records an answer. Grading happens before the entity is
// locked; the window and duplicate checks are repeated under the lock.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	result, err := s.submit(ctx, req)
	metrics.Submissions.WithLabelValues(string(s.variant), submitOutcome(err)).Inc()
	return result, err
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	entity, err := s.Get(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	if !entity.Accepting(s.now()) {
		return nil, fmt.Errorf("%w: challenge %s is %s", ErrInactiveWindow, entity.ID, entity.Status)
	}

	req.SubmitterID = strings.TrimSpace(req.SubmitterID)
	req.GroupID = strings.TrimSpace(req.GroupID)
	if err := validateSubmission(req); err != nil {
		return nil, err
	}
	if _, dup := entity.SubmissionBy(req.SubmitterID); dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubmission, req.SubmitterID)
	}

	logger := s.logger.With().
		Str("entity_id", entity.ID.String()).
		Str("submitter_id", req.SubmitterID).
		Logger()
	graded := s.grader.Grade(logging.IntoContext(ctx, logger), entity.PromptText, entity.ExpectedAnswer, req.AnswerText)

	var out SubmitResult
	updated, err := s.store.Mutate(ctx, entity.ID, func(e *Entity) (bool, error) {
		at := s.now()
		if !e.Accepting(at) {
			return false, fmt.Errorf("%w: challenge %s is %s", ErrInactiveWindow, e.ID, e.Status)
		}
		if _, dup := e.SubmissionBy(req.SubmitterID); dup {
			return false, fmt.Errorf("%w: %s", ErrDuplicateSubmission, req.SubmitterID)
		}

		minutes := ranking.TimeTaken(e.WindowStart, at)
		sub := Submission{
			ID:               uuid.New(),
			SubmitterID:      req.SubmitterID,
			GroupID:          req.GroupID,
			AnswerText:       req.AnswerText,
			SubmittedAt:      at,
			Score:            graded.Score,
			IsCorrect:        graded.IsCorrect,
			Explanation:      graded.Explanation,
			SolutionText:     graded.Solution,
			TimeTakenMinutes: minutes,
			FinalScore:       s.ranking.FinalScore(graded.Score, minutes, s.profile.WithTimeBonus),
			GradingPath:      graded.Path,
		}
		e.Submissions = append(e.Submissions, sub)
		out.LeaderChanged = updateLiveLeader(e, sub)
		e.UpdatedAt = at

		out.Submission = sub
		out.PointsAwarded = sub.FinalScore
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("submission_id", out.Submission.ID.String()).
		Int("score", out.Submission.Score).
		Float64("final_score", out.Submission.FinalScore).
		Str("path", out.Submission.GradingPath).
		Bool("leader_changed", out.LeaderChanged).
		Msg("submission accepted")

	s.publish(ctx, submissionEvent(EventSubmissionAccepted, updated, out.Submission))
	if out.LeaderChanged {
		s.publish(ctx, submissionEvent(EventLeaderChanged, updated, out.Submission))
	}
	return &out, nil
}

func validateSubmission(req SubmitRequest) error {
	switch {
	case req.SubmitterID == "":
		return fmt.Errorf("%w: submitter_id is required", ErrValidation)
	case len(req.SubmitterID) > maxIDLength || len(req.GroupID) > maxIDLength:
		return fmt.Errorf("%w: ids must be at most %d bytes", ErrValidation, maxIDLength)
	case strings.TrimSpace(req.AnswerText) == "":
		return fmt.Errorf("%w: answer_text is required", ErrValidation)
	case utf8.RuneCountInString(req.AnswerText) > maxAnswerLength:
		return fmt.Errorf("%w: answer_text exceeds %d characters", ErrValidation, maxAnswerLength)
	}
	return nil
}

func submitOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactiveWindow):
		return "inactive"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate"
	default:
		return "error"
	}
}

func updateLiveLeader(e *Entity, sub Submission) bool {
	var leader *ranking.Candidate
	if e.LiveLeaderID != nil {
		if cur, ok := e.Submission(*e.LiveLeaderID); ok {
			c := candidate(*cur)
			leader = &c
		}
	}
	if !ranking.TakesLead(leader, candidate(sub)) {
		return false
	}
	id := sub.ID
	e.LiveLeaderID = &id
	return true
}

func candidate(sub Submission) ranking.Candidate {
	return ranking.Candidate{
		ID:               sub.ID,
		FinalScore:       sub.FinalScore,
		TimeTakenMinutes: sub.TimeTakenMinutes,
	}
}

func candidates(subs []Submission) []ranking.Candidate {
	out := make([]ranking.Candidate, len(subs))
	for i, sub := range subs {
		out[i] = candidate(sub)
	}
	return out
}

// GetLeaderboard ranks every submission by stored final score. Ties keep
// submission order.
func (s *Service) GetLeaderboard(ctx context.Context, id uuid.UUID) (*Leaderboard, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{
		EntityID:        e.ID,
		Variant:         e.Variant,
		Day:             e.Day,
		Status:          e.Status,
		LiveLeaderID:    e.LiveLeaderID,
		ClosingWinnerID: e.ClosingWinnerID,
		Entries:         make([]LeaderboardEntry, 0, len(e.Submissions)),
	}
	for pos, idx := range ranking.Order(candidates(e.Submissions)) {
		sub := e.Submissions[idx]
		board.Entries = append(board.Entries, LeaderboardEntry{
			Position:         pos + 1,
			SubmissionID:     sub.ID,
			SubmitterID:      sub.SubmitterID,
			GroupID:          sub.GroupID,
			Score:            sub.Score,
			FinalScore:       sub.FinalScore,
			TimeTakenMinutes: sub.TimeTakenMinutes,
			IsCorrect:        sub.IsCorrect,
			IsWinner:         e.ClosingWinnerID != nil && *e.ClosingWinnerID == sub.ID,
		})
	}
	return board, nil
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.publisher == nil {
		return
	}
	event.Variant = s.variant
	event.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("publish event failed")
	}
}
