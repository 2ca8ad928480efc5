// Package postgres is the pgx-backed challenge.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

const (
	uniqueViolation          = "23505"
	submitterConstraint      = "challenge_submissions_submitter_key"
	challengeColumns         = `id, variant, day, prompt_text, expected_answer, topic, difficulty, window_start, window_end, status, live_leader_id, closing_winner_id, created_at, updated_at, activated_at, closed_at`
	submissionColumns        = `id, challenge_id, submitter_id, group_id, answer_text, submitted_at, score, is_correct, explanation, solution_text, time_taken_minutes, final_score, grading_path`
	insertChallengeStatement = `
		INSERT INTO challenges (` + challengeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (variant, day) DO NOTHING`
	insertSubmissionStatement = `
		INSERT INTO challenge_submissions (seq, ` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists entities in two tables. Mutate holds a row lock on the
// challenge for the whole read-modify-write.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ challenge.Store = (*Store)(nil)

func New(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{pool: pool, logger: logging.Component(logger, "postgres_store")}
}

func (s *Store) Create(ctx context.Context, e *challenge.Entity) (*challenge.Entity, bool, error) {
	day, err := parseDay(e.Day)
	if err != nil {
		return nil, false, err
	}

	var created bool
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertChallengeStatement,
			e.ID, string(e.Variant), day, e.PromptText, e.ExpectedAnswer, e.Topic, e.Difficulty,
			e.WindowStart, e.WindowEnd, string(e.Status), e.LiveLeaderID, e.ClosingWinnerID,
			e.CreatedAt, e.UpdatedAt, e.ActivatedAt, e.ClosedAt)
		if err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		return insertSubmissions(ctx, tx, e.ID, 0, e.Submissions)
	})
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetByDay(ctx, e.Variant, e.Day)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*challenge.Entity, error) {
	return loadOne(ctx, s.pool, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id)
}

func (s *Store) GetByDay(ctx context.Context, variant challenge.Variant, day string) (*challenge.Entity, error) {
	d, err := parseDay(day)
	if err != nil {
		return nil, err
	}
	return loadOne(ctx, s.pool, `SELECT `+challengeColumns+` FROM challenges WHERE variant = $1 AND day = $2`, string(variant), d)
}

func (s *Store) ListByStatus(ctx context.Context, variant challenge.Variant, statuses ...challenge.Status) ([]*challenge.Entity, error) {
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	return loadMany(ctx, s.pool,
		`SELECT `+challengeColumns+` FROM challenges WHERE variant = $1 AND status = ANY($2) ORDER BY day`,
		string(variant), raw)
}

func (s *Store) ListHistory(ctx context.Context, variant challenge.Variant, limit int) ([]*challenge.Entity, error) {
	return loadMany(ctx, s.pool,
		`SELECT `+challengeColumns+` FROM challenges WHERE variant = $1 ORDER BY day DESC LIMIT $2`,
		string(variant), limit)
}

func (s *Store) Mutate(ctx context.Context, id uuid.UUID, fn challenge.MutateFunc) (*challenge.Entity, error) {
	var result *challenge.Entity
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := loadOne(ctx, tx, `SELECT `+challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}

		working := current.Clone()
		before := len(working.Submissions)
		changed, err := fn(working)
		if err != nil {
			return err
		}
		if !changed {
			result = current
			return nil
		}
		if len(working.Submissions) < before {
			return challenge.ErrSubmissionsShrunk
		}

		_, err = tx.Exec(ctx, `
			UPDATE challenges SET
				window_start = $2, window_end = $3, status = $4,
				live_leader_id = $5, closing_winner_id = $6,
				updated_at = $7, activated_at = $8, closed_at = $9
			WHERE id = $1`,
			id, working.WindowStart, working.WindowEnd, string(working.Status),
			working.LiveLeaderID, working.ClosingWinnerID,
			working.UpdatedAt, working.ActivatedAt, working.ClosedAt)
		if err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}
		if err := insertSubmissions(ctx, tx, id, before, working.Submissions[before:]); err != nil {
			return err
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertSubmissions(ctx context.Context, tx pgx.Tx, challengeID uuid.UUID, offset int, subs []challenge.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, sub := range subs {
		batch.Queue(insertSubmissionStatement,
			offset+i, sub.ID, challengeID, sub.SubmitterID, sub.GroupID, sub.AnswerText, sub.SubmittedAt,
			sub.Score, sub.IsCorrect, sub.Explanation, sub.SolutionText, sub.TimeTakenMinutes,
			sub.FinalScore, sub.GradingPath)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == submitterConstraint {
			return fmt.Errorf("%w: %s", challenge.ErrDuplicateSubmission, pgErr.Detail)
		}
		return fmt.Errorf("insert submissions: %w", err)
	}
	return nil
}

func loadOne(ctx context.Context, q querier, sql string, args ...any) (*challenge.Entity, error) {
	entities, err := loadMany(ctx, q, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %v", challenge.ErrNotFound, args)
	}
	return entities[0], nil
}

func loadMany(ctx context.Context, q querier, sql string, args ...any) ([]*challenge.Entity, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	entities, err := pgx.CollectRows(rows, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("scan challenges: %w", err)
	}
	if len(entities) == 0 {
		return entities, nil
	}

	ids := make([]uuid.UUID, len(entities))
	byID := make(map[uuid.UUID]*challenge.Entity, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	subRows, err := q.Query(ctx,
		`SELECT `+submissionColumns+` FROM challenge_submissions WHERE challenge_id = ANY($1) ORDER BY challenge_id, seq`,
		ids)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer subRows.Close()
	for subRows.Next() {
		var (
			sub         challenge.Submission
			challengeID uuid.UUID
		)
		if err := subRows.Scan(&sub.ID, &challengeID, &sub.SubmitterID, &sub.GroupID, &sub.AnswerText,
			&sub.SubmittedAt, &sub.Score, &sub.IsCorrect, &sub.Explanation, &sub.SolutionText,
			&sub.TimeTakenMinutes, &sub.FinalScore, &sub.GradingPath); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if e, ok := byID[challengeID]; ok {
			e.Submissions = append(e.Submissions, sub)
		}
	}
	if err := subRows.Err(); err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	return entities, nil
}

func scanEntity(row pgx.CollectableRow) (*challenge.Entity, error) {
	var (
		e       challenge.Entity
		variant string
		status  string
		day     time.Time
	)
	err := row.Scan(&e.ID, &variant, &day, &e.PromptText, &e.ExpectedAnswer, &e.Topic, &e.Difficulty,
		&e.WindowStart, &e.WindowEnd, &status, &e.LiveLeaderID, &e.ClosingWinnerID,
		&e.CreatedAt, &e.UpdatedAt, &e.ActivatedAt, &e.ClosedAt)
	if err != nil {
		return nil, err
	}
	e.Variant = challenge.Variant(variant)
	e.Status = challenge.Status(status)
	e.Day = day.Format(challenge.DayLayout)
	e.Submissions = []challenge.Submission{}
	return &e, nil
}

func parseDay(day string) (time.Time, error) {
	d, err := time.Parse(challenge.DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", challenge.ErrValidation, day)
	}
	return d, nil
}
