package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Variant selects the challenge flavor. Variants share the lifecycle but
// differ in how points are computed.
type Variant string

const (
	VariantDaily      Variant = "daily_challenge"
	VariantIndividual Variant = "individual_question"
)

// Variants lists every supported variant.
var Variants = []Variant{VariantDaily, VariantIndividual}

// ParseVariant validates a variant key.
func ParseVariant(raw string) (Variant, error) {
	v := Variant(raw)
	if !v.Valid() {
		return "", fmt.Errorf("%w: unknown variant %q", ErrValidation, raw)
	}
	return v, nil
}

func (v Variant) Valid() bool {
	return v == VariantDaily || v == VariantIndividual
}

// Profile holds the per-variant scoring knobs.
type Profile struct {
	WithTimeBonus         bool
	FastPathMismatchScore int
	FallbackMismatchScore int
	MinEvaluatorScore     int
}

// Profile returns the scoring profile for v.
func (v Variant) Profile() Profile {
	switch v {
	case VariantIndividual:
		return Profile{
			WithTimeBonus:         false,
			FastPathMismatchScore: 1,
			FallbackMismatchScore: 3,
			MinEvaluatorScore:     1,
		}
	default:
		return Profile{
			WithTimeBonus:         true,
			FastPathMismatchScore: 1,
			FallbackMismatchScore: 2,
			MinEvaluatorScore:     0,
		}
	}
}

// Status is the lifecycle state of an entity.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
)

func (s Status) rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusActive:
		return 1
	case StatusClosed:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether next is the immediate successor of s.
func (s Status) CanAdvanceTo(next Status) bool {
	return s.rank() >= 0 && next.rank() == s.rank()+1
}

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

// Entity is one day's challenge for a variant.
type Entity struct {
	ID              uuid.UUID    `json:"id"`
	Variant         Variant      `json:"variant"`
	Day             string       `json:"day"`
	PromptText      string       `json:"prompt_text"`
	ExpectedAnswer  string       `json:"-"`
	Topic           string       `json:"topic,omitempty"`
	Difficulty      string       `json:"difficulty,omitempty"`
	WindowStart     time.Time    `json:"window_start"`
	WindowEnd       time.Time    `json:"window_end"`
	Status          Status       `json:"status"`
	Submissions     []Submission `json:"submissions"`
	LiveLeaderID    *uuid.UUID   `json:"live_leader_id,omitempty"`
	ClosingWinnerID *uuid.UUID   `json:"closing_winner_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ActivatedAt     *time.Time   `json:"activated_at,omitempty"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
}

// Submission is one participant's answer. SubmitterID and GroupID reference
// records owned elsewhere.
type Submission struct {
	ID               uuid.UUID `json:"id"`
	SubmitterID      string    `json:"submitter_id"`
	GroupID          string    `json:"group_id,omitempty"`
	AnswerText       string    `json:"answer_text"`
	SubmittedAt      time.Time `json:"submitted_at"`
	Score            int       `json:"score"`
	IsCorrect        bool      `json:"is_correct"`
	Explanation      string    `json:"explanation"`
	SolutionText     string    `json:"solution_text"`
	TimeTakenMinutes int       `json:"time_taken_minutes"`
	FinalScore       float64   `json:"final_score"`
	GradingPath      string    `json:"grading_path"`
}

// Clone returns a deep copy.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Submissions = append([]Submission(nil), e.Submissions...)
	cp.LiveLeaderID = cloneID(e.LiveLeaderID)
	cp.ClosingWinnerID = cloneID(e.ClosingWinnerID)
	cp.ActivatedAt = cloneTime(e.ActivatedAt)
	cp.ClosedAt = cloneTime(e.ClosedAt)
	return &cp
}

// Accepting reports whether submissions are allowed at now.
func (e *Entity) Accepting(now time.Time) bool {
	return e.Status == StatusActive && !now.Before(e.WindowStart) && !now.After(e.WindowEnd)
}

// SubmissionBy returns the submission made by submitterID, if any.
func (e *Entity) SubmissionBy(submitterID string) (*Submission, bool) {
	for i := range e.Submissions {
		if e.Submissions[i].SubmitterID == submitterID {
			return &e.Submissions[i], true
		}
	}
	return nil, false
}

// Submission looks a submission up by id.
func (e *Entity) Submission(id uuid.UUID) (*Submission, bool) {
	for i := range e.Submissions {
		if e.Submissions[i].ID == id {
			return &e.Submissions[i], true
		}
	}
	return nil, false
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Content is the material for a new day's entity.
type Content struct {
	PromptText     string `json:"prompt_text"`
	ExpectedAnswer string `json:"expected_answer"`
	Topic          string `json:"topic"`
	Difficulty     string `json:"difficulty"`
}

// ContentRequest asks a ContentSource for a given variant and day.
type ContentRequest struct {
	Variant Variant
	Day     string
}

// ContentSource supplies prompt material for new entities.
type ContentSource interface {
	Generate(ctx context.Context, req ContentRequest) (Content, error)
}

// SubmitRequest carries a participant's answer.
type SubmitRequest struct {
	EntityID    uuid.UUID `json:"-"`
	SubmitterID string    `json:"submitter_id"`
	GroupID     string    `json:"group_id,omitempty"`
	AnswerText  string    `json:"answer_text"`
}

// SubmitResult is returned by a successful Submit. PointsAwarded is what the
// points-award consumer should credit to the submitter.
type SubmitResult struct {
	Submission    Submission `json:"submission"`
	LeaderChanged bool       `json:"leader_changed"`
	PointsAwarded float64    `json:"points_awarded"`
}

// LeaderboardEntry is a ranked submission.
type LeaderboardEntry struct {
	Position         int       `json:"position"`
	SubmissionID     uuid.UUID `json:"submission_id"`
	SubmitterID      string    `json:"submitter_id"`
	GroupID          string    `json:"group_id,omitempty"`
	Score            int       `json:"score"`
	FinalScore       float64   `json:"final_score"`
	TimeTakenMinutes int       `json:"time_taken_minutes"`
	IsCorrect        bool      `json:"is_correct"`
	IsWinner         bool      `json:"is_winner"`
}

// Leaderboard is the ranked view of an entity.
type Leaderboard struct {
	EntityID        uuid.UUID          `json:"entity_id"`
	Variant         Variant            `json:"variant"`
	Day             string             `json:"day"`
	Status          Status             `json:"status"`
	LiveLeaderID    *uuid.UUID         `json:"live_leader_id,omitempty"`
	ClosingWinnerID *uuid.UUID         `json:"closing_winner_id,omitempty"`
	Entries         []LeaderboardEntry `json:"entries"`
}
