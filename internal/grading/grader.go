package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/logging"
	"github.com/gokatarajesh/challenge-engine/internal/metrics"
)

// Scoring paths.
const (
	PathFastPath  = "fast_path"
	PathEvaluator = "evaluator"
	PathFallback  = "fallback"
)

// MaxScore is the top of the normalized score range.
const MaxScore = 10

// ErrEvaluatorUnavailable marks an evaluator call that errored, timed out or
// returned something unparseable. Grade absorbs it; it never reaches callers.
var ErrEvaluatorUnavailable = errors.New("answer evaluator unavailable")

// Request is what an Evaluator is asked to grade.
type Request struct {
	Instructions    string
	PromptText      string
	ExpectedAnswer  string
	SubmittedAnswer string
}

// Evaluator is the external answer-grading collaborator. It returns the raw
// model output, which the grader parses.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (string, error)
}

// Result is a well-formed grading outcome.
type Result struct {
	IsCorrect   bool   `json:"is_correct"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
	Solution    string `json:"solution"`
	Path        string `json:"path"`
}

// Options tunes per-variant scoring parameters.
type Options struct {
	Timeout               time.Duration // default: 8s
	MinScore              int           // evaluator clamp floor, default 0
	FastPathMismatchScore int           // default: 1
	FallbackMismatchScore int           // default: 2
}

// Grader runs the deterministic fast path, then the evaluator, then the
// exact-match fallback.
type Grader struct {
	evaluator Evaluator
	opts      Options
	logger    zerolog.Logger
}

// NewGrader creates a grader. evaluator may be nil, in which case every
// non-arithmetic answer is graded by the fallback.
func NewGrader(evaluator Evaluator, opts Options, logger zerolog.Logger) *Grader {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.FastPathMismatchScore <= 0 {
		opts.FastPathMismatchScore = 1
	}
	if opts.FallbackMismatchScore <= 0 {
		opts.FallbackMismatchScore = 2
	}
	if opts.MinScore < 0 || opts.MinScore > MaxScore {
		opts.MinScore = 0
	}
	return &Grader{
		evaluator: evaluator,
		opts:      opts,
		logger:    logging.Component(logger, "grader"),
	}
}

// Grade never returns an error: evaluator failures degrade to the fallback.
func (g *Grader) Grade(ctx context.Context, promptText, expectedAnswer, submittedAnswer string) Result {
	result, ok := g.fastPath(promptText, submittedAnswer)
	if !ok {
		var err error
		result, err = g.evaluate(ctx, promptText, expectedAnswer, submittedAnswer)
		if err != nil {
			logger := logging.FromContext(ctx, g.logger)
			if g.evaluator == nil {
				logger.Debug().Msg("no evaluator configured, grading by exact match")
			} else {
				logger.Warn().Err(err).Msg("evaluator failed, grading by exact match")
			}
			result = g.fallback(expectedAnswer, submittedAnswer)
		}
	}
	metrics.GradingPaths.WithLabelValues(result.Path).Inc()
	return result
}

func (g *Grader) fastPath(promptText, submittedAnswer string) (Result, bool) {
	expr, ok := ParseExpression(promptText)
	if !ok {
		return Result{}, false
	}
	want, ok := expr.Eval()
	if !ok {
		return Result{}, false
	}
	got, ok := parseNumber(submittedAnswer)
	if !ok {
		return Result{}, false
	}

	solution := formatNumber(want)
	if numbersEqual(got, want) {
		return Result{
			IsCorrect:   true,
			Score:       MaxScore,
			Explanation: fmt.Sprintf("Correct: %s = %s.", expr, solution),
			Solution:    solution,
			Path:        PathFastPath,
		}, true
	}
	return Result{
		IsCorrect:   false,
		Score:       g.opts.FastPathMismatchScore,
		Explanation: fmt.Sprintf("Incorrect: %s = %s, not %s.", expr, solution, formatNumber(got)),
		Solution:    solution,
		Path:        PathFastPath,
	}, true
}

type evalOutcome struct {
	raw string
	err error
}

func (g *Grader) evaluate(ctx context.Context, promptText, expectedAnswer, submittedAnswer string) (Result, error) {
	if g.evaluator == nil {
		return Result{}, fmt.Errorf("%w: no evaluator configured", ErrEvaluatorUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	req := Request{
		Instructions:    instructions(g.opts.MinScore),
		PromptText:      promptText,
		ExpectedAnswer:  expectedAnswer,
		SubmittedAnswer: submittedAnswer,
	}

	started := time.Now()
	done := make(chan evalOutcome, 1)
	go func() {
		raw, err := g.evaluator.Evaluate(ctx, req)
		done <- evalOutcome{raw: raw, err: err}
	}()

	var out evalOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out = evalOutcome{err: ctx.Err()}
	}

	if out.err != nil {
		metrics.EvaluatorDuration.WithLabelValues("error").Observe(time.Since(started).Seconds())
		return Result{}, fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, out.err)
	}

	parsed, err := parseEvaluation(out.raw)
	if err != nil {
		metrics.EvaluatorDuration.WithLabelValues("malformed").Observe(time.Since(started).Seconds())
		return Result{}, fmt.Errorf("%w: %v", ErrEvaluatorUnavailable, err)
	}
	metrics.EvaluatorDuration.WithLabelValues("ok").Observe(time.Since(started).Seconds())

	return Result{
		IsCorrect:   parsed.IsCorrect,
		Score:       clampScore(parsed.Score, g.opts.MinScore),
		Explanation: parsed.Explanation,
		Solution:    parsed.Solution,
		Path:        PathEvaluator,
	}, nil
}

func (g *Grader) fallback(expectedAnswer, submittedAnswer string) Result {
	if normalize(submittedAnswer) == normalize(expectedAnswer) {
		return Result{
			IsCorrect:   true,
			Score:       MaxScore,
			Explanation: "Your answer matches the expected answer.",
			Solution:    expectedAnswer,
			Path:        PathFallback,
		}
	}
	return Result{
		IsCorrect:   false,
		Score:       g.opts.FallbackMismatchScore,
		Explanation: "Your answer does not match the expected answer.",
		Solution:    expectedAnswer,
		Path:        PathFallback,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
