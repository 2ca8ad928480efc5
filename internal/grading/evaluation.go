package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type evaluation struct {
	IsCorrect   bool
	Score       float64
	Explanation string
	Solution    string
}

type evaluationPayload struct {
	IsCorrect   *bool        `json:"is_correct"`
	Score       *looseNumber `json:"score"`
	Explanation string       `json:"explanation"`
	Solution    string       `json:"solution"`
}

// looseNumber accepts 7, 7.5 or "7".
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("score %q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("score is not finite")
	}
	*n = looseNumber(v)
	return nil
}

// parseEvaluation pulls the JSON object out of raw model output, tolerating
// code fences and surrounding prose.
func parseEvaluation(raw string) (evaluation, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return evaluation{}, errors.New("no JSON object in evaluator response")
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return evaluation{}, fmt.Errorf("decode evaluator response: %w", err)
	}
	if payload.IsCorrect == nil {
		return evaluation{}, errors.New("evaluator response missing is_correct")
	}
	if payload.Score == nil {
		return evaluation{}, errors.New("evaluator response missing score")
	}

	return evaluation{
		IsCorrect:   *payload.IsCorrect,
		Score:       float64(*payload.Score),
		Explanation: strings.TrimSpace(payload.Explanation),
		Solution:    strings.TrimSpace(payload.Solution),
	}, nil
}

// clampScore bounds score to [minScore, MaxScore] before converting, so
// out-of-range floats never overflow the int conversion.
func clampScore(score float64, minScore int) int {
	score = math.Max(float64(minScore), math.Min(float64(MaxScore), score))
	return int(math.Round(score))
}

func instructions(minScore int) string {
	return fmt.Sprintf(`You are a strict grader for a daily challenge.
Compare the submitted answer with the expected answer for the given prompt.
Award full marks only when the submitted answer is correct and complete. Do not reward effort,
partial reasoning or answers that merely restate the question.

Respond with ONLY a JSON object, no prose and no code fences:
{"is_correct": true|false, "score": <integer %d-%d>, "explanation": "<one or two sentences>", "solution": "<the correct answer with a short worked solution>"}`,
		minScore, MaxScore)
}

// Render flattens the request into a single prompt for text-only models.
func (r Request) Render() string {
	var b strings.Builder
	b.WriteString(r.Instructions)
	b.WriteString("\n\nPrompt:\n---\n")
	b.WriteString(r.PromptText)
	b.WriteString("\n---\n\nExpected answer:\n---\n")
	b.WriteString(r.ExpectedAnswer)
	b.WriteString("\n---\n\nSubmitted answer:\n---\n")
	b.WriteString(r.SubmittedAnswer)
	b.WriteString("\n---\n")
	return b.String()
}
