package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Config holds the time bonus curve (defaults match the daily challenge).
type Config struct {
	MinMinutes int     // default: 5, answers faster than this earn the full bonus
	MaxMinutes int     // default: 720, answers at or after this earn nothing
	MaxBonus   float64 // default: 5
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MinMinutes: 5,
		MaxMinutes: 720,
		MaxBonus:   5,
	}
}

// Engine computes time bonuses, final scores and winners.
type Engine struct {
	config Config
}

// NewEngine creates a ranking engine. A zero config falls back to defaults.
func NewEngine(config Config) *Engine {
	if config.MaxMinutes <= config.MinMinutes {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Config returns the active curve.
func (e *Engine) Config() Config {
	return e.config
}

// TimeBonus decays linearly from MaxBonus at MinMinutes to 0 at MaxMinutes,
// rounded to one decimal place.
func (e *Engine) TimeBonus(minutes int) float64 {
	minT, maxT := e.config.MinMinutes, e.config.MaxMinutes
	if minutes < minT {
		minutes = minT
	}
	if minutes >= maxT {
		return 0
	}
	ratio := float64(maxT-minutes) / float64(maxT-minT)
	return roundTenth(e.config.MaxBonus * ratio)
}

// FinalScore adds the time bonus to score when withBonus is set; otherwise
// the points earned equal the score.
func (e *Engine) FinalScore(score, minutes int, withBonus bool) float64 {
	if !withBonus {
		return float64(score)
	}
	return roundTenth(float64(score) + e.TimeBonus(minutes))
}

// TimeTaken returns whole minutes elapsed since start, never negative.
func TimeTaken(start, now time.Time) int {
	minutes := math.Round(now.Sub(start).Minutes())
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}

// Candidate is the ranking view of a submission (kept separate from the
// challenge package to avoid an import cycle).
type Candidate struct {
	ID               uuid.UUID
	FinalScore       float64
	TimeTakenMinutes int
}

// TakesLead reports whether c replaces leader as the live leader. Only a
// strictly greater final score wins; the first to reach a score keeps it.
func TakesLead(leader *Candidate, c Candidate) bool {
	if leader == nil {
		return true
	}
	return c.FinalScore > leader.FinalScore
}

// ClosingWinner sorts by final score descending, then by time taken
// ascending, and returns the first entry.
func ClosingWinner(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return sorted[i].TimeTakenMinutes < sorted[j].TimeTakenMinutes
	})
	return sorted[0], true
}

// Order returns candidate indexes sorted by final score descending. Ties keep
// their original order.
func Order(candidates []Candidate) []int {
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return candidates[idx[a]].FinalScore > candidates[idx[b]].FinalScore
	})
	return idx
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
