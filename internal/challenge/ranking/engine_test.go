package ranking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeBonusCurve(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assert.Equal(t, 5.0, engine.TimeBonus(0))
	assert.Equal(t, 5.0, engine.TimeBonus(5))
	assert.Equal(t, 0.0, engine.TimeBonus(720))
	assert.Equal(t, 0.0, engine.TimeBonus(10_000))
	// (720-30)/(715) * 5 = 4.825... -> 4.8
	assert.Equal(t, 4.8, engine.TimeBonus(30))
}

func TestTimeBonusIsNonIncreasingAndBounded(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	prev := engine.TimeBonus(-10)
	for m := -10; m <= 800; m++ {
		bonus := engine.TimeBonus(m)
		assert.LessOrEqual(t, bonus, prev, "bonus increased at minute %d", m)
		assert.GreaterOrEqual(t, bonus, 0.0)
		assert.LessOrEqual(t, bonus, 5.0)
		if m >= 720 {
			assert.Equal(t, 0.0, bonus)
		}
		prev = bonus
	}
}

func TestFinalScorePerVariant(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assert.Equal(t, 14.8, engine.FinalScore(10, 30, true))
	assert.Equal(t, 10.0, engine.FinalScore(10, 30, false))
	assert.Equal(t, 3.0, engine.FinalScore(3, 900, true))
}

func TestNewEngineFallsBackOnInvalidConfig(t *testing.T) {
	engine := NewEngine(Config{})
	assert.Equal(t, DefaultConfig(), engine.Config())
}

func TestTimeTaken(t *testing.T) {
	start := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, TimeTaken(start, start.Add(-time.Hour)))
	assert.Equal(t, 0, TimeTaken(start, start.Add(29*time.Second)))
	assert.Equal(t, 1, TimeTaken(start, start.Add(31*time.Second)))
	assert.Equal(t, 90, TimeTaken(start, start.Add(90*time.Minute)))
}

func TestTakesLeadIsStrict(t *testing.T) {
	leader := &Candidate{ID: uuid.New(), FinalScore: 8.2, TimeTakenMinutes: 30}

	assert.True(t, TakesLead(nil, Candidate{FinalScore: 0}))
	assert.False(t, TakesLead(leader, Candidate{FinalScore: 8.2, TimeTakenMinutes: 1}))
	assert.True(t, TakesLead(leader, Candidate{FinalScore: 8.3, TimeTakenMinutes: 600}))
}

func TestClosingWinnerBreaksTiesBySpeed(t *testing.T) {
	a := Candidate{ID: uuid.New(), FinalScore: 8.2, TimeTakenMinutes: 30}
	b := Candidate{ID: uuid.New(), FinalScore: 8.2, TimeTakenMinutes: 10}
	c := Candidate{ID: uuid.New(), FinalScore: 7.9, TimeTakenMinutes: 1}

	winner, ok := ClosingWinner([]Candidate{a, c, b})
	require.True(t, ok)
	assert.Equal(t, b.ID, winner.ID)

	_, ok = ClosingWinner(nil)
	assert.False(t, ok)
}

func TestOrderKeepsAppendOrderOnTies(t *testing.T) {
	cands := []Candidate{
		{FinalScore: 5},
		{FinalScore: 9},
		{FinalScore: 5},
		{FinalScore: 7},
	}
	assert.Equal(t, []int{1, 3, 0, 2}, Order(cands))
}
