package content

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
)

// Arithmetic produces a two-operand arithmetic prompt that is a pure function
// of (variant, day). Every replica derives the same prompt for the same day,
// and the answer is gradable without an evaluator.
type Arithmetic struct{}

var _ challenge.ContentSource = Arithmetic{}

func (Arithmetic) Generate(_ context.Context, req challenge.ContentRequest) (challenge.Content, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seedKey(req)))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	var (
		left, right, result int
		op                  string
		difficulty          string
	)
	switch rng.Intn(4) {
	case 0:
		left, right = 10+rng.Intn(490), 10+rng.Intn(490)
		op, result, difficulty = "+", left+right, "easy"
	case 1:
		left, right = 100+rng.Intn(900), 10+rng.Intn(90)
		op, result, difficulty = "-", left-right, "easy"
	case 2:
		left, right = 11+rng.Intn(89), 3+rng.Intn(17)
		op, result, difficulty = "×", left*right, "medium"
	default:
		right = 3 + rng.Intn(17)
		result = 11 + rng.Intn(89)
		left = result * right
		op, difficulty = "÷", "medium"
	}

	return challenge.Content{
		PromptText:     fmt.Sprintf("What is %d %s %d?", left, op, right),
		ExpectedAnswer: strconv.Itoa(result),
		Topic:          "arithmetic",
		Difficulty:     difficulty,
	}, nil
}
