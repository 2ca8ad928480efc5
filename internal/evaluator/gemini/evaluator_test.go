package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/grading"
)

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"is_correct": true, `),
				genai.Blob{MIMEType: "image/png"},
				genai.Text(`"score": 9}`),
			}},
		}},
	}

	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"is_correct": true, "score": 9}`, text)
}

func TestResponseTextRejectsEmptyResponses(t *testing.T) {
	cases := map[string]*genai.GenerateContentResponse{
		"nil":           nil,
		"no candidates": {},
		"no content":    {Candidates: []*genai.Candidate{{}}},
		"no text parts": {Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Blob{}}}}}},
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := responseText(resp)
			assert.ErrorIs(t, err, errNoContent)
		})
	}
}

func TestNewEvaluatorRequiresKey(t *testing.T) {
	_, err := NewEvaluator(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestUninitialisedEvaluatorFails(t *testing.T) {
	var ev *Evaluator
	_, err := ev.Evaluate(context.Background(), grading.Request{})
	assert.Error(t, err)
	assert.NoError(t, ev.Close())
}
