// Package gemini grades answers with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/gokatarajesh/challenge-engine/internal/grading"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

const defaultModel = "gemini-1.5-flash"

var errNoContent = errors.New("gemini returned no text content")

type Config struct {
	APIKey string
	Model  string
}

// Evaluator implements grading.Evaluator on top of a Gemini generative model.
type Evaluator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger zerolog.Logger
}

var _ grading.Evaluator = (*Evaluator)(nil)

func NewEvaluator(ctx context.Context, cfg Config, logger zerolog.Logger) (*Evaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)

	return &Evaluator{
		client: client,
		model:  model,
		logger: logging.Component(logger, "gemini_evaluator").With().Str("model", name).Logger(),
	}, nil
}

func (e *Evaluator) Evaluate(ctx context.Context, req grading.Request) (string, error) {
	if e == nil || e.model == nil {
		return "", fmt.Errorf("gemini evaluator not initialised")
	}

	resp, err := e.model.GenerateContent(ctx, genai.Text(req.Render()))
	if err != nil {
		e.logger.Error().Err(err).Msg("gemini generate content failed")
		return "", err
	}

	text, err := responseText(resp)
	if err != nil {
		e.logger.Warn().Err(err).Msg("gemini response unusable")
		return "", err
	}
	return text, nil
}

// Close releases the underlying client.
func (e *Evaluator) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errNoContent
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errNoContent
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", errNoContent
	}
	return b.String(), nil
}
