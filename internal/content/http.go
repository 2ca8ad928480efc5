// Package content supplies prompt material for new challenges.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

// Config holds connection details for the content generator service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
}

// Generator implements challenge.ContentSource over HTTP.
type Generator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

var _ challenge.ContentSource = (*Generator)(nil)

func NewGenerator(cfg Config, logger zerolog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Generator{
		httpClient:  &http.Client{Timeout: timeout},
		config:      cfg,
		logger:      logging.Component(logger, "content_generator"),
		generateURL: strings.TrimSuffix(cfg.GeneratorURL, "/") + "/generate",
	}
}

// Generate asks the generator service for the day's prompt.
func (g *Generator) Generate(ctx context.Context, req challenge.ContentRequest) (challenge.Content, error) {
	if g.config.GeneratorURL == "" {
		return challenge.Content{}, fmt.Errorf("generator endpoint not configured")
	}

	body, err := json.Marshal(generatorRequest{
		Variant: string(req.Variant),
		Day:     req.Day,
		Seed:    seedKey(req),
	})
	if err != nil {
		return challenge.Content{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return challenge.Content{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return challenge.Content{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return challenge.Content{}, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return challenge.Content{}, fmt.Errorf("decode generator payload: %w", err)
	}

	content := genResp.normalize()
	if content.PromptText == "" || content.ExpectedAnswer == "" {
		return challenge.Content{}, fmt.Errorf("generator returned incomplete content")
	}

	g.logger.Debug().Str("variant", string(req.Variant)).Str("day", req.Day).Str("topic", content.Topic).Msg("content generated")
	return content, nil
}

type generatorRequest struct {
	Variant string `json:"variant"`
	Day     string `json:"day"`
	Seed    string `json:"seed"`
}

type generatorResponse struct {
	PromptText     string `json:"prompt_text"`
	Prompt         string `json:"prompt"`
	ExpectedAnswer string `json:"expected_answer"`
	Answer         string `json:"answer"`
	Topic          string `json:"topic"`
	Difficulty     string `json:"difficulty"`
}

// normalize accepts both the long and the short field names.
func (r generatorResponse) normalize() challenge.Content {
	prompt := r.PromptText
	if prompt == "" {
		prompt = r.Prompt
	}
	answer := r.ExpectedAnswer
	if answer == "" {
		answer = r.Answer
	}
	difficulty := strings.ToLower(strings.TrimSpace(r.Difficulty))
	if difficulty == "" {
		difficulty = "medium"
	}
	return challenge.Content{
		PromptText:     strings.TrimSpace(prompt),
		ExpectedAnswer: strings.TrimSpace(answer),
		Topic:          strings.TrimSpace(r.Topic),
		Difficulty:     difficulty,
	}
}

func seedKey(req challenge.ContentRequest) string {
	return string(req.Variant) + ":" + req.Day
}
