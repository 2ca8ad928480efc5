// Package httpapi talks to an answer evaluator service over JSON/HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/grading"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

const maxResponseBytes = 64 << 10

// Config holds connection details for the evaluator service.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Evaluator implements grading.Evaluator.
type Evaluator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	evaluateURL string
}

var _ grading.Evaluator = (*Evaluator)(nil)

func NewEvaluator(cfg Config, logger zerolog.Logger) *Evaluator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Evaluator{
		httpClient:  &http.Client{Timeout: timeout},
		config:      cfg,
		logger:      logging.Component(logger, "http_evaluator"),
		evaluateURL: strings.TrimSuffix(cfg.URL, "/") + "/evaluate",
	}
}

// Evaluate posts the grading request and returns the model output. The
// service may answer with {"output": "..."} or with the evaluation object
// itself; both are passed through as raw text.
func (e *Evaluator) Evaluate(ctx context.Context, req grading.Request) (string, error) {
	if e.config.URL == "" {
		return "", fmt.Errorf("evaluator endpoint not configured")
	}

	body, err := json.Marshal(evaluateRequest{
		Instructions:    req.Instructions,
		Prompt:          req.PromptText,
		ExpectedAnswer:  req.ExpectedAnswer,
		SubmittedAnswer: req.SubmittedAnswer,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.evaluateURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("evaluator returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read evaluator payload: %w", err)
	}

	var wrapped evaluateResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Output != nil {
		return *wrapped.Output, nil
	}
	e.logger.Debug().Int("bytes", len(raw)).Msg("evaluator returned unwrapped payload")
	return string(raw), nil
}

type evaluateRequest struct {
	Instructions    string `json:"instructions"`
	Prompt          string `json:"prompt"`
	ExpectedAnswer  string `json:"expected_answer"`
	SubmittedAnswer string `json:"submitted_answer"`
}

type evaluateResponse struct {
	Output *string `json:"output"`
}
