package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

// Chain tries each source in order and returns the first success.
type Chain struct {
	sources []challenge.ContentSource
	logger  zerolog.Logger
}

var _ challenge.ContentSource = (*Chain)(nil)

// NewChain builds a chain; nil sources are skipped.
func NewChain(logger zerolog.Logger, sources ...challenge.ContentSource) *Chain {
	kept := make([]challenge.ContentSource, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Chain{sources: kept, logger: logging.Component(logger, "content_chain")}
}

func (c *Chain) Generate(ctx context.Context, req challenge.ContentRequest) (challenge.Content, error) {
	var errs []error
	for i, src := range c.sources {
		content, err := src.Generate(ctx, req)
		if err == nil {
			return content, nil
		}
		c.logger.Warn().Err(err).Int("source", i).Str("day", req.Day).Msg("content source failed, trying next")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return challenge.Content{}, fmt.Errorf("no content sources configured")
	}
	return challenge.Content{}, fmt.Errorf("all content sources failed: %w", errors.Join(errs...))
}
