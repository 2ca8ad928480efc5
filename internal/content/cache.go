package content

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

const defaultCacheTTL = 48 * time.Hour

// Cache remembers generated content per (variant, day) in Redis so retries
// after a failed insert reuse the same prompt.
type Cache struct {
	source challenge.ContentSource
	client redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

var _ challenge.ContentSource = (*Cache)(nil)

func NewCache(source challenge.ContentSource, client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{source: source, client: client, ttl: ttl, logger: logging.Component(logger, "content_cache")}
}

func (c *Cache) key(req challenge.ContentRequest) string {
	return "challenge:content:" + seedKey(req)
}

func (c *Cache) Generate(ctx context.Context, req challenge.ContentRequest) (challenge.Content, error) {
	data, err := c.client.Get(ctx, c.key(req)).Bytes()
	switch {
	case err == nil:
		var cached challenge.Content
		if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
			return cached, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Msg("content cache read failed")
	}

	content, err := c.source.Generate(ctx, req)
	if err != nil {
		return challenge.Content{}, err
	}

	if data, err := json.Marshal(content); err == nil {
		if err := c.client.Set(ctx, c.key(req), data, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("content cache write failed")
		}
	}
	return content, nil
}
