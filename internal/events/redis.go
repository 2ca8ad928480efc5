// Package events publishes challenge events on Redis Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

// DefaultChannel carries every challenge event.
const DefaultChannel = "challenge:events"

// Publisher writes JSON-encoded events to a single channel.
type Publisher struct {
	redis   redis.Cmdable
	channel string
	logger  zerolog.Logger
}

var _ challenge.Publisher = (*Publisher)(nil)

func NewPublisher(client redis.Cmdable, channel string, logger zerolog.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		redis:   client,
		channel: channel,
		logger:  logging.Component(logger, "event_publisher"),
	}
}

func (p *Publisher) Publish(ctx context.Context, event challenge.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	receivers, err := p.redis.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	p.logger.Debug().
		Str("event", string(event.Type)).
		Str("entity_id", event.EntityID.String()).
		Int64("receivers", receivers).
		Msg("event published")
	return nil
}

// Subscribe decodes events from channel until ctx is cancelled. Malformed
// payloads are skipped.
func Subscribe(ctx context.Context, client *redis.Client, channel string, logger zerolog.Logger, handle func(challenge.Event)) error {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event challenge.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn().Err(err).Msg("discarding malformed event")
				continue
			}
			handle(event)
		}
	}
}
