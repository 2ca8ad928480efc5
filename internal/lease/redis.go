// Package lease provides short-lived exclusive leases on Redis.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/logging"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker hands out leases with SET NX PX.
type Locker struct {
	redis  redis.Cmdable
	logger zerolog.Logger
}

var _ challenge.Locker = (*Locker)(nil)

func NewLocker(client redis.Cmdable, logger zerolog.Logger) *Locker {
	return &Locker{
		redis:  client,
		logger: logging.Component(logger, "lease"),
	}
}

// TryAcquire takes key for ttl. ok is false when another holder owns it. The
// returned release is safe to call after expiry and never frees a lease that
// was since taken by someone else.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()
	acquired, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	l.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("lease acquired")
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.redis, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
