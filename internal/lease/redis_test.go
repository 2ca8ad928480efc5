package lease

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, zerolog.Nop()), mr
}

func TestLeaseIsExclusive(t *testing.T) {
	ctx := context.Background()
	l, _ := newLocker(t)

	release, ok, err := l.TryAcquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))

	_, ok, err = l.TryAcquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseExpires(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t)

	_, ok, err := l.TryAcquire(ctx, "tick", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.TryAcquire(ctx, "tick", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleReleaseKeepsNewHoldersLease(t *testing.T) {
	ctx := context.Background()
	l, mr := newLocker(t)

	stale, ok, err := l.TryAcquire(ctx, "tick", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryAcquire(ctx, "tick", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("tick"), "stale release must not delete the new lease")
}

func TestAcquireReportsRedisErrors(t *testing.T) {
	l, mr := newLocker(t)
	mr.Close()

	_, ok, err := l.TryAcquire(context.Background(), "tick", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
