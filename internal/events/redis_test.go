package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	client, _ := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan challenge.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- Subscribe(ctx, client, "", zerolog.Nop(), func(e challenge.Event) { received <- e })
	}()

	require.Eventually(t, func() bool {
		subs, err := client.PubSubNumSub(ctx, DefaultChannel).Result()
		return err == nil && subs[DefaultChannel] == 1
	}, time.Second, 10*time.Millisecond)

	subID := uuid.New()
	sent := challenge.Event{
		Type:         challenge.EventSubmissionAccepted,
		Variant:      challenge.VariantDaily,
		EntityID:     uuid.New(),
		Day:          "2024-03-01",
		SubmissionID: &subID,
		SubmitterID:  "alice",
		FinalScore:   14.8,
		OccurredAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, NewPublisher(client, "", zerolog.Nop()).Publish(ctx, sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, sent.EntityID, got.EntityID)
		assert.Equal(t, subID, *got.SubmissionID)
		assert.Equal(t, "alice", got.SubmitterID)
		assert.InDelta(t, 14.8, got.FinalScore, 1e-9)
		assert.True(t, sent.OccurredAt.Equal(got.OccurredAt))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestPublishFailsWhenRedisIsDown(t *testing.T) {
	client, mr := newClient(t)
	mr.Close()

	err := NewPublisher(client, "custom", zerolog.Nop()).Publish(context.Background(), challenge.Event{Type: challenge.EventClosed})
	assert.Error(t, err)
}
