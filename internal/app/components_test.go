package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/config"
)

func memoryConfig() *config.App {
	return &config.App{
		StoreDriver: config.StoreMemory,
		Schedule: config.Schedule{
			TickConcurrency:   2,
			Location:          "UTC",
			WindowStartOffset: 0,
			WindowEndOffset:   24*time.Hour - time.Second,
		},
		Ranking:   config.Ranking{MinMinutes: 5, MaxMinutes: 720, MaxBonus: 5},
		Evaluator: config.Evaluator{Provider: config.EvaluatorNone},
		Redis:     config.Redis{EventsChannel: "challenge:events"},
	}
}

func TestBuildMemoryWithoutRedis(t *testing.T) {
	c, err := Build(context.Background(), memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.Nil(t, c.Pool)
	assert.Nil(t, c.Redis)
	assert.Nil(t, c.Locker)
	require.Len(t, c.ServiceList(), len(challenge.Variants))

	svc, err := c.Service(challenge.VariantIndividual)
	require.NoError(t, err)
	e, err := svc.PostOrActivate(context.Background(), svc.Today(), true)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, e.Status)
	assert.NotEmpty(t, e.PromptText, "arithmetic generator backs the chain")

	_, err = c.Service(challenge.Variant("weekly"))
	assert.Error(t, err)
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Addr = mr.Addr()

	c, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NotNil(t, c.Redis)
	require.NotNil(t, c.Locker)

	svc, err := c.Service(challenge.VariantDaily)
	require.NoError(t, err)
	e, _, err := svc.CreateIfAbsent(context.Background(), svc.Today())
	require.NoError(t, err)
	assert.True(t, mr.Exists("challenge:content:"+string(challenge.VariantDaily)+":"+e.Day))
}

func TestBuildRejectsUnknownStore(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "sqlite"
	_, err := Build(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
