package challenge_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/grading"
	"github.com/gokatarajesh/challenge-engine/internal/store/memory"
)

const testDay = "2024-03-01"

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 1, hour, minute, 0, 0, time.UTC)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeContent struct {
	content challenge.Content
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeContent) Generate(ctx context.Context, req challenge.ContentRequest) (challenge.Content, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.content, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []challenge.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e challenge.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []challenge.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]challenge.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type mockEvaluator struct {
	mock.Mock
}

func (m *mockEvaluator) Evaluate(ctx context.Context, req grading.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type fixture struct {
	svc     *challenge.Service
	store   *memory.Store
	clock   *fakeClock
	content *fakeContent
	events  *recordingPublisher
}

func newFixture(t *testing.T, variant challenge.Variant, evaluator grading.Evaluator) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		clock: &fakeClock{now: at(8, 0)},
		content: &fakeContent{content: challenge.Content{
			PromptText:     "15 + 27",
			ExpectedAnswer: "42",
			Topic:          "arithmetic",
			Difficulty:     "easy",
		}},
		events: &recordingPublisher{},
	}
	f.svc = challenge.NewService(variant, challenge.Dependencies{
		Store:     f.store,
		Content:   f.content,
		Evaluator: evaluator,
		Publisher: f.events,
	}, challenge.Options{
		EvaluatorTimeout: time.Second,
		Now:              f.clock.Now,
	}, zerolog.Nop())
	return f
}

// activeEntity creates today's entity and opens it at 09:00.
func (f *fixture) activeEntity(t *testing.T) *challenge.Entity {
	t.Helper()
	ctx := context.Background()
	e, _, err := f.svc.CreateIfAbsent(ctx, testDay)
	require.NoError(t, err)
	f.clock.Set(at(9, 0))
	e, changed, err := f.svc.Activate(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, changed)
	return e
}

func (f *fixture) submit(t *testing.T, req challenge.SubmitRequest) *challenge.SubmitResult {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	return res
}
