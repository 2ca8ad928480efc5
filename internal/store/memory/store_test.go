package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
)

func newEntity(variant challenge.Variant, day string) *challenge.Entity {
	start, _ := time.Parse(challenge.DayLayout, day)
	return &challenge.Entity{
		ID:             uuid.New(),
		Variant:        variant,
		Day:            day,
		PromptText:     "2 + 2",
		ExpectedAnswer: "4",
		WindowStart:    start.Add(9 * time.Hour),
		WindowEnd:      start.Add(21 * time.Hour),
		Status:         challenge.StatusScheduled,
	}
}

func TestCreateIsIdempotentPerVariantAndDay(t *testing.T) {
	ctx := context.Background()
	store := New()

	first, created, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created, err := store.Create(ctx, newEntity(challenge.VariantIndividual, "2024-03-01"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	e, _, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)

	e.Status = challenge.StatusClosed
	e.Submissions = append(e.Submissions, challenge.Submission{ID: uuid.New()})

	again, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusScheduled, again.Status)
	assert.Empty(t, again.Submissions)
}

func TestGetMissing(t *testing.T) {
	store := New()
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, challenge.ErrNotFound)

	_, err = store.GetByDay(context.Background(), challenge.VariantDaily, "2024-01-01")
	assert.ErrorIs(t, err, challenge.ErrNotFound)

	_, err = store.Mutate(context.Background(), uuid.New(), func(*challenge.Entity) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, challenge.ErrNotFound)
}

func TestListByStatusAndHistory(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, day := range []string{"2024-03-01", "2024-03-03", "2024-03-02"} {
		_, _, err := store.Create(ctx, newEntity(challenge.VariantDaily, day))
		require.NoError(t, err)
	}
	_, _, err := store.Create(ctx, newEntity(challenge.VariantIndividual, "2024-03-04"))
	require.NoError(t, err)

	mar2, err := store.GetByDay(ctx, challenge.VariantDaily, "2024-03-02")
	require.NoError(t, err)
	_, err = store.Mutate(ctx, mar2.ID, func(e *challenge.Entity) (bool, error) {
		e.Status = challenge.StatusActive
		return true, nil
	})
	require.NoError(t, err)

	active, err := store.ListByStatus(ctx, challenge.VariantDaily, challenge.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2024-03-02", active[0].Day)

	pending, err := store.ListByStatus(ctx, challenge.VariantDaily, challenge.StatusScheduled, challenge.StatusActive)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	history, err := store.ListHistory(ctx, challenge.VariantDaily, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-03-03", history[0].Day)
	assert.Equal(t, "2024-03-02", history[1].Day)
}

func TestMutateDiscardsOnErrorOrNoChange(t *testing.T) {
	ctx := context.Background()
	store := New()
	e, _, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.Mutate(ctx, e.ID, func(w *challenge.Entity) (bool, error) {
		w.Status = challenge.StatusActive
		return true, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Mutate(ctx, e.ID, func(w *challenge.Entity) (bool, error) {
		w.Status = challenge.StatusActive
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusScheduled, got.Status)

	stored, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusScheduled, stored.Status)
}

func TestMutateRejectsShrinkingSubmissions(t *testing.T) {
	ctx := context.Background()
	store := New()
	e, _, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)

	_, err = store.Mutate(ctx, e.ID, func(w *challenge.Entity) (bool, error) {
		w.Submissions = append(w.Submissions, challenge.Submission{ID: uuid.New(), SubmitterID: "a"})
		return true, nil
	})
	require.NoError(t, err)

	_, err = store.Mutate(ctx, e.ID, func(w *challenge.Entity) (bool, error) {
		w.Submissions = w.Submissions[:0]
		return true, nil
	})
	assert.ErrorIs(t, err, challenge.ErrSubmissionsShrunk)
}

func TestMutateSerializesPerEntity(t *testing.T) {
	ctx := context.Background()
	store := New()
	e, _, err := store.Create(ctx, newEntity(challenge.VariantDaily, "2024-03-01"))
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mutate(ctx, e.ID, func(w *challenge.Entity) (bool, error) {
				w.Submissions = append(w.Submissions, challenge.Submission{ID: uuid.New()})
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Submissions, writers)
}
