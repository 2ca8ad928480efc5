// Package memory is an in-process challenge.Store for tests and single-node
// deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
)

type dayKey struct {
	variant challenge.Variant
	day     string
}

// Store keeps entities in maps. Every read returns a deep copy, and Mutate is
// serialized per entity with its own mutex.
type Store struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]*challenge.Entity
	byDay    map[dayKey]uuid.UUID
	locks    map[uuid.UUID]*sync.Mutex
}

var _ challenge.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entities: make(map[uuid.UUID]*challenge.Entity),
		byDay:    make(map[dayKey]uuid.UUID),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Store) Create(_ context.Context, e *challenge.Entity) (*challenge.Entity, bool, error) {
	if e == nil {
		return nil, false, fmt.Errorf("%w: nil entity", challenge.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey{variant: e.Variant, day: e.Day}
	if id, ok := s.byDay[key]; ok {
		return s.entities[id].Clone(), false, nil
	}
	if _, ok := s.entities[e.ID]; ok {
		return nil, false, fmt.Errorf("entity id %s already used", e.ID)
	}

	stored := e.Clone()
	if stored.Submissions == nil {
		stored.Submissions = []challenge.Submission{}
	}
	s.entities[stored.ID] = stored
	s.byDay[key] = stored.ID
	s.locks[stored.ID] = &sync.Mutex{}
	return stored.Clone(), true, nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*challenge.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", challenge.ErrNotFound, id)
	}
	return e.Clone(), nil
}

func (s *Store) GetByDay(_ context.Context, variant challenge.Variant, day string) (*challenge.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDay[dayKey{variant: variant, day: day}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", challenge.ErrNotFound, variant, day)
	}
	return s.entities[id].Clone(), nil
}

func (s *Store) ListByStatus(_ context.Context, variant challenge.Variant, statuses ...challenge.Status) ([]*challenge.Entity, error) {
	want := make(map[challenge.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*challenge.Entity
	for _, e := range s.entities {
		if e.Variant == variant && want[e.Status] {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (s *Store) ListHistory(_ context.Context, variant challenge.Variant, limit int) ([]*challenge.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*challenge.Entity
	for _, e := range s.entities {
		if e.Variant == variant {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Mutate(_ context.Context, id uuid.UUID, fn challenge.MutateFunc) (*challenge.Entity, error) {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", challenge.ErrNotFound, id)
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current := s.entities[id]
	s.mu.RUnlock()
	working := current.Clone()
	before := len(working.Submissions)

	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return current.Clone(), nil
	}
	if len(working.Submissions) < before {
		return nil, challenge.ErrSubmissionsShrunk
	}

	working.ID = id
	s.mu.Lock()
	s.entities[id] = working.Clone()
	s.mu.Unlock()
	return working, nil
}
