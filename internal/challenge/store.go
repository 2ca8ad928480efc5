package challenge

import (
	"context"

	"github.com/google/uuid"
)

// MutateFunc edits an entity in place and reports whether anything changed.
// Returning an error aborts the mutation without persisting.
type MutateFunc func(e *Entity) (bool, error)

// Store persists entities. Implementations must serialize Mutate per entity id
// and persist each mutation atomically.
type Store interface {
	// Create inserts e unless an entity exists for (e.Variant, e.Day), in which
	// case the existing entity is returned with created=false.
	Create(ctx context.Context, e *Entity) (stored *Entity, created bool, err error)
	Get(ctx context.Context, id uuid.UUID) (*Entity, error)
	GetByDay(ctx context.Context, variant Variant, day string) (*Entity, error)
	ListByStatus(ctx context.Context, variant Variant, statuses ...Status) ([]*Entity, error)
	// ListHistory returns up to limit entities, most recent day first.
	ListHistory(ctx context.Context, variant Variant, limit int) ([]*Entity, error)
	// Mutate runs fn against the latest copy of the entity under an exclusive
	// per-entity lock. Status, window, leader and winner changes plus newly
	// appended submissions are written as one unit.
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*Entity, error)
}
