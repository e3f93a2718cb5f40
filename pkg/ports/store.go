package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// Reader exposes the read side of a nested set store.
type Reader interface {
	// Get retrieves a node by id.
	// Returns domain.ErrNotFound if the node does not exist.
	Get(ctx context.Context, id domain.ID) (*domain.Node, error)

	// Filter returns the nodes matching f, ordered by ascending left, then id.
	Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error)

	// MaxRight returns the largest right boundary of the scope.
	// The boolean is false for an empty scope.
	MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error)
}

// Tx is a write transaction bound to one scope. Every method operates on that
// scope only; nothing is visible to other readers until the transaction commits.
type Tx interface {
	Reader

	// Create stores a new node and returns it with its assigned id.
	Create(ctx context.Context, rec domain.Record) (*domain.Node, error)

	// Delete removes a single node.
	Delete(ctx context.Context, id domain.ID) error

	// DeleteRange removes every node with lo < left and right < hi.
	DeleteRange(ctx context.Context, scope domain.Scope, lo, hi int64) error

	// Remap applies r to the left and right boundary of every node of the scope.
	Remap(ctx context.Context, scope domain.Scope, r domain.Remap) error

	// Shift adds delta to every left and right boundary that falls inside span.
	Shift(ctx context.Context, scope domain.Scope, span domain.Range, delta int64) error

	// SetParent updates the parent pointer of a single node.
	SetParent(ctx context.Context, id, parent domain.ID) error

	// Reparent moves every direct child of from under to.
	Reparent(ctx context.Context, scope domain.Scope, from, to domain.ID) error

	// SetBounds overwrites boundary pairs, used by the rebuilder.
	SetBounds(ctx context.Context, bounds []domain.Bounds) error
}

// Store is the row store behind a nested set.
type Store interface {
	Reader

	// Update runs fn in one atomic, isolated transaction over scope. If fn returns
	// an error nothing is committed. Stores that detect a concurrent writer return
	// domain.ErrConcurrencyConflict.
	Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx Tx) error) error

	// Close releases the underlying resources.
	Close() error
}
