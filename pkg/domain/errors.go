package domain

import "errors"

// ErrNotFound is returned when a referenced node id does not exist.
var ErrNotFound = errors.New("node not found")

// ErrInvalidMove is returned when the target is the mover itself, lives in another
// scope, or lies inside the mover's own subtree.
var ErrInvalidMove = errors.New("invalid move")

// ErrUnsupportedPosition is returned for a position outside child/left/right/root.
var ErrUnsupportedPosition = errors.New("unsupported position")

// ErrUnsupportedPolicy is returned for a removal policy outside cascade/detach.
var ErrUnsupportedPolicy = errors.New("unsupported removal policy")

// ErrNotPersisted is returned when moving a node that was never inserted.
var ErrNotPersisted = errors.New("node has no boundaries")

// ErrConcurrencyConflict is returned when a store detects that the boundaries of a
// scope changed under a running transaction. The caller may retry.
var ErrConcurrencyConflict = errors.New("concurrent modification of scope")

// ErrInconsistentTree is returned when a scope violates the nested set invariants.
var ErrInconsistentTree = errors.New("inconsistent tree")

// ErrScopeMismatch is returned when a node's scope does not fit the configured scope attributes.
var ErrScopeMismatch = errors.New("scope does not match configuration")
