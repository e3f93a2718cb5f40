package domain

import (
	"context"
	"time"
)

// MutationKind names the engine operation that produced an event.
type MutationKind string

const (
	MutationInsert  MutationKind = "insert"
	MutationMove    MutationKind = "move"
	MutationRemove  MutationKind = "remove"
	MutationRebuild MutationKind = "rebuild"
)

// MutationEvent describes a finished (committed or failed) mutation.
type MutationEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      MutationKind  `json:"kind"`
	Scope     Scope         `json:"scope"`
	NodeID    ID            `json:"node_id,omitempty"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// Hooks defines callbacks for engine observability.
type Hooks struct {
	OnMutation func(context.Context, *MutationEvent)
}
