package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/partition"
	"github.com/aretw0/arbor/pkg/ports"
)

// Config is the immutable configuration of a tree type.
type Config struct {
	// ScopeAttrs names the attributes whose values partition the forest.
	// Every node scope must carry exactly one value per attribute.
	ScopeAttrs []string

	// Dependent is the removal policy used when Remove is called without one.
	Dependent domain.Policy

	// RebuildOrder decides sibling order when renumbering from parent pointers.
	RebuildOrder domain.RebuildOrder
}

// DefaultConfig returns an unscoped configuration that cascades removals.
func DefaultConfig() Config {
	return Config{
		Dependent:    domain.PolicyCascade,
		RebuildOrder: domain.RebuildByPosition,
	}
}

// Tree is the nested set engine over one store.
// It is safe for concurrent use: writers of a scope are serialized, readers are not.
type Tree struct {
	store  ports.Store
	cfg    Config
	locks  *partition.Manager
	hooks  domain.Hooks
	logger *slog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tree) {
		t.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(t *Tree) {
		t.hooks = hooks
	}
}

// WithPartitions shares a partition lock manager, e.g. one holding a distributed locker.
func WithPartitions(m *partition.Manager) Option {
	return func(t *Tree) {
		t.locks = m
	}
}

// New creates a tree over store. The configuration is copied and never changes afterwards.
func New(store ports.Store, cfg Config, opts ...Option) (*Tree, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	dep, err := domain.ParsePolicy(string(cfg.Dependent))
	if err != nil {
		return nil, err
	}
	order, err := domain.ParseRebuildOrder(string(cfg.RebuildOrder))
	if err != nil {
		return nil, err
	}

	t := &Tree{
		store: store,
		cfg: Config{
			ScopeAttrs:   slices.Clone(cfg.ScopeAttrs),
			Dependent:    dep,
			RebuildOrder: order,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.locks == nil {
		t.locks = partition.NewManager(partition.WithLogger(t.logger))
	}
	return t, nil
}

// Config returns a copy of the tree configuration.
func (t *Tree) Config() Config {
	c := t.cfg
	c.ScopeAttrs = slices.Clone(t.cfg.ScopeAttrs)
	return c
}

// Store returns the underlying store.
func (t *Tree) Store() ports.Store {
	return t.store
}

func (t *Tree) checkScope(scope domain.Scope) error {
	if scope.Len() != len(t.cfg.ScopeAttrs) {
		return fmt.Errorf("%w: got %d values for %d attributes %v",
			domain.ErrScopeMismatch, scope.Len(), len(t.cfg.ScopeAttrs), t.cfg.ScopeAttrs)
	}
	return nil
}

// mutate runs fn as one serialized transaction over scope and reports the outcome.
func (t *Tree) mutate(ctx context.Context, kind domain.MutationKind, scope domain.Scope, id domain.ID, fn func(context.Context, ports.Tx) error) error {
	start := time.Now()
	err := t.locks.WithLock(ctx, scope.Key(), func(ctx context.Context) error {
		return t.store.Update(ctx, scope, fn)
	})
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Warn("mutation failed", "op", kind, "scope", scope, "node_id", id, "err", err)
	} else {
		t.logger.Debug("mutation committed", "op", kind, "scope", scope, "node_id", id, "duration", elapsed)
	}

	if t.hooks.OnMutation != nil {
		t.hooks.OnMutation(ctx, &domain.MutationEvent{
			Timestamp: start,
			Kind:      kind,
			Scope:     scope,
			NodeID:    id,
			Duration:  elapsed,
			Err:       err,
		})
	}
	return err
}

// lookup loads a node outside of any transaction to learn its scope.
func (t *Tree) lookup(ctx context.Context, id domain.ID) (*domain.Node, error) {
	n, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	return n, nil
}
