package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Store implements ports.Store in memory.
// Safe for concurrent use.
//
// Transactions work on a private copy of their scope and publish it on commit.
// Every commit bumps a per-scope version; a transaction that finds the version
// moved since it started fails with domain.ErrConcurrencyConflict.
type Store struct {
	mu       sync.RWMutex
	data     map[domain.ID]domain.Record
	versions map[string]uint64
	nextID   domain.ID
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:     make(map[domain.ID]domain.Record),
		versions: make(map[string]uint64),
	}
}

// Get retrieves a node by id.
func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Node(), nil
}

// Filter returns the matching nodes ordered by left.
func (s *Store) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.data, f), nil
}

// MaxRight returns the largest right boundary of the scope.
func (s *Store) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max, ok := maxRight(s.data, scope)
	return max, ok, nil
}

// Update runs fn over a private copy of the scope and commits it atomically.
func (s *Store) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx := s.begin(scope)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of stored nodes across all scopes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) begin(scope domain.Scope) *tx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &tx{
		store:   s,
		scope:   scope,
		key:     scope.Key(),
		version: s.versions[scope.Key()],
		work:    make(map[domain.ID]domain.Record),
	}
	for id, rec := range s.data {
		if domain.NewScope(rec.Scope...).Equal(scope) {
			t.work[id] = copyRecord(rec)
		}
	}
	return t
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.versions[t.key] != t.version {
		return domain.ErrConcurrencyConflict
	}
	for id, rec := range s.data {
		if domain.NewScope(rec.Scope...).Equal(t.scope) {
			if _, kept := t.work[id]; !kept {
				delete(s.data, id)
			}
		}
	}
	for id, rec := range t.work {
		s.data[id] = rec
	}
	s.versions[t.key]++
	return nil
}

func (s *Store) allocID() domain.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// tx is a copy-on-write view of one scope.
type tx struct {
	store   *Store
	scope   domain.Scope
	key     string
	version uint64
	work    map[domain.ID]domain.Record
	deleted map[domain.ID]bool
}

func (t *tx) inScope(scope domain.Scope) bool {
	return scope.Equal(t.scope)
}

func (t *tx) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	if rec, ok := t.work[id]; ok {
		return rec.Node(), nil
	}
	if t.deleted[id] {
		return nil, domain.ErrNotFound
	}
	n, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.inScope(n.Scope) {
		// Created after this transaction started.
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (t *tx) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	if !t.inScope(f.Scope) {
		return t.store.Filter(ctx, f)
	}
	return filter(t.work, f), nil
}

func (t *tx) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	if !t.inScope(scope) {
		return t.store.MaxRight(ctx, scope)
	}
	max, ok := maxRight(t.work, scope)
	return max, ok, nil
}

func (t *tx) Create(ctx context.Context, rec domain.Record) (*domain.Node, error) {
	if !t.inScope(domain.NewScope(rec.Scope...)) {
		return nil, domain.ErrScopeMismatch
	}
	rec = copyRecord(rec)
	rec.ID = t.store.allocID()
	t.work[rec.ID] = rec
	return rec.Node(), nil
}

func (t *tx) Delete(ctx context.Context, id domain.ID) error {
	if _, ok := t.work[id]; !ok {
		return domain.ErrNotFound
	}
	t.remove(id)
	return nil
}

func (t *tx) remove(id domain.ID) {
	delete(t.work, id)
	if t.deleted == nil {
		t.deleted = make(map[domain.ID]bool)
	}
	t.deleted[id] = true
}

func (t *tx) DeleteRange(ctx context.Context, scope domain.Scope, lo, hi int64) error {
	if !t.inScope(scope) {
		return domain.ErrScopeMismatch
	}
	for id, rec := range t.work {
		if rec.Left > lo && rec.Right < hi {
			t.remove(id)
		}
	}
	return nil
}

func (t *tx) Remap(ctx context.Context, scope domain.Scope, r domain.Remap) error {
	if !t.inScope(scope) {
		return domain.ErrScopeMismatch
	}
	for id, rec := range t.work {
		if r.Touches(rec.Left) || r.Touches(rec.Right) {
			rec.Left = r.Apply(rec.Left)
			rec.Right = r.Apply(rec.Right)
			t.work[id] = rec
		}
	}
	return nil
}

func (t *tx) Shift(ctx context.Context, scope domain.Scope, span domain.Range, delta int64) error {
	if !t.inScope(scope) {
		return domain.ErrScopeMismatch
	}
	for id, rec := range t.work {
		changed := false
		if rec.Left != 0 && span.Contains(rec.Left) {
			rec.Left += delta
			changed = true
		}
		if rec.Right != 0 && span.Contains(rec.Right) {
			rec.Right += delta
			changed = true
		}
		if changed {
			t.work[id] = rec
		}
	}
	return nil
}

func (t *tx) SetParent(ctx context.Context, id, parent domain.ID) error {
	rec, ok := t.work[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Parent = parent
	t.work[id] = rec
	return nil
}

func (t *tx) Reparent(ctx context.Context, scope domain.Scope, from, to domain.ID) error {
	if !t.inScope(scope) {
		return domain.ErrScopeMismatch
	}
	for id, rec := range t.work {
		if rec.Parent == from {
			rec.Parent = to
			t.work[id] = rec
		}
	}
	return nil
}

func (t *tx) SetBounds(ctx context.Context, bounds []domain.Bounds) error {
	for _, b := range bounds {
		rec, ok := t.work[b.ID]
		if !ok {
			return domain.ErrNotFound
		}
		rec.Left, rec.Right = b.Left, b.Right
		t.work[b.ID] = rec
	}
	return nil
}

func filter(data map[domain.ID]domain.Record, f domain.Filter) []*domain.Node {
	var out []*domain.Node
	for _, rec := range data {
		n := rec.Node()
		if f.Match(n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Node) int { return a.Compare(b) })
	return out
}

func maxRight(data map[domain.ID]domain.Record, scope domain.Scope) (int64, bool) {
	var max int64
	found := false
	for _, rec := range data {
		if !domain.NewScope(rec.Scope...).Equal(scope) || rec.Right == 0 {
			continue
		}
		if !found || rec.Right > max {
			max = rec.Right
			found = true
		}
	}
	return max, found
}

func copyRecord(rec domain.Record) domain.Record {
	rec.Scope = slices.Clone(rec.Scope)
	return rec
}
