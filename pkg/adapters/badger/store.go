package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/dgraph-io/badger/v4"
)

// Store implements ports.Store over BadgerDB. Updates are serializable
// snapshot transactions; two writers of one scope always conflict on the
// scope version key.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

var _ ports.Store = (*Store)(nil)

// Open opens the database described by cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s, err := newStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go gcLoop(db, cfg.GCInterval, cfg.GCDiscardRatio, logger, s.stopGC, s.gcDone)
	}
	return s, nil
}

func newStore(db *badger.DB, logger *slog.Logger) (*Store, error) {
	seq, err := db.GetSequence([]byte("seq/node"), 64)
	if err != nil {
		return nil, fmt.Errorf("id sequence: %w", err)
	}
	return &Store{db: db, seq: seq, logger: logger}, nil
}

func nodeKey(id domain.ID) []byte {
	k := make([]byte, 2+8)
	copy(k, "n/")
	binary.BigEndian.PutUint64(k[2:], uint64(id))
	return k
}

func scopePrefix(scope domain.Scope) []byte {
	return append([]byte("s/"+scope.Key()), 0)
}

func indexKey(scope domain.Scope, id domain.ID) []byte {
	k := scopePrefix(scope)
	return binary.BigEndian.AppendUint64(k, uint64(id))
}

func versionKey(scope domain.Scope) []byte {
	return []byte("v/" + scope.Key())
}

func (s *Store) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	var n *domain.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = (&tx{txn: txn}).Get(ctx, id)
		return err
	})
	return n, err
}

func (s *Store) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	var out []*domain.Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = (&tx{txn: txn}).Filter(ctx, f)
		return err
	})
	return out, err
}

func (s *Store) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	var (
		max int64
		ok  bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		max, ok, err = (&tx{txn: txn}).MaxRight(ctx, scope)
		return err
	})
	return max, ok, err
}

// Update runs fn in one read-write transaction. badger.ErrConflict becomes
// domain.ErrConcurrencyConflict and badger.ErrTxnTooBig becomes ErrScopeTooLarge.
func (s *Store) Update(ctx context.Context, scope domain.Scope, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	t := &tx{txn: txn, scope: scope, seq: s.seq}
	if err := t.bumpVersion(); err != nil {
		return err
	}
	if err := fn(ctx, t); err != nil {
		return mapError(err)
	}
	if err := txn.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	if err := s.seq.Release(); err != nil {
		s.logger.Warn("failed to release id sequence", "err", err)
	}
	return s.db.Close()
}

// ErrScopeTooLarge reports an Update that wrote more than one Badger
// transaction can hold. Nothing was committed.
var ErrScopeTooLarge = errors.New("mutation exceeds the badger transaction size limit")

func mapError(err error) error {
	switch {
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	case errors.Is(err, badger.ErrTxnTooBig):
		return fmt.Errorf("%w: %w", ErrScopeTooLarge, err)
	}
	return err
}

type tx struct {
	txn   *badger.Txn
	scope domain.Scope
	seq   *badger.Sequence
}

var _ ports.Tx = (*tx)(nil)

// bumpVersion reads and rewrites the scope version so concurrent writers of
// the same scope conflict at commit.
func (t *tx) bumpVersion() error {
	key := versionKey(t.scope)
	var v uint64
	item, err := t.txn.Get(key)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			v = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	return t.txn.Set(key, binary.BigEndian.AppendUint64(nil, v+1))
}

func (t *tx) checkScope(scope domain.Scope) error {
	if !scope.Equal(t.scope) {
		return fmt.Errorf("%w: transaction holds %s, got %s", domain.ErrScopeMismatch, t.scope, scope)
	}
	return nil
}

func (t *tx) load(id domain.ID) (domain.Record, error) {
	var rec domain.Record
	item, err := t.txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return rec, domain.ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	return rec, err
}

func (t *tx) save(rec domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return t.txn.Set(nodeKey(rec.ID), data)
}

// scan decodes every record of a scope in index order.
func (t *tx) scan(scope domain.Scope) ([]domain.Record, error) {
	prefix := scopePrefix(scope)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []domain.Record
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		id := domain.ID(binary.BigEndian.Uint64(key[len(prefix):]))
		rec, err := t.load(id)
		if err != nil {
			return nil, fmt.Errorf("index entry %d: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *tx) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	rec, err := t.load(id)
	if err != nil {
		return nil, err
	}
	return rec.Node(), nil
}

func (t *tx) Filter(ctx context.Context, f domain.Filter) ([]*domain.Node, error) {
	recs, err := t.scan(f.Scope)
	if err != nil {
		return nil, err
	}
	var out []*domain.Node
	for _, rec := range recs {
		if n := rec.Node(); f.Match(n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Node) int { return a.Compare(b) })
	return out, nil
}

func (t *tx) MaxRight(ctx context.Context, scope domain.Scope) (int64, bool, error) {
	recs, err := t.scan(scope)
	if err != nil {
		return 0, false, err
	}
	var (
		max int64
		ok  bool
	)
	for _, rec := range recs {
		if rec.Right > 0 && (!ok || rec.Right > max) {
			max, ok = rec.Right, true
		}
	}
	return max, ok, nil
}

func (t *tx) Create(ctx context.Context, rec domain.Record) (*domain.Node, error) {
	scope := domain.NewScope(rec.Scope...)
	if err := t.checkScope(scope); err != nil {
		return nil, err
	}
	next, err := t.seq.Next()
	if err != nil {
		return nil, fmt.Errorf("allocate id: %w", err)
	}
	rec.ID = domain.ID(next + 1)
	if err := t.save(rec); err != nil {
		return nil, err
	}
	if err := t.txn.Set(indexKey(scope, rec.ID), nil); err != nil {
		return nil, err
	}
	return rec.Node(), nil
}

func (t *tx) Delete(ctx context.Context, id domain.ID) error {
	rec, err := t.load(id)
	if err != nil {
		return err
	}
	return t.remove(rec)
}

func (t *tx) remove(rec domain.Record) error {
	if err := t.txn.Delete(nodeKey(rec.ID)); err != nil {
		return err
	}
	return t.txn.Delete(indexKey(domain.NewScope(rec.Scope...), rec.ID))
}

// rewrite applies fn to every record of the scope and saves the changed ones.
func (t *tx) rewrite(scope domain.Scope, fn func(rec *domain.Record) bool) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	recs, err := t.scan(scope)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if fn(&rec) {
			if err := t.save(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *tx) DeleteRange(ctx context.Context, scope domain.Scope, lo, hi int64) error {
	if err := t.checkScope(scope); err != nil {
		return err
	}
	recs, err := t.scan(scope)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.Left > lo && rec.Right < hi {
			if err := t.remove(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *tx) Remap(ctx context.Context, scope domain.Scope, r domain.Remap) error {
	return t.rewrite(scope, func(rec *domain.Record) bool {
		if !r.Touches(rec.Left) && !r.Touches(rec.Right) {
			return false
		}
		rec.Left, rec.Right = r.Apply(rec.Left), r.Apply(rec.Right)
		return true
	})
}

func (t *tx) Shift(ctx context.Context, scope domain.Scope, span domain.Range, delta int64) error {
	return t.rewrite(scope, func(rec *domain.Record) bool {
		changed := false
		if rec.Left != 0 && span.Contains(rec.Left) {
			rec.Left += delta
			changed = true
		}
		if rec.Right != 0 && span.Contains(rec.Right) {
			rec.Right += delta
			changed = true
		}
		return changed
	})
}

func (t *tx) SetParent(ctx context.Context, id, parent domain.ID) error {
	rec, err := t.load(id)
	if err != nil {
		return err
	}
	rec.Parent = parent
	return t.save(rec)
}

func (t *tx) Reparent(ctx context.Context, scope domain.Scope, from, to domain.ID) error {
	return t.rewrite(scope, func(rec *domain.Record) bool {
		if rec.Parent != from {
			return false
		}
		rec.Parent = to
		return true
	})
}

func (t *tx) SetBounds(ctx context.Context, bounds []domain.Bounds) error {
	for _, b := range bounds {
		rec, err := t.load(b.ID)
		if err != nil {
			return fmt.Errorf("node %d: %w", b.ID, err)
		}
		rec.Left, rec.Right = b.Left, b.Right
		if err := t.save(rec); err != nil {
			return err
		}
	}
	return nil
}
