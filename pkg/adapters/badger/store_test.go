package badger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/badger"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInMemory(t *testing.T) *badger.Store {
	t.Helper()
	s, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, func(t *testing.T) ports.Store {
		return openInMemory(t)
	})
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	cfg := badger.DefaultConfig(dir)
	cfg.GCInterval = 0

	s, err := badger.Open(cfg)
	require.NoError(t, err)
	fx := ports.SeedFixture(t, s, domain.NewScope("acme"))
	require.NoError(t, s.Close())

	s, err = badger.Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Get(context.Background(), fx.Child21)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{5, 6}, [2]int64{n.Left(), n.Right()})

	// Ids keep growing across restarts.
	var fresh domain.ID
	err = s.Update(context.Background(), domain.NewScope("acme"), func(ctx context.Context, tx ports.Tx) error {
		created, err := tx.Create(ctx, domain.Record{Name: "late", Scope: []string{"acme"}})
		if err != nil {
			return err
		}
		fresh = created.ID
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, fresh, fx.Top2)
}

func TestBadgerStore_OpenRequiresPath(t *testing.T) {
	_, err := badger.Open(badger.Config{})
	assert.Error(t, err)
}

func TestBadgerStore_ConflictingWriters(t *testing.T) {
	s := openInMemory(t)
	scope := domain.NewScope("acme")
	ports.SeedFixture(t, s, scope)

	// Both transactions read the scope before either commits.
	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	var first error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = s.Update(context.Background(), scope, func(ctx context.Context, tx ports.Tx) error {
			close(inside)
			<-release
			return tx.Shift(ctx, scope, domain.Range{Lo: 11}, 2)
		})
	}()

	<-inside
	second := s.Update(context.Background(), scope, func(ctx context.Context, tx ports.Tx) error {
		return tx.Shift(ctx, scope, domain.Range{Lo: 11}, 4)
	})
	close(release)
	wg.Wait()

	require.NoError(t, second)
	assert.True(t, errors.Is(first, domain.ErrConcurrencyConflict), "got %v", first)
}

func TestBadgerStore_TransactionTooLarge(t *testing.T) {
	cfg := badger.InMemoryConfig()
	cfg.MemTableSize = 1 << 20
	s, err := badger.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	scope := domain.NewScope("bulk")
	err = s.Update(context.Background(), scope, func(ctx context.Context, tx ports.Tx) error {
		for i := int64(0); i < 5000; i++ {
			if _, err := tx.Create(ctx, domain.Record{Name: "n", Scope: scope.Values(), Left: 2*i + 1, Right: 2*i + 2}); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, badger.ErrScopeTooLarge)

	nodes, err := s.Filter(context.Background(), domain.Filter{Scope: scope})
	require.NoError(t, err)
	assert.Empty(t, nodes, "nothing committed")
}

func TestBadgerStore_Tree(t *testing.T) {
	s := openInMemory(t)
	tr, err := tree.New(s, tree.Config{ScopeAttrs: []string{"tenant"}})
	require.NoError(t, err)
	ctx := context.Background()
	scope := domain.NewScope("acme")

	root, err := tr.Insert(ctx, domain.NewNode("root", scope))
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err := tr.InsertChild(ctx, domain.NewNode(name, scope), root.ID)
		require.NoError(t, err)
	}

	root, err = tr.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{1, 8}, [2]int64{root.Left(), root.Right()})

	report, err := tr.Validate(ctx, scope)
	require.NoError(t, err)
	assert.True(t, report.Valid, "%+v", report.Violations)
}
