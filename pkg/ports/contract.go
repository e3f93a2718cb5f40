package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns an empty store. It is called once per sub-test.
type StoreFactory func(t *testing.T) Store

// Fixture holds the ids of the canonical test forest:
//
//	Top Level   [1,10]
//	  Child 1   [2,3]
//	  Child 2   [4,7]
//	    Child 2.1 [5,6]
//	  Child 3   [8,9]
//	Top Level 2 [11,12]
type Fixture struct {
	Top, Child1, Child2, Child21, Child3, Top2 domain.ID
}

// SeedFixture writes the canonical forest into scope and returns the assigned ids.
func SeedFixture(t *testing.T, store Store, scope domain.Scope) Fixture {
	t.Helper()
	var fx Fixture
	err := store.Update(context.Background(), scope, func(ctx context.Context, tx Tx) error {
		create := func(name string, parent domain.ID, l, r int64) domain.ID {
			n, err := tx.Create(ctx, domain.Record{Name: name, Scope: scope.Values(), Parent: parent, Left: l, Right: r})
			require.NoError(t, err)
			return n.ID
		}
		fx.Top = create("Top Level", domain.NoID, 1, 10)
		fx.Child1 = create("Child 1", fx.Top, 2, 3)
		fx.Child2 = create("Child 2", fx.Top, 4, 7)
		fx.Child21 = create("Child 2.1", fx.Child2, 5, 6)
		fx.Child3 = create("Child 3", fx.Top, 8, 9)
		fx.Top2 = create("Top Level 2", domain.NoID, 11, 12)
		return nil
	})
	require.NoError(t, err)
	return fx
}

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, newStore StoreFactory) {
	ctx := context.Background()
	scope := domain.NewScope("contract")
	other := domain.NewScope("other")

	bounds := func(t *testing.T, s Store, id domain.ID) [2]int64 {
		t.Helper()
		n, err := s.Get(ctx, id)
		require.NoError(t, err)
		return [2]int64{n.Left(), n.Right()}
	}

	t.Run("Create and Get", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)

		n, err := s.Get(ctx, fx.Child21)
		require.NoError(t, err)
		assert.Equal(t, "Child 2.1", n.Name)
		assert.Equal(t, fx.Child2, n.Parent())
		assert.Equal(t, int64(5), n.Left())
		assert.Equal(t, int64(6), n.Right())
		assert.True(t, n.Scope.Equal(scope))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, 424242)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("MaxRight", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.MaxRight(ctx, scope)
		require.NoError(t, err)
		assert.False(t, ok, "empty scope has no max")

		SeedFixture(t, s, scope)
		max, ok, err := s.MaxRight(ctx, scope)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(12), max)

		_, ok, err = s.MaxRight(ctx, other)
		require.NoError(t, err)
		assert.False(t, ok, "scopes never mix")
	})

	t.Run("Filter", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)
		SeedFixture(t, s, other)

		all, err := s.Filter(ctx, domain.ScopeFilter(scope))
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{fx.Top, fx.Child1, fx.Child2, fx.Child21, fx.Child3, fx.Top2}, ids(all))

		inside, err := s.Filter(ctx, domain.Filter{Scope: scope, Left: domain.Range{Lo: 4}, Right: domain.Range{Hi: 7}})
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{fx.Child2, fx.Child21}, ids(inside))

		children, err := s.Filter(ctx, domain.Filter{Scope: scope, ByParent: true, Parent: fx.Top, Exclude: fx.Child2})
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{fx.Child1, fx.Child3}, ids(children))

		roots, err := s.Filter(ctx, domain.Filter{Scope: scope, ByParent: true, Parent: domain.NoID})
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{fx.Top, fx.Top2}, ids(roots))

		leaves, err := s.Filter(ctx, domain.Filter{Scope: scope, Leaves: true})
		require.NoError(t, err)
		assert.Equal(t, []domain.ID{fx.Child1, fx.Child21, fx.Child3, fx.Top2}, ids(leaves))
	})

	t.Run("Remap", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)
		ofx := SeedFixture(t, s, other)

		// Child 2 becomes child of Child 1.
		err := s.Update(ctx, scope, func(ctx context.Context, tx Tx) error {
			if err := tx.Remap(ctx, scope, domain.Remap{A: 3, B: 3, C: 4, D: 7}); err != nil {
				return err
			}
			return tx.SetParent(ctx, fx.Child2, fx.Child1)
		})
		require.NoError(t, err)

		assert.Equal(t, [2]int64{2, 7}, bounds(t, s, fx.Child1))
		assert.Equal(t, [2]int64{3, 6}, bounds(t, s, fx.Child2))
		assert.Equal(t, [2]int64{4, 5}, bounds(t, s, fx.Child21))
		assert.Equal(t, [2]int64{1, 10}, bounds(t, s, fx.Top))
		assert.Equal(t, [2]int64{4, 7}, bounds(t, s, ofx.Child2), "other scope untouched")

		n, err := s.Get(ctx, fx.Child2)
		require.NoError(t, err)
		assert.Equal(t, fx.Child1, n.Parent())
	})

	t.Run("Shift and DeleteRange", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)

		err := s.Update(ctx, scope, func(ctx context.Context, tx Tx) error {
			if err := tx.DeleteRange(ctx, scope, 4, 7); err != nil {
				return err
			}
			if err := tx.Delete(ctx, fx.Child2); err != nil {
				return err
			}
			return tx.Shift(ctx, scope, domain.Range{Lo: 8}, -4)
		})
		require.NoError(t, err)

		_, err = s.Get(ctx, fx.Child21)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Get(ctx, fx.Child2)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, [2]int64{1, 6}, bounds(t, s, fx.Top))
		assert.Equal(t, [2]int64{4, 5}, bounds(t, s, fx.Child3))
		assert.Equal(t, [2]int64{7, 8}, bounds(t, s, fx.Top2))
	})

	t.Run("Reparent and SetBounds", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)

		err := s.Update(ctx, scope, func(ctx context.Context, tx Tx) error {
			if err := tx.Reparent(ctx, scope, fx.Top, fx.Top2); err != nil {
				return err
			}
			return tx.SetBounds(ctx, []domain.Bounds{{ID: fx.Child1, Left: 20, Right: 21}})
		})
		require.NoError(t, err)

		children, err := s.Filter(ctx, domain.Filter{Scope: scope, ByParent: true, Parent: fx.Top2})
		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.ID{fx.Child1, fx.Child2, fx.Child3}, ids(children))
		assert.Equal(t, [2]int64{20, 21}, bounds(t, s, fx.Child1))
	})

	t.Run("Rollback", func(t *testing.T) {
		s := newStore(t)
		fx := SeedFixture(t, s, scope)
		boom := errors.New("boom")

		err := s.Update(ctx, scope, func(ctx context.Context, tx Tx) error {
			if err := tx.Shift(ctx, scope, domain.Range{}, 100); err != nil {
				return err
			}
			if _, err := tx.Create(ctx, domain.Record{Name: "ghost", Scope: scope.Values(), Left: 13, Right: 14}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, [2]int64{1, 10}, bounds(t, s, fx.Top))

		all, err := s.Filter(ctx, domain.ScopeFilter(scope))
		require.NoError(t, err)
		assert.Len(t, all, 6)
	})

	t.Run("Absent boundaries", func(t *testing.T) {
		s := newStore(t)
		var id domain.ID
		err := s.Update(ctx, scope, func(ctx context.Context, tx Tx) error {
			n, err := tx.Create(ctx, domain.Record{Name: "raw", Scope: scope.Values()})
			if err != nil {
				return err
			}
			id = n.ID
			return nil
		})
		require.NoError(t, err)

		n, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, n.Persisted())

		all, err := s.Filter(ctx, domain.ScopeFilter(scope))
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func ids(nodes []*domain.Node) []domain.ID {
	out := make([]domain.ID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
