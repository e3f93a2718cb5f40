package tree_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries_Forest(t *testing.T) {
	tr, _, fx := setup(t)
	ctx := context.Background()

	roots, err := tr.Roots(ctx, unscoped)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top, fx.Top2}, ids(roots))

	root, err := tr.Root(ctx, unscoped)
	require.NoError(t, err)
	assert.Equal(t, fx.Top, root.ID)
	assert.True(t, root.IsRoot())

	leaves, err := tr.Leaves(ctx, unscoped)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child1, fx.Child21, fx.Child3, fx.Top2}, ids(leaves))

	_, err = tr.Root(ctx, domain.NewScope("nobody"))
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestQueries_EmptyScope(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ports.SeedFixture(t, store, domain.NewScope("acme"))
	tr, err := tree.New(store, tree.Config{ScopeAttrs: []string{"tenant"}})
	require.NoError(t, err)

	root, err := tr.Root(ctx, domain.NewScope("acme"))
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "Top Level", root.Name)

	empty, err := tr.Root(ctx, domain.NewScope("nobody"))
	require.NoError(t, err)
	assert.Nil(t, empty)

	roots, err := tr.Roots(ctx, domain.NewScope("nobody"))
	require.NoError(t, err)
	assert.Empty(t, roots)

	_, err = tr.Root(ctx, unscoped)
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
}

func TestQueries_Ancestry(t *testing.T) {
	tr, _, fx := setup(t)
	ctx := context.Background()
	top, c1, c2, c21 := get(t, tr, fx.Top), get(t, tr, fx.Child1), get(t, tr, fx.Child2), get(t, tr, fx.Child21)

	chain, err := tr.SelfAndAncestors(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top}, ids(chain))

	chain, err = tr.SelfAndAncestors(ctx, c21)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top, fx.Child2, fx.Child21}, ids(chain))

	anc, err := tr.Ancestors(ctx, top)
	require.NoError(t, err)
	assert.Empty(t, anc)

	anc, err = tr.Ancestors(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top}, ids(anc))

	for _, tc := range []struct {
		n     *domain.Node
		level int
	}{{top, 0}, {c1, 1}, {c2, 1}, {c21, 2}} {
		level, err := tr.Level(ctx, tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.level, level, "level of %s", tc.n.Name)
	}

	parent, err := tr.Parent(ctx, c21)
	require.NoError(t, err)
	assert.Equal(t, fx.Child2, parent.ID)

	parent, err = tr.Parent(ctx, top)
	require.NoError(t, err)
	assert.Nil(t, parent)

	rootOf, err := tr.RootOf(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, fx.Top, rootOf.ID)
}

func TestQueries_Descendants(t *testing.T) {
	tr, _, fx := setup(t)
	ctx := context.Background()
	top, c2, c21 := get(t, tr, fx.Top), get(t, tr, fx.Child2), get(t, tr, fx.Child21)

	sub, err := tr.SelfAndDescendants(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top, fx.Child1, fx.Child2, fx.Child21, fx.Child3}, ids(sub))

	sub, err = tr.SelfAndDescendants(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child2, fx.Child21}, ids(sub))

	desc, err := tr.Descendants(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child1, fx.Child2, fx.Child21, fx.Child3}, ids(desc))

	desc, err = tr.Descendants(ctx, c21)
	require.NoError(t, err)
	assert.Empty(t, desc)

	children, err := tr.Children(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child1, fx.Child2, fx.Child3}, ids(children))

	children, err = tr.Children(ctx, c21)
	require.NoError(t, err)
	assert.Empty(t, children)

	// leaves under Top
	leaves, err := tr.LeavesOf(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child1, fx.Child21, fx.Child3}, ids(leaves))

	leaves, err = tr.LeavesOf(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child21}, ids(leaves))

	leaves, err = tr.LeavesOf(ctx, c21)
	require.NoError(t, err)
	assert.Empty(t, leaves)
}

func TestQueries_Siblings(t *testing.T) {
	tr, _, fx := setup(t)
	ctx := context.Background()
	top, top2 := get(t, tr, fx.Top), get(t, tr, fx.Top2)
	c1, c2, c21, c3 := get(t, tr, fx.Child1), get(t, tr, fx.Child2), get(t, tr, fx.Child21), get(t, tr, fx.Child3)

	sibs, err := tr.SelfAndSiblings(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top, fx.Top2}, ids(sibs))

	sibs, err = tr.SelfAndSiblings(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child1, fx.Child2, fx.Child3}, ids(sibs))

	sibs, err = tr.Siblings(ctx, top)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Top2}, ids(sibs))

	sibs, err = tr.Siblings(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{fx.Child2, fx.Child3}, ids(sibs))

	left := func(n *domain.Node) *domain.Node {
		s, err := tr.LeftSibling(ctx, n)
		require.NoError(t, err)
		return s
	}
	right := func(n *domain.Node) *domain.Node {
		s, err := tr.RightSibling(ctx, n)
		require.NoError(t, err)
		return s
	}

	assert.Equal(t, fx.Child1, left(c2).ID)
	assert.Equal(t, fx.Child2, left(c3).ID)
	assert.Nil(t, left(c1))
	assert.Nil(t, left(c21))
	assert.Nil(t, left(top))

	assert.Equal(t, fx.Child2, right(c1).ID)
	assert.Equal(t, fx.Child3, right(c2).ID)
	assert.Equal(t, fx.Top2, right(top).ID)
	assert.Nil(t, right(top2))
	assert.Nil(t, right(c21))
	assert.Nil(t, right(c3))
}

func TestQueries_Predicates(t *testing.T) {
	tr, _, fx := setup(t)
	top, c1, c2, c21 := get(t, tr, fx.Top), get(t, tr, fx.Child1), get(t, tr, fx.Child2), get(t, tr, fx.Child21)

	assert.True(t, c1.IsOrIsDescendantOf(top))
	assert.True(t, c21.IsOrIsDescendantOf(top))
	assert.True(t, c21.IsOrIsDescendantOf(c2))
	assert.False(t, c2.IsOrIsDescendantOf(c21))
	assert.False(t, c2.IsOrIsDescendantOf(c1))
	assert.True(t, c1.IsOrIsDescendantOf(c1))

	assert.True(t, c1.IsDescendantOf(top))
	assert.True(t, c21.IsDescendantOf(c2))
	assert.False(t, c2.IsDescendantOf(c21))
	assert.False(t, c1.IsDescendantOf(c1))

	assert.True(t, top.IsAncestorOf(c21))
	assert.True(t, c2.IsAncestorOf(c21))
	assert.False(t, c21.IsAncestorOf(c2))
	assert.False(t, c1.IsAncestorOf(c1))

	assert.True(t, top.IsOrIsAncestorOf(c1))
	assert.False(t, c1.IsOrIsAncestorOf(c2))
	assert.True(t, c1.IsOrIsAncestorOf(c1))

	assert.False(t, top.IsLeaf())
	assert.True(t, c21.IsLeaf())
	assert.False(t, top.IsChild())
	assert.True(t, c21.IsChild())
	assert.Equal(t, -1, c1.Compare(c2))
}

func TestQueries_ToText(t *testing.T) {
	tr, _, fx := setup(t)
	out, err := tr.ToText(context.Background(), get(t, tr, fx.Top), func(*domain.Node) string { return "Client" })
	require.NoError(t, err)
	assert.Equal(t, "* Client (nil, 1, 10)\n** Client (1, 2, 3)\n** Client (1, 4, 7)\n*** Client (3, 5, 6)\n** Client (1, 8, 9)", out)
}

func TestQueries_RequireBoundaries(t *testing.T) {
	tr, _, _ := setup(t)
	_, err := tr.Descendants(context.Background(), domain.NewNode("fresh", unscoped))
	assert.ErrorIs(t, err, domain.ErrNotPersisted)

	_, err = tr.Get(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
