package tree

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/internal/presentation/text"
	"github.com/aretw0/arbor/pkg/domain"
)

// Get retrieves a node by id.
func (t *Tree) Get(ctx context.Context, id domain.ID) (*domain.Node, error) {
	return t.lookup(ctx, id)
}

// Nodes returns every node of the scope in preorder.
func (t *Tree) Nodes(ctx context.Context, scope domain.Scope) ([]*domain.Node, error) {
	if err := t.checkScope(scope); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.ScopeFilter(scope))
}

// Roots returns the roots of the scope ordered by left.
func (t *Tree) Roots(ctx context.Context, scope domain.Scope) ([]*domain.Node, error) {
	if err := t.checkScope(scope); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{Scope: scope, ByParent: true, Parent: domain.NoID})
}

// Root returns the first root of the scope, or nil for an empty scope.
func (t *Tree) Root(ctx context.Context, scope domain.Scope) (*domain.Node, error) {
	roots, err := t.Roots(ctx, scope)
	if err != nil || len(roots) == 0 {
		return nil, err
	}
	return roots[0], nil
}

// Leaves returns every leaf of the scope.
func (t *Tree) Leaves(ctx context.Context, scope domain.Scope) ([]*domain.Node, error) {
	if err := t.checkScope(scope); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{Scope: scope, Leaves: true})
}

// SelfAndAncestors returns n and every node whose interval contains it, root first.
func (t *Tree) SelfAndAncestors(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{
		Scope: n.Scope,
		Left:  domain.Range{Hi: n.Left()},
		Right: domain.Range{Lo: n.Right()},
	})
}

// Ancestors returns the proper ancestors of n, root first.
func (t *Tree) Ancestors(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{
		Scope:   n.Scope,
		Left:    domain.Range{Hi: n.Left()},
		Right:   domain.Range{Lo: n.Right()},
		Exclude: n.ID,
	})
}

// Level returns the depth of n; roots are at level 0.
func (t *Tree) Level(ctx context.Context, n *domain.Node) (int, error) {
	if n.IsRoot() {
		return 0, nil
	}
	ancestors, err := t.Ancestors(ctx, n)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// Parent returns the parent of n, or nil for a root.
func (t *Tree) Parent(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	if n.IsRoot() {
		return nil, nil
	}
	return t.lookup(ctx, n.Parent())
}

// RootOf returns the root of the tree n belongs to.
func (t *Tree) RootOf(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	chain, err := t.SelfAndAncestors(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("node %d: %w", n.ID, domain.ErrNotFound)
	}
	return chain[0], nil
}

// SelfAndDescendants returns n and its whole subtree in preorder.
func (t *Tree) SelfAndDescendants(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{
		Scope: n.Scope,
		Left:  domain.Range{Lo: n.Left()},
		Right: domain.Range{Hi: n.Right()},
	})
}

// Descendants returns the subtree of n without n.
func (t *Tree) Descendants(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{
		Scope:   n.Scope,
		Left:    domain.Range{Lo: n.Left()},
		Right:   domain.Range{Hi: n.Right()},
		Exclude: n.ID,
	})
}

// LeavesOf returns the descendants of n that have no children.
func (t *Tree) LeavesOf(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	return t.store.Filter(ctx, domain.Filter{
		Scope:   n.Scope,
		Left:    domain.Range{Lo: n.Left()},
		Right:   domain.Range{Hi: n.Right()},
		Leaves:  true,
		Exclude: n.ID,
	})
}

// Children returns the direct children of n.
func (t *Tree) Children(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	return t.store.Filter(ctx, domain.Filter{Scope: n.Scope, ByParent: true, Parent: n.ID})
}

// SelfAndSiblings returns every node sharing n's parent, n included.
// The siblings of a root are the other roots.
func (t *Tree) SelfAndSiblings(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	return t.store.Filter(ctx, domain.Filter{Scope: n.Scope, ByParent: true, Parent: n.Parent()})
}

// Siblings returns every node sharing n's parent, n excluded.
func (t *Tree) Siblings(ctx context.Context, n *domain.Node) ([]*domain.Node, error) {
	return t.store.Filter(ctx, domain.Filter{Scope: n.Scope, ByParent: true, Parent: n.Parent(), Exclude: n.ID})
}

// LeftSibling returns the nearest sibling left of n, or nil.
func (t *Tree) LeftSibling(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	if n.Left() <= 1 {
		return nil, nil
	}
	left, err := t.store.Filter(ctx, domain.Filter{
		Scope:    n.Scope,
		ByParent: true,
		Parent:   n.Parent(),
		Left:     domain.Range{Lo: 1, Hi: n.Left() - 1},
	})
	if err != nil || len(left) == 0 {
		return nil, err
	}
	return left[len(left)-1], nil
}

// RightSibling returns the nearest sibling right of n, or nil.
func (t *Tree) RightSibling(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	if err := requireBounds(n); err != nil {
		return nil, err
	}
	right, err := t.store.Filter(ctx, domain.Filter{
		Scope:    n.Scope,
		ByParent: true,
		Parent:   n.Parent(),
		Left:     domain.Range{Lo: n.Left() + 1},
	})
	if err != nil || len(right) == 0 {
		return nil, err
	}
	return right[0], nil
}

// ToText renders n and its subtree, one line per node. A nil label prints names.
func (t *Tree) ToText(ctx context.Context, n *domain.Node, label text.LabelFunc) (string, error) {
	nodes, err := t.SelfAndDescendants(ctx, n)
	if err != nil {
		return "", err
	}
	return text.Render(nodes, label), nil
}

func requireBounds(n *domain.Node) error {
	if !n.Persisted() {
		return fmt.Errorf("node %d: %w", n.ID, domain.ErrNotPersisted)
	}
	return nil
}
