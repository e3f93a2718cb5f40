package tree

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Rebuild renumbers every node of the scope from parent pointers alone and
// returns the number of nodes written. Boundaries may be absent or corrupt;
// parent pointers must form a forest.
func (t *Tree) Rebuild(ctx context.Context, scope domain.Scope) (int, error) {
	if err := t.checkScope(scope); err != nil {
		return 0, err
	}

	var written int
	err := t.mutate(ctx, domain.MutationRebuild, scope, domain.NoID, func(ctx context.Context, tx ports.Tx) error {
		nodes, err := tx.Filter(ctx, domain.ScopeFilter(scope))
		if err != nil {
			return fmt.Errorf("failed to load scope %s: %w", scope, err)
		}
		bounds, err := Renumber(nodes, t.cfg.RebuildOrder)
		if err != nil {
			return err
		}
		written = len(bounds)
		return tx.SetBounds(ctx, bounds)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Renumber assigns preorder/postorder boundaries to nodes from their parent
// pointers. The walk is depth first over an explicit stack, so deep trees do
// not grow the goroutine stack.
func Renumber(nodes []*domain.Node, order domain.RebuildOrder) ([]domain.Bounds, error) {
	byID := make(map[domain.ID]*domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	children := make(map[domain.ID][]*domain.Node)
	var roots []*domain.Node
	for _, n := range nodes {
		if n.IsRoot() {
			roots = append(roots, n)
			continue
		}
		if _, ok := byID[n.Parent()]; !ok {
			return nil, fmt.Errorf("%w: parent %d of node %d: %w",
				domain.ErrInconsistentTree, n.Parent(), n.ID, domain.ErrNotFound)
		}
		children[n.Parent()] = append(children[n.Parent()], n)
	}

	less := siblingOrder(order)
	slices.SortFunc(roots, less)
	for _, kids := range children {
		slices.SortFunc(kids, less)
	}

	type frame struct {
		node *domain.Node
		exit bool
	}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}

	out := make([]domain.Bounds, 0, len(nodes))
	index := make(map[domain.ID]int, len(nodes))
	var counter int64
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.exit {
			counter++
			out[index[f.node.ID]].Right = counter
			continue
		}

		counter++
		index[f.node.ID] = len(out)
		out = append(out, domain.Bounds{ID: f.node.ID, Left: counter})

		stack = append(stack, frame{node: f.node, exit: true})
		kids := children[f.node.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: kids[i]})
		}
	}

	if len(out) != len(nodes) {
		return nil, fmt.Errorf("%w: %d nodes are unreachable from any root (parent cycle)",
			domain.ErrInconsistentTree, len(nodes)-len(out))
	}
	return out, nil
}

func siblingOrder(order domain.RebuildOrder) func(a, b *domain.Node) int {
	if order == domain.RebuildByID {
		return func(a, b *domain.Node) int { return cmp.Compare(a.ID, b.ID) }
	}
	return func(a, b *domain.Node) int {
		// Unnumbered nodes go after numbered siblings.
		aa, bb := a.Left() > 0, b.Left() > 0
		switch {
		case aa && !bb:
			return -1
		case !aa && bb:
			return 1
		case aa && bb && a.Left() != b.Left():
			return cmp.Compare(a.Left(), b.Left())
		}
		return cmp.Compare(a.ID, b.ID)
	}
}
