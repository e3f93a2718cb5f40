package tree

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Insert stores n as the last root of its scope: left = max(right)+1, right = left+1.
// It returns the stored node; n itself is not modified.
func (t *Tree) Insert(ctx context.Context, n *domain.Node) (*domain.Node, error) {
	if n.ID != domain.NoID {
		return nil, fmt.Errorf("node %d is already inserted", n.ID)
	}
	if err := t.checkScope(n.Scope); err != nil {
		return nil, err
	}

	var created *domain.Node
	err := t.mutate(ctx, domain.MutationInsert, n.Scope, domain.NoID, func(ctx context.Context, tx ports.Tx) error {
		var err error
		created, err = insertLast(ctx, tx, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// InsertChild stores n as the last child of parent in one transaction.
func (t *Tree) InsertChild(ctx context.Context, n *domain.Node, parent domain.ID) (*domain.Node, error) {
	if n.ID != domain.NoID {
		return nil, fmt.Errorf("node %d is already inserted", n.ID)
	}
	if err := t.checkScope(n.Scope); err != nil {
		return nil, err
	}

	var created *domain.Node
	err := t.mutate(ctx, domain.MutationInsert, n.Scope, parent, func(ctx context.Context, tx ports.Tx) error {
		fresh, err := insertLast(ctx, tx, n)
		if err != nil {
			return err
		}
		created, _, err = move(ctx, tx, fresh.ID, parent, domain.PositionChild)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertLast(ctx context.Context, tx ports.Tx, n *domain.Node) (*domain.Node, error) {
	max, _, err := tx.MaxRight(ctx, n.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read max right: %w", err)
	}
	created, err := tx.Create(ctx, domain.Record{
		Name:  n.Name,
		Scope: n.Scope.Values(),
		Left:  max + 1,
		Right: max + 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	return created, nil
}

// Move relocates the subtree of mover relative to target. For PositionRoot the
// target is ignored and may be domain.NoID. It returns the re-read mover and
// target (nil for PositionRoot).
func (t *Tree) Move(ctx context.Context, mover, target domain.ID, pos domain.Position) (*domain.Node, *domain.Node, error) {
	if _, err := domain.ParsePosition(string(pos)); err != nil {
		return nil, nil, err
	}
	m, err := t.lookup(ctx, mover)
	if err != nil {
		return nil, nil, err
	}

	var movedM, movedT *domain.Node
	err = t.mutate(ctx, domain.MutationMove, m.Scope, mover, func(ctx context.Context, tx ports.Tx) error {
		var err error
		movedM, movedT, err = move(ctx, tx, mover, target, pos)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return movedM, movedT, nil
}

// MoveToChildOf makes mover the last child of target.
func (t *Tree) MoveToChildOf(ctx context.Context, mover, target domain.ID) (*domain.Node, error) {
	m, _, err := t.Move(ctx, mover, target, domain.PositionChild)
	return m, err
}

// MoveToLeftOf makes mover the sibling immediately left of target.
func (t *Tree) MoveToLeftOf(ctx context.Context, mover, target domain.ID) (*domain.Node, error) {
	m, _, err := t.Move(ctx, mover, target, domain.PositionLeft)
	return m, err
}

// MoveToRightOf makes mover the sibling immediately right of target.
func (t *Tree) MoveToRightOf(ctx context.Context, mover, target domain.ID) (*domain.Node, error) {
	m, _, err := t.Move(ctx, mover, target, domain.PositionRight)
	return m, err
}

// MoveToRoot makes mover the first root of its scope.
func (t *Tree) MoveToRoot(ctx context.Context, mover domain.ID) (*domain.Node, error) {
	m, _, err := t.Move(ctx, mover, domain.NoID, domain.PositionRoot)
	return m, err
}

// MoveLeft swaps mover with its left sibling. Without one it is a no-op.
func (t *Tree) MoveLeft(ctx context.Context, mover domain.ID) (*domain.Node, error) {
	return t.moveBeside(ctx, mover, true)
}

// MoveRight swaps mover with its right sibling. Without one it is a no-op.
func (t *Tree) MoveRight(ctx context.Context, mover domain.ID) (*domain.Node, error) {
	return t.moveBeside(ctx, mover, false)
}

func (t *Tree) moveBeside(ctx context.Context, mover domain.ID, leftward bool) (*domain.Node, error) {
	m, err := t.lookup(ctx, mover)
	if err != nil {
		return nil, err
	}

	var moved *domain.Node
	err = t.mutate(ctx, domain.MutationMove, m.Scope, mover, func(ctx context.Context, tx ports.Tx) error {
		cur, err := tx.Get(ctx, mover)
		if err != nil {
			return fmt.Errorf("mover %d: %w", mover, err)
		}
		if err := requireBounds(cur); err != nil {
			return err
		}
		if leftward && cur.Left() <= 1 {
			moved = cur
			return nil
		}

		f := domain.Filter{Scope: cur.Scope, ByParent: true, Parent: cur.Parent(), Exclude: cur.ID}
		if leftward {
			f.Left = domain.Range{Lo: 1, Hi: cur.Left() - 1}
		} else {
			f.Left = domain.Range{Lo: cur.Right() + 1}
		}
		sibs, err := tx.Filter(ctx, f)
		if err != nil {
			return err
		}
		if len(sibs) == 0 {
			moved = cur
			return nil
		}

		if leftward {
			moved, _, err = move(ctx, tx, mover, sibs[len(sibs)-1].ID, domain.PositionLeft)
		} else {
			moved, _, err = move(ctx, tx, mover, sibs[0].ID, domain.PositionRight)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// move is the boundary remap shared by every move entry point. It must run inside a scope transaction.
func move(ctx context.Context, tx ports.Tx, mover, target domain.ID, pos domain.Position) (*domain.Node, *domain.Node, error) {
	m, err := tx.Get(ctx, mover)
	if err != nil {
		return nil, nil, fmt.Errorf("mover %d: %w", mover, err)
	}
	if err := requireBounds(m); err != nil {
		return nil, nil, err
	}

	var tn *domain.Node
	if pos != domain.PositionRoot {
		if target == domain.NoID {
			return nil, nil, fmt.Errorf("%w: position %q requires a target", domain.ErrInvalidMove, pos)
		}
		tn, err = tx.Get(ctx, target)
		if err != nil {
			return nil, nil, fmt.Errorf("target %d: %w", target, err)
		}
		if err := requireBounds(tn); err != nil {
			return nil, nil, err
		}
		if !MovePossible(m, tn) {
			return nil, nil, fmt.Errorf("%w: cannot move node %d %s of node %d", domain.ErrInvalidMove, m.ID, pos, tn.ID)
		}
	}

	remap, ok, err := planMove(m, tn, pos)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return m, tn, nil
	}

	if err := tx.Remap(ctx, m.Scope, remap); err != nil {
		return nil, nil, fmt.Errorf("failed to remap boundaries: %w", err)
	}

	parent := domain.NoID
	switch pos {
	case domain.PositionChild:
		parent = tn.ID
	case domain.PositionLeft, domain.PositionRight:
		parent = tn.Parent()
	}
	if parent != m.Parent() {
		if err := tx.SetParent(ctx, m.ID, parent); err != nil {
			return nil, nil, fmt.Errorf("failed to update parent: %w", err)
		}
	}

	if m, err = tx.Get(ctx, mover); err != nil {
		return nil, nil, err
	}
	if tn != nil {
		if tn, err = tx.Get(ctx, target); err != nil {
			return nil, nil, err
		}
	}
	return m, tn, nil
}

// planMove computes the remap relocating m. ok is false when the move changes nothing.
func planMove(m, target *domain.Node, pos domain.Position) (remap domain.Remap, ok bool, err error) {
	var bound int64
	switch pos {
	case domain.PositionChild:
		bound = target.Right()
	case domain.PositionLeft:
		bound = target.Left()
	case domain.PositionRight:
		bound = target.Right() + 1
	case domain.PositionRoot:
		bound = 1
	default:
		return domain.Remap{}, false, fmt.Errorf("%w: %q", domain.ErrUnsupportedPosition, pos)
	}

	var other int64
	if bound > m.Right() {
		bound--
		other = m.Right() + 1
	} else {
		other = m.Left() - 1
	}

	if bound == m.Right() || bound == m.Left() {
		return domain.Remap{}, false, nil
	}

	v := []int64{m.Left(), m.Right(), bound, other}
	slices.Sort(v)
	return domain.Remap{A: v[0], B: v[1], C: v[2], D: v[3]}, true, nil
}

// Remove deletes a node and closes the gap it leaves. An empty policy selects the
// configured default.
func (t *Tree) Remove(ctx context.Context, id domain.ID, policy domain.Policy) error {
	if policy == "" {
		policy = t.cfg.Dependent
	}
	if _, err := domain.ParsePolicy(string(policy)); err != nil {
		return err
	}
	n, err := t.lookup(ctx, id)
	if err != nil {
		return err
	}

	return t.mutate(ctx, domain.MutationRemove, n.Scope, id, func(ctx context.Context, tx ports.Tx) error {
		n, err := tx.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("node %d: %w", id, err)
		}
		if err := requireBounds(n); err != nil {
			return err
		}
		return prune(ctx, tx, n, policy)
	})
}

func prune(ctx context.Context, tx ports.Tx, n *domain.Node, policy domain.Policy) error {
	scope := n.Scope
	switch policy {
	case domain.PolicyCascade:
		if err := tx.DeleteRange(ctx, scope, n.Left(), n.Right()); err != nil {
			return fmt.Errorf("failed to delete descendants: %w", err)
		}
		if err := tx.Delete(ctx, n.ID); err != nil {
			return err
		}
		return tx.Shift(ctx, scope, domain.Range{Lo: n.Right() + 1}, -n.Width())

	case domain.PolicyDetach:
		if err := tx.Reparent(ctx, scope, n.ID, n.Parent()); err != nil {
			return fmt.Errorf("failed to reparent children: %w", err)
		}
		if err := tx.Delete(ctx, n.ID); err != nil {
			return err
		}
		if n.Right()-n.Left() > 1 {
			if err := tx.Shift(ctx, scope, domain.Range{Lo: n.Left() + 1, Hi: n.Right() - 1}, -1); err != nil {
				return err
			}
		}
		return tx.Shift(ctx, scope, domain.Range{Lo: n.Right() + 1}, -2)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedPolicy, policy)
}
