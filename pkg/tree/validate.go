package tree

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
)

// MovePossible reports whether m may be moved next to or under target: target
// must be another node of the same scope lying outside m's subtree.
func MovePossible(m, target *domain.Node) bool {
	if m == nil || target == nil {
		return false
	}
	if m.ID == target.ID || !m.SameScope(target) {
		return false
	}
	inside := m.Left() <= target.Left() && target.Right() <= m.Right()
	return !inside
}

// Validate checks every invariant over one scope. It never repairs anything;
// use Rebuild to recover from a failed report.
func (t *Tree) Validate(ctx context.Context, scope domain.Scope) (*domain.Report, error) {
	if err := t.checkScope(scope); err != nil {
		return nil, err
	}
	nodes, err := t.store.Filter(ctx, domain.ScopeFilter(scope))
	if err != nil {
		return nil, fmt.Errorf("failed to load scope %s: %w", scope, err)
	}
	report := Check(scope, nodes)
	if !report.Valid {
		t.logger.Warn("inconsistent tree", "scope", scope, "violations", len(report.Violations))
	}
	return report, nil
}

// Check validates a whole scope given in preorder (ascending left).
func Check(scope domain.Scope, nodes []*domain.Node) *domain.Report {
	r := &domain.Report{Scope: scope}
	add := func(inv domain.Invariant, id domain.ID, format string, args ...any) {
		r.Violations = append(r.Violations, domain.Violation{
			Invariant: inv,
			NodeID:    id,
			Detail:    fmt.Sprintf(format, args...),
		})
	}

	byID := make(map[domain.ID]*domain.Node, len(nodes))
	lefts := make(map[int64]domain.ID, len(nodes))
	rights := make(map[int64]domain.ID, len(nodes))
	var roots []*domain.Node

	for _, n := range nodes {
		byID[n.ID] = n
		if n.Left() == 0 || n.Right() == 0 {
			add(domain.InvariantBoundariesPresent, n.ID, "left=%d right=%d", n.Left(), n.Right())
			continue
		}
		if n.Left() >= n.Right() {
			add(domain.InvariantOrdered, n.ID, "left %d is not below right %d", n.Left(), n.Right())
		}
		if other, dup := lefts[n.Left()]; dup {
			add(domain.InvariantUniqueness, n.ID, "left %d shared with node %d", n.Left(), other)
		} else {
			lefts[n.Left()] = n.ID
		}
		if other, dup := rights[n.Right()]; dup {
			add(domain.InvariantUniqueness, n.ID, "right %d shared with node %d", n.Right(), other)
		} else {
			rights[n.Right()] = n.ID
		}
		if n.IsRoot() {
			roots = append(roots, n)
		}
	}

	for _, n := range nodes {
		if n.IsRoot() || !n.Persisted() {
			continue
		}
		p, ok := byID[n.Parent()]
		if !ok {
			add(domain.InvariantNesting, n.ID, "parent %d is not in scope", n.Parent())
			continue
		}
		if !p.Persisted() {
			continue
		}
		if n.Left() <= p.Left() || n.Right() >= p.Right() {
			add(domain.InvariantNesting, n.ID, "[%d,%d] not inside parent %d [%d,%d]",
				n.Left(), n.Right(), p.ID, p.Left(), p.Right())
		}
	}

	for i := 1; i < len(roots); i++ {
		prev, cur := roots[i-1], roots[i]
		if prev.Right() >= cur.Left() {
			add(domain.InvariantRootOrdering, cur.ID, "root [%d,%d] overlaps root %d [%d,%d]",
				cur.Left(), cur.Right(), prev.ID, prev.Left(), prev.Right())
		}
	}

	r.Valid = len(r.Violations) == 0
	return r
}
