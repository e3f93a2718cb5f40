package tree_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Fixture(t *testing.T) {
	tr, _, _ := setup(t)
	report, err := tr.Validate(context.Background(), unscoped)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Violations)
	assert.NoError(t, report.Err())
}

// A child whose right boundary reaches its parent's.
func TestValidate_DetectsCorruption(t *testing.T) {
	tr, store, fx := setup(t)
	corrupt(t, store, func(ctx context.Context, tx ports.Tx) error {
		return tx.SetBounds(ctx, []domain.Bounds{{ID: fx.Child21, Left: 5, Right: 7}})
	})

	report, err := tr.Validate(context.Background(), unscoped)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.True(t, report.Has(domain.InvariantNesting))
	assert.True(t, report.Has(domain.InvariantUniqueness))
	assert.ErrorIs(t, report.Err(), domain.ErrInconsistentTree)

	// Validation never repairs.
	assert.Equal(t, [2]int64{5, 7}, bounds(t, tr, fx.Child21))
}

func TestCheck(t *testing.T) {
	node := func(id, parent domain.ID, l, r int64) *domain.Node {
		return domain.Record{ID: id, Name: "n", Parent: parent, Left: l, Right: r}.Node()
	}

	tests := []struct {
		name  string
		nodes []*domain.Node
		want  []domain.Invariant
	}{
		{
			name: "Empty Scope",
		},
		{
			name:  "Single Root",
			nodes: []*domain.Node{node(1, 0, 1, 2)},
		},
		{
			name:  "Missing Boundary",
			nodes: []*domain.Node{node(1, 0, 0, 0), node(2, 0, 1, 2)},
			want:  []domain.Invariant{domain.InvariantBoundariesPresent},
		},
		{
			name:  "Inverted",
			nodes: []*domain.Node{node(1, 0, 2, 1)},
			want:  []domain.Invariant{domain.InvariantOrdered},
		},
		{
			name:  "Child Outside Parent",
			nodes: []*domain.Node{node(1, 0, 1, 4), node(2, 1, 5, 6)},
			want:  []domain.Invariant{domain.InvariantNesting},
		},
		{
			name:  "Parent Out Of Scope",
			nodes: []*domain.Node{node(2, 9, 1, 2)},
			want:  []domain.Invariant{domain.InvariantNesting},
		},
		{
			name:  "Shared Left",
			nodes: []*domain.Node{node(1, 0, 1, 4), node(2, 0, 1, 6)},
			want:  []domain.Invariant{domain.InvariantUniqueness, domain.InvariantRootOrdering},
		},
		{
			name:  "Overlapping Roots",
			nodes: []*domain.Node{node(1, 0, 1, 4), node(2, 0, 3, 6)},
			want:  []domain.Invariant{domain.InvariantRootOrdering},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := tree.Check(unscoped, tt.nodes)
			assert.Equal(t, len(tt.want) == 0, report.Valid)
			assert.Equal(t, tt.want, report.Invariants())
		})
	}
}
