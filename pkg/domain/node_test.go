package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, parent domain.ID, l, r int64) *domain.Node {
	return domain.Record{ID: id, Name: "n", Parent: parent, Left: l, Right: r}.Node()
}

func TestNode_Accessors(t *testing.T) {
	n := node(3, 1, 4, 7)
	assert.Equal(t, domain.ID(1), n.Parent())
	assert.Equal(t, int64(4), n.Width())
	assert.Equal(t, int64(1), n.DescendantCount())
	assert.True(t, n.Persisted())
	assert.True(t, n.IsChild())
	assert.False(t, n.IsLeaf())

	fresh := domain.NewNode("fresh", domain.Scope{})
	assert.False(t, fresh.Persisted())
	assert.False(t, fresh.IsLeaf(), "an unnumbered node is not a leaf")
	assert.True(t, fresh.IsRoot())
}

func TestNode_CloneIsIndependent(t *testing.T) {
	n := domain.Record{ID: 1, Name: "a", Scope: []string{"x"}, Left: 1, Right: 2}.Node()
	c := n.Clone()
	c.Name = "b"
	assert.Equal(t, "a", n.Name)
	assert.Equal(t, n.Record().Left, c.Record().Left)
}

func TestNode_Compare(t *testing.T) {
	assert.Equal(t, -1, node(1, 0, 1, 2).Compare(node(2, 0, 3, 4)))
	assert.Equal(t, 1, node(2, 0, 3, 4).Compare(node(1, 0, 1, 2)))
	assert.Equal(t, -1, node(1, 0, 0, 0).Compare(node(2, 0, 0, 0)), "ties break on id")
}

func TestRecord_JSON(t *testing.T) {
	rec := domain.Record{ID: 7, Name: "leaf", Scope: []string{"acme"}, Parent: 3, Left: 5, Right: 6}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var back domain.Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
	assert.Equal(t, rec, back.Node().Record())
}

func TestScope(t *testing.T) {
	a := domain.NewScope("acme", "menu")
	assert.True(t, a.Equal(domain.ParseScope("acme/menu")))
	assert.False(t, a.Equal(domain.NewScope("acme")))
	assert.True(t, domain.Scope{}.Equal(domain.NewScope()))
	assert.Equal(t, "(default)", domain.Scope{}.String())
	assert.Equal(t, "acme/menu", a.String())

	// Keys never collide even when values contain the separator.
	assert.NotEqual(t, domain.NewScope("a/b").Key(), domain.NewScope("a", "b").Key())
	assert.Equal(t, "", domain.Scope{}.Key())

	values := a.Values()
	values[0] = "evil"
	assert.Equal(t, "acme", a.Values()[0], "values are copied")

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `["acme","menu"]`, string(data))

	var back domain.Scope
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, a.Equal(back))

	data, err = json.Marshal(domain.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFilter_Match(t *testing.T) {
	scope := domain.NewScope("s")
	n := domain.Record{ID: 4, Scope: []string{"s"}, Parent: 2, Left: 5, Right: 6}.Node()

	tests := []struct {
		name string
		f    domain.Filter
		want bool
	}{
		{"Scope", domain.ScopeFilter(scope), true},
		{"Other Scope", domain.ScopeFilter(domain.Scope{}), false},
		{"Excluded", domain.Filter{Scope: scope, Exclude: 4}, false},
		{"Left Inside", domain.Filter{Scope: scope, Left: domain.Range{Lo: 2, Hi: 5}}, true},
		{"Left Outside", domain.Filter{Scope: scope, Left: domain.Range{Lo: 6}}, false},
		{"Right Upper", domain.Filter{Scope: scope, Right: domain.Range{Hi: 6}}, true},
		{"Parent", domain.Filter{Scope: scope, ByParent: true, Parent: 2}, true},
		{"Roots Only", domain.Filter{Scope: scope, ByParent: true}, false},
		{"Leaves", domain.Filter{Scope: scope, Leaves: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Match(n))
		})
	}
}

func TestRemap_Apply(t *testing.T) {
	// Child 2 [4,7] moving under Child 1 [2,3]: swap [3,3] and [4,7].
	r := domain.Remap{A: 3, B: 3, C: 4, D: 7}
	got := make([]int64, 0, 10)
	for v := int64(1); v <= 10; v++ {
		got = append(got, r.Apply(v))
	}
	assert.Equal(t, []int64{1, 2, 7, 3, 4, 5, 6, 8, 9, 10}, got)
	assert.True(t, r.Touches(5))
	assert.False(t, r.Touches(8))
}

func TestParse(t *testing.T) {
	p, err := domain.ParsePosition("left")
	require.NoError(t, err)
	assert.Equal(t, domain.PositionLeft, p)
	_, err = domain.ParsePosition("above")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPosition)

	pol, err := domain.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyCascade, pol)
	_, err = domain.ParsePolicy("shred")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPolicy)

	order, err := domain.ParseRebuildOrder("id")
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildByID, order)
}

func TestReport(t *testing.T) {
	r := &domain.Report{Scope: domain.NewScope("s"), Valid: true}
	assert.NoError(t, r.Err())

	r = &domain.Report{Scope: domain.NewScope("s"), Violations: []domain.Violation{
		{Invariant: domain.InvariantNesting, NodeID: 2},
		{Invariant: domain.InvariantUniqueness, NodeID: 3},
		{Invariant: domain.InvariantNesting, NodeID: 4},
	}}
	assert.Equal(t, []domain.Invariant{domain.InvariantNesting, domain.InvariantUniqueness}, r.Invariants())
	assert.True(t, r.Has(domain.InvariantNesting))
	assert.False(t, r.Has(domain.InvariantOrdered))
	assert.ErrorIs(t, r.Err(), domain.ErrInconsistentTree)
	assert.Contains(t, r.Err().Error(), "nesting, uniqueness")
}
