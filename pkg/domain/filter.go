package domain

// Range is an inclusive integer range. A zero bound is open on that side,
// which is safe because valid boundaries start at 1.
type Range struct {
	Lo int64
	Hi int64
}

// Contains reports whether v falls inside the range.
func (r Range) Contains(v int64) bool {
	return (r.Lo == 0 || v >= r.Lo) && (r.Hi == 0 || v <= r.Hi)
}

// Open reports whether the range is unbounded on both sides.
func (r Range) Open() bool { return r.Lo == 0 && r.Hi == 0 }

// Filter is a store-neutral query over one scope. Results are always ordered by
// ascending left boundary, then id.
type Filter struct {
	Scope Scope
	Left  Range
	Right Range

	// ByParent restricts results to nodes whose parent is Parent (NoID selects roots).
	ByParent bool
	Parent   ID

	// Leaves restricts results to nodes with right - left == 1.
	Leaves bool

	// Exclude drops a single node from the results.
	Exclude ID
}

// ScopeFilter selects every node of a scope.
func ScopeFilter(scope Scope) Filter {
	return Filter{Scope: scope}
}

// Match evaluates the filter against a node. In-memory stores use it directly;
// SQL stores translate the same fields into a WHERE clause.
func (f Filter) Match(n *Node) bool {
	if !n.Scope.Equal(f.Scope) {
		return false
	}
	if f.Exclude != NoID && n.ID == f.Exclude {
		return false
	}
	if !f.Left.Open() && !f.Left.Contains(n.left) {
		return false
	}
	if !f.Right.Open() && !f.Right.Contains(n.right) {
		return false
	}
	if f.ByParent && n.parent != f.Parent {
		return false
	}
	if f.Leaves && n.right-n.left != 1 {
		return false
	}
	return true
}
