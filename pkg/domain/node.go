package domain

import "fmt"

// ID identifies a node. Stores assign positive ids; NoID marks an absent reference.
type ID int64

// NoID is the zero ID. As a parent reference it marks a root.
const NoID ID = 0

// Node represents a single element of a nested set forest.
//
// The boundary pair and the parent pointer are read-only outside this package:
// they change only through the tree engine (insert, move, prune, rebuild),
// which writes them through a store transaction and re-reads the result.
type Node struct {
	ID    ID
	Name  string
	Scope Scope

	parent ID
	left   int64
	right  int64
}

// NewNode creates an unsaved node. It carries no id and no boundaries until inserted.
func NewNode(name string, scope Scope) *Node {
	return &Node{Name: name, Scope: scope}
}

// Parent returns the parent id, or NoID for a root.
func (n *Node) Parent() ID { return n.parent }

// Left returns the left boundary (0 when absent).
func (n *Node) Left() int64 { return n.left }

// Right returns the right boundary (0 when absent).
func (n *Node) Right() int64 { return n.right }

// Persisted reports whether the node has been inserted and numbered.
func (n *Node) Persisted() bool {
	return n.ID != NoID && n.left > 0 && n.right > 0
}

// Width is the span consumed by the node's subtree.
func (n *Node) Width() int64 { return n.right - n.left + 1 }

// DescendantCount derives the number of descendants from the boundaries.
func (n *Node) DescendantCount() int64 {
	if n.right <= n.left {
		return 0
	}
	return (n.right - n.left - 1) / 2
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.parent == NoID }

// IsChild reports whether the node has a parent.
func (n *Node) IsChild() bool { return !n.IsRoot() }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Persisted() && n.right-n.left == 1 }

// SameScope reports whether both nodes belong to the same forest partition.
func (n *Node) SameScope(other *Node) bool {
	return other != nil && n.Scope.Equal(other.Scope)
}

// IsDescendantOf reports other.left < n.left < other.right.
func (n *Node) IsDescendantOf(other *Node) bool {
	return n.SameScope(other) && other.left < n.left && n.left < other.right
}

// IsOrIsDescendantOf reports other.left <= n.left < other.right.
func (n *Node) IsOrIsDescendantOf(other *Node) bool {
	return n.SameScope(other) && other.left <= n.left && n.left < other.right
}

// IsAncestorOf reports n.left < other.left < n.right.
func (n *Node) IsAncestorOf(other *Node) bool {
	return n.SameScope(other) && n.left < other.left && other.left < n.right
}

// IsOrIsAncestorOf reports n.left <= other.left < n.right.
func (n *Node) IsOrIsAncestorOf(other *Node) bool {
	return n.SameScope(other) && n.left <= other.left && other.left < n.right
}

// Compare orders nodes by left boundary, then by id.
func (n *Node) Compare(other *Node) int {
	switch {
	case n.left < other.left:
		return -1
	case n.left > other.left:
		return 1
	case n.ID < other.ID:
		return -1
	case n.ID > other.ID:
		return 1
	}
	return 0
}

// Record returns the persisted form of the node.
func (n *Node) Record() Record {
	return Record{
		ID:     n.ID,
		Name:   n.Name,
		Scope:  n.Scope.Values(),
		Parent: n.parent,
		Left:   n.left,
		Right:  n.right,
	}
}

// Clone returns an independent copy.
func (n *Node) Clone() *Node {
	c := *n
	c.Scope = NewScope(n.Scope.Values()...)
	return &c
}

func (n *Node) String() string {
	return fmt.Sprintf("%d:%s[%d,%d]", n.ID, n.Name, n.left, n.right)
}

// Record is the flat, storable form of a Node. Store adapters use it to persist
// nodes and to restore them; application code should not build records by hand.
type Record struct {
	ID     ID       `json:"id"`
	Name   string   `json:"name"`
	Scope  []string `json:"scope,omitempty"`
	Parent ID       `json:"parent,omitempty"`
	Left   int64    `json:"left"`
	Right  int64    `json:"right"`
}

// Node restores a Node from its record.
func (r Record) Node() *Node {
	return &Node{
		ID:     r.ID,
		Name:   r.Name,
		Scope:  NewScope(r.Scope...),
		parent: r.Parent,
		left:   r.Left,
		right:  r.Right,
	}
}

// Bounds assigns a boundary pair to a node. The rebuilder emits one per node.
type Bounds struct {
	ID    ID
	Left  int64
	Right int64
}
