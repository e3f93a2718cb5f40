// Package text renders nested set nodes as indented diagnostic text.
package text

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// LabelFunc returns the label printed for a node.
type LabelFunc func(n *domain.Node) string

// NameLabel prints the node name, or "Node" when it has none.
func NameLabel(n *domain.Node) string {
	if n.Name == "" {
		return "Node"
	}
	return n.Name
}

// Render prints one line per node, in the given (preorder) order:
//
//	* Top Level (nil, 1, 10)
//	** Child 1 (1, 2, 3)
//
// The number of stars is level+1, derived from interval containment. Render never
// fails: corrupt or unnumbered nodes are printed at the level the intervals suggest.
func Render(nodes []*domain.Node, label LabelFunc) string {
	if label == nil {
		label = NameLabel
	}

	var sb strings.Builder
	var open []int64 // right boundaries of the enclosing nodes
	for i, n := range nodes {
		for len(open) > 0 && (n.Left() == 0 || open[len(open)-1] < n.Left()) {
			open = open[:len(open)-1]
		}
		level := len(open)
		if n.Right() > n.Left() {
			open = append(open, n.Right())
		}

		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Repeat("*", level+1))
		sb.WriteByte(' ')
		sb.WriteString(label(n))
		fmt.Fprintf(&sb, " (%s, %d, %d)", parentLabel(n), n.Left(), n.Right())
	}
	return sb.String()
}

func parentLabel(n *domain.Node) string {
	if n.IsRoot() {
		return "nil"
	}
	return strconv.FormatInt(int64(n.Parent()), 10)
}
