package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphOverlay highlights nodes on the diagram.
type GraphOverlay struct {
	Selected []domain.ID
}

// GenerateMermaid produces a Mermaid flowchart (graph TD) for a scope given in preorder.
// Roots are drawn as stadiums, inner nodes as rectangles and leaves as rounded boxes.
// Each label carries the boundary pair; edges follow parent pointers.
func GenerateMermaid(nodes []*domain.Node, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	present := make(map[domain.ID]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}

	for _, n := range nodes {
		opener, closer := "[", "]"
		switch {
		case n.IsRoot():
			opener, closer = "([", "])" // Stadium
		case n.IsLeaf():
			opener, closer = "(", ")" // Rounded
		}

		name := strings.ReplaceAll(n.Name, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %d..%d\"%s\n", nodeID(n.ID), opener, name, n.Left(), n.Right(), closer))
	}

	for _, n := range nodes {
		if n.IsRoot() {
			continue
		}
		arrow := "-->"
		if !present[n.Parent()] {
			// Parent outside the rendered set (subtree export or corrupt data).
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", nodeID(n.Parent()), arrow, nodeID(n.ID)))
	}

	if overlay != nil && len(overlay.Selected) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[domain.ID]bool)
		for _, id := range overlay.Selected {
			if !seen[id] && present[id] {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s selected;\n", nodeID(id)))
			}
		}
	}

	return sb.String()
}

func nodeID(id domain.ID) string {
	return fmt.Sprintf("n%d", id)
}
