// Package tui colours command output for terminals.
package tui

import (
	"io"
	"strings"

	"github.com/aretw0/arbor/internal/presentation/text"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// levelColors cycle by depth.
var levelColors = []string{"#22c55e", "#38bdf8", "#a78bfa", "#f472b6", "#fbbf24"}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// RenderTree renders nodes like text.Render, colouring the stars by depth,
// root labels in bold and the (parent, left, right) suffix faint.
func RenderTree(out *termenv.Output, nodes []*domain.Node, label text.LabelFunc) string {
	plain := text.Render(nodes, label)
	if plain == "" || out.Profile == termenv.Ascii {
		return plain
	}

	lines := strings.Split(plain, "\n")
	for i, line := range lines {
		lines[i] = colorLine(out, line)
	}
	return strings.Join(lines, "\n")
}

func colorLine(out *termenv.Output, line string) string {
	stars := len(line) - len(strings.TrimLeft(line, "*"))
	rest := strings.TrimPrefix(line[stars:], " ")

	name, suffix := rest, ""
	if i := strings.LastIndex(rest, " ("); i >= 0 {
		name, suffix = rest[:i], rest[i:]
	}

	color := out.Color(levelColors[(stars-1+len(levelColors))%len(levelColors)])
	label := out.String(name)
	if stars == 1 {
		label = label.Bold()
	}

	var sb strings.Builder
	sb.WriteString(out.String(line[:stars]).Foreground(color).String())
	sb.WriteByte(' ')
	sb.WriteString(label.String())
	sb.WriteString(out.String(suffix).Faint().String())
	return sb.String()
}
