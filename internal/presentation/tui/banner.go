package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arbor banner to w, coloured when w is a terminal.
func PrintBanner(w io.Writer) {
	out := NewOutput(w)
	lines := []struct{ text, color string }{
		{"   __ _ _ __| |__   ___  _ __ ", "#86efac"},
		{"  / _` | '__| '_ \\ / _ \\| '__|", "#4ade80"},
		{" | (_| | |  | |_) | (_) | |   ", "#22c55e"},
		{"  \\__,_|_|  |_.__/ \\___/|_|   ", "#16a34a"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// NewOutput returns a termenv output for w. Anything that is not a terminal
// gets the ASCII profile, so pipes and files never receive escape codes.
func NewOutput(w io.Writer) *termenv.Output {
	if !IsTerminal(w) {
		return termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return termenv.NewOutput(w)
}
