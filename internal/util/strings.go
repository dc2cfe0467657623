// Package util holds small rendering helpers shared by the CLI commands.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks a line cut to fit the terminal.
const Ellipsis = "…"

// FitWidth cuts s to width visual columns, keeping escape sequences intact
// and ending a cut line with Ellipsis. A width of zero or less means the
// terminal width is unknown and s is returned as is.
func FitWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	if width == 1 {
		return Ellipsis
	}
	return ansi.Truncate(s, width, Ellipsis)
}

// Plain removes escape sequences and the control characters a child's
// output may carry, leaving text safe for a non-terminal writer. Tabs are
// kept.
func Plain(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
