package components

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom status bar: key hints on the left and
// the filter context and request count on the right.
func RenderStatusBar(width int, hints, info string) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width)

	left := " " + hints
	right := info + " "

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		return style.Render(left)
	}
	return style.Render(left + strings.Repeat(" ", padding) + right)
}
