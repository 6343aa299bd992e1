package components

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name   string
	Key    rune
	KeyPos int // position of the shortcut letter in the name (-1 if not in name)
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Revenues", Key: 'v', KeyPos: 2},
	{Name: "Appropriations", Key: 'a', KeyPos: 0},
	{Name: "Departments", Key: 'd', KeyPos: 0},
	{Name: "Settings", Key: 'x', KeyPos: -1}, // x is not in "Settings"
}

// TabWidth is the rendered width of a tab, including padding.
func TabWidth(idx, activeIdx int) int {
	tab := Tabs[idx]
	w := lipgloss.Width(tab.Name) + 2
	if idx != activeIdx && tab.KeyPos < 0 {
		w += 3 // "[x]"
	}
	return w
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		Background(t.SurfaceHover).
		Bold(true)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	keyStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface).
		Bold(true)

	dimKeyStyle := lipgloss.NewStyle().
		Foreground(t.TextDim).
		Background(t.Surface)

	sepStyle := lipgloss.NewStyle().
		Foreground(t.Border).
		Background(t.Surface)

	var parts []string
	for i, tab := range Tabs {
		var rendered string
		switch {
		case i == activeIdx:
			rendered = activeStyle.Render(" " + tab.Name + " ")
		case tab.KeyPos >= 0 && tab.KeyPos < len(tab.Name):
			rendered = inactiveStyle.Render(" "+tab.Name[:tab.KeyPos]) +
				keyStyle.Render(string(tab.Name[tab.KeyPos])) +
				inactiveStyle.Render(tab.Name[tab.KeyPos+1:]+" ")
		default:
			rendered = inactiveStyle.Render(" "+tab.Name) +
				dimKeyStyle.Render("[") + keyStyle.Render(string(tab.Key)) + dimKeyStyle.Render("]") +
				inactiveStyle.Render(" ")
		}
		parts = append(parts, rendered)
	}

	bar := strings.Join(parts, sepStyle.Render("│"))
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(bar)
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
