package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/charmbracelet/lipgloss"
)

// rowState is how one tree row should be drawn.
type rowState struct {
	selected bool
	expanded bool
	compact  bool
}

const (
	barWidth       = 12
	amountWidth    = 16
	compactAmountW = 9
	pctWidth       = 10
	minLabelWidth  = 16
)

// renderNodeRow draws one section or line: marker, code and label, actual and
// adopted amounts, the budget bar and the percent label.
func renderNodeRow(n *view.Node, st rowState, width int, titleCase bool) string {
	t := theme.Active

	bg := t.Surface
	if st.selected {
		bg = t.SurfaceHover
	}
	textStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(bg)
	codeStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(bg)
	markerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(bg)
	amountStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(bg)
	if n.Kind == view.Section {
		textStyle = textStyle.Bold(true)
	}
	if n.Bar.Shadow {
		amountStyle = amountStyle.Foreground(t.TextPrimary)
	}

	marker := "  "
	switch {
	case n.Kind == view.Section && len(n.Children) == 0 && !n.Empty:
	case n.Kind == view.Section && st.expanded:
		marker = "▾ "
	case n.Kind == view.Section:
		marker = "▸ "
	case n.Detail != nil && st.expanded:
		marker = "− "
	case n.Detail != nil:
		marker = "+ "
	}

	label := n.Label
	if titleCase {
		label = cli.TitleCase(label)
	}

	amtW := amountWidth
	money := cli.FormatMoney
	if st.compact {
		amtW = compactAmountW
		money = cli.FormatMoneyShort
	}
	barCol := components.BarWidthFor(barWidth)
	labelW := width - 2*(amtW+1) - barCol - pctWidth - 2
	if labelW < minLabelWidth {
		labelW = minLabelWidth
	}

	indent := strings.Repeat("  ", max(n.Depth-1, 0))
	head := indent + marker
	codeW := lipgloss.Width(n.Code)
	text := truncStr(label, labelW-lipgloss.Width(head)-codeW-1)
	pad := labelW - lipgloss.Width(head) - codeW - 1 - lipgloss.Width(text)
	if pad < 0 {
		pad = 0
	}

	var b strings.Builder
	b.WriteString(markerStyle.Render(head))
	b.WriteString(codeStyle.Render(n.Code + " "))
	b.WriteString(textStyle.Render(text + strings.Repeat(" ", pad)))
	b.WriteString(amountStyle.Render(fmt.Sprintf(" %*s %*s ", amtW, money(n.Actual), amtW, money(n.Adopted))))
	b.WriteString(lipgloss.NewStyle().Width(barCol).Background(bg).Render(components.BudgetBar(n.Bar, barWidth)))
	b.WriteString(lipgloss.NewStyle().Background(bg).Render(" "))
	b.WriteString(components.PercentLabel(n.Bar))
	return b.String()
}

// renderRootRow draws a view's title with its totals.
func renderRootRow(n *view.Node, selected bool, width int) string {
	t := theme.Active
	bg := t.Background
	if selected {
		bg = t.SurfaceHover
	}
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(bg).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(bg)

	line := title.Render("◈ "+n.Label) + muted.Render("  "+cli.BarLabel(n.Actual, n.Adopted))
	return lipgloss.NewStyle().Background(bg).Width(width).Render(line)
}

// renderDetail draws a drill-down row's detail slot beneath its line.
func renderDetail(row drilldown.Row, depth int, spin string, titleCase bool) []string {
	t := theme.Active
	indent := strings.Repeat("  ", depth+1)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)

	if row.Status == drilldown.Loading {
		return []string{indent + spin + " " + muted.Render(row.Message())}
	}
	lines := cli.DetailLines(row, titleCase)
	for i, l := range lines {
		lines[i] = indent + l
	}
	return lines
}

// truncStr shortens s to limit display cells, marking the cut with "…".
func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > limit {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
