package cli

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorYellow    = lipgloss.Color("#D0A215")
	ColorCyan      = lipgloss.Color("#24B3A8")
)

// Severity colors, escalating with the overage tier.
var tierColors = [...]lipgloss.Color{
	overage.TierNormal: ColorCyan,
	overage.TierSlight: lipgloss.Color("#FF8000"),
	overage.TierOver:   lipgloss.Color("#FF4000"),
	overage.TierHigh:   lipgloss.Color("#FF0000"),
	overage.TierSevere: lipgloss.Color("#800000"),
}

// TierColor returns the bar color for a severity tier.
func TierColor(t overage.Tier) lipgloss.Color {
	if int(t) < 0 || int(t) >= len(tierColors) {
		return ColorCyan
	}
	return tierColors[t]
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	overStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorRed)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	employeeStyle = lipgloss.NewStyle().
			Foreground(ColorCyan)

	vendorStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)
)

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(64).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderError renders a one-line failure message.
func RenderError(msg string) string {
	return errorStyle.Render(msg)
}

// Align is the horizontal alignment of a table column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Align per column; missing entries default to left.
	Align []Align
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	numCols := len(t.Headers)
	for _, row := range t.Rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}
	if numCols == 0 {
		return ""
	}

	widths := make([]int, numCols)
	measure := func(cells []string) {
		for i, c := range cells {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		measure(row)
	}

	rule := func(left, mid, right string) string {
		parts := make([]string, numCols)
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return dimStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
	}
	line := func(cells []string, style lipgloss.Style) string {
		var b strings.Builder
		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i < len(t.Align) && t.Align[i] == AlignRight {
				cell = pad + cell
			} else {
				cell += pad
			}
			b.WriteString(style.Render(" " + cell + " "))
			b.WriteString(dimStyle.Render("│"))
		}
		b.WriteString("\n")
		return b.String()
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}
	b.WriteString(rule("╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(t.Headers, headerStyle))
		b.WriteString(rule("├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		b.WriteString(line(row, valueStyle))
	}
	b.WriteString(rule("╰", "┴", "╯"))
	return b.String()
}

// maxBarLayers is how many overflow layers a text bar draws before summarizing.
const maxBarLayers = 3

// RenderBar renders a text budget bar: the base fill, then one short segment
// per overflow layer, colored by severity tier.
func RenderBar(d overage.Description, width int) string {
	if width < 4 {
		width = 4
	}
	fill := lipgloss.NewStyle().Foreground(TierColor(d.Tier))

	filled := int(d.BaseFillPercent / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	base := fill.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
	if d.Glow {
		base = lipgloss.NewStyle().Bold(true).Render(base)
	}

	var b strings.Builder
	b.WriteString(dimStyle.Render("▕"))
	b.WriteString(base)
	b.WriteString(dimStyle.Render("▏"))

	layerWidth := width / 2
	for i, l := range d.Layers {
		if i == maxBarLayers {
			b.WriteString(mutedStyle.Render(fmt.Sprintf(" +%d", len(d.Layers)-maxBarLayers)))
			break
		}
		n := int(l / 100 * float64(layerWidth))
		if n < 1 {
			n = 1
		}
		b.WriteString(fill.Render("▐" + strings.Repeat("█", n-1)))
	}
	return b.String()
}

// TreeOptions controls RenderTree.
type TreeOptions struct {
	// Expanded reports whether a section shows its children. Nil expands all.
	Expanded func(id string) bool
	// Detail returns lines to show beneath a line node, if any.
	Detail   func(n *view.Node) []string
	BarWidth int
	// TitleCase converts upper-case labels for display.
	TitleCase bool
}

// RenderTree renders a composed view as a lipgloss tree.
func RenderTree(root *view.Node, opts TreeOptions) string {
	if opts.BarWidth == 0 {
		opts.BarWidth = 20
	}

	t := tree.Root(headerStyle.Render(root.Label) + "  " + mutedStyle.Render(BarLabel(root.Actual, root.Adopted))).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(dimStyle)

	if len(root.Children) == 0 {
		t.Child(mutedStyle.Render("No data"))
		return t.String()
	}
	addChildren(t, root, opts)
	return t.String()
}

func addChildren(t *tree.Tree, n *view.Node, opts TreeOptions) {
	for _, c := range n.Children {
		label := nodeLabel(c, opts)

		var kids []any
		switch {
		case c.Kind == view.Line:
			if opts.Detail != nil {
				for _, l := range opts.Detail(c) {
					kids = append(kids, l)
				}
			}
		case opts.Expanded != nil && !opts.Expanded(c.ID):
		case c.Empty:
			kids = append(kids, mutedStyle.Render("No budget lines found."))
		}

		if len(kids) > 0 {
			t.Child(tree.Root(label).Child(kids...).Enumerator(tree.RoundedEnumerator).EnumeratorStyle(dimStyle))
			continue
		}
		if c.Kind == view.Section && len(c.Children) > 0 && (opts.Expanded == nil || opts.Expanded(c.ID)) {
			sub := tree.Root(label).Enumerator(tree.RoundedEnumerator).EnumeratorStyle(dimStyle)
			addChildren(sub, c, opts)
			t.Child(sub)
			continue
		}
		t.Child(label)
	}
}

func nodeLabel(n *view.Node, opts TreeOptions) string {
	label := n.Label
	if opts.TitleCase {
		label = TitleCase(label)
	}
	if n.Kind == view.Section {
		label = valueStyle.Bold(true).Render(label)
	} else {
		label = valueStyle.Render(label)
	}

	money := fmt.Sprintf("%s / %s", FormatMoney(n.Actual), FormatMoney(n.Adopted))
	pct := FormatRatio(n.Bar)
	s := fmt.Sprintf("%s %s  %s  %s %s",
		dimStyle.Render(n.Code), label, mutedStyle.Render(money), RenderBar(n.Bar, opts.BarWidth), pct)
	if n.Bar.OverBudget {
		s += " " + overStyle.Render("OVER BUDGET")
	}
	return s
}

// DetailLines renders a drill-down row's detail slot as plain lines.
func DetailLines(row drilldown.Row, titleCase bool) []string {
	switch row.Status {
	case drilldown.Collapsed:
		return nil
	case drilldown.Loading:
		return []string{mutedStyle.Render(row.Message())}
	case drilldown.Error:
		return []string{errorStyle.Render(row.Message()), dimStyle.Render("Expand the line again to retry.")}
	}

	if msg := row.Message(); msg != "" {
		return []string{mutedStyle.Render(msg)}
	}

	name := func(s string) string {
		if titleCase {
			return TitleCase(s)
		}
		return s
	}

	var lines []string
	if len(row.Detail.Employees) > 0 {
		lines = append(lines, employeeStyle.Render("Employees:"))
		for _, e := range row.Detail.Employees {
			lines = append(lines, fmt.Sprintf("  %s · %s · %s",
				name(e.FullName()), name(e.Position), FormatMoney(e.TotalPay)))
		}
	}
	if len(row.Detail.VendorExpenses) > 0 {
		lines = append(lines, vendorStyle.Render("Vendor Expenses:"))
		for _, v := range row.Detail.VendorExpenses {
			lines = append(lines, fmt.Sprintf("  %s · %s · %s",
				v.Vendor, v.Description, FormatMoney(v.Actual)))
		}
	}
	return lines
}
