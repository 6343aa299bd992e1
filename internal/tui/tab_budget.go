package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"
	"github.com/theirongolddev/cbudget/internal/view"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sortOrder struct {
	name string
	less func(a, b *model.GroupNode) bool
}

var sortOrders = []sortOrder{
	{"code", nil},
	{"actual", view.ByActualDesc},
	{"% used", view.ByRatioDesc},
}

// budgetState is one Revenues or Appropriations tab: two trees stacked, each
// headed by its root row.
type budgetState struct {
	tab    pipeline.Tab
	status loadStatus
	err    error
	data   *pipeline.TabData
	trees  [2]*view.Node

	cursor   int
	expanded map[string]bool
	sortIdx  int
}

// budgetRow is one selectable row. node is the tree root when root is set.
type budgetRow struct {
	tree int
	node *view.Node
	root bool
}

func newBudgetState(tab pipeline.Tab) budgetState {
	return budgetState{tab: tab, expanded: make(map[string]bool)}
}

func expandKey(tree int, id string) string {
	return fmt.Sprintf("%d:%s", tree, id)
}

// compose rebuilds both trees from the loaded data. Node IDs are derived from
// codes, so expansion survives a re-sort or reload.
func (b *budgetState) compose() {
	if b.data == nil {
		return
	}
	for i, vd := range b.data.Views {
		if vd == nil {
			b.trees[i] = nil
			continue
		}
		cfg := view.FromView(vd.View)
		cfg.Less = sortOrders[b.sortIdx].less
		b.trees[i] = view.Compose(vd.Root, cfg)
	}
	b.clampCursor()
}

func (b *budgetState) isExpanded(tree int, id string) bool {
	return b.expanded[expandKey(tree, id)]
}

func (b *budgetState) rows() []budgetRow {
	var rows []budgetRow
	for i, root := range b.trees {
		if root == nil {
			continue
		}
		rows = append(rows, budgetRow{tree: i, node: root, root: true})
		for _, n := range view.Flatten(root, func(id string) bool { return b.isExpanded(i, id) }) {
			rows = append(rows, budgetRow{tree: i, node: n})
		}
	}
	return rows
}

func (b *budgetState) clampCursor() {
	n := len(b.rows())
	if b.cursor >= n {
		b.cursor = n - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
}

func (b *budgetState) move(delta int) {
	b.cursor += delta
	b.clampCursor()
}

// toggle expands or collapses the row under the cursor. On a tree's root row
// it toggles every section in that tree.
func (b *budgetState) toggle() {
	rows := b.rows()
	if b.cursor >= len(rows) {
		return
	}
	r := rows[b.cursor]
	if r.root {
		b.setAll(r.tree, !b.anyExpanded(r.tree))
		return
	}
	n := r.node
	if n.Kind != view.Section || (len(n.Children) == 0 && !n.Empty) {
		return
	}
	k := expandKey(r.tree, n.ID)
	if b.expanded[k] {
		delete(b.expanded, k)
	} else {
		b.expanded[k] = true
	}
}

func (b *budgetState) anyExpanded(tree int) bool {
	prefix := expandKey(tree, "")
	for k := range b.expanded {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func (b *budgetState) setAll(tree int, open bool) {
	root := b.trees[tree]
	if root == nil {
		return
	}
	for _, c := range root.Children {
		c.Walk(func(n *view.Node) bool {
			if n.Kind != view.Section {
				return false
			}
			k := expandKey(tree, n.ID)
			if open {
				b.expanded[k] = true
			} else {
				delete(b.expanded, k)
			}
			return true
		})
	}
	b.clampCursor()
}

// toggleAll expands everything unless something is already expanded, in which
// case it collapses everything.
func (b *budgetState) toggleAll() {
	open := !b.anyExpanded(0) && !b.anyExpanded(1)
	b.setAll(0, open)
	b.setAll(1, open)
}

func (a App) updateBudgetKey(key string) (App, tea.Cmd, bool) {
	b := &a.budgets[a.activeTab]
	if b.status != statusLoaded {
		return a, nil, false
	}
	page := max(a.contentHeight()-2, 1)

	switch key {
	case "up", "k":
		b.move(-1)
	case "down", "j":
		b.move(1)
	case "pgup", "ctrl+u":
		b.move(-page)
	case "pgdown", "ctrl+d":
		b.move(page)
	case "g", "home":
		b.cursor = 0
	case "G", "end":
		b.cursor = len(b.rows()) - 1
		b.clampCursor()
	case "enter", " ":
		b.toggle()
	case "e":
		b.toggleAll()
	case "s":
		var current *view.Node
		if rows := b.rows(); b.cursor < len(rows) {
			current = rows[b.cursor].node
		}
		b.sortIdx = (b.sortIdx + 1) % len(sortOrders)
		b.compose()
		b.restoreCursor(current)
	default:
		return a, nil, false
	}
	return a, nil, true
}

// restoreCursor moves the cursor back onto the row that had it before a
// re-sort.
func (b *budgetState) restoreCursor(prev *view.Node) {
	if prev == nil {
		return
	}
	for i, r := range b.rows() {
		if r.node.ID == prev.ID && r.root == (prev.Depth == 0) && r.node.Label == prev.Label {
			b.cursor = i
			return
		}
	}
}

// budgetLines renders the tab and returns the line index of the cursor row.
func (a App) budgetLines(idx int) ([]string, int) {
	b := a.budgets[idx]
	switch b.status {
	case statusIdle, statusLoading:
		return loadingLines(a.spinner.View(), "Loading "+strings.ToLower(b.tab.Name)+"..."), 0
	case statusFailed:
		return errorLines(b.tab.Error, b.err), 0
	}

	w := a.contentWidth()
	compact := a.isCompactLayout()

	var lines []string
	if root := b.trees[0]; root != nil {
		summary := components.BudgetSummary(root.Actual, root.Adopted, w)
		lines = append(lines, strings.Split(summary, "\n")...)
	}
	if root := b.trees[1]; root != nil && !compact {
		if items := overspendItems(root, chartItems, a.titleCase); len(items) > 0 {
			chart := components.RatioChart(items, components.CardInnerWidth(w))
			card := components.ContentCard("Highest use of budget · "+root.Label, chart, w)
			lines = append(lines, strings.Split(card, "\n")...)
		}
	}

	muted := lipgloss.NewStyle().Foreground(theme.Active.TextMuted)
	cursorLine := 0
	for i, r := range b.rows() {
		if r.root && len(lines) > 0 {
			lines = append(lines, "")
		}
		if i == b.cursor {
			cursorLine = len(lines)
		}
		if r.root {
			lines = append(lines, renderRootRow(r.node, i == b.cursor, w))
			if len(r.node.Children) == 0 {
				lines = append(lines, "  "+muted.Render("No data"))
			}
			continue
		}
		expanded := b.isExpanded(r.tree, r.node.ID)
		lines = append(lines, renderNodeRow(r.node, rowState{
			selected: i == b.cursor,
			expanded: expanded,
			compact:  compact,
		}, w, a.titleCase))
		if r.node.Empty && expanded {
			indent := strings.Repeat("  ", r.node.Depth+1)
			lines = append(lines, indent+muted.Render("No budget lines found."))
		}
	}
	return lines, cursorLine
}

const chartItems = 5

// overspendItems picks the n top-level sections of root that have used the
// largest share of their adopted budget.
func overspendItems(root *view.Node, n int, titleCase bool) []components.ChartItem {
	secs := make([]*view.Node, 0, len(root.Children))
	for _, c := range root.Children {
		if c.Adopted != 0 {
			secs = append(secs, c)
		}
	}
	sort.SliceStable(secs, func(i, j int) bool { return secs[i].Bar.Ratio > secs[j].Bar.Ratio })
	if len(secs) > n {
		secs = secs[:n]
	}

	items := make([]components.ChartItem, len(secs))
	for i, s := range secs {
		label := s.Label
		if titleCase {
			label = cli.TitleCase(label)
		}
		items[i] = components.ChartItem{Label: label, Bar: s.Bar}
	}
	return items
}
