package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// deptsState is the Departments tab: a searchable list, and once a department
// is opened, its sub-group tree with drill-down lines.
type deptsState struct {
	status loadStatus
	err    error
	all    []model.Department
	cursor int

	search    textinput.Model
	searching bool

	open      *model.Department
	detail    loadStatus
	detailErr error
	tree      *view.Node
	collapsed map[string]bool
	dcursor   int
}

func newDeptsState() deptsState {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by code or name"
	ti.CharLimit = 64
	return deptsState{search: ti}
}

func (d *deptsState) visible() []model.Department {
	return pipeline.FilterDepartments(d.all, d.search.Value())
}

func (d *deptsState) clampCursor() {
	n := len(d.visible())
	if d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

// openDepartment shows dept and starts loading its detail.
func (d *deptsState) openDepartment(ctx context.Context, loader *pipeline.Loader, dept model.Department, tick tea.Cmd) tea.Cmd {
	d.open = &dept
	d.detail = statusLoading
	d.detailErr = nil
	d.tree = nil
	d.collapsed = make(map[string]bool)
	d.dcursor = 0
	return tea.Batch(loadDepartmentCmd(ctx, loader, dept), tick)
}

func (d *deptsState) close() {
	d.open = nil
	d.tree = nil
	d.detail = statusIdle
	d.detailErr = nil
}

func (d *deptsState) compose(data *pipeline.DepartmentData) {
	cfg := view.FromView(data.View)
	cfg.Title = data.Root.Label
	d.tree = view.Compose(data.Root, cfg)
	if d.collapsed == nil {
		d.collapsed = make(map[string]bool)
	}
	d.clampDetailCursor()
}

func (d *deptsState) isExpanded(id string) bool {
	return !d.collapsed[id]
}

// detailRows lists the open department's selectable rows. Sub-groups start
// expanded.
func (d *deptsState) detailRows() []*view.Node {
	if d.tree == nil {
		return nil
	}
	return view.Flatten(d.tree, d.isExpanded)
}

// lineKeys returns the drill-down keys of the visible lines.
func (d *deptsState) lineKeys() []drilldown.RowKey {
	var keys []drilldown.RowKey
	for _, n := range d.detailRows() {
		if n.Detail != nil {
			keys = append(keys, *n.Detail)
		}
	}
	return keys
}

func (d *deptsState) clampDetailCursor() {
	n := len(d.detailRows())
	if d.dcursor >= n {
		d.dcursor = n - 1
	}
	if d.dcursor < 0 {
		d.dcursor = 0
	}
}

func (d *deptsState) move(delta int) {
	if d.open != nil {
		d.dcursor += delta
		d.clampDetailCursor()
		return
	}
	d.cursor += delta
	d.clampCursor()
}

func (a App) updateDepartmentSearch(msg tea.KeyMsg) (App, tea.Cmd) {
	d := &a.depts
	switch msg.String() {
	case "esc":
		d.searching = false
		d.search.Blur()
		d.search.SetValue("")
		d.clampCursor()
		return a, nil
	case "enter":
		d.searching = false
		d.search.Blur()
		return a, nil
	case "up", "down":
		if msg.String() == "up" {
			d.move(-1)
		} else {
			d.move(1)
		}
		return a, nil
	}

	var cmd tea.Cmd
	d.search, cmd = d.search.Update(msg)
	d.cursor = 0
	return a, cmd
}

func (a App) updateDepartmentsKey(key string) (App, tea.Cmd, bool) {
	d := &a.depts
	if d.open != nil {
		return a.updateDepartmentDetailKey(key)
	}
	if d.status != statusLoaded {
		return a, nil, false
	}
	page := max(a.contentHeight()-2, 1)

	switch key {
	case "up", "k":
		d.move(-1)
	case "down", "j":
		d.move(1)
	case "pgup", "ctrl+u":
		d.move(-page)
	case "pgdown", "ctrl+d":
		d.move(page)
	case "g", "home":
		d.cursor = 0
	case "G", "end":
		d.cursor = len(d.visible()) - 1
		d.clampCursor()
	case "/":
		d.searching = true
		return a, d.search.Focus(), true
	case "esc":
		if d.search.Value() == "" {
			return a, nil, false
		}
		d.search.SetValue("")
		d.clampCursor()
	case "enter", " ":
		vis := d.visible()
		if d.cursor >= len(vis) {
			return a, nil, true
		}
		return a, d.openDepartment(a.ctx, a.loader, vis[d.cursor], a.spinner.Tick), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func (a App) updateDepartmentDetailKey(key string) (App, tea.Cmd, bool) {
	d := &a.depts
	switch key {
	case "esc", "backspace":
		d.close()
		return a, nil, true
	}
	if d.detail != statusLoaded {
		return a, nil, false
	}
	page := max(a.contentHeight()-2, 1)

	switch key {
	case "up", "k":
		d.move(-1)
	case "down", "j":
		d.move(1)
	case "pgup", "ctrl+u":
		d.move(-page)
	case "pgdown", "ctrl+d":
		d.move(page)
	case "g", "home":
		d.dcursor = 0
	case "G", "end":
		d.dcursor = len(d.detailRows()) - 1
		d.clampDetailCursor()
	case "e":
		// Collapse every sub-group unless all are collapsed already.
		anyOpen := false
		for _, n := range d.tree.Children {
			if d.isExpanded(n.ID) {
				anyOpen = true
			}
		}
		for _, n := range d.tree.Children {
			d.collapsed[n.ID] = anyOpen
		}
		d.clampDetailCursor()
	case "enter", " ":
		rows := d.detailRows()
		if d.dcursor >= len(rows) {
			return a, nil, true
		}
		n := rows[d.dcursor]
		switch {
		case n.Kind == view.Section:
			d.collapsed[n.ID] = d.isExpanded(n.ID)
			d.clampDetailCursor()
		case n.Detail != nil:
			if load := a.ctrl.Toggle(*n.Detail); load != nil {
				return a, tea.Batch(detailCmd(a.ctx, load), a.spinner.Tick), true
			}
		}
	default:
		return a, nil, false
	}
	return a, nil, true
}

// departmentLines renders the tab and returns the line index of the cursor row.
func (a App) departmentLines() ([]string, int) {
	d := a.depts
	if d.open != nil {
		return a.departmentDetailLines()
	}

	switch d.status {
	case statusIdle, statusLoading:
		return loadingLines(a.spinner.View(), "Loading departments..."), 0
	case statusFailed:
		return errorLines("Failed to load departments.", d.err), 0
	}

	t := theme.Active
	w := a.contentWidth()
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	codeStyle := lipgloss.NewStyle().Foreground(t.TextDim)
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Background(t.SurfaceHover).Width(w)

	var lines []string
	if d.searching || d.search.Value() != "" {
		lines = append(lines, " "+d.search.View())
	} else {
		lines = append(lines, " "+muted.Render(fmt.Sprintf("%d departments · / to search", len(d.all))))
	}
	lines = append(lines, "")

	vis := d.visible()
	if len(vis) == 0 {
		lines = append(lines, "  "+muted.Render("No departments match."))
		return lines, 0
	}

	cursorLine := 0
	for i, dept := range vis {
		name := dept.Name
		if a.titleCase {
			name = cli.TitleCase(name)
		}
		row := "  " + codeStyle.Render(fmt.Sprintf("%-6s", dept.Code)) + " " + nameStyle.Render(truncStr(name, w-12))
		if i == d.cursor {
			cursorLine = len(lines)
			row = selStyle.Render("▸ " + strings.TrimPrefix(row, "  "))
		}
		lines = append(lines, row)
	}
	return lines, cursorLine
}

func (a App) departmentDetailLines() ([]string, int) {
	d := a.depts
	switch d.detail {
	case statusIdle, statusLoading:
		return loadingLines(a.spinner.View(), "Loading "+d.open.Name+"..."), 0
	case statusFailed:
		return errorLines("Failed to load department details.", d.detailErr), 0
	}

	w := a.contentWidth()
	muted := lipgloss.NewStyle().Foreground(theme.Active.TextMuted)

	summary := components.BudgetSummary(d.tree.Actual, d.tree.Adopted, w)
	lines := strings.Split(summary, "\n")
	lines = append(lines, "", renderRootRow(d.tree, false, w))
	if len(d.tree.Children) == 0 {
		lines = append(lines, "  "+muted.Render("No data"))
		return lines, 0
	}

	cursorLine := 0
	for i, n := range d.detailRows() {
		if i == d.dcursor {
			cursorLine = len(lines)
		}
		st := rowState{selected: i == d.dcursor, compact: a.isCompactLayout()}
		var row drilldown.Row
		switch {
		case n.Kind == view.Section:
			st.expanded = d.isExpanded(n.ID)
		case n.Detail != nil:
			row = a.ctrl.State(*n.Detail)
			st.expanded = row.Visible()
		}
		lines = append(lines, renderNodeRow(n, st, w, a.titleCase))

		switch {
		case n.Kind == view.Section && n.Empty && st.expanded:
			lines = append(lines, strings.Repeat("  ", n.Depth+1)+muted.Render("No budget lines found."))
		case n.Detail != nil && row.Visible():
			lines = append(lines, renderDetail(row, n.Depth, a.spinner.View(), a.titleCase)...)
		}
	}
	return lines, cursorLine
}
