package tui

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/source"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

type fakeSource struct {
	records   []model.BudgetRecord
	subGroups []model.Segment
	depts     []model.Department
	employees []model.Employee
}

func (f *fakeSource) FetchBudget(context.Context, soql.Query, source.Kind) ([]model.BudgetRecord, error) {
	return f.records, nil
}

func (f *fakeSource) FetchEmployees(context.Context, soql.Query) ([]model.Employee, error) {
	return f.employees, nil
}

func (f *fakeSource) FetchVendors(context.Context, soql.Query) ([]model.VendorExpense, error) {
	return nil, nil
}

func (f *fakeSource) FetchDepartments(context.Context, soql.Query) ([]model.Department, error) {
	return f.depts, nil
}

func (f *fakeSource) FetchSubGroups(context.Context, soql.Query) ([]model.Segment, error) {
	return f.subGroups, nil
}

var (
	police = model.Department{Code: "10", Name: "POLICE"}
	fire   = model.Department{Code: "20", Name: "FIRE"}
)

func testSource() *fakeSource {
	return &fakeSource{
		records: []model.BudgetRecord{
			{
				Type:         model.Segment{Code: "R1", Name: "TAXES"},
				Department:   model.Segment{Code: police.Code, Name: police.Name},
				SubGroup:     model.Segment{Code: "100", Name: "PATROL"},
				Organization: "ORG1",
				Object:       model.Segment{Code: "400", Name: "PROPERTY TAX"},
				ActualToDate: 120, AdoptedBudget: 100,
			},
			{
				Type:         model.Segment{Code: "R2", Name: "FEES"},
				Department:   model.Segment{Code: fire.Code, Name: fire.Name},
				SubGroup:     model.Segment{Code: "200", Name: "SUPPRESSION"},
				Organization: "ORG2",
				Object:       model.Segment{Code: "410", Name: "PERMITS"},
				ActualToDate: 50, AdoptedBudget: 100,
			},
		},
		subGroups: []model.Segment{{Code: "100", Name: "PATROL"}, {Code: "150", Name: "TRAINING"}},
		depts:     []model.Department{police, fire},
		employees: []model.Employee{{ID: "E1", FirstName: "Jane", LastName: "Doe", Position: "Officer", TotalPay: 1000}},
	}
}

func newTestApp(t *testing.T, src *fakeSource) (App, *pipeline.Loader) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	loader := pipeline.NewLoader(src, pipeline.DefaultDatasets, soql.Context{FiscalYear: "2025"})
	a := NewApp(context.Background(), loader, Options{Config: config.DefaultConfig()})
	return send(t, a, tea.WindowSizeMsg{Width: 140, Height: 40}), loader
}

func send(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	next, ok := m.(App)
	require.True(t, ok)
	return next
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func press(t *testing.T, a App, keys ...string) App {
	t.Helper()
	for _, k := range keys {
		a = send(t, a, keyMsg(k))
	}
	return a
}

// runCmd executes cmd and any batched commands, returning every message produced.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := 0
		for i := range components.Tabs {
			w := components.TabWidth(i, active)
			x := pos + w/2
			assert.Equal(t, i, a.tabAtX(x), "active=%d x=%d", active, x)
			pos += w + 1
		}
		assert.Equal(t, -1, a.tabAtX(pos+50))
	}
}

func TestBudgetTab_LoadExpandAndSort(t *testing.T) {
	a, loader := newTestApp(t, testSource())
	a = send(t, a, loadTabCmd(context.Background(), loader, tabRevenues, pipeline.RevenuesTab)())

	b := a.budgets[tabRevenues]
	require.Equal(t, statusLoaded, b.status)
	// root, TAXES, FEES, root, POLICE, FIRE
	assert.Len(t, b.rows(), 6)

	a = press(t, a, "down", "enter")
	b = a.budgets[tabRevenues]
	assert.Equal(t, 1, b.cursor)
	assert.Len(t, b.rows(), 7)

	lines, cursor := a.budgetLines(tabRevenues)
	out := strings.Join(lines, "\n")
	assert.Contains(t, out, "Revenues by Source")
	assert.Contains(t, out, "PROPERTY TAX")
	assert.Contains(t, lines[cursor], "TAXES")
	assert.Contains(t, out, "Highest use of budget")

	a = press(t, a, "s")
	assert.Equal(t, 1, a.budgets[tabRevenues].sortIdx)
	assert.Len(t, a.budgets[tabRevenues].rows(), 7, "expansion survives a re-sort")
	lines, cursor = a.budgetLines(tabRevenues)
	assert.Contains(t, lines[cursor], "TAXES", "cursor follows its row")
}

func TestBudgetTab_ExpandAll(t *testing.T) {
	a, loader := newTestApp(t, testSource())
	a = send(t, a, loadTabCmd(context.Background(), loader, tabRevenues, pipeline.RevenuesTab)())

	a = press(t, a, "e")
	// Both trees fully open: each section shows its one line.
	assert.Len(t, a.budgets[tabRevenues].rows(), 10)

	a = press(t, a, "e")
	assert.Len(t, a.budgets[tabRevenues].rows(), 6)
}

func TestBudgetTab_LoadFailure(t *testing.T) {
	a, _ := newTestApp(t, testSource())
	a = press(t, a, "a")
	require.Equal(t, tabAppropriations, a.activeTab)
	assert.Equal(t, statusLoading, a.budgets[tabAppropriations].status)

	a = send(t, a, tabLoadedMsg{idx: tabAppropriations, err: errors.New("boom")})
	lines, _ := a.budgetLines(tabAppropriations)
	out := strings.Join(lines, "\n")
	assert.Contains(t, out, "Failed to load appropriations data")
	assert.Contains(t, out, "boom")
}

func TestDepartmentsTab_SearchOpenAndDrillDown(t *testing.T) {
	src := testSource()
	src.records = src.records[:1] // POLICE only
	a, loader := newTestApp(t, src)

	a = press(t, a, "d")
	require.Equal(t, tabDepartments, a.activeTab)
	a = send(t, a, loadDepartmentsCmd(context.Background(), loader)())
	assert.Len(t, a.depts.visible(), 2)

	a = press(t, a, "/", "f", "i", "r")
	assert.Equal(t, []model.Department{fire}, a.depts.visible())
	a = press(t, a, "esc")
	assert.False(t, a.depts.searching)
	assert.Len(t, a.depts.visible(), 2)

	m, cmd := a.Update(keyMsg("enter"))
	a = m.(App)
	require.NotNil(t, a.depts.open)
	assert.Equal(t, police, *a.depts.open)
	for _, msg := range runCmd(cmd) {
		a = send(t, a, msg)
	}
	require.Equal(t, statusLoaded, a.depts.detail)

	// PATROL with its line, then the empty TRAINING sub-group.
	rows := a.depts.detailRows()
	require.Len(t, rows, 3)
	assert.Equal(t, "PROPERTY TAX", rows[1].Label)
	assert.True(t, rows[2].Empty)

	lines, _ := a.departmentLines()
	assert.Contains(t, strings.Join(lines, "\n"), "No budget lines found.")

	m, cmd = press(t, a, "down").Update(keyMsg("enter"))
	a = m.(App)
	key := *rows[1].Detail
	assert.Equal(t, drilldown.Loading, a.ctrl.State(key).Status)
	assert.True(t, a.anyLoading())

	for _, msg := range runCmd(cmd) {
		a = send(t, a, msg)
	}
	assert.Equal(t, drilldown.Loaded, a.ctrl.State(key).Status)
	lines, _ = a.departmentLines()
	assert.Contains(t, strings.Join(lines, "\n"), "Jane Doe · Officer")

	// Collapse and expand again: served from cache, no new fetch.
	a = press(t, a, "enter")
	assert.Equal(t, drilldown.Collapsed, a.ctrl.State(key).Status)
	m, cmd = a.Update(keyMsg("enter"))
	a = m.(App)
	assert.Nil(t, cmd)
	assert.Equal(t, drilldown.Loaded, a.ctrl.State(key).Status)
	assert.Equal(t, 1, a.ctrl.Fetches())

	a = press(t, a, "esc")
	assert.Nil(t, a.depts.open)
}

func TestDepartmentsTab_IgnoresStaleDetail(t *testing.T) {
	a, loader := newTestApp(t, testSource())
	a = press(t, a, "d")
	a = send(t, a, loadDepartmentsCmd(context.Background(), loader)())
	a = press(t, a, "enter")
	require.NotNil(t, a.depts.open)

	a = send(t, a, departmentLoadedMsg{dept: fire, data: &pipeline.DepartmentData{Department: fire}})
	assert.Equal(t, statusLoading, a.depts.detail)
	assert.Nil(t, a.depts.tree)

	a = send(t, a, departmentLoadedMsg{dept: police, err: errors.New("timeout")})
	lines, _ := a.departmentLines()
	assert.Contains(t, strings.Join(lines, "\n"), "Failed to load department details.")
}

func TestSettingsTab_EditTheme(t *testing.T) {
	t.Cleanup(func() { theme.SetActive("flexoki-dark") })
	a, _ := newTestApp(t, testSource())

	a = press(t, a, "x")
	require.Equal(t, tabSettings, a.activeTab)
	for i := 0; i < settingsFieldTheme; i++ {
		a = press(t, a, "j")
	}
	a = press(t, a, "enter")
	require.True(t, a.settings.editing)

	a.settings.input.SetValue("terminal")
	a = press(t, a, "enter")
	require.NoError(t, a.settings.saveErr)
	assert.True(t, a.settings.saved)
	assert.False(t, a.settings.restartNeeded)
	assert.Equal(t, "terminal", theme.Active.Name)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "terminal", cfg.Appearance.Theme)
}

func TestSettingsTab_RejectsUnknownTheme(t *testing.T) {
	a, _ := newTestApp(t, testSource())
	a = press(t, a, "x")
	for i := 0; i < settingsFieldTheme; i++ {
		a = press(t, a, "j")
	}
	a = press(t, a, "enter")
	a.settings.input.SetValue("solarized")
	a = press(t, a, "enter")
	assert.Error(t, a.settings.saveErr)
	assert.False(t, config.Exists())
}

func TestHelpToggle(t *testing.T) {
	a, _ := newTestApp(t, testSource())
	a = press(t, a, "?")
	assert.True(t, a.showHelp)
	assert.Contains(t, a.View(), "Keyboard Shortcuts")
	a = press(t, a, "j")
	assert.False(t, a.showHelp)
}

func TestViewTooNarrow(t *testing.T) {
	a, _ := newTestApp(t, testSource())
	a = send(t, a, tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Contains(t, a.View(), "Terminal too narrow")
}

func TestOverspendItems(t *testing.T) {
	a, loader := newTestApp(t, testSource())
	a = send(t, a, loadTabCmd(context.Background(), loader, tabRevenues, pipeline.RevenuesTab)())

	items := overspendItems(a.budgets[tabRevenues].trees[1], 1, false)
	require.Len(t, items, 1)
	assert.Equal(t, "POLICE", items[0].Label)
	assert.True(t, items[0].Bar.OverBudget)
}
