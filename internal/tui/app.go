// Package tui provides the interactive Bubble Tea dashboard for cbudget.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
)

// tabLoadedMsg is sent when both views of a budget tab finish loading.
type tabLoadedMsg struct {
	idx  int
	data *pipeline.TabData
	err  error
}

// departmentsLoadedMsg is sent when the department list finishes loading.
type departmentsLoadedMsg struct {
	depts []model.Department
	err   error
}

// departmentLoadedMsg is sent when one department's detail finishes loading.
type departmentLoadedMsg struct {
	dept model.Department
	data *pipeline.DepartmentData
	err  error
}

// detailLoadedMsg carries a finished drill-down fetch back to the owner.
type detailLoadedMsg struct {
	res drilldown.Result
}

type loadStatus int

const (
	statusIdle loadStatus = iota
	statusLoading
	statusLoaded
	statusFailed
)

const (
	tabRevenues = iota
	tabAppropriations
	tabDepartments
	tabSettings
)

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5
)

// Options configures NewApp.
type Options struct {
	Config    config.Config
	TitleCase bool
	// NeedSetup opens the setup form before the dashboard.
	NeedSetup bool
}

// App is the root Bubble Tea model.
type App struct {
	ctx    context.Context
	loader *pipeline.Loader
	ctrl   *drilldown.Controller
	cfg    config.Config
	filter soql.Context

	titleCase bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	// Per-tab state
	budgets  [2]budgetState
	depts    deptsState
	settings settingsState

	// Setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	spinner  spinner.Model
	viewport viewport.Model
}

// NewApp creates the dashboard. Loads run on ctx; cancelling it abandons them.
func NewApp(ctx context.Context, loader *pipeline.Loader, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	a := App{
		ctx:       ctx,
		loader:    loader,
		ctrl:      drilldown.New(loader, drilldown.WithMaxInFlight(opts.Config.DrillDown.MaxInFlight)),
		cfg:       opts.Config,
		filter:    loader.Filter(),
		titleCase: opts.TitleCase,
		budgets: [2]budgetState{
			newBudgetState(pipeline.RevenuesTab),
			newBudgetState(pipeline.AppropriationsTab),
		},
		depts:     newDeptsState(),
		needSetup: opts.NeedSetup,
		spinner:   sp,
		viewport:  viewport.New(minTerminalWidth, minContentHeight),
	}
	if a.needSetup {
		a.openSetup()
	}
	return a
}

// Init implements tea.Model. Only the first tab loads up front; the others
// load on first activation.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		a.spinner.Tick,
		loadTabCmd(a.ctx, a.loader, tabRevenues, a.budgets[tabRevenues].tab),
	}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Init already issued the first tab's load.
	if a.budgets[tabRevenues].status == statusIdle {
		a.budgets[tabRevenues].status = statusLoading
	}

	next, cmd := a.update(msg)
	next.syncViewport()
	return next, cmd
}

func (a App) update(msg tea.Msg) (App, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if a.showHelp || a.setupForm != nil {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.moveCursor(-1)
		case tea.MouseButtonWheelDown:
			a.moveCursor(1)
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					return a, a.activate(tab)
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case tabLoadedMsg:
		b := &a.budgets[msg.idx]
		if msg.err != nil {
			b.status = statusFailed
			b.err = msg.err
			log.WithError(msg.err).Warn("tui: tab load failed")
			return a, nil
		}
		b.status = statusLoaded
		b.err = nil
		b.data = msg.data
		b.compose()
		return a, nil

	case departmentsLoadedMsg:
		if msg.err != nil {
			a.depts.status = statusFailed
			a.depts.err = msg.err
			return a, nil
		}
		a.depts.status = statusLoaded
		a.depts.err = nil
		a.depts.all = msg.depts
		a.depts.clampCursor()
		return a, nil

	case departmentLoadedMsg:
		d := &a.depts
		if d.open == nil || d.open.Code != msg.dept.Code {
			return a, nil // stale
		}
		if msg.err != nil {
			d.detail = statusFailed
			d.detailErr = msg.err
			return a, nil
		}
		d.detail = statusLoaded
		d.detailErr = nil
		d.compose(msg.data)
		return a, nil

	case detailLoadedMsg:
		a.ctrl.Resolve(msg.res)
		return a, nil

	case spinner.TickMsg:
		if !a.anyLoading() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (App, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if a.activeTab == tabDepartments && a.depts.searching {
		return a.updateDepartmentSearch(msg)
	}
	if a.activeTab == tabSettings && a.settings.editing {
		return a.updateSettingsInput(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch a.activeTab {
	case tabRevenues, tabAppropriations:
		if next, cmd, ok := a.updateBudgetKey(key); ok {
			return next, cmd
		}
	case tabDepartments:
		if next, cmd, ok := a.updateDepartmentsKey(key); ok {
			return next, cmd
		}
	case tabSettings:
		if next, cmd, ok := a.updateSettingsKey(key); ok {
			return next, cmd
		}
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		return a, a.reload()
	case "tab", "right", "l":
		return a, a.activate((a.activeTab + 1) % len(components.Tabs))
	case "shift+tab", "left", "h":
		return a, a.activate((a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs))
	case "1", "2", "3", "4":
		return a, a.activate(int(key[0] - '1'))
	}
	if len(msg.Runes) == 1 {
		if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
			return a, a.activate(idx)
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (App, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.applySetup()
		a.setupForm = nil
		a.needSetup = false
		return a, nil
	case huh.StateAborted:
		a.setupForm = nil
		a.needSetup = false
		return a, nil
	}
	return a, cmd
}

// openSetup starts the setup form. The values live behind a pointer because
// App is copied on every Update while the form keeps writing to them.
func (a *App) openSetup() {
	vals := SetupValuesFrom(a.cfg)
	a.setupVals = &vals
	a.setupForm = NewSetupForm(a.setupVals)
	if a.width > 0 {
		a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
	}
}

// applySetup saves the form values. The theme applies immediately; filter and
// source changes apply on the next launch.
func (a *App) applySetup() {
	cfg, err := config.Load()
	if err != nil {
		cfg = a.cfg
	}
	a.setupVals.Apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)
	a.settings.saveErr = config.Save(cfg)
	a.settings.saved = a.settings.saveErr == nil
	a.settings.restartNeeded = cfg.General != a.cfg.General || cfg.Source.BaseURL != a.cfg.Source.BaseURL
	a.cfg.Appearance = cfg.Appearance
}

// activate switches to a tab and starts its first load.
func (a *App) activate(idx int) tea.Cmd {
	if idx < 0 || idx >= len(components.Tabs) {
		return nil
	}
	a.activeTab = idx

	switch idx {
	case tabRevenues, tabAppropriations:
		b := &a.budgets[idx]
		if b.status != statusIdle {
			return nil
		}
		b.status = statusLoading
		return tea.Batch(loadTabCmd(a.ctx, a.loader, idx, b.tab), a.spinner.Tick)
	case tabDepartments:
		if a.depts.status != statusIdle {
			return nil
		}
		a.depts.status = statusLoading
		return tea.Batch(loadDepartmentsCmd(a.ctx, a.loader), a.spinner.Tick)
	}
	return nil
}

// reload refetches the active tab's data.
func (a *App) reload() tea.Cmd {
	switch a.activeTab {
	case tabRevenues, tabAppropriations:
		b := &a.budgets[a.activeTab]
		if b.status == statusLoading {
			return nil
		}
		b.status = statusIdle
	case tabDepartments:
		d := &a.depts
		if d.open != nil {
			return d.openDepartment(a.ctx, a.loader, *d.open, a.spinner.Tick)
		}
		if d.status == statusLoading {
			return nil
		}
		d.status = statusIdle
	default:
		return nil
	}
	return a.activate(a.activeTab)
}

func (a App) anyLoading() bool {
	if a.budgets[0].status == statusLoading || a.budgets[1].status == statusLoading {
		return true
	}
	if a.depts.status == statusLoading || a.depts.detail == statusLoading {
		return true
	}
	for _, k := range a.depts.lineKeys() {
		if a.ctrl.State(k).Status == drilldown.Loading {
			return true
		}
	}
	return false
}

func (a *App) moveCursor(delta int) {
	switch a.activeTab {
	case tabRevenues, tabAppropriations:
		a.budgets[a.activeTab].move(delta)
	case tabDepartments:
		a.depts.move(delta)
	case tabSettings:
		a.settings.move(delta)
	}
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

func (a App) contentHeight() int {
	h := a.height - 3 // tab bar, filter line, status bar
	if h < minContentHeight {
		h = minContentHeight
	}
	return h
}

// syncViewport renders the active tab into the viewport and scrolls so the
// cursor row stays visible.
func (a *App) syncViewport() {
	if a.width == 0 {
		return
	}
	a.viewport.Width = a.contentWidth()
	a.viewport.Height = a.contentHeight()

	var lines []string
	cursor := 0
	switch a.activeTab {
	case tabRevenues, tabAppropriations:
		lines, cursor = a.budgetLines(a.activeTab)
	case tabDepartments:
		lines, cursor = a.departmentLines()
	case tabSettings:
		lines, cursor = a.settingsLines()
	}

	a.viewport.SetContent(strings.Join(lines, "\n"))
	switch {
	case cursor < a.viewport.YOffset:
		a.viewport.SetYOffset(cursor)
	case cursor >= a.viewport.YOffset+a.viewport.Height:
		a.viewport.SetYOffset(cursor - a.viewport.Height + 1)
	}
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	t := theme.Active
	msg := lipgloss.NewStyle().Foreground(t.TextMuted).
		Render(fmt.Sprintf("Terminal too narrow (%d cols). Need at least %d.", a.width, minTerminalWidth))
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, msg,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width

	filterPillStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	filterAccentStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	filterStr := filterPillStyle.Render(" ") + filterAccentStyle.Render("FY"+a.filter.FiscalYear)
	if a.filter.Entity != "" {
		filterStr += filterPillStyle.Render(" │ ") + filterAccentStyle.Render(a.filter.Entity)
	}
	if a.filter.FundGroup != "" {
		filterStr += filterPillStyle.Render(" │ ") + filterAccentStyle.Render(a.filter.FundGroup)
	}
	filterRowStyle := lipgloss.NewStyle().Background(t.Surface).Width(w)

	header := components.RenderTabBar(a.activeTab, w) + "\n" + filterRowStyle.Render(filterStr)
	statusBar := components.RenderStatusBar(w, a.hints(), a.statusInfo())

	content := lipgloss.Place(w, a.contentHeight(), lipgloss.Center, lipgloss.Top, a.viewport.View(),
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, a.height, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) hints() string {
	switch a.activeTab {
	case tabDepartments:
		if a.depts.open != nil {
			return "[enter]expand  [esc]back  [r]eload  [?]help  [q]uit"
		}
		return "[enter]open  [/]search  [r]eload  [?]help  [q]uit"
	case tabSettings:
		return "[enter]edit  [?]help  [q]uit"
	}
	return "[enter]expand  [s]ort  [e]xpand all  [r]eload  [?]help  [q]uit"
}

func (a App) statusInfo() string {
	if a.activeTab == tabRevenues || a.activeTab == tabAppropriations {
		return "sort: " + sortOrders[a.budgets[a.activeTab].sortIdx].name
	}
	if n := a.ctrl.Fetches(); n > 0 {
		return fmt.Sprintf("%d detail fetches", n)
	}
	return ""
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	sections := []struct {
		name     string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"v a d x", "Jump to tab"},
			{"1-4", "Jump to tab"},
			{"← → tab", "Previous / Next tab"},
			{"j k", "Move cursor"},
			{"g G", "First / Last row"},
		}},
		{"Actions", []struct{ key, desc string }{
			{"Enter", "Expand / Collapse / Open"},
			{"e", "Expand or collapse all"},
			{"s", "Cycle section order"},
			{"/", "Search departments"},
			{"Esc", "Back / Clear search"},
			{"r", "Reload"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(sec.name))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

// tabAtX maps a tab bar column to a tab index, or -1.
func (a App) tabAtX(x int) int {
	pos := 0
	for i := range components.Tabs {
		w := components.TabWidth(i, a.activeTab)
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 1 // separator
	}
	return -1
}

// loadTabCmd loads both views of a budget tab.
func loadTabCmd(ctx context.Context, loader *pipeline.Loader, idx int, tab pipeline.Tab) tea.Cmd {
	return func() tea.Msg {
		data, err := loader.LoadTab(ctx, tab)
		return tabLoadedMsg{idx: idx, data: data, err: err}
	}
}

func loadDepartmentsCmd(ctx context.Context, loader *pipeline.Loader) tea.Cmd {
	return func() tea.Msg {
		depts, err := loader.Departments(ctx)
		return departmentsLoadedMsg{depts: depts, err: err}
	}
}

func loadDepartmentCmd(ctx context.Context, loader *pipeline.Loader, dept model.Department) tea.Cmd {
	return func() tea.Msg {
		data, err := loader.LoadDepartment(ctx, dept)
		return departmentLoadedMsg{dept: dept, data: data, err: err}
	}
}

// detailCmd runs a drill-down load off the update loop; the result is applied
// by Update, which owns the controller.
func detailCmd(ctx context.Context, load drilldown.Load) tea.Cmd {
	return func() tea.Msg {
		return detailLoadedMsg{res: load(ctx)}
	}
}

func errorLines(title string, err error) []string {
	t := theme.Active
	errStyle := lipgloss.NewStyle().Foreground(t.Red).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	lines := []string{"", "  " + errStyle.Render(title)}
	if err != nil {
		lines = append(lines, "  "+muted.Render(err.Error()))
	}
	return append(lines, "", "  "+muted.Render("Press r to retry."))
}

func loadingLines(spin, what string) []string {
	muted := lipgloss.NewStyle().Foreground(theme.Active.TextMuted)
	return []string{"", "  " + spin + " " + muted.Render(what)}
}
