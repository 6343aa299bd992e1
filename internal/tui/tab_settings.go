package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	settingsFieldFiscalYear = iota
	settingsFieldEntity
	settingsFieldFundGroup
	settingsFieldBaseURL
	settingsFieldAppToken
	settingsFieldTheme
	settingsFieldMaxInFlight
	settingsFieldDetailLimit
	settingsFieldCacheTTL
	settingsFieldCount // sentinel
)

// settingsState tracks the settings tab state.
type settingsState struct {
	cursor  int
	editing bool
	input   textinput.Model
	saved   bool
	saveErr error
	// restartNeeded is set once a saved change only applies to new sessions.
	restartNeeded bool
}

func (s *settingsState) move(delta int) {
	s.cursor += delta
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor >= settingsFieldCount {
		s.cursor = settingsFieldCount - 1
	}
}

func newSettingsInput() textinput.Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50
	return ti
}

func (a App) loadConfigOrDefault() config.Config {
	cfg, err := config.Load()
	if err != nil {
		return a.cfg
	}
	return cfg
}

func (a App) updateSettingsKey(key string) (App, tea.Cmd, bool) {
	switch key {
	case "up", "k":
		a.settings.move(-1)
	case "down", "j":
		a.settings.move(1)
	case "enter":
		return a.settingsStartEdit()
	case "w":
		a.openSetup()
		return a, a.setupForm.Init(), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func (a App) settingsStartEdit() (App, tea.Cmd, bool) {
	cfg := a.loadConfigOrDefault()
	a.settings.editing = true
	a.settings.saved = false

	ti := newSettingsInput()
	ti.EchoMode = textinput.EchoNormal

	switch a.settings.cursor {
	case settingsFieldFiscalYear:
		ti.Placeholder = "2025"
		ti.SetValue(cfg.General.FiscalYear)
	case settingsFieldEntity:
		ti.Placeholder = "CITY (leave empty for every entity)"
		ti.SetValue(cfg.General.Entity)
	case settingsFieldFundGroup:
		ti.Placeholder = "GENERAL FUND (leave empty for every fund group)"
		ti.SetValue(cfg.General.FundGroup)
	case settingsFieldBaseURL:
		ti.Placeholder = "https://data.example.gov"
		ti.SetValue(cfg.Source.BaseURL)
	case settingsFieldAppToken:
		ti.Placeholder = "Socrata app token"
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
		ti.SetValue(config.GetAppToken(cfg))
	case settingsFieldTheme:
		ti.Placeholder = strings.Join(theme.Names(), ", ")
		ti.SetValue(cfg.Appearance.Theme)
	case settingsFieldMaxInFlight:
		ti.Placeholder = "4"
		ti.SetValue(strconv.Itoa(cfg.DrillDown.MaxInFlight))
	case settingsFieldDetailLimit:
		ti.Placeholder = "100 (rows per detail table)"
		ti.SetValue(strconv.Itoa(cfg.DrillDown.Limit))
	case settingsFieldCacheTTL:
		ti.Placeholder = "60 (minutes, 0 never expires)"
		ti.SetValue(strconv.Itoa(cfg.Source.CacheTTLMin))
	}

	ti.Focus()
	a.settings.input = ti
	return a, ti.Cursor.BlinkCmd(), true
}

func (a App) updateSettingsInput(msg tea.KeyMsg) (App, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.settingsSave()
		a.settings.editing = false
		a.settings.saved = a.settings.saveErr == nil
		return a, nil
	case "esc":
		a.settings.editing = false
		return a, nil
	}

	var cmd tea.Cmd
	a.settings.input, cmd = a.settings.input.Update(msg)
	return a, cmd
}

// settingsSave writes the edited field. Only the theme applies to the running
// session.
func (a *App) settingsSave() {
	cfg := a.loadConfigOrDefault()
	val := strings.TrimSpace(a.settings.input.Value())

	switch a.settings.cursor {
	case settingsFieldFiscalYear:
		cfg.General.FiscalYear = val
	case settingsFieldEntity:
		cfg.General.Entity = val
	case settingsFieldFundGroup:
		cfg.General.FundGroup = val
	case settingsFieldBaseURL:
		cfg.Source.BaseURL = val
	case settingsFieldAppToken:
		cfg.Source.AppToken = val
	case settingsFieldTheme:
		if !slices.Contains(theme.Names(), val) {
			a.settings.saveErr = fmt.Errorf("unknown theme %q", val)
			return
		}
		cfg.Appearance.Theme = val
		theme.SetActive(val)
		a.cfg.Appearance = cfg.Appearance
	case settingsFieldMaxInFlight, settingsFieldDetailLimit, settingsFieldCacheTTL:
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			a.settings.saveErr = fmt.Errorf("%q is not a non-negative number", val)
			return
		}
		switch a.settings.cursor {
		case settingsFieldMaxInFlight:
			cfg.DrillDown.MaxInFlight = n
		case settingsFieldDetailLimit:
			cfg.DrillDown.Limit = n
		default:
			cfg.Source.CacheTTLMin = n
		}
	}

	if err := cfg.Validate(); err != nil {
		a.settings.saveErr = err
		return
	}
	a.settings.saveErr = config.Save(cfg)
	if a.settings.saveErr == nil && a.settings.cursor != settingsFieldTheme {
		a.settings.restartNeeded = true
	}
}

func maskToken(tok string) string {
	switch {
	case tok == "":
		return "(not set)"
	case len(tok) > 8:
		return tok[:4] + "..." + tok[len(tok)-2:]
	default:
		return "****"
	}
}

func orAll(s string) string {
	if s == "" {
		return "(all)"
	}
	return s
}

// settingsLines renders the tab and returns the line index of the cursor row.
func (a App) settingsLines() ([]string, int) {
	t := theme.Active
	cfg := a.loadConfigOrDefault()
	cw := a.contentWidth()

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selectedStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Bold(true)
	selectedLabelStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.SurfaceHover).Bold(true)
	accentStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface)
	greenStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	markerStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.SurfaceHover)

	fields := []struct{ label, value string }{
		{"Fiscal Year", cfg.General.FiscalYear},
		{"Entity", orAll(cfg.General.Entity)},
		{"Fund Group", orAll(cfg.General.FundGroup)},
		{"Base URL", cfg.Source.BaseURL},
		{"App Token", maskToken(config.GetAppToken(cfg))},
		{"Theme", cfg.Appearance.Theme},
		{"Max In Flight", strconv.Itoa(cfg.DrillDown.MaxInFlight)},
		{"Detail Limit", strconv.Itoa(cfg.DrillDown.Limit)},
		{"Cache TTL", fmt.Sprintf("%d min", cfg.Source.CacheTTLMin)},
	}

	var formBody strings.Builder
	for i, f := range fields {
		if a.settings.editing && i == a.settings.cursor {
			formBody.WriteString(markerStyle.Render("▸ "))
			formBody.WriteString(accentStyle.Render(fmt.Sprintf("%-16s ", f.label)))
			formBody.WriteString(a.settings.input.View())
			formBody.WriteString("\n")
			continue
		}

		if i == a.settings.cursor {
			marker := markerStyle.Render("▸ ")
			label := selectedLabelStyle.Render(fmt.Sprintf("%-16s ", f.label+":"))
			value := selectedStyle.Render(f.value)
			formBody.WriteString(marker + label + value)
			usedWidth := lipgloss.Width(marker) + lipgloss.Width(label) + lipgloss.Width(value)
			if padLen := components.CardInnerWidth(cw) - usedWidth; padLen > 0 {
				formBody.WriteString(lipgloss.NewStyle().Background(t.SurfaceHover).Render(strings.Repeat(" ", padLen)))
			}
		} else {
			formBody.WriteString(lipgloss.NewStyle().Background(t.Surface).Render("  "))
			formBody.WriteString(labelStyle.Render(fmt.Sprintf("%-16s ", f.label+":")))
			formBody.WriteString(valueStyle.Render(f.value))
		}
		formBody.WriteString("\n")
	}

	switch {
	case a.settings.saveErr != nil:
		warnStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
		formBody.WriteString("\n")
		formBody.WriteString(warnStyle.Render(fmt.Sprintf("Save failed: %s", a.settings.saveErr)))
	case a.settings.saved && a.settings.restartNeeded:
		formBody.WriteString("\n")
		formBody.WriteString(greenStyle.Render("Saved. Restart cbudget to reload with the new settings."))
	case a.settings.saved:
		formBody.WriteString("\n")
		formBody.WriteString(greenStyle.Render("Saved!"))
	}

	formBody.WriteString("\n")
	formBody.WriteString(labelStyle.Render("[j/k] navigate  [Enter] edit  [Esc] cancel  [w] setup wizard"))

	var infoBody strings.Builder
	infoBody.WriteString(labelStyle.Render("Config file:     ") + valueStyle.Render(config.Path()) + "\n")
	infoBody.WriteString(labelStyle.Render("Detail fetches:  ") + valueStyle.Render(strconv.Itoa(a.ctrl.Fetches())) + "\n")
	infoBody.WriteString(labelStyle.Render("Rows tracked:    ") + valueStyle.Render(strconv.Itoa(a.ctrl.Len())))

	var b strings.Builder
	b.WriteString(components.ContentCard("Settings", formBody.String(), cw))
	b.WriteString("\n")
	b.WriteString(components.ContentCard("Session", infoBody.String(), cw))

	// Card border and title sit above the first field.
	return strings.Split(b.String(), "\n"), a.settings.cursor + 2
}
