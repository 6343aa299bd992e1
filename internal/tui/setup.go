package tui

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the fields edited by the setup form.
type SetupValues struct {
	FiscalYear string
	Entity     string
	FundGroup  string
	BaseURL    string
	AppToken   string
	Theme      string
}

// SetupValuesFrom seeds the form from an existing config.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		FiscalYear: cfg.General.FiscalYear,
		Entity:     cfg.General.Entity,
		FundGroup:  cfg.General.FundGroup,
		BaseURL:    cfg.Source.BaseURL,
		AppToken:   cfg.Source.AppToken,
		Theme:      cfg.Appearance.Theme,
	}
}

// Apply copies the form values into cfg. A blank year, URL or app token keeps
// the old value; blank entity and fund group mean no filter.
func (v SetupValues) Apply(cfg *config.Config) {
	if y := strings.TrimSpace(v.FiscalYear); y != "" {
		cfg.General.FiscalYear = y
	}
	cfg.General.Entity = strings.TrimSpace(v.Entity)
	cfg.General.FundGroup = strings.TrimSpace(v.FundGroup)
	if u := strings.TrimSpace(v.BaseURL); u != "" {
		cfg.Source.BaseURL = u
	}
	if tok := strings.TrimSpace(v.AppToken); tok != "" {
		cfg.Source.AppToken = tok
	}
	cfg.Appearance.Theme = v.Theme
}

// NewSetupForm builds the first-run form; results are written into vals.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, name := range theme.Names() {
		themeOpts = append(themeOpts, huh.NewOption(name, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to cbudget").
				Description("Budget vs. actuals from your city's open-data portal.\nA few settings and you're ready."),
			huh.NewInput().
				Title("Fiscal year").
				Placeholder("2025").
				Validate(validateYear).
				Value(&vals.FiscalYear),
			huh.NewInput().
				Title("Entity").
				Description("Leave blank to include every entity.").
				Value(&vals.Entity),
			huh.NewInput().
				Title("Fund group").
				Description("Leave blank to include every fund group.").
				Value(&vals.FundGroup),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Open-data portal").
				Placeholder("https://data.example.gov").
				Validate(validateBaseURL).
				Value(&vals.BaseURL),
			huh.NewInput().
				Title("Socrata app token").
				Description("Optional. Raises request limits. Blank keeps the current token.").
				EchoMode(huh.EchoModePassword).
				Value(&vals.AppToken),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}

// validateYear accepts an empty value or a four-digit year.
func validateYear(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err != nil || len(s) != 4 || n < 1900 {
		return errors.New("enter a four-digit year")
	}
	return nil
}

func validateBaseURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("enter an http(s) URL")
	}
	return nil
}
