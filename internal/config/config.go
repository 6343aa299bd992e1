// Package config loads and saves cbudget settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all cbudget configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Source     SourceConfig     `toml:"source"`
	DrillDown  DrillDownConfig  `toml:"drilldown"`
	Appearance AppearanceConfig `toml:"appearance"`
	Log        LogConfig        `toml:"log"`
}

// GeneralConfig holds the filter context applied to every query.
type GeneralConfig struct {
	Entity     string `toml:"entity"`
	FundGroup  string `toml:"fund_group"`
	FiscalYear string `toml:"fiscal_year"`
}

// SourceConfig holds open-data endpoint settings.
type SourceConfig struct {
	BaseURL     string         `toml:"base_url"`
	AppToken    string         `toml:"app_token,omitempty"`
	TimeoutSec  int            `toml:"timeout_sec"`
	CacheTTLMin int            `toml:"cache_ttl_min"`
	Datasets    DatasetsConfig `toml:"datasets"`
}

// DatasetsConfig holds the Socrata dataset identifiers.
type DatasetsConfig struct {
	Appropriations string `toml:"appropriations"`
	Revenues       string `toml:"revenues"`
	Payroll        string `toml:"payroll"`
	Vendors        string `toml:"vendors"`
}

// DrillDownConfig holds line detail settings.
type DrillDownConfig struct {
	MaxInFlight int `toml:"max_in_flight"`
	Limit       int `toml:"limit"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Entity:     "CITY",
			FundGroup:  "GENERAL FUND",
			FiscalYear: "2025",
		},
		Source: SourceConfig{
			BaseURL:     "https://data.buffalony.gov",
			TimeoutSec:  30,
			CacheTTLMin: 60,
			Datasets: DatasetsConfig{
				Appropriations: "xy5k-883e",
				Revenues:       "cvx5-9drv",
				Payroll:        "hm3x-8br6",
				Vendors:        "bktd-jwim",
			},
		},
		DrillDown: DrillDownConfig{
			MaxInFlight: 4,
			Limit:       100,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cbudget")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cbudget")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// LoadDotEnv loads a .env file from the working directory if there is one.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// GetAppToken returns the Socrata app token from env var or config, in that order.
func GetAppToken(cfg Config) string {
	if tok := os.Getenv("SOCRATA_APP_TOKEN"); tok != "" {
		return tok
	}
	return cfg.Source.AppToken
}

// GetLogLevel returns the log level from env var or config, in that order.
func GetLogLevel(cfg Config) string {
	if lvl := os.Getenv("CBUDGET_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return cfg.Log.Level
}

// Timeout returns the per-request timeout.
func (c Config) Timeout() time.Duration {
	if c.Source.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Source.TimeoutSec) * time.Second
}

// CacheTTL returns how long raw responses stay fresh.
func (c Config) CacheTTL() time.Duration {
	if c.Source.CacheTTLMin <= 0 {
		return 0
	}
	return time.Duration(c.Source.CacheTTLMin) * time.Minute
}

var (
	// ErrFiscalYear indicates a fiscal year that is not a four-digit year.
	ErrFiscalYear = errors.New("config: fiscal_year must be a four-digit year")
	// ErrBaseURL indicates an unusable source base URL.
	ErrBaseURL = errors.New("config: base_url must be an absolute http(s) URL")
	// ErrDataset indicates a missing dataset identifier.
	ErrDataset = errors.New("config: dataset identifier is empty")
)

// Validate checks the settings every query depends on.
func (c Config) Validate() error {
	if y := c.General.FiscalYear; y != "" {
		if n, err := strconv.Atoi(y); err != nil || len(y) != 4 || n < 1900 {
			return fmt.Errorf("%w: %q", ErrFiscalYear, y)
		}
	}

	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBaseURL, c.Source.BaseURL)
	}

	ds := c.Source.Datasets
	for name, id := range map[string]string{
		"appropriations": ds.Appropriations,
		"revenues":       ds.Revenues,
		"payroll":        ds.Payroll,
		"vendors":        ds.Vendors,
	} {
		if id == "" {
			return fmt.Errorf("%w: %s", ErrDataset, name)
		}
	}
	return nil
}
