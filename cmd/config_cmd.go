// Package cmd implements the cbudget CLI commands.
package cmd

import (
	"fmt"

	"github.com/theirongolddev/cbudget/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Fiscal year: %s\n", cfg.General.FiscalYear)
	fmt.Printf("    Entity:      %s\n", cfg.General.Entity)
	fmt.Printf("    Fund group:  %s\n", cfg.General.FundGroup)
	fmt.Println()

	fmt.Println("  [Source]")
	fmt.Printf("    Base URL:  %s\n", cfg.Source.BaseURL)
	if tok := config.GetAppToken(cfg); tok != "" {
		fmt.Printf("    App token: %s\n", maskToken(tok))
	} else {
		fmt.Println("    App token: not configured (requests are throttled)")
	}
	fmt.Printf("    Timeout:   %s\n", cfg.Timeout())
	if ttl := cfg.CacheTTL(); ttl > 0 {
		fmt.Printf("    Cache TTL: %s\n", ttl)
	} else {
		fmt.Println("    Cache TTL: never expires")
	}
	ds := cfg.Source.Datasets
	fmt.Printf("    Datasets:  appropriations=%s revenues=%s payroll=%s vendors=%s\n",
		ds.Appropriations, ds.Revenues, ds.Payroll, ds.Vendors)
	fmt.Println()

	fmt.Println("  [Drill-down]")
	fmt.Printf("    Max in flight: %d\n", cfg.DrillDown.MaxInFlight)
	fmt.Printf("    Row limit:     %d\n", cfg.DrillDown.Limit)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level: %s\n", config.GetLogLevel(cfg))
	if cfg.Log.File != "" {
		fmt.Printf("    File:  %s\n", cfg.Log.File)
	}
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Problem: %v\n\n", err)
	}
	fmt.Println("  Run `cbudget setup` to reconfigure.")
	return nil
}

func maskToken(key string) string {
	if len(key) > 12 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:2] + "..."
	}
	return "****"
}
