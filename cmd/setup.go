package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	vals := tui.SetupValuesFrom(cfg)
	form := tui.NewSetupForm(&vals)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	vals.Apply(&cfg)
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `cbudget setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
