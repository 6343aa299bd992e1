package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/spf13/cobra"
)

var (
	flagAppropBy  string
	flagRevenueBy string
	flagSort      string
)

var appropriationsCmd = &cobra.Command{
	Use:     "appropriations",
	Aliases: []string{"approp", "a"},
	Short:   "Appropriations by type and by department",
	RunE:    runAppropriations,
}

var revenuesCmd = &cobra.Command{
	Use:     "revenues",
	Aliases: []string{"rev", "r"},
	Short:   "Revenues by source and by department",
	RunE:    runRevenues,
}

func init() {
	appropriationsCmd.Flags().StringVar(&flagAppropBy, "by", "", "Show one view only: type or dept")
	appropriationsCmd.Flags().StringVar(&flagSort, "sort", "code", "Section order: code, actual or ratio")
	revenuesCmd.Flags().StringVar(&flagRevenueBy, "by", "", "Show one view only: source or dept")
	revenuesCmd.Flags().StringVar(&flagSort, "sort", "code", "Section order: code, actual or ratio")

	rootCmd.AddCommand(appropriationsCmd, revenuesCmd)
}

func runAppropriations(cmd *cobra.Command, _ []string) error {
	by := map[string]pipeline.ViewID{
		"type": pipeline.AppropriationsByType,
		"dept": pipeline.AppropriationsByDept,
	}
	return runTab(cmd, pipeline.AppropriationsTab, by, flagAppropBy)
}

func runRevenues(cmd *cobra.Command, _ []string) error {
	by := map[string]pipeline.ViewID{
		"source": pipeline.RevenuesBySource,
		"dept":   pipeline.RevenuesByDept,
	}
	return runTab(cmd, pipeline.RevenuesTab, by, flagRevenueBy)
}

// runTab prints both views of a tab, or the single view selected with --by.
func runTab(cmd *cobra.Command, tab pipeline.Tab, by map[string]pipeline.ViewID, choice string) error {
	less, err := sortOrder(flagSort)
	if err != nil {
		return err
	}

	var only pipeline.ViewID
	if choice != "" {
		id, ok := by[strings.ToLower(choice)]
		if !ok {
			return fmt.Errorf("unknown --by %q", choice)
		}
		only = id
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	progressf("Fetching %s (%s)...", strings.ToLower(tab.Name), filterLine(s.loader.Filter()))

	var views []*pipeline.ViewData
	if only != "" {
		vd, err := s.loader.LoadView(ctx, only)
		if err != nil {
			fmt.Println(cli.RenderError(tab.Error))
			return err
		}
		views = append(views, vd)
	} else {
		data, err := s.loader.LoadTab(ctx, tab)
		if err != nil {
			fmt.Println(cli.RenderError(tab.Error))
			return err
		}
		views = data.Views[:]
	}
	requestSummary(s)

	fmt.Println()
	fmt.Println(cli.RenderTitle(strings.ToUpper(tab.Name) + " · " + filterLine(s.loader.Filter())))
	for _, vd := range views {
		cfg := view.FromView(vd.View)
		cfg.Less = less
		fmt.Println()
		fmt.Println(cli.RenderTree(view.Compose(vd.Root, cfg), cli.TreeOptions{TitleCase: flagTitleCase}))
	}
	fmt.Println()
	return nil
}

func sortOrder(name string) (func(a, b *model.GroupNode) bool, error) {
	switch strings.ToLower(name) {
	case "", "code":
		return nil, nil
	case "actual":
		return view.ByActualDesc, nil
	case "ratio":
		return view.ByRatioDesc, nil
	}
	return nil, fmt.Errorf("unknown --sort %q (want code, actual or ratio)", name)
}
