package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/spf13/cobra"
)

var (
	flagDeptFilter string
	flagDrill      []string
	flagDrillAll   bool
)

var departmentsCmd = &cobra.Command{
	Use:     "departments",
	Aliases: []string{"depts"},
	Short:   "List departments with appropriations",
	RunE:    runDepartments,
}

var departmentCmd = &cobra.Command{
	Use:   "department <code>",
	Short: "Sub-groups and budget lines of one department",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepartment,
}

func init() {
	departmentsCmd.Flags().StringVar(&flagDeptFilter, "filter", "", "Only departments whose code or name contains this text")
	departmentCmd.Flags().StringSliceVar(&flagDrill, "drill", nil, "Object codes to expand with payroll and vendor detail")
	departmentCmd.Flags().BoolVar(&flagDrillAll, "drill-all", false, "Expand every line with payroll and vendor detail")
	rootCmd.AddCommand(departmentsCmd, departmentCmd)
}

func runDepartments(cmd *cobra.Command, _ []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	progressf("Fetching departments (%s)...", filterLine(s.loader.Filter()))
	depts, err := s.loader.Departments(cmd.Context())
	if err != nil {
		fmt.Println(cli.RenderError("Failed to load departments."))
		return err
	}
	depts = pipeline.FilterDepartments(depts, flagDeptFilter)

	rows := make([][]string, 0, len(depts))
	for _, d := range depts {
		name := d.Name
		if flagTitleCase {
			name = cli.TitleCase(name)
		}
		rows = append(rows, []string{d.Code, name})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("Departments · %s · %d", filterLine(s.loader.Filter()), len(depts)),
		Headers: []string{"Code", "Department"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}

func runDepartment(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	code := strings.TrimSpace(args[0])

	progressf("Fetching department %s (%s)...", code, filterLine(s.loader.Filter()))
	dept := model.Department{Code: code}
	if depts, err := s.loader.Departments(ctx); err == nil {
		for _, d := range depts {
			if d.Code == code {
				dept = d
				break
			}
		}
	}

	data, err := s.loader.LoadDepartment(ctx, dept)
	if err != nil {
		fmt.Println(cli.RenderError("Failed to load department details."))
		return err
	}
	cfg := view.FromView(data.View)
	cfg.Title = data.Root.Label
	tree := view.Compose(data.Root, cfg)

	ctrl := drilldown.New(s.loader, drilldown.WithMaxInFlight(s.cfg.DrillDown.MaxInFlight))
	want := make(map[string]bool, len(flagDrill))
	for _, c := range flagDrill {
		want[strings.TrimSpace(c)] = true
	}
	var keys []drilldown.RowKey
	for _, l := range tree.Lines() {
		if l.Detail != nil && (flagDrillAll || want[l.Code]) {
			keys = append(keys, *l.Detail)
		}
	}
	if len(keys) > 0 {
		progressf("Fetching payroll and vendor detail for %d lines...", len(keys))
		expandAll(ctx, ctrl, keys)
	}
	requestSummary(s)

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("%s %s · %s", dept.Code, data.Root.Label, filterLine(s.loader.Filter()))))
	fmt.Println()
	fmt.Println(cli.RenderTree(tree, cli.TreeOptions{
		TitleCase: flagTitleCase,
		Detail: func(n *view.Node) []string {
			if n.Detail == nil {
				return nil
			}
			return cli.DetailLines(ctrl.State(*n.Detail), flagTitleCase)
		},
	}))
	fmt.Println()
	return nil
}

// expandAll expands every key and waits for the fetches. Loads run
// concurrently; results are applied on the calling goroutine, which owns ctrl.
func expandAll(ctx context.Context, ctrl *drilldown.Controller, keys []drilldown.RowKey) {
	results := make(chan drilldown.Result)
	pending := 0
	for _, k := range keys {
		load := ctrl.Expand(k)
		if load == nil {
			continue
		}
		pending++
		go func() { results <- load(ctx) }()
	}
	for ; pending > 0; pending-- {
		ctrl.Resolve(<-results)
	}
}
