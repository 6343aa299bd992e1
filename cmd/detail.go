package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/drilldown"

	"github.com/spf13/cobra"
)

var flagKey drilldown.RowKey

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Payroll and vendor detail behind one budget line",
	Long: "Lists the employees paid from, and the vendor expenses charged to, one\n" +
		"department/sub-group/organization/object budget line.",
	RunE: runDetail,
}

func init() {
	detailCmd.Flags().StringVar(&flagKey.Department, "dept", "", "Department code (segment2code)")
	detailCmd.Flags().StringVar(&flagKey.SubGroup, "sub", "", "Sub-group code (segment3code)")
	detailCmd.Flags().StringVar(&flagKey.Organization, "org", "", "Organization code")
	detailCmd.Flags().StringVar(&flagKey.Object, "obj", "", "Object code")
	for _, f := range []string{"dept", "sub", "org", "obj"} {
		_ = detailCmd.MarkFlagRequired(f)
	}
	rootCmd.AddCommand(detailCmd)
}

func runDetail(cmd *cobra.Command, _ []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctrl := drilldown.New(s.loader)
	progressf("Fetching detail for %s (FY%s)...", flagKey, s.cfg.General.FiscalYear)
	if load := ctrl.Expand(flagKey); load != nil {
		ctrl.Resolve(load(cmd.Context()))
	}
	requestSummary(s)

	row := ctrl.State(flagKey)
	fmt.Println()
	fmt.Println(cli.RenderTitle("LINE DETAIL · " + flagKey.String()))
	fmt.Println()

	switch {
	case row.Status == drilldown.Error:
		fmt.Println("  " + cli.RenderError(drilldown.MsgFailed))
		return row.Err
	case row.Status != drilldown.Loaded:
		return errors.New("detail fetch did not complete")
	case row.Detail.Empty():
		fmt.Println("  " + drilldown.MsgEmpty)
		fmt.Println()
		return nil
	}

	name := func(str string) string {
		if flagTitleCase {
			return cli.TitleCase(str)
		}
		return str
	}

	if emps := row.Detail.Employees; len(emps) > 0 {
		rows := make([][]string, 0, len(emps))
		for _, e := range emps {
			rows = append(rows, []string{e.ID, name(e.FullName()), name(e.Position), cli.FormatMoney(e.TotalPay)})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("Employees · %s total", cli.FormatMoney(row.Detail.TotalPay())),
			Headers: []string{"ID", "Name", "Position", "Total Pay"},
			Rows:    rows,
			Align:   []cli.Align{cli.AlignLeft, cli.AlignLeft, cli.AlignLeft, cli.AlignRight},
		}))
		fmt.Println()
	}

	if vendors := row.Detail.VendorExpenses; len(vendors) > 0 {
		rows := make([][]string, 0, len(vendors))
		for _, v := range vendors {
			rows = append(rows, []string{v.Vendor, v.Description, cli.FormatMoney(v.Actual)})
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("Vendor Expenses · %s total", cli.FormatMoney(row.Detail.TotalVendor())),
			Headers: []string{"Vendor", "Description", "Actual"},
			Rows:    rows,
			Align:   []cli.Align{cli.AlignLeft, cli.AlignLeft, cli.AlignRight},
		}))
		fmt.Println()
	}
	return nil
}
