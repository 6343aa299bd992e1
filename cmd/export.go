package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/theirongolddev/cbudget/internal/export"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/spf13/cobra"
)

var (
	flagExportFormat string
	flagExportOut    string
	flagExportDept   string
)

var exportCmd = &cobra.Command{
	Use:   "export <view>",
	Short: "Export a budget view as JSON, YAML or an Excel workbook",
	Long: "Export one view. Views: " + viewList() + ".\n" +
		"The format defaults to the output file's extension, else json.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: viewNames(),
	RunE:      runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "", "Output format: json, yaml or xlsx")
	exportCmd.Flags().StringVarP(&flagExportOut, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVar(&flagExportDept, "dept", "", "Department code, for the department-detail view")
	rootCmd.AddCommand(exportCmd)
}

func viewNames() []string {
	ids := pipeline.ViewIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func viewList() string {
	return strings.Join(viewNames(), ", ")
}

func runExport(cmd *cobra.Command, args []string) error {
	id := pipeline.ViewID(args[0])
	if _, ok := pipeline.LookupView(id); !ok {
		return fmt.Errorf("unknown view %q (want one of %s)", args[0], viewList())
	}

	format := export.FormatForPath(flagExportOut, export.FormatJSON)
	if flagExportFormat != "" {
		f, err := export.ParseFormat(flagExportFormat)
		if err != nil {
			return err
		}
		format = f
	}
	if format == export.FormatXLSX && flagExportOut == "" {
		return errors.New("xlsx output needs a file: use -o")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	var tree *view.Node
	if id == pipeline.DepartmentDetail {
		if flagExportDept == "" {
			return errors.New("the department-detail view needs --dept")
		}
		data, err := s.loader.LoadDepartment(ctx, model.Department{Code: flagExportDept})
		if err != nil {
			return err
		}
		cfg := view.FromView(data.View)
		cfg.Title = data.Root.Label
		tree = view.Compose(data.Root, cfg)
	} else {
		vd, err := s.loader.LoadView(ctx, id)
		if err != nil {
			return err
		}
		tree = view.Compose(vd.Root, view.FromView(vd.View))
	}
	doc := export.NewDocument(tree, s.loader.Filter())

	var w io.Writer = os.Stdout
	if flagExportOut != "" {
		f, err := os.Create(flagExportOut)
		if err != nil {
			return fmt.Errorf("creating %s: %w", flagExportOut, err)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, doc); err != nil {
		return err
	}
	if flagExportOut != "" {
		progressf("Wrote %s (%s)", flagExportOut, format)
	}
	return nil
}
