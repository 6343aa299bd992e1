package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var xlsxHeaders = []any{"Level", "Code", "Label", "Organization", "Actual", "Adopted", "% of Budget", "Over Budget"}

// Excel sheet names are limited to 31 characters without []:*?/\.
const maxSheetName = 31

func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "Budget"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

func writeXLSX(w io.Writer, doc Document) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export: closing workbook: %w", cerr)
		}
	}()

	sheet := sheetName(doc.Title)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("export: naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	currency := "$#,##0.00"
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &currency})
	if err != nil {
		return fmt.Errorf("export: currency style: %w", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9})
	if err != nil {
		return fmt.Errorf("export: percent style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &xlsxHeaders); err != nil {
		return fmt.Errorf("export: writing header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("export: styling header: %w", err)
	}

	row := 2
	var walk func(e Entry, depth int) error
	walk = func(e Entry, depth int) error {
		level := e.Level
		if e.Kind == "line" {
			level = "Line"
		}
		if depth == 0 {
			level = "Total"
		}
		var ratio any
		if e.Adopted != 0 {
			ratio = e.Actual / e.Adopted
		}
		over := ""
		if e.OverBudget {
			over = "OVER BUDGET"
		}
		values := []any{level, e.Code, strings.Repeat("  ", depth) + e.Label, e.Organization, e.Actual, e.Adopted, ratio, over}

		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		if depth == 0 {
			if err := f.SetCellStyle(sheet, cell, fmt.Sprintf("H%d", row), bold); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("E%d", row), fmt.Sprintf("F%d", row), money); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, fmt.Sprintf("G%d", row), fmt.Sprintf("G%d", row), percent); err != nil {
			return err
		}
		row++

		for _, c := range e.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc.Total, 0); err != nil {
		return fmt.Errorf("export: writing rows: %w", err)
	}

	widths := map[string]float64{"A": 12, "B": 10, "C": 48, "D": 14, "E": 18, "F": 18, "G": 12, "H": 14}
	for col, width := range widths {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("export: column width: %w", err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freezing header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: writing workbook: %w", err)
	}
	return nil
}
