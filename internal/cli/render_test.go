package cli

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/view"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestTierColor(t *testing.T) {
	assert.Equal(t, ColorCyan, TierColor(overage.TierNormal))
	assert.Equal(t, lipgloss.Color("#FF8000"), TierColor(overage.TierSlight))
	assert.Equal(t, lipgloss.Color("#FF4000"), TierColor(overage.TierOver))
	assert.Equal(t, lipgloss.Color("#FF0000"), TierColor(overage.TierHigh))
	assert.Equal(t, lipgloss.Color("#800000"), TierColor(overage.TierSevere))
	assert.Equal(t, ColorCyan, TierColor(overage.Tier(42)))
}

func TestRenderTable_RightAlign(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Name", "Amt"},
		Rows:    [][]string{{"a", "1"}, {"bbb", "100"}},
		Align:   []Align{AlignLeft, AlignRight},
	})
	assert.Contains(t, out, "│ a    │   1 │")
	assert.Contains(t, out, "│ bbb  │ 100 │")
	assert.True(t, strings.HasPrefix(out, "╭"))
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Equal(t, "", RenderTable(Table{}))
}

func TestRenderBar(t *testing.T) {
	half := RenderBar(overage.Describe(50, 100), 10)
	assert.Equal(t, 5, strings.Count(half, "█"))
	assert.Equal(t, 5, strings.Count(half, "░"))
	assert.NotContains(t, half, "▐")

	over := RenderBar(overage.Describe(250, 100), 10)
	assert.Equal(t, 2, strings.Count(over, "▐"))
	assert.Equal(t, 0, strings.Count(over, "░"))

	severe := RenderBar(overage.Describe(600, 100), 10)
	assert.Equal(t, maxBarLayers, strings.Count(severe, "▐"))
	assert.Contains(t, severe, "+2")
}

func composedDepartment(t *testing.T) *view.Node {
	t.Helper()
	v, ok := pipeline.LookupView(pipeline.DepartmentDetail)
	require.True(t, ok)
	records := []model.BudgetRecord{
		{Department: model.Segment{Code: "10", Name: "POLICE"}, SubGroup: model.Segment{Code: "1010", Name: "ADMIN"}, Organization: "101010", Object: model.Segment{Code: "412000", Name: "OVERTIME"}, ActualToDate: 300, AdoptedBudget: 100},
		{Department: model.Segment{Code: "10", Name: "POLICE"}, SubGroup: model.Segment{Code: "1020", Name: "PATROL"}, Organization: "102010", Object: model.Segment{Code: "411000", Name: "SALARIES"}, ActualToDate: 50, AdoptedBudget: 200},
	}
	return view.Compose(pipeline.Aggregate(records, v.Levels...), view.FromView(v))
}

func TestRenderTree_Expanded(t *testing.T) {
	out := RenderTree(composedDepartment(t), TreeOptions{})
	assert.Contains(t, out, "Department Details")
	assert.Contains(t, out, "ADMIN")
	assert.Contains(t, out, "OVERTIME")
	assert.Contains(t, out, "OVER BUDGET")
	assert.Contains(t, out, "$300.00 / $100.00")
}

func TestRenderTree_CollapsedHidesLines(t *testing.T) {
	out := RenderTree(composedDepartment(t), TreeOptions{
		Expanded: func(string) bool { return false },
	})
	assert.Contains(t, out, "PATROL")
	assert.NotContains(t, out, "SALARIES")
}

func TestRenderTree_DetailBeneathLine(t *testing.T) {
	out := RenderTree(composedDepartment(t), TreeOptions{
		Detail: func(n *view.Node) []string {
			if n.Code == "412000" {
				return []string{"detail for overtime"}
			}
			return nil
		},
	})
	assert.Contains(t, out, "detail for overtime")
}

func TestRenderTree_NoData(t *testing.T) {
	root := view.Compose(pipeline.Aggregate(nil, pipeline.TypeLevel), view.Config{Title: "Revenues by Source"})
	assert.Contains(t, RenderTree(root, TreeOptions{}), "No data")
}

func TestDetailLines(t *testing.T) {
	key := drilldown.RowKey{Department: "10", SubGroup: "1010", Organization: "101010", Object: "411000"}

	assert.Nil(t, DetailLines(drilldown.Row{Key: key}, false))
	assert.Equal(t, []string{drilldown.MsgLoading}, DetailLines(drilldown.Row{Key: key, Status: drilldown.Loading}, false))
	assert.Equal(t, []string{drilldown.MsgEmpty}, DetailLines(drilldown.Row{Key: key, Status: drilldown.Loaded}, false))

	failed := DetailLines(drilldown.Row{Key: key, Status: drilldown.Error, Err: errors.New("boom")}, false)
	require.NotEmpty(t, failed)
	assert.Contains(t, failed[0], drilldown.MsgFailed)

	lines := DetailLines(drilldown.Row{
		Key:    key,
		Status: drilldown.Loaded,
		Detail: model.DetailBundle{
			Employees:      []model.Employee{{FirstName: "JANE", LastName: "DOE", Position: "POLICE OFFICER", TotalPay: 1234.5}},
			VendorExpenses: []model.VendorExpense{{Vendor: "ACME", Description: "Supplies", Actual: 10}},
		},
	}, true)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Employees:")
	assert.Contains(t, joined, "Jane Doe · Police Officer · $1,234.50")
	assert.Contains(t, joined, "Vendor Expenses:")
	assert.Contains(t, joined, "ACME · Supplies · $10.00")
}
