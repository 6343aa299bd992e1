package pipeline

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(dept, obj string, actual, adopted float64) model.BudgetRecord {
	return model.BudgetRecord{
		Department:    model.Segment{Code: dept, Name: dept},
		Object:        model.Segment{Code: obj, Name: "OBJ " + obj},
		ActualToDate:  actual,
		AdoptedBudget: adopted,
	}
}

func codes(nodes []*model.GroupNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Code
	}
	return out
}

func TestAggregate_EndToEnd(t *testing.T) {
	body := []byte(`[
		{"segment2code":"A","segment2":"A","objectcode":"02","object":"SUPPLIES","ytd":"50","adopted":"100"},
		{"segment2code":"A","segment2":"A","objectcode":"01","object":"SALARIES","ytd":"150","adopted":"100"}
	]`)
	records, _, err := source.DecodeBudget(body, source.Appropriations)
	require.NoError(t, err)

	root := Aggregate(records, DepartmentLevel)
	require.Len(t, root.Children, 1)

	a := root.Children[0]
	assert.Equal(t, "A", a.Label)
	assert.Equal(t, 200.0, a.TotalActual)
	assert.Equal(t, 200.0, a.TotalAdopted)

	d := overage.Describe(a.TotalActual, a.TotalAdopted)
	assert.Equal(t, 1.0, d.Ratio)
	assert.Empty(t, d.Layers)

	require.Len(t, a.Records, 2)
	assert.Equal(t, "01", a.Records[0].Object.Code)
	assert.Equal(t, "02", a.Records[1].Object.Code)
}

func TestAggregate_OrdersByCode(t *testing.T) {
	root := Aggregate([]model.BudgetRecord{
		rec("003", "x", 1, 1),
		rec("001", "x", 1, 1),
		rec("002", "x", 1, 1),
	}, DepartmentLevel)

	assert.Equal(t, []string{"001", "002", "003"}, codes(root.Children))
}

func TestAggregate_SameCodeDifferentNameIsStable(t *testing.T) {
	records := []model.BudgetRecord{
		{Department: model.Segment{Code: "10", Name: "POLICE"}, ActualToDate: 1},
		{Department: model.Segment{Code: "10", Name: "FIRE"}, ActualToDate: 2},
		{Department: model.Segment{Code: "05", Name: "AUDIT"}, ActualToDate: 3},
	}
	first := Aggregate(records, DepartmentLevel)
	for i := 0; i < 20; i++ {
		again := Aggregate(records, DepartmentLevel)
		require.Len(t, again.Children, 3)
		for j := range first.Children {
			assert.Equal(t, first.Children[j].Name, again.Children[j].Name)
		}
	}
	assert.Equal(t, []string{"AUDIT", "FIRE", "POLICE"},
		[]string{first.Children[0].Name, first.Children[1].Name, first.Children[2].Name})
}

func TestAggregate_UnknownDepartment(t *testing.T) {
	records := []model.BudgetRecord{
		rec("10", "01", 100, 100),
		{Department: model.Segment{Code: "99"}, ActualToDate: 25, AdoptedBudget: 50},
	}
	root := Aggregate(records, DepartmentLevel)

	require.Len(t, root.Children, 2)
	unknown := Find(root, "99")
	require.NotNil(t, unknown)
	assert.Equal(t, "Unknown Dept", unknown.Label)
	assert.Empty(t, unknown.Name)
	assert.Equal(t, 125.0, root.TotalActual)
	assert.Equal(t, 150.0, root.TotalAdopted)
}

func TestAggregate_NestedLevels(t *testing.T) {
	records := []model.BudgetRecord{
		{Department: model.Segment{Code: "20", Name: "FIRE"}, Type: model.Segment{Code: "41", Name: "PERSONAL"}, ActualToDate: 10, AdoptedBudget: 20},
		{Department: model.Segment{Code: "10", Name: "POLICE"}, Type: model.Segment{Code: "42", Name: "BENEFITS"}, ActualToDate: 5, AdoptedBudget: 5},
		{Department: model.Segment{Code: "10", Name: "POLICE"}, Type: model.Segment{Code: "41", Name: "PERSONAL"}, ActualToDate: 7, AdoptedBudget: 6},
	}
	root := Aggregate(records, DepartmentLevel, TypeLevel)

	assert.Equal(t, []string{"10", "20"}, codes(root.Children))
	police := root.Children[0]
	assert.Equal(t, []string{"41", "42"}, codes(police.Children))
	assert.Equal(t, 12.0, police.TotalActual)
	assert.Equal(t, 11.0, police.TotalAdopted)
	assert.Equal(t, 3, root.Count())
	assert.Len(t, police.Children[0].Records, 1)
}

func TestAggregate_NoLevels(t *testing.T) {
	root := Aggregate([]model.BudgetRecord{rec("a", "02", 1, 2), rec("a", "01", 3, 4)})
	assert.True(t, root.IsLeaf())
	require.Len(t, root.Records, 2)
	assert.Equal(t, "01", root.Records[0].Object.Code)
	assert.Equal(t, 4.0, root.TotalActual)
}

func TestAggregate_Empty(t *testing.T) {
	root := Aggregate(nil, DepartmentLevel)
	assert.Empty(t, root.Children)
	assert.Equal(t, 0.0, root.TotalActual)
}

func TestAggregate_DoesNotReorderInput(t *testing.T) {
	records := []model.BudgetRecord{rec("a", "02", 1, 1), rec("a", "01", 1, 1)}
	Aggregate(records)
	assert.Equal(t, "02", records[0].Object.Code)
}

// Integer-valued amounts keep every float summation exact regardless of order.
func TestAggregate_SumInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(20250701))

	for trial := 0; trial < 200; trial++ {
		n := rng.Intn(60)
		records := make([]model.BudgetRecord, n)
		for i := range records {
			records[i] = model.BudgetRecord{
				Type:          model.Segment{Code: fmt.Sprintf("%02d", rng.Intn(4)), Name: pick(rng, "", "PERSONAL", "SUPPLIES")},
				Department:    model.Segment{Code: fmt.Sprintf("%03d", rng.Intn(6)), Name: pick(rng, "", "POLICE", "FIRE")},
				SubGroup:      model.Segment{Code: fmt.Sprintf("%04d", rng.Intn(3))},
				Object:        model.Segment{Code: fmt.Sprintf("%06d", rng.Intn(10))},
				ActualToDate:  float64(rng.Intn(2_000_000) - 500_000),
				AdoptedBudget: float64(rng.Intn(2_000_000)),
			}
		}

		root := Aggregate(records, DepartmentLevel, TypeLevel, SubGroupLevel)
		checkSums(t, root)
		assert.Equal(t, n, root.Count())
	}
}

func pick(rng *rand.Rand, opts ...string) string {
	return opts[rng.Intn(len(opts))]
}

func checkSums(t *testing.T, n *model.GroupNode) (actual, adopted float64) {
	t.Helper()
	if n.IsLeaf() {
		for _, r := range n.Records {
			actual += r.ActualToDate
			adopted += r.AdoptedBudget
		}
	} else {
		var childActual, childAdopted float64
		for _, c := range n.Children {
			a, b := checkSums(t, c)
			actual += a
			adopted += b
			childActual += c.TotalActual
			childAdopted += c.TotalAdopted
		}
		if n.TotalActual != childActual || n.TotalAdopted != childAdopted {
			t.Fatalf("node %q totals %v/%v != children %v/%v", n.Code, n.TotalActual, n.TotalAdopted, childActual, childAdopted)
		}
		for i := 1; i < len(n.Children); i++ {
			if n.Children[i-1].Code > n.Children[i].Code {
				t.Fatalf("children of %q out of order: %q > %q", n.Code, n.Children[i-1].Code, n.Children[i].Code)
			}
		}
	}
	if n.TotalActual != actual || n.TotalAdopted != adopted {
		t.Fatalf("node %q totals %v/%v != leaf sums %v/%v", n.Code, n.TotalActual, n.TotalAdopted, actual, adopted)
	}
	return actual, adopted
}
