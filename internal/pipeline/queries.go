package pipeline

import (
	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/soql"
)

// Datasets names the Socrata dataset IDs queried by the views.
type Datasets struct {
	Appropriations string
	Revenues       string
	Payroll        string
	Vendors        string
}

// DefaultDatasets are the City of Buffalo open-data identifiers.
var DefaultDatasets = Datasets{
	Appropriations: "xy5k-883e",
	Revenues:       "cvx5-9drv",
	Payroll:        "hm3x-8br6",
	Vendors:        "bktd-jwim",
}

var amountColumns = []soql.Column{
	soql.Sum("actual", "ytd"),
	soql.Sum("originalbudget", "adopted"),
}

// budgetSpec selects code/name column pairs plus summed amounts, grouped by the
// pairs and ordered by each code column.
func budgetSpec(dataset string, ctx soql.Context, pairs ...string) soql.Spec {
	spec := soql.Spec{
		Dataset: dataset,
		Context: ctx,
		Select:  append(soql.Cols(pairs...), amountColumns...),
		GroupBy: pairs,
	}
	for i := 0; i < len(pairs); i += 2 {
		spec.OrderBy = append(spec.OrderBy, soql.Asc(pairs[i]))
	}
	return spec
}

func departmentsSpec(ds Datasets, ctx soql.Context) soql.Spec {
	return soql.Spec{
		Dataset:  ds.Appropriations,
		Context:  ctx,
		Select:   soql.Cols("segment2code", "segment2"),
		Distinct: true,
		OrderBy:  []soql.Order{soql.Asc("segment2code")},
	}
}

func subGroupsSpec(ds Datasets, ctx soql.Context, dept string) soql.Spec {
	return soql.Spec{
		Dataset:  ds.Appropriations,
		Context:  ctx,
		Select:   soql.Cols("segment3code", "segment3"),
		Distinct: true,
		Filters:  map[string]string{"segment2code": dept},
		OrderBy:  []soql.Order{soql.Asc("segment3code")},
	}
}

func departmentLinesSpec(ds Datasets, ctx soql.Context, dept string) soql.Spec {
	group := []string{"segment2code", "segment2", "segment3code", "segment3", "organizationcode", "objectcode", "object"}
	return soql.Spec{
		Dataset: ds.Appropriations,
		Context: ctx,
		Select:  append(soql.Cols(group...), amountColumns...),
		GroupBy: group,
		Filters: map[string]string{"segment2code": dept},
		OrderBy: []soql.Order{soql.Asc("segment3code"), soql.Asc("objectcode"), soql.Asc("organizationcode")},
	}
}

func lineFilters(key drilldown.RowKey) map[string]string {
	return map[string]string{
		"segment2code":     key.Department,
		"segment3code":     key.SubGroup,
		"organizationcode": key.Organization,
		"objectcode":       key.Object,
	}
}

func employeesSpec(ds Datasets, ctx soql.Context, key drilldown.RowKey, limit int) soql.Spec {
	group := []string{"employeeid", "firstname", "lastname", "position"}
	return soql.Spec{
		Dataset: ds.Payroll,
		Context: ctx.YearOnly(),
		Select:  append(soql.Cols(group...), soql.Sum("totalpay", "sum_totalpay")),
		GroupBy: group,
		Filters: lineFilters(key),
		OrderBy: []soql.Order{soql.Desc("sum_totalpay")},
		Limit:   detailLimit(limit),
	}
}

func vendorsSpec(ds Datasets, ctx soql.Context, key drilldown.RowKey, limit int) soql.Spec {
	group := []string{"vendorname", "description"}
	return soql.Spec{
		Dataset: ds.Vendors,
		Context: ctx.YearOnly(),
		Select:  append(soql.Cols(group...), soql.Sum("actual", "sum_actual")),
		GroupBy: group,
		Filters: lineFilters(key),
		OrderBy: []soql.Order{soql.Desc("sum_actual")},
		Limit:   detailLimit(limit),
	}
}

func detailLimit(n int) int {
	if n <= 0 || n > model.MaxDetailEntries {
		return model.MaxDetailEntries
	}
	return n
}
