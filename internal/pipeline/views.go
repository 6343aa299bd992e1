package pipeline

import (
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/source"
)

// Grouping levels shared by the views.
var (
	TypeLevel = Level{
		Name:    "Type",
		Unknown: "Unknown",
		Key:     func(r model.BudgetRecord) model.Segment { return r.Type },
	}
	SourceLevel = Level{
		Name:    "Source",
		Unknown: "Unknown Source",
		Key:     func(r model.BudgetRecord) model.Segment { return r.Type },
	}
	DepartmentLevel = Level{
		Name:    "Department",
		Unknown: "Unknown Dept",
		Key:     func(r model.BudgetRecord) model.Segment { return r.Department },
	}
	SubGroupLevel = Level{
		Name:    "Sub-group",
		Unknown: "Unknown",
		Key:     func(r model.BudgetRecord) model.Segment { return r.SubGroup },
	}
	ObjectLevel = Level{
		Name:    "Object",
		Unknown: "Unknown",
		Key:     func(r model.BudgetRecord) model.Segment { return r.Object },
	}
)

// ViewID names one predefined hierarchy.
type ViewID string

const (
	AppropriationsByType ViewID = "appropriations-type"
	AppropriationsByDept ViewID = "appropriations-dept"
	RevenuesBySource     ViewID = "revenues-source"
	RevenuesByDept       ViewID = "revenues-dept"
	DepartmentDetail     ViewID = "department-detail"
)

// View describes how one hierarchy is queried, grouped and shown.
type View struct {
	ID     ViewID
	Title  string
	Kind   source.Kind
	Levels []Level
	// ShowRecords renders leaf records as lines under the last level.
	ShowRecords bool
	// DrillDown attaches a payroll/vendor detail slot to each line.
	DrillDown bool

	query func(Datasets, soql.Context) soql.Spec
}

// Query builds the view's query for a filter context.
func (v View) Query(ds Datasets, ctx soql.Context) (soql.Query, error) {
	return soql.Build(v.query(ds, ctx))
}

var views = map[ViewID]View{
	AppropriationsByType: {
		ID:          AppropriationsByType,
		Title:       "Appropriations by Type",
		Kind:        source.Appropriations,
		Levels:      []Level{TypeLevel},
		ShowRecords: true,
		query: func(ds Datasets, ctx soql.Context) soql.Spec {
			return budgetSpec(ds.Appropriations, ctx, "segment5code", "segment5", "objectcode", "object")
		},
	},
	AppropriationsByDept: {
		ID:     AppropriationsByDept,
		Title:  "Department Appropriations by Type",
		Kind:   source.Appropriations,
		Levels: []Level{DepartmentLevel, TypeLevel},
		query: func(ds Datasets, ctx soql.Context) soql.Spec {
			return budgetSpec(ds.Appropriations, ctx, "segment2code", "segment2", "segment5code", "segment5")
		},
	},
	RevenuesBySource: {
		ID:          RevenuesBySource,
		Title:       "Revenues by Source",
		Kind:        source.Revenues,
		Levels:      []Level{SourceLevel},
		ShowRecords: true,
		query: func(ds Datasets, ctx soql.Context) soql.Spec {
			return budgetSpec(ds.Revenues, ctx, "segment8code", "segment8", "objectcode", "object")
		},
	},
	RevenuesByDept: {
		ID:     RevenuesByDept,
		Title:  "Revenue by Department",
		Kind:   source.Revenues,
		Levels: []Level{DepartmentLevel, ObjectLevel},
		query: func(ds Datasets, ctx soql.Context) soql.Spec {
			return budgetSpec(ds.Revenues, ctx, "segment2code", "segment2", "objectcode", "object")
		},
	},
}

// departmentDetailView is keyed by department, so its query is built by the loader.
var departmentDetailView = View{
	ID:          DepartmentDetail,
	Title:       "Department Details",
	Kind:        source.Appropriations,
	Levels:      []Level{SubGroupLevel},
	ShowRecords: true,
	DrillDown:   true,
}

// LookupView returns a predefined view by ID.
func LookupView(id ViewID) (View, bool) {
	if id == DepartmentDetail {
		return departmentDetailView, true
	}
	v, ok := views[id]
	return v, ok
}

// ViewIDs lists the predefined views in display order.
func ViewIDs() []ViewID {
	return []ViewID{AppropriationsByType, AppropriationsByDept, RevenuesBySource, RevenuesByDept, DepartmentDetail}
}

// Tab is a pair of views loaded together.
type Tab struct {
	Name  string
	Error string
	Views [2]ViewID
}

var (
	AppropriationsTab = Tab{
		Name:  "Appropriations",
		Error: "Failed to load appropriations data",
		Views: [2]ViewID{AppropriationsByType, AppropriationsByDept},
	}
	RevenuesTab = Tab{
		Name:  "Revenues",
		Error: "Failed to load revenues data",
		Views: [2]ViewID{RevenuesBySource, RevenuesByDept},
	}
)
