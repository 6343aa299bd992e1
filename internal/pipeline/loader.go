package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/source"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source is the subset of source.Client the loader needs.
type Source interface {
	FetchBudget(ctx context.Context, q soql.Query, kind source.Kind) ([]model.BudgetRecord, error)
	FetchEmployees(ctx context.Context, q soql.Query) ([]model.Employee, error)
	FetchVendors(ctx context.Context, q soql.Query) ([]model.VendorExpense, error)
	FetchDepartments(ctx context.Context, q soql.Query) ([]model.Department, error)
	FetchSubGroups(ctx context.Context, q soql.Query) ([]model.Segment, error)
}

// Loader fetches and aggregates the data behind each view. It also serves as the
// drill-down fetcher for department lines.
type Loader struct {
	src         Source
	datasets    Datasets
	filter      soql.Context
	detailLimit int
}

var _ drilldown.Fetcher = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDetailLimit caps the rows requested per drill-down query.
func WithDetailLimit(n int) LoaderOption {
	return func(l *Loader) { l.detailLimit = n }
}

// NewLoader creates a loader for the given datasets and filter context.
func NewLoader(src Source, ds Datasets, filter soql.Context, opts ...LoaderOption) *Loader {
	l := &Loader{
		src:         src,
		datasets:    ds,
		filter:      filter,
		detailLimit: model.MaxDetailEntries,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Filter returns the loader's filter context.
func (l *Loader) Filter() soql.Context { return l.filter }

// ViewData is one aggregated view.
type ViewData struct {
	View View
	Root *model.GroupNode
}

// LoadView fetches and aggregates one predefined view.
func (l *Loader) LoadView(ctx context.Context, id ViewID) (*ViewData, error) {
	v, ok := LookupView(id)
	if !ok || v.query == nil {
		return nil, fmt.Errorf("pipeline: unknown view %q", id)
	}

	q, err := v.Query(l.datasets, l.filter)
	if err != nil {
		return nil, fmt.Errorf("pipeline: building %s query: %w", id, err)
	}

	start := time.Now()
	records, err := l.src.FetchBudget(ctx, q, v.Kind)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", v.Title, err)
	}

	root := Aggregate(records, v.Levels...)
	root.Label = v.Title
	log.WithFields(log.Fields{
		"view":    string(id),
		"records": len(records),
		"elapsed": time.Since(start),
	}).Debug("pipeline: view loaded")
	return &ViewData{View: v, Root: root}, nil
}

// TabData holds both views of a tab.
type TabData struct {
	Tab   Tab
	Views [2]*ViewData
}

// LoadTab loads both views of a tab concurrently. It fails if either fails.
func (l *Loader) LoadTab(ctx context.Context, tab Tab) (*TabData, error) {
	data := &TabData{Tab: tab}

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range tab.Views {
		g.Go(func() error {
			vd, err := l.LoadView(gctx, id)
			if err != nil {
				return err
			}
			data.Views[i] = vd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// Departments lists the departments with appropriations in the filter context.
func (l *Loader) Departments(ctx context.Context) ([]model.Department, error) {
	q, err := soql.Build(departmentsSpec(l.datasets, l.filter))
	if err != nil {
		return nil, fmt.Errorf("pipeline: building departments query: %w", err)
	}
	depts, err := l.src.FetchDepartments(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading departments: %w", err)
	}
	return depts, nil
}

// DepartmentData is one department's sub-groups and their budget lines.
type DepartmentData struct {
	Department model.Department
	View       View
	Root       *model.GroupNode
}

// LoadDepartment fetches the sub-group list and the grouped lines of one
// department concurrently and joins them. Sub-groups without lines are kept as
// empty groups.
func (l *Loader) LoadDepartment(ctx context.Context, dept model.Department) (*DepartmentData, error) {
	subQ, err := soql.Build(subGroupsSpec(l.datasets, l.filter, dept.Code))
	if err != nil {
		return nil, fmt.Errorf("pipeline: building sub-group query: %w", err)
	}
	linesQ, err := soql.Build(departmentLinesSpec(l.datasets, l.filter, dept.Code))
	if err != nil {
		return nil, fmt.Errorf("pipeline: building department lines query: %w", err)
	}

	var (
		subs  []model.Segment
		lines []model.BudgetRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		subs, err = l.src.FetchSubGroups(gctx, subQ)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = l.src.FetchBudget(gctx, linesQ, source.Appropriations)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading department %s: %w", dept.Code, err)
	}

	v := departmentDetailView
	root := Aggregate(lines, v.Levels...)
	addEmptyGroups(root, v.Levels[0], subs)
	root.Code = dept.Code
	root.Name = dept.Name
	root.Label = dept.Name
	if root.Label == "" {
		root.Label = DepartmentLevel.Unknown
	}
	return &DepartmentData{Department: dept, View: v, Root: root}, nil
}

// addEmptyGroups adds a zero-total child for each segment missing from root's
// children and restores code order.
func addEmptyGroups(root *model.GroupNode, level Level, segs []model.Segment) {
	have := make(map[model.Segment]struct{}, len(root.Children))
	for _, c := range root.Children {
		have[model.Segment{Code: c.Code, Name: c.Name}] = struct{}{}
	}
	added := false
	for _, s := range segs {
		if _, ok := have[s]; ok {
			continue
		}
		have[s] = struct{}{}
		root.Children = append(root.Children, &model.GroupNode{Code: s.Code, Name: s.Name, Label: level.Label(s)})
		added = true
	}
	if added {
		sort.SliceStable(root.Children, func(i, j int) bool {
			a, b := root.Children[i], root.Children[j]
			if a.Code != b.Code {
				return a.Code < b.Code
			}
			return a.Name < b.Name
		})
	}
}

// Employees implements drilldown.Fetcher.
func (l *Loader) Employees(ctx context.Context, key drilldown.RowKey) ([]model.Employee, error) {
	q, err := soql.Build(employeesSpec(l.datasets, l.filter, key, l.detailLimit))
	if err != nil {
		return nil, err
	}
	return l.src.FetchEmployees(ctx, q)
}

// VendorExpenses implements drilldown.Fetcher.
func (l *Loader) VendorExpenses(ctx context.Context, key drilldown.RowKey) ([]model.VendorExpense, error) {
	q, err := soql.Build(vendorsSpec(l.datasets, l.filter, key, l.detailLimit))
	if err != nil {
		return nil, err
	}
	return l.src.FetchVendors(ctx, q)
}

// FilterDepartments keeps departments whose code or name contains q, ignoring case.
func FilterDepartments(depts []model.Department, q string) []model.Department {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return depts
	}
	var out []model.Department
	for _, d := range depts {
		if strings.Contains(strings.ToLower(d.Code), q) || strings.Contains(strings.ToLower(d.Name), q) {
			out = append(out, d)
		}
	}
	return out
}
