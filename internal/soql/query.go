// Package soql builds query descriptors for Socrata (SoQL) tabular endpoints.
package soql

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxLimit caps $limit on every query.
const MaxLimit = 100

var (
	// ErrNoColumns is returned when a spec selects nothing.
	ErrNoColumns = errors.New("soql: no columns selected")
	// ErrAggregateWithoutGroup is returned when aggregates are selected with no $group.
	ErrAggregateWithoutGroup = errors.New("soql: aggregate columns require group-by columns")
	// ErrGroupNotSelected is returned when a group-by column is not a selected plain column.
	ErrGroupNotSelected = errors.New("soql: group-by column is not a selected column")
	// ErrNoDataset is returned when a spec names no dataset.
	ErrNoDataset = errors.New("soql: dataset is required")
)

// Column is one $select entry, either a plain column or an aggregate with an alias.
type Column struct {
	Name  string
	Agg   string // "sum", "count", ...; empty for plain columns
	Alias string
}

// Col returns a plain column.
func Col(name string) Column {
	return Column{Name: name}
}

// Sum returns sum(name) as alias.
func Sum(name, alias string) Column {
	return Column{Name: name, Agg: "sum", Alias: alias}
}

// Cols returns plain columns for each name.
func Cols(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Col(n)
	}
	return out
}

// IsAggregate reports whether the column is an aggregate expression.
func (c Column) IsAggregate() bool {
	return c.Agg != ""
}

// Ref is the name the column is addressed by in $order and in response rows.
func (c Column) Ref() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

func (c Column) String() string {
	expr := c.Name
	if c.Agg != "" {
		expr = c.Agg + "(" + c.Name + ")"
	}
	if c.Alias != "" {
		expr += " as " + c.Alias
	}
	return expr
}

// Order is one $order entry.
type Order struct {
	Column string
	Desc   bool
}

// Asc orders by column ascending.
func Asc(col string) Order { return Order{Column: col} }

// Desc orders by column descending.
func Desc(col string) Order { return Order{Column: col, Desc: true} }

func (o Order) String() string {
	if o.Desc {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}

// Filter is one equality term of the conjunctive $where clause.
type Filter struct {
	Column string
	Value  string
}

func (f Filter) String() string {
	return f.Column + "=" + quote(f.Value)
}

// Context is the fixed filter context shared by every query of a session.
// Empty fields are not filtered on.
type Context struct {
	Entity     string
	FundGroup  string
	FiscalYear string
}

// YearOnly keeps only the fiscal year, for datasets without entity/fund columns.
func (c Context) YearOnly() Context {
	return Context{FiscalYear: c.FiscalYear}
}

func (c Context) filters() []Filter {
	var out []Filter
	if c.Entity != "" {
		out = append(out, Filter{Column: "entity", Value: c.Entity})
	}
	if c.FundGroup != "" {
		out = append(out, Filter{Column: "fundgroup", Value: c.FundGroup})
	}
	if c.FiscalYear != "" {
		out = append(out, Filter{Column: "fiscalyear", Value: c.FiscalYear})
	}
	return out
}

// Spec is the caller-facing configuration of a query.
type Spec struct {
	Dataset  string
	Context  Context
	Select   []Column
	Distinct bool
	GroupBy  []string
	OrderBy  []Order
	Filters  map[string]string
	Limit    int
}

// Query is a validated query descriptor. It is turned into a request by the source client.
type Query struct {
	Dataset  string
	Select   []Column
	Distinct bool
	Where    []Filter
	Group    []string
	Order    []Order
	Limit    int
}

// Build validates spec and returns its query descriptor.
func Build(spec Spec) (Query, error) {
	if spec.Dataset == "" {
		return Query{}, ErrNoDataset
	}
	if len(spec.Select) == 0 {
		return Query{}, ErrNoColumns
	}

	plain := make(map[string]struct{}, len(spec.Select))
	hasAgg := false
	for _, c := range spec.Select {
		if c.IsAggregate() {
			hasAgg = true
			continue
		}
		plain[c.Name] = struct{}{}
	}
	if hasAgg && len(spec.GroupBy) == 0 {
		return Query{}, ErrAggregateWithoutGroup
	}
	for _, g := range spec.GroupBy {
		if _, ok := plain[g]; !ok {
			return Query{}, fmt.Errorf("%w: %s", ErrGroupNotSelected, g)
		}
	}

	where := spec.Context.filters()
	cols := make([]string, 0, len(spec.Filters))
	for col := range spec.Filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		where = append(where, Filter{Column: col, Value: spec.Filters[col]})
	}

	limit := spec.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Query{
		Dataset:  spec.Dataset,
		Select:   append([]Column(nil), spec.Select...),
		Distinct: spec.Distinct,
		Where:    where,
		Group:    append([]string(nil), spec.GroupBy...),
		Order:    append([]Order(nil), spec.OrderBy...),
		Limit:    limit,
	}, nil
}

// MustBuild is Build for statically known specs; it panics on invalid input.
func MustBuild(spec Spec) Query {
	q, err := Build(spec)
	if err != nil {
		panic(err)
	}
	return q
}

// SelectClause renders $select.
func (q Query) SelectClause() string {
	parts := make([]string, len(q.Select))
	for i, c := range q.Select {
		parts[i] = c.String()
	}
	s := strings.Join(parts, ",")
	if q.Distinct {
		s = "distinct " + s
	}
	return s
}

// WhereClause renders $where as an AND of equality terms.
func (q Query) WhereClause() string {
	parts := make([]string, len(q.Where))
	for i, f := range q.Where {
		parts[i] = f.String()
	}
	return strings.Join(parts, " AND ")
}

// Values renders the SoQL parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("$select", q.SelectClause())
	if len(q.Where) > 0 {
		v.Set("$where", q.WhereClause())
	}
	if len(q.Group) > 0 {
		v.Set("$group", strings.Join(q.Group, ","))
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			parts[i] = o.String()
		}
		v.Set("$order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("$limit", strconv.Itoa(q.Limit))
	}
	return v
}

// URL renders the full request URL against a Socrata base URL.
func (q Query) URL(base string) string {
	return strings.TrimRight(base, "/") + "/resource/" + q.Dataset + ".json?" + q.Values().Encode()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
