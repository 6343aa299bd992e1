package soql

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

var testContext = Context{Entity: "CITY", FundGroup: "GENERAL FUND", FiscalYear: "2025"}

func TestBuild_GroupedQuery(t *testing.T) {
	q, err := Build(Spec{
		Dataset: "xy5k-883e",
		Context: testContext,
		Select: append(Cols("segment5code", "segment5", "objectcode", "object"),
			Sum("actual", "ytd"), Sum("originalbudget", "adopted")),
		GroupBy: []string{"segment5code", "segment5", "objectcode", "object"},
		OrderBy: []Order{Asc("segment5code"), Asc("objectcode")},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantSelect := "segment5code,segment5,objectcode,object,sum(actual) as ytd,sum(originalbudget) as adopted"
	if got := q.SelectClause(); got != wantSelect {
		t.Errorf("SelectClause = %q, want %q", got, wantSelect)
	}
	wantWhere := "entity='CITY' AND fundgroup='GENERAL FUND' AND fiscalyear='2025'"
	if got := q.WhereClause(); got != wantWhere {
		t.Errorf("WhereClause = %q, want %q", got, wantWhere)
	}

	v := q.Values()
	if got := v.Get("$group"); got != "segment5code,segment5,objectcode,object" {
		t.Errorf("$group = %q", got)
	}
	if got := v.Get("$order"); got != "segment5code ASC,objectcode ASC" {
		t.Errorf("$order = %q", got)
	}
	if v.Has("$limit") {
		t.Errorf("$limit set without a limit: %q", v.Get("$limit"))
	}
}

func TestBuild_FiltersAreConjunctiveAndSorted(t *testing.T) {
	q := MustBuild(Spec{
		Dataset: "hm3x-8br6",
		Context: testContext.YearOnly(),
		Select:  Cols("employeeid"),
		Filters: map[string]string{
			"objectcode":  "411000",
			"segment2code": "10",
			"segment3code": "1010",
		},
	})

	want := "fiscalyear='2025' AND objectcode='411000' AND segment2code='10' AND segment3code='1010'"
	if got := q.WhereClause(); got != want {
		t.Errorf("WhereClause = %q, want %q", got, want)
	}
}

func TestBuild_QuotesValues(t *testing.T) {
	q := MustBuild(Spec{
		Dataset: "d",
		Select:  Cols("vendorname"),
		Filters: map[string]string{"vendorname": "O'BRIEN"},
	})
	if got := q.WhereClause(); got != "vendorname='O''BRIEN'" {
		t.Errorf("WhereClause = %q", got)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"no dataset", Spec{Select: Cols("a")}, ErrNoDataset},
		{"no columns", Spec{Dataset: "d"}, ErrNoColumns},
		{"aggregate without group", Spec{Dataset: "d", Select: []Column{Col("a"), Sum("b", "s")}}, ErrAggregateWithoutGroup},
		{"group not selected", Spec{Dataset: "d", Select: []Column{Col("a"), Sum("b", "s")}, GroupBy: []string{"c"}}, ErrGroupNotSelected},
		{"group on aggregate", Spec{Dataset: "d", Select: []Column{Col("a"), Sum("b", "s")}, GroupBy: []string{"b"}}, ErrGroupNotSelected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuild_LimitClamped(t *testing.T) {
	q := MustBuild(Spec{Dataset: "d", Select: Cols("a"), Limit: 5000})
	if q.Limit != MaxLimit {
		t.Fatalf("Limit = %d, want %d", q.Limit, MaxLimit)
	}
	if got := q.Values().Get("$limit"); got != "100" {
		t.Errorf("$limit = %q, want 100", got)
	}
}

func TestQuery_URL(t *testing.T) {
	q := MustBuild(Spec{
		Dataset:  "xy5k-883e",
		Context:  testContext,
		Select:   Cols("segment2code", "segment2"),
		Distinct: true,
		OrderBy:  []Order{Asc("segment2code")},
	})

	raw := q.URL("https://data.example.gov/")
	if !strings.HasPrefix(raw, "https://data.example.gov/resource/xy5k-883e.json?") {
		t.Fatalf("URL prefix wrong: %s", raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := u.Query().Get("$select"); got != "distinct segment2code,segment2" {
		t.Errorf("$select = %q", got)
	}
}

func TestSpecIsNotAliased(t *testing.T) {
	cols := Cols("a", "b")
	q := MustBuild(Spec{Dataset: "d", Select: cols})
	cols[0] = Col("mutated")
	if q.Select[0].Name != "a" {
		t.Fatal("query shares the caller's select slice")
	}
}
