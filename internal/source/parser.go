// Package source fetches rows from a Socrata open-data endpoint and parses them
// into typed budget records.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/theirongolddev/cbudget/internal/model"

	log "github.com/sirupsen/logrus"
)

// ErrDecode indicates a response body that is not a JSON array of objects.
var ErrDecode = errors.New("source: malformed response")

// ParseStats counts numeric fields that could not be parsed and were read as 0.
type ParseStats struct {
	Rows           int
	NumericInvalid int
}

// ParseAmount parses a numeric field. Missing, unparsable and non-finite values
// are 0; ok is false only for non-empty values that failed to parse.
func ParseAmount(t Text) (v float64, ok bool) {
	s := strings.TrimSpace(string(t))
	if s == "" {
		return 0, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (ps *ParseStats) amount(t Text) float64 {
	v, ok := ParseAmount(t)
	if !ok {
		ps.NumericInvalid++
	}
	return v
}

func segment(code, name Text) model.Segment {
	return model.Segment{
		Code: strings.TrimSpace(string(code)),
		Name: strings.TrimSpace(string(name)),
	}
}

func decodeRows[T any](body []byte, what string) ([]T, error) {
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, what, err)
	}
	return rows, nil
}

func logInvalid(what string, ps ParseStats) {
	if ps.NumericInvalid > 0 {
		log.WithFields(log.Fields{
			"rows":    ps.Rows,
			"invalid": ps.NumericInvalid,
		}).Debugf("source: %s: numeric fields read as 0", what)
	}
}

// DecodeBudget parses appropriations or revenues rows.
func DecodeBudget(body []byte, kind Kind) ([]model.BudgetRecord, ParseStats, error) {
	rows, err := decodeRows[RawBudgetRow](body, kind.String())
	if err != nil {
		return nil, ParseStats{}, err
	}

	ps := ParseStats{Rows: len(rows)}
	records := make([]model.BudgetRecord, 0, len(rows))
	for _, r := range rows {
		rec := model.BudgetRecord{
			Department:    segment(r.Segment2Code, r.Segment2),
			SubGroup:      segment(r.Segment3Code, r.Segment3),
			Organization:  strings.TrimSpace(string(r.OrganizationCode)),
			Object:        segment(r.ObjectCode, r.Object),
			ActualToDate:  ps.amount(r.YTD),
			AdoptedBudget: ps.amount(r.Adopted),
		}
		if kind == Revenues {
			rec.Type = segment(r.Segment8Code, r.Segment8)
		} else {
			rec.Type = segment(r.Segment5Code, r.Segment5)
		}
		records = append(records, rec)
	}
	logInvalid(kind.String(), ps)
	return records, ps, nil
}

// DecodeEmployees parses payroll rows, ordered by pay descending and capped at
// model.MaxDetailEntries.
func DecodeEmployees(body []byte) ([]model.Employee, ParseStats, error) {
	rows, err := decodeRows[RawEmployeeRow](body, "payroll")
	if err != nil {
		return nil, ParseStats{}, err
	}

	ps := ParseStats{Rows: len(rows)}
	out := make([]model.Employee, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Employee{
			ID:        strings.TrimSpace(string(r.EmployeeID)),
			FirstName: strings.TrimSpace(string(r.FirstName)),
			LastName:  strings.TrimSpace(string(r.LastName)),
			Position:  strings.TrimSpace(string(r.Position)),
			TotalPay:  ps.amount(r.SumTotalPay),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPay > out[j].TotalPay })
	if len(out) > model.MaxDetailEntries {
		out = out[:model.MaxDetailEntries]
	}
	logInvalid("payroll", ps)
	return out, ps, nil
}

// DecodeVendors parses vendor-expense rows, ordered by amount descending and
// capped at model.MaxDetailEntries.
func DecodeVendors(body []byte) ([]model.VendorExpense, ParseStats, error) {
	rows, err := decodeRows[RawVendorRow](body, "vendor")
	if err != nil {
		return nil, ParseStats{}, err
	}

	ps := ParseStats{Rows: len(rows)}
	out := make([]model.VendorExpense, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.VendorExpense{
			Vendor:      strings.TrimSpace(string(r.VendorName)),
			Description: strings.TrimSpace(string(r.Description)),
			Actual:      ps.amount(r.SumActual),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Actual > out[j].Actual })
	if len(out) > model.MaxDetailEntries {
		out = out[:model.MaxDetailEntries]
	}
	logInvalid("vendor", ps)
	return out, ps, nil
}

// DecodeDepartments parses distinct segment2 rows, ordered by code. Rows without
// a code are dropped since they cannot be queried.
func DecodeDepartments(body []byte) ([]model.Department, error) {
	rows, err := decodeRows[RawBudgetRow](body, "departments")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([]model.Department, 0, len(rows))
	for _, r := range rows {
		seg := segment(r.Segment2Code, r.Segment2)
		if seg.Code == "" {
			continue
		}
		if _, ok := seen[seg.Code]; ok {
			continue
		}
		seen[seg.Code] = struct{}{}
		out = append(out, model.Department{Code: seg.Code, Name: seg.Name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// DecodeSubGroups parses distinct segment3 rows, ordered by code.
func DecodeSubGroups(body []byte) ([]model.Segment, error) {
	rows, err := decodeRows[RawBudgetRow](body, "sub-groups")
	if err != nil {
		return nil, err
	}
	out := make([]model.Segment, 0, len(rows))
	for _, r := range rows {
		out = append(out, segment(r.Segment3Code, r.Segment3))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
