package source

import (
	"bytes"
	"encoding/json"
)

// Text is a loosely-typed upstream field. Socrata encodes aggregates as strings,
// but plain numeric columns and nulls show up too; all of them decode to text.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans and null. It never fails on
// scalar input so one odd field cannot reject a whole row.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// RawBudgetRow is one row of the appropriations or revenues dataset, as selected
// by any of the budget queries. Unselected columns stay empty.
type RawBudgetRow struct {
	Segment2Code     Text `json:"segment2code"`
	Segment2         Text `json:"segment2"`
	Segment3Code     Text `json:"segment3code"`
	Segment3         Text `json:"segment3"`
	Segment5Code     Text `json:"segment5code"`
	Segment5         Text `json:"segment5"`
	Segment8Code     Text `json:"segment8code"`
	Segment8         Text `json:"segment8"`
	OrganizationCode Text `json:"organizationcode"`
	ObjectCode       Text `json:"objectcode"`
	Object           Text `json:"object"`
	YTD              Text `json:"ytd"`
	Adopted          Text `json:"adopted"`
}

// RawEmployeeRow is one grouped payroll row.
type RawEmployeeRow struct {
	EmployeeID  Text `json:"employeeid"`
	FirstName   Text `json:"firstname"`
	LastName    Text `json:"lastname"`
	Position    Text `json:"position"`
	SumTotalPay Text `json:"sum_totalpay"`
}

// RawVendorRow is one grouped vendor-expense row.
type RawVendorRow struct {
	VendorName  Text `json:"vendorname"`
	Description Text `json:"description"`
	SumActual   Text `json:"sum_actual"`
}

// Kind selects which segment of a budget row becomes the record's Type.
type Kind int

const (
	// Appropriations rows are typed by segment5 (appropriation type).
	Appropriations Kind = iota
	// Revenues rows are typed by segment8 (revenue source).
	Revenues
)

func (k Kind) String() string {
	if k == Revenues {
		return "revenues"
	}
	return "appropriations"
}
