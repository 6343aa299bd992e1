package drilldown

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/model"
)

// Placeholder text shown in a row's detail slot.
const (
	MsgLoading = "Loading data..."
	MsgEmpty   = "No employee or vendor data found for this line item."
	MsgFailed  = "Failed to load employee/expense data."
)

// RowKey identifies one expandable line by its ancestor codes. It is captured
// when the line is composed and never changes afterwards.
type RowKey struct {
	Department   string
	SubGroup     string
	Organization string
	Object       string
}

func (k RowKey) String() string {
	return strings.Join([]string{k.Department, k.SubGroup, k.Organization, k.Object}, "/")
}

// Row is a snapshot of one row's state.
type Row struct {
	Key    RowKey
	Status Status
	Detail model.DetailBundle
	Cached bool
	Err    error
}

// Visible reports whether the detail slot is shown.
func (r Row) Visible() bool {
	return r.Status != Collapsed
}

// Message is the placeholder text for states that have no table to show.
// It is empty for Collapsed and for Loaded rows with data.
func (r Row) Message() string {
	switch r.Status {
	case Loading:
		return MsgLoading
	case Error:
		if r.Err != nil {
			return MsgFailed + " " + r.Err.Error()
		}
		return MsgFailed
	case Loaded:
		if r.Detail.Empty() {
			return MsgEmpty
		}
	}
	return ""
}
