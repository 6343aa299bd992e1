package model

import "strings"

// MaxDetailEntries caps each drill-down sequence.
const MaxDetailEntries = 100

// Employee is one payroll entry summed over the fiscal year.
type Employee struct {
	ID        string
	FirstName string
	LastName  string
	Position  string
	TotalPay  float64
}

// FullName joins first and last name, skipping empty parts.
func (e Employee) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// VendorExpense is one vendor/description pair summed over the fiscal year.
type VendorExpense struct {
	Vendor      string
	Description string
	Actual      float64
}

// DetailBundle is the drill-down payload beneath one appropriation line.
type DetailBundle struct {
	Employees      []Employee
	VendorExpenses []VendorExpense
}

// Empty reports the valid "no data" state.
func (d DetailBundle) Empty() bool {
	return len(d.Employees) == 0 && len(d.VendorExpenses) == 0
}

// TotalPay sums employee pay.
func (d DetailBundle) TotalPay() float64 {
	var total float64
	for _, e := range d.Employees {
		total += e.TotalPay
	}
	return total
}

// TotalVendor sums vendor expenses.
func (d DetailBundle) TotalVendor() float64 {
	var total float64
	for _, v := range d.VendorExpenses {
		total += v.Actual
	}
	return total
}
