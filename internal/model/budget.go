// Package model defines domain types for cbudget records, aggregates and drill-down detail.
package model

// Segment is one level of the chart-of-accounts hierarchy.
type Segment struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// BudgetRecord is one flat row from the appropriations or revenues dataset.
// Type holds segment5 (appropriation type) or segment8 (revenue source).
type BudgetRecord struct {
	Type         Segment
	Department   Segment
	SubGroup     Segment
	Organization string
	Object       Segment

	ActualToDate  float64
	AdoptedBudget float64
}

// GroupNode is one node of an aggregate sum tree.
// Interior nodes carry Children; nodes at the last grouping level carry Records.
type GroupNode struct {
	Code  string
	Name  string // raw grouping value, may be empty
	Label string // display label, never empty below the root

	TotalActual  float64
	TotalAdopted float64

	Children []*GroupNode
	Records  []BudgetRecord
}

// IsLeaf reports whether the node holds records instead of sub-groups.
func (n *GroupNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Count returns the number of records beneath the node.
func (n *GroupNode) Count() int {
	if n.IsLeaf() {
		return len(n.Records)
	}
	total := 0
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Department is an entry in the department picker.
type Department struct {
	Code string
	Name string
}
