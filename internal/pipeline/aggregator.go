// Package pipeline turns budget rows into grouped sum trees and loads the
// datasets behind each view.
package pipeline

import (
	"sort"

	"github.com/theirongolddev/cbudget/internal/model"
)

// Level is one grouping step of a hierarchy.
type Level struct {
	Name    string
	Unknown string // label for groups with an empty name
	Key     func(model.BudgetRecord) model.Segment
}

// Label returns the display label for a group key at this level.
func (l Level) Label(seg model.Segment) string {
	if seg.Name != "" {
		return seg.Name
	}
	if l.Unknown != "" {
		return l.Unknown
	}
	return "Unknown"
}

// Aggregate groups records by each level in turn and sums actual and adopted
// amounts. Siblings are ordered by ascending code, then name. Records at the
// last level are ordered by object code. With no levels the root holds the
// records directly.
//
// Parent totals are the sums of their children's totals, so every node's total
// equals the sum of the leaf records beneath it.
func Aggregate(records []model.BudgetRecord, levels ...Level) *model.GroupNode {
	root := &model.GroupNode{}
	build(root, records, levels)
	return root
}

func build(node *model.GroupNode, records []model.BudgetRecord, levels []Level) {
	if len(levels) == 0 {
		node.Records = sortedRecords(records)
		for _, r := range node.Records {
			node.TotalActual += r.ActualToDate
			node.TotalAdopted += r.AdoptedBudget
		}
		return
	}

	level := levels[0]
	groups := make(map[model.Segment][]model.BudgetRecord)
	for _, r := range records {
		k := level.Key(r)
		groups[k] = append(groups[k], r)
	}

	keys := make([]model.Segment, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Code != keys[j].Code {
			return keys[i].Code < keys[j].Code
		}
		return keys[i].Name < keys[j].Name
	})

	node.Children = make([]*model.GroupNode, 0, len(keys))
	for _, k := range keys {
		child := &model.GroupNode{
			Code:  k.Code,
			Name:  k.Name,
			Label: level.Label(k),
		}
		build(child, groups[k], levels[1:])
		node.Children = append(node.Children, child)
		node.TotalActual += child.TotalActual
		node.TotalAdopted += child.TotalAdopted
	}
}

func sortedRecords(records []model.BudgetRecord) []model.BudgetRecord {
	out := append([]model.BudgetRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Object.Code < out[j].Object.Code
	})
	return out
}

// Find returns the direct child with the given code, or nil.
func Find(node *model.GroupNode, code string) *model.GroupNode {
	for _, c := range node.Children {
		if c.Code == code {
			return c
		}
	}
	return nil
}
