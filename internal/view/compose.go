// Package view turns aggregate trees into renderable section/line trees that
// terminal, TUI and export renderers share.
package view

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/cbudget/internal/drilldown"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/pipeline"
)

// Kind distinguishes collapsible sections from leaf lines.
type Kind int

const (
	Section Kind = iota
	Line
)

// Node is one renderable row.
type Node struct {
	ID    string
	Kind  Kind
	Depth int

	Code  string
	Label string
	Level string // grouping level name; empty for the root and for lines

	Actual  float64
	Adopted float64
	Bar     overage.Description

	// Record is set for lines.
	Record *model.BudgetRecord
	// Detail is set for lines that support drill-down.
	Detail *drilldown.RowKey

	// Empty marks a section that shows lines but has none.
	Empty bool

	Children []*Node
}

// Config controls how a tree is composed.
type Config struct {
	Title       string
	Levels      []pipeline.Level
	ShowRecords bool
	DrillDown   bool
	// Less re-sorts sibling sections. Nil keeps aggregate order.
	Less func(a, b *model.GroupNode) bool
}

// FromView returns the composer config for a predefined view.
func FromView(v pipeline.View) Config {
	return Config{
		Title:       v.Title,
		Levels:      v.Levels,
		ShowRecords: v.ShowRecords,
		DrillDown:   v.DrillDown,
	}
}

// ByActualDesc orders sections by actual amount, largest first.
func ByActualDesc(a, b *model.GroupNode) bool {
	return a.TotalActual > b.TotalActual
}

// ByRatioDesc orders sections by actual/adopted ratio, highest first.
func ByRatioDesc(a, b *model.GroupNode) bool {
	return overage.Describe(a.TotalActual, a.TotalAdopted).Ratio >
		overage.Describe(b.TotalActual, b.TotalAdopted).Ratio
}

// Compose builds the renderable tree for root. The returned root is a section
// at depth 0 labelled with the config title.
func Compose(root *model.GroupNode, cfg Config) *Node {
	label := cfg.Title
	if label == "" {
		label = root.Label
	}
	n := &Node{
		ID:      "",
		Kind:    Section,
		Code:    root.Code,
		Label:   label,
		Actual:  root.TotalActual,
		Adopted: root.TotalAdopted,
		Bar:     overage.Describe(root.TotalActual, root.TotalAdopted),
	}
	composeChildren(n, root, cfg, 0)
	return n
}

func composeChildren(parent *Node, g *model.GroupNode, cfg Config, level int) {
	children := g.Children
	if cfg.Less != nil && len(children) > 1 {
		children = append([]*model.GroupNode(nil), children...)
		sort.SliceStable(children, func(i, j int) bool { return cfg.Less(children[i], children[j]) })
	}

	levelName := ""
	if level < len(cfg.Levels) {
		levelName = cfg.Levels[level].Name
	}

	for _, c := range children {
		n := &Node{
			ID:      parent.ID + "/" + c.Code + "|" + c.Name,
			Kind:    Section,
			Depth:   parent.Depth + 1,
			Code:    c.Code,
			Label:   c.Label,
			Level:   levelName,
			Actual:  c.TotalActual,
			Adopted: c.TotalAdopted,
			Bar:     overage.Describe(c.TotalActual, c.TotalAdopted),
		}
		composeChildren(n, c, cfg, level+1)
		parent.Children = append(parent.Children, n)
	}

	if !cfg.ShowRecords || len(g.Children) > 0 {
		return
	}
	if len(g.Records) == 0 {
		parent.Empty = parent.Depth > 0
		return
	}
	for i := range g.Records {
		r := g.Records[i]
		n := &Node{
			ID:      fmt.Sprintf("%s/%s.%s#%d", parent.ID, r.Object.Code, r.Organization, i),
			Kind:    Line,
			Depth:   parent.Depth + 1,
			Code:    r.Object.Code,
			Label:   r.Object.Name,
			Actual:  r.ActualToDate,
			Adopted: r.AdoptedBudget,
			Bar:     overage.Describe(r.ActualToDate, r.AdoptedBudget),
			Record:  &r,
		}
		if n.Label == "" {
			n.Label = "Unknown"
		}
		if cfg.DrillDown {
			n.Detail = &drilldown.RowKey{
				Department:   r.Department.Code,
				SubGroup:     r.SubGroup.Code,
				Organization: r.Organization,
				Object:       r.Object.Code,
			}
		}
		parent.Children = append(parent.Children, n)
	}
}

// Walk visits n and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the node with the given ID, or nil.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.ID == id {
			found = c
			return false
		}
		return true
	})
	return found
}

// Flatten lists the rows visible beneath root: its children, and the children
// of every section for which expanded returns true. The root itself is not
// included. A nil expanded shows every row.
func Flatten(root *Node, expanded func(id string) bool) []*Node {
	var rows []*Node
	for _, c := range root.Children {
		c.Walk(func(n *Node) bool {
			rows = append(rows, n)
			return n.Kind == Section && (expanded == nil || expanded(n.ID))
		})
	}
	return rows
}

// Lines returns every line beneath n in render order.
func (n *Node) Lines() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Kind == Line {
			out = append(out, c)
		}
		return true
	})
	return out
}
