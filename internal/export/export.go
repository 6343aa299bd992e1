// Package export writes composed budget views as JSON, YAML or Excel workbooks.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/view"

	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ErrFormat is returned for an unsupported format name.
var ErrFormat = errors.New("export: unsupported format")

// ParseFormat accepts a format name, case-insensitively. "yml" is YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

// FormatForPath infers the format from a file extension, falling back to def.
func FormatForPath(path string, def Format) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return def
}

// Filter records the query context a document was built from.
type Filter struct {
	Entity     string `json:"entity,omitempty" yaml:"entity,omitempty"`
	FundGroup  string `json:"fund_group,omitempty" yaml:"fund_group,omitempty"`
	FiscalYear string `json:"fiscal_year,omitempty" yaml:"fiscal_year,omitempty"`
}

// Entry is one exported row and its children.
type Entry struct {
	Kind       string  `json:"kind" yaml:"kind"`
	Level      string  `json:"level,omitempty" yaml:"level,omitempty"`
	Code       string  `json:"code,omitempty" yaml:"code,omitempty"`
	Label      string  `json:"label" yaml:"label"`
	Actual     float64 `json:"actual" yaml:"actual"`
	Adopted    float64 `json:"adopted" yaml:"adopted"`
	Percent    int     `json:"percent" yaml:"percent"`
	Tier       string  `json:"tier" yaml:"tier"`
	OverBudget bool    `json:"over_budget" yaml:"over_budget"`

	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`

	Children []Entry `json:"children,omitempty" yaml:"children,omitempty"`
}

// Document is the exported form of one view.
type Document struct {
	Title  string `json:"title" yaml:"title"`
	Filter Filter `json:"filter" yaml:"filter"`
	Total  Entry  `json:"total" yaml:"total"`
}

// NewDocument converts a composed view.
func NewDocument(root *view.Node, ctx soql.Context) Document {
	return Document{
		Title: root.Label,
		Filter: Filter{
			Entity:     ctx.Entity,
			FundGroup:  ctx.FundGroup,
			FiscalYear: ctx.FiscalYear,
		},
		Total: entryFor(root),
	}
}

func entryFor(n *view.Node) Entry {
	e := Entry{
		Kind:       "section",
		Level:      n.Level,
		Code:       n.Code,
		Label:      n.Label,
		Actual:     n.Actual,
		Adopted:    n.Adopted,
		Percent:    n.Bar.Percent(),
		Tier:       n.Bar.Tier.String(),
		OverBudget: n.Bar.OverBudget,
	}
	if n.Kind == view.Line {
		e.Kind = "line"
		if n.Record != nil {
			e.Organization = n.Record.Organization
		}
	}
	for _, c := range n.Children {
		e.Children = append(e.Children, entryFor(c))
	}
	return e
}

// Write encodes doc to w.
func Write(w io.Writer, f Format, doc Document) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("export: encoding json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("export: encoding yaml: %w", err)
		}
		return enc.Close()
	case FormatXLSX:
		return writeXLSX(w, doc)
	}
	return fmt.Errorf("%w: %q", ErrFormat, string(f))
}
