package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// ChartItem is one bar of a RatioChart.
type ChartItem struct {
	Label string
	Bar   overage.Description
}

const (
	maxChartLabel = 24
	chartPctW     = 7
	// maxChartRatio caps the axis so a single runaway line doesn't flatten the rest.
	maxChartRatio = 10
)

// RatioChart renders one horizontal bar per item, its length the share of
// adopted budget used and its color the item's tier. A │ column marks 100%.
func RatioChart(items []ChartItem, width int) string {
	if len(items) == 0 {
		return ""
	}
	t := theme.Active

	labelW := 0
	peak := 1.0
	for _, it := range items {
		labelW = max(labelW, lipgloss.Width(it.Label))
		peak = max(peak, chartRatio(it.Bar))
	}
	labelW = min(labelW, maxChartLabel)

	chartW := width - labelW - chartPctW - 2
	if chartW < 10 {
		chartW = 10
	}

	step := chartTickStep(peak)
	ceiling := math.Ceil(peak/step) * step
	marker := int(math.Round(float64(chartW) / ceiling))
	if marker >= chartW {
		marker = chartW - 1
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	markerStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	trackStyle := lipgloss.NewStyle().Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fillStyle := lipgloss.NewStyle().Foreground(t.TierColor(it.Bar.Tier)).Background(t.Surface)
		filled := int(math.Round(chartRatio(it.Bar) / ceiling * float64(chartW)))

		label := it.Label
		if lipgloss.Width(label) > labelW {
			label = string([]rune(label)[:labelW-1]) + "…"
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)))
		b.WriteString(spaceStyle.Render(" "))

		switch {
		case filled > marker:
			b.WriteString(fillStyle.Render(strings.Repeat("█", filled)))
			b.WriteString(trackStyle.Render(strings.Repeat(" ", chartW-filled)))
		default:
			b.WriteString(fillStyle.Render(strings.Repeat("█", filled)))
			b.WriteString(trackStyle.Render(strings.Repeat(" ", marker-filled)))
			b.WriteString(markerStyle.Render("│"))
			b.WriteString(trackStyle.Render(strings.Repeat(" ", chartW-marker-1)))
		}

		pct := fmt.Sprintf("%*s", chartPctW, formatChartLabel(it.Bar.Ratio*100)+"%")
		pctStyle := labelStyle
		if it.Bar.OverBudget {
			pctStyle = fillStyle.Bold(true)
		}
		b.WriteString(spaceStyle.Render(" "))
		b.WriteString(pctStyle.Render(pct))
	}

	// Axis: 0 at the left, 100% under the marker, the ceiling at the right.
	axis := []rune(strings.Repeat(" ", chartW))
	put := func(pos int, s string) {
		if pos+len(s) > chartW {
			pos = chartW - len(s)
		}
		if pos < 0 {
			return
		}
		copy(axis[pos:], []rune(s))
	}
	put(0, "0")
	top := formatChartLabel(ceiling*100) + "%"
	put(chartW-len(top), top)
	if marker > 2 && marker+4 < chartW-len(top) {
		put(marker-1, "100%")
	}
	b.WriteString("\n")
	b.WriteString(spaceStyle.Render(strings.Repeat(" ", labelW+1)))
	b.WriteString(markerStyle.Render(string(axis)))

	return b.String()
}

// chartRatio clamps a ratio to the drawable range.
func chartRatio(d overage.Description) float64 {
	r := d.Ratio
	switch {
	case math.IsNaN(r) || r < 0:
		return 0
	case r > maxChartRatio:
		return maxChartRatio
	}
	return r
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		if v == math.Trunc(v/1e3)*1e3 {
			return fmt.Sprintf("%.0fk", v/1e3)
		}
		return fmt.Sprintf("%.1fk", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
