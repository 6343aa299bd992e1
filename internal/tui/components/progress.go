package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// maxLayers is how many overflow layers a bar draws before summarizing.
const maxLayers = 3

// BudgetBar renders a budget bar of the given width: the base fill colored by
// severity tier, followed by one short stacked segment per overflow layer.
func BudgetBar(d overage.Description, width int) string {
	t := theme.Active
	if width < 4 {
		width = 4
	}

	color := t.TierColor(d.Tier)
	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	fill := d.BaseFillPercent / 100
	if fill < 0 {
		fill = 0
	}

	layerStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	moreStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(bar.ViewAs(fill))
	layerW := width / 4
	if layerW < 2 {
		layerW = 2
	}
	for i, l := range d.Layers {
		if i == maxLayers {
			b.WriteString(moreStyle.Render(fmt.Sprintf("+%d", len(d.Layers)-maxLayers)))
			break
		}
		n := int(l / 100 * float64(layerW))
		if n < 1 {
			n = 1
		}
		b.WriteString(layerStyle.Render("▐" + strings.Repeat("█", n-1)))
	}
	return b.String()
}

// BarWidthFor is the extra width BudgetBar may use past its base width.
func BarWidthFor(width int) int {
	layerW := width / 4
	if layerW < 2 {
		layerW = 2
	}
	return width + maxLayers*layerW + 3
}

// PercentLabel renders "NN%" colored by tier; near-limit and overspent bars are bold.
func PercentLabel(d overage.Description) string {
	t := theme.Active
	style := lipgloss.NewStyle().Foreground(t.TierColor(d.Tier)).Background(t.Surface)
	if d.Glow || d.OverBudget {
		style = style.Bold(true)
	}
	label := fmt.Sprintf("%4d%%", d.Percent())
	if d.OverBudget {
		label += " OVER"
	}
	return style.Render(label)
}
