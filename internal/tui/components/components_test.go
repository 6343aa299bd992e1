package components

import (
	"strings"
	"testing"

	"github.com/theirongolddev/cbudget/internal/overage"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRowSumsToTotal(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		sum := 0
		for _, w := range LayoutRow(100, n) {
			sum += w
		}
		if sum != 100 {
			t.Errorf("LayoutRow(100, %d) sums to %d", n, sum)
		}
	}
	if LayoutRow(10, 0) != nil {
		t.Error("LayoutRow with n=0 should be nil")
	}
}

func TestCardRowPadsToTallest(t *testing.T) {
	theme.SetActive("flexoki-dark")

	shortCard := ContentCard("Short", "Content", 22)
	tallCard := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)

	shortLines := lipgloss.Height(shortCard)
	tallLines := lipgloss.Height(tallCard)
	if shortLines >= tallLines {
		t.Fatal("Test setup error: short card should be shorter than tall card")
	}

	joined := CardRow([]string{tallCard, shortCard})
	lines := strings.Split(joined, "\n")
	if len(lines) != tallLines {
		t.Fatalf("Joined height should match tallest card: got %d, want %d", len(lines), tallLines)
	}

	// Padding under the short card must carry background styling.
	for i := shortLines; i < len(lines); i++ {
		if !strings.Contains(lines[i], "\x1b[") {
			t.Errorf("Line %d has no ANSI codes", i)
		}
	}

	want := lipgloss.Width(lines[0])
	for i, line := range lines {
		if w := lipgloss.Width(line); w != want {
			t.Errorf("Line %d width = %d, want %d", i, w, want)
		}
	}
}

func TestBudgetSummary(t *testing.T) {
	out := BudgetSummary(150, 100, 90)
	for _, want := range []string{"$150.00", "$100.00", "150%", "OVER BUDGET"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestBudgetBarLayers(t *testing.T) {
	if got := strings.Count(BudgetBar(overage.Describe(50, 100), 20), "▐"); got != 0 {
		t.Errorf("under-budget bar has %d overflow segments", got)
	}
	if got := strings.Count(BudgetBar(overage.Describe(250, 100), 20), "▐"); got != 2 {
		t.Errorf("250%% bar has %d overflow segments, want 2", got)
	}
	if bar := BudgetBar(overage.Describe(900, 100), 20); !strings.Contains(bar, "+5") {
		t.Errorf("900%% bar should summarize extra layers: %q", bar)
	}
}

func TestPercentLabel(t *testing.T) {
	if got := PercentLabel(overage.Describe(250, 100)); !strings.Contains(got, "250%") || !strings.Contains(got, "OVER") {
		t.Errorf("PercentLabel = %q", got)
	}
}

func TestTabWidth(t *testing.T) {
	if got := TabWidth(0, 0); got != len("Revenues")+2 {
		t.Errorf("active tab width = %d", got)
	}
	if got := TabWidth(3, 0); got != len("Settings")+5 {
		t.Errorf("inactive Settings width = %d", got)
	}
	if TabIdxByKey('d') != 2 || TabIdxByKey('z') != -1 {
		t.Error("TabIdxByKey mismatch")
	}
}

func TestRatioChart(t *testing.T) {
	if RatioChart(nil, 80) != "" {
		t.Error("empty chart should render nothing")
	}

	items := []ChartItem{
		{Label: "POLICE", Bar: overage.Describe(120, 100)},
		{Label: "FIRE", Bar: overage.Describe(50, 100)},
	}
	out := RatioChart(items, 80)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 2 bars and an axis", len(lines))
	}
	if !strings.Contains(lines[0], "120%") || !strings.Contains(lines[1], "50%") {
		t.Errorf("missing percent labels:\n%s", out)
	}
	if !strings.Contains(lines[1], "│") {
		t.Error("a bar under budget should show the 100% marker")
	}
	for i, l := range lines {
		if w := lipgloss.Width(l); w > 80 {
			t.Errorf("line %d is %d wide, want <= 80", i, w)
		}
	}
}

func TestChartTickStep(t *testing.T) {
	cases := map[float64]float64{1: 0.2, 2.4: 0.5, 10: 2}
	for in, want := range cases {
		if got := chartTickStep(in); got != want {
			t.Errorf("chartTickStep(%v) = %v, want %v", in, got, want)
		}
	}
}
