// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/theirongolddev/cbudget/internal/overage"

	"github.com/Rhymond/go-money"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// maxCentsDollars is the largest dollar amount whose cents fit comfortably in an int64.
const maxCentsDollars = 9e16

// FormatMoney formats a dollar amount with cents and separators, e.g. "$1,234.56".
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$-"
	}
	// Cents beyond int64 range don't convert; such amounts only read as magnitude anyway.
	if math.Abs(v) >= maxCentsDollars {
		return FormatMoneyShort(v)
	}
	return money.New(int64(math.Round(v*100)), money.USD).Display()
}

// FormatMoneyShort formats a dollar amount with a magnitude suffix.
// e.g., 1234 -> "$1.2K", 1234567 -> "$1.2M", 1234567890 -> "$1.2B"
func FormatMoneyShort(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%s$%.1fB", sign, v/1_000_000_000)
	case v >= 1_000_000:
		return fmt.Sprintf("%s$%.1fM", sign, v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%s$%.1fK", sign, v/1_000)
	default:
		return fmt.Sprintf("%s$%.0f", sign, v)
	}
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatBytes formats a byte count for cache statistics.
func FormatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// FormatRatio formats an overage description as "NN%".
func FormatRatio(d overage.Description) string {
	return strconv.Itoa(d.Percent()) + "%"
}

// BarLabel is the text under a budget bar, e.g. "$150.00 / $100.00 (150%) OVER BUDGET".
func BarLabel(actual, adopted float64) string {
	d := overage.Describe(actual, adopted)
	s := fmt.Sprintf("%s / %s (%s)", FormatMoney(actual), FormatMoney(adopted), FormatRatio(d))
	if d.OverBudget {
		s += " OVER BUDGET"
	}
	return s
}

// TitleCase converts upper-case open-data labels for display, e.g. "POLICE DEPT" -> "Police Dept".
func TitleCase(s string) string {
	return titleCaser.String(s)
}
