// Package overage turns an actual/adopted pair into a bar description with
// layered overflow for spending beyond 100% of budget.
package overage

import "math"

// Thickness bounds, in abstract bar units.
const (
	MinThickness = 10
	MaxThickness = 30
)

// ShadowThreshold is the adopted amount above which a bar gets emphasis.
const ShadowThreshold = 1_000_000

// Tier is the discrete severity of a ratio.
type Tier int

const (
	TierNormal Tier = iota
	TierSlight
	TierOver
	TierHigh
	TierSevere
)

func (t Tier) String() string {
	switch t {
	case TierSlight:
		return "slight"
	case TierOver:
		return "over"
	case TierHigh:
		return "high"
	case TierSevere:
		return "severe"
	default:
		return "normal"
	}
}

// Description is a renderable bar for one actual/adopted pair.
type Description struct {
	Ratio           float64
	BaseFillPercent float64
	// Layers holds overflow widths in percent: zero or more 100s then at most one partial.
	// It holds at most maxLayers full layers; past the cap the partial is dropped.
	Layers     []float64
	Tier       Tier
	OverBudget bool
	Thickness  float64
	// Glow marks a bar near its limit (90-100%).
	Glow bool
	// Shadow marks a large adopted budget.
	Shadow bool
}

// Describe computes the bar description. It is total over all float inputs.
func Describe(actual, adopted float64) Description {
	var ratio float64
	if adopted != 0 {
		ratio = actual / adopted
	}

	d := Description{
		Ratio:           ratio,
		BaseFillPercent: math.Min(ratio, 1) * 100,
		Tier:            TierFor(ratio),
		OverBudget:      ratio > 1,
		Thickness:       thickness(adopted),
		Glow:            ratio >= 0.9 && ratio <= 1,
		Shadow:          adopted > ShadowThreshold,
	}
	if ratio > 1 {
		d.Layers = layers(ratio - 1)
	}
	return d
}

// TierFor maps a ratio onto the severity breakpoints 1, 1.2, 2 and 5.
func TierFor(ratio float64) Tier {
	switch {
	case ratio > 5:
		return TierSevere
	case ratio > 2:
		return TierHigh
	case ratio > 1.2:
		return TierOver
	case ratio > 1:
		return TierSlight
	default:
		return TierNormal
	}
}

// Percent is the ratio as a rounded percentage for labels.
func (d Description) Percent() int {
	p := math.Round(d.Ratio * 100)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return int(p)
}

// FullLayers counts the 100% overflow layers.
func (d Description) FullLayers() int {
	n := 0
	for _, l := range d.Layers {
		if l == 100 {
			n++
		}
	}
	return n
}

// maxLayers bounds the layer slice for absurd ratios; the tier already reads "severe".
const maxLayers = 1000

func layers(over float64) []float64 {
	if math.IsNaN(over) || math.IsInf(over, 0) {
		return nil
	}
	full := math.Floor(over)
	partial := (over - full) * 100

	n := int(math.Min(full, maxLayers))
	out := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, 100)
	}
	if partial > 0 && full <= maxLayers {
		out = append(out, partial)
	}
	return out
}

func thickness(adopted float64) float64 {
	t := math.Log10(adopted+1) * 5
	if math.IsNaN(t) || t < MinThickness {
		return MinThickness
	}
	if t > MaxThickness {
		return MaxThickness
	}
	return t
}
