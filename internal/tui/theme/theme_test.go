package theme

import (
	"testing"

	"github.com/theirongolddev/cbudget/internal/overage"

	"github.com/stretchr/testify/assert"
)

func TestByNameFallsBack(t *testing.T) {
	assert.Equal(t, "terminal", ByName("terminal").Name)
	assert.Equal(t, "flexoki-dark", ByName("no-such-theme").Name)
}

func TestTierColor(t *testing.T) {
	assert.Equal(t, FlexokiDark.Tiers[4], FlexokiDark.TierColor(overage.TierSevere))
	assert.Equal(t, FlexokiDark.Tiers[0], FlexokiDark.TierColor(overage.Tier(-1)))
	for _, th := range All {
		for _, c := range th.Tiers {
			assert.NotEmpty(t, string(c), th.Name)
		}
	}
}

func TestSetActive(t *testing.T) {
	defer SetActive(FlexokiDark.Name)
	SetActive("catppuccin-mocha")
	assert.Equal(t, CatppuccinMocha.Name, Active.Name)
	assert.Equal(t, []string{"flexoki-dark", "catppuccin-mocha", "terminal"}, Names())
}
