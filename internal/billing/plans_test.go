package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/entitlement"
)

func TestCatalogue(t *testing.T) {
	plans := Catalogue()
	require.Len(t, plans, 4)

	for i, tier := range domain.Tiers {
		assert.Equal(t, tier, plans[i].Tier)
		assert.Equal(t, entitlement.Limit(entitlement.DeviceLimit(tier)), plans[i].Limits.Devices)
		assert.NotEmpty(t, plans[i].Features)
	}
	assert.Equal(t, 199, plans[3].Price)
	assert.Equal(t, 1990, plans[3].AnnualPrice)
}

func TestMonthlyRevenue(t *testing.T) {
	got := MonthlyRevenue(map[domain.Tier]int{
		domain.TierFree:       10,
		domain.TierPersonal:   2,
		domain.TierPro:        1,
		domain.TierEnterprise: 1,
	})
	assert.Equal(t, 2*19+79+199, got)
}
