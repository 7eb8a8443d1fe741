package entitlement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/domain"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func TestDeviceLimit(t *testing.T) {
	tests := []struct {
		tier domain.Tier
		want int
	}{
		{domain.TierFree, 1},
		{domain.TierPersonal, 3},
		{domain.TierPro, 25},
		{domain.TierEnterprise, Unlimited},
		{domain.Tier("platinum"), 1},
		{domain.Tier(""), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeviceLimit(tt.tier), "tier %q", tt.tier)
	}
}

func TestScanLimit(t *testing.T) {
	assert.Equal(t, 1, ScanLimit(domain.TierFree))
	assert.Equal(t, 4, ScanLimit(domain.TierPersonal))
	assert.Equal(t, 30, ScanLimit(domain.TierPro))
	assert.Equal(t, Unlimited, ScanLimit(domain.TierEnterprise))
	assert.Equal(t, 1, ScanLimit(domain.Tier("unknown")))
}

func TestCanAddDevice(t *testing.T) {
	t.Run("below limit", func(t *testing.T) {
		assert.NoError(t, CanAddDevice(domain.TierFree, 0))
		assert.NoError(t, CanAddDevice(domain.TierPersonal, 2))
		assert.NoError(t, CanAddDevice(domain.TierPro, 24))
	})

	t.Run("at limit", func(t *testing.T) {
		for _, tier := range []domain.Tier{domain.TierFree, domain.TierPersonal, domain.TierPro} {
			err := CanAddDevice(tier, DeviceLimit(tier))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.CodeQuotaExceeded), "tier %s", tier)
		}
	})

	t.Run("enterprise never blocks", func(t *testing.T) {
		assert.NoError(t, CanAddDevice(domain.TierEnterprise, 10_000))
	})

	t.Run("details", func(t *testing.T) {
		de := apperrors.ToDomainError(CanAddDevice(domain.TierPersonal, 3))
		assert.Equal(t, 3, de.Details["limit"])
		assert.Equal(t, "devices", de.Details["resource"])
	})
}

func TestCanRunScan(t *testing.T) {
	assert.NoError(t, CanRunScan(domain.TierFree, 0))
	assert.True(t, apperrors.Is(CanRunScan(domain.TierFree, 1), apperrors.CodeQuotaExceeded))
	assert.NoError(t, CanRunScan(domain.TierPersonal, 3))
	assert.True(t, apperrors.Is(CanRunScan(domain.TierPersonal, 4), apperrors.CodeQuotaExceeded))
	assert.NoError(t, CanRunScan(domain.TierEnterprise, 500))
}

func TestUsageJSON(t *testing.T) {
	raw, err := json.Marshal(Usage(domain.TierEnterprise, 7, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subscription_tier": "enterprise",
		"devices": {"current": 7, "limit": "unlimited"},
		"scans_this_month": {"current": 2, "limit": "unlimited"}
	}`, string(raw))

	raw, err = json.Marshal(Usage(domain.TierPersonal, 1, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"subscription_tier": "personal",
		"devices": {"current": 1, "limit": 3},
		"scans_this_month": {"current": 0, "limit": 4}
	}`, string(raw))
}
