// Package entitlement maps subscription tiers to usage quotas and decides
// whether a write stays within them.
package entitlement

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spec-kit/shield-service/internal/domain"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

// Limits is the quota pair granted by a tier.
type Limits struct {
	Devices int
	Scans   int
}

var tierLimits = map[domain.Tier]Limits{
	domain.TierFree:       {Devices: 1, Scans: 1},
	domain.TierPersonal:   {Devices: 3, Scans: 4},
	domain.TierPro:        {Devices: 25, Scans: 30},
	domain.TierEnterprise: {Devices: Unlimited, Scans: Unlimited},
}

// For returns the limits of tier. Unknown tiers get the free limits.
func For(tier domain.Tier) Limits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[domain.TierFree]
}

// DeviceLimit returns the maximum number of devices tier may own.
func DeviceLimit(tier domain.Tier) int {
	return For(tier).Devices
}

// ScanLimit returns the number of scans tier may run per calendar month.
func ScanLimit(tier domain.Tier) int {
	return For(tier).Scans
}

// CanAddDevice returns a QuotaExceeded error when a user with currentCount
// devices may not register another one.
func CanAddDevice(tier domain.Tier, currentCount int) error {
	limit := DeviceLimit(tier)
	if within(limit, currentCount) {
		return nil
	}
	return apperrors.NewQuotaExceeded(
		fmt.Sprintf("device limit reached: your %s plan allows %d device(s)", tier, limit),
		map[string]any{"resource": "devices", "limit": limit, "current": currentCount, "tier": string(tier)},
	)
}

// CanRunScan returns a QuotaExceeded error when scansThisPeriod already
// reaches the monthly allowance of tier.
func CanRunScan(tier domain.Tier, scansThisPeriod int) error {
	limit := ScanLimit(tier)
	if within(limit, scansThisPeriod) {
		return nil
	}
	return apperrors.NewQuotaExceeded(
		fmt.Sprintf("scan limit reached: your %s plan allows %d scan(s) per month", tier, limit),
		map[string]any{"resource": "scans", "limit": limit, "current": scansThisPeriod, "tier": string(tier)},
	)
}

func within(limit, current int) bool {
	return limit == Unlimited || current < limit
}

// Limit renders Unlimited as the string "unlimited" in JSON.
type Limit int

func (l Limit) MarshalJSON() ([]byte, error) {
	if int(l) == Unlimited {
		return json.Marshal("unlimited")
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// Counter pairs current consumption with its limit.
type Counter struct {
	Current int   `json:"current"`
	Limit   Limit `json:"limit"`
}

// UsageView reports consumption against the tier's limits.
type UsageView struct {
	Devices        Counter     `json:"devices"`
	ScansThisMonth Counter     `json:"scans_this_month"`
	Tier           domain.Tier `json:"subscription_tier"`
}

// Usage builds the usage view for tier.
func Usage(tier domain.Tier, devices, scans int) UsageView {
	l := For(tier)
	return UsageView{
		Devices:        Counter{Current: devices, Limit: Limit(l.Devices)},
		ScansThisMonth: Counter{Current: scans, Limit: Limit(l.Scans)},
		Tier:           tier,
	}
}
