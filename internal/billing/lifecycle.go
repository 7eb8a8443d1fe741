package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/shield-service/internal/domain"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

const (
	// DefaultPendingWindow is how long an initiated payment stays confirmable.
	DefaultPendingWindow = 30 * time.Minute

	MonthlyPeriod = 30 * 24 * time.Hour
	AnnualPeriod  = 365 * 24 * time.Hour
)

// Period returns the subscription length bought by cycle.
func Period(cycle domain.BillingCycle) time.Duration {
	if cycle == domain.BillingAnnual {
		return AnnualPeriod
	}
	return MonthlyPeriod
}

// NewPendingPayment validates plan and cycle and prices the purchase.
func NewPendingPayment(userID string, plan domain.Tier, cycle domain.BillingCycle, now time.Time) (*domain.PendingPayment, error) {
	if !plan.Paid() {
		return nil, apperrors.NewValidationError("invalid plan", map[string]any{
			"plan":    string(plan),
			"allowed": []string{string(domain.TierPersonal), string(domain.TierPro), string(domain.TierEnterprise)},
		})
	}
	amount, err := Price(plan, cycle)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid billing cycle", map[string]any{"billing_cycle": string(cycle)})
	}
	return &domain.PendingPayment{
		ID:           uuid.NewString(),
		UserID:       userID,
		Plan:         plan,
		BillingCycle: cycle,
		Amount:       amount,
		InitiatedAt:  now.UTC(),
	}, nil
}

// Expired reports whether p can no longer be confirmed at now. A payment
// confirmed exactly window after initiation is still valid.
func Expired(p *domain.PendingPayment, now time.Time, window time.Duration) bool {
	return now.Sub(p.InitiatedAt) > window
}

// CheckUpgrade rejects a target tier that does not rank above current.
func CheckUpgrade(current, target domain.Tier) error {
	if !target.Valid() {
		return apperrors.NewValidationError("invalid plan", map[string]any{"new_plan": string(target)})
	}
	if target.Rank() <= current.Rank() {
		return apperrors.NewValidationError("can only upgrade to a higher tier", map[string]any{
			"current_tier": string(current),
			"new_plan":     string(target),
		})
	}
	return nil
}

// Activate applies a confirmed payment to u: the plan becomes active from now
// for the period bought.
func Activate(u *domain.User, p *domain.PendingPayment, now time.Time) {
	start := now.UTC()
	end := start.Add(Period(p.BillingCycle))
	u.SubscriptionTier = p.Plan
	u.SubscriptionStatus = domain.SubscriptionActive
	u.SubscriptionStartDate = &start
	u.SubscriptionEndDate = &end
}

// Cancel marks a paid subscription cancelled. Tier and end date are kept so
// the user retains access until the period lapses.
func Cancel(u *domain.User) error {
	if u.SubscriptionTier == domain.TierFree {
		return apperrors.NewNothingToCancel()
	}
	u.SubscriptionStatus = domain.SubscriptionCancelled
	return nil
}

// AdminOverrideStatuses are the statuses an administrator may assign.
var AdminOverrideStatuses = []domain.SubscriptionStatus{
	domain.SubscriptionActive,
	domain.SubscriptionInactive,
	domain.SubscriptionPending,
}

// AdminOverride sets tier and/or status on u. Moving from free to a paid
// tier opens a fresh monthly period starting now.
func AdminOverride(u *domain.User, tier *domain.Tier, status *domain.SubscriptionStatus, now time.Time) error {
	if tier == nil && status == nil {
		return apperrors.NewValidationError("subscription_tier or subscription_status is required", nil)
	}
	if tier != nil && !tier.Valid() {
		return apperrors.NewValidationError("invalid subscription tier", map[string]any{"subscription_tier": string(*tier)})
	}
	if status != nil && !adminStatusAllowed(*status) {
		return apperrors.NewValidationError("invalid subscription status", map[string]any{"subscription_status": string(*status)})
	}

	if tier != nil {
		old := u.SubscriptionTier
		u.SubscriptionTier = *tier
		if old == domain.TierFree && tier.Paid() {
			start := now.UTC()
			end := start.Add(MonthlyPeriod)
			u.SubscriptionStartDate = &start
			u.SubscriptionEndDate = &end
		}
	}
	if status != nil {
		u.SubscriptionStatus = *status
	}
	return nil
}

func adminStatusAllowed(status domain.SubscriptionStatus) bool {
	for _, allowed := range AdminOverrideStatuses {
		if allowed == status {
			return true
		}
	}
	return false
}

// Lapsed reports whether u holds a paid tier whose period ended before now.
func Lapsed(u *domain.User, now time.Time) bool {
	return u.SubscriptionTier.Paid() && u.SubscriptionEndDate != nil && u.SubscriptionEndDate.Before(now)
}

// Downgrade returns u to the free tier with no subscription dates.
func Downgrade(u *domain.User) {
	u.SubscriptionTier = domain.TierFree
	u.SubscriptionStatus = domain.SubscriptionActive
	u.SubscriptionStartDate = nil
	u.SubscriptionEndDate = nil
}

// DaysRemaining returns whole days left on a paid period, floored at zero,
// or nil when u has no paid period.
func DaysRemaining(u *domain.User, now time.Time) *int {
	if u.SubscriptionEndDate == nil || u.SubscriptionTier == domain.TierFree {
		return nil
	}
	days := int(u.SubscriptionEndDate.Sub(now) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return &days
}

// Describe renders the audit description for an activation.
func Describe(oldTier domain.Tier, p *domain.PendingPayment) string {
	return fmt.Sprintf("User upgraded from %s to %s plan (%s)", oldTier, p.Plan, p.BillingCycle)
}
