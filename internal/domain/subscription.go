package domain

import (
	"fmt"
	"time"
)

// Tier is a subscription plan level.
type Tier string

const (
	TierFree       Tier = "free"
	TierPersonal   Tier = "personal"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Tiers lists every tier from lowest to highest rank.
var Tiers = []Tier{TierFree, TierPersonal, TierPro, TierEnterprise}

// Rank orders tiers; unknown tiers rank below free.
func (t Tier) Rank() int {
	for i, candidate := range Tiers {
		if candidate == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Paid reports whether t is one of the purchasable plans.
func (t Tier) Paid() bool {
	return t.Valid() && t != TierFree
}

// ParseTier validates a raw tier string.
func ParseTier(raw string) (Tier, error) {
	t := Tier(raw)
	if !t.Valid() {
		return "", fmt.Errorf("invalid subscription tier %q", raw)
	}
	return t, nil
}

// SubscriptionStatus is the lifecycle state of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// ParseSubscriptionStatus validates a raw status string.
func ParseSubscriptionStatus(raw string) (SubscriptionStatus, error) {
	switch s := SubscriptionStatus(raw); s {
	case SubscriptionActive, SubscriptionInactive, SubscriptionPending, SubscriptionCancelled:
		return s, nil
	}
	return "", fmt.Errorf("invalid subscription status %q", raw)
}

// BillingCycle selects the subscription period paid for.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingAnnual  BillingCycle = "annual"
)

// ParseBillingCycle validates a raw cycle; empty input defaults to monthly.
func ParseBillingCycle(raw string) (BillingCycle, error) {
	switch c := BillingCycle(raw); c {
	case "":
		return BillingMonthly, nil
	case BillingMonthly, BillingAnnual:
		return c, nil
	}
	return "", fmt.Errorf("invalid billing cycle %q", raw)
}

// PendingPayment is the ephemeral, single-use record of an initiated but not
// yet confirmed plan purchase. At most one exists per user.
type PendingPayment struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Plan         Tier         `json:"plan"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Amount       int          `json:"amount"`
	InitiatedAt  time.Time    `json:"initiated_at"`
}

// Payment is a confirmed plan purchase.
type Payment struct {
	ID           string
	UserID       string
	Reference    string
	Plan         Tier
	BillingCycle BillingCycle
	Amount       int
	PaidAt       time.Time
}
