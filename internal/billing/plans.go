// Package billing holds the plan catalogue and the subscription state
// machine applied to users: pending payment, activation, cancellation,
// admin overrides and expiry.
package billing

import (
	"fmt"
	"strings"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/entitlement"
)

// AnnualMultiplier prices an annual plan at ten monthly payments.
const AnnualMultiplier = 10

var monthlyPrices = map[domain.Tier]int{
	domain.TierFree:       0,
	domain.TierPersonal:   19,
	domain.TierPro:        79,
	domain.TierEnterprise: 199,
}

// MonthlyPrice returns the monthly list price of tier in whole USD.
func MonthlyPrice(tier domain.Tier) int {
	return monthlyPrices[tier]
}

// Price returns the amount charged for plan on cycle.
func Price(plan domain.Tier, cycle domain.BillingCycle) (int, error) {
	if !plan.Paid() {
		return 0, fmt.Errorf("plan %q is not purchasable", plan)
	}
	switch cycle {
	case domain.BillingMonthly:
		return monthlyPrices[plan], nil
	case domain.BillingAnnual:
		return monthlyPrices[plan] * AnnualMultiplier, nil
	}
	return 0, fmt.Errorf("invalid billing cycle %q", cycle)
}

// PaymentURL renders the checkout link for amount.
func PaymentURL(paymentLink string, amount int) string {
	return fmt.Sprintf("%s/%dUSD", strings.TrimRight(paymentLink, "/"), amount)
}

// PlanLimits mirrors entitlement limits for display.
type PlanLimits struct {
	Devices       entitlement.Limit `json:"devices"`
	ScansPerMonth entitlement.Limit `json:"scans_per_month"`
	SupportLevel  string            `json:"support_level"`
}

// Plan is a catalogue entry.
type Plan struct {
	Tier        domain.Tier `json:"tier"`
	Name        string      `json:"name"`
	Price       int         `json:"price"`
	AnnualPrice int         `json:"annual_price"`
	Billing     string      `json:"billing"`
	Features    []string    `json:"features"`
	Limits      PlanLimits  `json:"limits"`
}

var planDetails = map[domain.Tier]struct {
	name     string
	support  string
	features []string
}{
	domain.TierFree: {
		name:    "Free Shield",
		support: "community",
		features: []string{
			"Basic vulnerability scanning (monthly)",
			"Email alerts for critical threats",
			"Community support",
			"Up to 1 device",
			"Basic security reports",
		},
	},
	domain.TierPersonal: {
		name:    "Personal Shield",
		support: "priority",
		features: []string{
			"Weekly vulnerability scanning",
			"Real-time threat detection",
			"Email & SMS alerts",
			"Priority support",
			"Up to 3 devices",
			"Detailed security reports",
			"Basic compliance monitoring",
		},
	},
	domain.TierPro: {
		name:    "Pro Shield",
		support: "24/7",
		features: []string{
			"Daily vulnerability scanning",
			"Advanced threat detection",
			"Multi-channel alerts",
			"24/7 support",
			"Up to 25 devices",
			"Advanced security reports",
			"Compliance monitoring (SOC 2, ISO 27001)",
			"Incident response support",
			"Custom security policies",
		},
	},
	domain.TierEnterprise: {
		name:    "Enterprise Shield",
		support: "dedicated",
		features: []string{
			"Continuous vulnerability scanning",
			"Enterprise-grade threat detection",
			"Custom alert channels",
			"Dedicated account manager",
			"Unlimited devices",
			"Executive security reports",
			"Full compliance suite",
			"Priority incident response",
			"Custom integrations",
		},
	},
}

// Catalogue lists every plan from lowest to highest tier.
func Catalogue() []Plan {
	plans := make([]Plan, 0, len(domain.Tiers))
	for _, tier := range domain.Tiers {
		details := planDetails[tier]
		limits := entitlement.For(tier)
		plans = append(plans, Plan{
			Tier:        tier,
			Name:        details.name,
			Price:       monthlyPrices[tier],
			AnnualPrice: monthlyPrices[tier] * AnnualMultiplier,
			Billing:     string(domain.BillingMonthly),
			Features:    append([]string(nil), details.features...),
			Limits: PlanLimits{
				Devices:       entitlement.Limit(limits.Devices),
				ScansPerMonth: entitlement.Limit(limits.Scans),
				SupportLevel:  details.support,
			},
		})
	}
	return plans
}

// MonthlyRevenue is the simplified dashboard figure: subscribers per tier
// times the monthly list price, regardless of billing cycle.
func MonthlyRevenue(subscribersByTier map[domain.Tier]int) int {
	total := 0
	for tier, count := range subscribersByTier {
		total += count * monthlyPrices[tier]
	}
	return total
}
