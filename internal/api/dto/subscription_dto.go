package dto

import (
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// InitiatePaymentRequest selects a plan to buy.
type InitiatePaymentRequest struct {
	Plan         string `json:"plan" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly annual"`
}

// UpgradeRequest selects a higher plan.
type UpgradeRequest struct {
	NewPlan      string `json:"new_plan" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly annual"`
}

// CurrentSubscriptionResponse describes the caller's plan.
type CurrentSubscriptionResponse struct {
	Tier          string     `json:"tier"`
	Status        string     `json:"status"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	DaysRemaining *int       `json:"days_remaining"`
}

// PaymentInitiationResponse points the caller at the checkout.
type PaymentInitiationResponse struct {
	PaymentID    string    `json:"payment_id"`
	Plan         string    `json:"plan"`
	BillingCycle string    `json:"billing_cycle"`
	Amount       int       `json:"amount"`
	PaymentURL   string    `json:"payment_url"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PaymentResponse is a confirmed payment.
type PaymentResponse struct {
	ID           string    `json:"id"`
	Reference    string    `json:"reference"`
	Plan         string    `json:"plan"`
	BillingCycle string    `json:"billing_cycle"`
	Amount       int       `json:"amount"`
	PaidAt       time.Time `json:"paid_at"`
}

// NewPaymentResponses maps confirmed payments.
func NewPaymentResponses(payments []domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentResponse{
			ID:           p.ID,
			Reference:    p.Reference,
			Plan:         string(p.Plan),
			BillingCycle: string(p.BillingCycle),
			Amount:       p.Amount,
			PaidAt:       p.PaidAt,
		})
	}
	return out
}
