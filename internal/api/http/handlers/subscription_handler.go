package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shield-service/internal/api/dto"
	"github.com/spec-kit/shield-service/internal/service"
)

// SubscriptionHandler exposes plans, usage and the payment flow.
type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

// NewSubscriptionHandler constructs handler.
func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Plans GET /api/subscription/plans.
func (h *SubscriptionHandler) Plans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.subscriptions.Plans()})
}

// Current GET /api/subscription/current.
func (h *SubscriptionHandler) Current(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	sub, err := h.subscriptions.Current(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CurrentSubscriptionResponse{
		Tier:          string(sub.Tier),
		Status:        string(sub.Status),
		StartDate:     sub.StartDate,
		EndDate:       sub.EndDate,
		DaysRemaining: sub.DaysRemaining,
	}})
}

// Usage GET /api/subscription/usage.
func (h *SubscriptionHandler) Usage(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	usage, err := h.subscriptions.Usage(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": usage})
}

// Payments GET /api/subscription/payments.
func (h *SubscriptionHandler) Payments(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	payments, err := h.subscriptions.Payments(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPaymentResponses(payments)})
}

// InitiatePayment POST /api/subscription/initiate-payment.
func (h *SubscriptionHandler) InitiatePayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.InitiatePaymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	init, err := h.subscriptions.InitiatePayment(c.UserContext(), p.UserID(), req.Plan, req.BillingCycle, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.initiation(init)})
}

// Upgrade POST /api/subscription/upgrade.
func (h *SubscriptionHandler) Upgrade(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpgradeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	init, err := h.subscriptions.Upgrade(c.UserContext(), p.UserID(), req.NewPlan, req.BillingCycle, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.initiation(init)})
}

// ConfirmPayment POST /api/subscription/confirm-payment.
func (h *SubscriptionHandler) ConfirmPayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.subscriptions.ConfirmPayment(c.UserContext(), p.UserID(), requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Cancel POST /api/subscription/cancel.
func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.subscriptions.Cancel(c.UserContext(), p.UserID(), requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

func (h *SubscriptionHandler) initiation(init *service.PaymentInitiation) dto.PaymentInitiationResponse {
	return dto.PaymentInitiationResponse{
		PaymentID:    init.Pending.ID,
		Plan:         string(init.Pending.Plan),
		BillingCycle: string(init.Pending.BillingCycle),
		Amount:       init.Pending.Amount,
		PaymentURL:   init.PaymentURL,
		ExpiresAt:    init.ExpiresAt,
	}
}
