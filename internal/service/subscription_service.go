package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/billing"
	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/entitlement"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// SubscriptionService drives the plan purchase lifecycle.
type SubscriptionService struct {
	eventPublisher
	store    repository.Store
	pending  repository.PendingPaymentStore
	settings *SettingsService
	audit    *AuditLogger
	metrics  *observability.Metrics
	window   time.Duration
}

// SubscriptionDependencies bundles collaborators for the subscription service.
type SubscriptionDependencies struct {
	Store      repository.Store
	Pending    repository.PendingPaymentStore
	Settings   *SettingsService
	Audit      *AuditLogger
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// CurrentSubscription is the caller's plan with the days left on it.
type CurrentSubscription struct {
	Tier          domain.Tier
	Status        domain.SubscriptionStatus
	StartDate     *time.Time
	EndDate       *time.Time
	DaysRemaining *int
}

// PaymentInitiation is a stored pending payment, where to pay it and when
// it stops being confirmable.
type PaymentInitiation struct {
	Pending    *domain.PendingPayment
	PaymentURL string
	ExpiresAt  time.Time
}

// NewSubscriptionService constructs the service.
func NewSubscriptionService(cfg config.SubscriptionConfig, deps SubscriptionDependencies) *SubscriptionService {
	logger := loggerOrNop(deps.Logger)
	window := cfg.PendingTTL()
	if window <= 0 {
		window = billing.DefaultPendingWindow
	}
	pending := deps.Pending
	if pending == nil {
		pending = repository.NewMemoryPendingPaymentStore()
	}
	return &SubscriptionService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: clockOrDefault(deps.Clock)},
		store:          deps.Store,
		pending:        pending,
		settings:       deps.Settings,
		audit:          deps.Audit,
		metrics:        deps.Metrics,
		window:         window,
	}
}

// Plans lists the catalogue.
func (s *SubscriptionService) Plans() []billing.Plan {
	return billing.Catalogue()
}

// Current returns the caller's subscription.
func (s *SubscriptionService) Current(ctx context.Context, userID string) (*CurrentSubscription, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return &CurrentSubscription{
		Tier:          user.SubscriptionTier,
		Status:        user.SubscriptionStatus,
		StartDate:     user.SubscriptionStartDate,
		EndDate:       user.SubscriptionEndDate,
		DaysRemaining: billing.DaysRemaining(user, s.now()),
	}, nil
}

// Usage reports device and monthly scan consumption against the tier.
func (s *SubscriptionService) Usage(ctx context.Context, userID string) (entitlement.UsageView, error) {
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return entitlement.UsageView{}, err
	}
	devices, err := s.store.Devices().CountByUser(ctx, userID)
	if err != nil {
		return entitlement.UsageView{}, apperrors.MapStoreError(err)
	}
	scans, err := s.store.Scans().CountByUserSince(ctx, userID, startOfMonth(s.now()))
	if err != nil {
		return entitlement.UsageView{}, apperrors.MapStoreError(err)
	}
	return entitlement.Usage(user.SubscriptionTier, devices, scans), nil
}

// Payments lists confirmed payments, newest first.
func (s *SubscriptionService) Payments(ctx context.Context, userID string) ([]domain.Payment, error) {
	payments, err := s.store.Payments().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return payments, nil
}

// InitiatePayment prices plan and stores it as the caller's pending payment,
// replacing any earlier one. The user row is not touched.
func (s *SubscriptionService) InitiatePayment(ctx context.Context, userID, plan, cycle string, meta domain.RequestMeta) (*PaymentInitiation, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return nil, apperrors.NewValidationError("plan is required", map[string]any{"field": "plan"})
	}
	billingCycle, err := domain.ParseBillingCycle(strings.TrimSpace(cycle))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid billing cycle", map[string]any{
			"billing_cycle": cycle,
			"allowed":       []domain.BillingCycle{domain.BillingMonthly, domain.BillingAnnual},
		})
	}
	if _, err := s.user(ctx, s.store, userID); err != nil {
		return nil, err
	}

	pending, err := billing.NewPendingPayment(userID, domain.Tier(plan), billingCycle, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.pending.Save(ctx, pending); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	link := s.settings.CurrentOrDefault(ctx).PaymentLink
	s.metrics.PaymentStage("initiated", plan)
	s.audit.RecordFor(ctx, userID, domain.ActionPaymentInitiated,
		fmt.Sprintf("User initiated payment for %s plan (%s)", pending.Plan, pending.BillingCycle), meta)
	return &PaymentInitiation{
		Pending:    pending,
		PaymentURL: billing.PaymentURL(link, pending.Amount),
		ExpiresAt:  pending.InitiatedAt.Add(s.window),
	}, nil
}

// Upgrade is InitiatePayment restricted to tiers above the current one.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID, newPlan, cycle string, meta domain.RequestMeta) (*PaymentInitiation, error) {
	newPlan = strings.TrimSpace(newPlan)
	if newPlan == "" {
		return nil, apperrors.NewValidationError("new_plan is required", map[string]any{"field": "new_plan"})
	}
	user, err := s.user(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckUpgrade(user.SubscriptionTier, domain.Tier(newPlan)); err != nil {
		return nil, err
	}
	return s.InitiatePayment(ctx, userID, newPlan, cycle, meta)
}

// ConfirmPayment activates the caller's pending payment. A payment older
// than the pending window is discarded and reported as expired.
func (s *SubscriptionService) ConfirmPayment(ctx context.Context, userID string, meta domain.RequestMeta) (*domain.User, error) {
	pending, err := s.pending.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPendingPaymentNotFound) {
			return nil, apperrors.NewNoPendingPayment()
		}
		return nil, apperrors.NewPersistenceError(err)
	}

	now := s.now()
	if billing.Expired(pending, now, s.window) {
		s.discard(ctx, pending)
		s.metrics.PaymentStage("expired", string(pending.Plan))
		return nil, apperrors.NewPaymentSessionExpired()
	}

	var (
		user    *domain.User
		oldTier domain.Tier
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := s.userForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		oldTier = u.SubscriptionTier
		billing.Activate(u, pending, now)
		if err := tx.Users().Update(ctx, u); err != nil {
			return apperrors.MapStoreError(err)
		}
		payment := &domain.Payment{
			UserID:       userID,
			Reference:    pending.ID,
			Plan:         pending.Plan,
			BillingCycle: pending.BillingCycle,
			Amount:       pending.Amount,
			PaidAt:       now,
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return apperrors.MapStoreError(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.discard(ctx, pending)

	s.metrics.PaymentStage("confirmed", string(pending.Plan))
	s.audit.RecordFor(ctx, userID, domain.ActionSubscriptionActivated, billing.Describe(oldTier, pending), meta)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventSubscriptionActivated,
		UserID: userID,
		Payload: events.SubscriptionPayload{
			OldTier:      oldTier,
			NewTier:      user.SubscriptionTier,
			Status:       user.SubscriptionStatus,
			BillingCycle: pending.BillingCycle,
			Amount:       pending.Amount,
			EndDate:      user.SubscriptionEndDate,
		},
	})
	return user, nil
}

// Cancel marks a paid subscription cancelled. The tier and end date stay so
// access continues until the period lapses.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string, meta domain.RequestMeta) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := s.userForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := billing.Cancel(u); err != nil {
			return err
		}
		if err := tx.Users().Update(ctx, u); err != nil {
			return apperrors.MapStoreError(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionSubscriptionCancelled,
		fmt.Sprintf("User cancelled %s subscription", user.SubscriptionTier), meta)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventSubscriptionCancelled,
		UserID: userID,
		Payload: events.SubscriptionPayload{
			OldTier: user.SubscriptionTier,
			NewTier: user.SubscriptionTier,
			Status:  user.SubscriptionStatus,
			EndDate: user.SubscriptionEndDate,
		},
	})
	return user, nil
}

// AdminSetSubscription overrides tier and/or status of userID on behalf of
// actorID.
func (s *SubscriptionService) AdminSetSubscription(ctx context.Context, actorID, userID string, tier, status *string, meta domain.RequestMeta) (*domain.User, error) {
	var (
		newTier   *domain.Tier
		newStatus *domain.SubscriptionStatus
	)
	if tier != nil {
		t := domain.Tier(strings.TrimSpace(*tier))
		newTier = &t
	}
	if status != nil {
		st := domain.SubscriptionStatus(strings.TrimSpace(*status))
		newStatus = &st
	}

	var (
		user    *domain.User
		oldTier domain.Tier
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := s.userForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		oldTier = u.SubscriptionTier
		if err := billing.AdminOverride(u, newTier, newStatus, s.now()); err != nil {
			return err
		}
		if err := tx.Users().Update(ctx, u); err != nil {
			return apperrors.MapStoreError(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, actorID, domain.ActionAdminSubscription,
		fmt.Sprintf("Admin updated subscription for user %s", user.Username), meta)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventSubscriptionOverridden,
		UserID: userID,
		Payload: events.SubscriptionPayload{
			OldTier: oldTier,
			NewTier: user.SubscriptionTier,
			Status:  user.SubscriptionStatus,
			EndDate: user.SubscriptionEndDate,
		},
	})
	return user, nil
}

// ExpireLapsed downgrades every paid user whose period has ended and returns
// how many were downgraded. One failing user does not stop the sweep.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now()
	lapsed, err := s.store.Users().ListLapsed(ctx, now)
	if err != nil {
		return 0, apperrors.MapStoreError(err)
	}

	expired := 0
	var errs []error
	for _, candidate := range lapsed {
		oldTier, ok, err := s.expire(ctx, candidate.ID, now)
		if err != nil {
			s.logger.Error("expire subscription failed", zap.String("user_id", candidate.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		s.audit.RecordFor(ctx, candidate.ID, domain.ActionSubscriptionExpired,
			fmt.Sprintf("Subscription %s expired; downgraded to %s", oldTier, domain.TierFree), domain.RequestMeta{})
		s.publishEvent(ctx, events.Event{
			Type:   events.EventSubscriptionExpired,
			UserID: candidate.ID,
			Payload: events.SubscriptionPayload{
				OldTier: oldTier,
				NewTier: domain.TierFree,
				Status:  domain.SubscriptionActive,
			},
		})
	}
	s.metrics.SubscriptionsExpired(expired)
	if expired > 0 {
		s.logger.Info("expired lapsed subscriptions", zap.Int("count", expired))
	}
	return expired, errors.Join(errs...)
}

func (s *SubscriptionService) expire(ctx context.Context, userID string, now time.Time) (domain.Tier, bool, error) {
	var (
		oldTier domain.Tier
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := s.userForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !billing.Lapsed(u, now) {
			return nil
		}
		oldTier = u.SubscriptionTier
		billing.Downgrade(u)
		if err := tx.Users().Update(ctx, u); err != nil {
			return apperrors.MapStoreError(err)
		}
		changed = true
		return nil
	})
	return oldTier, changed, err
}

// discard drops pending unless the user has initiated a newer payment since
// it was read.
func (s *SubscriptionService) discard(ctx context.Context, pending *domain.PendingPayment) {
	if err := s.pending.DeleteIfMatch(ctx, pending.UserID, pending.ID); err != nil {
		s.logger.Warn("discard pending payment failed",
			zap.String("user_id", pending.UserID), zap.String("payment_id", pending.ID), zap.Error(err))
	}
}

func (s *SubscriptionService) user(ctx context.Context, store repository.Store, userID string) (*domain.User, error) {
	u, err := store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user", userID)
	}
	return u, nil
}

func (s *SubscriptionService) userForUpdate(ctx context.Context, store repository.Store, userID string) (*domain.User, error) {
	u, err := store.Users().GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user", userID)
	}
	return u, nil
}

// notFoundAs maps a missing row to a NotFound naming resource.
func notFoundAs(err error, resource, id string) error {
	mapped := apperrors.MapStoreError(err)
	if apperrors.Is(mapped, apperrors.CodeNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return mapped
}
