package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/billing"
	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func TestConfirmWithoutPendingPayment(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNoPendingPayment)
}

func TestInitiateLeavesUserUntouched(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	init, err := h.subscriptions.InitiatePayment(h.ctx, user.ID, "pro", "annual", domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierPro, init.Pending.Plan)
	require.Equal(t, domain.BillingAnnual, init.Pending.BillingCycle)
	require.Equal(t, billing.PaymentURL("https://pay.example.com/shield", init.Pending.Amount), init.PaymentURL)

	current, err := h.subscriptions.Current(h.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierFree, current.Tier)
	require.Nil(t, current.DaysRemaining)
}

func TestInitiateRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.subscriptions.InitiatePayment(h.ctx, user.ID, "", "monthly", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.subscriptions.InitiatePayment(h.ctx, user.ID, "free", "monthly", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.subscriptions.InitiatePayment(h.ctx, user.ID, "pro", "weekly", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestConfirmWithinWindow(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		cycle   string
		period  time.Duration
	}{
		{"monthly just inside window", 29*time.Minute + 59*time.Second, "monthly", 30 * 24 * time.Hour},
		{"annual at window edge", 30 * time.Minute, "annual", 365 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			user := h.register(t, "alice")

			_, err := h.subscriptions.InitiatePayment(h.ctx, user.ID, "personal", tc.cycle, domain.RequestMeta{})
			require.NoError(t, err)
			h.clock.Advance(tc.elapsed)

			updated, err := h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
			require.NoError(t, err)
			require.Equal(t, domain.TierPersonal, updated.SubscriptionTier)
			require.Equal(t, domain.SubscriptionActive, updated.SubscriptionStatus)
			require.Equal(t, h.clock.Now(), *updated.SubscriptionStartDate)
			require.Equal(t, tc.period, updated.SubscriptionEndDate.Sub(*updated.SubscriptionStartDate))

			payments, err := h.subscriptions.Payments(h.ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, payments, 1)
			require.Equal(t, domain.TierPersonal, payments[0].Plan)

			require.Len(t, h.eventsOf(events.EventSubscriptionActivated), 1)
			require.Contains(t, h.auditActions(t), domain.ActionSubscriptionActivated)

			_, err = h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
			requireCode(t, err, apperrors.CodeNoPendingPayment)
		})
	}
}

func TestConfirmAfterWindowExpires(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.subscriptions.InitiatePayment(h.ctx, user.ID, "pro", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	h.clock.Advance(30*time.Minute + time.Second)

	_, err = h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodePaymentSessionExpired)

	_, err = h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNoPendingPayment)

	current, err := h.subscriptions.Current(h.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierFree, current.Tier)
}

func TestSecondInitiateReplacesFirst(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.subscriptions.InitiatePayment(h.ctx, user.ID, "personal", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.subscriptions.InitiatePayment(h.ctx, user.ID, "enterprise", "monthly", domain.RequestMeta{})
	require.NoError(t, err)

	updated, err := h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierEnterprise, updated.SubscriptionTier)
}

// racingPendingStore saves next right after the first Get hands out the
// current record, like a second initiate landing mid-confirm.
type racingPendingStore struct {
	repository.PendingPaymentStore
	next *domain.PendingPayment
}

func (s *racingPendingStore) Get(ctx context.Context, userID string) (*domain.PendingPayment, error) {
	current, err := s.PendingPaymentStore.Get(ctx, userID)
	if err != nil || s.next == nil {
		return current, err
	}
	next := s.next
	s.next = nil
	if err := s.PendingPaymentStore.Save(ctx, next); err != nil {
		return nil, err
	}
	return current, nil
}

func TestConfirmKeepsPaymentInitiatedMidConfirm(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	pending := &racingPendingStore{PendingPaymentStore: repository.NewMemoryPendingPaymentStore()}
	subscriptions := NewSubscriptionService(config.SubscriptionConfig{PendingTTLMinutes: 30}, SubscriptionDependencies{
		Store: h.store, Pending: pending, Settings: h.settings, Clock: h.clock.Now,
	})

	_, err := subscriptions.InitiatePayment(h.ctx, user.ID, "pro", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	pending.next = &domain.PendingPayment{
		ID:           "newer-payment",
		UserID:       user.ID,
		Plan:         domain.TierEnterprise,
		BillingCycle: domain.BillingMonthly,
		Amount:       99,
		InitiatedAt:  h.clock.Now(),
	}

	updated, err := subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierPro, updated.SubscriptionTier)

	kept, err := pending.Get(h.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "newer-payment", kept.ID)

	updated, err = subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierEnterprise, updated.SubscriptionTier)
}

func TestUpgradeOnlyMovesUp(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	h.setTier(t, user.ID, domain.TierPro)

	_, err := h.subscriptions.Upgrade(h.ctx, user.ID, "personal", "monthly", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.subscriptions.Upgrade(h.ctx, user.ID, "pro", "monthly", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	init, err := h.subscriptions.Upgrade(h.ctx, user.ID, "enterprise", "", domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.BillingMonthly, init.Pending.BillingCycle)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.subscriptions.Cancel(h.ctx, user.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNothingToCancel)

	_, err = h.subscriptions.InitiatePayment(h.ctx, user.ID, "pro", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	active, err := h.subscriptions.ConfirmPayment(h.ctx, user.ID, domain.RequestMeta{})
	require.NoError(t, err)

	cancelled, err := h.subscriptions.Cancel(h.ctx, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierPro, cancelled.SubscriptionTier)
	require.Equal(t, domain.SubscriptionCancelled, cancelled.SubscriptionStatus)
	require.Equal(t, active.SubscriptionEndDate, cancelled.SubscriptionEndDate)
}

func TestAdminSetSubscription(t *testing.T) {
	h := newHarness(t)
	admin := h.register(t, "root")
	user := h.register(t, "alice")

	pro := "pro"
	updated, err := h.subscriptions.AdminSetSubscription(h.ctx, admin.ID, user.ID, &pro, nil, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.TierPro, updated.SubscriptionTier)
	require.NotNil(t, updated.SubscriptionStartDate)
	require.Equal(t, billing.MonthlyPeriod, updated.SubscriptionEndDate.Sub(*updated.SubscriptionStartDate))

	cancelled := "cancelled"
	_, err = h.subscriptions.AdminSetSubscription(h.ctx, admin.ID, user.ID, nil, &cancelled, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.subscriptions.AdminSetSubscription(h.ctx, admin.ID, user.ID, nil, nil, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.subscriptions.AdminSetSubscription(h.ctx, admin.ID, "missing", &pro, nil, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNotFound)

	require.Len(t, h.eventsOf(events.EventSubscriptionOverridden), 1)
}

func TestExpireLapsedDowngrades(t *testing.T) {
	h := newHarness(t)
	lapsing := h.register(t, "alice")
	current := h.register(t, "bob")

	_, err := h.subscriptions.InitiatePayment(h.ctx, lapsing.ID, "personal", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.subscriptions.ConfirmPayment(h.ctx, lapsing.ID, domain.RequestMeta{})
	require.NoError(t, err)

	h.clock.Advance(20 * 24 * time.Hour)
	_, err = h.subscriptions.InitiatePayment(h.ctx, current.ID, "pro", "monthly", domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.subscriptions.ConfirmPayment(h.ctx, current.ID, domain.RequestMeta{})
	require.NoError(t, err)

	h.clock.Advance(11 * 24 * time.Hour)
	n, err := h.subscriptions.ExpireLapsed(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	downgraded, err := h.subscriptions.Current(h.ctx, lapsing.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierFree, downgraded.Tier)
	require.Equal(t, domain.SubscriptionActive, downgraded.Status)
	require.Nil(t, downgraded.EndDate)

	kept, err := h.subscriptions.Current(h.ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierPro, kept.Tier)
	require.Equal(t, 19, *kept.DaysRemaining)

	n, err = h.subscriptions.ExpireLapsed(h.ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, h.eventsOf(events.EventSubscriptionExpired), 1)
}
