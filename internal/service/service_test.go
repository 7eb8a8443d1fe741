package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/notification"
	"github.com/spec-kit/shield-service/internal/repository"
	"github.com/spec-kit/shield-service/internal/repository/memory"
	"github.com/spec-kit/shield-service/internal/scan"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

const testPassword = "Secur3Passw0rd"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (m *recordingMailer) Channel() string { return "test" }

func (m *recordingMailer) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []notification.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Message(nil), m.sent...)
}

type harness struct {
	ctx        context.Context
	clock      *fakeClock
	store      *memory.Store
	dispatcher events.Dispatcher
	published  *[]events.Event
	mailer     *recordingMailer

	auth          *AuthService
	devices       *DeviceService
	subscriptions *SubscriptionService
	securityEvts  *SecurityEventService
	admin         *AdminService
	settings      *SettingsService
}

type harnessOption func(*DeviceDependencies)

func withScanner(s scan.Scanner) harnessOption {
	return func(d *DeviceDependencies) { d.Scanner = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	dispatcher := events.NewInMemoryDispatcher(nil)
	published := &[]events.Event{}
	var mu sync.Mutex
	for _, et := range []events.EventType{
		events.EventUserRegistered,
		events.EventSecurityEventCreated,
		events.EventSubscriptionActivated,
		events.EventSubscriptionCancelled,
		events.EventSubscriptionExpired,
		events.EventSubscriptionOverridden,
	} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			mu.Lock()
			*published = append(*published, e)
			mu.Unlock()
			return nil
		})
	}

	cfg := config.Config{
		Auth:         config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost},
		Subscription: config.SubscriptionConfig{PendingTTLMinutes: 30, EnforceScanQuota: true},
		Settings: config.SettingsDefaults{
			CompanyName:               "Shield",
			SupportEmail:              "support@shield.test",
			PaymentLink:               "https://pay.example.com/shield",
			EmailNotificationsEnabled: true,
		},
	}

	audit := NewAuditLogger(store, nil)
	settings := NewSettingsService(cfg.Settings, SettingsDependencies{Store: store, Audit: audit})
	require.NoError(t, settings.Seed(context.Background()))

	deviceDeps := DeviceDependencies{
		Store:            store,
		Scanner:          scan.Static{},
		Audit:            audit,
		Dispatcher:       dispatcher,
		Clock:            clock.Now,
		EnforceScanQuota: cfg.Subscription.EnforceScanQuota,
	}
	for _, opt := range opts {
		opt(&deviceDeps)
	}

	mailer := &recordingMailer{}
	NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Store:      store,
		Settings:   settings,
		Mailer:     mailer,
		Audit:      audit,
	}).RegisterHandlers()

	return &harness{
		ctx:        context.Background(),
		clock:      clock,
		store:      store,
		dispatcher: dispatcher,
		published:  published,
		mailer:     mailer,
		auth: NewAuthService(cfg, AuthDependencies{
			Store: store, Audit: audit, Dispatcher: dispatcher, Clock: clock.Now,
		}),
		devices: NewDeviceService(deviceDeps),
		subscriptions: NewSubscriptionService(cfg.Subscription, SubscriptionDependencies{
			Store: store, Settings: settings, Audit: audit, Dispatcher: dispatcher, Clock: clock.Now,
		}),
		securityEvts: NewSecurityEventService(SecurityEventDependencies{Store: store, Audit: audit, Clock: clock.Now}),
		admin: NewAdminService(AdminDependencies{
			Store: store, Audit: audit, Dispatcher: dispatcher, Clock: clock.Now,
		}),
		settings: settings,
	}
}

func (h *harness) register(t *testing.T, username string) *domain.User {
	t.Helper()
	session, err := h.auth.Register(h.ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	}, domain.RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	return session.User
}

func (h *harness) setTier(t *testing.T, userID string, tier domain.Tier) {
	t.Helper()
	require.NoError(t, h.store.WithTx(h.ctx, func(tx repository.Store) error {
		u, err := tx.Users().GetByIDForUpdate(h.ctx, userID)
		if err != nil {
			return err
		}
		u.SubscriptionTier = tier
		return tx.Users().Update(h.ctx, u)
	}))
}

func (h *harness) addDevice(t *testing.T, userID, name string) *domain.Device {
	t.Helper()
	device, err := h.devices.Add(h.ctx, userID, DeviceInput{
		DeviceName:      name,
		DeviceType:      "laptop",
		OperatingSystem: "linux",
	}, domain.RequestMeta{})
	require.NoError(t, err)
	return device
}

func (h *harness) eventsOf(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range *h.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) userEvents(t *testing.T, userID string) []domain.SecurityEvent {
	t.Helper()
	evs, _, err := h.securityEvts.List(h.ctx, userID, EventQuery{})
	require.NoError(t, err)
	return evs
}

func (h *harness) auditActions(t *testing.T) []string {
	t.Helper()
	logs, _, err := h.store.ActivityLogs().List(h.ctx, repository.ActivityLogFilter{Page: repository.Page{Limit: 1000}})
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	return actions
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.Is(err, code), "expected %s, got %v", code, err)
}

func TestPageInfo(t *testing.T) {
	p := PageRequest{Page: 0, PerPage: 500}.normalize(20)
	require.Equal(t, 1, p.Page)
	require.Equal(t, maxPerPage, p.PerPage)

	p = PageRequest{Page: 3}.normalize(20)
	require.Equal(t, repository.Page{Limit: 20, Offset: 40}, p.window())

	info := newPageInfo(PageRequest{Page: 1, PerPage: 20}, 41)
	require.Equal(t, 3, info.Pages)
	require.Equal(t, 0, newPageInfo(PageRequest{Page: 1, PerPage: 20}, 0).Pages)
}

func TestStartOfMonth(t *testing.T) {
	got := startOfMonth(time.Date(2025, time.February, 28, 23, 59, 0, 0, time.UTC))
	require.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), got)
}
