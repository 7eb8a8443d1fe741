package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func bootstrapAdmin(t *testing.T, h *harness) *domain.User {
	t.Helper()
	_, err := h.auth.EnsureAdmin(h.ctx, config.BootstrapConfig{
		AdminUsername: "admin", AdminEmail: "admin@example.com", AdminPassword: "Adm1nPassword",
	})
	require.NoError(t, err)
	session, err := h.auth.Login(h.ctx, "admin", "Adm1nPassword", domain.RequestMeta{})
	require.NoError(t, err)
	return session.User
}

func TestToggleUserStatus(t *testing.T) {
	h := newHarness(t)
	admin := bootstrapAdmin(t, h)
	user := h.register(t, "alice")

	_, err := h.admin.ToggleUserStatus(h.ctx, admin.ID, admin.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	off, err := h.admin.ToggleUserStatus(h.ctx, admin.ID, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.False(t, off.IsActive)
	on, err := h.admin.ToggleUserStatus(h.ctx, admin.ID, user.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.True(t, on.IsActive)

	actions := h.auditActions(t)
	require.Contains(t, actions, domain.ActionAdminUserDeactivated)
	require.Contains(t, actions, domain.ActionAdminUserActivated)
}

func TestCreateSecurityEventChecksDeviceOwnership(t *testing.T) {
	h := newHarness(t)
	admin := bootstrapAdmin(t, h)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	bobsDevice := h.addDevice(t, bob.ID, "server")
	alicesDevice := h.addDevice(t, alice.ID, "laptop")

	in := SecurityEventInput{
		UserID:      alice.ID,
		DeviceID:    &bobsDevice.ID,
		EventType:   "malware_detected",
		Severity:    "high",
		Title:       "Trojan found",
		Description: "Quarantined payload",
	}
	_, err := h.admin.CreateSecurityEvent(h.ctx, admin.ID, in, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	require.Empty(t, h.userEvents(t, alice.ID))

	in.DeviceID = &alicesDevice.ID
	ev, err := h.admin.CreateSecurityEvent(h.ctx, admin.ID, in, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, domain.EventOpen, ev.Status)
	require.Equal(t, "laptop", *ev.DeviceName)

	in.Severity = "apocalyptic"
	_, err = h.admin.CreateSecurityEvent(h.ctx, admin.ID, in, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	in.Severity = "low"
	in.Title = ""
	_, err = h.admin.CreateSecurityEvent(h.ctx, admin.ID, in, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	require.Equal(t, "title", apperrors.ToDomainError(err).Details["field"])

	require.Len(t, h.eventsOf(events.EventSecurityEventCreated), 1)
}

func TestDashboardStats(t *testing.T) {
	h := newHarness(t)
	bootstrapAdmin(t, h)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	h.setTier(t, alice.ID, domain.TierPro)
	h.setTier(t, bob.ID, domain.TierPersonal)
	device := h.addDevice(t, alice.ID, "laptop")
	_, err := h.devices.UpdateStatus(h.ctx, alice.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)

	stats, err := h.admin.DashboardStats(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalUsers)
	require.Equal(t, 3, stats.ActiveUsers)
	require.Equal(t, 1, stats.TotalDevices)
	require.Equal(t, 0, stats.OnlineDevices)
	require.Equal(t, 1, stats.SubscriptionStats[domain.TierPro])
	require.Equal(t, 1, stats.SubscriptionStats[domain.TierEnterprise])
	require.Equal(t, 1, stats.RecentEvents)
	require.Equal(t, 1, stats.CriticalEvents)
	require.Equal(t, 3, stats.NewUsersThisMonth)
	require.Positive(t, stats.MonthlyRevenue)
}

func TestListUsersAndDetails(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice")
	bob := h.register(t, "bob")
	h.addDevice(t, bob.ID, "server")

	users, page, err := h.admin.ListUsers(h.ctx, UserQuery{Search: "bo"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 1, page.Total)
	require.Equal(t, defaultUsersPerPage, page.PerPage)

	details, err := h.admin.UserDetails(h.ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, details.Devices, 1)
	require.NotEmpty(t, details.ActivityLogs)

	_, err = h.admin.UserDetails(h.ctx, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestSecurityEventTriage(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	device := h.addDevice(t, alice.ID, "laptop")
	_, err := h.devices.UpdateStatus(h.ctx, alice.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)
	ev := h.userEvents(t, alice.ID)[0]

	_, err = h.securityEvts.UpdateStatus(h.ctx, bob.ID, ev.ID, "resolved", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.securityEvts.UpdateStatus(h.ctx, alice.ID, ev.ID, "ignored", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	resolved, err := h.securityEvts.UpdateStatus(h.ctx, alice.ID, ev.ID, "resolved", domain.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	reopened, err := h.securityEvts.UpdateStatus(h.ctx, alice.ID, ev.ID, "open", domain.RequestMeta{})
	require.NoError(t, err)
	require.Nil(t, reopened.ResolvedAt)

	critical, page, err := h.securityEvts.List(h.ctx, alice.ID, EventQuery{Severity: "critical"})
	require.NoError(t, err)
	require.Len(t, critical, 1)
	require.Equal(t, 1, page.Pages)

	_, _, err = h.securityEvts.List(h.ctx, alice.ID, EventQuery{Status: "bogus"})
	requireCode(t, err, apperrors.CodeValidation)

	all, _, err := h.admin.ListSecurityEvents(h.ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSettingsUpdate(t *testing.T) {
	h := newHarness(t)
	admin := bootstrapAdmin(t, h)

	_, err := h.settings.Update(h.ctx, admin.ID, "theme", "dark", "", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = h.settings.Update(h.ctx, admin.ID, domain.SettingEmailNotificationsEnabled, "maybe", "", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.settings.Update(h.ctx, admin.ID, domain.SettingCompanyName, "Fortress", "", domain.RequestMeta{})
	require.NoError(t, err)
	current, err := h.settings.Current(h.ctx)
	require.NoError(t, err)
	require.Equal(t, "Fortress", current.CompanyName)

	rows, err := h.settings.List(h.ctx)
	require.NoError(t, err)
	require.Len(t, rows, len(domain.SettingDescriptions))
}

func TestSecurityAlertEmailsHonourSetting(t *testing.T) {
	h := newHarness(t)
	admin := bootstrapAdmin(t, h)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")

	_, err := h.settings.Update(h.ctx, admin.ID, domain.SettingEmailNotificationsEnabled, "FALSE", "", domain.RequestMeta{})
	require.NoError(t, err)
	before := len(h.mailer.messages())

	_, err = h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, h.mailer.messages(), before)
	require.False(t, h.userEvents(t, user.ID)[0].EmailSent)
}

func TestFailedAlertEmailLeavesEventUnflagged(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")
	h.mailer.err = errors.New("smtp down")

	_, err := h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)
	evs := h.userEvents(t, user.ID)
	require.Len(t, evs, 1)
	require.False(t, evs[0].EmailSent)
}
