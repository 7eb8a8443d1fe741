package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func TestRegisterCreatesFreeActiveUser(t *testing.T) {
	h := newHarness(t)
	session, err := h.auth.Register(h.ctx, RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  testPassword,
		FirstName: "Alice",
	}, domain.RequestMeta{})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, domain.TierFree, session.User.SubscriptionTier)
	require.Equal(t, domain.SubscriptionActive, session.User.SubscriptionStatus)
	require.True(t, session.User.IsActive)
	require.False(t, session.User.IsAdmin)

	claims, err := h.auth.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, claims.Subject)

	require.Len(t, h.eventsOf(events.EventUserRegistered), 1)
	msgs := h.mailer.messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "Welcome to Shield", msgs[0].Subject)
	require.Contains(t, h.auditActions(t), domain.ActionWelcomeEmail)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice")

	cases := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"missing fields", RegisterInput{Username: "bob"}, apperrors.CodeValidation},
		{"bad email", RegisterInput{Username: "bob", Email: "bob@", Password: testPassword}, apperrors.CodeValidation},
		{"weak password", RegisterInput{Username: "bob", Email: "bob@example.com", Password: "password"}, apperrors.CodeValidation},
		{"taken username", RegisterInput{Username: "alice", Email: "other@example.com", Password: testPassword}, apperrors.CodeConflict},
		{"taken email", RegisterInput{Username: "bob", Email: "alice@example.com", Password: testPassword}, apperrors.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.auth.Register(h.ctx, tc.in, domain.RequestMeta{})
			requireCode(t, err, tc.code)
		})
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	byName, err := h.auth.Login(h.ctx, "alice", testPassword, domain.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, byName.User.LastLogin)

	byEmail, err := h.auth.Login(h.ctx, user.Email, testPassword, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.User.ID)
}

func TestFailedLoginIsAuditedAnonymously(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice")

	_, err := h.auth.Login(h.ctx, "alice", "wrong-Passw0rd", domain.RequestMeta{IP: "203.0.113.9"})
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = h.auth.Login(h.ctx, "nobody", testPassword, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeUnauthorized)

	logs, total, err := h.store.ActivityLogs().List(h.ctx, repository.ActivityLogFilter{Action: domain.ActionLoginFailed})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, l := range logs {
		require.Nil(t, l.UserID)
	}
	require.Equal(t, "203.0.113.9", *logs[1].IPAddress)
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	h := newHarness(t)
	admin := h.register(t, "root")
	user := h.register(t, "alice")

	_, err := h.admin.ToggleUserStatus(h.ctx, admin.ID, user.ID, domain.RequestMeta{})
	require.NoError(t, err)

	_, err = h.auth.Login(h.ctx, "alice", testPassword, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeUnauthorized)
}

func TestUpdateProfileAndChangePassword(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice")
	h.register(t, "bob")

	company := "Acme"
	updated, err := h.auth.UpdateProfile(h.ctx, alice.ID, ProfileInput{CompanyName: &company}, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "Acme", updated.CompanyName)

	taken := "bob@example.com"
	_, err = h.auth.UpdateProfile(h.ctx, alice.ID, ProfileInput{Email: &taken}, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeConflict)

	err = h.auth.ChangePassword(h.ctx, alice.ID, "not-it", "N3wPassword", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	require.NoError(t, h.auth.ChangePassword(h.ctx, alice.ID, testPassword, "N3wPassword", domain.RequestMeta{}))

	_, err = h.auth.Login(h.ctx, "alice", testPassword, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = h.auth.Login(h.ctx, "alice", "N3wPassword", domain.RequestMeta{})
	require.NoError(t, err)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	h := newHarness(t)
	cfg := config.BootstrapConfig{AdminUsername: "admin", AdminEmail: "admin@example.com", AdminPassword: "Adm1nPassword"}

	created, err := h.auth.EnsureAdmin(h.ctx, cfg)
	require.NoError(t, err)
	require.True(t, created)

	created, err = h.auth.EnsureAdmin(h.ctx, cfg)
	require.NoError(t, err)
	require.False(t, created)

	session, err := h.auth.Login(h.ctx, "admin", "Adm1nPassword", domain.RequestMeta{})
	require.NoError(t, err)
	require.True(t, session.User.IsAdmin)
	require.Equal(t, domain.TierEnterprise, session.User.SubscriptionTier)

	created, err = h.auth.EnsureAdmin(h.ctx, config.BootstrapConfig{})
	require.NoError(t, err)
	require.False(t, created)
}
