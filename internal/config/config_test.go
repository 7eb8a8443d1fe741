package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Subscription.PendingTTL())
	assert.True(t, cfg.Subscription.EnforceScanQuota)
	assert.Equal(t, "https://paypal.me/yallahack", cfg.Settings.PaymentLink)
	assert.Equal(t, "Yalla-Hack Shield", cfg.Settings.CompanyName)
	assert.True(t, cfg.Settings.EmailNotificationsEnabled)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUBSCRIPTION_PENDING_TTL_MINUTES", "5")
	t.Setenv("SUBSCRIPTION_ENFORCE_SCAN_QUOTA", "false")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Subscription.PendingTTL())
	assert.False(t, cfg.Subscription.EnforceScanQuota)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, "9090", cfg.App.Port)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	_, err := Load()
	assert.Error(t, err)
}
