package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/persistence"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func newPostgresStore(t *testing.T) Store {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration tests skipped in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("shield"),
		postgres.WithUsername("shield"),
		postgres.WithPassword("shield"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrations, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, persistence.RunMigrations(pool, migrations, zap.NewNop()))
	return NewPostgresStore(pool)
}

func TestPostgresStore(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	user := domain.NewRegisteredUser("alice", "alice@example.com", "hash")
	require.NoError(t, store.Users().Create(ctx, user))
	require.NotEmpty(t, user.ID)

	t.Run("unique username maps to conflict", func(t *testing.T) {
		dup := domain.NewRegisteredUser("alice", "other@example.com", "hash")
		err := apperrors.MapStoreError(store.Users().Create(ctx, dup))
		assert.True(t, apperrors.Is(err, apperrors.CodeConflict))
	})

	t.Run("login matches username or email", func(t *testing.T) {
		byEmail, err := store.Users().GetByLogin(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byEmail.ID)

		_, err = store.Users().GetByLogin(ctx, "nobody")
		assert.True(t, apperrors.Is(apperrors.MapStoreError(err), apperrors.CodeNotFound))
	})

	t.Run("transaction rolls back device insert", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx Store) error {
			if _, err := tx.Users().GetByIDForUpdate(ctx, user.ID); err != nil {
				return err
			}
			if err := tx.Devices().Create(ctx, &domain.Device{UserID: user.ID, DeviceName: "laptop", DeviceType: "laptop", OperatingSystem: "linux", Status: domain.DeviceOnline}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		count, err := store.Devices().CountByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("device names unique per user and delete cascades events", func(t *testing.T) {
		device := &domain.Device{UserID: user.ID, DeviceName: "server", DeviceType: "server", OperatingSystem: "linux", Status: domain.DeviceOnline}
		require.NoError(t, store.Devices().Create(ctx, device))

		taken, err := store.Devices().NameTaken(ctx, user.ID, "server", "")
		require.NoError(t, err)
		assert.True(t, taken)
		taken, err = store.Devices().NameTaken(ctx, user.ID, "server", device.ID)
		require.NoError(t, err)
		assert.False(t, taken)

		dup := &domain.Device{UserID: user.ID, DeviceName: "server", DeviceType: "server", OperatingSystem: "linux", Status: domain.DeviceOnline}
		assert.True(t, apperrors.Is(apperrors.MapStoreError(store.Devices().Create(ctx, dup)), apperrors.CodeConflict))

		require.NoError(t, store.SecurityEvents().Create(ctx, domain.NewCompromiseEvent(device)))
		require.NoError(t, store.Scans().Create(ctx, &domain.Scan{UserID: user.ID, DeviceID: &device.ID, ScanType: domain.ScanTypeVulnerability}))
		require.NoError(t, store.Devices().Delete(ctx, user.ID, device.ID))

		_, total, err := store.SecurityEvents().List(ctx, SecurityEventFilter{UserID: &user.ID})
		require.NoError(t, err)
		assert.Zero(t, total)
		scans, err := store.Scans().CountByUserSince(ctx, user.ID, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 1, scans)
	})

	t.Run("settings insert missing keeps existing values", func(t *testing.T) {
		require.NoError(t, store.Settings().Upsert(ctx, &domain.SystemSetting{Key: domain.SettingCompanyName, Value: "Fortress"}))
		require.NoError(t, store.Settings().InsertMissing(ctx, []domain.SystemSetting{
			{Key: domain.SettingCompanyName, Value: "Shield"},
			{Key: domain.SettingSupportEmail, Value: "support@example.com"},
		}))
		rows, err := store.Settings().List(ctx)
		require.NoError(t, err)
		values := map[string]string{}
		for _, r := range rows {
			values[r.Key] = r.Value
		}
		assert.Equal(t, "Fortress", values[domain.SettingCompanyName])
		assert.Equal(t, "support@example.com", values[domain.SettingSupportEmail])
	})
}
