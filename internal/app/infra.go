// Package app assembles the storage and coordination layer shared by the
// API server and the shieldctl tool.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/persistence"
	"github.com/spec-kit/shield-service/internal/repository"
	"github.com/spec-kit/shield-service/internal/repository/memory"
	"github.com/spec-kit/shield-service/internal/worker"
)

// Infra holds the connected backends. Postgres and Redis are optional;
// without them the store, pending payments and locks stay in process.
// Locker guards per-user quota checks; SweepLocker serializes the expiry
// sweep across replicas and is never disabled.
type Infra struct {
	Postgres    *persistence.Postgres
	Redis       *persistence.Redis
	Store       repository.Store
	Pending     repository.PendingPaymentStore
	Locker      persistence.Locker
	SweepLocker persistence.Locker
}

// OpenInfra connects to the configured backends and, when enabled, applies
// migrations.
func OpenInfra(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Infra, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	infra := &Infra{Postgres: pg, Redis: persistence.NewRedis(cfg.Redis, logger)}

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				infra.Close()
				return nil, err
			}
		}
		infra.Store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		infra.Store = memory.NewStore()
	}

	switch {
	case infra.Redis.Enabled():
		// Records outlive the confirmation window so an expired attempt
		// still reports PAYMENT_SESSION_EXPIRED instead of NO_PENDING_PAYMENT.
		infra.Pending = repository.NewRedisPendingPaymentStore(infra.Redis.Client, 2*cfg.Subscription.PendingTTL())
	default:
		infra.Pending = repository.NewMemoryPendingPaymentStore()
	}

	switch {
	case !cfg.Subscription.QuotaLockEnabled:
		infra.Locker = persistence.NewNoopLocker()
	case infra.Redis.Enabled():
		infra.Locker = persistence.NewRedsyncLocker(infra.Redis.Client, cfg.Subscription.QuotaLockTTL(), logger)
	default:
		infra.Locker = persistence.NewLocalLocker()
	}

	if infra.Redis.Enabled() {
		infra.SweepLocker = persistence.NewRedsyncLocker(infra.Redis.Client, worker.ExpiryLockTTL, logger)
	} else {
		infra.SweepLocker = persistence.NewLocalLocker()
	}

	return infra, nil
}

// Close releases every backend connection.
func (i *Infra) Close() {
	i.Redis.Close()
	i.Postgres.Close()
}
