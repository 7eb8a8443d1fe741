package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/app"
	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/persistence"
	"github.com/spec-kit/shield-service/internal/worker"
)

var errNoDatabase = errors.New("POSTGRES_DSN is required")

var rootCmd = &cobra.Command{
	Use:           "shieldctl",
	Short:         "Operational commands for the shield service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to revert")
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, expireCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPostgres(cmd.Context(), func(cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
			return persistence.RunMigrations(pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		steps, err := cmd.Flags().GetInt("steps")
		if err != nil {
			return err
		}
		if steps < 1 {
			return fmt.Errorf("--steps must be positive, got %d", steps)
		}
		return withPostgres(cmd.Context(), func(cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
			return persistence.RollbackMigrations(pg.PoolHandle(), cfg.Postgres.MigrationsDir, steps, logger)
		})
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Seed default settings and create the bootstrap administrator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd.Context(), func(cfg *config.Config, _ *app.Infra, svc *app.Services) error {
			if err := svc.Settings.Seed(cmd.Context()); err != nil {
				return err
			}
			created, err := svc.Auth.EnsureAdmin(cmd.Context(), cfg.Bootstrap)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %q\n", cfg.Bootstrap.AdminUsername)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "admin already present or no ADMIN_PASSWORD set")
			}
			return nil
		})
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire-subscriptions",
	Short: "Downgrade subscriptions whose end date has passed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withServices(cmd.Context(), func(cfg *config.Config, infra *app.Infra, svc *app.Services) error {
			job, err := worker.NewExpiryJob(cfg.Subscription.ExpiryCronSpec, svc.Subscriptions, infra.SweepLocker, nil)
			if err != nil {
				return err
			}
			n, err := job.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d subscription(s)\n", n)
			return nil
		})
	},
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func withPostgres(ctx context.Context, fn func(*config.Config, *persistence.Postgres, *zap.Logger) error) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errNoDatabase
	}
	return fn(cfg, pg, logger)
}

func withServices(ctx context.Context, fn func(*config.Config, *app.Infra, *app.Services) error) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	infra, err := app.OpenInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()
	if !infra.Postgres.Enabled() {
		return errNoDatabase
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	return fn(cfg, infra, app.NewServices(cfg, infra, dispatcher, nil, logger))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
