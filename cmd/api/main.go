package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/shield-service/internal/api/http"
	"github.com/spec-kit/shield-service/internal/api/http/handlers"
	"github.com/spec-kit/shield-service/internal/app"
	"github.com/spec-kit/shield-service/internal/auth"
	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := app.OpenInfra(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise storage", zap.Error(err))
	}
	defer infra.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	dispatcher := events.NewAsyncDispatcher(cfg.Notification.Workers, cfg.Notification.QueueSize, logger)
	services := app.NewServices(cfg, infra, dispatcher, metrics, logger)

	if err := services.Settings.Seed(ctx); err != nil {
		logger.Fatal("failed to seed settings", zap.Error(err))
	}
	if created, err := services.Auth.EnsureAdmin(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	} else if created {
		logger.Info("bootstrap admin created", zap.String("username", cfg.Bootstrap.AdminUsername))
	}

	var forwarder *events.AMQPForwarder
	if cfg.Notification.AMQPURL != "" {
		forwarder, err = events.DialAMQPForwarder(cfg.Notification.AMQPURL, cfg.Notification.AMQPExchange, logger)
		if err != nil {
			logger.Warn("event forwarding disabled", zap.Error(err))
			forwarder = nil
		}
	}
	notifications := worker.NewNotificationWorker(worker.NotificationWorkerDependencies{
		Dispatcher:    dispatcher,
		Notifications: services.Notifications,
		Forwarder:     forwarder,
		Logger:        logger,
	})
	notifications.Start(ctx)

	expiry, err := worker.NewExpiryJob(cfg.Subscription.ExpiryCronSpec, services.Subscriptions, infra.SweepLocker, logger)
	if err != nil {
		logger.Fatal("failed to schedule expiry job", zap.Error(err))
	}
	expiry.Start()

	health := []handlers.Dependency{{Name: "store", Pinger: infra.Store}}
	if infra.Redis.Enabled() {
		health = append(health, handlers.Dependency{Name: "redis", Pinger: infra.Redis})
	}

	fiberApp := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(fiberApp, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, health...),
		Auth:           handlers.NewAuthHandler(services.Auth),
		Devices:        handlers.NewDevicesHandler(services.Devices),
		SecurityEvents: handlers.NewSecurityEventsHandler(services.SecurityEvents),
		Subscription:   handlers.NewSubscriptionHandler(services.Subscriptions),
		Admin: handlers.NewAdminHandler(handlers.AdminHandlerDependencies{
			Admin:         services.Admin,
			Subscriptions: services.Subscriptions,
			Settings:      services.Settings,
		}),
		AuthMiddleware: auth.NewAuthMiddleware(services.Auth.TokenManager(), infra.Store.Users()),
		LoginLimiter:   httptransport.RateLimitMiddleware(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst),
		Gatherer:       registry,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	expiry.Stop(shutdownCtx)
	if err := notifications.Shutdown(shutdownCtx); err != nil {
		logger.Warn("notification worker shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
