package app

import (
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/config"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/notification"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/scan"
	"github.com/spec-kit/shield-service/internal/service"
)

// Services is the application layer built over one Infra.
type Services struct {
	Audit          *service.AuditLogger
	Settings       *service.SettingsService
	Auth           *service.AuthService
	Devices        *service.DeviceService
	Subscriptions  *service.SubscriptionService
	SecurityEvents *service.SecurityEventService
	Admin          *service.AdminService
	Notifications  *service.NotificationService
}

// NewServices wires every service. Notification handlers are not
// subscribed here; the notification worker does that.
func NewServices(cfg *config.Config, infra *Infra, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := service.NewAuditLogger(infra.Store, logger)
	settings := service.NewSettingsService(cfg.Settings, service.SettingsDependencies{
		Store:  infra.Store,
		Audit:  audit,
		Logger: logger,
	})

	return &Services{
		Audit:    audit,
		Settings: settings,
		Auth: service.NewAuthService(*cfg, service.AuthDependencies{
			Store:      infra.Store,
			Audit:      audit,
			Dispatcher: dispatcher,
			Logger:     logger,
		}),
		Devices: service.NewDeviceService(service.DeviceDependencies{
			Store:            infra.Store,
			Scanner:          scan.NewSimulator(),
			Locker:           infra.Locker,
			Audit:            audit,
			Dispatcher:       dispatcher,
			Metrics:          metrics,
			Logger:           logger,
			EnforceScanQuota: cfg.Subscription.EnforceScanQuota,
		}),
		Subscriptions: service.NewSubscriptionService(cfg.Subscription, service.SubscriptionDependencies{
			Store:      infra.Store,
			Pending:    infra.Pending,
			Settings:   settings,
			Audit:      audit,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger,
		}),
		SecurityEvents: service.NewSecurityEventService(service.SecurityEventDependencies{
			Store:  infra.Store,
			Audit:  audit,
			Logger: logger,
		}),
		Admin: service.NewAdminService(service.AdminDependencies{
			Store:      infra.Store,
			Audit:      audit,
			Dispatcher: dispatcher,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Notifications: service.NewNotificationService(service.NotificationDependencies{
			Dispatcher: dispatcher,
			Store:      infra.Store,
			Settings:   settings,
			Mailer:     notification.NewMailer(cfg.Notification.ResendAPIKey, cfg.Notification.EmailFrom, logger),
			Audit:      audit,
			Metrics:    metrics,
			Logger:     logger,
		}),
	}
}
