package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/shield-service/internal/api/http/handlers"
	"github.com/spec-kit/shield-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Devices        *handlers.DevicesHandler
	SecurityEvents *handlers.SecurityEventsHandler
	Subscription   *handlers.SubscriptionHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	// LoginLimiter guards POST /api/auth/login; nil disables it.
	LoginLimiter fiber.Handler
	// Gatherer backs GET /metrics; nil skips the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter, cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)
	authGroup.Put("/profile", cfg.AuthMiddleware.Handle, cfg.Auth.UpdateProfile)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Auth.ChangePassword)

	devices := api.Group("/devices", cfg.AuthMiddleware.Handle)
	devices.Get("/", cfg.Devices.List)
	devices.Post("/", cfg.Devices.Create)
	devices.Get("/summary", cfg.Devices.Summary)
	devices.Get("/:id", cfg.Devices.Get)
	devices.Put("/:id", cfg.Devices.Update)
	devices.Delete("/:id", cfg.Devices.Delete)
	devices.Put("/:id/status", cfg.Devices.UpdateStatus)
	devices.Post("/:id/scan", cfg.Devices.Scan)

	events := api.Group("/security-events", cfg.AuthMiddleware.Handle)
	events.Get("/", cfg.SecurityEvents.List)
	events.Put("/:id/status", cfg.SecurityEvents.UpdateStatus)

	sub := api.Group("/subscription")
	sub.Get("/plans", cfg.Subscription.Plans)
	subAuthed := sub.Group("", cfg.AuthMiddleware.Handle)
	subAuthed.Get("/current", cfg.Subscription.Current)
	subAuthed.Get("/usage", cfg.Subscription.Usage)
	subAuthed.Get("/payments", cfg.Subscription.Payments)
	subAuthed.Post("/initiate-payment", cfg.Subscription.InitiatePayment)
	subAuthed.Post("/upgrade", cfg.Subscription.Upgrade)
	subAuthed.Post("/confirm-payment", cfg.Subscription.ConfirmPayment)
	subAuthed.Post("/cancel", cfg.Subscription.Cancel)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	admin.Get("/dashboard/stats", cfg.Admin.DashboardStats)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/users/:id", cfg.Admin.GetUser)
	admin.Put("/users/:id/subscription", cfg.Admin.SetSubscription)
	admin.Post("/users/:id/toggle-status", cfg.Admin.ToggleUserStatus)
	admin.Get("/security-events", cfg.Admin.ListSecurityEvents)
	admin.Post("/security-events", cfg.Admin.CreateSecurityEvent)
	admin.Get("/activity-logs", cfg.Admin.ListActivityLogs)
	admin.Get("/system-settings", cfg.Admin.ListSettings)
	admin.Put("/system-settings/:key", cfg.Admin.UpdateSetting)
}
