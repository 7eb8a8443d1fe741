package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/shield-service/internal/api/dto"
	"github.com/spec-kit/shield-service/internal/service"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// AdminHandler backs the administrator console. Routes are guarded by
// auth.RequireAdmin.
type AdminHandler struct {
	admin         *service.AdminService
	subscriptions *service.SubscriptionService
	settings      *service.SettingsService
}

// AdminHandlerDependencies bundles the services the console uses.
type AdminHandlerDependencies struct {
	Admin         *service.AdminService
	Subscriptions *service.SubscriptionService
	Settings      *service.SettingsService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(deps AdminHandlerDependencies) *AdminHandler {
	return &AdminHandler{admin: deps.Admin, subscriptions: deps.Subscriptions, settings: deps.Settings}
}

// DashboardStats GET /api/admin/dashboard/stats.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.admin.DashboardStats(c.UserContext())
	if err != nil {
		return err
	}
	byTier := make(map[string]int, len(stats.SubscriptionStats))
	for tier, n := range stats.SubscriptionStats {
		byTier[string(tier)] = n
	}
	return c.JSON(fiber.Map{"data": dto.DashboardStatsResponse{
		TotalUsers:        stats.TotalUsers,
		ActiveUsers:       stats.ActiveUsers,
		TotalDevices:      stats.TotalDevices,
		OnlineDevices:     stats.OnlineDevices,
		SubscriptionStats: byTier,
		MonthlyRevenue:    stats.MonthlyRevenue,
		RecentEvents:      stats.RecentEvents,
		CriticalEvents:    stats.CriticalEvents,
		NewUsersThisMonth: stats.NewUsersThisMonth,
	}})
}

// ListUsers GET /api/admin/users?search=&page=&per_page=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, info, err := h.admin.ListUsers(c.UserContext(), service.UserQuery{
		Search:      c.Query("search"),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewUserResponses(users),
		"pagination": pagination(info),
	})
}

// GetUser GET /api/admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	details, err := h.admin.UserDetails(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserDetailsResponse{
		User:         dto.NewUserResponse(details.User),
		Devices:      dto.NewDeviceResponses(details.Devices),
		Events:       dto.NewSecurityEventResponses(details.Events),
		ActivityLogs: dto.NewActivityLogResponses(details.ActivityLogs),
	}})
}

// SetSubscription PUT /api/admin/users/:id/subscription.
func (h *AdminHandler) SetSubscription(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	var req dto.AdminSubscriptionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.subscriptions.AdminSetSubscription(c.UserContext(), p.UserID(), id,
		req.SubscriptionTier, req.SubscriptionStatus, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ToggleUserStatus POST /api/admin/users/:id/toggle-status.
func (h *AdminHandler) ToggleUserStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	user, err := h.admin.ToggleUserStatus(c.UserContext(), p.UserID(), id, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ListSecurityEvents GET /api/admin/security-events.
func (h *AdminHandler) ListSecurityEvents(c *fiber.Ctx) error {
	evs, info, err := h.admin.ListSecurityEvents(c.UserContext(), eventQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewSecurityEventResponses(evs),
		"pagination": pagination(info),
	})
}

// CreateSecurityEvent POST /api/admin/security-events.
func (h *AdminHandler) CreateSecurityEvent(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateSecurityEventRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ev, err := h.admin.CreateSecurityEvent(c.UserContext(), p.UserID(), service.SecurityEventInput{
		UserID:        req.UserID,
		DeviceID:      req.DeviceID,
		EventType:     req.EventType,
		Severity:      req.Severity,
		Title:         req.Title,
		Description:   req.Description,
		RuleTriggered: req.RuleTriggered,
		SourceIP:      req.SourceIP,
		DestinationIP: req.DestinationIP,
		FilePath:      req.FilePath,
		ProcessName:   req.ProcessName,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSecurityEventResponse(ev)})
}

// ListActivityLogs GET /api/admin/activity-logs?user_id=&action=&page=&per_page=.
func (h *AdminHandler) ListActivityLogs(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			return apperrors.NewValidationError("invalid user_id", map[string]any{"user_id": userID})
		}
	}
	logs, info, err := h.admin.ListActivityLogs(c.UserContext(), service.LogQuery{
		UserID:      userID,
		Action:      c.Query("action"),
		PageRequest: pageRequest(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewActivityLogResponses(logs),
		"pagination": pagination(info),
	})
}

// ListSettings GET /api/admin/system-settings.
func (h *AdminHandler) ListSettings(c *fiber.Ctx) error {
	rows, err := h.settings.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.SettingResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.NewSettingResponse(&rows[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// UpdateSetting PUT /api/admin/system-settings/:key.
func (h *AdminHandler) UpdateSetting(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.SettingUpdateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	setting, err := h.settings.Update(c.UserContext(), p.UserID(), c.Params("key"), req.Value, req.Description, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSettingResponse(setting)})
}
