package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shield-service/internal/api/dto"
	"github.com/spec-kit/shield-service/internal/service"
)

// SecurityEventsHandler exposes the caller's security events.
type SecurityEventsHandler struct {
	events *service.SecurityEventService
}

// NewSecurityEventsHandler constructs handler.
func NewSecurityEventsHandler(events *service.SecurityEventService) *SecurityEventsHandler {
	return &SecurityEventsHandler{events: events}
}

// List GET /api/security-events?severity=&status=&page=&per_page=.
func (h *SecurityEventsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	evs, info, err := h.events.List(c.UserContext(), p.UserID(), eventQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":       dto.NewSecurityEventResponses(evs),
		"pagination": pagination(info),
	})
}

// UpdateStatus PUT /api/security-events/:id/status.
func (h *SecurityEventsHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "security event")
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ev, err := h.events.UpdateStatus(c.UserContext(), p.UserID(), id, req.Status, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSecurityEventResponse(ev)})
}

func eventQuery(c *fiber.Ctx) service.EventQuery {
	return service.EventQuery{
		Severity:    c.Query("severity"),
		Status:      c.Query("status"),
		PageRequest: pageRequest(c),
	}
}
