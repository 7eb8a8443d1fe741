package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shield-service/internal/api/dto"
	"github.com/spec-kit/shield-service/internal/service"
)

// DevicesHandler manages the caller's devices.
type DevicesHandler struct {
	devices *service.DeviceService
}

// NewDevicesHandler constructs handler.
func NewDevicesHandler(devices *service.DeviceService) *DevicesHandler {
	return &DevicesHandler{devices: devices}
}

// List GET /api/devices.
func (h *DevicesHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	devices, err := h.devices.List(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDeviceResponses(devices)})
}

// Summary GET /api/devices/summary.
func (h *DevicesHandler) Summary(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	summary, err := h.devices.Summary(c.UserContext(), p.UserID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Create POST /api/devices.
func (h *DevicesHandler) Create(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateDeviceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	device, err := h.devices.Add(c.UserContext(), p.UserID(), service.DeviceInput{
		DeviceName:      req.DeviceName,
		DeviceType:      req.DeviceType,
		OperatingSystem: req.OperatingSystem,
		IPAddress:       req.IPAddress,
		MACAddress:      req.MACAddress,
		AgentVersion:    req.AgentVersion,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDeviceResponse(device)})
}

// Get GET /api/devices/:id.
func (h *DevicesHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "device")
	if err != nil {
		return err
	}
	detail, err := h.devices.Get(c.UserContext(), p.UserID(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DeviceDetailResponse{
		DeviceResponse: dto.NewDeviceResponse(detail.Device),
		RecentEvents:   dto.NewSecurityEventResponses(detail.RecentEvents),
	}})
}

// Update PUT /api/devices/:id.
func (h *DevicesHandler) Update(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "device")
	if err != nil {
		return err
	}
	var req dto.UpdateDeviceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	device, err := h.devices.Update(c.UserContext(), p.UserID(), id, service.DeviceUpdate{
		DeviceName:      req.DeviceName,
		DeviceType:      req.DeviceType,
		OperatingSystem: req.OperatingSystem,
		IPAddress:       req.IPAddress,
		MACAddress:      req.MACAddress,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDeviceResponse(device)})
}

// Delete DELETE /api/devices/:id.
func (h *DevicesHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "device")
	if err != nil {
		return err
	}
	if err := h.devices.Delete(c.UserContext(), p.UserID(), id, requestMeta(c)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpdateStatus PUT /api/devices/:id/status.
func (h *DevicesHandler) UpdateStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "device")
	if err != nil {
		return err
	}
	var req dto.StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	device, err := h.devices.UpdateStatus(c.UserContext(), p.UserID(), id, req.Status, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDeviceResponse(device)})
}

// Scan POST /api/devices/:id/scan.
func (h *DevicesHandler) Scan(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "device")
	if err != nil {
		return err
	}
	result, err := h.devices.RunScan(c.UserContext(), p.UserID(), id, requestMeta(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewScanResponse(result.Scan, result.Device.ID, result.Event),
	})
}
