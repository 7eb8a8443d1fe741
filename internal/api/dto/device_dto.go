package dto

import (
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// CreateDeviceRequest registers a device.
type CreateDeviceRequest struct {
	DeviceName      string  `json:"device_name" validate:"required,max=100"`
	DeviceType      string  `json:"device_type" validate:"required,max=50"`
	OperatingSystem string  `json:"operating_system" validate:"required,max=50"`
	IPAddress       *string `json:"ip_address" validate:"omitempty,ip"`
	MACAddress      *string `json:"mac_address" validate:"omitempty,mac"`
	AgentVersion    string  `json:"agent_version" validate:"max=20"`
}

// UpdateDeviceRequest changes device fields; omitted fields stay.
type UpdateDeviceRequest struct {
	DeviceName      *string `json:"device_name" validate:"omitempty,max=100"`
	DeviceType      *string `json:"device_type" validate:"omitempty,max=50"`
	OperatingSystem *string `json:"operating_system" validate:"omitempty,max=50"`
	IPAddress       *string `json:"ip_address" validate:"omitempty,ip"`
	MACAddress      *string `json:"mac_address" validate:"omitempty,mac"`
}

// StatusRequest carries a new device or security event status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// DeviceResponse is the public view of a device.
type DeviceResponse struct {
	ID              string    `json:"id"`
	DeviceName      string    `json:"device_name"`
	DeviceType      string    `json:"device_type"`
	OperatingSystem string    `json:"operating_system"`
	IPAddress       *string   `json:"ip_address"`
	MACAddress      *string   `json:"mac_address"`
	AgentVersion    string    `json:"agent_version"`
	LastSeen        time.Time `json:"last_seen"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// DeviceDetailResponse is a device with its latest events.
type DeviceDetailResponse struct {
	DeviceResponse
	RecentEvents []SecurityEventResponse `json:"recent_events"`
}

// ScanResponse reports a completed scan.
type ScanResponse struct {
	ScanID   string                 `json:"scan_id"`
	DeviceID string                 `json:"device_id"`
	ScanType string                 `json:"scan_type"`
	Results  domain.Findings        `json:"results"`
	Alert    *SecurityEventResponse `json:"alert"`
	ScanTime time.Time              `json:"scan_time"`
}

// SecurityEventResponse is the public view of a security event.
type SecurityEventResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	DeviceID      *string    `json:"device_id"`
	DeviceName    *string    `json:"device_name"`
	EventType     string     `json:"event_type"`
	Severity      string     `json:"severity"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	RuleTriggered *string    `json:"rule_triggered"`
	SourceIP      *string    `json:"source_ip"`
	DestinationIP *string    `json:"destination_ip"`
	FilePath      *string    `json:"file_path"`
	ProcessName   *string    `json:"process_name"`
	Status        string     `json:"status"`
	EmailSent     bool       `json:"email_sent"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at"`
}

// NewDeviceResponse maps a device.
func NewDeviceResponse(d *domain.Device) DeviceResponse {
	return DeviceResponse{
		ID:              d.ID,
		DeviceName:      d.DeviceName,
		DeviceType:      d.DeviceType,
		OperatingSystem: d.OperatingSystem,
		IPAddress:       d.IPAddress,
		MACAddress:      d.MACAddress,
		AgentVersion:    d.AgentVersion,
		LastSeen:        d.LastSeen,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt,
	}
}

// NewDeviceResponses maps a slice of devices.
func NewDeviceResponses(devices []domain.Device) []DeviceResponse {
	out := make([]DeviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, NewDeviceResponse(&devices[i]))
	}
	return out
}

// NewSecurityEventResponse maps a security event.
func NewSecurityEventResponse(ev *domain.SecurityEvent) SecurityEventResponse {
	return SecurityEventResponse{
		ID:            ev.ID,
		UserID:        ev.UserID,
		DeviceID:      ev.DeviceID,
		DeviceName:    ev.DeviceName,
		EventType:     ev.EventType,
		Severity:      string(ev.Severity),
		Title:         ev.Title,
		Description:   ev.Description,
		RuleTriggered: ev.RuleTriggered,
		SourceIP:      ev.SourceIP,
		DestinationIP: ev.DestinationIP,
		FilePath:      ev.FilePath,
		ProcessName:   ev.ProcessName,
		Status:        string(ev.Status),
		EmailSent:     ev.EmailSent,
		CreatedAt:     ev.CreatedAt,
		ResolvedAt:    ev.ResolvedAt,
	}
}

// NewSecurityEventResponses maps a slice of events.
func NewSecurityEventResponses(evs []domain.SecurityEvent) []SecurityEventResponse {
	out := make([]SecurityEventResponse, 0, len(evs))
	for i := range evs {
		out = append(out, NewSecurityEventResponse(&evs[i]))
	}
	return out
}

// NewScanResponse maps a scan and the alert it raised.
func NewScanResponse(s *domain.Scan, deviceID string, alert *domain.SecurityEvent) ScanResponse {
	resp := ScanResponse{
		ScanID:   s.ID,
		DeviceID: deviceID,
		ScanType: s.ScanType,
		Results:  s.Findings,
		ScanTime: s.CreatedAt,
	}
	if alert != nil {
		ev := NewSecurityEventResponse(alert)
		resp.Alert = &ev
	}
	return resp
}
