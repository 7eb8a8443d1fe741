package domain

import (
	"fmt"
	"time"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a raw severity.
func ParseSeverity(raw string) (Severity, error) {
	switch s := Severity(raw); s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s, nil
	}
	return "", fmt.Errorf("invalid severity %q", raw)
}

// EventStatus is the triage state of a security event.
type EventStatus string

const (
	EventOpen          EventStatus = "open"
	EventInvestigating EventStatus = "investigating"
	EventResolved      EventStatus = "resolved"
	EventFalsePositive EventStatus = "false_positive"
)

// ParseEventStatus validates a raw event status.
func ParseEventStatus(raw string) (EventStatus, error) {
	switch s := EventStatus(raw); s {
	case EventOpen, EventInvestigating, EventResolved, EventFalsePositive:
		return s, nil
	}
	return "", fmt.Errorf("invalid event status %q", raw)
}

// Closed reports whether the status ends triage.
func (s EventStatus) Closed() bool {
	return s == EventResolved || s == EventFalsePositive
}

// Event types and rules emitted by the platform itself.
const (
	EventTypeDeviceCompromised     = "device_compromised"
	EventTypeVulnerabilityDetected = "vulnerability_detected"

	RuleDeviceCompromise   = "device_compromise_alert"
	RuleVulnerabilityAlert = "vulnerability_scan_alert"
)

// SecurityEvent is a recorded finding tied to a user and optionally a device.
type SecurityEvent struct {
	ID            string
	UserID        string
	DeviceID      *string
	EventType     string
	Severity      Severity
	Title         string
	Description   string
	RuleTriggered *string
	SourceIP      *string
	DestinationIP *string
	FilePath      *string
	ProcessName   *string
	Status        EventStatus
	EmailSent     bool
	CreatedAt     time.Time
	ResolvedAt    *time.Time

	// DeviceName is populated on reads when the device still exists.
	DeviceName *string
}

// NewCompromiseEvent builds the critical event emitted when a device enters
// the compromised state.
func NewCompromiseEvent(device *Device) *SecurityEvent {
	rule := RuleDeviceCompromise
	deviceID := device.ID
	return &SecurityEvent{
		UserID:        device.UserID,
		DeviceID:      &deviceID,
		EventType:     EventTypeDeviceCompromised,
		Severity:      SeverityCritical,
		Title:         fmt.Sprintf("Device %s marked as compromised", device.DeviceName),
		Description:   fmt.Sprintf("Device %s has been marked as compromised and requires immediate attention", device.DeviceName),
		RuleTriggered: &rule,
		Status:        EventOpen,
	}
}
