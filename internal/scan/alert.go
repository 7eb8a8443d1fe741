package scan

import (
	"fmt"

	"github.com/spec-kit/shield-service/internal/domain"
)

// AlertFor builds the security event a scan of device must emit, or nil when
// the findings contain nothing critical or high.
func AlertFor(device *domain.Device, f domain.Findings) *domain.SecurityEvent {
	severity, ok := f.AlertSeverity()
	if !ok {
		return nil
	}

	var title string
	if severity == domain.SeverityCritical {
		title = fmt.Sprintf("Critical vulnerabilities found on %s", device.DeviceName)
	} else {
		title = fmt.Sprintf("High severity vulnerabilities found on %s", device.DeviceName)
	}

	rule := domain.RuleVulnerabilityAlert
	deviceID := device.ID
	return &domain.SecurityEvent{
		UserID:        device.UserID,
		DeviceID:      &deviceID,
		EventType:     domain.EventTypeVulnerabilityDetected,
		Severity:      severity,
		Title:         title,
		Description:   fmt.Sprintf("Vulnerability scan detected %d critical and %d high severity issues", f.Critical, f.High),
		RuleTriggered: &rule,
		Status:        domain.EventOpen,
	}
}
