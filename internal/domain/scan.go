package domain

import "time"

// Findings counts vulnerabilities by severity band.
type Findings struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// AlertSeverity returns the severity of the event a scan must emit, if any:
// critical when any critical finding exists, else high when any high finding
// exists, else none.
func (f Findings) AlertSeverity() (Severity, bool) {
	switch {
	case f.Critical > 0:
		return SeverityCritical, true
	case f.High > 0:
		return SeverityHigh, true
	default:
		return "", false
	}
}

// Scan is the persisted record of a completed device scan. DeviceID is
// cleared when the device is deleted so the scan still counts against quota.
type Scan struct {
	ID        string
	UserID    string
	DeviceID  *string
	ScanType  string
	Findings  Findings
	CreatedAt time.Time
}

// ScanTypeVulnerability is the only scan type offered.
const ScanTypeVulnerability = "vulnerability_scan"
