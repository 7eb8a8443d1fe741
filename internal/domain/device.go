package domain

import (
	"fmt"
	"time"
)

// DeviceStatus is the reported health of a monitored device.
type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceCompromised DeviceStatus = "compromised"
)

// ParseDeviceStatus validates a raw device status.
func ParseDeviceStatus(raw string) (DeviceStatus, error) {
	switch s := DeviceStatus(raw); s {
	case DeviceOnline, DeviceOffline, DeviceCompromised:
		return s, nil
	}
	return "", fmt.Errorf("invalid device status %q", raw)
}

// DefaultAgentVersion is assigned when a device registers without one.
const DefaultAgentVersion = "1.0.0"

// Device is a monitored endpoint owned by a single user.
type Device struct {
	ID              string
	UserID          string
	DeviceName      string
	DeviceType      string
	OperatingSystem string
	IPAddress       *string
	MACAddress      *string
	AgentVersion    string
	LastSeen        time.Time
	Status          DeviceStatus
	CreatedAt       time.Time
}

// EntersCompromised reports whether moving from old to next is a transition
// into the compromised state. compromised -> compromised is not.
func EntersCompromised(old, next DeviceStatus) bool {
	return next == DeviceCompromised && old != DeviceCompromised
}

// DeviceSummary aggregates a user's fleet.
type DeviceSummary struct {
	TotalDevices       int            `json:"total_devices"`
	OnlineDevices      int            `json:"online_devices"`
	OfflineDevices     int            `json:"offline_devices"`
	CompromisedDevices int            `json:"compromised_devices"`
	DeviceTypes        map[string]int `json:"device_types"`
	OperatingSystems   map[string]int `json:"operating_systems"`
}

// SummarizeDevices counts devices by status, type and operating system.
func SummarizeDevices(devices []Device) DeviceSummary {
	summary := DeviceSummary{
		TotalDevices:     len(devices),
		DeviceTypes:      map[string]int{},
		OperatingSystems: map[string]int{},
	}
	for _, d := range devices {
		switch d.Status {
		case DeviceOnline:
			summary.OnlineDevices++
		case DeviceOffline:
			summary.OfflineDevices++
		case DeviceCompromised:
			summary.CompromisedDevices++
		}
		summary.DeviceTypes[d.DeviceType]++
		summary.OperatingSystems[d.OperatingSystem]++
	}
	return summary
}
