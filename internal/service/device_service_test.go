package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/scan"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

func TestAddDeviceRespectsTierLimit(t *testing.T) {
	cases := []struct {
		tier  domain.Tier
		limit int
	}{
		{domain.TierFree, 1},
		{domain.TierPersonal, 3},
		{domain.TierPro, 25},
	}
	for _, tc := range cases {
		t.Run(string(tc.tier), func(t *testing.T) {
			h := newHarness(t)
			user := h.register(t, "owner")
			h.setTier(t, user.ID, tc.tier)

			for i := 0; i < tc.limit; i++ {
				h.addDevice(t, user.ID, fmt.Sprintf("device-%d", i))
			}
			_, err := h.devices.Add(h.ctx, user.ID, DeviceInput{
				DeviceName: "one-too-many", DeviceType: "laptop", OperatingSystem: "linux",
			}, domain.RequestMeta{})
			requireCode(t, err, apperrors.CodeQuotaExceeded)

			devices, err := h.devices.List(h.ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, devices, tc.limit)
		})
	}
}

func TestAddDeviceEnterpriseIsUnlimited(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "corp")
	h.setTier(t, user.ID, domain.TierEnterprise)
	for i := 0; i < 30; i++ {
		h.addDevice(t, user.ID, fmt.Sprintf("node-%02d", i))
	}
	summary, err := h.devices.Summary(h.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 30, summary.TotalDevices)
	require.Equal(t, 30, summary.OnlineDevices)
	require.Equal(t, 30, summary.DeviceTypes["laptop"])
}

func TestAddDeviceDefaultsAndValidation(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")

	_, err := h.devices.Add(h.ctx, user.ID, DeviceInput{DeviceName: "x", OperatingSystem: "linux"}, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	require.Equal(t, "device_type", apperrors.ToDomainError(err).Details["field"])

	device := h.addDevice(t, user.ID, "  workstation ")
	require.Equal(t, "workstation", device.DeviceName)
	require.Equal(t, domain.DefaultAgentVersion, device.AgentVersion)
	require.Equal(t, domain.DeviceOnline, device.Status)
	require.Contains(t, h.auditActions(t), domain.ActionDeviceAdded)
}

func TestDeviceNamesAreUniquePerUser(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	h.setTier(t, alice.ID, domain.TierPersonal)

	first := h.addDevice(t, alice.ID, "laptop")
	second := h.addDevice(t, alice.ID, "desktop")
	h.addDevice(t, bob.ID, "laptop")

	_, err := h.devices.Add(h.ctx, alice.ID, DeviceInput{
		DeviceName: "laptop", DeviceType: "laptop", OperatingSystem: "linux",
	}, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeConflict)

	sameName := "laptop"
	updated, err := h.devices.Update(h.ctx, alice.ID, first.ID, DeviceUpdate{DeviceName: &sameName}, domain.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "laptop", updated.DeviceName)

	_, err = h.devices.Update(h.ctx, alice.ID, second.ID, DeviceUpdate{DeviceName: &sameName}, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeConflict)
}

func TestDevicesAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice")
	bob := h.register(t, "bob")
	device := h.addDevice(t, alice.ID, "laptop")

	_, err := h.devices.Get(h.ctx, bob.ID, device.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	err = h.devices.Delete(h.ctx, bob.ID, device.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.devices.RunScan(h.ctx, bob.ID, device.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestCompromisedTransitionRaisesOneEvent(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")

	_, err := h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)

	evs := h.userEvents(t, user.ID)
	require.Len(t, evs, 1)
	require.Equal(t, domain.SeverityCritical, evs[0].Severity)
	require.Equal(t, domain.EventTypeDeviceCompromised, evs[0].EventType)
	require.True(t, evs[0].EmailSent)
	require.Len(t, h.eventsOf(events.EventSecurityEventCreated), 1)

	alerts := 0
	for _, m := range h.mailer.messages() {
		if m.To == user.Email && m.Subject != "Welcome to Shield" {
			alerts++
		}
	}
	require.Equal(t, 1, alerts)

	_, err = h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "online", domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, h.userEvents(t, user.ID), 2)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")

	_, err := h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "melted", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
	_, err = h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "", domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeValidation)
}

func TestRunScanRaisesAlertByFindings(t *testing.T) {
	cases := []struct {
		name     string
		findings domain.Findings
		severity domain.Severity
	}{
		{"clean", domain.Findings{Medium: 3, Low: 7, Info: 2}, ""},
		{"critical", domain.Findings{Critical: 1, High: 2}, domain.SeverityCritical},
		{"high", domain.Findings{High: 1, Medium: 4}, domain.SeverityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, withScanner(scan.Static(tc.findings)))
			user := h.register(t, "alice")
			device := h.addDevice(t, user.ID, "laptop")

			result, err := h.devices.RunScan(h.ctx, user.ID, device.ID, domain.RequestMeta{})
			require.NoError(t, err)
			require.Equal(t, tc.findings, result.Scan.Findings)

			evs := h.userEvents(t, user.ID)
			if tc.severity == "" {
				require.Nil(t, result.Event)
				require.Empty(t, evs)
				return
			}
			require.NotNil(t, result.Event)
			require.Len(t, evs, 1)
			require.Equal(t, tc.severity, evs[0].Severity)
			require.Equal(t, domain.EventTypeVulnerabilityDetected, evs[0].EventType)
			require.Equal(t, device.ID, *evs[0].DeviceID)
		})
	}
}

func TestRunScanQuotaResetsMonthly(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")

	_, err := h.devices.RunScan(h.ctx, user.ID, device.ID, domain.RequestMeta{})
	require.NoError(t, err)
	_, err = h.devices.RunScan(h.ctx, user.ID, device.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeQuotaExceeded)

	h.clock.Advance(31 * 24 * time.Hour)
	_, err = h.devices.RunScan(h.ctx, user.ID, device.ID, domain.RequestMeta{})
	require.NoError(t, err)
}

func TestDeletedDeviceScansStillCount(t *testing.T) {
	h := newHarness(t, withScanner(scan.Static(domain.Findings{Critical: 2})))
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")

	_, err := h.devices.RunScan(h.ctx, user.ID, device.ID, domain.RequestMeta{})
	require.NoError(t, err)
	require.Len(t, h.userEvents(t, user.ID), 1)

	require.NoError(t, h.devices.Delete(h.ctx, user.ID, device.ID, domain.RequestMeta{}))
	require.Empty(t, h.userEvents(t, user.ID))

	replacement := h.addDevice(t, user.ID, "laptop")
	_, err = h.devices.RunScan(h.ctx, user.ID, replacement.ID, domain.RequestMeta{})
	requireCode(t, err, apperrors.CodeQuotaExceeded)

	usage, err := h.subscriptions.Usage(h.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, usage.Devices.Current)
	require.Equal(t, 1, usage.ScansThisMonth.Current)
}

func TestDeviceDetailIncludesRecentEvents(t *testing.T) {
	h := newHarness(t)
	user := h.register(t, "alice")
	device := h.addDevice(t, user.ID, "laptop")
	_, err := h.devices.UpdateStatus(h.ctx, user.ID, device.ID, "compromised", domain.RequestMeta{})
	require.NoError(t, err)

	detail, err := h.devices.Get(h.ctx, user.ID, device.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeviceCompromised, detail.Device.Status)
	require.Len(t, detail.RecentEvents, 1)
	require.Equal(t, "laptop", *detail.RecentEvents[0].DeviceName)
}
