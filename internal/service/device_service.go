package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/entitlement"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/persistence"
	"github.com/spec-kit/shield-service/internal/repository"
	"github.com/spec-kit/shield-service/internal/scan"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

const recentDeviceEvents = 10

// DeviceService manages a user's devices and the quota-bound operations on
// them: registration and scanning.
type DeviceService struct {
	eventPublisher
	store            repository.Store
	scanner          scan.Scanner
	locker           persistence.Locker
	audit            *AuditLogger
	metrics          *observability.Metrics
	enforceScanQuota bool
}

// DeviceDependencies bundles collaborators for the device service.
type DeviceDependencies struct {
	Store            repository.Store
	Scanner          scan.Scanner
	Locker           persistence.Locker
	Audit            *AuditLogger
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Clock            Clock
	EnforceScanQuota bool
}

// DeviceInput describes a device registration.
type DeviceInput struct {
	DeviceName      string
	DeviceType      string
	OperatingSystem string
	IPAddress       *string
	MACAddress      *string
	AgentVersion    string
}

// DeviceUpdate carries optional field changes; nil fields are untouched.
type DeviceUpdate struct {
	DeviceName      *string
	DeviceType      *string
	OperatingSystem *string
	IPAddress       *string
	MACAddress      *string
}

// DeviceDetail is a device with its most recent security events.
type DeviceDetail struct {
	Device       *domain.Device
	RecentEvents []domain.SecurityEvent
}

// ScanResult reports a completed scan and the event it raised, if any.
type ScanResult struct {
	Scan   *domain.Scan
	Device *domain.Device
	Event  *domain.SecurityEvent
}

// NewDeviceService constructs the service.
func NewDeviceService(deps DeviceDependencies) *DeviceService {
	logger := loggerOrNop(deps.Logger)
	locker := deps.Locker
	if locker == nil {
		locker = persistence.NewNoopLocker()
	}
	scanner := deps.Scanner
	if scanner == nil {
		scanner = scan.NewSimulator()
	}
	return &DeviceService{
		eventPublisher:   eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: clockOrDefault(deps.Clock)},
		store:            deps.Store,
		scanner:          scanner,
		locker:           locker,
		audit:            deps.Audit,
		metrics:          deps.Metrics,
		enforceScanQuota: deps.EnforceScanQuota,
	}
}

// List returns the caller's devices.
func (s *DeviceService) List(ctx context.Context, userID string) ([]domain.Device, error) {
	devices, err := s.store.Devices().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return devices, nil
}

// Get returns one owned device and its latest events.
func (s *DeviceService) Get(ctx context.Context, userID, deviceID string) (*DeviceDetail, error) {
	device, err := s.owned(ctx, s.store, userID, deviceID)
	if err != nil {
		return nil, err
	}
	evs, _, err := s.store.SecurityEvents().List(ctx, repository.SecurityEventFilter{
		UserID:   &userID,
		DeviceID: &deviceID,
		Page:     repository.Page{Limit: recentDeviceEvents},
	})
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return &DeviceDetail{Device: device, RecentEvents: evs}, nil
}

// Summary counts the caller's devices by status, type and operating system.
func (s *DeviceService) Summary(ctx context.Context, userID string) (domain.DeviceSummary, error) {
	devices, err := s.List(ctx, userID)
	if err != nil {
		return domain.DeviceSummary{}, err
	}
	return domain.SummarizeDevices(devices), nil
}

// Add registers a device when the user's tier allows another one.
func (s *DeviceService) Add(ctx context.Context, userID string, in DeviceInput, meta domain.RequestMeta) (*domain.Device, error) {
	in.DeviceName = strings.TrimSpace(in.DeviceName)
	in.DeviceType = strings.TrimSpace(in.DeviceType)
	in.OperatingSystem = strings.TrimSpace(in.OperatingSystem)
	for _, f := range []struct{ name, value string }{
		{"device_name", in.DeviceName},
		{"device_type", in.DeviceType},
		{"operating_system", in.OperatingSystem},
	} {
		if f.value == "" {
			return nil, apperrors.NewValidationError(f.name+" is required", map[string]any{"field": f.name})
		}
	}
	if in.AgentVersion == "" {
		in.AgentVersion = domain.DefaultAgentVersion
	}

	release, err := s.lockQuota(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var device *domain.Device
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return apperrors.MapStoreError(err)
		}
		count, err := tx.Devices().CountByUser(ctx, userID)
		if err != nil {
			return apperrors.MapStoreError(err)
		}
		if err := entitlement.CanAddDevice(user.SubscriptionTier, count); err != nil {
			s.metrics.QuotaDenied("devices", string(user.SubscriptionTier))
			return err
		}
		if err := s.checkName(ctx, tx, userID, in.DeviceName, ""); err != nil {
			return err
		}

		device = &domain.Device{
			UserID:          userID,
			DeviceName:      in.DeviceName,
			DeviceType:      in.DeviceType,
			OperatingSystem: in.OperatingSystem,
			IPAddress:       in.IPAddress,
			MACAddress:      in.MACAddress,
			AgentVersion:    in.AgentVersion,
			Status:          domain.DeviceOnline,
		}
		if err := tx.Devices().Create(ctx, device); err != nil {
			return mapDeviceWriteError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionDeviceAdded,
		fmt.Sprintf("Added device: %s (%s)", device.DeviceName, device.DeviceType), meta)
	return device, nil
}

// Update changes device fields. Renaming onto another device's name fails;
// keeping the current name does not.
func (s *DeviceService) Update(ctx context.Context, userID, deviceID string, in DeviceUpdate, meta domain.RequestMeta) (*domain.Device, error) {
	var device *domain.Device
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		d, err := s.owned(ctx, tx, userID, deviceID)
		if err != nil {
			return err
		}
		if in.DeviceName != nil {
			name := strings.TrimSpace(*in.DeviceName)
			if name == "" {
				return apperrors.NewValidationError("device_name cannot be empty", map[string]any{"field": "device_name"})
			}
			if err := s.checkName(ctx, tx, userID, name, d.ID); err != nil {
				return err
			}
			d.DeviceName = name
		}
		assign(&d.DeviceType, in.DeviceType)
		assign(&d.OperatingSystem, in.OperatingSystem)
		if in.IPAddress != nil {
			d.IPAddress = optional(strings.TrimSpace(*in.IPAddress))
		}
		if in.MACAddress != nil {
			d.MACAddress = optional(strings.TrimSpace(*in.MACAddress))
		}
		d.LastSeen = s.now()
		if err := tx.Devices().Update(ctx, d); err != nil {
			return mapDeviceWriteError(err)
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionDeviceUpdated,
		fmt.Sprintf("Updated device: %s", device.DeviceName), meta)
	return device, nil
}

// Delete removes a device and, with it, the security events that reference
// it. Scan history is kept for quota accounting.
func (s *DeviceService) Delete(ctx context.Context, userID, deviceID string, meta domain.RequestMeta) error {
	var name string
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		d, err := s.owned(ctx, tx, userID, deviceID)
		if err != nil {
			return err
		}
		name = d.DeviceName
		if err := tx.Devices().Delete(ctx, userID, deviceID); err != nil {
			return apperrors.MapStoreError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionDeviceDeleted, fmt.Sprintf("Deleted device: %s", name), meta)
	return nil
}

// UpdateStatus sets the device status. Entering compromised from any other
// state records exactly one critical event.
func (s *DeviceService) UpdateStatus(ctx context.Context, userID, deviceID, rawStatus string, meta domain.RequestMeta) (*domain.Device, error) {
	if strings.TrimSpace(rawStatus) == "" {
		return nil, apperrors.NewValidationError("status is required", map[string]any{"field": "status"})
	}
	status, err := domain.ParseDeviceStatus(rawStatus)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  rawStatus,
			"allowed": []domain.DeviceStatus{domain.DeviceOnline, domain.DeviceOffline, domain.DeviceCompromised},
		})
	}

	var (
		device    *domain.Device
		oldStatus domain.DeviceStatus
		raised    *domain.SecurityEvent
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		d, err := s.owned(ctx, tx, userID, deviceID)
		if err != nil {
			return err
		}
		oldStatus = d.Status
		d.Status = status
		d.LastSeen = s.now()

		if domain.EntersCompromised(oldStatus, status) {
			raised = domain.NewCompromiseEvent(d)
			if err := tx.SecurityEvents().Create(ctx, raised); err != nil {
				return apperrors.MapStoreError(err)
			}
		}
		if err := tx.Devices().Update(ctx, d); err != nil {
			return apperrors.MapStoreError(err)
		}
		device = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionDeviceStatusUpdated,
		fmt.Sprintf("Updated device %s status from %s to %s", device.DeviceName, oldStatus, status), meta)
	s.announce(ctx, raised, device)
	return device, nil
}

// RunScan scans an owned device within the monthly scan allowance, records
// the scan and raises an event for critical or high findings.
func (s *DeviceService) RunScan(ctx context.Context, userID, deviceID string, meta domain.RequestMeta) (*ScanResult, error) {
	release, err := s.lockQuota(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var result *ScanResult
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return apperrors.MapStoreError(err)
		}
		device, err := s.owned(ctx, tx, userID, deviceID)
		if err != nil {
			return err
		}
		if s.enforceScanQuota {
			used, err := tx.Scans().CountByUserSince(ctx, userID, startOfMonth(s.now()))
			if err != nil {
				return apperrors.MapStoreError(err)
			}
			if err := entitlement.CanRunScan(user.SubscriptionTier, used); err != nil {
				s.metrics.QuotaDenied("scans", string(user.SubscriptionTier))
				return err
			}
		}

		findings, err := s.scanner.Scan(ctx, device)
		if err != nil {
			return apperrors.NewInternalError(fmt.Errorf("scan device %s: %w", deviceID, err))
		}
		record := &domain.Scan{
			UserID:   userID,
			DeviceID: &device.ID,
			ScanType: domain.ScanTypeVulnerability,
			Findings: findings,
		}
		if err := tx.Scans().Create(ctx, record); err != nil {
			return apperrors.MapStoreError(err)
		}

		alert := scan.AlertFor(device, findings)
		if alert != nil {
			if err := tx.SecurityEvents().Create(ctx, alert); err != nil {
				return apperrors.MapStoreError(err)
			}
		}

		device.LastSeen = s.now()
		if err := tx.Devices().Update(ctx, device); err != nil {
			return apperrors.MapStoreError(err)
		}
		result = &ScanResult{Scan: record, Device: device, Event: alert}
		return nil
	})
	if err != nil {
		return nil, err
	}

	alertLabel := "none"
	if result.Event != nil {
		alertLabel = string(result.Event.Severity)
	}
	s.metrics.ScanCompleted(alertLabel)
	s.audit.RecordFor(ctx, userID, domain.ActionDeviceScanInitiated,
		fmt.Sprintf("Initiated security scan for device: %s", result.Device.DeviceName), meta)
	s.announce(ctx, result.Event, result.Device)
	return result, nil
}

// announce publishes a committed security event for notification.
func (s *DeviceService) announce(ctx context.Context, ev *domain.SecurityEvent, device *domain.Device) {
	if ev == nil {
		return
	}
	s.metrics.SecurityEventRecorded(ev.EventType, string(ev.Severity))
	var name *string
	if device != nil {
		name = &device.DeviceName
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventSecurityEventCreated,
		UserID:  ev.UserID,
		Payload: events.NewSecurityEventPayload(ev, name),
	})
}

func (s *DeviceService) lockQuota(ctx context.Context, userID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, "quota:user:"+userID)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("acquire quota lock: %w", err))
	}
	return release, nil
}

func (s *DeviceService) owned(ctx context.Context, store repository.Store, userID, deviceID string) (*domain.Device, error) {
	device, err := store.Devices().GetForUser(ctx, userID, deviceID)
	if err != nil {
		if apperrors.Is(apperrors.MapError(err), apperrors.CodeNotFound) {
			return nil, apperrors.NewNotFound("device", map[string]any{"device_id": deviceID})
		}
		return nil, apperrors.MapStoreError(err)
	}
	return device, nil
}

func (s *DeviceService) checkName(ctx context.Context, store repository.Store, userID, name, excludeID string) error {
	taken, err := store.Devices().NameTaken(ctx, userID, name, excludeID)
	if err != nil {
		return apperrors.MapStoreError(err)
	}
	if taken {
		return errDuplicateDevice(name)
	}
	return nil
}

func errDuplicateDevice(name string) error {
	return apperrors.NewConflict("device with this name already exists", map[string]any{"device_name": name})
}

// mapDeviceWriteError turns the unique-name constraint into the same
// conflict the pre-check reports.
func mapDeviceWriteError(err error) error {
	mapped := apperrors.MapStoreError(err)
	if apperrors.Is(mapped, apperrors.CodeConflict) {
		return apperrors.NewConflict("device with this name already exists", nil)
	}
	return mapped
}
