package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/billing"
	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

const (
	defaultUsersPerPage = 10
	defaultLogsPerPage  = 50
	recentWindow        = 7 * 24 * time.Hour
	detailListLimit     = 10
)

// AdminService backs the administrator console.
type AdminService struct {
	eventPublisher
	store   repository.Store
	audit   *AuditLogger
	metrics *observability.Metrics
}

// AdminDependencies bundles collaborators for the admin service.
type AdminDependencies struct {
	Store      repository.Store
	Audit      *AuditLogger
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// DashboardStats summarises the installation.
type DashboardStats struct {
	TotalUsers        int
	ActiveUsers       int
	TotalDevices      int
	OnlineDevices     int
	SubscriptionStats map[domain.Tier]int
	MonthlyRevenue    int
	RecentEvents      int
	CriticalEvents    int
	NewUsersThisMonth int
}

// UserDetails is a user with their devices and latest activity.
type UserDetails struct {
	User         *domain.User
	Devices      []domain.Device
	Events       []domain.SecurityEvent
	ActivityLogs []domain.ActivityLog
}

// UserQuery filters the user listing by a substring of username, email or
// company name.
type UserQuery struct {
	Search string
	PageRequest
}

// LogQuery filters the activity log.
type LogQuery struct {
	UserID string
	Action string
	PageRequest
}

// SecurityEventInput is a manually recorded event.
type SecurityEventInput struct {
	UserID        string
	DeviceID      *string
	EventType     string
	Severity      string
	Title         string
	Description   string
	RuleTriggered *string
	SourceIP      *string
	DestinationIP *string
	FilePath      *string
	ProcessName   *string
}

// NewAdminService constructs the service.
func NewAdminService(deps AdminDependencies) *AdminService {
	logger := loggerOrNop(deps.Logger)
	return &AdminService{
		eventPublisher: eventPublisher{dispatcher: deps.Dispatcher, logger: logger, now: clockOrDefault(deps.Clock)},
		store:          deps.Store,
		audit:          deps.Audit,
		metrics:        deps.Metrics,
	}
}

// DashboardStats aggregates users, devices, revenue and recent events.
func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := s.now()
	users, err := s.store.Users().Stats(ctx, startOfMonth(now))
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	devices, err := s.store.Devices().Stats(ctx)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	evs, err := s.store.SecurityEvents().Stats(ctx, now.Add(-recentWindow))
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	byTier := users.ByTier
	if byTier == nil {
		byTier = map[domain.Tier]int{}
	}
	return &DashboardStats{
		TotalUsers:        users.Total,
		ActiveUsers:       users.Active,
		TotalDevices:      devices.Total,
		OnlineDevices:     devices.Online,
		SubscriptionStats: byTier,
		MonthlyRevenue:    billing.MonthlyRevenue(byTier),
		RecentEvents:      evs.RecentSince,
		CriticalEvents:    evs.OpenCritical,
		NewUsersThisMonth: users.NewSince,
	}, nil
}

// ListUsers pages through users, newest first.
func (s *AdminService) ListUsers(ctx context.Context, q UserQuery) ([]domain.User, PageInfo, error) {
	page := q.PageRequest.normalize(defaultUsersPerPage)
	users, total, err := s.store.Users().List(ctx, repository.UserFilter{
		Search: strings.TrimSpace(q.Search),
		Page:   page.window(),
	})
	if err != nil {
		return nil, PageInfo{}, apperrors.MapStoreError(err)
	}
	return users, newPageInfo(page, total), nil
}

// UserDetails returns a user with devices, last events and last activity.
func (s *AdminService) UserDetails(ctx context.Context, userID string) (*UserDetails, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundAs(err, "user", userID)
	}
	devices, err := s.store.Devices().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	evs, _, err := s.store.SecurityEvents().List(ctx, repository.SecurityEventFilter{
		UserID: &userID,
		Page:   repository.Page{Limit: detailListLimit},
	})
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	logs, _, err := s.store.ActivityLogs().List(ctx, repository.ActivityLogFilter{
		UserID: &userID,
		Page:   repository.Page{Limit: detailListLimit},
	})
	if err != nil {
		return nil, apperrors.MapStoreError(err)
	}
	return &UserDetails{User: user, Devices: devices, Events: evs, ActivityLogs: logs}, nil
}

// ToggleUserStatus flips is_active. Administrators cannot be deactivated.
func (s *AdminService) ToggleUserStatus(ctx context.Context, actorID, userID string, meta domain.RequestMeta) (*domain.User, error) {
	var user *domain.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		u, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, "user", userID)
		}
		if u.IsAdmin {
			return apperrors.NewValidationError("cannot deactivate admin users", map[string]any{"user_id": userID})
		}
		u.IsActive = !u.IsActive
		if err := tx.Users().Update(ctx, u); err != nil {
			return apperrors.MapStoreError(err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	action, verb := domain.ActionAdminUserDeactivated, "deactivated"
	if user.IsActive {
		action, verb = domain.ActionAdminUserActivated, "activated"
	}
	s.audit.RecordFor(ctx, actorID, action, fmt.Sprintf("Admin %s user %s", verb, user.Username), meta)
	return user, nil
}

// ListSecurityEvents pages through every user's events.
func (s *AdminService) ListSecurityEvents(ctx context.Context, q EventQuery) ([]domain.SecurityEvent, PageInfo, error) {
	return listEvents(ctx, s.store, nil, q)
}

// CreateSecurityEvent records an event by hand. A referenced device must
// belong to the target user.
func (s *AdminService) CreateSecurityEvent(ctx context.Context, actorID string, in SecurityEventInput, meta domain.RequestMeta) (*domain.SecurityEvent, error) {
	for _, f := range []struct{ name, value string }{
		{"user_id", in.UserID},
		{"event_type", in.EventType},
		{"severity", in.Severity},
		{"title", in.Title},
		{"description", in.Description},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, apperrors.NewValidationError(f.name+" is required", map[string]any{"field": f.name})
		}
	}
	severity, err := domain.ParseSeverity(in.Severity)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid severity", map[string]any{"severity": in.Severity})
	}

	var (
		event      *domain.SecurityEvent
		deviceName *string
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, in.UserID); err != nil {
			return notFoundAs(err, "user", in.UserID)
		}
		if in.DeviceID != nil && *in.DeviceID != "" {
			device, err := tx.Devices().GetByID(ctx, *in.DeviceID)
			if err != nil && !apperrors.Is(apperrors.MapError(err), apperrors.CodeNotFound) {
				return apperrors.MapStoreError(err)
			}
			if device == nil || device.UserID != in.UserID {
				return apperrors.NewValidationError("invalid device", map[string]any{"device_id": *in.DeviceID})
			}
			deviceName = &device.DeviceName
		} else {
			in.DeviceID = nil
		}

		event = &domain.SecurityEvent{
			UserID:        in.UserID,
			DeviceID:      in.DeviceID,
			EventType:     strings.TrimSpace(in.EventType),
			Severity:      severity,
			Title:         strings.TrimSpace(in.Title),
			Description:   strings.TrimSpace(in.Description),
			RuleTriggered: in.RuleTriggered,
			SourceIP:      in.SourceIP,
			DestinationIP: in.DestinationIP,
			FilePath:      in.FilePath,
			ProcessName:   in.ProcessName,
			Status:        domain.EventOpen,
		}
		if err := tx.SecurityEvents().Create(ctx, event); err != nil {
			return apperrors.MapStoreError(err)
		}
		event.DeviceName = deviceName
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, actorID, domain.ActionAdminSecurityEvent,
		fmt.Sprintf("Admin created security event: %s", event.Title), meta)
	s.metrics.SecurityEventRecorded(event.EventType, string(event.Severity))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventSecurityEventCreated,
		UserID:  event.UserID,
		Payload: events.NewSecurityEventPayload(event, deviceName),
	})
	return event, nil
}

// ListActivityLogs pages through the audit trail.
func (s *AdminService) ListActivityLogs(ctx context.Context, q LogQuery) ([]domain.ActivityLog, PageInfo, error) {
	page := q.PageRequest.normalize(defaultLogsPerPage)
	filter := repository.ActivityLogFilter{
		Action: strings.TrimSpace(q.Action),
		Page:   page.window(),
	}
	if q.UserID != "" {
		filter.UserID = &q.UserID
	}
	logs, total, err := s.store.ActivityLogs().List(ctx, filter)
	if err != nil {
		return nil, PageInfo{}, apperrors.MapStoreError(err)
	}
	return logs, newPageInfo(page, total), nil
}
