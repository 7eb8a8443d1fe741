package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

const defaultEventsPerPage = 20

// SecurityEventService exposes a user's security events and their triage.
type SecurityEventService struct {
	store  repository.Store
	audit  *AuditLogger
	logger *zap.Logger
	now    Clock
}

// SecurityEventDependencies bundles collaborators for the service.
type SecurityEventDependencies struct {
	Store  repository.Store
	Audit  *AuditLogger
	Logger *zap.Logger
	Clock  Clock
}

// EventQuery filters event listings. Empty strings match everything.
type EventQuery struct {
	Severity string
	Status   string
	PageRequest
}

// NewSecurityEventService constructs the service.
func NewSecurityEventService(deps SecurityEventDependencies) *SecurityEventService {
	return &SecurityEventService{
		store:  deps.Store,
		audit:  deps.Audit,
		logger: loggerOrNop(deps.Logger),
		now:    clockOrDefault(deps.Clock),
	}
}

// List returns the caller's events, newest first.
func (s *SecurityEventService) List(ctx context.Context, userID string, q EventQuery) ([]domain.SecurityEvent, PageInfo, error) {
	return listEvents(ctx, s.store, &userID, q)
}

// UpdateStatus moves one of the caller's events to status. Resolving or
// dismissing stamps resolved_at; reopening clears it.
func (s *SecurityEventService) UpdateStatus(ctx context.Context, userID, eventID, rawStatus string, meta domain.RequestMeta) (*domain.SecurityEvent, error) {
	status, err := domain.ParseEventStatus(strings.TrimSpace(rawStatus))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status": rawStatus,
			"allowed": []domain.EventStatus{
				domain.EventOpen, domain.EventInvestigating, domain.EventResolved, domain.EventFalsePositive,
			},
		})
	}

	var event *domain.SecurityEvent
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		ev, err := tx.SecurityEvents().GetByID(ctx, eventID)
		if err != nil {
			return notFoundAs(err, "security event", eventID)
		}
		if ev.UserID != userID {
			return apperrors.NewNotFound("security event", map[string]any{"id": eventID})
		}
		ev.Status = status
		if status.Closed() {
			at := s.now()
			ev.ResolvedAt = &at
		} else {
			ev.ResolvedAt = nil
		}
		if err := tx.SecurityEvents().UpdateStatus(ctx, ev); err != nil {
			return apperrors.MapStoreError(err)
		}
		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.RecordFor(ctx, userID, domain.ActionSecurityEventUpdated,
		fmt.Sprintf("Updated security event %q status to %s", event.Title, status), meta)
	return event, nil
}

func listEvents(ctx context.Context, store repository.Store, userID *string, q EventQuery) ([]domain.SecurityEvent, PageInfo, error) {
	page := q.PageRequest.normalize(defaultEventsPerPage)
	filter := repository.SecurityEventFilter{UserID: userID, Page: page.window()}

	if q.Severity != "" {
		sev, err := domain.ParseSeverity(q.Severity)
		if err != nil {
			return nil, PageInfo{}, apperrors.NewValidationError("invalid severity", map[string]any{"severity": q.Severity})
		}
		filter.Severity = &sev
	}
	if q.Status != "" {
		st, err := domain.ParseEventStatus(q.Status)
		if err != nil {
			return nil, PageInfo{}, apperrors.NewValidationError("invalid status", map[string]any{"status": q.Status})
		}
		filter.Status = &st
	}

	evs, total, err := store.SecurityEvents().List(ctx, filter)
	if err != nil {
		return nil, PageInfo{}, apperrors.MapStoreError(err)
	}
	return evs, newPageInfo(page, total), nil
}
