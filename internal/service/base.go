package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/repository"
)

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// eventPublisher fills event metadata and hands events to the dispatcher.
// Publication happens after commit and never fails the operation.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

func (p eventPublisher) publishEvent(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish event failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// AuditLogger appends activity log entries. Writes happen outside the
// caller's transaction and failures are only logged.
type AuditLogger struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAuditLogger builds an audit logger writing through store.
func NewAuditLogger(store repository.Store, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{store: store, logger: loggerOrNop(logger)}
}

// Record writes one entry. userID is nil for anonymous actions.
func (a *AuditLogger) Record(ctx context.Context, userID *string, action, description string, meta domain.RequestMeta) {
	if a == nil {
		return
	}
	entry := &domain.ActivityLog{
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   optional(meta.IP),
		UserAgent:   optional(meta.UserAgent),
	}
	if err := a.store.ActivityLogs().Create(ctx, entry); err != nil {
		a.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

// RecordFor is Record for a known user.
func (a *AuditLogger) RecordFor(ctx context.Context, userID, action, description string, meta domain.RequestMeta) {
	a.Record(ctx, &userID, action, description, meta)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// startOfMonth returns midnight UTC on the first day of t's month.
func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

const maxPerPage = 100

// PageRequest selects a 1-based page of PerPage items.
type PageRequest struct {
	Page    int
	PerPage int
}

func (p PageRequest) normalize(defaultPerPage int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (p PageRequest) window() repository.Page {
	return repository.Page{Limit: p.PerPage, Offset: (p.Page - 1) * p.PerPage}
}

// PageInfo describes the page returned by a listing.
type PageInfo struct {
	Total       int
	Pages       int
	CurrentPage int
	PerPage     int
}

func newPageInfo(p PageRequest, total int) PageInfo {
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return PageInfo{Total: total, Pages: pages, CurrentPage: p.Page, PerPage: p.PerPage}
}
