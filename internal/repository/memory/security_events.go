package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
)

type securityEvents struct{ s *Store }

func withDeviceName(d *data, ev domain.SecurityEvent) domain.SecurityEvent {
	ev.DeviceName = nil
	if ev.DeviceID == nil {
		return ev
	}
	for _, dev := range d.devices {
		if dev.ID == *ev.DeviceID {
			name := dev.DeviceName
			ev.DeviceName = &name
			break
		}
	}
	return ev
}

func (r *securityEvents) Create(_ context.Context, event *domain.SecurityEvent) error {
	return r.s.do(func(d *data) error {
		if !userExists(d, event.UserID) {
			return foreignKeyViolation("security_events_user_id_fkey")
		}
		if event.DeviceID != nil {
			found := false
			for _, dev := range d.devices {
				if dev.ID == *event.DeviceID {
					found = true
					break
				}
			}
			if !found {
				return foreignKeyViolation("security_events_device_id_fkey")
			}
		}
		event.ID = uuid.NewString()
		event.CreatedAt = r.s.now()
		stored := *event
		stored.DeviceName = nil
		d.events = append(d.events, stored)
		return nil
	})
}

func (r *securityEvents) GetByID(_ context.Context, id string) (*domain.SecurityEvent, error) {
	var found *domain.SecurityEvent
	err := r.s.do(func(d *data) error {
		for _, ev := range d.events {
			if ev.ID == id {
				ev = withDeviceName(d, ev)
				found = &ev
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return found, err
}

func (r *securityEvents) update(id string, apply func(*domain.SecurityEvent)) error {
	return r.s.do(func(d *data) error {
		for i := range d.events {
			if d.events[i].ID == id {
				apply(&d.events[i])
				return nil
			}
		}
		return pgx.ErrNoRows
	})
}

func (r *securityEvents) UpdateStatus(_ context.Context, event *domain.SecurityEvent) error {
	return r.update(event.ID, func(stored *domain.SecurityEvent) {
		stored.Status = event.Status
		stored.ResolvedAt = event.ResolvedAt
	})
}

func (r *securityEvents) MarkEmailSent(_ context.Context, id string) error {
	return r.update(id, func(stored *domain.SecurityEvent) {
		stored.EmailSent = true
	})
}

func (r *securityEvents) List(_ context.Context, filter repository.SecurityEventFilter) ([]domain.SecurityEvent, int, error) {
	var matched []domain.SecurityEvent
	err := r.s.do(func(d *data) error {
		for i := len(d.events) - 1; i >= 0; i-- {
			ev := d.events[i]
			if filter.UserID != nil && ev.UserID != *filter.UserID {
				continue
			}
			if filter.DeviceID != nil && (ev.DeviceID == nil || *ev.DeviceID != *filter.DeviceID) {
				continue
			}
			if filter.Severity != nil && ev.Severity != *filter.Severity {
				continue
			}
			if filter.Status != nil && ev.Status != *filter.Status {
				continue
			}
			matched = append(matched, withDeviceName(d, ev))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	start, end := page(filter.Page, 20, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *securityEvents) Stats(_ context.Context, since time.Time) (repository.SecurityEventStats, error) {
	var stats repository.SecurityEventStats
	err := r.s.do(func(d *data) error {
		for _, ev := range d.events {
			if !ev.CreatedAt.Before(since) {
				stats.RecentSince++
			}
			if ev.Severity == domain.SeverityCritical && ev.Status == domain.EventOpen {
				stats.OpenCritical++
			}
		}
		return nil
	})
	return stats, err
}
