package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
)

type activityLogs struct{ s *Store }

func (r *activityLogs) Create(_ context.Context, entry *domain.ActivityLog) error {
	return r.s.do(func(d *data) error {
		if entry.UserID != nil && !userExists(d, *entry.UserID) {
			return foreignKeyViolation("activity_logs_user_id_fkey")
		}
		entry.ID = uuid.NewString()
		entry.CreatedAt = r.s.now()
		stored := *entry
		stored.Username = ""
		d.logs = append(d.logs, stored)
		return nil
	})
}

func (r *activityLogs) List(_ context.Context, filter repository.ActivityLogFilter) ([]domain.ActivityLog, int, error) {
	action := strings.TrimSpace(filter.Action)
	var matched []domain.ActivityLog
	err := r.s.do(func(d *data) error {
		for i := len(d.logs) - 1; i >= 0; i-- {
			entry := d.logs[i]
			if filter.UserID != nil && (entry.UserID == nil || *entry.UserID != *filter.UserID) {
				continue
			}
			if action != "" && !strings.Contains(entry.Action, action) {
				continue
			}
			if entry.UserID != nil {
				for _, u := range d.users {
					if u.ID == *entry.UserID {
						entry.Username = u.Username
						break
					}
				}
			}
			matched = append(matched, entry)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	start, end := page(filter.Page, 50, len(matched))
	return matched[start:end], len(matched), nil
}

type settings struct{ s *Store }

func (r *settings) List(_ context.Context) ([]domain.SystemSetting, error) {
	var result []domain.SystemSetting
	err := r.s.do(func(d *data) error {
		result = append(result, d.settings...)
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, err
}

func (r *settings) Upsert(_ context.Context, setting *domain.SystemSetting) error {
	return r.s.do(func(d *data) error {
		setting.UpdatedAt = r.s.now()
		for i := range d.settings {
			if d.settings[i].Key == setting.Key {
				d.settings[i].Value = setting.Value
				if setting.Description != "" {
					d.settings[i].Description = setting.Description
				}
				d.settings[i].UpdatedAt = setting.UpdatedAt
				setting.Description = d.settings[i].Description
				return nil
			}
		}
		d.settings = append(d.settings, *setting)
		return nil
	})
}

func (r *settings) InsertMissing(_ context.Context, rows []domain.SystemSetting) error {
	return r.s.do(func(d *data) error {
		for _, row := range rows {
			present := false
			for _, existing := range d.settings {
				if existing.Key == row.Key {
					present = true
					break
				}
			}
			if !present {
				row.UpdatedAt = r.s.now()
				d.settings = append(d.settings, row)
			}
		}
		return nil
	})
}

type payments struct{ s *Store }

func (r *payments) Create(_ context.Context, payment *domain.Payment) error {
	return r.s.do(func(d *data) error {
		if !userExists(d, payment.UserID) {
			return foreignKeyViolation("payments_user_id_fkey")
		}
		for _, existing := range d.payments {
			if existing.Reference == payment.Reference {
				return uniqueViolation("payments_reference_key")
			}
		}
		payment.ID = uuid.NewString()
		d.payments = append(d.payments, *payment)
		return nil
	})
}

func (r *payments) ListByUser(_ context.Context, userID string) ([]domain.Payment, error) {
	var result []domain.Payment
	err := r.s.do(func(d *data) error {
		for i := len(d.payments) - 1; i >= 0; i-- {
			if d.payments[i].UserID == userID {
				result = append(result, d.payments[i])
			}
		}
		return nil
	})
	return result, err
}

type scans struct{ s *Store }

func (r *scans) Create(_ context.Context, scan *domain.Scan) error {
	return r.s.do(func(d *data) error {
		if !userExists(d, scan.UserID) {
			return foreignKeyViolation("scans_user_id_fkey")
		}
		scan.ID = uuid.NewString()
		scan.CreatedAt = r.s.now()
		d.scans = append(d.scans, *scan)
		return nil
	})
}

func (r *scans) CountByUserSince(_ context.Context, userID string, since time.Time) (int, error) {
	count := 0
	err := r.s.do(func(d *data) error {
		for _, sc := range d.scans {
			if sc.UserID == userID && !sc.CreatedAt.Before(since) {
				count++
			}
		}
		return nil
	})
	return count, err
}
