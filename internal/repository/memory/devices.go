package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
)

type devices struct{ s *Store }

func userExists(d *data, id string) bool {
	for _, u := range d.users {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (r *devices) Create(_ context.Context, device *domain.Device) error {
	return r.s.do(func(d *data) error {
		if !userExists(d, device.UserID) {
			return foreignKeyViolation("devices_user_id_fkey")
		}
		for _, existing := range d.devices {
			if existing.UserID == device.UserID && existing.DeviceName == device.DeviceName {
				return uniqueViolation("devices_user_id_device_name_key")
			}
		}
		now := r.s.now()
		device.ID = uuid.NewString()
		device.CreatedAt = now
		device.LastSeen = now
		d.devices = append(d.devices, *device)
		return nil
	})
}

func (r *devices) Update(_ context.Context, device *domain.Device) error {
	return r.s.do(func(d *data) error {
		idx := -1
		for i, existing := range d.devices {
			if existing.ID == device.ID && existing.UserID == device.UserID {
				idx = i
				continue
			}
			if existing.UserID == device.UserID && existing.DeviceName == device.DeviceName {
				return uniqueViolation("devices_user_id_device_name_key")
			}
		}
		if idx < 0 {
			return pgx.ErrNoRows
		}
		updated := *device
		updated.CreatedAt = d.devices[idx].CreatedAt
		d.devices[idx] = updated
		return nil
	})
}

func (r *devices) Delete(_ context.Context, userID, id string) error {
	return r.s.do(func(d *data) error {
		idx := -1
		for i, existing := range d.devices {
			if existing.ID == id && existing.UserID == userID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return pgx.ErrNoRows
		}
		d.devices = append(d.devices[:idx:idx], d.devices[idx+1:]...)

		kept := d.events[:0:0]
		for _, ev := range d.events {
			if ev.DeviceID != nil && *ev.DeviceID == id {
				continue
			}
			kept = append(kept, ev)
		}
		d.events = kept

		for i := range d.scans {
			if d.scans[i].DeviceID != nil && *d.scans[i].DeviceID == id {
				d.scans[i].DeviceID = nil
			}
		}
		return nil
	})
}

func (r *devices) find(match func(domain.Device) bool) (*domain.Device, error) {
	var found *domain.Device
	err := r.s.do(func(d *data) error {
		for _, dev := range d.devices {
			if match(dev) {
				dev := dev
				found = &dev
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return found, err
}

func (r *devices) GetByID(_ context.Context, id string) (*domain.Device, error) {
	return r.find(func(dev domain.Device) bool { return dev.ID == id })
}

func (r *devices) GetForUser(_ context.Context, userID, id string) (*domain.Device, error) {
	return r.find(func(dev domain.Device) bool { return dev.ID == id && dev.UserID == userID })
}

func (r *devices) ListByUser(_ context.Context, userID string) ([]domain.Device, error) {
	var result []domain.Device
	err := r.s.do(func(d *data) error {
		for i := len(d.devices) - 1; i >= 0; i-- {
			if d.devices[i].UserID == userID {
				result = append(result, d.devices[i])
			}
		}
		return nil
	})
	return result, err
}

func (r *devices) CountByUser(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.s.do(func(d *data) error {
		for _, dev := range d.devices {
			if dev.UserID == userID {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *devices) NameTaken(_ context.Context, userID, name, excludeID string) (bool, error) {
	taken := false
	err := r.s.do(func(d *data) error {
		for _, dev := range d.devices {
			if dev.UserID == userID && dev.DeviceName == name && (excludeID == "" || dev.ID != excludeID) {
				taken = true
				break
			}
		}
		return nil
	})
	return taken, err
}

func (r *devices) Stats(_ context.Context) (repository.DeviceStats, error) {
	var stats repository.DeviceStats
	err := r.s.do(func(d *data) error {
		for _, dev := range d.devices {
			stats.Total++
			if dev.Status == domain.DeviceOnline {
				stats.Online++
			}
		}
		return nil
	})
	return stats, err
}
