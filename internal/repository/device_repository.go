package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
)

// DeviceStats feeds the admin dashboard.
type DeviceStats struct {
	Total  int
	Online int
}

// DeviceRepository persists monitored devices.
type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	Update(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, userID, id string) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	// GetForUser returns the device only when userID owns it.
	GetForUser(ctx context.Context, userID, id string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	// NameTaken reports whether userID owns another device called name.
	// excludeID skips the device being renamed.
	NameTaken(ctx context.Context, userID, name, excludeID string) (bool, error)
	Stats(ctx context.Context) (DeviceStats, error)
}

type deviceRepository struct {
	db DBTX
}

const deviceColumns = `id, user_id, device_name, device_type, operating_system, ip_address, mac_address,
               agent_version, last_seen, status, created_at`

func (r *deviceRepository) Create(ctx context.Context, device *domain.Device) error {
	const query = `
        INSERT INTO devices (user_id, device_name, device_type, operating_system, ip_address, mac_address, agent_version, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, last_seen, created_at`

	return r.db.QueryRow(ctx, query,
		device.UserID,
		device.DeviceName,
		device.DeviceType,
		device.OperatingSystem,
		device.IPAddress,
		device.MACAddress,
		device.AgentVersion,
		device.Status,
	).Scan(&device.ID, &device.LastSeen, &device.CreatedAt)
}

func (r *deviceRepository) Update(ctx context.Context, device *domain.Device) error {
	const query = `
        UPDATE devices SET device_name=$1, device_type=$2, operating_system=$3, ip_address=$4, mac_address=$5,
            agent_version=$6, status=$7, last_seen=$8
        WHERE id=$9 AND user_id=$10`

	cmd, err := r.db.Exec(ctx, query,
		device.DeviceName,
		device.DeviceType,
		device.OperatingSystem,
		device.IPAddress,
		device.MACAddress,
		device.AgentVersion,
		device.Status,
		device.LastSeen,
		device.ID,
		device.UserID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *deviceRepository) Delete(ctx context.Context, userID, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM devices WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *deviceRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	return scanDevice(r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id=$1`, id))
}

func (r *deviceRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Device, error) {
	return scanDevice(r.db.QueryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id=$1 AND user_id=$2`, id, userID))
}

func (r *deviceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	rows, err := r.db.Query(ctx, `SELECT `+deviceColumns+` FROM devices WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *device)
	}
	return result, rows.Err()
}

func (r *deviceRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM devices WHERE user_id=$1`, userID).Scan(&count)
	return count, err
}

func (r *deviceRepository) NameTaken(ctx context.Context, userID, name, excludeID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM devices
            WHERE user_id=$1 AND device_name=$2 AND ($3 = '' OR id::text <> $3)
        )`
	var taken bool
	err := r.db.QueryRow(ctx, query, userID, name, excludeID).Scan(&taken)
	return taken, err
}

func (r *deviceRepository) Stats(ctx context.Context) (DeviceStats, error) {
	var stats DeviceStats
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE status='online') FROM devices`).
		Scan(&stats.Total, &stats.Online)
	return stats, err
}

func scanDevice(row pgx.Row) (*domain.Device, error) {
	var device domain.Device
	if err := row.Scan(
		&device.ID,
		&device.UserID,
		&device.DeviceName,
		&device.DeviceType,
		&device.OperatingSystem,
		&device.IPAddress,
		&device.MACAddress,
		&device.AgentVersion,
		&device.LastSeen,
		&device.Status,
		&device.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &device, nil
}
