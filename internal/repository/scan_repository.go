package repository

import (
	"context"
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// ScanRepository records completed scans for quota accounting.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.Scan) error
	CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

type scanRepository struct {
	db DBTX
}

func (r *scanRepository) Create(ctx context.Context, scan *domain.Scan) error {
	const query = `
        INSERT INTO scans (user_id, device_id, scan_type, critical, high, medium, low, info)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		scan.UserID,
		scan.DeviceID,
		scan.ScanType,
		scan.Findings.Critical,
		scan.Findings.High,
		scan.Findings.Medium,
		scan.Findings.Low,
		scan.Findings.Info,
	).Scan(&scan.ID, &scan.CreatedAt)
}

func (r *scanRepository) CountByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM scans WHERE user_id=$1 AND created_at >= $2`, userID, since).Scan(&count)
	return count, err
}
