package repository

import (
	"context"

	"github.com/spec-kit/shield-service/internal/domain"
)

// SettingsRepository stores system settings rows.
type SettingsRepository interface {
	List(ctx context.Context) ([]domain.SystemSetting, error)
	// Upsert writes the row; the last write wins.
	Upsert(ctx context.Context, setting *domain.SystemSetting) error
	// InsertMissing adds rows whose key is absent and leaves the rest alone.
	InsertMissing(ctx context.Context, settings []domain.SystemSetting) error
}

type settingsRepository struct {
	db DBTX
}

func (r *settingsRepository) List(ctx context.Context) ([]domain.SystemSetting, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value, description, updated_at FROM system_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SystemSetting
	for rows.Next() {
		var s domain.SystemSetting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *settingsRepository) Upsert(ctx context.Context, setting *domain.SystemSetting) error {
	const query = `
        INSERT INTO system_settings (key, value, description, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (key) DO UPDATE
            SET value = EXCLUDED.value,
                description = CASE WHEN EXCLUDED.description = '' THEN system_settings.description ELSE EXCLUDED.description END,
                updated_at = NOW()
        RETURNING description, updated_at`
	return r.db.QueryRow(ctx, query, setting.Key, setting.Value, setting.Description).
		Scan(&setting.Description, &setting.UpdatedAt)
}

func (r *settingsRepository) InsertMissing(ctx context.Context, settings []domain.SystemSetting) error {
	const query = `
        INSERT INTO system_settings (key, value, description)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO NOTHING`
	for _, s := range settings {
		if _, err := r.db.Exec(ctx, query, s.Key, s.Value, s.Description); err != nil {
			return err
		}
	}
	return nil
}
