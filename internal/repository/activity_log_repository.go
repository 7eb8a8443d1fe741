package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/shield-service/internal/domain"
)

// ActivityLogFilter narrows the audit listing. Action matches as a substring.
type ActivityLogFilter struct {
	UserID *string
	Action string
	Page
}

// ActivityLogRepository appends and lists audit entries.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]domain.ActivityLog, int, error)
}

type activityLogRepository struct {
	db DBTX
}

func (r *activityLogRepository) Create(ctx context.Context, entry *domain.ActivityLog) error {
	const query = `
        INSERT INTO activity_logs (user_id, action, description, ip_address, user_agent)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.UserID,
		entry.Action,
		entry.Description,
		entry.IPAddress,
		entry.UserAgent,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]domain.ActivityLog, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("l.user_id=$%d", len(args)))
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		args = append(args, "%"+action+"%")
		clauses = append(clauses, fmt.Sprintf("l.action LIKE $%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs l WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := filter.normalize(50)
	query := fmt.Sprintf(`
        SELECT l.id, l.user_id, l.action, l.description, l.ip_address, l.user_agent, l.created_at,
               COALESCE(u.username, '')
        FROM activity_logs l LEFT JOIN users u ON u.id = l.user_id
        WHERE %s ORDER BY l.created_at DESC LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.ActivityLog
	for rows.Next() {
		var entry domain.ActivityLog
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.Description,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
			&entry.Username,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}
