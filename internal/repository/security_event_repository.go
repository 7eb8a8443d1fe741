package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
)

// SecurityEventFilter narrows event listings. Nil fields are ignored.
type SecurityEventFilter struct {
	UserID   *string
	DeviceID *string
	Severity *domain.Severity
	Status   *domain.EventStatus
	Page
}

// SecurityEventStats feeds the admin dashboard.
type SecurityEventStats struct {
	RecentSince  int
	OpenCritical int
}

// SecurityEventRepository persists security events.
type SecurityEventRepository interface {
	Create(ctx context.Context, event *domain.SecurityEvent) error
	GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error)
	UpdateStatus(ctx context.Context, event *domain.SecurityEvent) error
	MarkEmailSent(ctx context.Context, id string) error
	List(ctx context.Context, filter SecurityEventFilter) ([]domain.SecurityEvent, int, error)
	Stats(ctx context.Context, since time.Time) (SecurityEventStats, error)
}

type securityEventRepository struct {
	db DBTX
}

const securityEventColumns = `e.id, e.user_id, e.device_id, e.event_type, e.severity, e.title, e.description,
               e.rule_triggered, e.source_ip, e.destination_ip, e.file_path, e.process_name, e.status,
               e.email_sent, e.created_at, e.resolved_at, d.device_name`

func (r *securityEventRepository) Create(ctx context.Context, event *domain.SecurityEvent) error {
	const query = `
        INSERT INTO security_events (user_id, device_id, event_type, severity, title, description, rule_triggered,
            source_ip, destination_ip, file_path, process_name, status, email_sent)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		event.UserID,
		event.DeviceID,
		event.EventType,
		event.Severity,
		event.Title,
		event.Description,
		event.RuleTriggered,
		event.SourceIP,
		event.DestinationIP,
		event.FilePath,
		event.ProcessName,
		event.Status,
		event.EmailSent,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *securityEventRepository) GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error) {
	query := `SELECT ` + securityEventColumns + `
        FROM security_events e LEFT JOIN devices d ON d.id = e.device_id
        WHERE e.id=$1`
	return scanSecurityEvent(r.db.QueryRow(ctx, query, id))
}

func (r *securityEventRepository) UpdateStatus(ctx context.Context, event *domain.SecurityEvent) error {
	cmd, err := r.db.Exec(ctx, `UPDATE security_events SET status=$1, resolved_at=$2 WHERE id=$3`,
		event.Status, event.ResolvedAt, event.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *securityEventRepository) MarkEmailSent(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE security_events SET email_sent=TRUE WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *securityEventRepository) List(ctx context.Context, filter SecurityEventFilter) ([]domain.SecurityEvent, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("e.user_id=$%d", len(args)))
	}
	if filter.DeviceID != nil {
		args = append(args, *filter.DeviceID)
		clauses = append(clauses, fmt.Sprintf("e.device_id=$%d", len(args)))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		clauses = append(clauses, fmt.Sprintf("e.severity=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("e.status=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM security_events e WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := filter.normalize(20)
	query := fmt.Sprintf(`SELECT %s
        FROM security_events e LEFT JOIN devices d ON d.id = e.device_id
        WHERE %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d`,
		securityEventColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.SecurityEvent
	for rows.Next() {
		event, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *securityEventRepository) Stats(ctx context.Context, since time.Time) (SecurityEventStats, error) {
	const query = `
        SELECT COUNT(*) FILTER (WHERE created_at >= $1),
               COUNT(*) FILTER (WHERE severity='critical' AND status='open')
        FROM security_events`
	var stats SecurityEventStats
	err := r.db.QueryRow(ctx, query, since).Scan(&stats.RecentSince, &stats.OpenCritical)
	return stats, err
}

func scanSecurityEvent(row pgx.Row) (*domain.SecurityEvent, error) {
	var event domain.SecurityEvent
	if err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.DeviceID,
		&event.EventType,
		&event.Severity,
		&event.Title,
		&event.Description,
		&event.RuleTriggered,
		&event.SourceIP,
		&event.DestinationIP,
		&event.FilePath,
		&event.ProcessName,
		&event.Status,
		&event.EmailSent,
		&event.CreatedAt,
		&event.ResolvedAt,
		&event.DeviceName,
	); err != nil {
		return nil, err
	}
	return &event, nil
}
