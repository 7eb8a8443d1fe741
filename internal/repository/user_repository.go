package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search string
	Page
}

// UserStats feeds the admin dashboard.
type UserStats struct {
	Total    int
	Active   int
	NewSince int
	ByTier   map[domain.Tier]int
}

// UserRepository defines persistence access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIDForUpdate locks the user row until the surrounding transaction
	// ends; quota checks for the same user serialise on it.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByLogin matches either username or email.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
	ListLapsed(ctx context.Context, now time.Time) ([]domain.User, error)
	Stats(ctx context.Context, since time.Time) (UserStats, error)
	AdminExists(ctx context.Context) (bool, error)
}

type userRepository struct {
	db DBTX
}

const userColumns = `id, username, email, password_hash, first_name, last_name, company_name, phone, country,
               subscription_tier, subscription_status, subscription_start_date, subscription_end_date,
               is_admin, is_active, created_at, last_login`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, first_name, last_name, company_name, phone, country,
            subscription_tier, subscription_status, subscription_start_date, subscription_end_date, is_admin, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CompanyName,
		user.Phone,
		user.Country,
		user.SubscriptionTier,
		user.SubscriptionStatus,
		user.SubscriptionStartDate,
		user.SubscriptionEndDate,
		user.IsAdmin,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET username=$1, email=$2, password_hash=$3, first_name=$4, last_name=$5, company_name=$6,
            phone=$7, country=$8, subscription_tier=$9, subscription_status=$10, subscription_start_date=$11,
            subscription_end_date=$12, is_admin=$13, is_active=$14, last_login=$15
        WHERE id=$16`

	cmd, err := r.db.Exec(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CompanyName,
		user.Phone,
		user.Country,
		user.SubscriptionTier,
		user.SubscriptionStatus,
		user.SubscriptionStartDate,
		user.SubscriptionEndDate,
		user.IsAdmin,
		user.IsActive,
		user.LastLogin,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR UPDATE`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
}

func (r *userRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1 OR email=$1 LIMIT 1`, login)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(username) LIKE %s OR LOWER(email) LIKE %s OR LOWER(company_name) LIKE %s)",
			placeholder, placeholder, placeholder))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := filter.normalize(10)
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		userColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListLapsed(ctx context.Context, now time.Time) ([]domain.User, error) {
	query := `SELECT ` + userColumns + `
        FROM users
        WHERE subscription_tier <> 'free' AND subscription_end_date IS NOT NULL AND subscription_end_date < $1
        ORDER BY subscription_end_date`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *userRepository) Stats(ctx context.Context, since time.Time) (UserStats, error) {
	stats := UserStats{ByTier: map[domain.Tier]int{}}

	const totals = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE is_active),
               COUNT(*) FILTER (WHERE created_at >= $1)
        FROM users`
	if err := r.db.QueryRow(ctx, totals, since).Scan(&stats.Total, &stats.Active, &stats.NewSince); err != nil {
		return stats, err
	}

	rows, err := r.db.Query(ctx, `SELECT subscription_tier, COUNT(*) FROM users GROUP BY subscription_tier`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tier  domain.Tier
			count int
		)
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, err
		}
		stats.ByTier[tier] = count
	}
	return stats, rows.Err()
}

func (r *userRepository) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE is_admin)`).Scan(&exists)
	return exists, err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CompanyName,
		&user.Phone,
		&user.Country,
		&user.SubscriptionTier,
		&user.SubscriptionStatus,
		&user.SubscriptionStartDate,
		&user.SubscriptionEndDate,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
		&user.LastLogin,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
