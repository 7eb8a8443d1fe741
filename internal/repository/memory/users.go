package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
)

type users struct{ s *Store }

func (r *users) Create(_ context.Context, user *domain.User) error {
	return r.s.do(func(d *data) error {
		for _, existing := range d.users {
			if existing.Username == user.Username {
				return uniqueViolation("users_username_key")
			}
			if existing.Email == user.Email {
				return uniqueViolation("users_email_key")
			}
		}
		user.ID = uuid.NewString()
		user.CreatedAt = r.s.now()
		d.users = append(d.users, *user)
		return nil
	})
}

func (r *users) Update(_ context.Context, user *domain.User) error {
	return r.s.do(func(d *data) error {
		idx := -1
		for i, existing := range d.users {
			if existing.ID == user.ID {
				idx = i
				continue
			}
			if existing.Username == user.Username {
				return uniqueViolation("users_username_key")
			}
			if existing.Email == user.Email {
				return uniqueViolation("users_email_key")
			}
		}
		if idx < 0 {
			return pgx.ErrNoRows
		}
		updated := *user
		updated.CreatedAt = d.users[idx].CreatedAt
		d.users[idx] = updated
		return nil
	})
}

func (r *users) find(match func(domain.User) bool) (*domain.User, error) {
	var found *domain.User
	err := r.s.do(func(d *data) error {
		for _, u := range d.users {
			if match(u) {
				u := u
				found = &u
				return nil
			}
		}
		return pgx.ErrNoRows
	})
	return found, err
}

func (r *users) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *users) GetByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *users) GetByLogin(_ context.Context, login string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == login || u.Email == login })
}

func (r *users) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []domain.User
	err := r.s.do(func(d *data) error {
		for i := len(d.users) - 1; i >= 0; i-- {
			u := d.users[i]
			if search != "" &&
				!strings.Contains(strings.ToLower(u.Username), search) &&
				!strings.Contains(strings.ToLower(u.Email), search) &&
				!strings.Contains(strings.ToLower(u.CompanyName), search) {
				continue
			}
			matched = append(matched, u)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	start, end := page(filter.Page, 10, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *users) ListLapsed(_ context.Context, now time.Time) ([]domain.User, error) {
	var result []domain.User
	err := r.s.do(func(d *data) error {
		for _, u := range d.users {
			if u.SubscriptionTier != domain.TierFree && u.SubscriptionEndDate != nil && u.SubscriptionEndDate.Before(now) {
				result = append(result, u)
			}
		}
		return nil
	})
	return result, err
}

func (r *users) Stats(_ context.Context, since time.Time) (repository.UserStats, error) {
	stats := repository.UserStats{ByTier: map[domain.Tier]int{}}
	err := r.s.do(func(d *data) error {
		for _, u := range d.users {
			stats.Total++
			if u.IsActive {
				stats.Active++
			}
			if !u.CreatedAt.Before(since) {
				stats.NewSince++
			}
			stats.ByTier[u.SubscriptionTier]++
		}
		return nil
	})
	return stats, err
}

func (r *users) AdminExists(_ context.Context) (bool, error) {
	exists := false
	err := r.s.do(func(d *data) error {
		for _, u := range d.users {
			if u.IsAdmin {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}
