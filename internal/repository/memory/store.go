// Package memory is an in-process repository.Store. It backs the service
// when no database is configured and keeps service tests hermetic.
// Transactions are serialised: WithTx holds the store lock, works on a copy
// of the data and publishes the copy only when fn succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/repository"
)

type data struct {
	users    []domain.User
	devices  []domain.Device
	events   []domain.SecurityEvent
	logs     []domain.ActivityLog
	settings []domain.SystemSetting
	payments []domain.Payment
	scans    []domain.Scan
}

func (d *data) clone() *data {
	return &data{
		users:    append([]domain.User(nil), d.users...),
		devices:  append([]domain.Device(nil), d.devices...),
		events:   append([]domain.SecurityEvent(nil), d.events...),
		logs:     append([]domain.ActivityLog(nil), d.logs...),
		settings: append([]domain.SystemSetting(nil), d.settings...),
		payments: append([]domain.Payment(nil), d.payments...),
		scans:    append([]domain.Scan(nil), d.scans...),
	}
}

type db struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

// Store implements repository.Store in memory.
type Store struct {
	db *db
	tx *data
}

// Option customises a Store.
type Option func(*db)

// WithClock overrides the timestamp source used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(d *db) { d.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	d := &db{data: &data{}, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return &Store{db: d}
}

var _ repository.Store = (*Store)(nil)

// do runs fn against the visible data: the transaction copy when inside
// WithTx, otherwise the shared data under the lock.
func (s *Store) do(fn func(d *data) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.data)
}

func (s *Store) now() time.Time {
	return s.db.now().UTC()
}

func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	working := s.db.data.clone()
	if err := fn(&Store{db: s.db, tx: working}); err != nil {
		return err
	}
	s.db.data = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Users() repository.UserRepository                   { return &users{s} }
func (s *Store) Devices() repository.DeviceRepository               { return &devices{s} }
func (s *Store) SecurityEvents() repository.SecurityEventRepository { return &securityEvents{s} }
func (s *Store) ActivityLogs() repository.ActivityLogRepository     { return &activityLogs{s} }
func (s *Store) Settings() repository.SettingsRepository            { return &settings{s} }
func (s *Store) Payments() repository.PaymentRepository             { return &payments{s} }
func (s *Store) Scans() repository.ScanRepository                   { return &scans{s} }

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "violates foreign key constraint"}
}

func page(p repository.Page, defaultLimit, total int) (int, int) {
	limit, offset := p.Limit, p.Offset
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
