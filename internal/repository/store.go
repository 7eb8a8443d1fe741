package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories of one unit of work.
type Store interface {
	Users() UserRepository
	Devices() DeviceRepository
	SecurityEvents() SecurityEventRepository
	ActivityLogs() ActivityLogRepository
	Settings() SettingsRepository
	Payments() PaymentRepository
	Scans() ScanRepository

	// WithTx runs fn against a transactional store. fn's error, or a panic,
	// rolls the transaction back.
	WithTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewPostgresStore returns a Store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Users() UserRepository                   { return &userRepository{db: s.db} }
func (s *pgStore) Devices() DeviceRepository               { return &deviceRepository{db: s.db} }
func (s *pgStore) SecurityEvents() SecurityEventRepository { return &securityEventRepository{db: s.db} }
func (s *pgStore) ActivityLogs() ActivityLogRepository     { return &activityLogRepository{db: s.db} }
func (s *pgStore) Settings() SettingsRepository            { return &settingsRepository{db: s.db} }
func (s *pgStore) Payments() PaymentRepository             { return &paymentRepository{db: s.db} }
func (s *pgStore) Scans() ScanRepository                   { return &scanRepository{db: s.db} }

func (s *pgStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if _, nested := s.db.(pgx.Tx); nested {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(&pgStore{pool: s.pool, db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize(defaultLimit int) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
