package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/shield-service/internal/domain"
)

// ErrPendingPaymentNotFound is returned when a user has no pending payment.
var ErrPendingPaymentNotFound = errors.New("pending payment not found")

// PendingPaymentStore keeps at most one pending payment per user. Save
// replaces any previous record. Expiry is decided by the caller at read
// time; the store only bounds how long stale records linger.
type PendingPaymentStore interface {
	Save(ctx context.Context, payment *domain.PendingPayment) error
	Get(ctx context.Context, userID string) (*domain.PendingPayment, error)
	// DeleteIfMatch removes the user's record only while it is still the
	// payment paymentID. A record saved since then is left in place.
	DeleteIfMatch(ctx context.Context, userID, paymentID string) error
}

type redisPendingPaymentStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisPendingPaymentStore stores records as JSON under
// pending_payment:user:<id>, kept for retention.
func NewRedisPendingPaymentStore(client redis.UniversalClient, retention time.Duration) PendingPaymentStore {
	return &redisPendingPaymentStore{client: client, retention: retention}
}

func pendingPaymentKey(userID string) string {
	return "pending_payment:user:" + userID
}

func (s *redisPendingPaymentStore) Save(ctx context.Context, payment *domain.PendingPayment) error {
	raw, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode pending payment: %w", err)
	}
	return s.client.Set(ctx, pendingPaymentKey(payment.UserID), raw, s.retention).Err()
}

func (s *redisPendingPaymentStore) Get(ctx context.Context, userID string) (*domain.PendingPayment, error) {
	raw, err := s.client.Get(ctx, pendingPaymentKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPendingPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	var payment domain.PendingPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("decode pending payment: %w", err)
	}
	return &payment, nil
}

func (s *redisPendingPaymentStore) DeleteIfMatch(ctx context.Context, userID, paymentID string) error {
	key := pendingPaymentKey(userID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var current domain.PendingPayment
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("decode pending payment: %w", err)
		}
		if current.ID != paymentID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	// The key changed under WATCH, so a newer record was saved.
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

type memoryPendingPaymentStore struct {
	mu       sync.Mutex
	payments map[string]domain.PendingPayment
}

// NewMemoryPendingPaymentStore keeps records in process. Used when Redis is
// not configured.
func NewMemoryPendingPaymentStore() PendingPaymentStore {
	return &memoryPendingPaymentStore{payments: make(map[string]domain.PendingPayment)}
}

func (s *memoryPendingPaymentStore) Save(_ context.Context, payment *domain.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.UserID] = *payment
	return nil
}

func (s *memoryPendingPaymentStore) Get(_ context.Context, userID string) (*domain.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment, ok := s.payments[userID]
	if !ok {
		return nil, ErrPendingPaymentNotFound
	}
	return &payment, nil
}

func (s *memoryPendingPaymentStore) DeleteIfMatch(_ context.Context, userID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.payments[userID]; ok && current.ID == paymentID {
		delete(s.payments, userID)
	}
	return nil
}
