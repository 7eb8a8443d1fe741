package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serialises work on a key across callers. The returned release
// function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger *zap.Logger
}

// NewRedsyncLocker returns a Locker coordinated through Redis so that every
// API replica observes the same lock.
func NewRedsyncLocker(client redis.UniversalClient, expiry time.Duration, logger *zap.Logger) Locker {
	return &redsyncLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
		logger: logger,
	}
}

func (l *redsyncLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(32),
		redsync.WithRetryDelay(50*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

type localLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

// localSlot is a key's lock plus the number of holders and waiters using it.
// It leaves the map when that count drops to zero.
type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns a Locker scoped to this process.
func NewLocalLocker() Locker {
	return &localLocker{slots: make(map[string]*localSlot)}
}

func (l *localLocker) join(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *localLocker) leave(key string, slot *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *localLocker) Acquire(ctx context.Context, key string) (func(), error) {
	slot := l.join(key)
	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.leave(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.leave(key, slot)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
}

type noopLocker struct{}

// NewNoopLocker returns a Locker that never blocks.
func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
