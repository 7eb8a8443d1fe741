package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/persistence"
)

const (
	expiryLockKey    = "shield:lock:subscription-expiry"
	expiryRunTimeout = 5 * time.Minute

	// ExpiryLockTTL is the lease a distributed sweep lock needs so it cannot
	// lapse while a sweep is still inside expiryRunTimeout.
	ExpiryLockTTL = expiryRunTimeout + time.Minute
)

// Expirer downgrades subscriptions whose end date has passed.
type Expirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

// ExpiryJob runs the lapsed-subscription sweep on a cron schedule. The
// locker keeps replicas from sweeping concurrently.
type ExpiryJob struct {
	expirer Expirer
	locker  persistence.Locker
	logger  *zap.Logger
	cron    *cron.Cron
}

// NewExpiryJob schedules the sweep. schedule uses the six-field format with
// seconds.
func NewExpiryJob(schedule string, expirer Expirer, locker persistence.Locker, logger *zap.Logger) (*ExpiryJob, error) {
	if locker == nil {
		locker = persistence.NewNoopLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &ExpiryJob{
		expirer: expirer,
		locker:  locker,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
	}
	if _, err := j.cron.AddFunc(schedule, j.tick); err != nil {
		return nil, fmt.Errorf("schedule expiry job %q: %w", schedule, err)
	}
	return j, nil
}

func (j *ExpiryJob) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), expiryRunTimeout)
	defer cancel()
	if n, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("subscription expiry sweep failed", zap.Int("expired", n), zap.Error(err))
	}
}

// RunOnce performs a single sweep and reports how many users were
// downgraded. A failed sweep still reports the users it managed to downgrade.
func (j *ExpiryJob) RunOnce(ctx context.Context) (int, error) {
	release, err := j.locker.Acquire(ctx, expiryLockKey)
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := j.expirer.ExpireLapsed(ctx)
	if n > 0 {
		j.logger.Info("expired lapsed subscriptions", zap.Int("count", n))
	}
	return n, err
}

// Start begins scheduling in the background.
func (j *ExpiryJob) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (j *ExpiryJob) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
