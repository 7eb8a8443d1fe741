package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/persistence"
)

type countingExpirer struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (e *countingExpirer) ExpireLapsed(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.n, e.err
}

func TestExpiryJobRunOnce(t *testing.T) {
	expirer := &countingExpirer{n: 3}
	job, err := NewExpiryJob("0 0 * * * *", expirer, persistence.NewLocalLocker(), zap.NewNop())
	require.NoError(t, err)

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	expirer.err = errors.New("db down")
	n, err = job.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 3, n, "users downgraded before the failure are still reported")
	assert.Equal(t, 2, expirer.calls)
}

func TestExpiryJobRejectsBadSchedule(t *testing.T) {
	_, err := NewExpiryJob("every hour", &countingExpirer{}, nil, nil)
	assert.Error(t, err)
}

func TestExpiryJobWaitsForLock(t *testing.T) {
	locker := persistence.NewLocalLocker()
	job, err := NewExpiryJob("@every 1h", &countingExpirer{}, locker, nil)
	require.NoError(t, err)

	release, err := locker.Acquire(context.Background(), expiryLockKey)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = job.RunOnce(ctx)
	assert.Error(t, err)
}

type capturePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *capturePublisher) Publish(_, key string, _, _ bool, _ amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *capturePublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func TestNotificationWorkerForwardsEvents(t *testing.T) {
	dispatcher := events.NewAsyncDispatcher(1, 8, zap.NewNop())
	publisher := &capturePublisher{}
	w := NewNotificationWorker(NotificationWorkerDependencies{
		Dispatcher: dispatcher,
		Forwarder:  events.NewAMQPForwarder(publisher, "shield.events", zap.NewNop()),
	})
	w.Start(context.Background())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "1", Type: events.EventSecurityEventCreated}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{ID: "2", Type: events.EventUserRegistered}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Shutdown(ctx))

	assert.Equal(t, []string{string(events.EventSecurityEventCreated)}, publisher.routingKeys())
}
