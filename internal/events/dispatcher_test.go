package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())
	var calls int
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error {
		calls++
		return errors.New("first fails")
	})
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error {
		calls++
		return nil
	})
	d.Subscribe(EventSubscriptionExpired, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{ID: "e1", Type: EventUserRegistered}))
	assert.Equal(t, 2, calls)
}

func TestAsyncDispatcherDeliversAfterRequestContextEnds(t *testing.T) {
	d := NewAsyncDispatcher(2, 8, zap.NewNop())
	var (
		wg       sync.WaitGroup
		received atomic.Int32
	)
	wg.Add(3)
	d.Subscribe(EventSecurityEventCreated, func(ctx context.Context, e Event) error {
		defer wg.Done()
		assert.NoError(t, ctx.Err())
		received.Add(1)
		return nil
	})
	d.Start(context.Background())

	reqCtx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Publish(reqCtx, Event{Type: EventSecurityEventCreated}))
	}
	cancel()

	wg.Wait()
	assert.Equal(t, int32(3), received.Load())

	ctx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, d.Shutdown(ctx))
	assert.ErrorIs(t, d.Publish(context.Background(), Event{Type: EventSecurityEventCreated}), ErrDispatcherClosed)
}

func TestAsyncDispatcherQueueFullDoesNotBlock(t *testing.T) {
	d := NewAsyncDispatcher(1, 1, zap.NewNop())

	require.NoError(t, d.Publish(context.Background(), Event{ID: "1", Type: EventUserRegistered}))
	assert.ErrorIs(t, d.Publish(context.Background(), Event{ID: "2", Type: EventUserRegistered}), ErrQueueFull)
}

func TestAsyncDispatcherSurvivesPanickingHandler(t *testing.T) {
	d := NewAsyncDispatcher(1, 4, zap.NewNop())
	done := make(chan struct{})
	d.Subscribe(EventUserRegistered, func(context.Context, Event) error { panic("boom") })
	d.Subscribe(EventSubscriptionExpired, func(context.Context, Event) error {
		close(done)
		return nil
	})
	d.Start(context.Background())

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventUserRegistered}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventSubscriptionExpired}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
	require.NoError(t, d.Shutdown(context.Background()))
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestAMQPForwarder(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "shield.events", string(EventSecurityEventCreated), false, false,
		mock.MatchedBy(func(msg amqp.Publishing) bool {
			var decoded Event
			if err := json.Unmarshal(msg.Body, &decoded); err != nil {
				return false
			}
			return msg.ContentType == "application/json" &&
				msg.MessageId == "ev-1" &&
				msg.DeliveryMode == amqp.Persistent &&
				decoded.UserID == "u1"
		})).Return(nil).Once()

	f := NewAMQPForwarder(pub, "shield.events", zap.NewNop())
	d := NewInMemoryDispatcher(zap.NewNop())
	f.Register(d, EventSecurityEventCreated)

	require.NoError(t, d.Publish(context.Background(), Event{
		ID:        "ev-1",
		Type:      EventSecurityEventCreated,
		UserID:    "u1",
		Timestamp: time.Now().UTC(),
	}))
	pub.AssertExpectations(t)
	require.NoError(t, f.Close())
}

func TestAMQPForwarderWrapsPublishError(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(amqp.ErrClosed)

	f := NewAMQPForwarder(pub, "x", zap.NewNop())
	err := f.Forward(context.Background(), Event{ID: "e", Type: EventUserRegistered})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
