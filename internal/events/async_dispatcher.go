package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by Publish when the worker queue has no room.
var ErrQueueFull = errors.New("event queue full")

// ErrDispatcherClosed is returned by Publish after Shutdown.
var ErrDispatcherClosed = errors.New("event dispatcher closed")

// AsyncDispatcher hands events to a bounded pool of workers. Publish never
// blocks the caller.
type AsyncDispatcher struct {
	registry
	logger         *zap.Logger
	queue          chan Event
	workers        int
	handlerTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewAsyncDispatcher sizes the pool. Start must be called before events are
// processed; until then they wait in the queue.
func NewAsyncDispatcher(workers, queueSize int, logger *zap.Logger) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{
		registry:       registry{listeners: make(map[EventType][]EventHandler)},
		logger:         logger,
		queue:          make(chan Event, queueSize),
		workers:        workers,
		handlerTimeout: 30 * time.Second,
	}
}

// Start launches the workers. Handler contexts derive from ctx.
func (d *AsyncDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
	d.logger.Info("event dispatcher started", zap.Int("workers", d.workers))
}

func (d *AsyncDispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for event := range d.queue {
		d.handle(ctx, event)
	}
}

func (d *AsyncDispatcher) handle(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked", zap.String("event_id", event.ID), zap.Any("panic", r))
		}
	}()
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.handlerTimeout)
	defer cancel()
	d.deliver(hctx, event, d.logger)
}

// Publish enqueues event. The request context is not carried to handlers.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("dropping event, queue full",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for queued ones to drain or for
// ctx to expire.
func (d *AsyncDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
