package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/service"
)

// forwardedEvents are republished on the broker when one is configured.
var forwardedEvents = []events.EventType{
	events.EventSecurityEventCreated,
	events.EventSubscriptionActivated,
	events.EventSubscriptionCancelled,
	events.EventSubscriptionExpired,
	events.EventSubscriptionOverridden,
}

// NotificationWorker owns the async dispatcher pool and the handlers that
// hang off it.
type NotificationWorker struct {
	dispatcher *events.AsyncDispatcher
	forwarder  *events.AMQPForwarder
	logger     *zap.Logger
}

// NotificationWorkerDependencies wires the worker.
type NotificationWorkerDependencies struct {
	Dispatcher    *events.AsyncDispatcher
	Notifications *service.NotificationService
	// Forwarder is optional.
	Forwarder *events.AMQPForwarder
	Logger    *zap.Logger
}

// NewNotificationWorker registers notification handlers and, when present,
// the broker forwarder on the dispatcher.
func NewNotificationWorker(deps NotificationWorkerDependencies) *NotificationWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifications != nil {
		deps.Notifications.RegisterHandlers()
	}
	if deps.Forwarder != nil {
		deps.Forwarder.Register(deps.Dispatcher, forwardedEvents...)
	}
	return &NotificationWorker{dispatcher: deps.Dispatcher, forwarder: deps.Forwarder, logger: logger}
}

// Start launches the dispatcher goroutines.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.dispatcher.Start(ctx)
	w.logger.Info("notification worker started", zap.Bool("forwarding", w.forwarder != nil))
}

// Shutdown drains queued events, then closes the broker connection.
func (w *NotificationWorker) Shutdown(ctx context.Context) error {
	err := w.dispatcher.Shutdown(ctx)
	if cerr := w.forwarder.Close(); cerr != nil {
		w.logger.Warn("failed to close amqp forwarder", zap.Error(cerr))
	}
	return err
}
