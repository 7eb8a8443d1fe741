package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
	"github.com/spec-kit/shield-service/internal/events"
	"github.com/spec-kit/shield-service/internal/notification"
	"github.com/spec-kit/shield-service/internal/observability"
	"github.com/spec-kit/shield-service/internal/repository"
	apperrors "github.com/spec-kit/shield-service/pkg/util/errorutil"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	store      repository.Store
	settings   *SettingsService
	mailer     notification.Mailer
	audit      *AuditLogger
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Store      repository.Store
	Settings   *SettingsService
	Mailer     notification.Mailer
	Audit      *AuditLogger
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := loggerOrNop(deps.Logger)
	mailer := deps.Mailer
	if mailer == nil {
		mailer = notification.NewLogMailer(logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		settings:   deps.Settings,
		mailer:     mailer,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSecurityEventCreated, n.handleSecurityEventCreated)
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
}

// handleSecurityEventCreated emails the owner when notifications are
// enabled and flags the event as emailed once the send succeeds.
func (n *NotificationService) handleSecurityEventCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SecurityEventPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	settings := n.settings.CurrentOrDefault(ctx)
	if !settings.EmailNotificationsEnabled {
		n.logger.Debug("email notifications disabled", zap.String("security_event_id", payload.EventID))
		return nil
	}

	user, err := n.store.Users().GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", event.UserID, err)
	}
	ev, err := n.store.SecurityEvents().GetByID(ctx, payload.EventID)
	if err != nil {
		if apperrors.Is(apperrors.MapError(err), apperrors.CodeNotFound) {
			n.logger.Info("security event gone before notification", zap.String("security_event_id", payload.EventID))
			return nil
		}
		return fmt.Errorf("load security event %s: %w", payload.EventID, err)
	}
	deviceName := ev.DeviceName
	if deviceName == nil {
		deviceName = payload.DeviceName
	}

	msg, err := notification.RenderSecurityAlert(user.Email,
		notification.NewAlertData(branding(settings), user, deviceName, ev))
	if err != nil {
		return err
	}
	err = n.mailer.Send(ctx, msg)
	n.metrics.NotificationSent(n.mailer.Channel(), err)
	if err != nil {
		return err
	}

	if err := n.store.SecurityEvents().MarkEmailSent(ctx, ev.ID); err != nil {
		return fmt.Errorf("mark email sent %s: %w", ev.ID, err)
	}
	n.audit.RecordFor(ctx, user.ID, domain.ActionSecurityAlertEmail,
		fmt.Sprintf("Security alert email sent for event: %s", ev.Title), domain.RequestMeta{})
	return nil
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	user, err := n.store.Users().GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", event.UserID, err)
	}
	settings := n.settings.CurrentOrDefault(ctx)
	msg, err := notification.RenderWelcome(user.Email, notification.WelcomeData{
		Branding:      branding(settings),
		RecipientName: user.FullName(),
	})
	if err != nil {
		return err
	}
	err = n.mailer.Send(ctx, msg)
	n.metrics.NotificationSent(n.mailer.Channel(), err)
	if err != nil {
		return err
	}
	n.audit.RecordFor(ctx, user.ID, domain.ActionWelcomeEmail,
		fmt.Sprintf("Welcome email sent to user: %s", user.Username), domain.RequestMeta{})
	return nil
}

func branding(s domain.Settings) notification.Branding {
	return notification.Branding{CompanyName: s.CompanyName, SupportEmail: s.SupportEmail}
}
