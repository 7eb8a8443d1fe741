package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Channel() string
}

type resendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer sends mail through the Resend API.
func NewResendMailer(apiKey, from string) (Mailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("resend api key not set")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("sender address not set")
	}
	return &resendMailer{client: resend.NewClient(apiKey), from: from}, nil
}

func (m *resendMailer) Channel() string { return "resend" }

func (m *resendMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if _, err := m.client.Emails.Send(params); err != nil {
		return fmt.Errorf("resend send to %s: %w", msg.To, err)
	}
	return nil
}

type logMailer struct {
	logger *zap.Logger
}

// NewLogMailer writes messages to the log instead of sending them.
func NewLogMailer(logger *zap.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) Channel() string { return "log" }

func (m *logMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text))
	return nil
}

// NewMailer picks Resend when an API key is configured and the log mailer
// otherwise.
func NewMailer(apiKey, from string, logger *zap.Logger) Mailer {
	if strings.TrimSpace(apiKey) == "" {
		logger.Info("no email provider configured, logging emails instead")
		return NewLogMailer(logger)
	}
	m, err := NewResendMailer(apiKey, from)
	if err != nil {
		logger.Warn("resend mailer unavailable, logging emails instead", zap.Error(err))
		return NewLogMailer(logger)
	}
	return m
}
