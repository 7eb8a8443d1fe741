package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/shield-service/internal/domain"
)

var branding = Branding{CompanyName: "Yalla-Hack Shield", SupportEmail: "support@example.com"}

func TestRenderSecurityAlert(t *testing.T) {
	name := "laptop <1>"
	rule := domain.RuleDeviceCompromise
	ev := &domain.SecurityEvent{
		Title:         "Device laptop marked as compromised",
		Severity:      domain.SeverityCritical,
		EventType:     domain.EventTypeDeviceCompromised,
		RuleTriggered: &rule,
		Description:   "needs attention",
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	user := &domain.User{Username: "alice", FirstName: "Alice", LastName: "Doe"}

	msg, err := RenderSecurityAlert("alice@example.com", NewAlertData(branding, user, &name, ev))
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Yalla-Hack Shield Alert: Device laptop marked as compromised", msg.Subject)
	assert.Contains(t, msg.Text, "Dear Alice Doe")
	assert.Contains(t, msg.Text, "Severity: CRITICAL")
	assert.Contains(t, msg.Text, "Device: laptop <1>")
	assert.Contains(t, msg.Text, "2024-05-01 10:00:00 UTC")
	assert.Contains(t, msg.HTML, "laptop &lt;1&gt;")
	assert.Contains(t, msg.HTML, "support@example.com")
}

func TestAlertDataFallbacks(t *testing.T) {
	data := NewAlertData(branding, &domain.User{Username: "bob"}, nil, &domain.SecurityEvent{Title: "x"})

	assert.Equal(t, "bob", data.RecipientName)
	assert.Equal(t, "Unknown Device", data.DeviceName)
	assert.Equal(t, "N/A", data.Rule)
	assert.NotEmpty(t, data.OccurredAt)
}

func TestRenderWelcome(t *testing.T) {
	msg, err := RenderWelcome("bob@example.com", WelcomeData{Branding: branding, RecipientName: "bob"})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to Yalla-Hack Shield", msg.Subject)
	assert.Contains(t, msg.Text, "Dear bob")
	assert.Contains(t, msg.HTML, "Welcome to Yalla-Hack Shield!")
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	m := NewMailer("", "noreply@example.com", zap.NewNop())
	assert.Equal(t, "log", m.Channel())
	assert.NoError(t, m.Send(context.Background(), Message{To: "a@b.c"}))

	m = NewMailer("re_key", "", zap.NewNop())
	assert.Equal(t, "log", m.Channel())

	m = NewMailer("re_key", "noreply@example.com", zap.NewNop())
	assert.Equal(t, "resend", m.Channel())
}
