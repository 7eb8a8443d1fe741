package events

import (
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventSecurityEventCreated   EventType = "security_event_created"
	EventSubscriptionActivated  EventType = "subscription_activated"
	EventSubscriptionCancelled  EventType = "subscription_cancelled"
	EventSubscriptionExpired    EventType = "subscription_expired"
	EventSubscriptionOverridden EventType = "subscription_overridden"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SecurityEventPayload carries the persisted event so handlers need no
// extra reads.
type SecurityEventPayload struct {
	EventID     string          `json:"event_id"`
	DeviceID    *string         `json:"device_id,omitempty"`
	DeviceName  *string         `json:"device_name,omitempty"`
	EventType   string          `json:"event_type"`
	Severity    domain.Severity `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Rule        *string         `json:"rule_triggered,omitempty"`
}

// NewSecurityEventPayload snapshots ev.
func NewSecurityEventPayload(ev *domain.SecurityEvent, deviceName *string) SecurityEventPayload {
	return SecurityEventPayload{
		EventID:     ev.ID,
		DeviceID:    ev.DeviceID,
		DeviceName:  deviceName,
		EventType:   ev.EventType,
		Severity:    ev.Severity,
		Title:       ev.Title,
		Description: ev.Description,
		Rule:        ev.RuleTriggered,
	}
}

// SubscriptionPayload describes a subscription transition.
type SubscriptionPayload struct {
	OldTier      domain.Tier               `json:"old_tier"`
	NewTier      domain.Tier               `json:"new_tier"`
	Status       domain.SubscriptionStatus `json:"status"`
	BillingCycle domain.BillingCycle       `json:"billing_cycle,omitempty"`
	Amount       int                       `json:"amount,omitempty"`
	EndDate      *time.Time                `json:"end_date,omitempty"`
}
