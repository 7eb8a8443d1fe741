package domain

import "time"

// ActivityLog is an append-only audit entry. UserID is nil for anonymous
// actions such as failed logins.
type ActivityLog struct {
	ID          string
	UserID      *string
	Action      string
	Description string
	IPAddress   *string
	UserAgent   *string
	CreatedAt   time.Time

	// Username is populated on reads; empty for system entries.
	Username string
}

// RequestMeta carries caller network details into the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Audit actions.
const (
	ActionUserRegistration      = "user_registration"
	ActionLoginSuccess          = "login_success"
	ActionLoginFailed           = "login_failed"
	ActionProfileUpdate         = "profile_update"
	ActionPasswordChange        = "password_change"
	ActionDeviceAdded           = "device_added"
	ActionDeviceUpdated         = "device_updated"
	ActionDeviceDeleted         = "device_deleted"
	ActionDeviceStatusUpdated   = "device_status_updated"
	ActionDeviceScanInitiated   = "device_scan_initiated"
	ActionPaymentInitiated      = "payment_initiated"
	ActionSubscriptionActivated = "subscription_activated"
	ActionSubscriptionCancelled = "subscription_cancelled"
	ActionSubscriptionExpired   = "subscription_expired"
	ActionSecurityEventUpdated  = "security_event_status_updated"
	ActionSecurityAlertEmail    = "security_alert_email_sent"
	ActionWelcomeEmail          = "welcome_email_sent"
	ActionAdminSubscription     = "admin_subscription_update"
	ActionAdminUserActivated    = "admin_user_activated"
	ActionAdminUserDeactivated  = "admin_user_deactivated"
	ActionAdminSecurityEvent    = "admin_security_event_created"
	ActionAdminSettingUpdated   = "admin_system_setting_updated"
)
