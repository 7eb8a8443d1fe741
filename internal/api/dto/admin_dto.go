package dto

import (
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

// AdminSubscriptionRequest overrides a user's tier and/or status.
type AdminSubscriptionRequest struct {
	SubscriptionTier   *string `json:"subscription_tier" validate:"omitempty,oneof=free personal pro enterprise"`
	SubscriptionStatus *string `json:"subscription_status" validate:"omitempty"`
}

// CreateSecurityEventRequest records an event by hand.
type CreateSecurityEventRequest struct {
	UserID        string  `json:"user_id" validate:"required,uuid"`
	DeviceID      *string `json:"device_id" validate:"omitempty,uuid"`
	EventType     string  `json:"event_type" validate:"required,max=50"`
	Severity      string  `json:"severity" validate:"required"`
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"required"`
	RuleTriggered *string `json:"rule_triggered" validate:"omitempty,max=100"`
	SourceIP      *string `json:"source_ip" validate:"omitempty,ip"`
	DestinationIP *string `json:"destination_ip" validate:"omitempty,ip"`
	FilePath      *string `json:"file_path" validate:"omitempty,max=500"`
	ProcessName   *string `json:"process_name" validate:"omitempty,max=100"`
}

// SettingUpdateRequest writes one system setting.
type SettingUpdateRequest struct {
	Value       string `json:"value" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

// PaginationResponse describes a page of results.
type PaginationResponse struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// DashboardStatsResponse summarises the installation.
type DashboardStatsResponse struct {
	TotalUsers        int            `json:"total_users"`
	ActiveUsers       int            `json:"active_users"`
	TotalDevices      int            `json:"total_devices"`
	OnlineDevices     int            `json:"online_devices"`
	SubscriptionStats map[string]int `json:"subscription_stats"`
	MonthlyRevenue    int            `json:"monthly_revenue"`
	RecentEvents      int            `json:"recent_events"`
	CriticalEvents    int            `json:"critical_events"`
	NewUsersThisMonth int            `json:"new_users_this_month"`
}

// UserDetailsResponse is a user with devices and latest activity.
type UserDetailsResponse struct {
	User         UserResponse            `json:"user"`
	Devices      []DeviceResponse        `json:"devices"`
	Events       []SecurityEventResponse `json:"recent_events"`
	ActivityLogs []ActivityLogResponse   `json:"recent_activity"`
}

// ActivityLogResponse is one audit entry.
type ActivityLogResponse struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IPAddress   *string   `json:"ip_address"`
	UserAgent   *string   `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
}

// SettingResponse is one system setting row.
type SettingResponse struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewActivityLogResponses maps audit entries.
func NewActivityLogResponses(logs []domain.ActivityLog) []ActivityLogResponse {
	out := make([]ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, ActivityLogResponse{
			ID:          l.ID,
			UserID:      l.UserID,
			Username:    l.Username,
			Action:      l.Action,
			Description: l.Description,
			IPAddress:   l.IPAddress,
			UserAgent:   l.UserAgent,
			CreatedAt:   l.CreatedAt,
		})
	}
	return out
}

// NewSettingResponse maps a settings row.
func NewSettingResponse(s *domain.SystemSetting) SettingResponse {
	return SettingResponse{Key: s.Key, Value: s.Value, Description: s.Description, UpdatedAt: s.UpdatedAt}
}
