package domain

import (
	"strconv"
	"strings"
	"time"
)

// Known system setting keys.
const (
	SettingCompanyName               = "company_name"
	SettingSupportEmail              = "support_email"
	SettingPaymentLink               = "paypal_link"
	SettingEmailNotificationsEnabled = "email_notifications_enabled"
)

// SystemSetting is a raw key/value row. Last write wins.
type SystemSetting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// Settings is the typed view of the settings table.
type Settings struct {
	CompanyName               string
	SupportEmail              string
	PaymentLink               string
	EmailNotificationsEnabled bool
}

// SettingDescriptions documents each known key; it doubles as the allow-list.
var SettingDescriptions = map[string]string{
	SettingCompanyName:               "Company name displayed in the application",
	SettingSupportEmail:              "Support email address",
	SettingPaymentLink:               "Payment link used to build checkout URLs",
	SettingEmailNotificationsEnabled: "Enable email notifications for security events",
}

// KnownSetting reports whether key is part of the typed settings record.
func KnownSetting(key string) bool {
	_, ok := SettingDescriptions[key]
	return ok
}

// Apply overlays raw rows on top of s. Unknown keys and unparsable booleans
// are ignored so a bad row never hides the default.
func (s Settings) Apply(rows []SystemSetting) Settings {
	for _, row := range rows {
		switch row.Key {
		case SettingCompanyName:
			s.CompanyName = row.Value
		case SettingSupportEmail:
			s.SupportEmail = row.Value
		case SettingPaymentLink:
			s.PaymentLink = strings.TrimRight(row.Value, "/")
		case SettingEmailNotificationsEnabled:
			if v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(row.Value))); err == nil {
				s.EmailNotificationsEnabled = v
			}
		}
	}
	return s
}

// Rows renders s back to key/value rows.
func (s Settings) Rows() []SystemSetting {
	return []SystemSetting{
		{Key: SettingCompanyName, Value: s.CompanyName, Description: SettingDescriptions[SettingCompanyName]},
		{Key: SettingSupportEmail, Value: s.SupportEmail, Description: SettingDescriptions[SettingSupportEmail]},
		{Key: SettingPaymentLink, Value: s.PaymentLink, Description: SettingDescriptions[SettingPaymentLink]},
		{Key: SettingEmailNotificationsEnabled, Value: strconv.FormatBool(s.EmailNotificationsEnabled), Description: SettingDescriptions[SettingEmailNotificationsEnabled]},
	}
}
