package notification

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/spec-kit/shield-service/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.New("").Funcs(htmltemplate.FuncMap{
		"upper": strings.ToUpper,
	}).ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.New("").Funcs(texttemplate.FuncMap{
		"upper": strings.ToUpper,
	}).ParseFS(templateFS, "templates/*.txt"))
)

// Branding is the per-installation text shown in every email.
type Branding struct {
	CompanyName  string
	SupportEmail string
}

// AlertData feeds the security alert templates.
type AlertData struct {
	Branding
	RecipientName string
	Title         string
	Severity      domain.Severity
	DeviceName    string
	EventType     string
	Rule          string
	Description   string
	OccurredAt    string
}

// WelcomeData feeds the welcome templates.
type WelcomeData struct {
	Branding
	RecipientName string
}

// NewAlertData flattens an event for rendering. Missing optional fields
// render as "N/A".
func NewAlertData(b Branding, user *domain.User, deviceName *string, ev *domain.SecurityEvent) AlertData {
	device := "Unknown Device"
	if deviceName != nil && *deviceName != "" {
		device = *deviceName
	}
	rule := "N/A"
	if ev.RuleTriggered != nil && *ev.RuleTriggered != "" {
		rule = *ev.RuleTriggered
	}
	at := ev.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	return AlertData{
		Branding:      b,
		RecipientName: user.FullName(),
		Title:         ev.Title,
		Severity:      ev.Severity,
		DeviceName:    device,
		EventType:     ev.EventType,
		Rule:          rule,
		Description:   ev.Description,
		OccurredAt:    at.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
}

// RenderSecurityAlert builds the alert email for to.
func RenderSecurityAlert(to string, data AlertData) (Message, error) {
	return render(to, fmt.Sprintf("%s Alert: %s", data.CompanyName, data.Title), "security_alert", data)
}

// RenderWelcome builds the registration email for to.
func RenderWelcome(to string, data WelcomeData) (Message, error) {
	return render(to, fmt.Sprintf("Welcome to %s", data.CompanyName), "welcome", data)
}

func render(to, subject, name string, data any) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}
	return Message{To: to, Subject: subject, HTML: html.String(), Text: text.String()}, nil
}
