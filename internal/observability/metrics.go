package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus collectors for the service. All methods are
// safe on a nil receiver.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	quotaDenials    *prometheus.CounterVec
	scans           *prometheus.CounterVec
	securityEvents  *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	payments        *prometheus.CounterVec
	expirations     prometheus.Counter
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shield",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		quotaDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "entitlement",
			Name:      "quota_denials_total",
			Help:      "Writes rejected by tier quota.",
		}, []string{"resource", "tier"}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "devices",
			Name:      "scans_total",
			Help:      "Completed device scans by resulting alert severity.",
		}, []string{"alert"}),
		securityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "security",
			Name:      "events_total",
			Help:      "Security events recorded by type and severity.",
		}, []string{"event_type", "severity"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Payment lifecycle transitions by stage and plan.",
		}, []string{"stage", "plan"}),
		expirations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shield",
			Subsystem: "billing",
			Name:      "subscriptions_expired_total",
			Help:      "Lapsed subscriptions downgraded to free.",
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

func (m *Metrics) QuotaDenied(resource, tier string) {
	if m == nil {
		return
	}
	m.quotaDenials.WithLabelValues(resource, tier).Inc()
}

func (m *Metrics) ScanCompleted(alert string) {
	if m == nil {
		return
	}
	if alert == "" {
		alert = "none"
	}
	m.scans.WithLabelValues(alert).Inc()
}

func (m *Metrics) SecurityEventRecorded(eventType, severity string) {
	if m == nil {
		return
	}
	m.securityEvents.WithLabelValues(eventType, severity).Inc()
}

func (m *Metrics) NotificationSent(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// PaymentStage counts initiated, confirmed, expired and cancelled payments.
func (m *Metrics) PaymentStage(stage, plan string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(stage, plan).Inc()
}

func (m *Metrics) SubscriptionsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expirations.Add(float64(n))
}
