// Package observability holds the Prometheus metrics of the settlement core
// and the in-memory alert log that backs the operational integrity endpoint.
//
// Metrics are package-level promauto collectors registered on the default
// registry; /metrics serves them when enabled.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Alerts - conditions that must reach an operator, never a member
// ═══════════════════════════════════════════════════════════════════════════

// AlertKind classifies an alert.
type AlertKind string

const (
	AlertIntegrityMismatch AlertKind = "ledger.integrity_mismatch"
	AlertNotificationDrop  AlertKind = "notify.dropped"
)

// Alert is one recorded operational condition.
type Alert struct {
	Kind     AlertKind         `json:"kind"`
	MemberID string            `json:"member_id,omitempty"`
	Message  string            `json:"message"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	At       time.Time         `json:"at"`
}

// AlertLog is a bounded ring of recent alerts.
type AlertLog struct {
	mu      sync.Mutex
	alerts  []Alert
	max     int
	now     func() time.Time
	counter *prometheus.CounterVec
}

// AlertLogConfig configures an AlertLog.
type AlertLogConfig struct {
	MaxAlerts int // ring buffer size (default 1_000)
}

// DefaultAlertLogConfig returns production defaults.
func DefaultAlertLogConfig() AlertLogConfig {
	return AlertLogConfig{MaxAlerts: 1_000}
}

// NewAlertLog creates an empty alert log.
func NewAlertLog(cfg AlertLogConfig) *AlertLog {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultAlertLogConfig().MaxAlerts
	}
	return &AlertLog{
		alerts:  make([]Alert, 0, cfg.MaxAlerts),
		max:     cfg.MaxAlerts,
		now:     time.Now,
		counter: AlertsRaised,
	}
}

// Raise records an alert. A nil log discards it.
func (l *AlertLog) Raise(a Alert) {
	if l == nil {
		return
	}
	if a.At.IsZero() {
		a.At = l.now().UTC()
	}
	l.counter.WithLabelValues(string(a.Kind)).Inc()

	l.mu.Lock()
	defer l.mu.Unlock()
	// Ring buffer: drop the oldest when full
	if len(l.alerts) >= l.max {
		l.alerts = l.alerts[1:]
	}
	l.alerts = append(l.alerts, a)
}

// Recent returns up to limit alerts, newest last.
func (l *AlertLog) Recent(limit int) []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.alerts) {
		limit = len(l.alerts)
	}
	start := len(l.alerts) - limit
	out := make([]Alert, limit)
	copy(out, l.alerts[start:])
	return out
}

// Len returns the number of retained alerts.
func (l *AlertLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.alerts)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

const namespace = "timebank"

// ─── Commitment Metrics ─────────────────────────────────────────────────────

// CommitmentTransitions counts successful state transitions by target state.
var CommitmentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commitment",
	Name:      "transitions_total",
	Help:      "Total commitment state transitions by target state.",
}, []string{"to"})

// CapacityRejections counts acceptances and proposals refused for lack of room.
var CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "commitment",
	Name:      "capacity_rejections_total",
	Help:      "Total proposals or acceptances refused because the listing was full.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// Transfer results.
const (
	TransferPosted    = "posted"
	TransferCeiling   = "ceiling"
	TransferDuplicate = "duplicate"
	TransferInvalid   = "invalid"
	TransferFailed    = "failed"
)

// Transfers counts transfer attempts by result.
var Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "transfers_total",
	Help:      "Total transfer attempts by result.",
}, []string{"result"})

// HoursDebited is the total hours debited from payers.
var HoursDebited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "hours_debited_total",
	Help:      "Total hours debited from payers by transfers.",
})

// HoursCredited is the total hours credited to payees. It trails HoursDebited
// by the per-head debits of group sessions.
var HoursCredited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "hours_credited_total",
	Help:      "Total hours credited to payees by transfers.",
})

// IntegrityMismatches counts members whose ledger failed verification.
var IntegrityMismatches = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "integrity_mismatch_total",
	Help:      "Total ledger integrity mismatches found by verification.",
})

// ─── Feedback Metrics ───────────────────────────────────────────────────────

// Reveal paths.
const (
	RevealMutual  = "mutual"
	RevealTimeout = "timeout"
)

// RatingsSubmitted counts accepted rating submissions.
var RatingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "feedback",
	Name:      "ratings_submitted_total",
	Help:      "Total ratings submitted.",
})

// RatingsRevealed counts ratings made visible by path.
var RatingsRevealed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "feedback",
	Name:      "ratings_revealed_total",
	Help:      "Total ratings revealed by path (mutual, timeout).",
}, []string{"path"})

// SweepRuns counts visibility sweep executions.
var SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "feedback",
	Name:      "sweep_runs_total",
	Help:      "Total visibility sweep runs.",
})

// ─── Notification Metrics ───────────────────────────────────────────────────

// NotificationsDelivered counts notifications handed to a sink.
var NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notify",
	Name:      "delivered_total",
	Help:      "Total notifications delivered to the sink.",
})

// NotificationsDropped counts notifications discarded because the buffer was full.
var NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "notify",
	Name:      "dropped_total",
	Help:      "Total notifications dropped because the queue was full.",
})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPRequests counts API requests.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPLatency tracks API request duration.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// ─── Alert Metrics ──────────────────────────────────────────────────────────

// AlertsRaised counts operational alerts by kind.
var AlertsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "alerts",
	Name:      "raised_total",
	Help:      "Total operational alerts raised by kind.",
}, []string{"kind"})
