package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EntriesAppended counts entries committed to the ledger
	EntriesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "entries_appended_total",
			Help:      "Total number of entries committed to the ledger",
		},
	)

	// AppendErrors counts failed or timed-out append attempts
	AppendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "append_errors_total",
			Help:      "Total number of append attempts that failed or timed out",
		},
	)

	// VerifyFailures counts integrity violations found by verification
	VerifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "verify_failures_total",
			Help:      "Total number of integrity violations detected during verification",
		},
	)

	// RuleMatches counts policy rule matches per rule
	RuleMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "rule_matches_total",
			Help:      "Total number of rule matches during evaluation",
		},
		[]string{"rule"},
	)

	// RuleWarnings counts malformed-condition diagnostics
	RuleWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "rule_warnings_total",
			Help:      "Total number of malformed rule conditions reported",
		},
	)

	// AlertsOpened counts newly opened alerts by severity
	AlertsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "alerts_opened_total",
			Help:      "Total number of alerts opened",
		},
		[]string{"severity"},
	)

	// AlertsCorrelated counts matches folded into existing alerts
	AlertsCorrelated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "alerts_correlated_total",
			Help:      "Total number of matches folded into an existing alert",
		},
	)

	// EventsPublished counts broadcast events by type
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "events_published_total",
			Help:      "Total number of events published to subscribers",
		},
		[]string{"type"},
	)

	// EventsDropped counts events shed by overflowing subscriber buffers
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auditchain",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped due to subscriber buffer overflow",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// This function is idempotent and can be called multiple times safely.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(EntriesAppended)
		prometheus.DefaultRegisterer.Register(AppendErrors)
		prometheus.DefaultRegisterer.Register(VerifyFailures)
		prometheus.DefaultRegisterer.Register(RuleMatches)
		prometheus.DefaultRegisterer.Register(RuleWarnings)
		prometheus.DefaultRegisterer.Register(AlertsOpened)
		prometheus.DefaultRegisterer.Register(AlertsCorrelated)
		prometheus.DefaultRegisterer.Register(EventsPublished)
		prometheus.DefaultRegisterer.Register(EventsDropped)
	})
}
