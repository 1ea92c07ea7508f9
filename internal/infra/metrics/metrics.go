// Package metrics provides Prometheus metrics for Vitals.
// Counters, gauges and histograms for detection, healing, scoring, the
// autonomous loop and calls to the monitored platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Detection ──────────────────────────────────────────────────────────────

// IncidentsDetected tracks incidents raised by type and severity.
var IncidentsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "incidents_detected_total",
	Help:      "Total incidents detected.",
}, []string{"type", "severity"})

// IncidentsActive tracks incidents currently active or healing.
var IncidentsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "vitals",
	Name:      "incidents_active",
	Help:      "Number of incidents currently active or healing.",
})

// PredictionsGenerated tracks forecasts by prediction type.
var PredictionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "predictions_generated_total",
	Help:      "Total health predictions generated.",
}, []string{"type"})

// ─── Healing ────────────────────────────────────────────────────────────────

// HealingActions tracks finished healing actions by type and final status.
var HealingActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "healing_actions_total",
	Help:      "Total healing actions by type and final status.",
}, []string{"type", "status"})

// HealingDuration tracks how long an executed action took.
var HealingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "vitals",
	Name:      "healing_duration_seconds",
	Help:      "Healing action execution time in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
}, []string{"type"})

// BreakerState tracks each remediation target's circuit (0=closed, 1=open, 2=half-open).
var BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "vitals",
	Name:      "breaker_state",
	Help:      "Remediation circuit breaker state per target (0=closed, 1=open, 2=half-open).",
}, []string{"target"})

// RetriesScheduled tracks failed actions queued for another attempt.
var RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "retries_scheduled_total",
	Help:      "Total healing retries scheduled.",
})

// RetriesExhausted tracks actions that ran out of retries.
var RetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "retries_exhausted_total",
	Help:      "Total healing actions that exhausted their retry budget.",
})

// ─── Assessment ─────────────────────────────────────────────────────────────

// HealthScore tracks the most recent health score (0-100).
var HealthScore = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "vitals",
	Name:      "health_score",
	Help:      "Most recent health score (0-100).",
})

// Assessments tracks health checks by scope and result.
var Assessments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "assessments_total",
	Help:      "Total health assessments by scope and result.",
}, []string{"scope", "result"})

// AssessmentDuration tracks assessment wall time.
var AssessmentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "vitals",
	Name:      "assessment_duration_seconds",
	Help:      "Health assessment duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"scope"})

// CapacityUsage tracks the last observed capacity per resource (percent).
var CapacityUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "vitals",
	Name:      "capacity_usage_percent",
	Help:      "Last observed capacity usage per resource.",
}, []string{"resource"})

// ─── Autonomous Loop ────────────────────────────────────────────────────────

// AutonomousCycles tracks scheduler cycles by result.
var AutonomousCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "autonomous_cycles_total",
	Help:      "Total autonomous healing cycles by result.",
}, []string{"result"})

// SelfHeals tracks supervisor recoveries of the monitoring loop.
var SelfHeals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "self_heals_total",
	Help:      "Total self-healing recoveries of the monitoring loop.",
})

// MonitoringActive tracks whether the availability monitor is running (1/0).
var MonitoringActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "vitals",
	Name:      "monitoring_active",
	Help:      "Availability monitor state (1=active, 0=inactive).",
})

// MonitorChecks tracks availability probes by result.
var MonitorChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "monitor_checks_total",
	Help:      "Total availability probes by result (healthy, degraded, error).",
}, []string{"result"})

// ─── Platform ───────────────────────────────────────────────────────────────

// PlatformRequests tracks calls to the monitored platform's API.
var PlatformRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vitals",
	Name:      "platform_requests_total",
	Help:      "Total platform API requests by method and status code.",
}, []string{"method", "code"})

// PlatformLatency tracks platform API round-trip time.
var PlatformLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "vitals",
	Name:      "platform_latency_seconds",
	Help:      "Platform API round-trip latency.",
	Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})

// ─── Helpers ────────────────────────────────────────────────────────────────

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
