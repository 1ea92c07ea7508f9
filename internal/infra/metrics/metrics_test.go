package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

// sampleValue returns the counter or gauge value of the first sample of name
// whose labels include want.
func sampleValue(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, m := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("sample %s%v not found", name, want)
	return 0
}

func TestDetectionMetrics(t *testing.T) {
	IncidentsDetected.WithLabelValues("availability", "critical").Inc()
	IncidentsActive.Set(2)
	PredictionsGenerated.WithLabelValues("capacity").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"vitals_incidents_detected_total",
		"vitals_incidents_active",
		"vitals_predictions_generated_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHealingMetrics(t *testing.T) {
	labels := map[string]string{"type": "restart", "status": "completed"}
	HealingActions.WithLabelValues("restart", "completed").Inc()
	before := sampleValue(t, "vitals_healing_actions_total", labels)
	HealingActions.WithLabelValues("restart", "completed").Inc()
	if got := sampleValue(t, "vitals_healing_actions_total", labels); got != before+1 {
		t.Errorf("healing_actions_total = %v, want %v", got, before+1)
	}

	HealingDuration.WithLabelValues("restart").Observe(1.2)
	BreakerState.WithLabelValues("checkout").Set(1)
	RetriesScheduled.Inc()
	RetriesExhausted.Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"vitals_healing_duration_seconds",
		"vitals_breaker_state",
		"vitals_retries_scheduled_total",
		"vitals_retries_exhausted_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAssessmentMetrics(t *testing.T) {
	HealthScore.Set(87)
	if got := sampleValue(t, "vitals_health_score", nil); got != 87 {
		t.Errorf("health_score = %v, want 87", got)
	}
	Assessments.WithLabelValues("full", "success").Inc()
	AssessmentDuration.WithLabelValues("full").Observe(0.4)
	CapacityUsage.WithLabelValues("cpu").Set(55)

	names := gatheredNames(t)
	for _, name := range []string{
		"vitals_assessments_total",
		"vitals_assessment_duration_seconds",
		"vitals_capacity_usage_percent",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAutonomousMetrics(t *testing.T) {
	AutonomousCycles.WithLabelValues("error").Inc()
	SelfHeals.Inc()
	MonitoringActive.Set(BoolGauge(true))
	MonitorChecks.WithLabelValues("degraded").Inc()

	if got := sampleValue(t, "vitals_monitoring_active", nil); got != 1 {
		t.Errorf("monitoring_active = %v, want 1", got)
	}
	MonitoringActive.Set(BoolGauge(false))
	if got := sampleValue(t, "vitals_monitoring_active", nil); got != 0 {
		t.Errorf("monitoring_active = %v, want 0", got)
	}
}

func TestPlatformMetrics(t *testing.T) {
	PlatformRequests.WithLabelValues("GET", "200").Inc()
	PlatformLatency.Observe(0.05)

	names := gatheredNames(t)
	if !names["vitals_platform_requests_total"] || !names["vitals_platform_latency_seconds"] {
		t.Error("platform metrics not registered")
	}
}
