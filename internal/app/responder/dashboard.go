package responder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/health"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/scheduler"
	"github.com/tutu-network/vitals/internal/infra/selfheal"
)

// Dashboard limits.
const (
	DashboardRecentActions   = 5
	DashboardRecommendations = 3
	DashboardPredictionFloor = 0.6
)

// Dashboard is the operator overview.
type Dashboard struct {
	SystemHealth       string                    `json:"system_health"`
	Score              int                       `json:"score"`
	ActiveIncidents    []domain.HealthIncident   `json:"active_incidents"`
	RecentActions      []domain.HealingAction    `json:"recent_actions"`
	Metrics            domain.SystemMetrics      `json:"metrics"`
	Predictions        []domain.HealthPrediction `json:"predictions"`
	TopRecommendations []domain.Recommendation   `json:"top_recommendations"`
	MonitoringActive   bool                      `json:"monitoring_active"`
	AutonomousRunning  bool                      `json:"autonomous_running"`
	LastAssessment     time.Time                 `json:"last_assessment,omitempty"`
	IncidentStats      selfheal.Stats            `json:"incident_stats"`
	Scheduler          scheduler.Stats           `json:"scheduler"`
	Breakers           []healing.Snapshot        `json:"breakers"`
}

// GetHealthDashboard scores the current state. When live metrics are
// unavailable it falls back to the last assessment's metrics, and fails only
// if there is none.
func (r *Responder) GetHealthDashboard(ctx context.Context) (Dashboard, error) {
	m, collectErr := r.deps.Collector.Collect(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if collectErr != nil {
		if r.last == nil {
			return Dashboard{}, fmt.Errorf("dashboard: %w", collectErr)
		}
		m = r.last.Metrics
	}

	active := r.deps.Index.Active()
	score := health.Score(m, active, r.cfg.Weights)

	var (
		patterns    []domain.ErrorPattern
		predictions []domain.HealthPrediction
		lastAt      time.Time
	)
	if r.last != nil {
		patterns = r.last.Patterns
		lastAt = r.last.Timestamp
		for _, p := range r.last.Predictions {
			if p.Probability > DashboardPredictionFloor {
				predictions = append(predictions, p)
			}
		}
	}

	recs := Recommend(active, patterns, predictions, m)
	if len(recs) > DashboardRecommendations {
		recs = recs[:DashboardRecommendations]
	}

	return Dashboard{
		SystemHealth:       health.Label(score),
		Score:              score,
		ActiveIncidents:    active,
		RecentActions:      r.recentLocked(DashboardRecentActions),
		Metrics:            m,
		Predictions:        predictions,
		TopRecommendations: recs,
		MonitoringActive:   r.sched.MonitoringActive(),
		AutonomousRunning:  r.sched.Running(),
		LastAssessment:     lastAt,
		IncidentStats:      r.deps.Index.Stats(),
		Scheduler:          r.sched.Stats(),
		Breakers:           r.deps.Executor.Breakers().Snapshots(),
	}, nil
}

// ─── Warnings & Recommendations ─────────────────────────────────────────────

// Warnings lists conditions an operator should see next to a result.
func Warnings(incidents []domain.HealthIncident, m domain.SystemMetrics) []string {
	var out []string
	critical := 0
	for _, inc := range incidents {
		if inc.Severity == domain.SeverityCritical && !inc.Status.IsTerminal() {
			critical++
		}
	}
	if critical > 0 {
		out = append(out, fmt.Sprintf("%d critical incident(s) active", critical))
	}
	if m.Availability.Target > 0 && m.Availability.Current < m.Availability.Target {
		out = append(out, fmt.Sprintf("availability %.2f%% below target %.2f%%",
			m.Availability.Current, m.Availability.Target))
	}
	return out
}

// Recommendation thresholds.
const (
	recErrorRate     = 1.0 // percent
	recCapacity      = 80.0
	recPatternRepeat = 3
	recPredictUrgent = 0.8
)

// Recommend derives operator recommendations, most urgent first.
func Recommend(incidents []domain.HealthIncident, patterns []domain.ErrorPattern,
	predictions []domain.HealthPrediction, m domain.SystemMetrics) []domain.Recommendation {
	var out []domain.Recommendation

	var critical, escalated int
	for _, inc := range incidents {
		switch {
		case inc.Status == domain.StatusEscalated:
			escalated++
		case inc.Severity == domain.SeverityCritical && !inc.Status.IsTerminal():
			critical++
		}
	}
	if critical > 0 {
		out = append(out, domain.Recommendation{
			Title:       "Resolve critical incidents",
			Description: fmt.Sprintf("%d critical incident(s) are still open", critical),
			Priority:    domain.SeverityCritical,
			Category:    "incident",
		})
	}
	if escalated > 0 {
		out = append(out, domain.Recommendation{
			Title:       "Review escalated incidents",
			Description: fmt.Sprintf("%d incident(s) exhausted automatic healing", escalated),
			Priority:    domain.SeverityHigh,
			Category:    "incident",
		})
	}

	if m.Availability.Target > 0 && m.Availability.Current < m.Availability.Target {
		out = append(out, domain.Recommendation{
			Title: "Restore availability",
			Description: fmt.Sprintf("availability %.2f%% is below the %.2f%% target",
				m.Availability.Current, m.Availability.Target),
			Priority: domain.SeverityHigh,
			Category: "availability",
		})
	}
	if m.Performance.ErrorRate > recErrorRate {
		out = append(out, domain.Recommendation{
			Title:       "Reduce error rate",
			Description: fmt.Sprintf("error rate is %.2f%%", m.Performance.ErrorRate),
			Priority:    domain.SeverityMedium,
			Category:    "performance",
		})
	}
	for _, r := range m.Capacity.Resources() {
		if r.Metric.Used >= recCapacity {
			out = append(out, domain.Recommendation{
				Title:       "Add " + r.Name + " capacity",
				Description: fmt.Sprintf("%s usage is %.1f%%", r.Name, r.Metric.Used),
				Priority:    domain.SeverityHigh,
				Category:    "capacity",
			})
		}
	}

	for _, p := range patterns {
		if p.AutoHealable || p.Occurrences < recPatternRepeat {
			continue
		}
		out = append(out, domain.Recommendation{
			Title: fmt.Sprintf("Investigate recurring %s incidents", p.PrimaryType()),
			Description: fmt.Sprintf("%d %s occurrences (%s); keywords: %s",
				p.Occurrences, p.Signature.Severity, p.Signature.Frequency, strings.Join(p.Signature.Keywords, ", ")),
			Priority: domain.SeverityMedium,
			Category: "pattern",
		})
	}

	for _, p := range predictions {
		if p.Probability <= recPredictUrgent {
			continue
		}
		out = append(out, domain.Recommendation{
			Title: fmt.Sprintf("Prevent %s on %s", p.Type, p.Target),
			Description: fmt.Sprintf("%.0f%% probability within %s",
				p.Probability*100, p.Timeframe.Label),
			Priority: p.Impact,
			Category: "prediction",
		})
	}

	if len(out) == 0 {
		out = append(out, domain.Recommendation{
			Title:       "No action required",
			Description: "all signals are within thresholds",
			Priority:    domain.SeverityLow,
			Category:    "general",
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}
