// Package health computes the platform health score and runs the periodic
// availability monitor.
//
// Score formula (0-100):
//
//	s = 100
//	s = min(s, current/target × 40)           availability term
//	s += max(0, 30 − errorRate × 6)          performance term
//	s += max(0, 30 − Σ severity weights)     incident term (active only)
//	round, then clamp to [0, 100]
//
// A healthy platform with no incidents scores 97 at 99.9% of a 99.9% target
// and 0.5% errors; one critical incident drops that to 87.
package health

import (
	"math"

	"github.com/tutu-network/vitals/internal/domain"
)

// SeverityWeights are the incident-term penalties per active incident.
type SeverityWeights map[domain.Severity]float64

// DefaultSeverityWeights returns critical 10, high 5, medium 2, low 1.
func DefaultSeverityWeights() SeverityWeights {
	return SeverityWeights{
		domain.SeverityCritical: 10,
		domain.SeverityHigh:     5,
		domain.SeverityMedium:   2,
		domain.SeverityLow:      1,
	}
}

// Score computes the health score. It is pure.
func Score(m domain.SystemMetrics, incidents []domain.HealthIncident, weights SeverityWeights) int {
	if weights == nil {
		weights = DefaultSeverityWeights()
	}

	current := math.Max(0, m.Availability.Current)
	ratio := 1.0
	if m.Availability.Target > 0 {
		ratio = current / m.Availability.Target
	}

	s := 100.0
	s = math.Min(s, ratio*40)
	s += math.Max(0, 30-m.Performance.ErrorRate*6)

	var penalty float64
	for _, inc := range incidents {
		if inc.Status == domain.StatusActive {
			penalty += weights[inc.Severity]
		}
	}
	s += math.Max(0, 30-penalty)

	score := int(math.Round(s))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Status labels.
const (
	LabelHealthy  = "Healthy"
	LabelDegraded = "Degraded"
	LabelCritical = "Critical"
)

// Label maps a score to a dashboard label: ≥90 Healthy, ≥70 Degraded,
// otherwise Critical.
func Label(score int) string {
	switch {
	case score >= 90:
		return LabelHealthy
	case score >= 70:
		return LabelDegraded
	default:
		return LabelCritical
	}
}
