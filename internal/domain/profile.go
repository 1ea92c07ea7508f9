package domain

import "time"

// ProfileRetention is how long a healing profile is kept in the memory store.
const ProfileRetention = 90 * 24 * time.Hour

// ScopeKind selects which signals an assessment inspects.
type ScopeKind string

const (
	ScopeFull        ScopeKind = "full"
	ScopeIncremental ScopeKind = "incremental"
	ScopeServices    ScopeKind = "specific-services"
)

// Scope bounds one assessment.
type Scope struct {
	Kind     ScopeKind `json:"kind"`
	Services []string  `json:"services,omitempty"`
}

// Includes reports whether a service is inside the scope. Non-service
// scopes include everything.
func (s Scope) Includes(service string) bool {
	if s.Kind != ScopeServices || len(s.Services) == 0 {
		return true
	}
	for _, svc := range s.Services {
		if svc == service {
			return true
		}
	}
	return false
}

// Recommendation is an operator-facing suggestion derived from an assessment.
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Severity `json:"priority"`
	Category    string   `json:"category"`
}

// ProfileMetadata records how an assessment was run.
type ProfileMetadata struct {
	AutoHealEnabled   bool          `json:"auto_heal_enabled"`
	LearningEnabled   bool          `json:"learning_enabled"`
	PredictiveEnabled bool          `json:"predictive_enabled"`
	Scope             Scope         `json:"scope"`
	Retention         time.Duration `json:"retention"`
	Duration          time.Duration `json:"duration"`
}

// HealingProfile is the full record of one assessment. It owns its nested
// entities by value.
type HealingProfile struct {
	ID              string             `json:"id"`
	SystemName      string             `json:"system_name"`
	Timestamp       time.Time          `json:"timestamp"`
	HealthScore     int                `json:"health_score"`
	Incidents       []HealthIncident   `json:"incidents"`
	Actions         []HealingAction    `json:"actions"`
	Patterns        []ErrorPattern     `json:"patterns"`
	Predictions     []HealthPrediction `json:"predictions"`
	Strategies      []RecoveryStrategy `json:"strategies"`
	Metrics         SystemMetrics      `json:"metrics"`
	Recommendations []Recommendation   `json:"recommendations"`
	Metadata        ProfileMetadata    `json:"metadata"`
}

// ActiveIncidents returns the incidents that are still active or healing.
func (p HealingProfile) ActiveIncidents() []HealthIncident {
	var out []HealthIncident
	for _, inc := range p.Incidents {
		if !inc.Status.IsTerminal() {
			out = append(out, inc)
		}
	}
	return out
}

// HealedCount counts incidents resolved during the assessment.
func (p HealingProfile) HealedCount() int {
	n := 0
	for _, inc := range p.Incidents {
		if inc.Status == StatusResolved {
			n++
		}
	}
	return n
}

// ProfileKey is the memory-store key for a healing profile.
func ProfileKey(id string) string {
	return "healing_profile_" + id
}
