// Package domain holds the incident-response model shared by every layer.
//
// Key concepts:
//
//   - Incident: an anomaly detected on the monitored platform. It moves through
//     a small state machine: active → healing → resolved, or → escalated when
//     automatic remediation gives up.
//
//   - Root cause: the best guess at why an incident happened, with the
//     evidence that supports it. Attached at most once.
//
//   - Healing action: an ordered list of steps instantiated from a recovery
//     strategy and executed against one incident.
//
//   - Healing profile: the record of one assessment (incidents, actions,
//     patterns, predictions, score). Persisted with a 90-day retention.
//
// Domain types are pure: no infrastructure dependency.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Incident Classification ────────────────────────────────────────────────

// IncidentType classifies what kind of problem an incident describes.
type IncidentType string

const (
	IncidentError         IncidentType = "error"
	IncidentPerformance   IncidentType = "performance"
	IncidentAvailability  IncidentType = "availability"
	IncidentSecurity      IncidentType = "security"
	IncidentDataIntegrity IncidentType = "data-integrity"
)

// AllIncidentTypes returns every incident type in a stable order.
func AllIncidentTypes() []IncidentType {
	return []IncidentType{
		IncidentError, IncidentPerformance, IncidentAvailability,
		IncidentSecurity, IncidentDataIntegrity,
	}
}

// IsValid reports whether t is a known incident type.
func (t IncidentType) IsValid() bool {
	for _, known := range AllIncidentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Severity ranks how urgent an incident, prediction, or recommendation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities: critical=4 … low=1, unknown=0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps a free-form level string onto a severity.
// Unknown input yields SeverityLow.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ─── Incident Lifecycle ─────────────────────────────────────────────────────

// IncidentStatus tracks where an incident is in its lifecycle.
type IncidentStatus string

const (
	StatusActive    IncidentStatus = "active"
	StatusHealing   IncidentStatus = "healing"
	StatusResolved  IncidentStatus = "resolved"
	StatusEscalated IncidentStatus = "escalated"
)

// IsTerminal returns true once an incident is resolved or escalated.
func (s IncidentStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusEscalated
}

// CanTransition reports whether moving from s to next is legal.
//
//	active  → healing | escalated
//	healing → resolved | active (retry) | escalated
func (s IncidentStatus) CanTransition(next IncidentStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusHealing || next == StatusEscalated
	case StatusHealing:
		return next == StatusResolved || next == StatusActive || next == StatusEscalated
	default:
		return false
	}
}

// ─── Incident ───────────────────────────────────────────────────────────────

// Impact describes the blast radius of an incident.
type Impact struct {
	AffectedUsers          int           `json:"affected_users"`
	AffectedServices       []string      `json:"affected_services,omitempty"`
	Availability           float64       `json:"availability"`            // percent, as observed
	PerformanceDegradation float64       `json:"performance_degradation"` // percent
	DataLoss               bool          `json:"data_loss"`
	Duration               time.Duration `json:"duration"`
}

// HealthIncident is a single detected problem.
type HealthIncident struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Source           string            `json:"source"`
	Type             IncidentType      `json:"type"`
	Severity         Severity          `json:"severity"`
	DetectedAt       time.Time         `json:"detected_at"`
	Status           IncidentStatus    `json:"status"`
	RootCause        *RootCause        `json:"root_cause,omitempty"`
	Impact           Impact            `json:"impact"`
	HealingAttempts  int               `json:"healing_attempts"`
	ResolvedAt       time.Time         `json:"resolved_at,omitempty"`
	ResolutionMethod HealingActionType `json:"resolution_method,omitempty"`
}

// Transition moves the incident to next, enforcing the lifecycle.
func (i *HealthIncident) Transition(next IncidentStatus) error {
	if !i.Status.CanTransition(next) {
		return fmt.Errorf("incident %s: %s → %s: %w", i.ID, i.Status, next, ErrInvalidTransition)
	}
	i.Status = next
	return nil
}

// Resolve marks the incident resolved by the given action type.
// ResolvedAt is never earlier than DetectedAt.
func (i *HealthIncident) Resolve(method HealingActionType, at time.Time) error {
	if err := i.Transition(StatusResolved); err != nil {
		return err
	}
	if at.Before(i.DetectedAt) {
		at = i.DetectedAt
	}
	i.ResolvedAt = at
	i.ResolutionMethod = method
	i.Impact.Duration = at.Sub(i.DetectedAt)
	return nil
}

// AttachRootCause sets the root cause once. Later calls are ignored and
// report false.
func (i *HealthIncident) AttachRootCause(rc RootCause) bool {
	if i.RootCause != nil {
		return false
	}
	i.RootCause = &rc
	return true
}

// Clone returns a deep copy so callers never share nested pointers.
func (i HealthIncident) Clone() HealthIncident {
	out := i
	if i.RootCause != nil {
		rc := *i.RootCause
		rc.Evidence = append([]Evidence(nil), i.RootCause.Evidence...)
		rc.RelatedIncidents = append([]string(nil), i.RootCause.RelatedIncidents...)
		out.RootCause = &rc
	}
	out.Impact.AffectedServices = append([]string(nil), i.Impact.AffectedServices...)
	return out
}

// ─── Root Cause ─────────────────────────────────────────────────────────────

// RootCauseCategory classifies the origin of an incident.
type RootCauseCategory string

const (
	CauseCode          RootCauseCategory = "code"
	CauseConfiguration RootCauseCategory = "configuration"
	CauseResource      RootCauseCategory = "resource"
	CauseExternal      RootCauseCategory = "external"
	CauseData          RootCauseCategory = "data"
	CauseNetwork       RootCauseCategory = "network"
)

// Evidence is one observation supporting a root-cause hypothesis.
type Evidence struct {
	Source     string    `json:"source"` // e.g. "event_log", "platform_state", "incident_history"
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	ObservedAt time.Time `json:"observed_at"`
}

// RootCause is the inferred origin of an incident.
type RootCause struct {
	Category         RootCauseCategory `json:"category"`
	Description      string            `json:"description"`
	Confidence       float64           `json:"confidence"` // 0.0 - 1.0
	Evidence         []Evidence        `json:"evidence"`
	RelatedIncidents []string          `json:"related_incidents,omitempty"`
	Preventable      bool              `json:"preventable"`
}
