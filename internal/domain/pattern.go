package domain

import "time"

// Frequency buckets how often a pattern recurs.
type Frequency string

const (
	FrequencySporadic   Frequency = "sporadic"
	FrequencyRecurring  Frequency = "recurring"
	FrequencyPersistent Frequency = "persistent"
)

// PatternSignature identifies a family of similar incidents.
type PatternSignature struct {
	ErrorTypes   []IncidentType `json:"error_types"`
	Severity     Severity       `json:"severity"`
	Keywords     []string       `json:"keywords"`
	Frequency    Frequency      `json:"frequency"`
	Correlations []string       `json:"correlations,omitempty"`
}

// ErrorPattern is a recurring signature across two or more incidents.
type ErrorPattern struct {
	ID                 string           `json:"id"`
	Signature          PatternSignature `json:"signature"`
	Occurrences        int              `json:"occurrences"`
	LastSeen           time.Time        `json:"last_seen"`
	AvgResolutionTime  time.Duration    `json:"avg_resolution_time"`
	SuccessRate        float64          `json:"success_rate"`
	RecommendedActions []string         `json:"recommended_actions"`
	AutoHealable       bool             `json:"auto_healable"`
	IncidentIDs        []string         `json:"incident_ids"`
}

// PrimaryType returns the first incident type of the signature.
func (p ErrorPattern) PrimaryType() IncidentType {
	if len(p.Signature.ErrorTypes) == 0 {
		return ""
	}
	return p.Signature.ErrorTypes[0]
}
