package domain

import "time"

// PredictionType classifies a forecast.
type PredictionType string

const (
	PredictFailure     PredictionType = "failure"
	PredictDegradation PredictionType = "degradation"
	PredictCapacity    PredictionType = "capacity"
	PredictSecurity    PredictionType = "security"
)

// ActionPriority says how soon a preventive action should run.
type ActionPriority string

const (
	PriorityImmediate ActionPriority = "immediate"
	PriorityScheduled ActionPriority = "scheduled"
	PriorityMonitor   ActionPriority = "monitor"
)

// Timeframe is the window a prediction applies to.
type Timeframe struct {
	Within time.Duration `json:"within"`
	Label  string        `json:"label"`
}

// PreventiveAction is a suggested mitigation for a prediction.
type PreventiveAction struct {
	Action      string         `json:"action"`
	StrategyID  string         `json:"strategy_id"`
	Description string         `json:"description"`
	Automatable bool           `json:"automatable"`
	Priority    ActionPriority `json:"priority"`
}

// HealthPrediction is a forecast of a future incident or capacity risk.
type HealthPrediction struct {
	ID                string             `json:"id"`
	Type              PredictionType     `json:"type"`
	Target            string             `json:"target"`
	Probability       float64            `json:"probability"`
	Timeframe         Timeframe          `json:"timeframe"`
	Impact            Severity           `json:"impact"`
	PreventiveActions []PreventiveAction `json:"preventive_actions"`
	Confidence        float64            `json:"confidence"`
	Basis             []string           `json:"basis"`
	PatternID         string             `json:"pattern_id,omitempty"`
}
