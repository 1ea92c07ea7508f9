// Package predict forecasts incidents before they happen.
//
// Two forecast families:
//
//   - Capacity: a resource that is already hot, or whose growth rate will
//     exhaust it within the horizon, is predicted to run out.
//
//   - Recurrence: a recurring or persistent pattern is predicted to fire
//     again. Persistent patterns recur within the hour (0.9), recurring ones
//     within a day (0.7), sporadic ones within a week (0.3). Only recurrence
//     forecasts above 0.6 are kept, so sporadic patterns never produce one.
//     Capacity forecasts are always kept; consumers filter by probability.
package predict

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/vitals/internal/domain"
)

// Recurrence is the forecast attached to a frequency bucket.
type Recurrence struct {
	Probability float64
	Within      time.Duration
	Label       string
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds forecast policy.
type Config struct {
	MinProbability   float64 // keep recurrence forecasts strictly above this (default 0.6)
	ImmediateAbove   float64 // preventive priority immediate above this (default 0.8)
	CapacityWarn     float64 // percent used that triggers a forecast (default 80)
	CapacityCritical float64 // percent used that makes impact critical (default 90)
	CapacityHorizon  time.Duration
	Recurrence       map[domain.Frequency]Recurrence
	ScaleStrategy    string
}

// DefaultConfig returns production forecast policy.
func DefaultConfig() Config {
	return Config{
		MinProbability:   0.6,
		ImmediateAbove:   0.8,
		CapacityWarn:     80,
		CapacityCritical: 90,
		CapacityHorizon:  24 * time.Hour,
		Recurrence: map[domain.Frequency]Recurrence{
			domain.FrequencyPersistent: {Probability: 0.9, Within: time.Hour, Label: "1 hour"},
			domain.FrequencyRecurring:  {Probability: 0.7, Within: 24 * time.Hour, Label: "24 hours"},
			domain.FrequencySporadic:   {Probability: 0.3, Within: 7 * 24 * time.Hour, Label: "7 days"},
		},
		ScaleStrategy: "scale_resources",
	}
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine produces health predictions. It is stateless.
type Engine struct {
	cfg Config
}

// New creates a prediction engine.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MinProbability <= 0 {
		cfg.MinProbability = def.MinProbability
	}
	if cfg.ImmediateAbove <= 0 {
		cfg.ImmediateAbove = def.ImmediateAbove
	}
	if cfg.CapacityWarn <= 0 {
		cfg.CapacityWarn = def.CapacityWarn
	}
	if cfg.CapacityCritical <= 0 {
		cfg.CapacityCritical = def.CapacityCritical
	}
	if cfg.CapacityHorizon <= 0 {
		cfg.CapacityHorizon = def.CapacityHorizon
	}
	if cfg.Recurrence == nil {
		cfg.Recurrence = def.Recurrence
	}
	if cfg.ScaleStrategy == "" {
		cfg.ScaleStrategy = def.ScaleStrategy
	}
	return &Engine{cfg: cfg}
}

// Predict returns capacity forecasts followed by recurrence forecasts.
func (e *Engine) Predict(metrics domain.SystemMetrics, patterns []domain.ErrorPattern) []domain.HealthPrediction {
	out := e.capacity(metrics.Capacity)
	for _, pat := range patterns {
		if p, ok := e.recurrence(pat); ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) priority(prob float64) domain.ActionPriority {
	if prob > e.cfg.ImmediateAbove {
		return domain.PriorityImmediate
	}
	return domain.PriorityScheduled
}

// ─── Capacity ───────────────────────────────────────────────────────────────

// TimeToExhaustion projects when a resource reaches 100% at its current
// growth rate. Returns false if it is not growing.
func TimeToExhaustion(m domain.CapacityMetric) (time.Duration, bool) {
	if m.GrowthPerHour <= 0 {
		return 0, false
	}
	if m.Used >= 100 {
		return 0, true
	}
	hours := (100 - m.Used) / m.GrowthPerHour
	return time.Duration(hours * float64(time.Hour)), true
}

func (e *Engine) capacity(c domain.CapacityMetrics) []domain.HealthPrediction {
	var out []domain.HealthPrediction
	for _, res := range c.Resources() {
		m := res.Metric
		eta, growing := TimeToExhaustion(m)
		withinHorizon := growing && eta <= e.cfg.CapacityHorizon
		if m.Used < e.cfg.CapacityWarn && !withinHorizon {
			continue
		}

		prob := m.Used / 100
		if withinHorizon {
			prob += 0.1
		}
		prob = math.Max(0, math.Min(0.99, prob))

		impact := domain.SeverityHigh
		if m.Used >= e.cfg.CapacityCritical {
			impact = domain.SeverityCritical
		}

		tf := domain.Timeframe{Within: e.cfg.CapacityHorizon, Label: "24 hours"}
		basis := []string{fmt.Sprintf("%s at %.1f%%", res.Name, m.Used)}
		if withinHorizon {
			tf = domain.Timeframe{Within: eta, Label: eta.Round(time.Minute).String()}
			basis = append(basis, fmt.Sprintf("growing %.2f points/hour", m.GrowthPerHour))
		}

		out = append(out, domain.HealthPrediction{
			ID:          uuid.NewString(),
			Type:        domain.PredictCapacity,
			Target:      res.Name,
			Probability: prob,
			Timeframe:   tf,
			Impact:      impact,
			PreventiveActions: []domain.PreventiveAction{{
				Action:      e.cfg.ScaleStrategy,
				StrategyID:  e.cfg.ScaleStrategy,
				Description: fmt.Sprintf("add %s capacity before exhaustion", res.Name),
				Automatable: true,
				Priority:    e.priority(prob),
			}},
			Confidence: 0.8,
			Basis:      basis,
		})
	}
	return out
}

// ─── Recurrence ─────────────────────────────────────────────────────────────

func (e *Engine) recurrence(p domain.ErrorPattern) (domain.HealthPrediction, bool) {
	rec, ok := e.cfg.Recurrence[p.Signature.Frequency]
	if !ok || rec.Probability <= e.cfg.MinProbability {
		return domain.HealthPrediction{}, false
	}

	actions := make([]domain.PreventiveAction, 0, len(p.RecommendedActions))
	for _, id := range p.RecommendedActions {
		actions = append(actions, domain.PreventiveAction{
			Action:      id,
			StrategyID:  id,
			Description: fmt.Sprintf("pre-emptively run %s for %s incidents", id, p.PrimaryType()),
			Automatable: p.AutoHealable,
			Priority:    e.priority(rec.Probability),
		})
	}

	typ := domain.PredictFailure
	switch p.PrimaryType() {
	case domain.IncidentPerformance:
		typ = domain.PredictDegradation
	case domain.IncidentSecurity:
		typ = domain.PredictSecurity
	}

	return domain.HealthPrediction{
		ID:                uuid.NewString(),
		Type:              typ,
		Target:            string(p.PrimaryType()),
		Probability:       rec.Probability,
		Timeframe:         domain.Timeframe{Within: rec.Within, Label: rec.Label},
		Impact:            p.Signature.Severity,
		PreventiveActions: actions,
		Confidence:        math.Min(0.95, 0.5+0.05*float64(p.Occurrences)),
		Basis: []string{
			fmt.Sprintf("%s pattern with %d occurrences", p.Signature.Frequency, p.Occurrences),
		},
		PatternID: p.ID,
	}, true
}
