// Package rootcause infers why an incident happened.
//
// The category follows the incident type (performance → resource,
// availability → network, anything else → code). Confidence grows with the
// amount of supporting evidence: a lone observation is a hunch, several
// corroborating ones are a diagnosis. Causes with confidence above 0.7 are
// considered preventable.
package rootcause

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

// EvidenceSource supplies observations about the platform around an incident.
type EvidenceSource interface {
	// RelatedEvents returns platform events near the incident (deploys,
	// config changes, restarts).
	RelatedEvents(ctx context.Context, incident domain.HealthIncident) ([]domain.Evidence, error)

	// PlatformState returns current state observations relevant to the
	// incident (resource pressure, dependency status).
	PlatformState(ctx context.Context, incident domain.HealthIncident) ([]domain.Evidence, error)
}

// History looks up earlier incidents of the same kind.
type History interface {
	Related(typ domain.IncidentType, window time.Duration, excludeID string) []string
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds the confidence policy.
type Config struct {
	NoEvidenceConfidence float64       // default 0.3
	BaseConfidence       float64       // confidence with one evidence item (default 0.5)
	EvidenceStep         float64       // added per extra evidence item (default 0.1)
	MaxConfidence        float64       // cap (default 0.95)
	PreventableAbove     float64       // default 0.7
	RelatedWindow        time.Duration // history look-back (default 24h)
	Now                  func() time.Time
}

// DefaultConfig returns the production confidence policy.
func DefaultConfig() Config {
	return Config{
		NoEvidenceConfidence: 0.3,
		BaseConfidence:       0.5,
		EvidenceStep:         0.1,
		MaxConfidence:        0.95,
		PreventableAbove:     0.7,
		RelatedWindow:        24 * time.Hour,
		Now:                  time.Now,
	}
}

// Confidence applies the policy to an evidence count.
func (c Config) Confidence(evidence int) float64 {
	if evidence <= 0 {
		return c.NoEvidenceConfidence
	}
	conf := c.BaseConfidence + c.EvidenceStep*float64(evidence-1)
	conf = math.Min(conf, c.MaxConfidence)
	// Round away float noise from repeated addition (0.5+0.1*2 → 0.7).
	return math.Round(conf*1000) / 1000
}

// Category maps an incident type to its most likely root-cause category.
func Category(t domain.IncidentType) domain.RootCauseCategory {
	switch t {
	case domain.IncidentPerformance:
		return domain.CauseResource
	case domain.IncidentAvailability:
		return domain.CauseNetwork
	default:
		return domain.CauseCode
	}
}

// ─── Analyzer ───────────────────────────────────────────────────────────────

// Analyzer attaches root causes to incidents.
type Analyzer struct {
	cfg      Config
	evidence EvidenceSource
	history  History
	log      *zap.Logger
}

// New creates an analyzer. evidence and history may be nil.
func New(cfg Config, evidence EvidenceSource, history History, log *zap.Logger) *Analyzer {
	def := DefaultConfig()
	if cfg.MaxConfidence <= 0 {
		cfg.MaxConfidence = def.MaxConfidence
	}
	if cfg.BaseConfidence <= 0 {
		cfg.BaseConfidence = def.BaseConfidence
	}
	if cfg.NoEvidenceConfidence <= 0 {
		cfg.NoEvidenceConfidence = def.NoEvidenceConfidence
	}
	if cfg.EvidenceStep < 0 {
		cfg.EvidenceStep = def.EvidenceStep
	}
	if cfg.PreventableAbove <= 0 {
		cfg.PreventableAbove = def.PreventableAbove
	}
	if cfg.RelatedWindow <= 0 {
		cfg.RelatedWindow = def.RelatedWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, evidence: evidence, history: history, log: log.Named("rootcause")}
}

// Analyze infers the root cause of a single incident.
func (a *Analyzer) Analyze(ctx context.Context, incident domain.HealthIncident) domain.RootCause {
	var evidence []domain.Evidence
	if a.evidence != nil {
		if events, err := a.evidence.RelatedEvents(ctx, incident); err != nil {
			a.log.Warn("related events unavailable", zap.String("incident", incident.ID), zap.Error(err))
		} else {
			evidence = append(evidence, events...)
		}
		if state, err := a.evidence.PlatformState(ctx, incident); err != nil {
			a.log.Warn("platform state unavailable", zap.String("incident", incident.ID), zap.Error(err))
		} else {
			evidence = append(evidence, state...)
		}
	}

	var related []string
	if a.history != nil {
		related = a.history.Related(incident.Type, a.cfg.RelatedWindow, incident.ID)
		if len(related) > 0 {
			evidence = append(evidence, domain.Evidence{
				Source:     "incident_history",
				Kind:       "recurrence",
				Detail:     fmt.Sprintf("%d %s incident(s) in the last %s", len(related), incident.Type, a.cfg.RelatedWindow),
				ObservedAt: a.cfg.Now(),
			})
		}
	}

	category := Category(incident.Type)
	confidence := a.cfg.Confidence(len(evidence))
	return domain.RootCause{
		Category:         category,
		Description:      describe(category, incident),
		Confidence:       confidence,
		Evidence:         evidence,
		RelatedIncidents: related,
		Preventable:      confidence > a.cfg.PreventableAbove,
	}
}

// AnalyzeAll attaches a root cause to every incident that lacks one and
// returns the updated copies.
func (a *Analyzer) AnalyzeAll(ctx context.Context, incidents []domain.HealthIncident) []domain.HealthIncident {
	out := make([]domain.HealthIncident, len(incidents))
	for i, inc := range incidents {
		inc = inc.Clone()
		if inc.RootCause == nil {
			inc.AttachRootCause(a.Analyze(ctx, inc))
		}
		out[i] = inc
	}
	return out
}

func describe(category domain.RootCauseCategory, inc domain.HealthIncident) string {
	switch category {
	case domain.CauseResource:
		return "resource saturation degrading response times"
	case domain.CauseNetwork:
		return "network or dependency failure reducing availability"
	default:
		if inc.Description != "" {
			return "application fault: " + inc.Description
		}
		return "application fault"
	}
}
