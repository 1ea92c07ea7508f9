// Package responder orchestrates the incident-response pipeline.
//
// One assessment runs strictly in order:
//
//	collect metrics → detect → root cause → patterns → predict
//	→ actions → auto-heal → score → profile → persist
//
// Predictions use the metrics snapshot taken at the start of the
// assessment; the score uses a fresh snapshot when healing touched anything.
//
// The responder is a single logical worker: assessments, autonomous cycles,
// retries and manual executions are serialized by one mutex, which also
// guards the action index and the last profile.
package responder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/health"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/learning"
	"github.com/tutu-network/vitals/internal/infra/metrics"
	"github.com/tutu-network/vitals/internal/infra/scheduler"
	"github.com/tutu-network/vitals/internal/infra/selfheal"
)

// ─── Pipeline Stages ────────────────────────────────────────────────────────

// Detector turns platform signals into incidents.
type Detector interface {
	Detect(ctx context.Context, scope domain.Scope) []domain.HealthIncident
}

// Analyzer attaches root causes.
type Analyzer interface {
	AnalyzeAll(ctx context.Context, incidents []domain.HealthIncident) []domain.HealthIncident
}

// Recognizer groups incidents into recurring patterns.
type Recognizer interface {
	Recognize(incidents []domain.HealthIncident) []domain.ErrorPattern
}

// Predictor forecasts risks.
type Predictor interface {
	Predict(m domain.SystemMetrics, patterns []domain.ErrorPattern) []domain.HealthPrediction
}

// StrategySynthesizer derives dynamic strategies from patterns.
type StrategySynthesizer interface {
	SynthesizeFromPattern(p domain.ErrorPattern) (domain.RecoveryStrategy, bool)
}

// ProfileStore persists assessment profiles.
type ProfileStore interface {
	Record(ctx context.Context, profile domain.HealingProfile) error
	LoadProfile(ctx context.Context, id string) (domain.HealingProfile, error)
	LoadSnapshot(ctx context.Context) (learning.Snapshot, error)
}

// Deps are the responder's collaborators. Store and Monitor may be nil.
type Deps struct {
	Detector   Detector
	Analyzer   Analyzer
	Recognizer Recognizer
	Predictor  Predictor
	Strategies StrategySynthesizer
	Executor   *healing.Executor
	Collector  domain.MetricsCollector
	Index      *selfheal.Index
	Monitor    scheduler.MonitorRunner
	Store      ProfileStore
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the responder.
type Config struct {
	SystemName string
	Weights    health.SeverityWeights
	Scheduler  scheduler.Options // defaults for autonomous healing
	MaxActions int               // action index capacity (default 1000)
	Now        func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SystemName: "platform",
		Weights:    health.DefaultSeverityWeights(),
		Scheduler:  scheduler.DefaultOptions(),
		MaxActions: 1000,
		Now:        time.Now,
	}
}

// ─── Requests & Responses ───────────────────────────────────────────────────

// HealthCheckRequest configures one assessment.
type HealthCheckRequest struct {
	Scope      domain.ScopeKind `json:"scope"`
	Services   []string         `json:"services,omitempty"`
	AutoHeal   bool             `json:"auto_heal"`
	Predictive bool             `json:"predictive"`
	Learning   bool             `json:"learning"`
}

func (r HealthCheckRequest) scope() domain.Scope {
	kind := r.Scope
	if kind == "" {
		kind = domain.ScopeFull
	}
	return domain.Scope{Kind: kind, Services: r.Services}
}

// HealingResponse is the outcome of one assessment.
type HealingResponse struct {
	Success              bool                  `json:"success"`
	Profile              domain.HealingProfile `json:"profile"`
	IncidentsDetected    int                   `json:"incidents_detected"`
	IncidentsHealed      int                   `json:"incidents_healed"`
	PredictionsGenerated int                   `json:"predictions_generated"`
	Recommendations      []string              `json:"recommendations"`
	Warnings             []string              `json:"warnings,omitempty"`
}

// ─── Responder ──────────────────────────────────────────────────────────────

// Responder is the engine's inbound surface.
type Responder struct {
	cfg   Config
	deps  Deps
	sched *scheduler.Scheduler
	log   *zap.Logger

	mu      sync.Mutex
	actions map[string]*domain.HealingAction
	order   []string // action ids, oldest first
	last    *domain.HealingProfile
}

// New creates a responder and its (stopped) autonomous scheduler.
func New(cfg Config, deps Deps, log *zap.Logger) *Responder {
	def := DefaultConfig()
	if cfg.SystemName == "" {
		cfg.SystemName = def.SystemName
	}
	if cfg.Weights == nil {
		cfg.Weights = def.Weights
	}
	if cfg.MaxActions <= 0 {
		cfg.MaxActions = def.MaxActions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Responder{
		cfg:     cfg,
		deps:    deps,
		log:     log.Named("responder"),
		actions: make(map[string]*domain.HealingAction),
	}
	monitor := deps.Monitor
	if monitor == nil {
		monitor = idleMonitor{}
	}
	r.sched = scheduler.New(r, r, monitor, deps.Index, log)
	r.sched.OnCycle(r.observeCycle)
	r.sched.OnSelfHeal(func(cleared int) {
		metrics.SelfHeals.Inc()
		metrics.MonitoringActive.Set(1)
		r.log.Info("monitoring restored", zap.Int("incidents_cleared", cleared))
	})
	return r
}

// Scheduler exposes the autonomous scheduler.
func (r *Responder) Scheduler() *scheduler.Scheduler { return r.sched }

// ─── Assessment ─────────────────────────────────────────────────────────────

// PerformHealthCheck runs one full assessment. It fails only when metrics
// cannot be collected; persistence problems become warnings.
func (r *Responder) PerformHealthCheck(ctx context.Context, req HealthCheckRequest) (HealingResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assessLocked(ctx, req)
}

func (r *Responder) assessLocked(ctx context.Context, req HealthCheckRequest) (HealingResponse, error) {
	start := r.cfg.Now()
	scope := req.scope()
	scopeLabel := string(scope.Kind)

	m, err := r.deps.Collector.Collect(ctx)
	if err != nil {
		metrics.Assessments.WithLabelValues(scopeLabel, "error").Inc()
		return HealingResponse{}, fmt.Errorf("health check: collect metrics: %w", err)
	}

	incidents := r.deps.Detector.Detect(ctx, scope)
	incidents = r.deps.Analyzer.AnalyzeAll(ctx, incidents)
	r.deps.Index.RecordAll(incidents)
	for _, inc := range incidents {
		metrics.IncidentsDetected.WithLabelValues(string(inc.Type), string(inc.Severity)).Inc()
	}

	patterns := r.deps.Recognizer.Recognize(incidents)
	var dynamic []domain.RecoveryStrategy
	for _, p := range patterns {
		if s, ok := r.deps.Strategies.SynthesizeFromPattern(p); ok {
			dynamic = append(dynamic, s)
		}
	}

	var predictions []domain.HealthPrediction
	if req.Predictive {
		predictions = r.deps.Predictor.Predict(m, patterns)
		for _, p := range predictions {
			metrics.PredictionsGenerated.WithLabelValues(string(p.Type)).Inc()
		}
	}

	actions := r.deps.Executor.CreateHealingActions(incidents)
	if req.AutoHeal && len(actions) > 0 {
		touched := r.deps.Executor.ExecuteAutoHealing(ctx, actionPtrs(actions))
		incidents = mergeIncidents(incidents, touched)
		r.observeActions(actions)
		if len(touched) > 0 {
			if after, err := r.deps.Collector.Collect(ctx); err == nil {
				m = after
			} else {
				r.log.Warn("post-healing metrics unavailable", zap.Error(err))
			}
		}
	}

	score := health.Score(m, incidents, r.cfg.Weights)
	recs := Recommend(incidents, patterns, predictions, m)

	profile := domain.HealingProfile{
		ID:              uuid.NewString(),
		SystemName:      r.cfg.SystemName,
		Timestamp:       start,
		HealthScore:     score,
		Incidents:       incidents,
		Actions:         actions,
		Patterns:        patterns,
		Predictions:     predictions,
		Strategies:      dynamic,
		Metrics:         m,
		Recommendations: recs,
		Metadata: domain.ProfileMetadata{
			AutoHealEnabled:   req.AutoHeal,
			LearningEnabled:   req.Learning,
			PredictiveEnabled: req.Predictive,
			Scope:             scope,
			Retention:         domain.ProfileRetention,
		},
	}
	profile.Metadata.Duration = r.cfg.Now().Sub(start)

	r.rememberLocked(actions...)
	last := profile
	r.last = &last

	warnings := Warnings(incidents, m)
	if r.deps.Store != nil {
		if err := r.deps.Store.Record(ctx, profile); err != nil {
			warnings = append(warnings, "profile not persisted: "+err.Error())
		}
	}

	metrics.HealthScore.Set(float64(score))
	metrics.Assessments.WithLabelValues(scopeLabel, "success").Inc()
	metrics.AssessmentDuration.WithLabelValues(scopeLabel).Observe(profile.Metadata.Duration.Seconds())
	metrics.IncidentsActive.Set(float64(r.deps.Index.ActiveCount()))

	r.log.Info("assessment complete",
		zap.String("profile", profile.ID),
		zap.String("scope", scopeLabel),
		zap.Int("score", score),
		zap.Int("incidents", len(incidents)),
		zap.Int("actions", len(actions)),
		zap.Int("predictions", len(predictions)),
	)

	return HealingResponse{
		Success:              true,
		Profile:              profile,
		IncidentsDetected:    len(incidents),
		IncidentsHealed:      profile.HealedCount(),
		PredictionsGenerated: len(predictions),
		Recommendations:      titles(recs),
		Warnings:             warnings,
	}, nil
}

// ─── Profiles ───────────────────────────────────────────────────────────────

// Profile returns a stored profile, falling back to the most recent
// in-memory one. Returns domain.ErrNotFound if neither has it.
func (r *Responder) Profile(ctx context.Context, id string) (domain.HealingProfile, error) {
	if r.deps.Store != nil {
		p, err := r.deps.Store.LoadProfile(ctx, id)
		if err == nil {
			return p, nil
		}
		r.log.Debug("profile lookup in store failed", zap.String("profile", id), zap.Error(err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil && r.last.ID == id {
		return *r.last, nil
	}
	return domain.HealingProfile{}, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
}

// LearningSnapshot returns the most recent learning snapshot.
func (r *Responder) LearningSnapshot(ctx context.Context) (learning.Snapshot, error) {
	if r.deps.Store == nil {
		return learning.Snapshot{}, fmt.Errorf("learning snapshot: %w", domain.ErrNotFound)
	}
	return r.deps.Store.LoadSnapshot(ctx)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func actionPtrs(actions []domain.HealingAction) []*domain.HealingAction {
	ptrs := make([]*domain.HealingAction, len(actions))
	for i := range actions {
		ptrs[i] = &actions[i]
	}
	return ptrs
}

// mergeIncidents replaces incidents with their updated versions by ID.
func mergeIncidents(incidents, updated []domain.HealthIncident) []domain.HealthIncident {
	if len(updated) == 0 {
		return incidents
	}
	byID := make(map[string]domain.HealthIncident, len(updated))
	for _, inc := range updated {
		byID[inc.ID] = inc
	}
	for i, inc := range incidents {
		if u, ok := byID[inc.ID]; ok {
			incidents[i] = u
		}
	}
	return incidents
}

func titles(recs []domain.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

// idleMonitor stands in when no availability monitor is configured.
type idleMonitor struct{}

func (idleMonitor) RunEvery(ctx context.Context, _ time.Duration) { <-ctx.Done() }
