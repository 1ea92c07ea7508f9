package responder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/metrics"
	"github.com/tutu-network/vitals/internal/infra/scheduler"
)

// ─── Autonomous Healing ─────────────────────────────────────────────────────

// AutonomousOptions overrides the configured scheduler defaults. Zero
// durations and counts keep the defaults; Preventive is taken as given.
type AutonomousOptions struct {
	CheckInterval    time.Duration `json:"check_interval"`
	HealingThreshold float64       `json:"healing_threshold"`
	MaxRetries       int           `json:"max_retries"`
	Preventive       bool          `json:"preventive"`
}

// DefaultAutonomousOptions returns the options used when a caller sets none.
func DefaultAutonomousOptions() AutonomousOptions {
	def := scheduler.DefaultOptions()
	return AutonomousOptions{
		CheckInterval:    def.CheckInterval,
		HealingThreshold: def.HealingThreshold,
		MaxRetries:       def.MaxRetries,
		Preventive:       def.Preventive,
	}
}

// StartAutonomousHealing starts the scheduler. The loop outlives ctx's
// cancellation; stop it with StopAutonomousHealing.
func (r *Responder) StartAutonomousHealing(ctx context.Context, opts AutonomousOptions) error {
	o := r.cfg.Scheduler
	if opts.CheckInterval > 0 {
		o.CheckInterval = opts.CheckInterval
	}
	if opts.HealingThreshold > 0 {
		o.HealingThreshold = opts.HealingThreshold
	}
	if opts.MaxRetries > 0 {
		o.MaxRetries = opts.MaxRetries
	}
	o.Preventive = opts.Preventive

	if err := r.sched.Start(context.WithoutCancel(ctx), o); err != nil {
		return fmt.Errorf("start autonomous healing: %w", err)
	}
	metrics.MonitoringActive.Set(1)
	r.log.Info("autonomous healing started",
		zap.Duration("check_interval", o.CheckInterval),
		zap.Float64("threshold", o.HealingThreshold),
		zap.Int("max_retries", o.MaxRetries),
		zap.Bool("preventive", o.Preventive),
	)
	return nil
}

// StopAutonomousHealing stops the scheduler and its monitor.
func (r *Responder) StopAutonomousHealing() error {
	if err := r.sched.Stop(); err != nil {
		return fmt.Errorf("stop autonomous healing: %w", err)
	}
	metrics.MonitoringActive.Set(0)
	r.log.Info("autonomous healing stopped")
	return nil
}

// RunAutonomousCycle is one scheduler pass: an incremental assessment with
// auto-heal, prediction and learning; an emergency action for every critical
// active incident; and, when preventive is set, immediate automatable
// preventive actions for critical predictions above threshold.
func (r *Responder) RunAutonomousCycle(ctx context.Context, threshold float64, preventive bool) (scheduler.CycleReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.assessLocked(ctx, HealthCheckRequest{
		Scope:      domain.ScopeIncremental,
		AutoHeal:   true,
		Predictive: true,
		Learning:   true,
	})
	if err != nil {
		return scheduler.CycleReport{}, err
	}

	report := scheduler.CycleReport{IncidentsDetected: resp.IncidentsDetected}
	report.Failed = failedAutomated(resp.Profile.Actions)

	var extra []domain.HealingAction
	for _, inc := range r.deps.Index.Active() {
		if inc.Severity == domain.SeverityCritical && inc.Status == domain.StatusActive {
			extra = append(extra, r.deps.Executor.EmergencyAction(inc))
		}
	}
	report.Emergency = len(extra)

	if preventive {
		for _, p := range resp.Profile.Predictions {
			if p.Probability <= threshold || p.Impact != domain.SeverityCritical {
				continue
			}
			for _, pa := range p.PreventiveActions {
				if pa.Priority != domain.PriorityImmediate || !pa.Automatable {
					continue
				}
				if a, ok := r.deps.Executor.PreventiveAction(p, pa); ok && a.Automated {
					extra = append(extra, a)
				}
			}
		}
	}
	report.Preventive = len(extra) - report.Emergency

	if len(extra) > 0 {
		r.deps.Executor.ExecuteAutoHealing(ctx, actionPtrs(extra))
		r.observeActions(extra)
		r.rememberLocked(extra...)
		report.Failed = append(report.Failed, failedAutomated(extra)...)
		metrics.IncidentsActive.Set(float64(r.deps.Index.ActiveCount()))
	}
	return report, nil
}

// RetryAction re-runs a failed automated action as a fresh attempt. When the
// linked incident is no longer open there is nothing to retry and the
// untouched attempt is returned without error.
func (r *Responder) RetryAction(ctx context.Context, a domain.HealingAction) (domain.HealingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := healing.Retry(a)
	r.deps.Executor.ExecuteAutoHealing(ctx, []*domain.HealingAction{&next})
	if next.Status == domain.ActionPending {
		return next, nil
	}
	r.observeActions([]domain.HealingAction{next})
	r.rememberLocked(next)
	if next.Status != domain.ActionCompleted {
		return next, fmt.Errorf("retry of %s: %w", a.ID, domain.ErrHealingFailed)
	}
	return next, nil
}

func (r *Responder) observeCycle(report scheduler.CycleReport, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.AutonomousCycles.WithLabelValues(result).Inc()
	metrics.MonitoringActive.Set(metrics.BoolGauge(r.sched.MonitoringActive()))
}

func failedAutomated(actions []domain.HealingAction) []domain.HealingAction {
	var out []domain.HealingAction
	for _, a := range actions {
		if a.Automated && a.Status == domain.ActionFailed {
			out = append(out, a.Clone())
		}
	}
	return out
}
