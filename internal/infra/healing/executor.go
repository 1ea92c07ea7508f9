// Package healing turns incidents into healing actions and runs them.
//
// An action is instantiated from a recovery strategy (or synthesized for
// emergencies) and executed step by step through the platform's
// RemediationRunner:
//
//   - Steps run strictly in order. Each step is bounded by its own timeout.
//   - The first failing step fails the action; later steps are skipped.
//   - A failed action reports its pre-execution metrics as MetricsAfter, so
//     callers never mistake a failed attempt for a verified improvement.
//
// Remediation targets sit behind per-target circuit breakers. A target whose
// steps keep failing is cut off until its reset timeout elapses.
package healing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

// StrategySource looks up recovery strategies.
type StrategySource interface {
	FindBestStrategy(incident domain.HealthIncident) (domain.RecoveryStrategy, bool)
	Get(id string) (domain.RecoveryStrategy, error)
}

// IncidentTracker is the process-wide incident index. Get only returns
// incidents that are still open.
type IncidentTracker interface {
	Get(id string) (domain.HealthIncident, bool)
	Record(inc domain.HealthIncident) bool
}

// Emergency action identifiers.
const (
	EmergencyStrategyID = "emergency"
	StepIsolate         = "isolate_component"
	StepEmergencyFix    = "apply_emergency_fix"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the executor.
type Config struct {
	MaxAttempts int // failed attempts before an incident is escalated (default 3)
	Breaker     BreakerConfig
	Now         func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Breaker:     DefaultBreakerConfig(),
		Now:         time.Now,
	}
}

// ExecuteOptions controls manual execution.
type ExecuteOptions struct {
	Verify            bool `json:"verify"`
	Monitor           bool `json:"monitor"`
	RollbackOnFailure bool `json:"rollback_on_failure"`
}

// ─── Executor ───────────────────────────────────────────────────────────────

// Executor creates and runs healing actions.
type Executor struct {
	cfg       Config
	registry  StrategySource
	collector domain.MetricsCollector
	runner    domain.RemediationRunner
	incidents IncidentTracker
	breakers  *Breakers
	log       *zap.Logger
}

// New creates an executor.
func New(cfg Config, registry StrategySource, collector domain.MetricsCollector,
	runner domain.RemediationRunner, incidents IncidentTracker, log *zap.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		cfg:       cfg,
		registry:  registry,
		collector: collector,
		runner:    runner,
		incidents: incidents,
		breakers:  NewBreakers(cfg.Breaker, cfg.Now),
		log:       log.Named("executor"),
	}
}

// Breakers exposes the per-target breaker set.
func (e *Executor) Breakers() *Breakers { return e.breakers }

// ─── Action Construction ────────────────────────────────────────────────────

// CreateHealingActions builds one pending action per incident that a
// registered strategy handles. Unmatched and closed incidents are skipped.
func (e *Executor) CreateHealingActions(incidents []domain.HealthIncident) []domain.HealingAction {
	var out []domain.HealingAction
	for _, inc := range incidents {
		if inc.Status.IsTerminal() {
			continue
		}
		s, ok := e.registry.FindBestStrategy(inc)
		if !ok {
			e.log.Debug("no strategy for incident",
				zap.String("incident", inc.ID),
				zap.String("type", string(inc.Type)),
			)
			continue
		}
		out = append(out, FromStrategy(s, inc.ID, IncidentTarget(inc)))
	}
	return out
}

// IncidentTarget names what an incident's remediation acts on: the first
// affected service, else the detector source.
func IncidentTarget(inc domain.HealthIncident) string {
	for _, svc := range inc.Impact.AffectedServices {
		if svc != "" {
			return svc
		}
	}
	return inc.Source
}

// FromStrategy instantiates a strategy into a pending action. A non-empty
// target replaces each template step's generic target (kept as the
// "component" param); incident and service are added to every step's params.
func FromStrategy(s domain.RecoveryStrategy, incidentID, target string) domain.HealingAction {
	steps := make([]domain.HealingStep, len(s.Steps))
	for i, rs := range s.Steps {
		params := rs.Params.Clone()
		if params == nil {
			params = domain.Params{}
		}
		stepTarget := rs.Target
		if target != "" {
			if rs.Target != "" {
				params["component"] = rs.Target
			}
			params["service"] = target
			stepTarget = target
		}
		if incidentID != "" {
			params["incident"] = incidentID
		}
		steps[i] = domain.HealingStep{
			Order:     rs.Order,
			Action:    rs.Action,
			Target:    stepTarget,
			Params:    params,
			Automated: rs.Automated,
			Timeout:   rs.Timeout,
			Status:    domain.StepPending,
		}
	}
	return domain.HealingAction{
		ID:           uuid.NewString(),
		IncidentID:   incidentID,
		StrategyID:   s.ID,
		Type:         s.ActionType,
		Automated:    s.FullyAutomated(),
		Steps:        steps,
		Status:       domain.ActionPending,
		RollbackPlan: s.RollbackPlan,
	}
}

// EmergencyAction builds the isolate-and-fix action used for critical
// incidents. It bypasses the strategy registry.
func (e *Executor) EmergencyAction(inc domain.HealthIncident) domain.HealingAction {
	target := IncidentTarget(inc)
	params := domain.Params{"incident": inc.ID, "service": target}
	return domain.HealingAction{
		ID:         uuid.NewString(),
		IncidentID: inc.ID,
		StrategyID: EmergencyStrategyID,
		Type:       domain.ActionPatch,
		Automated:  true,
		Steps: []domain.HealingStep{
			{Order: 1, Action: StepIsolate, Target: target, Params: params.Clone(), Automated: true, Timeout: 2 * time.Minute, Status: domain.StepPending},
			{Order: 2, Action: StepEmergencyFix, Target: target, Params: params.Clone(), Automated: true, Timeout: 5 * time.Minute, Status: domain.StepPending},
		},
		Status:       domain.ActionPending,
		RollbackPlan: "reconnect the isolated component",
		Notes:        []string{fmt.Sprintf("emergency response to critical %s incident", inc.Type)},
	}
}

// PreventiveAction builds an action for one preventive recommendation.
// Returns false when the referenced strategy is unknown.
func (e *Executor) PreventiveAction(pred domain.HealthPrediction, pa domain.PreventiveAction) (domain.HealingAction, bool) {
	s, err := e.registry.Get(pa.StrategyID)
	if err != nil {
		return domain.HealingAction{}, false
	}
	a := FromStrategy(s, "", pred.Target)
	a.Preventive = true
	a.Automated = a.Automated && pa.Automatable
	a.Notes = append(a.Notes, fmt.Sprintf("preventive: %s %s on %s (p=%.2f)",
		pred.Type, pred.Timeframe.Label, pred.Target, pred.Probability))
	return a, true
}

// Retry returns a fresh pending copy of a failed action, with a new ID.
func Retry(a domain.HealingAction) domain.HealingAction {
	out := a.Clone()
	out.ID = uuid.NewString()
	out.Status = domain.ActionPending
	out.StartedAt = time.Time{}
	out.CompletedAt = time.Time{}
	out.Result = nil
	out.Steps = resetSteps(a.Steps)
	out.Notes = append(out.Notes, "retry of "+a.ID)
	return out
}

func resetSteps(steps []domain.HealingStep) []domain.HealingStep {
	out := make([]domain.HealingStep, len(steps))
	for i, s := range steps {
		out[i] = domain.HealingStep{
			Order:     s.Order,
			Action:    s.Action,
			Target:    s.Target,
			Params:    s.Params.Clone(),
			Automated: s.Automated,
			Timeout:   s.Timeout,
			Status:    domain.StepPending,
		}
	}
	return out
}

// ─── Step Execution ─────────────────────────────────────────────────────────

// ExecuteHealingSteps runs the action's steps in order and records the
// result on the action. It never returns an error: failures are reflected in
// the action status and the result.
func (e *Executor) ExecuteHealingSteps(ctx context.Context, a *domain.HealingAction) domain.ActionResult {
	start := e.cfg.Now()
	before, err := e.collector.Collect(ctx)
	if err != nil {
		e.log.Warn("metrics before action unavailable", zap.String("action", a.ID), zap.Error(err))
	}

	a.Status = domain.ActionExecuting
	a.StartedAt = start

	var failure error
	var failedStep domain.HealingStep
	for i := range a.Steps {
		step := &a.Steps[i]
		if failure != nil {
			_ = step.Transition(domain.StepSkipped)
			continue
		}
		if err := e.executeStep(ctx, step); err != nil {
			failure = err
			failedStep = *step
		}
	}

	res := domain.ActionResult{MetricsBefore: before}
	switch {
	case failure != nil:
		res.Message = fmt.Sprintf("step %d (%s) failed: %v", failedStep.Order, failedStep.Action, failure)
		res.MetricsAfter = before
	case !a.AllStepsCompleted():
		failure = errors.New("no steps to execute")
		res.Message = failure.Error()
		res.MetricsAfter = before
	default:
		res.Success = true
		res.Message = fmt.Sprintf("%d step(s) completed", len(a.Steps))
		after, err := e.collector.Collect(ctx)
		if err != nil {
			e.log.Warn("metrics after action unavailable", zap.String("action", a.ID), zap.Error(err))
			res.MetricsAfter = before
		} else {
			res.MetricsAfter = after
			res.VerificationPassed = true
		}
	}

	a.CompletedAt = e.cfg.Now()
	res.Duration = a.CompletedAt.Sub(start)
	if res.Success {
		a.Status = domain.ActionCompleted
	} else {
		a.Status = domain.ActionFailed
	}
	a.Result = &res

	e.log.Info("healing action finished",
		zap.String("action", a.ID),
		zap.String("strategy", a.StrategyID),
		zap.String("status", string(a.Status)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (e *Executor) executeStep(ctx context.Context, step *domain.HealingStep) error {
	if err := step.Transition(domain.StepExecuting); err != nil {
		return err
	}
	start := e.cfg.Now()

	cb := e.breakers.For(step.Target)
	err := cb.Allow()
	var out string
	if err == nil {
		out, err = e.runStep(ctx, *step)
		if err != nil {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
	}

	step.Duration = e.cfg.Now().Sub(start)
	step.Output = out
	if err != nil {
		step.Error = err.Error()
		_ = step.Transition(domain.StepFailed)
		e.log.Warn("healing step failed",
			zap.Int("order", step.Order),
			zap.String("step", step.Action),
			zap.String("target", step.Target),
			zap.Error(err),
		)
		return err
	}
	return step.Transition(domain.StepCompleted)
}

// runStep calls the runner under the step's deadline. A runner that ignores
// its context is abandoned once the deadline passes.
func (e *Executor) runStep(ctx context.Context, step domain.HealingStep) (string, error) {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("step %s panicked: %v", step.Action, r)}
			}
		}()
		out, err := e.runner.RunStep(ctx, step)
		ch <- result{out: out, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return r.out, fmt.Errorf("%s after %s: %w", step.Action, step.Timeout, domain.ErrStepTimeout)
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s after %s: %w", step.Action, step.Timeout, domain.ErrStepTimeout)
		}
		return "", ctx.Err()
	}
}

// ─── Autonomous Execution ───────────────────────────────────────────────────

// ExecuteAutoHealing runs every pending automated action. Linked incidents
// move to healing, then to resolved on success, or back to active (escalated
// once attempts reach MaxAttempts) on failure. One failing action never stops
// the batch. Returns the final state of every incident it touched.
func (e *Executor) ExecuteAutoHealing(ctx context.Context, actions []*domain.HealingAction) []domain.HealthIncident {
	var touched []domain.HealthIncident
	for _, a := range actions {
		if a.Status != domain.ActionPending || !a.Automated {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if inc, ok := e.autoHealOne(ctx, a); ok {
			touched = append(touched, inc)
		}
	}
	return touched
}

func (e *Executor) autoHealOne(ctx context.Context, a *domain.HealingAction) (inc domain.HealthIncident, tracked bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("auto-heal panicked", zap.String("action", a.ID), zap.Any("panic", r))
			a.Status = domain.ActionFailed
			a.Notes = append(a.Notes, fmt.Sprintf("panic: %v", r))
			if tracked {
				inc = e.settle(inc, a)
			}
		}
	}()

	if a.IncidentID != "" {
		var ok bool
		inc, ok = e.begin(a)
		if !ok {
			return inc, false
		}
		tracked = true
	}

	e.ExecuteHealingSteps(ctx, a)
	if tracked {
		inc = e.settle(inc, a)
	}
	return inc, tracked
}

// begin moves the linked incident to healing. Returns false when the
// incident is no longer open or is already being healed.
func (e *Executor) begin(a *domain.HealingAction) (domain.HealthIncident, bool) {
	inc, ok := e.incidents.Get(a.IncidentID)
	if !ok {
		a.Notes = append(a.Notes, "linked incident no longer open")
		return inc, false
	}
	if err := inc.Transition(domain.StatusHealing); err != nil {
		a.Notes = append(a.Notes, err.Error())
		return inc, false
	}
	inc.HealingAttempts++
	e.incidents.Record(inc)
	return inc, true
}

// settle records the outcome of an attempt on the linked incident.
func (e *Executor) settle(inc domain.HealthIncident, a *domain.HealingAction) domain.HealthIncident {
	var err error
	switch {
	case a.Status == domain.ActionCompleted:
		err = inc.Resolve(a.Type, e.cfg.Now())
	case inc.HealingAttempts >= e.cfg.MaxAttempts:
		err = inc.Transition(domain.StatusEscalated)
		e.log.Warn("incident escalated",
			zap.String("incident", inc.ID),
			zap.Int("attempts", inc.HealingAttempts),
		)
	default:
		err = inc.Transition(domain.StatusActive)
	}
	if err != nil {
		e.log.Error("incident transition rejected", zap.String("incident", inc.ID), zap.Error(err))
		return inc
	}
	e.incidents.Record(inc)
	return inc
}

// ─── Manual Execution ───────────────────────────────────────────────────────

// Verify checks an action is safe to run. A rollback action without a
// rollback plan fails closed.
func Verify(a domain.HealingAction) error {
	if len(a.Steps) == 0 {
		return fmt.Errorf("action %s has no steps: %w", a.ID, domain.ErrVerificationFailed)
	}
	if a.Type == domain.ActionRollback && a.RollbackPlan == "" {
		return fmt.Errorf("rollback action %s has no rollback plan: %w", a.ID, domain.ErrVerificationFailed)
	}
	for _, s := range a.Steps {
		if err := s.Params.Validate(); err != nil {
			return fmt.Errorf("step %d: %v: %w", s.Order, err, domain.ErrVerificationFailed)
		}
	}
	return nil
}

// ExecuteHealingAction runs one action on demand. Only pending or failed
// actions can run; a failed action is re-armed with fresh steps. Errors wrap
// ErrVerificationFailed, ErrHealingRolledBack or ErrHealingFailed.
func (e *Executor) ExecuteHealingAction(ctx context.Context, a *domain.HealingAction, opts ExecuteOptions) error {
	if a.Status != domain.ActionPending && a.Status != domain.ActionFailed {
		return fmt.Errorf("action %s is %s: %w", a.ID, a.Status, domain.ErrVerificationFailed)
	}
	if opts.Verify {
		if err := Verify(*a); err != nil {
			return err
		}
	}
	if a.Status == domain.ActionFailed {
		a.Steps = resetSteps(a.Steps)
		a.Result = nil
		a.Status = domain.ActionPending
		a.Notes = append(a.Notes, "re-run after failure")
	}

	var inc domain.HealthIncident
	tracked := false
	if a.IncidentID != "" {
		inc, tracked = e.begin(a)
	}

	res := e.ExecuteHealingSteps(ctx, a)
	if tracked {
		e.settle(inc, a)
	}

	if opts.Monitor {
		a.Notes = append(a.Notes, progressNote(res))
	}
	if res.Success {
		return nil
	}

	if opts.RollbackOnFailure {
		if err := e.runner.Rollback(ctx, *a); err != nil {
			return fmt.Errorf("action %s: %s; rollback failed: %v: %w", a.ID, res.Message, err, domain.ErrHealingFailed)
		}
		a.Status = domain.ActionRolledBack
		e.log.Info("healing action rolled back", zap.String("action", a.ID))
		return fmt.Errorf("action %s: %s: %w", a.ID, res.Message, domain.ErrHealingRolledBack)
	}
	return fmt.Errorf("action %s: %s: %w", a.ID, res.Message, domain.ErrHealingFailed)
}

func progressNote(res domain.ActionResult) string {
	b, a := res.MetricsBefore, res.MetricsAfter
	return fmt.Sprintf("availability %.2f%% → %.2f%%, error rate %.2f%% → %.2f%%, latency %.0fms → %.0fms",
		b.Availability.Current, a.Availability.Current,
		b.Performance.ErrorRate, a.Performance.ErrorRate,
		b.Performance.LatencyMs, a.Performance.LatencyMs)
}
