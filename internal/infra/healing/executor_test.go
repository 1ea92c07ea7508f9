package healing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/selfheal"
	"github.com/tutu-network/vitals/internal/infra/strategy"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

// fakeCollector returns a fresh snapshot per call: availability 90, 91, ...
type fakeCollector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeCollector) Collect(context.Context) (domain.SystemMetrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.SystemMetrics{}, c.err
	}
	m := domain.SystemMetrics{Availability: domain.AvailabilityMetrics{Current: 90 + float64(c.calls), Target: 99.9}}
	c.calls++
	return m, nil
}

func (c *fakeCollector) Availability(ctx context.Context) (float64, error) {
	m, err := c.Collect(ctx)
	return m.Availability.Current, err
}

type fakeRunner struct {
	mu         sync.Mutex
	fail       map[string]bool
	failTarget map[string]bool
	panicOn    string
	block      chan struct{}
	ran        []string
	steps      []domain.HealingStep
	rolledBack []string
	rbErr      error
}

func (r *fakeRunner) RunStep(ctx context.Context, step domain.HealingStep) (string, error) {
	r.mu.Lock()
	r.ran = append(r.ran, step.Action)
	r.steps = append(r.steps, step)
	fail := r.fail[step.Action] || r.failTarget[step.Target]
	block := r.block
	r.mu.Unlock()

	if step.Action == r.panicOn {
		panic("runner exploded")
	}
	if block != nil {
		<-block
	}
	if fail {
		return "", errors.New(step.Action + " refused")
	}
	return step.Action + " ok", nil
}

func (r *fakeRunner) Rollback(_ context.Context, a domain.HealingAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rolledBack = append(r.rolledBack, a.ID)
	return r.rbErr
}

func (r *fakeRunner) ranSteps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func newTestExecutor(t *testing.T, runner *fakeRunner) (*Executor, *selfheal.Index, *fakeCollector) {
	t.Helper()
	idx := selfheal.NewIndex(selfheal.DefaultConfig())
	col := &fakeCollector{}
	return New(DefaultConfig(), strategy.NewRegistry(), col, runner, idx, nil), idx, col
}

func activeIncident(id string, typ domain.IncidentType, sev domain.Severity) domain.HealthIncident {
	return domain.HealthIncident{
		ID:         id,
		Title:      "test incident",
		Source:     "error_log",
		Type:       typ,
		Severity:   sev,
		DetectedAt: time.Now().Add(-time.Minute),
		Status:     domain.StatusActive,
	}
}

// ─── Action Construction ────────────────────────────────────────────────────

func TestCreateHealingActions(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	incidents := []domain.HealthIncident{
		activeIncident("perf", domain.IncidentPerformance, domain.SeverityHigh),
		activeIncident("sec", domain.IncidentSecurity, domain.SeverityHigh),
		activeIncident("odd", domain.IncidentType("cosmic-ray"), domain.SeverityLow),
		{ID: "done", Type: domain.IncidentError, Status: domain.StatusResolved},
	}

	actions := e.CreateHealingActions(incidents)
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(actions))
	}

	perf := actions[0]
	if perf.IncidentID != "perf" || perf.StrategyID != strategy.ScaleResources {
		t.Errorf("actions[0] = %s/%s, want perf/scale_resources", perf.IncidentID, perf.StrategyID)
	}
	if !perf.Automated || perf.Status != domain.ActionPending || perf.Type != domain.ActionScale {
		t.Errorf("scale action = automated %v status %s type %s", perf.Automated, perf.Status, perf.Type)
	}
	for _, s := range perf.Steps {
		if s.Status != domain.StepPending || s.Timeout <= 0 {
			t.Errorf("step %d = %s timeout %s, want pending with timeout", s.Order, s.Status, s.Timeout)
		}
	}

	if actions[1].Automated {
		t.Error("isolate_component has a manual step, action should not be automated")
	}
}

func TestEmergencyAction(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	inc := activeIncident("crit", domain.IncidentAvailability, domain.SeverityCritical)
	inc.Impact.AffectedServices = []string{"checkout"}

	a := e.EmergencyAction(inc)
	if a.Type != domain.ActionPatch || !a.Automated || a.IncidentID != "crit" {
		t.Errorf("emergency action = %+v", a)
	}
	if len(a.Steps) != 2 || a.Steps[0].Action != StepIsolate || a.Steps[1].Action != StepEmergencyFix {
		t.Fatalf("steps = %+v, want isolate then fix", a.Steps)
	}
	if a.Steps[0].Target != "checkout" {
		t.Errorf("target = %q, want checkout", a.Steps[0].Target)
	}
}

func TestPreventiveAction(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	pred := domain.HealthPrediction{Type: domain.PredictCapacity, Target: "cpu", Probability: 0.95}

	a, ok := e.PreventiveAction(pred, domain.PreventiveAction{StrategyID: strategy.ScaleResources, Automatable: true})
	if !ok {
		t.Fatal("PreventiveAction() ok = false")
	}
	if !a.Preventive || !a.Automated || a.IncidentID != "" {
		t.Errorf("preventive action = preventive %v automated %v incident %q", a.Preventive, a.Automated, a.IncidentID)
	}

	a, _ = e.PreventiveAction(pred, domain.PreventiveAction{StrategyID: strategy.ScaleResources})
	if a.Automated {
		t.Error("non-automatable recommendation produced an automated action")
	}

	if _, ok := e.PreventiveAction(pred, domain.PreventiveAction{StrategyID: "nope"}); ok {
		t.Error("unknown strategy should not produce an action")
	}
}

func TestRetry_FreshCopy(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{fail: map[string]bool{"scale_out": true}})
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("p", domain.IncidentPerformance, domain.SeverityHigh)})[0]
	e.ExecuteHealingSteps(context.Background(), &a)

	r := Retry(a)
	if r.ID == a.ID || r.Status != domain.ActionPending || r.Result != nil {
		t.Errorf("Retry() = id %s status %s", r.ID, r.Status)
	}
	for _, s := range r.Steps {
		if s.Status != domain.StepPending || s.Error != "" {
			t.Errorf("retried step %d = %s %q, want clean pending", s.Order, s.Status, s.Error)
		}
	}
	if a.Steps[0].Status != domain.StepFailed {
		t.Error("Retry() modified the original action")
	}
}

// ─── Step Execution ─────────────────────────────────────────────────────────

func TestExecuteHealingSteps_Success(t *testing.T) {
	runner := &fakeRunner{}
	e, _, _ := newTestExecutor(t, runner)
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("e", domain.IncidentError, domain.SeverityHigh)})[0]

	res := e.ExecuteHealingSteps(context.Background(), &a)
	if !res.Success || !res.VerificationPassed {
		t.Fatalf("result = %+v, want success", res)
	}
	if a.Status != domain.ActionCompleted || !a.AllStepsCompleted() {
		t.Errorf("action status = %s, want completed", a.Status)
	}
	if res.MetricsAfter.Availability.Current == res.MetricsBefore.Availability.Current {
		t.Error("MetricsAfter should be a fresh snapshot")
	}
	if got := runner.ranSteps(); len(got) != 3 || got[0] != "drain_traffic" || got[2] != "verify_health" {
		t.Errorf("ran = %v, want restart_service steps in order", got)
	}
}

func TestExecuteHealingSteps_SecondOfThreeFails(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"restart_service": true}}
	e, _, _ := newTestExecutor(t, runner)
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("e", domain.IncidentError, domain.SeverityHigh)})[0]

	res := e.ExecuteHealingSteps(context.Background(), &a)

	want := []domain.StepStatus{domain.StepCompleted, domain.StepFailed, domain.StepSkipped}
	for i, s := range a.Steps {
		if s.Status != want[i] {
			t.Errorf("step %d status = %s, want %s", i+1, s.Status, want[i])
		}
	}
	if res.Success || res.VerificationPassed {
		t.Error("result should not be successful")
	}
	if res.MetricsAfter != res.MetricsBefore {
		t.Errorf("MetricsAfter = %+v, want pre-execution snapshot %+v", res.MetricsAfter, res.MetricsBefore)
	}
	if a.Status != domain.ActionFailed {
		t.Errorf("action status = %s, want failed", a.Status)
	}
	if len(runner.ranSteps()) != 2 {
		t.Errorf("ran %d steps, want 2", len(runner.ranSteps()))
	}
	if !strings.Contains(res.Message, "restart_service") {
		t.Errorf("message = %q, want failing step named", res.Message)
	}
}

func TestExecuteHealingSteps_TimeoutEnforced(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	defer close(runner.block)
	e, _, _ := newTestExecutor(t, runner)

	a := domain.HealingAction{
		ID:     "slow",
		Type:   domain.ActionRestart,
		Status: domain.ActionPending,
		Steps: []domain.HealingStep{
			{Order: 1, Action: "hang", Target: "svc", Automated: true, Timeout: 20 * time.Millisecond, Status: domain.StepPending},
			{Order: 2, Action: "after", Target: "svc", Automated: true, Timeout: time.Second, Status: domain.StepPending},
		},
	}

	start := time.Now()
	res := e.ExecuteHealingSteps(context.Background(), &a)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("ExecuteHealingSteps took %s, timeout not enforced", elapsed)
	}
	if res.Success {
		t.Fatal("timed-out action reported success")
	}
	if a.Steps[0].Status != domain.StepFailed || !strings.Contains(a.Steps[0].Error, domain.ErrStepTimeout.Error()) {
		t.Errorf("step 1 = %s %q, want failed timeout", a.Steps[0].Status, a.Steps[0].Error)
	}
	if a.Steps[1].Status != domain.StepSkipped {
		t.Errorf("step 2 = %s, want skipped", a.Steps[1].Status)
	}
}

func TestExecuteHealingSteps_RunnerPanicIsStepFailure(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{panicOn: "scale_out"})
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("p", domain.IncidentPerformance, domain.SeverityHigh)})[0]

	res := e.ExecuteHealingSteps(context.Background(), &a)
	if res.Success || a.Steps[0].Status != domain.StepFailed {
		t.Errorf("panic not converted to failure: %+v", a.Steps[0])
	}
}

func TestExecuteHealingSteps_MetricsUnavailable(t *testing.T) {
	e, _, col := newTestExecutor(t, &fakeRunner{})
	col.err = errors.New("collector down")
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("p", domain.IncidentPerformance, domain.SeverityHigh)})[0]

	res := e.ExecuteHealingSteps(context.Background(), &a)
	if !res.Success {
		t.Errorf("steps succeeded, result should be successful: %+v", res)
	}
	if res.VerificationPassed {
		t.Error("verification cannot pass without metrics")
	}
}

func TestExecuteHealingSteps_CircuitOpensPerTarget(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"scale_out": true}}
	e, _, _ := newTestExecutor(t, runner)
	inc := activeIncident("p", domain.IncidentPerformance, domain.SeverityHigh)
	inc.Impact.AffectedServices = []string{"checkout"}

	for i := 0; i < DefaultBreakerConfig().FailureThreshold; i++ {
		a := e.CreateHealingActions([]domain.HealthIncident{inc})[0]
		e.ExecuteHealingSteps(context.Background(), &a)
	}
	ran := len(runner.ranSteps())

	a := e.CreateHealingActions([]domain.HealthIncident{inc})[0]
	e.ExecuteHealingSteps(context.Background(), &a)
	if len(runner.ranSteps()) != ran {
		t.Error("runner called while circuit open")
	}
	if !strings.Contains(a.Steps[0].Error, domain.ErrCircuitOpen.Error()) {
		t.Errorf("step error = %q, want circuit open", a.Steps[0].Error)
	}
	if e.Breakers().For("checkout").State() != CBOpen {
		t.Error("checkout breaker should be open")
	}
}

func TestExecuteHealingSteps_FailingServiceDoesNotBlockOthers(t *testing.T) {
	runner := &fakeRunner{failTarget: map[string]bool{"checkout": true}}
	e, _, _ := newTestExecutor(t, runner)
	checkout := activeIncident("p-checkout", domain.IncidentPerformance, domain.SeverityHigh)
	checkout.Impact.AffectedServices = []string{"checkout"}
	search := activeIncident("p-search", domain.IncidentPerformance, domain.SeverityHigh)
	search.Impact.AffectedServices = []string{"search"}

	for i := 0; i < DefaultBreakerConfig().FailureThreshold; i++ {
		a := e.CreateHealingActions([]domain.HealthIncident{checkout})[0]
		e.ExecuteHealingSteps(context.Background(), &a)
	}
	if e.Breakers().For("checkout").State() != CBOpen {
		t.Fatal("checkout breaker should be open")
	}

	a := e.CreateHealingActions([]domain.HealthIncident{search})[0]
	res := e.ExecuteHealingSteps(context.Background(), &a)
	if !res.Success || a.Status != domain.ActionCompleted {
		t.Fatalf("search action = %s (%s), want completed", a.Status, res.Message)
	}
	if e.Breakers().For("search").State() != CBClosed {
		t.Error("search breaker should stay closed")
	}
}

func TestCreateHealingActions_StepsNameIncidentAndService(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	withService := activeIncident("perf-1", domain.IncidentPerformance, domain.SeverityHigh)
	withService.Impact.AffectedServices = []string{"checkout"}
	noService := activeIncident("err-1", domain.IncidentError, domain.SeverityHigh)

	actions := e.CreateHealingActions([]domain.HealthIncident{withService, noService})
	if len(actions) != 2 {
		t.Fatalf("len(actions) = %d, want 2", len(actions))
	}

	for _, s := range actions[0].Steps {
		if s.Target != "checkout" || s.Params["service"] != "checkout" || s.Params["incident"] != "perf-1" {
			t.Errorf("step %d target=%q params=%v, want checkout/perf-1", s.Order, s.Target, s.Params)
		}
		if s.Params["component"] == "" {
			t.Errorf("step %d lost its template component", s.Order)
		}
	}
	if actions[0].Steps[0].Params["factor"] != "2" {
		t.Errorf("template params not kept: %v", actions[0].Steps[0].Params)
	}

	for _, s := range actions[1].Steps {
		if s.Target != "error_log" || s.Params["incident"] != "err-1" {
			t.Errorf("fallback step %d target=%q params=%v, want error_log/err-1", s.Order, s.Target, s.Params)
		}
	}
}

// ─── Autonomous Execution ───────────────────────────────────────────────────

func TestExecuteAutoHealing_ResolvesIncident(t *testing.T) {
	e, idx, _ := newTestExecutor(t, &fakeRunner{})
	inc := activeIncident("avail-1", domain.IncidentAvailability, domain.SeverityHigh)
	idx.Record(inc)

	actions := e.CreateHealingActions([]domain.HealthIncident{inc})
	touched := e.ExecuteAutoHealing(context.Background(), []*domain.HealingAction{&actions[0]})

	if len(touched) != 1 {
		t.Fatalf("touched = %d, want 1", len(touched))
	}
	got := touched[0]
	if got.Status != domain.StatusResolved {
		t.Fatalf("incident status = %s, want resolved", got.Status)
	}
	if got.ResolvedAt.Before(got.DetectedAt) {
		t.Error("ResolvedAt before DetectedAt")
	}
	if got.ResolutionMethod != actions[0].Type {
		t.Errorf("ResolutionMethod = %s, want %s", got.ResolutionMethod, actions[0].Type)
	}
	if got.HealingAttempts != 1 {
		t.Errorf("HealingAttempts = %d, want 1", got.HealingAttempts)
	}
	if idx.ActiveCount() != 0 {
		t.Errorf("index active = %d, want 0", idx.ActiveCount())
	}
	if actions[0].Status != domain.ActionCompleted {
		t.Errorf("action status = %s, want completed", actions[0].Status)
	}
}

func TestExecuteAutoHealing_FailureRearmsThenEscalates(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"rollback_deployment": true}}
	e, idx, _ := newTestExecutor(t, runner)
	inc := activeIncident("data-1", domain.IncidentDataIntegrity, domain.SeverityHigh)
	idx.Record(inc)

	maxAttempts := DefaultConfig().MaxAttempts
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		a := e.CreateHealingActions([]domain.HealthIncident{inc})[0]
		touched := e.ExecuteAutoHealing(context.Background(), []*domain.HealingAction{&a})
		if len(touched) != 1 {
			t.Fatalf("attempt %d: touched = %d, want 1", attempt, len(touched))
		}
		want := domain.StatusActive
		if attempt == maxAttempts {
			want = domain.StatusEscalated
		}
		if touched[0].Status != want {
			t.Errorf("attempt %d: status = %s, want %s", attempt, touched[0].Status, want)
		}
		if touched[0].HealingAttempts != attempt {
			t.Errorf("attempt %d: HealingAttempts = %d", attempt, touched[0].HealingAttempts)
		}
	}
	if idx.ActiveCount() != 0 {
		t.Error("escalated incident still active")
	}
	if idx.Stats().TotalEscalated != 1 {
		t.Errorf("TotalEscalated = %d, want 1", idx.Stats().TotalEscalated)
	}
}

func TestExecuteAutoHealing_BatchContinuesAfterFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"scale_out": true}}
	e, idx, _ := newTestExecutor(t, runner)
	perf := activeIncident("perf", domain.IncidentPerformance, domain.SeverityHigh)
	errInc := activeIncident("err", domain.IncidentError, domain.SeverityHigh)
	idx.RecordAll([]domain.HealthIncident{perf, errInc})

	actions := e.CreateHealingActions([]domain.HealthIncident{perf, errInc})
	ptrs := []*domain.HealingAction{&actions[0], &actions[1]}
	e.ExecuteAutoHealing(context.Background(), ptrs)

	if actions[0].Status != domain.ActionFailed {
		t.Errorf("perf action = %s, want failed", actions[0].Status)
	}
	if actions[1].Status != domain.ActionCompleted {
		t.Errorf("error action = %s, want completed", actions[1].Status)
	}
}

func TestExecuteAutoHealing_SkipsManualAndUntracked(t *testing.T) {
	runner := &fakeRunner{}
	e, idx, _ := newTestExecutor(t, runner)
	sec := activeIncident("sec", domain.IncidentSecurity, domain.SeverityHigh)
	idx.Record(sec)
	ghost := activeIncident("ghost", domain.IncidentError, domain.SeverityHigh)

	actions := e.CreateHealingActions([]domain.HealthIncident{sec, ghost})
	touched := e.ExecuteAutoHealing(context.Background(), []*domain.HealingAction{&actions[0], &actions[1]})

	if len(touched) != 0 || len(runner.ranSteps()) != 0 {
		t.Errorf("touched %d, ran %v; want nothing", len(touched), runner.ranSteps())
	}
	if actions[0].Status != domain.ActionPending || actions[1].Status != domain.ActionPending {
		t.Error("skipped actions should stay pending")
	}
}

// ─── Manual Execution ───────────────────────────────────────────────────────

func TestExecuteHealingAction_VerifyRollbackPlan(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("d", domain.IncidentDataIntegrity, domain.SeverityHigh)})[0]
	a.RollbackPlan = ""

	err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{Verify: true})
	if !errors.Is(err, domain.ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	if a.Status != domain.ActionPending {
		t.Errorf("status = %s, verification must run before any step", a.Status)
	}
}

func TestExecuteHealingAction_RejectsCompleted(t *testing.T) {
	e, _, _ := newTestExecutor(t, &fakeRunner{})
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("p", domain.IncidentPerformance, domain.SeverityLow)})[0]
	if err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{}); !errors.Is(err, domain.ErrVerificationFailed) {
		t.Errorf("second run err = %v, want ErrVerificationFailed", err)
	}
}

func TestExecuteHealingAction_RollbackOnFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"verify_health": true}}
	e, _, _ := newTestExecutor(t, runner)
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("e", domain.IncidentError, domain.SeverityHigh)})[0]

	err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{Verify: true, RollbackOnFailure: true})
	if !errors.Is(err, domain.ErrHealingRolledBack) {
		t.Fatalf("err = %v, want ErrHealingRolledBack", err)
	}
	if a.Status != domain.ActionRolledBack {
		t.Errorf("status = %s, want rolled-back", a.Status)
	}
	if len(runner.rolledBack) != 1 || runner.rolledBack[0] != a.ID {
		t.Errorf("rolledBack = %v", runner.rolledBack)
	}
}

func TestExecuteHealingAction_FailureWithoutRollback(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"verify_health": true}}
	e, _, _ := newTestExecutor(t, runner)
	a := e.CreateHealingActions([]domain.HealthIncident{activeIncident("e", domain.IncidentError, domain.SeverityHigh)})[0]

	err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{})
	if !errors.Is(err, domain.ErrHealingFailed) || errors.Is(err, domain.ErrHealingRolledBack) {
		t.Fatalf("err = %v, want ErrHealingFailed only", err)
	}
	if len(runner.rolledBack) != 0 {
		t.Error("rollback invoked without RollbackOnFailure")
	}
}

func TestExecuteHealingAction_RerunFailedWithMonitor(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"scale_out": true}}
	e, idx, _ := newTestExecutor(t, runner)
	inc := activeIncident("p", domain.IncidentPerformance, domain.SeverityHigh)
	idx.Record(inc)
	a := e.CreateHealingActions([]domain.HealthIncident{inc})[0]

	if err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{}); err == nil {
		t.Fatal("first run should fail")
	}
	runner.mu.Lock()
	runner.fail = nil
	runner.mu.Unlock()

	if err := e.ExecuteHealingAction(context.Background(), &a, ExecuteOptions{Monitor: true}); err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if a.Status != domain.ActionCompleted {
		t.Errorf("status = %s, want completed", a.Status)
	}
	last := a.Notes[len(a.Notes)-1]
	if !strings.Contains(last, "availability") {
		t.Errorf("last note = %q, want progress note", last)
	}
	if idx.ActiveCount() != 0 {
		t.Error("incident should be resolved after successful re-run")
	}
}
