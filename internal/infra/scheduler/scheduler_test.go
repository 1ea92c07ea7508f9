package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/selfheal"
)

// ═══════════════════════════════════════════════════════════════════════════
// Scheduler Tests
// ═══════════════════════════════════════════════════════════════════════════

type fakeCycle struct {
	calls  atomic.Int64
	mu     sync.Mutex
	err    error
	panic  bool
	report CycleReport
}

func (c *fakeCycle) RunAutonomousCycle(context.Context, float64, bool) (CycleReport, error) {
	c.calls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panic {
		panic("cycle exploded")
	}
	report := c.report
	c.report = CycleReport{}
	return report, c.err
}

func (c *fakeCycle) set(err error, panics bool) {
	c.mu.Lock()
	c.err, c.panic = err, panics
	c.mu.Unlock()
}

type fakeMonitor struct {
	starts atomic.Int64
}

func (m *fakeMonitor) RunEvery(ctx context.Context, _ time.Duration) {
	m.starts.Add(1)
	<-ctx.Done()
}

type fakeHealer struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (h *fakeHealer) RetryAction(_ context.Context, a domain.HealingAction) (domain.HealingAction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, a.ID)
	next := a
	next.ID = a.ID + "+"
	if h.fail {
		next.Status = domain.ActionFailed
		return next, domain.ErrHealingFailed
	}
	next.Status = domain.ActionCompleted
	return next, nil
}

func (h *fakeHealer) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func fastOptions() Options {
	return Options{
		CheckInterval:    10 * time.Millisecond,
		MonitorInterval:  time.Hour,
		RetryInterval:    5 * time.Millisecond,
		HealingThreshold: 0.8,
		MaxRetries:       2,
		Preventive:       true,
		GracePeriod:      50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestScheduler_StartStop(t *testing.T) {
	cycle := &fakeCycle{}
	mon := &fakeMonitor{}
	s := New(cycle, &fakeHealer{}, mon, selfheal.NewIndex(selfheal.DefaultConfig()), nil)

	if err := s.Stop(); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Stop() before Start = %v, want ErrNotRunning", err)
	}
	if err := s.Start(context.Background(), fastOptions()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := s.Start(context.Background(), fastOptions()); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if !s.Running() || !s.MonitoringActive() {
		t.Error("scheduler should be running with monitoring active")
	}

	waitFor(t, "cycles", func() bool { return cycle.calls.Load() >= 2 })

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if s.Running() || s.MonitoringActive() {
		t.Error("scheduler still active after Stop")
	}
	if mon.starts.Load() != 1 {
		t.Errorf("monitor starts = %d, want 1", mon.starts.Load())
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{Preventive: false}.withDefaults()
	def := DefaultOptions()
	if o.CheckInterval != def.CheckInterval || o.MonitorInterval != def.MonitorInterval {
		t.Errorf("intervals = %s/%s", o.CheckInterval, o.MonitorInterval)
	}
	if o.HealingThreshold != 0.8 || o.MaxRetries != 3 {
		t.Errorf("threshold/retries = %v/%d", o.HealingThreshold, o.MaxRetries)
	}
	if o.Preventive {
		t.Error("explicit Preventive=false must be preserved")
	}
	if def.CheckInterval != 300*time.Second || def.MonitorInterval != 60*time.Second {
		t.Error("default intervals changed")
	}
}

// ─── Self-Healing ───────────────────────────────────────────────────────────

func testSelfHeal(t *testing.T, fail func(*fakeCycle)) {
	t.Helper()
	cycle := &fakeCycle{}
	mon := &fakeMonitor{}
	idx := selfheal.NewIndex(selfheal.DefaultConfig())
	idx.RecordAll([]domain.HealthIncident{
		{ID: "a", Type: domain.IncidentError, Severity: domain.SeverityHigh, Status: domain.StatusActive, DetectedAt: time.Now()},
		{ID: "b", Type: domain.IncidentAvailability, Severity: domain.SeverityCritical, Status: domain.StatusActive, DetectedAt: time.Now()},
	})

	s := New(cycle, &fakeHealer{}, mon, idx, nil)
	var healed atomic.Int64
	var clearedSeen atomic.Int64
	s.OnSelfHeal(func(cleared int) {
		clearedSeen.Store(int64(cleared))
		healed.Add(1)
	})

	fail(cycle)
	if err := s.Start(context.Background(), fastOptions()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// active → inactive
	waitFor(t, "monitoring inactive", func() bool { return !s.MonitoringActive() })
	if idx.ActiveCount() != 2 {
		t.Errorf("index cleared before grace period elapsed: %d active", idx.ActiveCount())
	}
	cycle.set(nil, false)

	// inactive → active after grace
	waitFor(t, "self-heal", func() bool { return healed.Load() >= 1 })
	if !s.MonitoringActive() {
		t.Error("monitoring should be active after self-heal")
	}
	if idx.ActiveCount() != 0 {
		t.Errorf("active incidents after recovery = %d, want 0", idx.ActiveCount())
	}
	if clearedSeen.Load() != 2 {
		t.Errorf("cleared = %d, want 2", clearedSeen.Load())
	}
	waitFor(t, "monitor restart", func() bool { return mon.starts.Load() == 2 })
	if s.Stats().SelfHeals < 1 || s.Stats().FailedCycles < 1 {
		t.Errorf("stats = %+v", s.Stats())
	}
}

func TestScheduler_SelfHealOnError(t *testing.T) {
	testSelfHeal(t, func(c *fakeCycle) { c.set(errors.New("metrics backend down"), false) })
}

func TestScheduler_SelfHealOnPanic(t *testing.T) {
	testSelfHeal(t, func(c *fakeCycle) { c.set(nil, true) })
}

func TestScheduler_StopDuringGracePeriod(t *testing.T) {
	cycle := &fakeCycle{err: errors.New("boom")}
	opts := fastOptions()
	opts.GracePeriod = time.Hour
	s := New(cycle, &fakeHealer{}, &fakeMonitor{}, selfheal.NewIndex(selfheal.DefaultConfig()), nil)
	if err := s.Start(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "monitoring inactive", func() bool { return !s.MonitoringActive() })

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop() = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() blocked by grace period")
	}
}

// ─── Retries ────────────────────────────────────────────────────────────────

func TestScheduler_RetriesFailedActions(t *testing.T) {
	failed := domain.HealingAction{ID: "act", IncidentID: "inc", Status: domain.ActionFailed}
	cycle := &fakeCycle{report: CycleReport{Failed: []domain.HealingAction{failed}}}
	healer := &fakeHealer{}
	s := New(cycle, healer, &fakeMonitor{}, selfheal.NewIndex(selfheal.DefaultConfig()), nil)

	opts := fastOptions()
	if err := s.Start(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// First backoff is DefaultRetryConfig().BaseDelay, so only check queuing.
	waitFor(t, "retry queued", func() bool { return s.Stats().Retries.TotalRetries == 1 })
	if healer.count() != 0 {
		t.Error("retry ran before backoff elapsed")
	}
}

func TestScheduler_ProcessRetriesEscalatesWhenExhausted(t *testing.T) {
	idx := selfheal.NewIndex(selfheal.DefaultConfig())
	idx.Record(domain.HealthIncident{ID: "inc", Type: domain.IncidentError, Severity: domain.SeverityHigh, Status: domain.StatusActive, DetectedAt: time.Now()})

	healer := &fakeHealer{fail: true}
	s := New(&fakeCycle{}, healer, &fakeMonitor{}, idx, nil)
	clock := time.Now()
	s.retries = NewRetryQueue(RetryConfig{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: time.Minute, Now: func() time.Time { return clock }})

	s.enqueueRetry(RetryEntry{Action: domain.HealingAction{ID: "act", IncidentID: "inc"}})
	for i := 0; i < 3; i++ {
		clock = clock.Add(time.Minute)
		s.processRetries(context.Background())
	}

	if healer.count() != 2 {
		t.Errorf("retries run = %d, want 2", healer.count())
	}
	if idx.ActiveCount() != 0 {
		t.Error("incident should be escalated after retries exhausted")
	}
	if got := idx.Stats().TotalEscalated; got != 1 {
		t.Errorf("TotalEscalated = %d, want 1", got)
	}
	if s.retryQueue().RetryStats().TotalExhausted != 1 {
		t.Error("exhaustion not counted")
	}
}

func TestScheduler_ProcessRetriesSuccessDropsEntry(t *testing.T) {
	healer := &fakeHealer{}
	s := New(&fakeCycle{}, healer, &fakeMonitor{}, selfheal.NewIndex(selfheal.DefaultConfig()), nil)
	clock := time.Now()
	s.retries = NewRetryQueue(RetryConfig{MaxRetries: 3, BaseDelay: time.Second, Now: func() time.Time { return clock }})

	s.enqueueRetry(RetryEntry{Action: domain.HealingAction{ID: "act"}})
	clock = clock.Add(time.Second)
	s.processRetries(context.Background())

	if healer.count() != 1 || s.retryQueue().Len() != 0 {
		t.Errorf("healer calls = %d, pending = %d", healer.count(), s.retryQueue().Len())
	}
}
