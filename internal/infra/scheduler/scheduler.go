// Package scheduler drives the engine autonomously.
//
// Two periodic tasks run under one supervisor:
//   - Monitor: a lightweight availability check (default every 60s) that
//     registers incidents directly in the incident index.
//   - Healing loop: a full autonomous cycle (default every 300s) plus the
//     retry queue for failed automated actions.
//
// The supervisor owns the monitor's lifecycle. When a healing cycle fails
// (error or panic) or the monitor dies, it heals the engine itself:
//
//	monitoring inactive → wait grace period → clear active incidents
//	→ monitoring active → restart monitor
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/metrics"
)

// ─── Collaborators ──────────────────────────────────────────────────────────

// CycleReport summarizes one autonomous cycle.
type CycleReport struct {
	IncidentsDetected int
	Emergency         int
	Preventive        int
	Failed            []domain.HealingAction // failed automated actions, for retry
}

// Cycle is one autonomous healing pass.
type Cycle interface {
	RunAutonomousCycle(ctx context.Context, threshold float64, preventive bool) (CycleReport, error)
}

// Healer re-runs a failed action. The returned action is the new attempt;
// the error is non-nil when it failed again.
type Healer interface {
	RetryAction(ctx context.Context, a domain.HealingAction) (domain.HealingAction, error)
}

// MonitorRunner is the availability monitor loop.
type MonitorRunner interface {
	RunEvery(ctx context.Context, interval time.Duration)
}

// IncidentIndex is the part of the incident index the supervisor touches.
type IncidentIndex interface {
	ClearActive() int
	Escalate(id string) error
}

// ─── Options ────────────────────────────────────────────────────────────────

// Options configures autonomous healing.
type Options struct {
	CheckInterval    time.Duration // healing cycle interval (default 300s)
	MonitorInterval  time.Duration // availability check interval (default 60s)
	RetryInterval    time.Duration // how often due retries are drained (default 30s)
	HealingThreshold float64       // prediction probability for preventive actions (default 0.8)
	MaxRetries       int           // retries per failed action (default 3)
	Preventive       bool          // run preventive actions (default true)
	GracePeriod      time.Duration // self-heal wait before clearing state (default 30s)
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		CheckInterval:    300 * time.Second,
		MonitorInterval:  60 * time.Second,
		RetryInterval:    30 * time.Second,
		HealingThreshold: 0.8,
		MaxRetries:       3,
		Preventive:       true,
		GracePeriod:      30 * time.Second,
	}
}

// withDefaults fills zero fields. Preventive is taken as given.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CheckInterval <= 0 {
		o.CheckInterval = def.CheckInterval
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = def.MonitorInterval
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = def.RetryInterval
	}
	if o.HealingThreshold <= 0 || o.HealingThreshold > 1 {
		o.HealingThreshold = def.HealingThreshold
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.GracePeriod < 0 {
		o.GracePeriod = def.GracePeriod
	}
	return o
}

// ─── Scheduler ──────────────────────────────────────────────────────────────

// Scheduler is the autonomous-healing supervisor.
type Scheduler struct {
	cycle   Cycle
	healer  Healer
	monitor MonitorRunner
	index   IncidentIndex
	log     *zap.Logger

	mu         sync.Mutex
	opts       Options
	running    bool
	cancel     context.CancelFunc
	monCancel  context.CancelFunc
	loopDone   chan struct{}
	monWG      sync.WaitGroup
	retries    *RetryQueue
	onSelfHeal func(cleared int)
	onCycle    func(CycleReport, error)

	monitoring atomic.Bool
	cycles     atomic.Int64
	failures   atomic.Int64
	selfHeals  atomic.Int64
}

// New creates a stopped scheduler.
func New(cycle Cycle, healer Healer, monitor MonitorRunner, index IncidentIndex, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cycle:   cycle,
		healer:  healer,
		monitor: monitor,
		index:   index,
		log:     log.Named("scheduler"),
		opts:    DefaultOptions(),
		retries: NewRetryQueue(DefaultRetryConfig()),
	}
}

// OnSelfHeal registers a callback invoked after each self-heal.
func (s *Scheduler) OnSelfHeal(fn func(cleared int)) {
	s.mu.Lock()
	s.onSelfHeal = fn
	s.mu.Unlock()
}

// OnCycle registers a callback invoked after each healing cycle.
func (s *Scheduler) OnCycle(fn func(CycleReport, error)) {
	s.mu.Lock()
	s.onCycle = fn
	s.mu.Unlock()
}

// Start launches the monitor and the healing loop. The loops stop when ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return domain.ErrAlreadyRunning
	}

	s.opts = opts.withDefaults()
	s.retries = NewRetryQueue(RetryConfig{MaxRetries: s.opts.MaxRetries})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.loopDone = make(chan struct{})
	s.startMonitorLocked(runCtx)

	go s.healingLoop(runCtx, s.opts, s.loopDone)

	s.log.Info("autonomous healing started",
		zap.Duration("check_interval", s.opts.CheckInterval),
		zap.Duration("monitor_interval", s.opts.MonitorInterval),
		zap.Float64("threshold", s.opts.HealingThreshold),
		zap.Bool("preventive", s.opts.Preventive),
	)
	return nil
}

// Stop halts both loops and waits for them to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return domain.ErrNotRunning
	}
	s.cancel()
	done := s.loopDone
	s.mu.Unlock()

	<-done
	s.monWG.Wait()
	s.monitoring.Store(false)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.log.Info("autonomous healing stopped")
	return nil
}

// Running reports whether autonomous healing is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// MonitoringActive reports whether the availability monitor is running.
func (s *Scheduler) MonitoringActive() bool {
	return s.monitoring.Load()
}

// Options returns the options in effect.
func (s *Scheduler) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// ─── Monitor Lifecycle ──────────────────────────────────────────────────────

// startMonitorLocked launches the monitor goroutine. Must hold s.mu.
func (s *Scheduler) startMonitorLocked(parent context.Context) {
	monCtx, cancel := context.WithCancel(parent)
	s.monCancel = cancel
	s.monitoring.Store(true)

	interval := s.opts.MonitorInterval
	s.monWG.Add(1)
	go func() {
		defer s.monWG.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("monitor panicked", zap.Any("panic", r))
				s.monitoring.Store(false)
			}
		}()
		s.monitor.RunEvery(monCtx, interval)
	}()
}

func (s *Scheduler) stopMonitor() {
	s.mu.Lock()
	cancel := s.monCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.monWG.Wait()
}

// ─── Healing Loop ───────────────────────────────────────────────────────────

func (s *Scheduler) healingLoop(ctx context.Context, opts Options, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(opts.CheckInterval)
	defer ticker.Stop()
	retryTicker := time.NewTicker(opts.RetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.runCycle(ctx, opts)
			if ctx.Err() != nil {
				return
			}
			if err != nil || !s.monitoring.Load() {
				s.selfHeal(ctx, opts, err)
			}
		case <-retryTicker.C:
			s.processRetries(ctx)
		}
	}
}

// runCycle runs one autonomous cycle, converting a panic into an error.
func (s *Scheduler) runCycle(ctx context.Context, opts Options) (err error) {
	var report CycleReport
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("autonomous cycle panicked: %v", r)
		}
		s.cycles.Add(1)
		if err != nil {
			s.failures.Add(1)
			s.log.Error("autonomous cycle failed", zap.Error(err))
		}
		s.mu.Lock()
		cb := s.onCycle
		s.mu.Unlock()
		if cb != nil {
			cb(report, err)
		}
	}()

	report, err = s.cycle.RunAutonomousCycle(ctx, opts.HealingThreshold, opts.Preventive)
	if err != nil {
		return err
	}
	for _, a := range report.Failed {
		s.enqueueRetry(RetryEntry{Action: a, Error: failureMessage(a)})
	}
	s.log.Debug("autonomous cycle complete",
		zap.Int("incidents", report.IncidentsDetected),
		zap.Int("emergency", report.Emergency),
		zap.Int("preventive", report.Preventive),
		zap.Int("failed", len(report.Failed)),
	)
	return nil
}

// selfHeal restarts the monitor after a grace period with a clean incident
// index.
func (s *Scheduler) selfHeal(ctx context.Context, opts Options, cause error) {
	if cause == nil {
		cause = errors.New("monitor not running")
	}
	s.log.Warn("self-healing engine", zap.Error(cause), zap.Duration("grace", opts.GracePeriod))

	s.monitoring.Store(false)
	s.stopMonitor()

	if opts.GracePeriod > 0 {
		timer := time.NewTimer(opts.GracePeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	cleared := s.index.ClearActive()

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.startMonitorLocked(ctx)
	cb := s.onSelfHeal
	s.mu.Unlock()

	s.selfHeals.Add(1)
	s.log.Info("engine self-healed", zap.Int("incidents_cleared", cleared))
	if cb != nil {
		cb(cleared)
	}
}

// ─── Retries ────────────────────────────────────────────────────────────────

func (s *Scheduler) retryQueue() *RetryQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

func (s *Scheduler) enqueueRetry(entry RetryEntry) {
	if s.retryQueue().ScheduleRetry(entry) {
		metrics.RetriesScheduled.Inc()
		return
	}
	metrics.RetriesExhausted.Inc()
	s.log.Warn("healing retries exhausted",
		zap.String("action", entry.Action.ID),
		zap.String("incident", entry.Action.IncidentID),
		zap.Int("attempts", entry.Attempt),
	)
	if entry.Action.IncidentID == "" {
		return
	}
	if err := s.index.Escalate(entry.Action.IncidentID); err != nil && !errors.Is(err, domain.ErrIncidentNotFound) {
		s.log.Error("escalation failed", zap.String("incident", entry.Action.IncidentID), zap.Error(err))
	}
}

// processRetries re-runs every due retry. A failed retry is queued again
// until MaxRetries, then its incident is escalated.
func (s *Scheduler) processRetries(ctx context.Context) {
	for _, entry := range s.retryQueue().DrainReady() {
		if ctx.Err() != nil {
			return
		}
		next, err := s.retryOne(ctx, entry.Action)
		if err == nil {
			s.log.Info("healing retry succeeded",
				zap.String("action", next.ID),
				zap.Int("attempt", entry.Attempt),
			)
			continue
		}
		entry.Action = next
		entry.Error = err.Error()
		s.enqueueRetry(entry)
	}
}

func (s *Scheduler) retryOne(ctx context.Context, a domain.HealingAction) (next domain.HealingAction, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, err = a, fmt.Errorf("retry panicked: %v", r)
		}
	}()
	return s.healer.RetryAction(ctx, a)
}

func failureMessage(a domain.HealingAction) string {
	if a.Result != nil {
		return a.Result.Message
	}
	return string(a.Status)
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats holds scheduler statistics.
type Stats struct {
	Running          bool       `json:"running"`
	MonitoringActive bool       `json:"monitoring_active"`
	Cycles           int64      `json:"cycles"`
	FailedCycles     int64      `json:"failed_cycles"`
	SelfHeals        int64      `json:"self_heals"`
	Retries          RetryStats `json:"retries"`
}

// Stats returns current scheduler statistics.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Running:          s.Running(),
		MonitoringActive: s.MonitoringActive(),
		Cycles:           s.cycles.Load(),
		FailedCycles:     s.failures.Load(),
		SelfHeals:        s.selfHeals.Load(),
		Retries:          s.retryQueue().RetryStats(),
	}
}
