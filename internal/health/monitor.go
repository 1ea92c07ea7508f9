package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

// SourceMonitor marks incidents raised by the availability monitor.
const SourceMonitor = "monitor"

// AvailabilityProbe reads current availability.
type AvailabilityProbe interface {
	Availability(ctx context.Context) (float64, error)
}

// IncidentSink receives monitor incidents. RecordIfNoActive must skip the
// incident when an active one from the same source and type exists.
type IncidentSink interface {
	RecordIfNoActive(inc domain.HealthIncident) bool
}

// MonitorConfig configures the availability monitor.
type MonitorConfig struct {
	Interval      time.Duration // default 60s
	Threshold     float64       // raise an incident below this percent (default 95)
	CriticalBelow float64       // critical below this percent (default 90)
	Now           func() time.Time
}

// DefaultMonitorConfig returns production defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:      60 * time.Second,
		Threshold:     95,
		CriticalBelow: 90,
		Now:           time.Now,
	}
}

// Status is the result of one availability check.
type Status struct {
	Availability float64   `json:"availability"`
	Healthy      bool      `json:"healthy"`
	Error        string    `json:"error,omitempty"`
	IncidentID   string    `json:"incident_id,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Monitor periodically checks availability and registers incidents.
type Monitor struct {
	mu      sync.RWMutex
	cfg     MonitorConfig
	probe   AvailabilityProbe
	sink    IncidentSink
	log     *zap.Logger
	last    Status
	checks  int64
	onCheck func(Status)
}

// NewMonitor creates an availability monitor.
func NewMonitor(cfg MonitorConfig, probe AvailabilityProbe, sink IncidentSink, log *zap.Logger) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.CriticalBelow <= 0 {
		cfg.CriticalBelow = def.CriticalBelow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{cfg: cfg, probe: probe, sink: sink, log: log.Named("monitor")}
}

// OnCheck registers a callback invoked after every check. Used for metrics.
func (m *Monitor) OnCheck(fn func(Status)) {
	m.mu.Lock()
	m.onCheck = fn
	m.mu.Unlock()
}

// Run starts the monitor loop at the configured interval and blocks until
// ctx is cancelled. Call in a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	m.RunEvery(ctx, m.cfg.Interval)
}

// RunEvery is Run with an explicit interval. Non-positive intervals fall
// back to the configured one.
func (m *Monitor) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.Interval
	}

	// Run immediately on start
	m.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check performs one availability check. Errors are logged and recorded,
// never returned.
func (m *Monitor) Check(ctx context.Context) Status {
	s := Status{CheckedAt: m.cfg.Now()}

	avail, err := m.probe.Availability(ctx)
	if err != nil {
		s.Error = err.Error()
		m.log.Warn("availability check failed", zap.Error(err))
	} else {
		s.Availability = avail
		s.Healthy = avail >= m.cfg.Threshold
		if !s.Healthy {
			inc := m.incident(avail, s.CheckedAt)
			if m.sink.RecordIfNoActive(inc) {
				s.IncidentID = inc.ID
				m.log.Warn("availability below threshold",
					zap.Float64("availability", avail),
					zap.String("severity", string(inc.Severity)),
					zap.String("incident", inc.ID),
				)
			}
		}
	}

	m.mu.Lock()
	m.last = s
	m.checks++
	cb := m.onCheck
	m.mu.Unlock()
	if cb != nil {
		cb(s)
	}
	return s
}

func (m *Monitor) incident(avail float64, now time.Time) domain.HealthIncident {
	sev := domain.SeverityHigh
	if avail < m.cfg.CriticalBelow {
		sev = domain.SeverityCritical
	}
	return domain.HealthIncident{
		ID:          uuid.NewString(),
		Title:       "Platform availability degraded",
		Description: fmt.Sprintf("availability %.2f%% below %.0f%%", avail, m.cfg.Threshold),
		Source:      SourceMonitor,
		Type:        domain.IncidentAvailability,
		Severity:    sev,
		DetectedAt:  now,
		Status:      domain.StatusActive,
		Impact:      domain.Impact{Availability: avail},
	}
}

// Last returns the most recent check result.
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Checks returns how many checks have run.
func (m *Monitor) Checks() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checks
}

// IsHealthy returns true if the last check passed.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last.Healthy
}
