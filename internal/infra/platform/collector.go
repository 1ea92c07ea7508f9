package platform

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/metrics"
)

// ─── Interfaces ─────────────────────────────────────────────────────────────

// CapacityProbe measures resource utilization.
type CapacityProbe interface {
	Capacity(ctx context.Context) (domain.CapacityMetrics, error)
}

// ReliabilitySource derives mean-time figures from incident history.
type ReliabilitySource interface {
	Reliability() domain.ReliabilityMetrics
}

// ─── Host Probe ─────────────────────────────────────────────────────────────

// HostProbe measures the local host with gopsutil. Network usage is not
// observable as a percentage on the host and is left to the platform.
type HostProbe struct {
	DiskPath string // default "/"
}

// Capacity returns CPU, memory and disk utilization in percent.
func (h HostProbe) Capacity(ctx context.Context) (domain.CapacityMetrics, error) {
	path := h.DiskPath
	if path == "" {
		path = "/"
	}
	var out domain.CapacityMetrics

	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return out, fmt.Errorf("host probe: cpu: %w", err)
	}
	if len(pct) > 0 {
		out.CPU.Used = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return out, fmt.Errorf("host probe: memory: %w", err)
	}
	out.Memory.Used = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return out, fmt.Errorf("host probe: disk %s: %w", path, err)
	}
	out.Storage.Used = du.UsedPercent

	return out, nil
}

// ─── Collector ──────────────────────────────────────────────────────────────

// CollectorConfig configures metric collection.
type CollectorConfig struct {
	Tables        Tables
	Window        time.Duration // sample look-back (default 15m)
	DefaultTarget float64       // availability target when samples carry none (default 99.9)
	TrendDelta    float64       // change that counts as a trend (default 0.1)
	Now           func() time.Time
}

// DefaultCollectorConfig returns production defaults.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Tables:        DefaultTables(),
		Window:        15 * time.Minute,
		DefaultTarget: 99.9,
		TrendDelta:    0.1,
		Now:           time.Now,
	}
}

type capSample struct {
	at  time.Time
	cap domain.CapacityMetrics
}

// Collector snapshots platform health. Availability and performance come
// from the platform's sample tables; capacity comes from the probe, with
// network usage taken from the platform. Growth and trend are derived from
// the previous snapshot.
type Collector struct {
	rc    domain.RecordClient // nil: host-only mode
	probe CapacityProbe       // nil: no host capacity
	rel   ReliabilitySource   // nil: zero reliability
	cfg   CollectorConfig
	log   *zap.Logger

	mu       sync.Mutex
	prevCap  *capSample
	prevAvl  float64
	prevLat  float64
	havePrev bool
}

// NewCollector creates a collector. With a nil record client it reports
// full availability and no performance data (host-only mode).
func NewCollector(rc domain.RecordClient, probe CapacityProbe, rel ReliabilitySource, cfg CollectorConfig, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultCollectorConfig()
	cfg.Tables = cfg.Tables.withDefaults()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.DefaultTarget <= 0 {
		cfg.DefaultTarget = def.DefaultTarget
	}
	if cfg.TrendDelta <= 0 {
		cfg.TrendDelta = def.TrendDelta
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{rc: rc, probe: probe, rel: rel, cfg: cfg, log: log.Named("collector")}
}

// Availability returns the mean availability over the sample window.
func (c *Collector) Availability(ctx context.Context) (float64, error) {
	current, _, err := c.availability(ctx)
	return current, err
}

func (c *Collector) availability(ctx context.Context) (current, target float64, err error) {
	if c.rc == nil {
		return 100, c.cfg.DefaultTarget, nil
	}
	rows, err := queryTable(ctx, c.rc, c.cfg.Tables.Availability, since(c.cfg.Now().Add(-c.cfg.Window)), 500)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", domain.ErrMetricsUnavailable, err)
	}
	if len(rows) == 0 {
		return 100, c.cfg.DefaultTarget, nil
	}
	var sum, tsum float64
	var tn int
	for _, r := range rows {
		sum += num(r, "availability")
		if t := num(r, "target"); t > 0 {
			tsum += t
			tn++
		}
	}
	target = c.cfg.DefaultTarget
	if tn > 0 {
		target = tsum / float64(tn)
	}
	return sum / float64(len(rows)), target, nil
}

func (c *Collector) performance(ctx context.Context) (domain.PerformanceMetrics, float64, error) {
	var out domain.PerformanceMetrics
	if c.rc == nil {
		return out, 0, nil
	}
	rows, err := queryTable(ctx, c.rc, c.cfg.Tables.Performance, since(c.cfg.Now().Add(-c.cfg.Window)), 500)
	if err != nil {
		return out, 0, fmt.Errorf("%w: %v", domain.ErrMetricsUnavailable, err)
	}
	if len(rows) == 0 {
		return out, 0, nil
	}
	var lat, errRate, network float64
	for _, r := range rows {
		lat += num(r, "latency_ms")
		out.Throughput += num(r, "throughput")
		errRate += num(r, "error_rate")
		network = math.Max(network, num(r, "network_used"))
	}
	n := float64(len(rows))
	out.LatencyMs = lat / n
	out.ErrorRate = errRate / n
	return out, network, nil
}

// Collect returns a full snapshot. It fails only when the platform's
// availability or performance data cannot be read; a failing host probe is
// logged and leaves capacity at zero.
func (c *Collector) Collect(ctx context.Context) (domain.SystemMetrics, error) {
	now := c.cfg.Now()
	m := domain.SystemMetrics{CollectedAt: now}

	current, target, err := c.availability(ctx)
	if err != nil {
		return domain.SystemMetrics{}, err
	}
	m.Availability = domain.AvailabilityMetrics{Current: current, Target: target}

	perf, network, err := c.performance(ctx)
	if err != nil {
		return domain.SystemMetrics{}, err
	}
	m.Performance = perf

	if c.probe != nil {
		capacity, err := c.probe.Capacity(ctx)
		if err != nil {
			c.log.Warn("host probe failed", zap.Error(err))
		} else {
			m.Capacity = capacity
		}
	}
	m.Capacity.Network.Used = network

	if c.rel != nil {
		m.Reliability = c.rel.Reliability()
	}

	c.mu.Lock()
	c.deriveLocked(&m)
	c.mu.Unlock()

	for _, r := range m.Capacity.Resources() {
		metrics.CapacityUsage.WithLabelValues(r.Name).Set(r.Metric.Used)
	}
	return m, nil
}

// deriveLocked fills growth rates and trends from the previous snapshot and
// stores m as the new baseline.
func (c *Collector) deriveLocked(m *domain.SystemMetrics) {
	m.Availability.Trend = domain.TrendStable
	m.Performance.Trend = domain.TrendStable

	if c.havePrev {
		switch d := m.Availability.Current - c.prevAvl; {
		case d >= c.cfg.TrendDelta:
			m.Availability.Trend = domain.TrendImproving
		case d <= -c.cfg.TrendDelta:
			m.Availability.Trend = domain.TrendDegrading
		}
		// Lower latency is better.
		if c.prevLat > 0 {
			switch d := (m.Performance.LatencyMs - c.prevLat) / c.prevLat * 100; {
			case d >= c.cfg.TrendDelta*100:
				m.Performance.Trend = domain.TrendDegrading
			case d <= -c.cfg.TrendDelta*100:
				m.Performance.Trend = domain.TrendImproving
			}
		}
	}

	if c.prevCap != nil {
		hours := m.CollectedAt.Sub(c.prevCap.at).Hours()
		if hours > 0 {
			prev := c.prevCap.cap
			m.Capacity.CPU.GrowthPerHour = (m.Capacity.CPU.Used - prev.CPU.Used) / hours
			m.Capacity.Memory.GrowthPerHour = (m.Capacity.Memory.Used - prev.Memory.Used) / hours
			m.Capacity.Storage.GrowthPerHour = (m.Capacity.Storage.Used - prev.Storage.Used) / hours
			m.Capacity.Network.GrowthPerHour = (m.Capacity.Network.Used - prev.Network.Used) / hours
		}
	}

	c.prevCap = &capSample{at: m.CollectedAt, cap: m.Capacity}
	c.prevAvl = m.Availability.Current
	c.prevLat = m.Performance.LatencyMs
	c.havePrev = true
}
