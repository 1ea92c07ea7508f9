// Package detector turns raw platform signals into incidents.
//
// Three signal families are inspected on every run:
//
//   - Error logs: each entry becomes an error incident. Severity comes from a
//     keyword taxonomy over the level and message (CRITICAL/FATAL → critical,
//     ERROR → high, WARNING/WARN → medium, anything else → low).
//
//   - Performance samples: latency over the threshold, or degradation against
//     the baseline over the threshold, becomes a performance incident. When a
//     sample carries no baseline, the detector's own learned per-service
//     baseline is used instead.
//
//   - Availability samples: availability under the threshold becomes an
//     availability incident.
//
// Sources are fetched concurrently; output order is always
// error → performance → availability. A failing source contributes nothing.
package detector

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tutu-network/vitals/internal/domain"
)

// Incident sources.
const (
	SourceErrorLog     = "error_log"
	SourcePerformance  = "performance"
	SourceAvailability = "availability"
)

// ─── Signals ────────────────────────────────────────────────────────────────

// ErrorLogEntry is one platform error-log row.
type ErrorLogEntry struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// PerformanceSample is one latency observation for a service.
type PerformanceSample struct {
	Service    string    `json:"service"`
	LatencyMs  float64   `json:"latency_ms"`
	BaselineMs float64   `json:"baseline_ms"` // 0 = unknown
	Throughput float64   `json:"throughput"`
	ObservedAt time.Time `json:"observed_at"`
}

// AvailabilitySample is one availability observation for a service.
type AvailabilitySample struct {
	Service      string    `json:"service"`
	Availability float64   `json:"availability"` // percent
	Target       float64   `json:"target"`       // percent
	ObservedAt   time.Time `json:"observed_at"`
}

// SignalSource supplies raw signals observed since a point in time.
type SignalSource interface {
	ErrorLogs(ctx context.Context, since time.Time) ([]ErrorLogEntry, error)
	PerformanceSamples(ctx context.Context, since time.Time) ([]PerformanceSample, error)
	AvailabilitySamples(ctx context.Context, since time.Time) ([]AvailabilitySample, error)
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds detection thresholds.
type Config struct {
	FullWindow            time.Duration // look-back for full scope (default 1h)
	IncrementalWindow     time.Duration // look-back for incremental scope (default 5m)
	MaxErrorIncidents     int           // cap on error incidents per run (default 50)
	LatencyThresholdMs    float64       // default 2000
	DegradationThreshold  float64       // percent over baseline (default 20)
	AvailabilityThreshold float64       // percent (default 99.0)
	BaselineMinSamples    int           // observations before a learned baseline is trusted (default 5)
	BaselineExpiry        time.Duration // drop idle baselines after this (default 7d)
	Now                   func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FullWindow:            time.Hour,
		IncrementalWindow:     5 * time.Minute,
		MaxErrorIncidents:     50,
		LatencyThresholdMs:    2000,
		DegradationThreshold:  20,
		AvailabilityThreshold: 99.0,
		BaselineMinSamples:    5,
		BaselineExpiry:        7 * 24 * time.Hour,
		Now:                   time.Now,
	}
}

// ─── Detector ───────────────────────────────────────────────────────────────

// Detector classifies platform signals into incidents.
type Detector struct {
	cfg       Config
	source    SignalSource
	log       *zap.Logger
	baselines *baselines
}

// New creates a detector reading from source.
func New(cfg Config, source SignalSource, log *zap.Logger) *Detector {
	def := DefaultConfig()
	if cfg.FullWindow <= 0 {
		cfg.FullWindow = def.FullWindow
	}
	if cfg.IncrementalWindow <= 0 {
		cfg.IncrementalWindow = def.IncrementalWindow
	}
	if cfg.MaxErrorIncidents <= 0 {
		cfg.MaxErrorIncidents = def.MaxErrorIncidents
	}
	if cfg.LatencyThresholdMs <= 0 {
		cfg.LatencyThresholdMs = def.LatencyThresholdMs
	}
	if cfg.DegradationThreshold <= 0 {
		cfg.DegradationThreshold = def.DegradationThreshold
	}
	if cfg.AvailabilityThreshold <= 0 {
		cfg.AvailabilityThreshold = def.AvailabilityThreshold
	}
	if cfg.BaselineMinSamples <= 0 {
		cfg.BaselineMinSamples = def.BaselineMinSamples
	}
	if cfg.BaselineExpiry <= 0 {
		cfg.BaselineExpiry = def.BaselineExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		cfg:       cfg,
		source:    source,
		log:       log.Named("detector"),
		baselines: newBaselines(cfg.BaselineExpiry),
	}
}

// Detect fetches signals for the scope and returns the incidents found.
func (d *Detector) Detect(ctx context.Context, scope domain.Scope) []domain.HealthIncident {
	now := d.cfg.Now()
	window := d.cfg.FullWindow
	if scope.Kind == domain.ScopeIncremental {
		window = d.cfg.IncrementalWindow
	}
	since := now.Add(-window)

	var (
		errLogs []ErrorLogEntry
		perf    []PerformanceSample
		avail   []AvailabilitySample
		g, gctx = errgroup.WithContext(ctx)
	)
	g.Go(func() error {
		out, err := d.source.ErrorLogs(gctx, since)
		if err != nil {
			d.log.Warn("error log source failed", zap.Error(err))
			return nil
		}
		errLogs = out
		return nil
	})
	g.Go(func() error {
		out, err := d.source.PerformanceSamples(gctx, since)
		if err != nil {
			d.log.Warn("performance source failed", zap.Error(err))
			return nil
		}
		perf = out
		return nil
	})
	g.Go(func() error {
		out, err := d.source.AvailabilitySamples(gctx, since)
		if err != nil {
			d.log.Warn("availability source failed", zap.Error(err))
			return nil
		}
		avail = out
		return nil
	})
	_ = g.Wait()

	var incidents []domain.HealthIncident
	incidents = append(incidents, d.fromErrorLogs(errLogs, scope, now)...)
	incidents = append(incidents, d.fromPerformance(perf, scope, now)...)
	incidents = append(incidents, d.fromAvailability(avail, scope, now)...)

	d.baselines.cleanup(now)
	d.log.Debug("detection complete",
		zap.String("scope", string(scope.Kind)),
		zap.Int("incidents", len(incidents)),
	)
	return incidents
}

// Baseline returns the learned latency baseline for a service.
func (d *Detector) Baseline(service string) (ServiceBaseline, bool) {
	return d.baselines.get(service)
}

// ─── Error Logs ─────────────────────────────────────────────────────────────

// ClassifyLogSeverity applies the keyword taxonomy to a log level and message.
func ClassifyLogSeverity(level, message string) domain.Severity {
	text := strings.ToUpper(level + " " + message)
	switch {
	case strings.Contains(text, "CRITICAL"), strings.Contains(text, "FATAL"):
		return domain.SeverityCritical
	case strings.Contains(text, "ERROR"):
		return domain.SeverityHigh
	case strings.Contains(text, "WARNING"), strings.Contains(text, "WARN"):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (d *Detector) fromErrorLogs(entries []ErrorLogEntry, scope domain.Scope, now time.Time) []domain.HealthIncident {
	var out []domain.HealthIncident
	for _, e := range entries {
		if len(out) >= d.cfg.MaxErrorIncidents {
			d.log.Info("error incident cap reached", zap.Int("cap", d.cfg.MaxErrorIncidents))
			break
		}
		if !scope.Includes(e.Service) {
			continue
		}
		out = append(out, domain.HealthIncident{
			ID:          uuid.NewString(),
			Title:       errorTitle(e),
			Description: e.Message,
			Source:      SourceErrorLog,
			Type:        domain.IncidentError,
			Severity:    ClassifyLogSeverity(e.Level, e.Message),
			DetectedAt:  now,
			Status:      domain.StatusActive,
			Impact:      domain.Impact{AffectedServices: services(e.Service)},
		})
	}
	return out
}

func errorTitle(e ErrorLogEntry) string {
	msg := strings.TrimSpace(e.Message)
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = msg[:idx]
	}
	msg = truncateRunes(msg, maxTitleRunes)
	if e.Service == "" {
		return "Error: " + msg
	}
	return fmt.Sprintf("Error in %s: %s", e.Service, msg)
}

const maxTitleRunes = 80

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ─── Performance ────────────────────────────────────────────────────────────

func (d *Detector) fromPerformance(samples []PerformanceSample, scope domain.Scope, now time.Time) []domain.HealthIncident {
	var out []domain.HealthIncident
	for _, s := range samples {
		if !scope.Includes(s.Service) {
			continue
		}
		baseline := s.BaselineMs
		if baseline <= 0 {
			if learned, ok := d.baselines.mean(s.Service, d.cfg.BaselineMinSamples); ok {
				baseline = learned
			}
		}
		var degradation float64
		if baseline > 0 && s.LatencyMs > baseline {
			degradation = (s.LatencyMs - baseline) / baseline * 100
		}
		d.baselines.observe(s.Service, s.LatencyMs, now)

		if s.LatencyMs < d.cfg.LatencyThresholdMs && degradation < d.cfg.DegradationThreshold {
			continue
		}

		out = append(out, domain.HealthIncident{
			ID:          uuid.NewString(),
			Title:       fmt.Sprintf("Slow response in %s", serviceName(s.Service)),
			Description: fmt.Sprintf("latency %.0fms, %.1f%% over baseline %.0fms", s.LatencyMs, degradation, baseline),
			Source:      SourcePerformance,
			Type:        domain.IncidentPerformance,
			Severity:    d.performanceSeverity(s.LatencyMs, degradation),
			DetectedAt:  now,
			Status:      domain.StatusActive,
			Impact: domain.Impact{
				AffectedServices:       services(s.Service),
				PerformanceDegradation: degradation,
			},
		})
	}
	return out
}

func (d *Detector) performanceSeverity(latencyMs, degradation float64) domain.Severity {
	sev := domain.SeverityLow
	switch {
	case degradation >= 50:
		sev = domain.SeverityHigh
	case degradation >= 30:
		sev = domain.SeverityMedium
	}
	if latencyMs >= 2*d.cfg.LatencyThresholdMs && sev.Rank() < domain.SeverityHigh.Rank() {
		sev = domain.SeverityHigh
	}
	return sev
}

// ─── Availability ───────────────────────────────────────────────────────────

// AvailabilitySeverity maps an availability percentage to a severity:
// below 90 critical, below 95 high, otherwise medium.
func AvailabilitySeverity(availability float64) domain.Severity {
	switch {
	case availability < 90:
		return domain.SeverityCritical
	case availability < 95:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func (d *Detector) fromAvailability(samples []AvailabilitySample, scope domain.Scope, now time.Time) []domain.HealthIncident {
	var out []domain.HealthIncident
	for _, s := range samples {
		if !scope.Includes(s.Service) {
			continue
		}
		if s.Availability >= d.cfg.AvailabilityThreshold {
			continue
		}
		out = append(out, domain.HealthIncident{
			ID:          uuid.NewString(),
			Title:       fmt.Sprintf("Availability drop in %s", serviceName(s.Service)),
			Description: fmt.Sprintf("availability %.2f%% below threshold %.2f%%", s.Availability, d.cfg.AvailabilityThreshold),
			Source:      SourceAvailability,
			Type:        domain.IncidentAvailability,
			Severity:    AvailabilitySeverity(s.Availability),
			DetectedAt:  now,
			Status:      domain.StatusActive,
			Impact: domain.Impact{
				AffectedServices: services(s.Service),
				Availability:     s.Availability,
			},
		})
	}
	return out
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func services(svc string) []string {
	if svc == "" {
		return nil
	}
	return []string{svc}
}

func serviceName(svc string) string {
	if svc == "" {
		return "platform"
	}
	return svc
}
