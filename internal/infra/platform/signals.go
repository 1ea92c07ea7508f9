package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/detector"
)

// Tables names the platform tables the adapters read and write.
type Tables struct {
	Logs         string // error log rows (level, message, source)
	Performance  string // latency samples (service, latency_ms, baseline_ms, throughput, error_rate)
	Availability string // availability samples (service, availability, target)
	Changes      string // change records used as root-cause evidence
	Remediation  string // automated remediation requests
	Tasks        string // manual operator tasks
}

// DefaultTables returns the stock table names.
func DefaultTables() Tables {
	return Tables{
		Logs:         "syslog",
		Performance:  "u_vitals_performance",
		Availability: "u_vitals_availability",
		Changes:      "change_request",
		Remediation:  "u_vitals_remediation",
		Tasks:        "sc_task",
	}
}

func (t Tables) withDefaults() Tables {
	def := DefaultTables()
	if t.Logs == "" {
		t.Logs = def.Logs
	}
	if t.Performance == "" {
		t.Performance = def.Performance
	}
	if t.Availability == "" {
		t.Availability = def.Availability
	}
	if t.Changes == "" {
		t.Changes = def.Changes
	}
	if t.Remediation == "" {
		t.Remediation = def.Remediation
	}
	if t.Tasks == "" {
		t.Tasks = def.Tasks
	}
	return t
}

// ─── Signals ────────────────────────────────────────────────────────────────

// SignalsConfig bounds how much the signal reader pulls per call.
type SignalsConfig struct {
	Tables         Tables
	MaxRows        int           // per table and call (default 500)
	ChangeWindow   time.Duration // look-back for change evidence (default 2h)
	PressureAbove  float64       // capacity percent reported as evidence (default 80)
	ErrorRateAbove float64       // error-rate percent reported as evidence (default 5)
}

// DefaultSignalsConfig returns production defaults.
func DefaultSignalsConfig() SignalsConfig {
	return SignalsConfig{
		Tables:         DefaultTables(),
		MaxRows:        500,
		ChangeWindow:   2 * time.Hour,
		PressureAbove:  80,
		ErrorRateAbove: 5,
	}
}

// Signals reads detection signals and root-cause evidence from the platform.
type Signals struct {
	rc    domain.RecordClient
	state domain.MetricsCollector // optional, feeds PlatformState
	cfg   SignalsConfig
}

// NewSignals creates a signal reader. state may be nil, in which case
// PlatformState returns no evidence.
func NewSignals(rc domain.RecordClient, state domain.MetricsCollector, cfg SignalsConfig) *Signals {
	def := DefaultSignalsConfig()
	cfg.Tables = cfg.Tables.withDefaults()
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = def.MaxRows
	}
	if cfg.ChangeWindow <= 0 {
		cfg.ChangeWindow = def.ChangeWindow
	}
	if cfg.PressureAbove <= 0 {
		cfg.PressureAbove = def.PressureAbove
	}
	if cfg.ErrorRateAbove <= 0 {
		cfg.ErrorRateAbove = def.ErrorRateAbove
	}
	return &Signals{rc: rc, state: state, cfg: cfg}
}

func since(t time.Time) string {
	return "sys_created_on>=" + formatTime(t) + "^ORDERBYDESCsys_created_on"
}

// ErrorLogs returns error-log rows at warning level or above.
func (s *Signals) ErrorLogs(ctx context.Context, from time.Time) ([]detector.ErrorLogEntry, error) {
	rows, err := queryTable(ctx, s.rc, s.cfg.Tables.Logs, "level>=1^"+since(from), s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	out := make([]detector.ErrorLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, detector.ErrorLogEntry{
			ID:        str(r, "sys_id"),
			Level:     logLevel(str(r, "level")),
			Message:   str(r, "message"),
			Service:   str(r, "source"),
			Timestamp: timestamp(r, "sys_created_on"),
		})
	}
	return out, nil
}

// logLevel maps numeric log levels (0 info, 1 warning, 2 error) to names.
// Named levels pass through.
func logLevel(raw string) string {
	switch strings.TrimSpace(raw) {
	case "0":
		return "INFO"
	case "1":
		return "WARNING"
	case "2":
		return "ERROR"
	case "3":
		return "CRITICAL"
	default:
		return raw
	}
}

// PerformanceSamples returns latency samples.
func (s *Signals) PerformanceSamples(ctx context.Context, from time.Time) ([]detector.PerformanceSample, error) {
	rows, err := queryTable(ctx, s.rc, s.cfg.Tables.Performance, since(from), s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	out := make([]detector.PerformanceSample, 0, len(rows))
	for _, r := range rows {
		out = append(out, detector.PerformanceSample{
			Service:    str(r, "service"),
			LatencyMs:  num(r, "latency_ms"),
			BaselineMs: num(r, "baseline_ms"),
			Throughput: num(r, "throughput"),
			ObservedAt: timestamp(r, "sys_created_on"),
		})
	}
	return out, nil
}

// AvailabilitySamples returns availability samples.
func (s *Signals) AvailabilitySamples(ctx context.Context, from time.Time) ([]detector.AvailabilitySample, error) {
	rows, err := queryTable(ctx, s.rc, s.cfg.Tables.Availability, since(from), s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	out := make([]detector.AvailabilitySample, 0, len(rows))
	for _, r := range rows {
		out = append(out, detector.AvailabilitySample{
			Service:      str(r, "service"),
			Availability: num(r, "availability"),
			Target:       num(r, "target"),
			ObservedAt:   timestamp(r, "sys_created_on"),
		})
	}
	return out, nil
}

// ─── Evidence ───────────────────────────────────────────────────────────────

// RelatedEvents returns change records closed shortly before the incident,
// restricted to the affected services when the incident names any.
func (s *Signals) RelatedEvents(ctx context.Context, inc domain.HealthIncident) ([]domain.Evidence, error) {
	from := inc.DetectedAt.Add(-s.cfg.ChangeWindow)
	query := "sys_updated_on>=" + formatTime(from) +
		"^sys_updated_on<=" + formatTime(inc.DetectedAt) +
		"^ORDERBYDESCsys_updated_on"
	rows, err := queryTable(ctx, s.rc, s.cfg.Tables.Changes, query, s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}

	var out []domain.Evidence
	for _, r := range rows {
		svc := str(r, "cmdb_ci")
		if svc != "" && len(inc.Impact.AffectedServices) > 0 && !contains(inc.Impact.AffectedServices, svc) {
			continue
		}
		detail := str(r, "short_description")
		if number := str(r, "number"); number != "" {
			detail = number + ": " + detail
		}
		out = append(out, domain.Evidence{
			Source:     "event_log",
			Kind:       "change",
			Detail:     detail,
			ObservedAt: timestamp(r, "sys_updated_on"),
		})
	}
	return out, nil
}

// PlatformState reports resource pressure and elevated error rates.
func (s *Signals) PlatformState(ctx context.Context, _ domain.HealthIncident) ([]domain.Evidence, error) {
	if s.state == nil {
		return nil, nil
	}
	m, err := s.state.Collect(ctx)
	if err != nil {
		return nil, err
	}

	var out []domain.Evidence
	for _, r := range m.Capacity.Resources() {
		if r.Metric.Used >= s.cfg.PressureAbove {
			out = append(out, domain.Evidence{
				Source:     "platform_state",
				Kind:       "capacity",
				Detail:     fmt.Sprintf("%s at %.1f%%", r.Name, r.Metric.Used),
				ObservedAt: m.CollectedAt,
			})
		}
	}
	if m.Performance.ErrorRate >= s.cfg.ErrorRateAbove {
		out = append(out, domain.Evidence{
			Source:     "platform_state",
			Kind:       "error_rate",
			Detail:     fmt.Sprintf("error rate %.1f%%", m.Performance.ErrorRate),
			ObservedAt: m.CollectedAt,
		})
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ─── Offline ────────────────────────────────────────────────────────────────

// NoSignals is the signal source used when no platform is configured. It
// reports nothing.
type NoSignals struct{}

func (NoSignals) ErrorLogs(context.Context, time.Time) ([]detector.ErrorLogEntry, error) {
	return nil, nil
}

func (NoSignals) PerformanceSamples(context.Context, time.Time) ([]detector.PerformanceSample, error) {
	return nil, nil
}

func (NoSignals) AvailabilitySamples(context.Context, time.Time) ([]detector.AvailabilitySample, error) {
	return nil, nil
}

func (NoSignals) RelatedEvents(context.Context, domain.HealthIncident) ([]domain.Evidence, error) {
	return nil, nil
}

func (NoSignals) PlatformState(context.Context, domain.HealthIncident) ([]domain.Evidence, error) {
	return nil, nil
}
