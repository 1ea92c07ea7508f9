// Package selfheal keeps the process-wide incident index.
//
// Every component that needs to know "what is going wrong right now" reads
// the index instead of sharing incident pointers:
//
//   - Active set: incidents that are active or healing, keyed by ID. The
//     availability monitor and each assessment register incidents here.
//
//   - Resolved ring: the most recent resolved/escalated incidents, bounded
//     so memory does not grow with uptime.
//
//   - Resolution stats: resolved vs. escalated counts per (type, severity).
//     Pattern recognition uses these to decide whether a pattern can be
//     healed without a human.
//
//   - MTTR (Mean Time To Recovery): detection → resolution, averaged over
//     resolved incidents.
//
// All access goes through methods; callers only ever receive copies.
// ClearActive is the hook the scheduler uses when it self-heals.
package selfheal

import (
	"sort"
	"sync"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the incident index.
type Config struct {
	// ResolvedCapacity bounds the resolved/escalated history ring.
	ResolvedCapacity int

	// MaxActiveIncidents caps concurrent incidents to prevent cascading.
	MaxActiveIncidents int

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ResolvedCapacity:   10_000,
		MaxActiveIncidents: 1_000,
		Now:                time.Now,
	}
}

type statKey struct {
	typ      domain.IncidentType
	severity domain.Severity
}

type resolutionStat struct {
	resolved  int
	escalated int
}

// ─── Index ──────────────────────────────────────────────────────────────────

// Index is the process-wide incident index.
type Index struct {
	mu  sync.RWMutex
	cfg Config

	active map[string]domain.HealthIncident // non-terminal incidents

	resolved []domain.HealthIncident // ring buffer of terminal incidents
	rIdx     int
	rCap     int
	rFull    bool

	stats map[statKey]*resolutionStat

	totalMTTR    time.Duration
	resolvedCnt  int64
	escalatedCnt int64
	clears       int64
}

// NewIndex creates an empty incident index.
func NewIndex(cfg Config) *Index {
	if cfg.ResolvedCapacity <= 0 {
		cfg.ResolvedCapacity = 10_000
	}
	if cfg.MaxActiveIncidents <= 0 {
		cfg.MaxActiveIncidents = 1_000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Index{
		cfg:      cfg,
		active:   make(map[string]domain.HealthIncident),
		resolved: make([]domain.HealthIncident, cfg.ResolvedCapacity),
		rCap:     cfg.ResolvedCapacity,
		stats:    make(map[statKey]*resolutionStat),
	}
}

// ─── Mutation ───────────────────────────────────────────────────────────────

// Record stores a copy of the incident. Non-terminal incidents go to the
// active set; terminal ones move to history and update resolution stats.
// Returns false if the active set is full and the incident was dropped.
func (x *Index) Record(inc domain.HealthIncident) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.recordLocked(inc.Clone())
}

// RecordAll records a batch of incidents under one lock.
func (x *Index) RecordAll(incidents []domain.HealthIncident) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, inc := range incidents {
		x.recordLocked(inc.Clone())
	}
}

// RecordIfNoActive records inc unless an active incident with the same
// source and type already exists. Returns true if inc was added.
func (x *Index) RecordIfNoActive(inc domain.HealthIncident) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, existing := range x.active {
		if existing.Source == inc.Source && existing.Type == inc.Type {
			return false
		}
	}
	return x.recordLocked(inc.Clone())
}

func (x *Index) recordLocked(inc domain.HealthIncident) bool {
	if inc.Status.IsTerminal() {
		if _, tracked := x.active[inc.ID]; tracked {
			delete(x.active, inc.ID)
		}
		x.finalizeLocked(inc)
		return true
	}
	if _, tracked := x.active[inc.ID]; !tracked && len(x.active) >= x.cfg.MaxActiveIncidents {
		return false
	}
	x.active[inc.ID] = inc
	return true
}

// finalizeLocked appends a terminal incident to history.
// Must be called with x.mu held.
func (x *Index) finalizeLocked(inc domain.HealthIncident) {
	key := statKey{typ: inc.Type, severity: inc.Severity}
	st, ok := x.stats[key]
	if !ok {
		st = &resolutionStat{}
		x.stats[key] = st
	}
	switch inc.Status {
	case domain.StatusResolved:
		st.resolved++
		x.resolvedCnt++
		if !inc.ResolvedAt.IsZero() {
			x.totalMTTR += inc.ResolvedAt.Sub(inc.DetectedAt)
		}
	case domain.StatusEscalated:
		st.escalated++
		x.escalatedCnt++
	}

	x.resolved[x.rIdx] = inc
	x.rIdx++
	if x.rIdx >= x.rCap {
		x.rIdx = 0
		x.rFull = true
	}
}

// Escalate moves an active incident to escalated.
func (x *Index) Escalate(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	inc, ok := x.active[id]
	if !ok {
		return domain.ErrIncidentNotFound
	}
	if inc.Status == domain.StatusActive || inc.Status == domain.StatusHealing {
		inc.Status = domain.StatusEscalated
	}
	delete(x.active, id)
	x.finalizeLocked(inc)
	return nil
}

// ClearActive drops every active incident without recording an outcome.
// Returns how many were dropped.
func (x *Index) ClearActive() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := len(x.active)
	x.active = make(map[string]domain.HealthIncident)
	x.clears++
	return n
}

// Reset clears all incidents and statistics.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.active = make(map[string]domain.HealthIncident)
	x.resolved = make([]domain.HealthIncident, x.rCap)
	x.rIdx = 0
	x.rFull = false
	x.stats = make(map[statKey]*resolutionStat)
	x.totalMTTR = 0
	x.resolvedCnt = 0
	x.escalatedCnt = 0
	x.clears = 0
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// Active returns copies of all active incidents, oldest first.
func (x *Index) Active() []domain.HealthIncident {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]domain.HealthIncident, 0, len(x.active))
	for _, inc := range x.active {
		out = append(out, inc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out
}

// ActiveCount returns the number of active incidents.
func (x *Index) ActiveCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.active)
}

// Get returns an active incident by ID.
func (x *Index) Get(id string) (domain.HealthIncident, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	inc, ok := x.active[id]
	if !ok {
		return domain.HealthIncident{}, false
	}
	return inc.Clone(), true
}

// Related returns IDs of incidents of the same type detected within window
// of now, excluding excludeID. Active and historical incidents both count.
func (x *Index) Related(typ domain.IncidentType, window time.Duration, excludeID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	cutoff := x.cfg.Now().Add(-window)
	var ids []string
	consider := func(inc domain.HealthIncident) {
		if inc.ID == "" || inc.ID == excludeID || inc.Type != typ {
			return
		}
		if inc.DetectedAt.Before(cutoff) {
			return
		}
		ids = append(ids, inc.ID)
	}
	for _, inc := range x.active {
		consider(inc)
	}
	for _, inc := range x.historyLocked(x.historyLenLocked()) {
		consider(inc)
	}
	sort.Strings(ids)
	return ids
}

// ResolutionRate returns resolved / (resolved + escalated) for incidents of
// the given type and severity, and the number of samples behind it.
func (x *Index) ResolutionRate(typ domain.IncidentType, severity domain.Severity) (float64, int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	st, ok := x.stats[statKey{typ: typ, severity: severity}]
	if !ok {
		return 0, 0
	}
	total := st.resolved + st.escalated
	if total == 0 {
		return 0, 0
	}
	return float64(st.resolved) / float64(total), total
}

// Resolved returns the most recent N resolved/escalated incidents, newest first.
func (x *Index) Resolved(limit int) []domain.HealthIncident {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.historyLocked(limit)
}

func (x *Index) historyLenLocked() int {
	if x.rFull {
		return x.rCap
	}
	return x.rIdx
}

func (x *Index) historyLocked(limit int) []domain.HealthIncident {
	count := x.historyLenLocked()
	if limit > count {
		limit = count
	}
	if limit <= 0 {
		return nil
	}

	result := make([]domain.HealthIncident, limit)
	idx := x.rIdx
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = x.rCap - 1
		}
		result[i] = x.resolved[idx].Clone()
	}
	return result
}

// ─── Statistics ─────────────────────────────────────────────────────────────

// Stats exposes incident-handling performance figures.
type Stats struct {
	ActiveIncidents int           `json:"active_incidents"`
	TotalResolved   int64         `json:"total_resolved"`
	TotalEscalated  int64         `json:"total_escalated"`
	AvgMTTR         time.Duration `json:"avg_mttr"`
	ResolutionRate  float64       `json:"resolution_rate"` // resolved / (resolved + escalated) × 100
	ActiveClears    int64         `json:"active_clears"`
}

// Stats returns current statistics.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var avgMTTR time.Duration
	if x.resolvedCnt > 0 {
		avgMTTR = x.totalMTTR / time.Duration(x.resolvedCnt)
	}

	var resRate float64
	total := x.resolvedCnt + x.escalatedCnt
	if total > 0 {
		resRate = float64(x.resolvedCnt) / float64(total) * 100.0
	}

	return Stats{
		ActiveIncidents: len(x.active),
		TotalResolved:   x.resolvedCnt,
		TotalEscalated:  x.escalatedCnt,
		AvgMTTR:         avgMTTR,
		ResolutionRate:  resRate,
		ActiveClears:    x.clears,
	}
}

// Reliability derives mean-time figures from the incident history. MTBF is
// the mean gap between detections of the last 100 finished incidents.
func (x *Index) Reliability() domain.ReliabilityMetrics {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out domain.ReliabilityMetrics
	if x.resolvedCnt > 0 {
		out.MTTR = x.totalMTTR / time.Duration(x.resolvedCnt)
	}
	if total := x.resolvedCnt + x.escalatedCnt; total > 0 {
		out.FailureRate = float64(x.escalatedCnt) / float64(total)
	}

	recent := x.historyLocked(100)
	if len(recent) >= 2 {
		first, last := recent[0].DetectedAt, recent[0].DetectedAt
		for _, inc := range recent[1:] {
			if inc.DetectedAt.Before(first) {
				first = inc.DetectedAt
			}
			if inc.DetectedAt.After(last) {
				last = inc.DetectedAt
			}
		}
		out.MTBF = last.Sub(first) / time.Duration(len(recent)-1)
	}
	return out
}
