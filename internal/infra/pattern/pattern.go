// Package pattern groups incidents into recurring error patterns.
//
// Incidents sharing (type, severity) form a group; any group with at least
// two members is a pattern. A pattern is auto-healable when it is not a
// security pattern and its historical resolution rate is above 0.7: the
// system only heals on its own what it has healed reliably before.
package pattern

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tutu-network/vitals/internal/domain"
)

// ResolutionHistory reports how often incidents of a kind were resolved.
// samples == 0 means no history.
type ResolutionHistory interface {
	ResolutionRate(typ domain.IncidentType, severity domain.Severity) (rate float64, samples int)
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds the grouping policy.
type Config struct {
	MinOccurrences     int     // default 2
	PersistentAbove    int     // > this → persistent (default 10)
	RecurringAbove     int     // > this → recurring (default 3)
	AutoHealRateAbove  float64 // default 0.7
	MinKeywordLength   int     // default 3
	RecommendedActions map[domain.IncidentType][]string
}

// DefaultConfig returns the production grouping policy.
func DefaultConfig() Config {
	return Config{
		MinOccurrences:    2,
		PersistentAbove:   10,
		RecurringAbove:    3,
		AutoHealRateAbove: 0.7,
		MinKeywordLength:  3,
		RecommendedActions: map[domain.IncidentType][]string{
			domain.IncidentError:         {"rollback_deployment", "restart_service"},
			domain.IncidentPerformance:   {"scale_resources"},
			domain.IncidentAvailability:  {"restart_service", "scale_resources"},
			domain.IncidentDataIntegrity: {"restore_backup"},
			domain.IncidentSecurity:      {"isolate_component"},
		},
	}
}

// ClassifyFrequency buckets an occurrence count.
func (c Config) ClassifyFrequency(occurrences int) domain.Frequency {
	switch {
	case occurrences > c.PersistentAbove:
		return domain.FrequencyPersistent
	case occurrences > c.RecurringAbove:
		return domain.FrequencyRecurring
	default:
		return domain.FrequencySporadic
	}
}

// ─── Recognizer ─────────────────────────────────────────────────────────────

// Recognizer extracts patterns from a batch of incidents.
type Recognizer struct {
	cfg     Config
	history ResolutionHistory
}

// New creates a recognizer. history may be nil.
func New(cfg Config, history ResolutionHistory) *Recognizer {
	def := DefaultConfig()
	if cfg.MinOccurrences < 2 {
		cfg.MinOccurrences = def.MinOccurrences
	}
	if cfg.PersistentAbove <= 0 {
		cfg.PersistentAbove = def.PersistentAbove
	}
	if cfg.RecurringAbove <= 0 {
		cfg.RecurringAbove = def.RecurringAbove
	}
	if cfg.AutoHealRateAbove <= 0 {
		cfg.AutoHealRateAbove = def.AutoHealRateAbove
	}
	if cfg.MinKeywordLength <= 0 {
		cfg.MinKeywordLength = def.MinKeywordLength
	}
	if cfg.RecommendedActions == nil {
		cfg.RecommendedActions = def.RecommendedActions
	}
	return &Recognizer{cfg: cfg, history: history}
}

type groupKey struct {
	typ      domain.IncidentType
	severity domain.Severity
}

// Recognize groups incidents and returns patterns, most frequent first.
func (r *Recognizer) Recognize(incidents []domain.HealthIncident) []domain.ErrorPattern {
	groups := make(map[groupKey][]domain.HealthIncident)
	var order []groupKey
	for _, inc := range incidents {
		k := groupKey{typ: inc.Type, severity: inc.Severity}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], inc)
	}

	var patterns []domain.ErrorPattern
	for _, k := range order {
		members := groups[k]
		if len(members) < r.cfg.MinOccurrences {
			continue
		}
		patterns = append(patterns, r.buildPattern(k, members))
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].ID < patterns[j].ID
	})
	return patterns
}

func (r *Recognizer) buildPattern(k groupKey, members []domain.HealthIncident) domain.ErrorPattern {
	var (
		lastSeen     time.Time
		resolved     int
		totalResolve time.Duration
		ids          = make([]string, 0, len(members))
		titles       = make([]string, 0, len(members))
		svcSet       = make(map[string]struct{})
	)
	for _, m := range members {
		ids = append(ids, m.ID)
		titles = append(titles, m.Title)
		if m.DetectedAt.After(lastSeen) {
			lastSeen = m.DetectedAt
		}
		if m.Status == domain.StatusResolved {
			resolved++
			if !m.ResolvedAt.IsZero() {
				totalResolve += m.ResolvedAt.Sub(m.DetectedAt)
			}
		}
		for _, svc := range m.Impact.AffectedServices {
			svcSet[svc] = struct{}{}
		}
	}

	rate := float64(resolved) / float64(len(members))
	if r.history != nil {
		if hist, samples := r.history.ResolutionRate(k.typ, k.severity); samples > 0 {
			rate = hist
		}
	}

	var avgResolve time.Duration
	if resolved > 0 {
		avgResolve = totalResolve / time.Duration(resolved)
	}

	correlations := make([]string, 0, len(svcSet))
	for svc := range svcSet {
		correlations = append(correlations, svc)
	}
	sort.Strings(correlations)

	return domain.ErrorPattern{
		ID: fmt.Sprintf("pattern-%s-%s", k.typ, k.severity),
		Signature: domain.PatternSignature{
			ErrorTypes:   []domain.IncidentType{k.typ},
			Severity:     k.severity,
			Keywords:     Keywords(titles, r.cfg.MinKeywordLength),
			Frequency:    r.cfg.ClassifyFrequency(len(members)),
			Correlations: correlations,
		},
		Occurrences:        len(members),
		LastSeen:           lastSeen,
		AvgResolutionTime:  avgResolve,
		SuccessRate:        rate,
		RecommendedActions: append([]string(nil), r.cfg.RecommendedActions[k.typ]...),
		AutoHealable:       k.typ != domain.IncidentSecurity && rate > r.cfg.AutoHealRateAbove,
		IncidentIDs:        ids,
	}
}

// Keywords returns the distinct lower-cased tokens of the titles, sorted.
// Tokens split on anything that is not a letter or digit; tokens shorter
// than minLen runes are dropped.
func Keywords(titles []string, minLen int) []string {
	set := make(map[string]struct{})
	for _, title := range titles {
		tokens := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, tok := range tokens {
			if len([]rune(tok)) < minLen {
				continue
			}
			set[tok] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
