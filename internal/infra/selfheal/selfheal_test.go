package selfheal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func newTestIndex(t *testing.T, now time.Time) *Index {
	t.Helper()
	return NewIndex(Config{ResolvedCapacity: 4, MaxActiveIncidents: 10, Now: func() time.Time { return now }})
}

func incident(id string, typ domain.IncidentType, sev domain.Severity, status domain.IncidentStatus, at time.Time) domain.HealthIncident {
	return domain.HealthIncident{ID: id, Type: typ, Severity: sev, Status: status, DetectedAt: at}
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestIndex_RecordActiveAndResolved(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	x := newTestIndex(t, now)

	x.Record(incident("a", domain.IncidentError, domain.SeverityHigh, domain.StatusActive, now))
	if x.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", x.ActiveCount())
	}

	resolved := incident("a", domain.IncidentError, domain.SeverityHigh, domain.StatusResolved, now)
	resolved.ResolvedAt = now.Add(2 * time.Minute)
	x.Record(resolved)

	if x.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after resolution", x.ActiveCount())
	}
	st := x.Stats()
	if st.TotalResolved != 1 || st.AvgMTTR != 2*time.Minute {
		t.Errorf("Stats() = %+v, want 1 resolved with 2m MTTR", st)
	}
}

func TestIndex_ReturnsCopies(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now)
	x.Record(incident("a", domain.IncidentError, domain.SeverityLow, domain.StatusActive, now))

	got := x.Active()
	got[0].Status = domain.StatusResolved

	again, _ := x.Get("a")
	if again.Status != domain.StatusActive {
		t.Error("Active() exposed internal state")
	}
}

func TestIndex_RecordIfNoActive(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now)

	first := incident("m1", domain.IncidentAvailability, domain.SeverityHigh, domain.StatusActive, now)
	first.Source = "monitor"
	if !x.RecordIfNoActive(first) {
		t.Fatal("first monitor incident should be added")
	}
	second := first
	second.ID = "m2"
	if x.RecordIfNoActive(second) {
		t.Error("duplicate monitor incident should be rejected")
	}
	other := second
	other.Source = "availability"
	if !x.RecordIfNoActive(other) {
		t.Error("incident from another source should be added")
	}
}

func TestIndex_ClearActive(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now)
	x.Record(incident("a", domain.IncidentError, domain.SeverityLow, domain.StatusActive, now))
	x.Record(incident("b", domain.IncidentError, domain.SeverityLow, domain.StatusHealing, now))

	if n := x.ClearActive(); n != 2 {
		t.Errorf("ClearActive() = %d, want 2", n)
	}
	if len(x.Active()) != 0 {
		t.Error("Active() should be empty after ClearActive()")
	}
	if x.Stats().ActiveClears != 1 {
		t.Errorf("ActiveClears = %d, want 1", x.Stats().ActiveClears)
	}
}

func TestIndex_Escalate(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now)
	x.Record(incident("a", domain.IncidentError, domain.SeverityHigh, domain.StatusHealing, now))

	if err := x.Escalate("a"); err != nil {
		t.Fatalf("Escalate() error: %v", err)
	}
	if err := x.Escalate("a"); !errors.Is(err, domain.ErrIncidentNotFound) {
		t.Errorf("second Escalate() error = %v, want ErrIncidentNotFound", err)
	}
	hist := x.Resolved(1)
	if len(hist) != 1 || hist[0].Status != domain.StatusEscalated {
		t.Errorf("Resolved(1) = %+v, want one escalated incident", hist)
	}
}

func TestIndex_ResolutionRate(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now)
	for i, status := range []domain.IncidentStatus{domain.StatusResolved, domain.StatusResolved, domain.StatusResolved, domain.StatusEscalated} {
		x.Record(incident(string(rune('a'+i)), domain.IncidentError, domain.SeverityHigh, status, now))
	}

	rate, n := x.ResolutionRate(domain.IncidentError, domain.SeverityHigh)
	if n != 4 || rate != 0.75 {
		t.Errorf("ResolutionRate() = (%v, %d), want (0.75, 4)", rate, n)
	}
	if _, n := x.ResolutionRate(domain.IncidentSecurity, domain.SeverityHigh); n != 0 {
		t.Errorf("unknown key samples = %d, want 0", n)
	}
}

func TestIndex_RelatedWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	x := newTestIndex(t, now)
	x.Record(incident("recent", domain.IncidentPerformance, domain.SeverityLow, domain.StatusActive, now.Add(-time.Hour)))
	x.Record(incident("old", domain.IncidentPerformance, domain.SeverityLow, domain.StatusResolved, now.Add(-48*time.Hour)))
	x.Record(incident("other", domain.IncidentError, domain.SeverityLow, domain.StatusActive, now))
	x.Record(incident("self", domain.IncidentPerformance, domain.SeverityLow, domain.StatusActive, now))

	got := x.Related(domain.IncidentPerformance, 24*time.Hour, "self")
	if len(got) != 1 || got[0] != "recent" {
		t.Errorf("Related() = %v, want [recent]", got)
	}
}

func TestIndex_ResolvedRingWraps(t *testing.T) {
	now := time.Now()
	x := newTestIndex(t, now) // capacity 4
	for i := 0; i < 6; i++ {
		x.Record(incident(string(rune('a'+i)), domain.IncidentError, domain.SeverityLow, domain.StatusResolved, now))
	}
	hist := x.Resolved(10)
	if len(hist) != 4 {
		t.Fatalf("Resolved(10) = %d, want 4", len(hist))
	}
	if hist[0].ID != "f" || hist[3].ID != "c" {
		t.Errorf("ring order = %s..%s, want f..c", hist[0].ID, hist[3].ID)
	}
}

func TestIndex_MaxActive(t *testing.T) {
	now := time.Now()
	x := NewIndex(Config{MaxActiveIncidents: 1, Now: func() time.Time { return now }})
	if !x.Record(incident("a", domain.IncidentError, domain.SeverityLow, domain.StatusActive, now)) {
		t.Fatal("first Record() should succeed")
	}
	if x.Record(incident("b", domain.IncidentError, domain.SeverityLow, domain.StatusActive, now)) {
		t.Error("Record() beyond cap should be dropped")
	}
	// Updating an already tracked incident is always allowed.
	if !x.Record(incident("a", domain.IncidentError, domain.SeverityLow, domain.StatusHealing, now)) {
		t.Error("update of tracked incident should succeed at cap")
	}
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	now := time.Now()
	x := NewIndex(DefaultConfig())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			x.Record(incident(string(rune('A'+i)), domain.IncidentError, domain.SeverityLow, domain.StatusActive, now))
		}(i)
		go func() {
			defer wg.Done()
			_ = x.Active()
			_ = x.Stats()
		}()
		go func() {
			defer wg.Done()
			_, _ = x.ResolutionRate(domain.IncidentError, domain.SeverityLow)
		}()
	}
	wg.Wait()
	if x.ActiveCount() != 50 {
		t.Errorf("ActiveCount() = %d, want 50", x.ActiveCount())
	}
}

func TestIndex_Reliability(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	x := newTestIndex(t, now)

	if got := x.Reliability(); got != (domain.ReliabilityMetrics{}) {
		t.Errorf("Reliability() on empty index = %+v", got)
	}

	a := incident("a", domain.IncidentError, domain.SeverityHigh, domain.StatusResolved, now)
	a.ResolvedAt = now.Add(4 * time.Minute)
	b := incident("b", domain.IncidentError, domain.SeverityHigh, domain.StatusResolved, now.Add(time.Hour))
	b.ResolvedAt = b.DetectedAt.Add(2 * time.Minute)
	c := incident("c", domain.IncidentError, domain.SeverityHigh, domain.StatusEscalated, now.Add(2*time.Hour))
	x.RecordAll([]domain.HealthIncident{a, b, c})

	got := x.Reliability()
	if got.MTTR != 3*time.Minute {
		t.Errorf("MTTR = %s, want 3m", got.MTTR)
	}
	if got.MTBF != time.Hour {
		t.Errorf("MTBF = %s, want 1h", got.MTBF)
	}
	if got.FailureRate < 0.333 || got.FailureRate > 0.334 {
		t.Errorf("FailureRate = %v, want 1/3", got.FailureRate)
	}
}
