package learning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/memstore"
)

// recordingStore wraps a Memory store and remembers the TTL of each write.
type recordingStore struct {
	*memstore.Memory
	ttls    map[string]time.Duration
	failKey string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: memstore.NewMemory(), ttls: map[string]time.Duration{}}
}

func (r *recordingStore) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == r.failKey {
		return errors.New("disk full")
	}
	r.ttls[key] = ttl
	return r.Memory.Store(ctx, key, value, ttl)
}

func testProfile(learning bool) domain.HealingProfile {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return domain.HealingProfile{
		ID:          "p1",
		SystemName:  "checkout",
		Timestamp:   now,
		HealthScore: 87,
		Incidents: []domain.HealthIncident{
			{ID: "inc-1", Type: domain.IncidentAvailability, Severity: domain.SeverityCritical, Status: domain.StatusActive, DetectedAt: now},
		},
		Actions: []domain.HealingAction{
			{ID: "act-1", IncidentID: "inc-1", StrategyID: "restart_service", Type: domain.ActionRestart, Status: domain.ActionPending},
		},
		Metadata: domain.ProfileMetadata{LearningEnabled: learning, Retention: domain.ProfileRetention},
	}
}

func TestRecord_WithLearning(t *testing.T) {
	mem := newRecordingStore()
	s := New(mem, nil)
	ctx := context.Background()

	if err := s.Record(ctx, testProfile(true)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if got := mem.ttls[SnapshotKey]; got != 30*24*time.Hour {
		t.Errorf("snapshot ttl = %s, want 720h", got)
	}
	if got := mem.ttls["healing_profile_p1"]; got != 90*24*time.Hour {
		t.Errorf("profile ttl = %s, want 2160h", got)
	}

	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error: %v", err)
	}
	if snap.ProfileID != "p1" || len(snap.Incidents) != 1 || len(snap.Actions) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}

	p, err := s.LoadProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadProfile() error: %v", err)
	}
	if p.HealthScore != 87 || p.SystemName != "checkout" {
		t.Errorf("profile = %+v", p)
	}
	if p.Incidents[0].Severity != domain.SeverityCritical {
		t.Errorf("incident severity = %s", p.Incidents[0].Severity)
	}
}

func TestRecord_WithoutLearning(t *testing.T) {
	mem := newRecordingStore()
	s := New(mem, nil)
	ctx := context.Background()

	if err := s.Record(ctx, testProfile(false)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if _, ok := mem.ttls[SnapshotKey]; ok {
		t.Error("snapshot written with learning disabled")
	}
	if _, err := s.LoadSnapshot(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadSnapshot() error = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadProfile(ctx, "p1"); err != nil {
		t.Errorf("profile must always be written: %v", err)
	}
}

func TestRecord_DefaultRetention(t *testing.T) {
	mem := newRecordingStore()
	p := testProfile(false)
	p.Metadata.Retention = 0
	if err := New(mem, nil).Record(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got := mem.ttls["healing_profile_p1"]; got != domain.ProfileRetention {
		t.Errorf("profile ttl = %s, want %s", got, domain.ProfileRetention)
	}
}

func TestRecord_SnapshotFailureStillWritesProfile(t *testing.T) {
	mem := newRecordingStore()
	mem.failKey = SnapshotKey
	s := New(mem, nil)
	ctx := context.Background()

	if err := s.Record(ctx, testProfile(true)); err == nil {
		t.Error("Record() should report the snapshot failure")
	}
	if _, err := s.LoadProfile(ctx, "p1"); err != nil {
		t.Errorf("profile not written after snapshot failure: %v", err)
	}
}

func TestLoadProfile_Missing(t *testing.T) {
	s := New(memstore.NewMemory(), nil)
	if _, err := s.LoadProfile(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadProfile(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoadProfile_Corrupt(t *testing.T) {
	mem := memstore.NewMemory()
	mem.Store(context.Background(), "healing_profile_bad", []byte("{not json"), 0)
	s := New(mem, nil)
	_, err := s.LoadProfile(context.Background(), "bad")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Errorf("LoadProfile(corrupt) error = %v, want decode error", err)
	}
}
