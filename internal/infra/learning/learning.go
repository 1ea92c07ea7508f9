// Package learning persists assessment results into the memory store so
// later runs (and operators) can read them back.
//
// Two keys are written per assessment:
//
//	healing_patterns         latest incidents + actions, 30-day TTL, only when learning is on
//	healing_profile_<id>     the full profile, 90-day TTL, always
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

const (
	// SnapshotKey holds the most recent learning snapshot.
	SnapshotKey = "healing_patterns"

	// SnapshotRetention is how long a learning snapshot survives.
	SnapshotRetention = 30 * 24 * time.Hour
)

// Snapshot is what the engine learns from one assessment.
type Snapshot struct {
	ProfileID string                  `json:"profile_id"`
	Incidents []domain.HealthIncident `json:"incidents"`
	Actions   []domain.HealingAction  `json:"actions"`
	Timestamp time.Time               `json:"timestamp"`
}

// Store writes profiles and learning snapshots to a domain.MemoryStore.
type Store struct {
	mem domain.MemoryStore
	log *zap.Logger
}

// New creates a learning store on top of mem.
func New(mem domain.MemoryStore, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{mem: mem, log: log.Named("learning")}
}

// Record persists profile. The snapshot is written first, and only when the
// profile was produced with learning enabled. The profile itself is always
// written. The first error is returned; a snapshot failure does not prevent
// the profile write.
func (s *Store) Record(ctx context.Context, profile domain.HealingProfile) error {
	var firstErr error

	if profile.Metadata.LearningEnabled {
		snap := Snapshot{
			ProfileID: profile.ID,
			Incidents: profile.Incidents,
			Actions:   profile.Actions,
			Timestamp: profile.Timestamp,
		}
		if err := s.put(ctx, SnapshotKey, snap, SnapshotRetention); err != nil {
			s.log.Warn("learning snapshot not stored", zap.String("profile", profile.ID), zap.Error(err))
			firstErr = err
		}
	}

	retention := profile.Metadata.Retention
	if retention <= 0 {
		retention = domain.ProfileRetention
	}
	if err := s.put(ctx, domain.ProfileKey(profile.ID), profile, retention); err != nil {
		s.log.Warn("profile not stored", zap.String("profile", profile.ID), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadProfile reads a stored profile. Returns domain.ErrNotFound if the
// profile is missing or has expired.
func (s *Store) LoadProfile(ctx context.Context, id string) (domain.HealingProfile, error) {
	var p domain.HealingProfile
	if err := s.get(ctx, domain.ProfileKey(id), &p); err != nil {
		return domain.HealingProfile{}, err
	}
	return p, nil
}

// LoadSnapshot reads the most recent learning snapshot.
func (s *Store) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.get(ctx, SnapshotKey, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("learning: encode %s: %w", key, err)
	}
	if err := s.mem.Store(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("learning: store %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.mem.Retrieve(ctx, key)
	if err != nil {
		return fmt.Errorf("learning: load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("learning: decode %s: %w", key, err)
	}
	return nil
}
