// Package memstore holds the non-SQLite memory store backends:
//
//   - Memory: in-process map, for tests and one-shot CLI runs.
//   - Redis:  shared store with native key expiry.
//   - Badger: embedded LSM store with native entry TTL.
//
// Every backend satisfies domain.MemoryStore: Retrieve returns
// domain.ErrNotFound for missing or expired keys, and ttl <= 0 never expires.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means never
}

// Memory is an in-process memory store. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry), now: time.Now}
}

// Store writes a copy of value under key.
func (m *Memory) Store(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Retrieve returns a copy of the value under key.
func (m *Memory) Retrieve(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)) {
		return nil, fmt.Errorf("retrieve %s: %w", key, domain.ErrNotFound)
	}
	return append([]byte(nil), e.value...), nil
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
