package healing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Remediation Circuit Breaker
// ═══════════════════════════════════════════════════════════════════════════
//
// One breaker per remediation target. A target whose steps keep failing is
// cut off so the engine stops hammering it:
//
//   CLOSED    → failures reach threshold → OPEN
//   OPEN      → reset timeout elapses    → HALF_OPEN
//   HALF_OPEN → probes succeed → CLOSED, any probe fails → OPEN

// CBState is the breaker state.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

// String returns a human-readable breaker state.
func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "CLOSED"
	case CBOpen:
		return "OPEN"
	case CBHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state by name in JSON.
func (s CBState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BreakerConfig configures target breakers.
type BreakerConfig struct {
	FailureThreshold int           // consecutive step failures to trip (default 3)
	ResetTimeout     time.Duration // time in OPEN before probing (default 5m)
	HalfOpenMax      int           // successful probes to close (default 1)
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     5 * time.Minute,
		HalfOpenMax:      1,
	}
}

// CircuitBreaker guards one remediation target. Safe for concurrent use.
type CircuitBreaker struct {
	mu         sync.Mutex
	target     string
	cfg        BreakerConfig
	state      CBState
	failures   int
	successes  int
	trippedAt  time.Time
	totalTrips int
	now        func() time.Time
}

// NewCircuitBreaker creates a breaker for target.
func NewCircuitBreaker(target string, cfg BreakerConfig, now func() time.Time) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = def.HalfOpenMax
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{target: target, cfg: cfg, now: now}
}

// Allow returns an error wrapping domain.ErrCircuitOpen while the target is
// cut off.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.stateLocked() == CBOpen {
		return fmt.Errorf("target %s: %w", cb.target, domain.ErrCircuitOpen)
	}
	return nil
}

// RecordSuccess records a successful step.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case CBHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenMax {
			cb.state = CBClosed
			cb.failures = 0
			cb.successes = 0
		}
	case CBClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed step. May trip the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case CBClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.tripLocked()
		}
	case CBHalfOpen:
		cb.tripLocked()
	}
}

// State returns the current state, moving OPEN to HALF_OPEN once the reset
// timeout has elapsed.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CBClosed
	cb.failures = 0
	cb.successes = 0
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Target     string    `json:"target"`
	State      CBState   `json:"state"`
	Failures   int       `json:"failures"`
	TotalTrips int       `json:"total_trips"`
	TrippedAt  time.Time `json:"tripped_at,omitempty"`
}

// Snapshot returns the current breaker state.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		Target:     cb.target,
		State:      cb.stateLocked(),
		Failures:   cb.failures,
		TotalTrips: cb.totalTrips,
		TrippedAt:  cb.trippedAt,
	}
}

func (cb *CircuitBreaker) stateLocked() CBState {
	if cb.state == CBOpen && cb.now().Sub(cb.trippedAt) >= cb.cfg.ResetTimeout {
		cb.state = CBHalfOpen
		cb.successes = 0
	}
	return cb.state
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = CBOpen
	cb.trippedAt = cb.now()
	cb.totalTrips++
	cb.failures = 0
}

// ─── Breaker Set ────────────────────────────────────────────────────────────

// Breakers lazily creates one breaker per target.
type Breakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	now      func() time.Time
	byTarget map[string]*CircuitBreaker
}

// NewBreakers creates an empty breaker set.
func NewBreakers(cfg BreakerConfig, now func() time.Time) *Breakers {
	return &Breakers{cfg: cfg, now: now, byTarget: make(map[string]*CircuitBreaker)}
}

// For returns the breaker for target, creating it on first use.
func (b *Breakers) For(target string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.byTarget[target]
	if !ok {
		cb = NewCircuitBreaker(target, b.cfg, b.now)
		b.byTarget[target] = cb
	}
	return cb
}

// Snapshots returns every breaker's state sorted by target.
func (b *Breakers) Snapshots() []Snapshot {
	b.mu.Lock()
	list := make([]*CircuitBreaker, 0, len(b.byTarget))
	for _, cb := range b.byTarget {
		list = append(list, cb)
	}
	b.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, cb := range list {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}
