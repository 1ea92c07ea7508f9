package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the responder depends on them.

// Record is a generic platform record (a row in one of the platform's tables).
type Record map[string]any

// ResourceRequest is a raw call against the platform's REST surface.
type ResourceRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// ResourceResponse is the decoded reply to a ResourceRequest.
type ResourceResponse struct {
	Status int
	Body   []byte
}

// RecordClient talks to the monitored platform's record-management API.
type RecordClient interface {
	// CreateRecord inserts a record and returns it as stored.
	CreateRecord(ctx context.Context, table string, rec Record) (Record, error)

	// GetRecord fetches a single record by id. Returns ErrNotFound if missing.
	GetRecord(ctx context.Context, table, id string) (Record, error)

	// Request performs an arbitrary resource call.
	Request(ctx context.Context, req ResourceRequest) (ResourceResponse, error)
}

// MemoryStore is a key-value store with per-entry expiry.
type MemoryStore interface {
	// Store writes value under key. ttl <= 0 means no expiry.
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Retrieve reads key. Returns ErrNotFound if missing or expired.
	Retrieve(ctx context.Context, key string) ([]byte, error)
}

// MetricsCollector snapshots platform health signals.
type MetricsCollector interface {
	Collect(ctx context.Context) (SystemMetrics, error)

	// Availability returns the current availability percentage.
	Availability(ctx context.Context) (float64, error)
}

// RemediationRunner performs healing steps against the platform.
type RemediationRunner interface {
	// RunStep executes one step and returns its output.
	RunStep(ctx context.Context, step HealingStep) (string, error)

	// Rollback reverses a failed action using its rollback plan.
	Rollback(ctx context.Context, action HealingAction) error
}
