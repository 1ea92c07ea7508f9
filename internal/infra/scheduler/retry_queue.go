package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

// ─── Retry Queue ────────────────────────────────────────────────────────────
// Failed automated healing actions are re-queued with exponential backoff.
// A min-heap ordered by next-retry time gives O(log n) insert and extract of
// the next action due.

// RetryConfig configures the retry queue.
type RetryConfig struct {
	MaxRetries int           // retries before the incident is escalated (default 3)
	BaseDelay  time.Duration // first backoff delay, doubled each retry (default 30s)
	MaxDelay   time.Duration // backoff cap (default 10m)
	Now        func() time.Time
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  30 * time.Second,
		MaxDelay:   10 * time.Minute,
		Now:        time.Now,
	}
}

// RetryEntry tracks a failed action's retry state.
type RetryEntry struct {
	Action    domain.HealingAction
	Attempt   int       // retries scheduled so far
	NextRetry time.Time // earliest time the retry may run
	FailedAt  time.Time
	Error     string
}

// Backoff returns BaseDelay × 2^(attempt−1), capped at MaxDelay.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// RetryQueue schedules healing-action retries. Safe for concurrent use.
type RetryQueue struct {
	mu     sync.Mutex
	config RetryConfig
	heap   retryHeap

	totalRetries   int64
	totalExhausted int64
}

// NewRetryQueue creates an empty retry queue.
func NewRetryQueue(cfg RetryConfig) *RetryQueue {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RetryQueue{config: cfg}
}

// ScheduleRetry queues the entry for another attempt with exponential
// backoff. Returns false once the entry has used up MaxRetries.
func (rq *RetryQueue) ScheduleRetry(entry RetryEntry) bool {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	entry.Attempt++
	if entry.Attempt > rq.config.MaxRetries {
		rq.totalExhausted++
		return false
	}

	now := rq.config.Now()
	entry.FailedAt = now
	entry.NextRetry = now.Add(rq.config.Backoff(entry.Attempt))

	heap.Push(&rq.heap, entry)
	rq.totalRetries++
	return true
}

// NextReady pops the next entry whose retry time has passed.
func (rq *RetryQueue) NextReady() (RetryEntry, bool) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.heap.Len() == 0 {
		return RetryEntry{}, false
	}
	if rq.config.Now().Before(rq.heap[0].NextRetry) {
		return RetryEntry{}, false
	}
	return heap.Pop(&rq.heap).(RetryEntry), true
}

// DrainReady pops every entry that is due, earliest first.
func (rq *RetryQueue) DrainReady() []RetryEntry {
	var ready []RetryEntry
	for {
		entry, ok := rq.NextReady()
		if !ok {
			return ready
		}
		ready = append(ready, entry)
	}
}

// Len returns the number of pending retries.
func (rq *RetryQueue) Len() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.heap.Len()
}

// RetryStats holds retry queue statistics.
type RetryStats struct {
	PendingRetries int   `json:"pending_retries"`
	TotalRetries   int64 `json:"total_retries"`
	TotalExhausted int64 `json:"total_exhausted"`
}

// RetryStats returns current retry queue statistics.
func (rq *RetryQueue) RetryStats() RetryStats {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return RetryStats{
		PendingRetries: rq.heap.Len(),
		TotalRetries:   rq.totalRetries,
		TotalExhausted: rq.totalExhausted,
	}
}

// ─── Heap ───────────────────────────────────────────────────────────────────

type retryHeap []RetryEntry

func (h retryHeap) Len() int { return len(h) }

func (h retryHeap) Less(i, j int) bool {
	if h[i].NextRetry.Equal(h[j].NextRetry) {
		return h[i].Action.ID < h[j].Action.ID
	}
	return h[i].NextRetry.Before(h[j].NextRetry)
}

func (h retryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *retryHeap) Push(x any) { *h = append(*h, x.(RetryEntry)) }

func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = RetryEntry{}
	*h = old[:n-1]
	return item
}
