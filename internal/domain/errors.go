package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Store errors
	ErrNotFound = errors.New("not found")

	// Lifecycle errors
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidParams     = errors.New("invalid step parameters")

	// Healing action errors
	ErrActionNotFound     = errors.New("healing action not found")
	ErrVerificationFailed = errors.New("healing action failed pre-execution verification")
	ErrHealingFailed      = errors.New("healing action failed")
	ErrHealingRolledBack  = errors.New("healing failed and was rolled back")
	ErrStepTimeout        = errors.New("healing step timed out")
	ErrCircuitOpen        = errors.New("circuit breaker is open — target unavailable")

	// Strategy errors
	ErrStrategyNotFound = errors.New("recovery strategy not found")
	ErrStrategyExists   = errors.New("recovery strategy already registered")
	ErrNoStrategy       = errors.New("no recovery strategy applies to incident")

	// Incident errors
	ErrIncidentNotFound = errors.New("incident not found")

	// Assessment errors
	ErrMetricsUnavailable = errors.New("system metrics unavailable")

	// Scheduler errors
	ErrAlreadyRunning = errors.New("autonomous healing already running")
	ErrNotRunning     = errors.New("autonomous healing not running")

	// Platform errors
	ErrPlatformUnavailable = errors.New("platform API unreachable")
)
