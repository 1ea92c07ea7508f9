package domain

import (
	"fmt"
	"time"
)

// ─── Healing Action Types ───────────────────────────────────────────────────

// HealingActionType classifies what a healing action does to the platform.
type HealingActionType string

const (
	ActionRestart  HealingActionType = "restart"
	ActionRollback HealingActionType = "rollback"
	ActionPatch    HealingActionType = "patch"
	ActionScale    HealingActionType = "scale"
	ActionReroute  HealingActionType = "reroute"
	ActionCleanup  HealingActionType = "cleanup"
	ActionRestore  HealingActionType = "restore"
)

// ActionStatus tracks a healing action's lifecycle.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionExecuting  ActionStatus = "executing"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
	ActionRolledBack ActionStatus = "rolled-back"
)

// StepStatus tracks a single step. Statuses only move forward:
//
//	pending → executing → completed | failed
//	pending → skipped
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// IsTerminal returns true for completed, failed and skipped.
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// ─── Params ─────────────────────────────────────────────────────────────────

// Params carries step parameters. Keys must be non-empty.
type Params map[string]string

// Validate rejects empty keys.
func (p Params) Validate() error {
	for k := range p {
		if k == "" {
			return fmt.Errorf("params: %w", ErrInvalidParams)
		}
	}
	return nil
}

// Clone copies the parameter map.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ─── Healing Step ───────────────────────────────────────────────────────────

// HealingStep is one ordered unit of a healing action.
type HealingStep struct {
	Order     int           `json:"order"`
	Action    string        `json:"action"`
	Target    string        `json:"target"`
	Params    Params        `json:"params,omitempty"`
	Automated bool          `json:"automated"`
	Timeout   time.Duration `json:"timeout"`
	Status    StepStatus    `json:"status"`
	Output    string        `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Transition advances the step status. Moving out of a terminal state, or
// skipping a step that already started, is rejected.
func (s *HealingStep) Transition(next StepStatus) error {
	ok := false
	switch s.Status {
	case StepPending, "":
		ok = next == StepExecuting || next == StepSkipped
	case StepExecuting:
		ok = next == StepCompleted || next == StepFailed
	}
	if !ok {
		return fmt.Errorf("step %d %s: %s → %s: %w", s.Order, s.Action, s.Status, next, ErrInvalidTransition)
	}
	s.Status = next
	return nil
}

// ─── Healing Action ─────────────────────────────────────────────────────────

// ActionResult summarizes one execution of a healing action.
type ActionResult struct {
	Success            bool          `json:"success"`
	Message            string        `json:"message"`
	MetricsBefore      SystemMetrics `json:"metrics_before"`
	MetricsAfter       SystemMetrics `json:"metrics_after"`
	VerificationPassed bool          `json:"verification_passed"`
	Duration           time.Duration `json:"duration"`
}

// HealingAction is a remediation procedure bound to one incident.
type HealingAction struct {
	ID           string            `json:"id"`
	IncidentID   string            `json:"incident_id"`
	StrategyID   string            `json:"strategy_id"`
	Type         HealingActionType `json:"type"`
	Automated    bool              `json:"automated"`
	Preventive   bool              `json:"preventive,omitempty"`
	Steps        []HealingStep     `json:"steps"`
	Status       ActionStatus      `json:"status"`
	StartedAt    time.Time         `json:"started_at,omitempty"`
	CompletedAt  time.Time         `json:"completed_at,omitempty"`
	Result       *ActionResult     `json:"result,omitempty"`
	RollbackPlan string            `json:"rollback_plan,omitempty"`
	Notes        []string          `json:"notes,omitempty"`
}

// AllStepsCompleted reports whether every step finished successfully.
func (a HealingAction) AllStepsCompleted() bool {
	if len(a.Steps) == 0 {
		return false
	}
	for _, s := range a.Steps {
		if s.Status != StepCompleted {
			return false
		}
	}
	return true
}

// IsTerminal returns true once the action can no longer change.
func (a HealingAction) IsTerminal() bool {
	return a.Status == ActionCompleted || a.Status == ActionRolledBack
}

// Clone returns a deep copy of the action.
func (a HealingAction) Clone() HealingAction {
	out := a
	out.Steps = make([]HealingStep, len(a.Steps))
	for i, s := range a.Steps {
		s.Params = s.Params.Clone()
		out.Steps[i] = s
	}
	if a.Result != nil {
		r := *a.Result
		out.Result = &r
	}
	out.Notes = append([]string(nil), a.Notes...)
	return out
}
