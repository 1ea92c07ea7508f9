package domain

import "time"

// ─── Recovery Strategy ──────────────────────────────────────────────────────

// RecoveryStep is a template step. Healing actions copy these into
// HealingSteps when they are instantiated.
type RecoveryStep struct {
	Order        int           `json:"order"`
	Action       string        `json:"action"`
	Target       string        `json:"target"`
	Params       Params        `json:"params,omitempty"`
	Automated    bool          `json:"automated"`
	Timeout      time.Duration `json:"timeout"`
	Verification string        `json:"verification"`
}

// RecoveryStrategy is a reusable remediation procedure for one or more
// incident types.
type RecoveryStrategy struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	ActionType    HealingActionType `json:"action_type"`
	ApplicableTo  []IncidentType    `json:"applicable_to"`
	Steps         []RecoveryStep    `json:"steps"`
	EstimatedTime time.Duration     `json:"estimated_time"`
	SuccessRate   float64           `json:"success_rate"`
	Requirements  []string          `json:"requirements,omitempty"`
	Risks         []string          `json:"risks,omitempty"`
	RollbackPlan  string            `json:"rollback_plan,omitempty"`
	Dynamic       bool              `json:"dynamic,omitempty"`
}

// AppliesTo reports whether the strategy handles incidents of type t.
func (s RecoveryStrategy) AppliesTo(t IncidentType) bool {
	for _, at := range s.ApplicableTo {
		if at == t {
			return true
		}
	}
	return false
}

// FullyAutomated reports whether every step can run without a human.
func (s RecoveryStrategy) FullyAutomated() bool {
	if len(s.Steps) == 0 {
		return false
	}
	for _, st := range s.Steps {
		if !st.Automated {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the strategy.
func (s RecoveryStrategy) Clone() RecoveryStrategy {
	out := s
	out.ApplicableTo = append([]IncidentType(nil), s.ApplicableTo...)
	out.Steps = make([]RecoveryStep, len(s.Steps))
	for i, st := range s.Steps {
		st.Params = st.Params.Clone()
		out.Steps[i] = st
	}
	out.Requirements = append([]string(nil), s.Requirements...)
	out.Risks = append([]string(nil), s.Risks...)
	return out
}
