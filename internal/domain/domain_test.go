package domain

import (
	"errors"
	"testing"
	"time"
)

// ─── Incident Lifecycle ─────────────────────────────────────────────────────

func TestIncidentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to IncidentStatus
		want     bool
	}{
		{StatusActive, StatusHealing, true},
		{StatusActive, StatusEscalated, true},
		{StatusActive, StatusResolved, false},
		{StatusHealing, StatusResolved, true},
		{StatusHealing, StatusActive, true},
		{StatusHealing, StatusEscalated, true},
		{StatusResolved, StatusActive, false},
		{StatusResolved, StatusHealing, false},
		{StatusEscalated, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthIncident_Resolve(t *testing.T) {
	detected := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inc := HealthIncident{ID: "inc-1", Status: StatusHealing, DetectedAt: detected}

	// A clock behind DetectedAt must not produce ResolvedAt < DetectedAt.
	if err := inc.Resolve(ActionRestart, detected.Add(-time.Minute)); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if inc.Status != StatusResolved {
		t.Errorf("Status = %s, want resolved", inc.Status)
	}
	if inc.ResolvedAt.Before(inc.DetectedAt) {
		t.Errorf("ResolvedAt %v before DetectedAt %v", inc.ResolvedAt, inc.DetectedAt)
	}
	if inc.ResolutionMethod != ActionRestart {
		t.Errorf("ResolutionMethod = %s, want restart", inc.ResolutionMethod)
	}
}

func TestHealthIncident_ResolvedNeverRevived(t *testing.T) {
	inc := HealthIncident{ID: "inc-1", Status: StatusResolved}
	err := inc.Transition(StatusActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Transition() error = %v, want ErrInvalidTransition", err)
	}
	if inc.Status != StatusResolved {
		t.Errorf("Status = %s, want resolved", inc.Status)
	}
}

func TestHealthIncident_AttachRootCauseOnce(t *testing.T) {
	inc := HealthIncident{ID: "inc-1"}
	if !inc.AttachRootCause(RootCause{Category: CauseCode}) {
		t.Fatal("first AttachRootCause() should succeed")
	}
	if inc.AttachRootCause(RootCause{Category: CauseNetwork}) {
		t.Error("second AttachRootCause() should be ignored")
	}
	if inc.RootCause.Category != CauseCode {
		t.Errorf("Category = %s, want code", inc.RootCause.Category)
	}
}

func TestHealthIncident_CloneIsDeep(t *testing.T) {
	inc := HealthIncident{
		ID:        "inc-1",
		RootCause: &RootCause{Evidence: []Evidence{{Detail: "a"}}},
		Impact:    Impact{AffectedServices: []string{"api"}},
	}
	cp := inc.Clone()
	cp.RootCause.Evidence[0].Detail = "changed"
	cp.Impact.AffectedServices[0] = "db"

	if inc.RootCause.Evidence[0].Detail != "a" {
		t.Error("Clone() shares evidence slice")
	}
	if inc.Impact.AffectedServices[0] != "api" {
		t.Error("Clone() shares affected services slice")
	}
}

// ─── Step Status ────────────────────────────────────────────────────────────

func TestHealingStep_TransitionMonotonic(t *testing.T) {
	tests := []struct {
		name  string
		path  []StepStatus
		valid bool
	}{
		{"complete", []StepStatus{StepExecuting, StepCompleted}, true},
		{"fail", []StepStatus{StepExecuting, StepFailed}, true},
		{"skip", []StepStatus{StepSkipped}, true},
		{"skip after start", []StepStatus{StepExecuting, StepSkipped}, false},
		{"back to pending", []StepStatus{StepExecuting, StepPending}, false},
		{"revive failed", []StepStatus{StepExecuting, StepFailed, StepExecuting}, false},
		{"complete without start", []StepStatus{StepCompleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HealingStep{Order: 1, Action: "restart", Status: StepPending}
			var err error
			for _, next := range tt.path {
				if err = s.Transition(next); err != nil {
					break
				}
			}
			if (err == nil) != tt.valid {
				t.Errorf("path %v: err = %v, want valid=%v", tt.path, err, tt.valid)
			}
		})
	}
}

func TestHealingAction_AllStepsCompleted(t *testing.T) {
	a := HealingAction{Steps: []HealingStep{{Status: StepCompleted}, {Status: StepCompleted}}}
	if !a.AllStepsCompleted() {
		t.Error("AllStepsCompleted() = false, want true")
	}
	a.Steps[1].Status = StepSkipped
	if a.AllStepsCompleted() {
		t.Error("AllStepsCompleted() = true with a skipped step")
	}
	if (HealingAction{}).AllStepsCompleted() {
		t.Error("AllStepsCompleted() = true for an action with no steps")
	}
}

func TestParams_Validate(t *testing.T) {
	if err := (Params{"replicas": "3"}).Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if err := (Params{"": "x"}).Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Validate() error = %v, want ErrInvalidParams", err)
	}
}

// ─── Misc ───────────────────────────────────────────────────────────────────

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"CRITICAL": SeverityCritical,
		" high ":   SeverityHigh,
		"Medium":   SeverityMedium,
		"low":      SeverityLow,
		"bogus":    SeverityLow,
	}
	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestScope_Includes(t *testing.T) {
	s := Scope{Kind: ScopeServices, Services: []string{"api"}}
	if !s.Includes("api") || s.Includes("db") {
		t.Error("specific-services scope should include only listed services")
	}
	if !(Scope{Kind: ScopeFull}).Includes("db") {
		t.Error("full scope should include every service")
	}
}

func TestProfileKey(t *testing.T) {
	if got := ProfileKey("abc"); got != "healing_profile_abc" {
		t.Errorf("ProfileKey() = %q, want healing_profile_abc", got)
	}
}
