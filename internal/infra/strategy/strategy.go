// Package strategy holds the recovery-strategy library.
//
// A recovery strategy is a runbook: a predefined, ordered set of steps that
// fixes a known class of problem. Instead of a human reading a wiki page,
// the executor instantiates the strategy into a healing action and runs it.
//
// Lookup is first-match in registration order, so the seeded library is
// ordered deliberately: restart_service, rollback_deployment,
// scale_resources, then the narrower restore/isolate strategies.
//
// Strategies synthesized from learned patterns are never registered here;
// they live only on the healing profile that produced them.
package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/tutu-network/vitals/internal/domain"
)

// Seeded strategy IDs.
const (
	RestartService     = "restart_service"
	RollbackDeployment = "rollback_deployment"
	ScaleResources     = "scale_resources"
	RestoreBackup      = "restore_backup"
	IsolateComponent   = "isolate_component"
)

// ─── Default Library ────────────────────────────────────────────────────────

// DefaultStrategies returns the built-in strategy library, in lookup order.
func DefaultStrategies() []domain.RecoveryStrategy {
	return []domain.RecoveryStrategy{
		{
			ID:           RestartService,
			Name:         "Restart service",
			Version:      "1.0",
			ActionType:   domain.ActionRestart,
			ApplicableTo: []domain.IncidentType{domain.IncidentAvailability, domain.IncidentError},
			Steps: []domain.RecoveryStep{
				{Order: 1, Action: "drain_traffic", Target: "service", Automated: true, Timeout: 30 * time.Second, Verification: "no in-flight requests"},
				{Order: 2, Action: "restart_service", Target: "service", Automated: true, Timeout: 2 * time.Minute, Verification: "process reports ready"},
				{Order: 3, Action: "verify_health", Target: "service", Automated: true, Timeout: time.Minute, Verification: "health endpoint returns 200"},
			},
			EstimatedTime: 3 * time.Minute,
			SuccessRate:   0.85,
			Requirements:  []string{"service supports graceful restart"},
			Risks:         []string{"brief unavailability during restart"},
			RollbackPlan:  "restore previous process state from last known-good snapshot",
		},
		{
			ID:           RollbackDeployment,
			Name:         "Roll back deployment",
			Version:      "1.0",
			ActionType:   domain.ActionRollback,
			ApplicableTo: []domain.IncidentType{domain.IncidentError, domain.IncidentDataIntegrity},
			Steps: []domain.RecoveryStep{
				{Order: 1, Action: "snapshot_state", Target: "deployment", Automated: true, Timeout: time.Minute, Verification: "snapshot recorded"},
				{Order: 2, Action: "rollback_deployment", Target: "deployment", Automated: true, Timeout: 5 * time.Minute, Verification: "previous version active"},
				{Order: 3, Action: "verify_health", Target: "deployment", Automated: true, Timeout: time.Minute, Verification: "error rate back under baseline"},
			},
			EstimatedTime: 7 * time.Minute,
			SuccessRate:   0.9,
			Requirements:  []string{"previous deployment artifact available"},
			Risks:         []string{"features shipped in the current release are withdrawn"},
			RollbackPlan:  "re-deploy the version recorded by snapshot_state",
		},
		{
			ID:           ScaleResources,
			Name:         "Scale resources",
			Version:      "1.0",
			ActionType:   domain.ActionScale,
			ApplicableTo: []domain.IncidentType{domain.IncidentPerformance, domain.IncidentAvailability},
			Steps: []domain.RecoveryStep{
				{Order: 1, Action: "scale_out", Target: "service", Params: domain.Params{"factor": "2"}, Automated: true, Timeout: 3 * time.Minute, Verification: "new instances registered"},
				{Order: 2, Action: "rebalance_load", Target: "load_balancer", Automated: true, Timeout: time.Minute, Verification: "traffic spread across instances"},
				{Order: 3, Action: "verify_performance", Target: "service", Automated: true, Timeout: time.Minute, Verification: "latency under threshold"},
			},
			EstimatedTime: 5 * time.Minute,
			SuccessRate:   0.8,
			Requirements:  []string{"capacity headroom in the cluster"},
			Risks:         []string{"increased cost"},
			RollbackPlan:  "scale back to the previous instance count",
		},
		{
			ID:           RestoreBackup,
			Name:         "Restore from backup",
			Version:      "1.0",
			ActionType:   domain.ActionRestore,
			ApplicableTo: []domain.IncidentType{domain.IncidentDataIntegrity},
			Steps: []domain.RecoveryStep{
				{Order: 1, Action: "freeze_writes", Target: "datastore", Automated: true, Timeout: 30 * time.Second, Verification: "write queue paused"},
				{Order: 2, Action: "restore_backup", Target: "datastore", Automated: false, Timeout: 30 * time.Minute, Verification: "checksums match backup manifest"},
				{Order: 3, Action: "resume_writes", Target: "datastore", Automated: true, Timeout: 30 * time.Second, Verification: "write queue draining"},
			},
			EstimatedTime: 35 * time.Minute,
			SuccessRate:   0.75,
			Requirements:  []string{"verified backup newer than the corruption window"},
			Risks:         []string{"writes since the backup are lost"},
			RollbackPlan:  "re-attach the pre-restore volume snapshot",
		},
		{
			ID:           IsolateComponent,
			Name:         "Isolate component",
			Version:      "1.0",
			ActionType:   domain.ActionReroute,
			ApplicableTo: []domain.IncidentType{domain.IncidentSecurity},
			Steps: []domain.RecoveryStep{
				{Order: 1, Action: "isolate_component", Target: "component", Automated: true, Timeout: time.Minute, Verification: "component removed from routing"},
				{Order: 2, Action: "revoke_credentials", Target: "component", Automated: false, Timeout: 10 * time.Minute, Verification: "credentials rotated"},
			},
			EstimatedTime: 11 * time.Minute,
			SuccessRate:   0.7,
			Risks:         []string{"dependent features degrade while isolated"},
			RollbackPlan:  "re-add component to routing",
		},
	}
}

// ─── Registry ───────────────────────────────────────────────────────────────

// Registry is the process-wide, ordered strategy library.
// Safe for concurrent use; all reads return copies.
type Registry struct {
	mu         sync.RWMutex
	strategies []domain.RecoveryStrategy
}

// NewRegistry creates a registry seeded with DefaultStrategies.
func NewRegistry() *Registry {
	return &Registry{strategies: DefaultStrategies()}
}

// Register appends a strategy. IDs must be unique.
func (r *Registry) Register(s domain.RecoveryStrategy) error {
	if s.ID == "" {
		return fmt.Errorf("register strategy: empty id: %w", domain.ErrInvalidParams)
	}
	for _, st := range s.Steps {
		if err := st.Params.Validate(); err != nil {
			return fmt.Errorf("register strategy %s: %w", s.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.strategies {
		if existing.ID == s.ID {
			return fmt.Errorf("register strategy %s: %w", s.ID, domain.ErrStrategyExists)
		}
	}
	r.strategies = append(r.strategies, s.Clone())
	return nil
}

// Get returns a strategy by ID.
func (r *Registry) Get(id string) (domain.RecoveryStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return domain.RecoveryStrategy{}, fmt.Errorf("strategy %s: %w", id, domain.ErrStrategyNotFound)
}

// List returns all strategies in lookup order.
func (r *Registry) List() []domain.RecoveryStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RecoveryStrategy, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// FindBestStrategy returns the first registered strategy applicable to the
// incident's type.
func (r *Registry) FindBestStrategy(incident domain.HealthIncident) (domain.RecoveryStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.strategies {
		if s.AppliesTo(incident.Type) {
			return s.Clone(), true
		}
	}
	return domain.RecoveryStrategy{}, false
}

// ─── Synthesis ──────────────────────────────────────────────────────────────

// SynthesizeFromPattern derives a dynamic strategy from an auto-healable
// pattern: one automated step per recommended action. The result is not
// registered.
func (r *Registry) SynthesizeFromPattern(p domain.ErrorPattern) (domain.RecoveryStrategy, bool) {
	if !p.AutoHealable || len(p.RecommendedActions) == 0 {
		return domain.RecoveryStrategy{}, false
	}

	actionType := domain.ActionPatch
	var estimated time.Duration
	steps := make([]domain.RecoveryStep, 0, len(p.RecommendedActions))
	for i, name := range p.RecommendedActions {
		timeout := 2 * time.Minute
		if base, err := r.Get(name); err == nil {
			if i == 0 {
				actionType = base.ActionType
			}
			if base.EstimatedTime > 0 {
				timeout = base.EstimatedTime
			}
		}
		estimated += timeout
		steps = append(steps, domain.RecoveryStep{
			Order:        i + 1,
			Action:       name,
			Target:       string(p.PrimaryType()),
			Automated:    true,
			Timeout:      timeout,
			Verification: "incident signature no longer observed",
		})
	}

	return domain.RecoveryStrategy{
		ID:            "dynamic_" + p.ID,
		Name:          fmt.Sprintf("Learned remediation for %s/%s", p.PrimaryType(), p.Signature.Severity),
		Version:       "dynamic",
		ActionType:    actionType,
		ApplicableTo:  append([]domain.IncidentType(nil), p.Signature.ErrorTypes...),
		Steps:         steps,
		EstimatedTime: estimated,
		SuccessRate:   p.SuccessRate,
		RollbackPlan:  "revert each step in reverse order",
		Dynamic:       true,
	}, true
}
