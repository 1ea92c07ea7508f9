package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
)

// Runner performs healing steps by filing remediation records on the
// platform. Automated steps become remediation requests that the platform's
// automation picks up; manual steps become operator tasks.
type Runner struct {
	rc     domain.RecordClient
	tables Tables
	log    *zap.Logger
}

// NewRunner creates a remediation runner.
func NewRunner(rc domain.RecordClient, tables Tables, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{rc: rc, tables: tables.withDefaults(), log: log.Named("runner")}
}

// RunStep files the step and returns a short description of what was filed.
func (r *Runner) RunStep(ctx context.Context, step domain.HealingStep) (string, error) {
	if !step.Automated {
		rec, err := r.rc.CreateRecord(ctx, r.tables.Tasks, domain.Record{
			"short_description": fmt.Sprintf("Vitals: %s on %s", step.Action, step.Target),
			"description":       describeStep(step),
			"priority":          "2",
		})
		if err != nil {
			return "", fmt.Errorf("file manual task for %s: %w", step.Action, err)
		}
		return fmt.Sprintf("manual task %s filed", recordRef(rec)), nil
	}

	rec, err := r.rc.CreateRecord(ctx, r.tables.Remediation, domain.Record{
		"action":  step.Action,
		"target":  step.Target,
		"params":  map[string]string(step.Params),
		"order":   step.Order,
		"timeout": int(step.Timeout / time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("request %s on %s: %w", step.Action, step.Target, err)
	}
	if state := strings.ToLower(str(rec, "state")); state == "failed" || state == "rejected" {
		return "", fmt.Errorf("%s on %s %s: %s", step.Action, step.Target, state, str(rec, "message"))
	}
	r.log.Debug("remediation requested",
		zap.String("action", step.Action),
		zap.String("target", step.Target),
		zap.String("record", recordRef(rec)),
	)
	return fmt.Sprintf("%s requested on %s (%s)", step.Action, step.Target, recordRef(rec)), nil
}

// Rollback files a rollback request for the action's rollback plan.
func (r *Runner) Rollback(ctx context.Context, a domain.HealingAction) error {
	if a.RollbackPlan == "" {
		return fmt.Errorf("rollback %s: no rollback plan: %w", a.ID, domain.ErrInvalidParams)
	}
	target := ""
	if len(a.Steps) > 0 {
		target = a.Steps[0].Target
	}
	_, err := r.rc.CreateRecord(ctx, r.tables.Remediation, domain.Record{
		"action":    "rollback",
		"target":    target,
		"plan":      a.RollbackPlan,
		"action_id": a.ID,
		"incident":  a.IncidentID,
	})
	if err != nil {
		return fmt.Errorf("rollback %s: %w", a.ID, err)
	}
	r.log.Info("rollback requested", zap.String("action_id", a.ID), zap.String("plan", a.RollbackPlan))
	return nil
}

func describeStep(step domain.HealingStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s\nTarget: %s\n", step.Order, step.Action, step.Target)
	keys := make([]string, 0, len(step.Params))
	for k := range step.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, step.Params[k])
	}
	return b.String()
}

func recordRef(rec domain.Record) string {
	if n := str(rec, "number"); n != "" {
		return n
	}
	if id := str(rec, "sys_id"); id != "" {
		return id
	}
	return "unknown"
}

// ─── Dry Run ────────────────────────────────────────────────────────────────

// DryRunner logs steps instead of performing them. Used when no platform is
// configured.
type DryRunner struct {
	Log *zap.Logger
}

// RunStep logs the step and reports success.
func (d DryRunner) RunStep(_ context.Context, step domain.HealingStep) (string, error) {
	if d.Log != nil {
		d.Log.Info("dry run step", zap.String("action", step.Action), zap.String("target", step.Target))
	}
	return fmt.Sprintf("dry run: %s on %s", step.Action, step.Target), nil
}

// Rollback logs the rollback.
func (d DryRunner) Rollback(_ context.Context, a domain.HealingAction) error {
	if d.Log != nil {
		d.Log.Info("dry run rollback", zap.String("action_id", a.ID), zap.String("plan", a.RollbackPlan))
	}
	return nil
}
