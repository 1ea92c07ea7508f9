package responder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/healing"
	"github.com/tutu-network/vitals/internal/infra/metrics"
)

// ─── Manual Execution ───────────────────────────────────────────────────────

// ExecuteHealingAction runs a known action on demand. Unknown ids return
// domain.ErrActionNotFound; executor errors propagate.
func (r *Responder) ExecuteHealingAction(ctx context.Context, id string, opts healing.ExecuteOptions) (domain.HealingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actions[id]
	if !ok {
		return domain.HealingAction{}, fmt.Errorf("action %s: %w", id, domain.ErrActionNotFound)
	}

	err := r.deps.Executor.ExecuteHealingAction(ctx, a, opts)
	if finished(*a) {
		r.observeActions([]domain.HealingAction{*a})
	}
	metrics.IncidentsActive.Set(float64(r.deps.Index.ActiveCount()))
	if err != nil {
		r.log.Warn("manual healing action failed", zap.String("action", id), zap.Error(err))
	}
	return a.Clone(), err
}

// Action returns a copy of a known action.
func (r *Responder) Action(id string) (domain.HealingAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return domain.HealingAction{}, fmt.Errorf("action %s: %w", id, domain.ErrActionNotFound)
	}
	return a.Clone(), nil
}

// ─── Action Index ───────────────────────────────────────────────────────────

// rememberLocked stores copies of actions, replacing earlier versions with
// the same id. The oldest actions are evicted beyond MaxActions.
func (r *Responder) rememberLocked(actions ...domain.HealingAction) {
	for _, a := range actions {
		c := a.Clone()
		if existing, ok := r.actions[a.ID]; ok {
			*existing = c
			continue
		}
		r.actions[a.ID] = &c
		r.order = append(r.order, a.ID)
	}
	for len(r.order) > r.cfg.MaxActions {
		delete(r.actions, r.order[0])
		r.order = r.order[1:]
	}
}

// recentLocked returns up to n actions, newest first.
func (r *Responder) recentLocked(n int) []domain.HealingAction {
	out := make([]domain.HealingAction, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.actions[r.order[i]].Clone())
	}
	return out
}

// observeActions exports finished actions and breaker states.
func (r *Responder) observeActions(actions []domain.HealingAction) {
	for _, a := range actions {
		if !finished(a) {
			continue
		}
		metrics.HealingActions.WithLabelValues(string(a.Type), string(a.Status)).Inc()
		if a.Result != nil {
			metrics.HealingDuration.WithLabelValues(string(a.Type)).Observe(a.Result.Duration.Seconds())
		}
	}
	for _, s := range r.deps.Executor.Breakers().Snapshots() {
		metrics.BreakerState.WithLabelValues(s.Target).Set(float64(s.State))
	}
}

func finished(a domain.HealingAction) bool {
	return a.IsTerminal() || a.Status == domain.ActionFailed
}
