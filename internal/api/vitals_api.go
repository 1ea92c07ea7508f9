package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tutu-network/vitals/internal/app/responder"
	"github.com/tutu-network/vitals/internal/domain"
	"github.com/tutu-network/vitals/internal/infra/healing"
)

// ─── Vitals API (/api/v1/*) ──────────────────────────────────────────────────

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// --- /api/v1/health-check ---

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	req := s.checkDefaults
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Scope {
	case "", domain.ScopeFull, domain.ScopeIncremental, domain.ScopeServices:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scope %q", req.Scope))
		return
	}

	resp, err := s.engine.PerformHealthCheck(r.Context(), req)
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- /api/v1/dashboard ---

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.GetHealthDashboard(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- /api/v1/autonomous/{start,stop} ---

// autonomousRequest takes check_interval as milliseconds (300000) or as a
// duration string ("5m").
type autonomousRequest struct {
	CheckInterval    json.RawMessage `json:"check_interval"`
	HealingThreshold float64         `json:"healing_threshold"`
	MaxRetries       int             `json:"max_retries"`
	Preventive       *bool           `json:"preventive"`
}

func (req autonomousRequest) options() (responder.AutonomousOptions, error) {
	opts := responder.DefaultAutonomousOptions()
	if len(req.CheckInterval) > 0 && string(req.CheckInterval) != "null" {
		d, err := parseInterval(req.CheckInterval)
		if err != nil || d <= 0 {
			return opts, fmt.Errorf("invalid check_interval %s", req.CheckInterval)
		}
		opts.CheckInterval = d
	}
	if req.HealingThreshold < 0 || req.HealingThreshold > 1 {
		return opts, fmt.Errorf("healing_threshold %v outside [0, 1]", req.HealingThreshold)
	}
	if req.HealingThreshold > 0 {
		opts.HealingThreshold = req.HealingThreshold
	}
	if req.MaxRetries < 0 {
		return opts, fmt.Errorf("max_retries %d is negative", req.MaxRetries)
	}
	if req.MaxRetries > 0 {
		opts.MaxRetries = req.MaxRetries
	}
	if req.Preventive != nil {
		opts.Preventive = *req.Preventive
	}
	return opts, nil
}

// parseInterval reads a JSON number of milliseconds or a duration string.
func parseInterval(raw json.RawMessage) (time.Duration, error) {
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, err
	}
	return time.ParseDuration(str)
}

func (s *Server) handleAutonomousStart(w http.ResponseWriter, r *http.Request) {
	var req autonomousRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.options()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.engine.StartAutonomousHealing(r.Context(), opts); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "started",
		"check_interval":    opts.CheckInterval.String(),
		"healing_threshold": opts.HealingThreshold,
		"max_retries":       opts.MaxRetries,
		"preventive":        opts.Preventive,
	})
}

func (s *Server) handleAutonomousStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.StopAutonomousHealing(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// --- /api/v1/actions/{id} ---

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Action(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	opts := healing.ExecuteOptions{Verify: true}
	if err := decodeBody(r, &opts); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	a, err := s.engine.ExecuteHealingAction(r.Context(), id, opts)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			writeError(w, status, err.Error())
			return
		}
		// The action ran (or was rejected); report its state with the error.
		writeJSON(w, status, map[string]interface{}{
			"action": a,
			"error": map[string]interface{}{
				"message": err.Error(),
				"type":    errorType(status),
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"action": a})
}

// --- /api/v1/profiles/{id} ---

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- /api/v1/learning ---

func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.LearningSnapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
