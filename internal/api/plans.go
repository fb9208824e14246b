package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/storage"
	"github.com/kalambet/upskill/internal/worker"
)

// PlanRequest asks for a recovery plan either for a stored profile or for an
// explicit list of weak skills.
type PlanRequest struct {
	ProfileID  string               `json:"profile_id"`
	TargetRole string               `json:"target_role"`
	WeakSkills []recovery.WeakSkill `json:"weak_skills"`
}

// PlanView is the JSON form of a stored plan.
type PlanView struct {
	ID         string               `json:"id"`
	ProfileID  string               `json:"profile_id,omitempty"`
	TargetRole string               `json:"target_role"`
	WeakSkills []recovery.WeakSkill `json:"weak_skills"`
	Status     string               `json:"status"`
	Text       string               `json:"text,omitempty"`
	Fallback   bool                 `json:"fallback"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func handleCreatePlan(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req PlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		weak := req.WeakSkills
		role := req.TargetRole
		if req.ProfileID != "" {
			s, err := deps.Profiles.Get(req.ProfileID)
			if err != nil {
				profileError(w, err)
				return
			}
			weak = weakSkills(s, deps.WeakThreshold)
			if role == "" {
				role = s.Profile.TargetRole
			}
		}
		if role == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "target_role or profile_id is required")
			return
		}

		id, err := worker.Enqueue(deps.Store, req.ProfileID, role, weak)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue plan: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": storage.PlanPending})
	}
}

func handleGetPlan(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Store.GetPlan(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "recovery plan not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get plan: %v", err)
			return
		}

		view := PlanView{
			ID:         p.ID,
			ProfileID:  p.ProfileID,
			TargetRole: p.TargetRole,
			Status:     p.Status,
			Text:       p.Text,
			Fallback:   p.Fallback,
			Reason:     p.Reason,
			CreatedAt:  p.CreatedAt,
			UpdatedAt:  p.UpdatedAt,
		}
		if err := json.Unmarshal([]byte(p.WeakSkillsJSON), &view.WeakSkills); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "corrupt weak skills for plan %s: %v", p.ID, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
