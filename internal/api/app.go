// Package api exposes the onboarding wizard, stored profiles and recovery
// plans over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/session"
	"github.com/kalambet/upskill/internal/storage"
	"github.com/kalambet/upskill/internal/telemetry"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds dependencies for the HTTP API.
type AppDeps struct {
	Store    *storage.Store
	Profiles *profile.Manager
	Sessions *session.Registry
	Metrics  *telemetry.Metrics // optional
	Token    string
	// WeakThreshold overrides readiness.WeakScoreThreshold when positive.
	WeakThreshold int
}

// NewAppHandler returns the full HTTP API. /health and /metrics are served
// without authentication; everything else requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(deps.Metrics.Middleware)

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/onboarding", handleStartOnboarding(deps))
		r.Get("/onboarding/{id}", handleGetOnboarding(deps))
		r.Delete("/onboarding/{id}", handleAbandonOnboarding(deps))
		r.Post("/onboarding/{id}/mutations", handleApplyMutations(deps))
		r.Post("/onboarding/{id}/advance", handleAdvance(deps))
		r.Post("/onboarding/{id}/retreat", handleRetreat(deps))

		r.Get("/profiles", handleListProfiles(deps))
		r.Get("/profiles/{id}", handleGetProfile(deps))
		r.Delete("/profiles/{id}", handleDeleteProfile(deps))
		r.Post("/profiles/{id}/edit", handleEditProfile(deps))
		r.Get("/profiles/{id}/metrics", handleProfileMetrics(deps))
		r.Get("/profiles/{id}/dashboard", handleProfileDashboard(deps))

		r.Post("/recovery-plans", handleCreatePlan(deps))
		r.Get("/recovery-plans/{id}", handleGetPlan(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// profileError maps a profile.Manager error to a response.
func profileError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// weakSkills derives the recovery-plan input from a stored profile.
func weakSkills(s profile.Stored, threshold int) []recovery.WeakSkill {
	scored := readiness.WeakSkills(s.Profile, threshold)
	weak := make([]recovery.WeakSkill, len(scored))
	for i, sk := range scored {
		weak[i] = recovery.WeakSkill{Name: sk.Name, Score: sk.Score}
	}
	return weak
}
