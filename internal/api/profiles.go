package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/upskill/internal/onboarding"
	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/session"
)

// ProfileListItem is one row of GET /profiles.
type ProfileListItem struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	TargetRole      string    `json:"target_role"`
	OverallProgress int       `json:"overall_progress"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func listItems(list []profile.Stored) []ProfileListItem {
	items := make([]ProfileListItem, len(list))
	for i, s := range list {
		items[i] = ProfileListItem{
			ID:              s.ID,
			FullName:        s.Profile.FullName,
			TargetRole:      s.Profile.TargetRole,
			OverallProgress: readiness.Compute(s.Profile).OverallProgress,
			CreatedAt:       s.CreatedAt,
			UpdatedAt:       s.UpdatedAt,
		}
	}
	return items
}

func handleListProfiles(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		list, err := deps.Profiles.List(limit, offset)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listItems(list))
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profiles.Get(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleDeleteProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Profiles.Delete(chi.URLParam(r, "id")); err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleEditProfile opens a wizard seeded with the stored profile. Completing
// that session updates the profile in place.
func handleEditProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stored, err := deps.Profiles.Get(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}

		s := deps.Sessions.Create(onboarding.New(onboarding.WithProfile(stored.Profile)), stored.ID)
		var view SessionView
		deps.Sessions.Do(s.ID, func(s *session.Session) error {
			view = viewOf(s)
			return nil
		})
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleProfileMetrics(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profiles.Get(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, readiness.Compute(s.Profile))
	}
}

func handleProfileDashboard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Profiles.Get(chi.URLParam(r, "id"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, readiness.BuildDashboard(s.Profile))
	}
}
