package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/upskill/internal/onboarding"
	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/session"
)

// SessionView is the JSON form of an in-progress wizard.
type SessionView struct {
	ID         string             `json:"id"`
	ProfileID  string             `json:"profile_id,omitempty"`
	Step       int                `json:"step"`
	Title      string             `json:"title"`
	TotalSteps int                `json:"total_steps"`
	Progress   int                `json:"progress"`
	StepValid  bool               `json:"step_valid"`
	CanAdvance bool               `json:"can_advance"`
	Done       bool               `json:"done"`
	Profile    onboarding.Profile `json:"profile"`
}

func viewOf(s *session.Session) SessionView {
	w := s.Wizard
	return SessionView{
		ID:         s.ID,
		ProfileID:  s.ProfileID,
		Step:       int(w.Step()),
		Title:      w.Step().Title(),
		TotalSteps: onboarding.TotalSteps,
		Progress:   w.Progress(),
		StepValid:  w.StepValid(w.Step()),
		CanAdvance: w.CanAdvance(),
		Done:       w.Done(),
		Profile:    w.Profile(),
	}
}

// AdvanceResponse reports the outcome of an advance. ProfileID and Metrics
// are set only when the wizard completed.
type AdvanceResponse struct {
	Outcome   string             `json:"outcome"`
	Session   *SessionView       `json:"session,omitempty"`
	ProfileID string             `json:"profile_id,omitempty"`
	Metrics   *readiness.Metrics `json:"metrics,omitempty"`
}

type startRequest struct {
	InitialName string `json:"initial_name"`
}

type mutationsRequest struct {
	onboarding.Envelope
	Mutations []onboarding.Envelope `json:"mutations"`
}

func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "onboarding session not found")
	case errors.Is(err, onboarding.ErrInvalidMutation):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, onboarding.ErrFinished):
		httpError(w, http.StatusConflict, "conflict", "%v", err)
	default:
		profileError(w, err)
	}
}

func handleStartOnboarding(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var opts []onboarding.Option
		if req.InitialName != "" {
			opts = append(opts, onboarding.WithInitialName(req.InitialName))
		}
		s := deps.Sessions.Create(onboarding.New(opts...), "")
		slog.Debug("onboarding session started", "session_id", s.ID)

		var view SessionView
		deps.Sessions.Do(s.ID, func(s *session.Session) error {
			view = viewOf(s)
			return nil
		})
		writeJSON(w, http.StatusCreated, view)
	}
}

func handleGetOnboarding(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var view SessionView
		err := deps.Sessions.Do(chi.URLParam(r, "id"), func(s *session.Session) error {
			view = viewOf(s)
			return nil
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleAbandonOnboarding(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Sessions.Remove(chi.URLParam(r, "id")); err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleApplyMutations accepts either a single mutation envelope or
// {"mutations": [...]}. Envelopes are decoded up front; they are then applied
// in order and the first rejected one stops the batch, leaving earlier ones
// applied.
func handleApplyMutations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req mutationsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		envelopes := req.Mutations
		if len(envelopes) == 0 {
			if req.Op == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "op or mutations is required")
				return
			}
			envelopes = []onboarding.Envelope{req.Envelope}
		}

		muts := make([]onboarding.Mutation, len(envelopes))
		for i, e := range envelopes {
			m, err := e.Mutation()
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "mutation %d: %v", i, err)
				return
			}
			muts[i] = m
		}

		var view SessionView
		err := deps.Sessions.Do(chi.URLParam(r, "id"), func(s *session.Session) error {
			for _, m := range muts {
				if err := s.Wizard.Apply(m); err != nil {
					return err
				}
			}
			view = viewOf(s)
			return nil
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// handleAdvance moves the wizard forward. On completion the profile is saved
// (or, for an edit session, updated) and the session ends, so a repeated
// advance gets 404. If saving fails the session is kept and a repeated
// advance retries the save.
func handleAdvance(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var resp AdvanceResponse
		var stored profile.Stored
		err := deps.Sessions.Do(id, func(s *session.Session) error {
			outcome := onboarding.Completed
			if !s.Wizard.Done() {
				outcome = s.Wizard.Advance()
				deps.Metrics.WizardTransition(outcome.String())
			}
			resp.Outcome = outcome.String()

			if outcome != onboarding.Completed {
				view := viewOf(s)
				resp.Session = &view
				return nil
			}

			result, _ := s.Wizard.Result()
			var err error
			if s.ProfileID != "" {
				stored, err = deps.Profiles.Update(s.ProfileID, result)
			} else {
				stored, err = deps.Profiles.Save(result)
			}
			if err != nil {
				return err
			}
			// Removed under the session lock, so a concurrent advance that
			// was waiting on it gets ErrNotFound instead of saving again.
			deps.Sessions.Remove(id)
			return nil
		})
		if err != nil {
			sessionError(w, err)
			return
		}

		if resp.Outcome == onboarding.Completed.String() {
			deps.Metrics.ProfileCompleted()
			m := readiness.Compute(stored.Profile)
			resp.ProfileID = stored.ID
			resp.Metrics = &m
			slog.Info("onboarding completed", "session_id", id, "profile_id", stored.ID)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleRetreat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var moved bool
		var view SessionView
		err := deps.Sessions.Do(chi.URLParam(r, "id"), func(s *session.Session) error {
			moved = s.Wizard.Retreat()
			view = viewOf(s)
			return nil
		})
		if err != nil {
			sessionError(w, err)
			return
		}
		if moved {
			deps.Metrics.WizardTransition("retreated")
		}
		writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "session": view})
	}
}
