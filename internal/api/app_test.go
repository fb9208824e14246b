package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/session"
	"github.com/kalambet/upskill/internal/storage"
	"github.com/kalambet/upskill/internal/telemetry"
	"github.com/kalambet/upskill/internal/worker"
)

const testToken = "test-token"

func newTestApp(t *testing.T) (http.Handler, AppDeps) {
	t.Helper()
	store := newTestStore(t)
	deps := AppDeps{
		Store:    store,
		Profiles: profile.NewManager(store),
		Sessions: session.NewRegistry(time.Minute),
		Metrics:  telemetry.New(),
		Token:    testToken,
	}
	return NewAppHandler(deps), deps
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

// fillSteps applies each batch and advances after it.
func fillSteps(t *testing.T, h http.Handler, sessionID string, batches []string) AdvanceResponse {
	t.Helper()
	var last AdvanceResponse
	for i, batch := range batches {
		expectStatus(t, doRequest(t, h, "POST", "/onboarding/"+sessionID+"/mutations", batch), http.StatusOK)
		w := doRequest(t, h, "POST", "/onboarding/"+sessionID+"/advance", "")
		expectStatus(t, w, http.StatusOK)
		last = decode[AdvanceResponse](t, w)
		if last.Outcome == "rejected" {
			t.Fatalf("step %d rejected", i+1)
		}
	}
	return last
}

var wizardBatches = []string{
	`{"mutations":[
		{"op":"set_current_role","value":"Analyst"},
		{"op":"set_experience_level","value":"advanced"},
		{"op":"set_industry","value":"Finance"}]}`,
	`{"mutations":[
		{"op":"add_skill","name":"Python"},
		{"op":"add_skill","name":"SQL"},
		{"op":"set_proficiency","name":"SQL","proficiency":8}]}`,
	`{"mutations":[
		{"op":"set_target_role","value":"Data Engineer"},
		{"op":"add_target_skill","name":"sql"},
		{"op":"add_target_skill","name":"Spark"},
		{"op":"set_timeline","value":"1-year"}]}`,
	`{"mutations":[
		{"op":"set_learning_pace","value":"self-paced"},
		{"op":"set_weekly_hours","value":"8-15"},
		{"op":"set_goals","value":"Move into data engineering"}]}`,
}

func TestHealth_NoAuth(t *testing.T) {
	h, _ := newTestApp(t)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestMetricsEndpoint_NoAuth(t *testing.T) {
	h, _ := newTestApp(t)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "upskill_http_requests_total") {
		t.Errorf("metrics output missing request counter")
	}
}

func TestAuth_Required(t *testing.T) {
	h, _ := newTestApp(t)

	for _, path := range []string{"/profiles", "/onboarding/x", "/recovery-plans/x"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", path, nil)
		r.Header.Set("Authorization", "Bearer wrong")
		h.ServeHTTP(w, r)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, w.Code)
		}
	}
}

func TestOnboarding_FullFlow(t *testing.T) {
	h, deps := newTestApp(t)

	w := doRequest(t, h, "POST", "/onboarding", `{"initial_name":"Ada Lovelace"}`)
	expectStatus(t, w, http.StatusCreated)
	view := decode[SessionView](t, w)
	if view.Step != 1 || view.Progress != 25 || view.Profile.FullName != "Ada Lovelace" {
		t.Fatalf("start view = %+v", view)
	}
	if view.CanAdvance {
		t.Error("step 1 should not be advanceable with only a name")
	}

	res := fillSteps(t, h, view.ID, wizardBatches)
	if res.Outcome != "completed" {
		t.Fatalf("outcome = %q, want completed", res.Outcome)
	}
	if res.ProfileID == "" || res.Metrics == nil {
		t.Fatalf("completion response = %+v", res)
	}
	want := readiness.Metrics{
		TotalCurrentSkills: 2,
		AverageProficiency: 7,
		TargetSkillCount:   2,
		SkillsAlreadyKnown: 1,
		SkillGapPercentage: 50,
		OverallProgress:    56,
	}
	if *res.Metrics != want {
		t.Errorf("metrics = %+v, want %+v", *res.Metrics, want)
	}

	// The session ends with the wizard.
	expectStatus(t, doRequest(t, h, "GET", "/onboarding/"+view.ID, ""), http.StatusNotFound)
	if n := deps.Sessions.Len(); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}

	w = doRequest(t, h, "GET", "/profiles/"+res.ProfileID, "")
	expectStatus(t, w, http.StatusOK)
	stored := decode[profile.Stored](t, w)
	if stored.Profile.Goals != "Move into data engineering" || stored.Profile.CurrentSkills[1].Proficiency != 8 {
		t.Errorf("stored profile = %+v", stored.Profile)
	}

	w = doRequest(t, h, "GET", "/profiles/"+res.ProfileID+"/metrics", "")
	expectStatus(t, w, http.StatusOK)
	if got := decode[readiness.Metrics](t, w); got != want {
		t.Errorf("GET metrics = %+v", got)
	}
}

func TestOnboarding_ConcurrentFinalAdvance(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		h, deps := newTestApp(t)

		w := doRequest(t, h, "POST", "/onboarding", `{"initial_name":"Ada Lovelace"}`)
		expectStatus(t, w, http.StatusCreated)
		id := decode[SessionView](t, w).ID

		last := len(wizardBatches) - 1
		fillSteps(t, h, id, wizardBatches[:last])
		expectStatus(t, doRequest(t, h, "POST", "/onboarding/"+id+"/mutations", wizardBatches[last]), http.StatusOK)

		const callers = 4
		codes := make([]int, callers)
		var wg sync.WaitGroup
		for c := 0; c < callers; c++ {
			wg.Add(1)
			go func(c int) {
				defer wg.Done()
				r := httptest.NewRequest("POST", "/onboarding/"+id+"/advance", nil)
				r.Header.Set("Authorization", "Bearer "+testToken)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, r)
				codes[c] = rec.Code
			}(c)
		}
		wg.Wait()

		completed := 0
		for _, code := range codes {
			switch code {
			case http.StatusOK:
				completed++
			case http.StatusNotFound:
			default:
				t.Fatalf("iteration %d: unexpected status %d", iter, code)
			}
		}
		if completed != 1 {
			t.Fatalf("iteration %d: %d advances completed, want 1 (codes %v)", iter, completed, codes)
		}

		stored, err := deps.Profiles.List(0, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(stored) != 1 {
			t.Fatalf("iteration %d: stored %d profiles, want 1", iter, len(stored))
		}
	}
}

func TestOnboarding_AdvanceRejected(t *testing.T) {
	h, _ := newTestApp(t)
	view := decode[SessionView](t, doRequest(t, h, "POST", "/onboarding", ""))

	w := doRequest(t, h, "POST", "/onboarding/"+view.ID+"/advance", "")
	expectStatus(t, w, http.StatusOK)
	res := decode[AdvanceResponse](t, w)
	if res.Outcome != "rejected" || res.Session == nil || res.Session.Step != 1 {
		t.Errorf("advance = %+v", res)
	}
}

func TestOnboarding_SingleMutation(t *testing.T) {
	h, _ := newTestApp(t)
	view := decode[SessionView](t, doRequest(t, h, "POST", "/onboarding", ""))

	w := doRequest(t, h, "POST", "/onboarding/"+view.ID+"/mutations", `{"op":"set_full_name","value":"Grace"}`)
	expectStatus(t, w, http.StatusOK)
	if got := decode[SessionView](t, w); got.Profile.FullName != "Grace" {
		t.Errorf("FullName = %q", got.Profile.FullName)
	}
}

func TestOnboarding_InvalidMutation(t *testing.T) {
	h, _ := newTestApp(t)
	view := decode[SessionView](t, doRequest(t, h, "POST", "/onboarding", ""))
	path := "/onboarding/" + view.ID + "/mutations"

	cases := []string{
		`{"op":"fly"}`,
		`{}`,
		`{"op":"set_timeline","value":"someday"}`,
		`{"mutations":[{"op":"add_skill","name":"Go"},{"op":"set_proficiency","name":"Go","proficiency":11}]}`,
		`not json`,
	}
	for _, body := range cases {
		if w := doRequest(t, h, "POST", path, body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}

	// The batch stops at the rejected mutation; earlier ones stay applied.
	got := decode[SessionView](t, doRequest(t, h, "GET", "/onboarding/"+view.ID, ""))
	if len(got.Profile.CurrentSkills) != 1 || got.Profile.CurrentSkills[0].Proficiency != 5 {
		t.Errorf("skills = %+v", got.Profile.CurrentSkills)
	}
}

func TestOnboarding_Retreat(t *testing.T) {
	h, _ := newTestApp(t)
	view := decode[SessionView](t, doRequest(t, h, "POST", "/onboarding", `{"initial_name":"Ada"}`))

	w := doRequest(t, h, "POST", "/onboarding/"+view.ID+"/retreat", "")
	expectStatus(t, w, http.StatusOK)
	if got := decode[map[string]any](t, w); got["moved"] != false {
		t.Errorf("retreat on step 1 moved: %v", got)
	}

	fillSteps(t, h, view.ID, wizardBatches[:1])
	w = doRequest(t, h, "POST", "/onboarding/"+view.ID+"/retreat", "")
	if got := decode[map[string]any](t, w); got["moved"] != true {
		t.Errorf("retreat on step 2 did not move: %v", got)
	}
}

func TestOnboarding_Abandon(t *testing.T) {
	h, _ := newTestApp(t)
	view := decode[SessionView](t, doRequest(t, h, "POST", "/onboarding", ""))

	expectStatus(t, doRequest(t, h, "DELETE", "/onboarding/"+view.ID, ""), http.StatusOK)
	expectStatus(t, doRequest(t, h, "GET", "/onboarding/"+view.ID, ""), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, "DELETE", "/onboarding/"+view.ID, ""), http.StatusNotFound)
}

func TestEditProfile(t *testing.T) {
	h, deps := newTestApp(t)
	saved, err := deps.Profiles.Save(testProfile())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := doRequest(t, h, "POST", "/profiles/"+saved.ID+"/edit", "")
	expectStatus(t, w, http.StatusCreated)
	view := decode[SessionView](t, w)
	if view.ProfileID != saved.ID || view.Step != 1 || !view.CanAdvance {
		t.Fatalf("edit view = %+v", view)
	}
	if view.Profile.TargetRole != "Data Engineer" {
		t.Errorf("edit session not seeded: %+v", view.Profile)
	}

	res := fillSteps(t, h, view.ID, []string{
		`{"op":"set_industry","value":"Energy"}`,
		`{"op":"remove_skill","name":"Python"}`,
		`{"op":"set_target_role","value":"ML Engineer"}`,
		`{"op":"set_goals","value":"Ship models"}`,
	})
	if res.Outcome != "completed" || res.ProfileID != saved.ID {
		t.Fatalf("completion = %+v", res)
	}

	got, err := deps.Profiles.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.TargetRole != "ML Engineer" || got.Profile.Industry != "Energy" || len(got.Profile.CurrentSkills) != 1 {
		t.Errorf("updated profile = %+v", got.Profile)
	}

	list := decode[[]ProfileListItem](t, doRequest(t, h, "GET", "/profiles", ""))
	if len(list) != 1 {
		t.Errorf("editing created a new profile: %d profiles", len(list))
	}
}

func TestEditProfile_NotFound(t *testing.T) {
	h, _ := newTestApp(t)
	expectStatus(t, doRequest(t, h, "POST", "/profiles/missing/edit", ""), http.StatusNotFound)
}

func TestProfiles_ListAndDelete(t *testing.T) {
	h, deps := newTestApp(t)
	a, _ := deps.Profiles.Save(testProfile())
	deps.Profiles.Save(testProfile())

	list := decode[[]ProfileListItem](t, doRequest(t, h, "GET", "/profiles?limit=1", ""))
	if len(list) != 1 || list[0].OverallProgress != 56 {
		t.Errorf("list = %+v", list)
	}

	expectStatus(t, doRequest(t, h, "DELETE", "/profiles/"+a.ID, ""), http.StatusOK)
	expectStatus(t, doRequest(t, h, "GET", "/profiles/"+a.ID, ""), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, "DELETE", "/profiles/"+a.ID, ""), http.StatusNotFound)

	list = decode[[]ProfileListItem](t, doRequest(t, h, "GET", "/profiles", ""))
	if len(list) != 1 {
		t.Errorf("got %d profiles after delete, want 1", len(list))
	}
}

func TestProfileDashboard(t *testing.T) {
	h, deps := newTestApp(t)
	saved, _ := deps.Profiles.Save(testProfile())

	w := doRequest(t, h, "GET", "/profiles/"+saved.ID+"/dashboard", "")
	expectStatus(t, w, http.StatusOK)
	d := decode[readiness.Dashboard](t, w)
	if d.Greeting != "Ada" || d.Metrics.OverallProgress != 56 {
		t.Errorf("dashboard = %+v", d)
	}
	if len(d.WeakSkills) != 1 || d.WeakSkills[0].Name != "Python" {
		t.Errorf("weak skills = %+v", d.WeakSkills)
	}

	expectStatus(t, doRequest(t, h, "GET", "/profiles/missing/dashboard", ""), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, "GET", "/profiles/missing/metrics", ""), http.StatusNotFound)
}

func TestRecoveryPlan_QueuedAndGenerated(t *testing.T) {
	h, deps := newTestApp(t)
	saved, _ := deps.Profiles.Save(testProfile())

	w := doRequest(t, h, "POST", "/recovery-plans", `{"profile_id":"`+saved.ID+`"}`)
	expectStatus(t, w, http.StatusAccepted)
	queued := decode[map[string]string](t, w)
	if queued["status"] != storage.PlanPending || queued["id"] == "" {
		t.Fatalf("queued = %v", queued)
	}

	var prompt string
	gen := recovery.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "<ul><li>Practice Python daily</li></ul>", nil
	})
	wk := worker.NewWorker(deps.Store, recovery.NewPlanner(gen, time.Second), deps.Metrics, time.Second)
	if ok, err := wk.RunOnce(context.Background()); !ok || err != nil {
		t.Fatalf("RunOnce = %v, %v", ok, err)
	}
	if !strings.Contains(prompt, "Python") || !strings.Contains(prompt, `"Data Engineer"`) {
		t.Errorf("prompt = %q", prompt)
	}

	w = doRequest(t, h, "GET", "/recovery-plans/"+queued["id"], "")
	expectStatus(t, w, http.StatusOK)
	plan := decode[PlanView](t, w)
	if plan.Status != storage.PlanCompleted || plan.Fallback || plan.Text != "<ul><li>Practice Python daily</li></ul>" {
		t.Errorf("plan = %+v", plan)
	}
	if plan.ProfileID != saved.ID || len(plan.WeakSkills) != 1 || plan.WeakSkills[0].Score != 50 {
		t.Errorf("plan inputs = %+v", plan)
	}
}

func TestRecoveryPlan_Explicit(t *testing.T) {
	h, deps := newTestApp(t)

	w := doRequest(t, h, "POST", "/recovery-plans", `{"target_role":"SRE","weak_skills":[{"name":"Linux","score":30}]}`)
	expectStatus(t, w, http.StatusAccepted)
	id := decode[map[string]string](t, w)["id"]

	plan, err := deps.Store.GetPlan(id)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if plan.Status != storage.PlanPending || plan.TargetRole != "SRE" || plan.WeakSkillsJSON != `[{"name":"Linux","score":30}]` {
		t.Errorf("plan = %+v", plan)
	}
}

func TestRecoveryPlan_BadRequests(t *testing.T) {
	h, _ := newTestApp(t)

	expectStatus(t, doRequest(t, h, "POST", "/recovery-plans", `{"weak_skills":[]}`), http.StatusBadRequest)
	expectStatus(t, doRequest(t, h, "POST", "/recovery-plans", `{`), http.StatusBadRequest)
	expectStatus(t, doRequest(t, h, "POST", "/recovery-plans", `{"profile_id":"missing"}`), http.StatusNotFound)
	expectStatus(t, doRequest(t, h, "GET", "/recovery-plans/missing", ""), http.StatusNotFound)
}

func TestParseIntParam(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=500", 100},
		{"limit=-1", 20},
		{"limit=abc", 20},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/profiles?"+tc.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tc.want {
			t.Errorf("%q: got %d, want %d", tc.query, got, tc.want)
		}
	}
}
