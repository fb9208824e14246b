package profile

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/upskill/internal/onboarding"
	"github.com/kalambet/upskill/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	data map[string]storage.ProfileRecord

	getCalls int
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]storage.ProfileRecord)}
}

func (m *mockStore) SaveProfile(p storage.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[p.ID] = p
	return nil
}

func (m *mockStore) UpdateProfile(p storage.ProfileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.data[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.data[p.ID] = p
	return nil
}

func (m *mockStore) GetProfile(id string) (storage.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.data[id]
	if !ok {
		return storage.ProfileRecord{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *mockStore) ListProfiles(limit, offset int) ([]storage.ProfileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ProfileRecord
	for _, p := range m.data {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) DeleteProfile(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleProfile() onboarding.Profile {
	return onboarding.Profile{
		FullName:        "Ada Lovelace",
		CurrentRole:     "Analyst",
		ExperienceLevel: onboarding.ExperienceAdvanced,
		Industry:        "Finance",
		CurrentSkills:   []onboarding.Skill{{Name: "Python", Proficiency: 5}, {Name: "SQL", Proficiency: 8}},
		TargetRole:      "Data Engineer",
		SkillsToLearn:   []string{"sql", "Spark"},
		Timeline:        onboarding.Timeline1Year,
		LearningPace:    onboarding.PaceSelfPaced,
		WeeklyHours:     onboarding.Hours8To15,
		Goals:           "Move into data engineering",
	}
}

// --- Tests ---

func TestSaveAndGet(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	saved, err := mgr.Save(sampleProfile())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := mgr.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.FullName != "Ada Lovelace" || len(got.Profile.CurrentSkills) != 2 {
		t.Errorf("unexpected profile: %+v", got.Profile)
	}
}

func TestGet_NotFound(t *testing.T) {
	mgr := NewManager(newMockStore())

	_, err := mgr.Get("missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	mgr := NewManager(newMockStore())
	saved, _ := mgr.Save(sampleProfile())

	got, _ := mgr.Get(saved.ID)
	got.Profile.CurrentSkills[0].Name = "mutated"

	again, _ := mgr.Get(saved.ID)
	if again.Profile.CurrentSkills[0].Name != "Python" {
		t.Errorf("cached profile was mutated through a returned copy")
	}
}

func TestUpdate(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)
	saved, _ := mgr.Save(sampleProfile())

	p := saved.Profile
	p.TargetRole = "ML Engineer"
	updated, err := mgr.Update(saved.ID, p)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Profile.TargetRole != "ML Engineer" {
		t.Errorf("TargetRole = %q, want ML Engineer", updated.Profile.TargetRole)
	}
	if store.data[saved.ID].TargetRole != "ML Engineer" {
		t.Errorf("denormalised target_role not updated")
	}

	if _, err := mgr.Update("missing", p); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	mgr := NewManager(newMockStore())
	saved, _ := mgr.Save(sampleProfile())

	if err := mgr.Delete(saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	mgr := NewManager(newMockStore())
	mgr.Save(sampleProfile())
	mgr.Save(onboarding.Profile{FullName: "Grace"})

	list, err := mgr.List(0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d profiles, want 2", len(list))
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	saved, _ := mgr.Save(sampleProfile())

	mgr.Get(saved.ID)
	mgr.Get(saved.ID)

	if calls := store.calls(); calls != 0 {
		t.Errorf("expected 0 store reads (Save primes the cache), got %d", calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	ttl := 60 * time.Second
	mgr := NewManagerWithClock(store, clock, ttl)

	saved, _ := mgr.Save(sampleProfile())

	// Advance past TTL
	clock.Advance(ttl + time.Second)
	mgr.Get(saved.ID)
	mgr.Get(saved.ID)

	if calls := store.calls(); calls != 1 {
		t.Errorf("expected 1 store read (cache expired once), got %d", calls)
	}
}

func TestManager_WithSQLite(t *testing.T) {
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer s.Close()

	mgr := NewManager(s)
	saved, err := mgr.Save(sampleProfile())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Bypass the cache with a fresh manager.
	got, err := NewManager(s).Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.Goals != "Move into data engineering" {
		t.Errorf("Goals = %q", got.Profile.Goals)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}
}

func TestSummary_Empty(t *testing.T) {
	if got := Summary(Stored{}); got != "Profile: empty." {
		t.Errorf("Summary(empty) = %q", got)
	}
}

func TestSummary_Full(t *testing.T) {
	summary := Summary(Stored{Profile: sampleProfile()})

	checks := []string{
		"Ada Lovelace, Analyst (advanced) in Finance.",
		"Targeting Data Engineer within 1-year.",
		"SQL (8/10)",
		"Learning: sql, Spark.",
		"Readiness 56%",
	}
	for _, want := range checks {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %s", want, summary)
		}
	}
}

func TestSummary_Budget(t *testing.T) {
	p := sampleProfile()
	for i := 0; i < 300; i++ {
		p.SkillsToLearn = append(p.SkillsToLearn, "Something very specific to learn")
	}

	summary := Summary(Stored{Profile: p})
	if len(summary) > maxSummaryChars {
		t.Errorf("summary too long: %d chars", len(summary))
	}
}
