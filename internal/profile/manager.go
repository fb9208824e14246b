// Package profile stores completed onboarding profiles and serves them back
// through a small read cache.
package profile

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/upskill/internal/onboarding"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/storage"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SaveProfile(p storage.ProfileRecord) error
	UpdateProfile(p storage.ProfileRecord) error
	GetProfile(id string) (storage.ProfileRecord, error)
	ListProfiles(limit, offset int) ([]storage.ProfileRecord, error)
	DeleteProfile(id string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Stored is a completed profile with its storage identity.
type Stored struct {
	ID        string             `json:"id"`
	Profile   onboarding.Profile `json:"profile"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type cacheEntry struct {
	stored Stored
	at     time.Time
}

// Manager provides cached access to stored profiles.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Save persists a newly completed profile under a fresh ID.
func (m *Manager) Save(p onboarding.Profile) (Stored, error) {
	now := m.clock.Now().UTC().Truncate(time.Second)
	s := Stored{ID: uuid.NewString(), Profile: p.Clone(), CreatedAt: now, UpdatedAt: now}

	rec, err := toRecord(s)
	if err != nil {
		return Stored{}, err
	}
	if err := m.store.SaveProfile(rec); err != nil {
		return Stored{}, fmt.Errorf("saving profile: %w", err)
	}

	m.mu.Lock()
	m.cache[s.ID] = cacheEntry{stored: s, at: m.clock.Now()}
	m.mu.Unlock()
	return clone(s), nil
}

// Update replaces the profile stored under id.
func (m *Manager) Update(id string, p onboarding.Profile) (Stored, error) {
	rec, err := toRecord(Stored{ID: id, Profile: p})
	if err != nil {
		return Stored{}, err
	}

	m.mu.Lock()
	delete(m.cache, id)
	err = m.store.UpdateProfile(rec)
	m.mu.Unlock()
	if err != nil {
		return Stored{}, fmt.Errorf("updating profile %s: %w", id, err)
	}
	return m.Get(id)
}

// Get returns the profile stored under id. Errors wrap storage.ErrNotFound
// for unknown IDs.
func (m *Manager) Get(id string) (Stored, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if e, ok := m.cache[id]; ok && m.fresh(e) {
		m.mu.RUnlock()
		return clone(e.stored), nil
	}
	m.mu.RUnlock()

	// Slow path: write lock for cache miss.
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[id]; ok && m.fresh(e) {
		return clone(e.stored), nil
	}

	rec, err := m.store.GetProfile(id)
	if err != nil {
		return Stored{}, fmt.Errorf("loading profile %s: %w", id, err)
	}
	s, err := fromRecord(rec)
	if err != nil {
		return Stored{}, err
	}
	m.cache[id] = cacheEntry{stored: s, at: m.clock.Now()}
	return clone(s), nil
}

// List returns stored profiles newest first. limit <= 0 means no limit.
func (m *Manager) List(limit, offset int) ([]Stored, error) {
	recs, err := m.store.ListProfiles(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	out := make([]Stored, 0, len(recs))
	for _, rec := range recs {
		s, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Delete removes the profile stored under id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, id)
	if err := m.store.DeleteProfile(id); err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	return nil
}

func (m *Manager) fresh(e cacheEntry) bool {
	return m.clock.Now().Before(e.at.Add(m.ttl))
}

// maxSummaryChars caps the summary at roughly 500 tokens.
const maxSummaryChars = 2000

// Summary returns a compact one-paragraph description of a stored profile.
func Summary(s Stored) string {
	p := s.Profile
	var parts []string

	if p.FullName != "" {
		who := p.FullName
		if p.CurrentRole != "" {
			who += ", " + p.CurrentRole
		}
		if p.ExperienceLevel != "" {
			who += " (" + string(p.ExperienceLevel) + ")"
		}
		if p.Industry != "" {
			who += " in " + p.Industry
		}
		parts = append(parts, who+".")
	}

	if p.TargetRole != "" {
		target := "Targeting " + p.TargetRole
		if p.Timeline != "" {
			target += " within " + string(p.Timeline)
		}
		parts = append(parts, target+".")
	}

	if len(p.CurrentSkills) > 0 {
		skills := make([]string, len(p.CurrentSkills))
		for i, sk := range p.CurrentSkills {
			skills[i] = fmt.Sprintf("%s (%d/10)", sk.Name, sk.Proficiency)
		}
		parts = append(parts, fmt.Sprintf("Skills: %s.", strings.Join(skills, ", ")))
	}

	if len(p.SkillsToLearn) > 0 {
		parts = append(parts, fmt.Sprintf("Learning: %s.", strings.Join(p.SkillsToLearn, ", ")))
	}

	if p.LearningPace != "" || p.WeeklyHours != "" {
		parts = append(parts, fmt.Sprintf("Pace: %s, %s hours/week.", p.LearningPace, p.WeeklyHours))
	}

	if len(parts) == 0 {
		return "Profile: empty."
	}

	m := readiness.Compute(p)
	parts = append(parts, fmt.Sprintf("Readiness %d%%, skill gap %d%%.", m.OverallProgress, m.SkillGapPercentage))

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

func toRecord(s Stored) (storage.ProfileRecord, error) {
	data, err := json.Marshal(s.Profile)
	if err != nil {
		return storage.ProfileRecord{}, fmt.Errorf("marshalling profile: %w", err)
	}
	return storage.ProfileRecord{
		ID:         s.ID,
		FullName:   s.Profile.FullName,
		TargetRole: s.Profile.TargetRole,
		DataJSON:   string(data),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}, nil
}

func fromRecord(rec storage.ProfileRecord) (Stored, error) {
	var p onboarding.Profile
	if err := json.Unmarshal([]byte(rec.DataJSON), &p); err != nil {
		return Stored{}, fmt.Errorf("decoding profile %s: %w", rec.ID, err)
	}
	return Stored{ID: rec.ID, Profile: p, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt}, nil
}

func clone(s Stored) Stored {
	s.Profile = s.Profile.Clone()
	return s
}
