// Package session keeps in-progress onboarding wizards in memory, keyed by
// an opaque ID, so HTTP clients can drive one wizard across requests.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/upskill/internal/onboarding"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 30 * time.Minute

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Session is one wizard and the stored profile it edits, if any.
type Session struct {
	ID string
	// ProfileID is set when the session edits an existing profile.
	ProfileID string
	Wizard    *onboarding.Wizard

	mu       sync.Mutex // serialises Do
	lastSeen time.Time  // guarded by Registry.mu
}

// Registry holds live sessions. Access to a session's Wizard goes through Do,
// which serialises callers per session.
type Registry struct {
	clock Clock
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry. A non-positive ttl uses DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	return NewRegistryWithClock(ttl, realClock{})
}

// NewRegistryWithClock creates a Registry with a custom clock (for testing).
func NewRegistryWithClock(ttl time.Duration, clock Clock) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{clock: clock, ttl: ttl, sessions: make(map[string]*Session)}
}

// Create registers a new session for w. profileID may be empty.
func (r *Registry) Create(w *onboarding.Wizard, profileID string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Wizard:    w,
		lastSeen:  r.clock.Now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Do runs fn with exclusive access to the session. It returns ErrNotFound if
// the session is unknown or expired, otherwise fn's error.
func (r *Registry) Do(id string, fn func(*Session) error) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been removed while we waited for its lock.
	r.mu.Lock()
	_, live := r.sessions[id]
	if live {
		s.lastSeen = r.clock.Now()
	}
	r.mu.Unlock()
	if !live {
		return ErrNotFound
	}
	return fn(s)
}

// Remove deletes a session. Removing an unknown session returns ErrNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many it
// removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	n := 0
	for id, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *Registry) lookup(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.expired(s, r.clock.Now()) {
		delete(r.sessions, id)
		return nil, ErrNotFound
	}
	return s, nil
}

// expired must be called with r.mu held.
func (r *Registry) expired(s *Session, now time.Time) bool {
	return now.Sub(s.lastSeen) > r.ttl
}

// Run sweeps expired sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}
