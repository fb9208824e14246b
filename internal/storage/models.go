package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ProfileRecord is a completed onboarding profile. The profile itself is
// stored as JSON; FullName and TargetRole are denormalised for listing.
type ProfileRecord struct {
	ID         string
	FullName   string
	TargetRole string
	DataJSON   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Plan statuses.
const (
	PlanPending   = "pending"
	PlanCompleted = "completed"
)

type RecoveryPlan struct {
	ID             string
	ProfileID      string // empty when requested from explicit weak skills
	TargetRole     string
	WeakSkillsJSON string // JSON array stored as text
	Status         string
	Text           string
	Fallback       bool
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // JobPending, JobRunning, JobCompleted or JobFailed
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
