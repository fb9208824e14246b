// Package onboarding implements the four-step profile wizard: it accumulates
// a Profile through typed mutations and gates forward navigation on the
// current step being complete.
//
// A Wizard is a plain value owned by one caller. It performs no I/O and no
// locking; callers that share one across goroutines must serialise access.
package onboarding

import (
	"errors"
	"math"
)

// ErrFinished is returned by Apply once the wizard has emitted its Profile.
var ErrFinished = errors.New("onboarding already completed")

// Outcome is the result of an Advance call.
type Outcome int

const (
	// Rejected means the current step is incomplete or the wizard is done.
	// Nothing changed.
	Rejected Outcome = iota
	// Moved means the wizard is now on the next step.
	Moved
	// Completed means the final step was submitted and the Profile emitted.
	Completed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Completed:
		return "completed"
	default:
		return "rejected"
	}
}

// Option configures a new Wizard.
type Option func(*Wizard)

// WithInitialName pre-fills the full name, e.g. from the sign-up form.
func WithInitialName(name string) Option {
	return func(w *Wizard) { w.profile.FullName = name }
}

// WithProfile seeds the wizard with an existing profile for editing.
// The wizard still starts at the first step.
func WithProfile(p Profile) Option {
	return func(w *Wizard) { w.profile = p.Clone() }
}

// WithOnComplete registers a callback that receives the final Profile when
// the last step is submitted.
func WithOnComplete(fn func(Profile)) Option {
	return func(w *Wizard) { w.onComplete = fn }
}

// Wizard is the onboarding state machine.
type Wizard struct {
	step       Step
	profile    Profile
	done       bool
	onComplete func(Profile)
}

// New returns a Wizard on the first step with an empty Profile.
func New(opts ...Option) *Wizard {
	w := &Wizard{step: StepPersonal}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Step returns the current step. After completion it stays on the last step.
func (w *Wizard) Step() Step { return w.step }

// Done reports whether the wizard has emitted its Profile.
func (w *Wizard) Done() bool { return w.done }

// Profile returns a copy of the in-progress Profile.
func (w *Wizard) Profile() Profile { return w.profile.Clone() }

// Result returns the emitted Profile once the wizard is done.
func (w *Wizard) Result() (Profile, bool) {
	if !w.done {
		return Profile{}, false
	}
	return w.profile.Clone(), true
}

// StepValid reports whether step s has all required fields filled in.
func (w *Wizard) StepValid(s Step) bool { return w.profile.StepComplete(s) }

// CanAdvance reports whether Advance would currently succeed.
func (w *Wizard) CanAdvance() bool {
	return !w.done && w.profile.StepComplete(w.step)
}

// Progress returns the position in the wizard as a percentage, step/total.
func (w *Wizard) Progress() int {
	return int(math.Floor(float64(w.step)/float64(TotalSteps)*100 + 0.5))
}

// Apply validates and applies m to the Profile. It never changes the step.
// Adds of empty or duplicate names and edits of absent names are no-ops.
func (w *Wizard) Apply(m Mutation) error {
	if w.done {
		return ErrFinished
	}
	if err := m.validate(); err != nil {
		return err
	}
	m.apply(&w.profile)
	return nil
}

// Advance moves to the next step, or completes the wizard from the last one.
// Validity is checked on every call, so an earlier step that was edited after
// moving past it is re-checked when the user comes back to it.
func (w *Wizard) Advance() Outcome {
	if !w.CanAdvance() {
		return Rejected
	}
	if int(w.step) < TotalSteps {
		w.step++
		return Moved
	}
	w.done = true
	if w.onComplete != nil {
		w.onComplete(w.profile.Clone())
	}
	return Completed
}

// Retreat moves back one step. It reports false on the first step or after
// completion.
func (w *Wizard) Retreat() bool {
	if w.done || w.step <= StepPersonal {
		return false
	}
	w.step--
	return true
}
