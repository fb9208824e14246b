package onboarding

import (
	"errors"
	"fmt"
)

// ErrInvalidMutation is wrapped by errors for mutations that would break a
// Profile invariant, such as an out-of-range proficiency.
var ErrInvalidMutation = errors.New("invalid mutation")

// Mutation is one edit to the in-progress Profile. The set of variants is
// closed; each is a distinct type so callers get compile-time checking
// instead of a set-field-by-name setter.
type Mutation interface {
	// Op is the wire name of the mutation, e.g. "add_skill".
	Op() string

	validate() error
	apply(p *Profile)
}

type SetFullName struct{ Value string }
type SetCurrentRole struct{ Value string }
type SetExperienceLevel struct{ Value ExperienceLevel }
type SetIndustry struct{ Value string }

type AddSkill struct{ Name string }
type RemoveSkill struct{ Name string }

// SetProficiency changes the proficiency of an existing current skill.
// Value must already be within [MinProficiency, MaxProficiency].
type SetProficiency struct {
	Name  string
	Value int
}

type SetTargetRole struct{ Value string }
type AddTargetSkill struct{ Skill string }
type RemoveTargetSkill struct{ Skill string }
type SetTimeline struct{ Value Timeline }

type SetLearningPace struct{ Value LearningPace }
type SetWeeklyHours struct{ Value WeeklyHours }
type SetGoals struct{ Value string }

func (SetFullName) Op() string        { return "set_full_name" }
func (SetCurrentRole) Op() string     { return "set_current_role" }
func (SetExperienceLevel) Op() string { return "set_experience_level" }
func (SetIndustry) Op() string        { return "set_industry" }
func (AddSkill) Op() string           { return "add_skill" }
func (RemoveSkill) Op() string        { return "remove_skill" }
func (SetProficiency) Op() string     { return "set_proficiency" }
func (SetTargetRole) Op() string      { return "set_target_role" }
func (AddTargetSkill) Op() string     { return "add_target_skill" }
func (RemoveTargetSkill) Op() string  { return "remove_target_skill" }
func (SetTimeline) Op() string        { return "set_timeline" }
func (SetLearningPace) Op() string    { return "set_learning_pace" }
func (SetWeeklyHours) Op() string     { return "set_weekly_hours" }
func (SetGoals) Op() string           { return "set_goals" }

func (SetFullName) validate() error       { return nil }
func (SetCurrentRole) validate() error    { return nil }
func (SetIndustry) validate() error       { return nil }
func (AddSkill) validate() error          { return nil }
func (RemoveSkill) validate() error       { return nil }
func (SetTargetRole) validate() error     { return nil }
func (AddTargetSkill) validate() error    { return nil }
func (RemoveTargetSkill) validate() error { return nil }
func (SetGoals) validate() error          { return nil }

func (m SetExperienceLevel) validate() error {
	if !m.Value.Valid() {
		return fmt.Errorf("%w: unknown experience level %q", ErrInvalidMutation, m.Value)
	}
	return nil
}

func (m SetTimeline) validate() error {
	if !m.Value.Valid() {
		return fmt.Errorf("%w: unknown timeline %q", ErrInvalidMutation, m.Value)
	}
	return nil
}

func (m SetLearningPace) validate() error {
	if !m.Value.Valid() {
		return fmt.Errorf("%w: unknown learning pace %q", ErrInvalidMutation, m.Value)
	}
	return nil
}

func (m SetWeeklyHours) validate() error {
	if !m.Value.Valid() {
		return fmt.Errorf("%w: unknown weekly hours %q", ErrInvalidMutation, m.Value)
	}
	return nil
}

func (m SetProficiency) validate() error {
	if m.Value < MinProficiency || m.Value > MaxProficiency {
		return fmt.Errorf("%w: proficiency %d for %q outside [%d,%d]",
			ErrInvalidMutation, m.Value, m.Name, MinProficiency, MaxProficiency)
	}
	return nil
}

func (m SetFullName) apply(p *Profile)        { p.FullName = m.Value }
func (m SetCurrentRole) apply(p *Profile)     { p.CurrentRole = m.Value }
func (m SetExperienceLevel) apply(p *Profile) { p.ExperienceLevel = m.Value }
func (m SetIndustry) apply(p *Profile)        { p.Industry = m.Value }
func (m SetTargetRole) apply(p *Profile)      { p.TargetRole = m.Value }
func (m SetTimeline) apply(p *Profile)        { p.Timeline = m.Value }
func (m SetLearningPace) apply(p *Profile)    { p.LearningPace = m.Value }
func (m SetWeeklyHours) apply(p *Profile)     { p.WeeklyHours = m.Value }
func (m SetGoals) apply(p *Profile)           { p.Goals = m.Value }

func (m AddSkill) apply(p *Profile) {
	if m.Name == "" || p.skillIndex(m.Name) >= 0 {
		return
	}
	p.CurrentSkills = append(p.CurrentSkills, Skill{Name: m.Name, Proficiency: DefaultProficiency})
}

func (m RemoveSkill) apply(p *Profile) {
	i := p.skillIndex(m.Name)
	if i < 0 {
		return
	}
	p.CurrentSkills = append(p.CurrentSkills[:i:i], p.CurrentSkills[i+1:]...)
}

func (m SetProficiency) apply(p *Profile) {
	if i := p.skillIndex(m.Name); i >= 0 {
		p.CurrentSkills[i].Proficiency = m.Value
	}
}

func (m AddTargetSkill) apply(p *Profile) {
	if m.Skill == "" || p.targetIndex(m.Skill) >= 0 {
		return
	}
	p.SkillsToLearn = append(p.SkillsToLearn, m.Skill)
}

func (m RemoveTargetSkill) apply(p *Profile) {
	i := p.targetIndex(m.Skill)
	if i < 0 {
		return
	}
	p.SkillsToLearn = append(p.SkillsToLearn[:i:i], p.SkillsToLearn[i+1:]...)
}
