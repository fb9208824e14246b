package onboarding

// Step identifies one page of the onboarding wizard.
type Step int

const (
	StepPersonal Step = iota + 1
	StepSkills
	StepTarget
	StepPreferences
)

// TotalSteps is the number of wizard steps. There is no step after the last.
const TotalSteps = int(StepPreferences)

// Title returns the display title of the step.
func (s Step) Title() string {
	switch s {
	case StepPersonal:
		return "Personal Information"
	case StepSkills:
		return "Current Skills"
	case StepTarget:
		return "Target Role & Goals"
	case StepPreferences:
		return "Learning Preferences"
	default:
		return ""
	}
}

type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
	ExperienceExpert       ExperienceLevel = "expert"
)

// Valid reports whether l is a known level or unset.
func (l ExperienceLevel) Valid() bool {
	switch l {
	case "", ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced, ExperienceExpert:
		return true
	}
	return false
}

type Timeline string

const (
	Timeline3Months Timeline = "3-months"
	Timeline6Months Timeline = "6-months"
	Timeline1Year   Timeline = "1-year"
	Timeline2Years  Timeline = "2-years"
)

func (t Timeline) Valid() bool {
	switch t {
	case "", Timeline3Months, Timeline6Months, Timeline1Year, Timeline2Years:
		return true
	}
	return false
}

type LearningPace string

const (
	PaceSelfPaced  LearningPace = "self-paced"
	PaceStructured LearningPace = "structured"
	PaceIntensive  LearningPace = "intensive"
)

func (p LearningPace) Valid() bool {
	switch p {
	case "", PaceSelfPaced, PaceStructured, PaceIntensive:
		return true
	}
	return false
}

type WeeklyHours string

const (
	Hours1To3   WeeklyHours = "1-3"
	Hours4To7   WeeklyHours = "4-7"
	Hours8To15  WeeklyHours = "8-15"
	Hours15Plus WeeklyHours = "15+"
)

func (h WeeklyHours) Valid() bool {
	switch h {
	case "", Hours1To3, Hours4To7, Hours8To15, Hours15Plus:
		return true
	}
	return false
}

const (
	MinProficiency     = 1
	MaxProficiency     = 10
	DefaultProficiency = 5
)

// Skill is a current skill with a self-assessed proficiency in [1,10].
type Skill struct {
	Name        string `json:"name"`
	Proficiency int    `json:"proficiency"`
}

// Profile is the data accumulated across the wizard steps.
//
// CurrentSkills is unique by case-sensitive name. SkillsToLearn is unique by
// exact match and ordered by priority: index 0 is the top target skill.
type Profile struct {
	FullName        string          `json:"full_name"`
	CurrentRole     string          `json:"current_role"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Industry        string          `json:"industry"`

	CurrentSkills []Skill `json:"current_skills"`

	TargetRole    string   `json:"target_role"`
	SkillsToLearn []string `json:"skills_to_learn"`
	Timeline      Timeline `json:"timeline"`

	LearningPace LearningPace `json:"learning_pace"`
	WeeklyHours  WeeklyHours  `json:"weekly_hours"`
	Goals        string       `json:"goals"`
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	if p.CurrentSkills != nil {
		cp.CurrentSkills = make([]Skill, len(p.CurrentSkills))
		copy(cp.CurrentSkills, p.CurrentSkills)
	}
	if p.SkillsToLearn != nil {
		cp.SkillsToLearn = make([]string, len(p.SkillsToLearn))
		copy(cp.SkillsToLearn, p.SkillsToLearn)
	}
	return cp
}

// StepComplete reports whether every field the step requires is filled in.
// Strings count as filled when non-empty; whitespace is not trimmed.
func (p Profile) StepComplete(s Step) bool {
	switch s {
	case StepPersonal:
		return p.FullName != "" && p.CurrentRole != "" && p.ExperienceLevel != "" && p.Industry != ""
	case StepSkills:
		return len(p.CurrentSkills) > 0
	case StepTarget:
		return p.TargetRole != "" && len(p.SkillsToLearn) > 0 && p.Timeline != ""
	case StepPreferences:
		return p.LearningPace != "" && p.WeeklyHours != "" && p.Goals != ""
	default:
		return false
	}
}

func (p Profile) skillIndex(name string) int {
	for i, s := range p.CurrentSkills {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func (p Profile) targetIndex(skill string) int {
	for i, s := range p.SkillsToLearn {
		if s == skill {
			return i
		}
	}
	return -1
}
