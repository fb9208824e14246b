package readiness

import (
	"strings"

	"github.com/kalambet/upskill/internal/onboarding"
)

// WeakScoreThreshold is the score below which a skill counts as weak.
const WeakScoreThreshold = 60

// maxRecommendations caps how many target skills get a course suggestion.
const maxRecommendations = 3

// ProficiencyLabel names a 1..10 proficiency.
func ProficiencyLabel(proficiency int) string {
	switch {
	case proficiency >= 8:
		return "Expert"
	case proficiency >= 6:
		return "Advanced"
	case proficiency >= 4:
		return "Intermediate"
	default:
		return "Beginner"
	}
}

// ProficiencyTier is the display bucket of a proficiency. It uses the same
// cut-offs as ProficiencyLabel.
func ProficiencyTier(proficiency int) string {
	switch {
	case proficiency >= 8:
		return "strong"
	case proficiency >= 6:
		return "solid"
	case proficiency >= 4:
		return "developing"
	default:
		return "novice"
	}
}

// Recommendation is a suggested course for one target skill.
type Recommendation struct {
	Skill    string `json:"skill"`
	Course   string `json:"course"`
	Duration string `json:"duration"`
	Level    string `json:"level"`
	Priority string `json:"priority"`
}

// Recommendations suggests a course for each of the first three target
// skills. The first target skill is the only high-priority one.
func Recommendations(p onboarding.Profile) []Recommendation {
	n := min(len(p.SkillsToLearn), maxRecommendations)
	recs := make([]Recommendation, 0, n)
	for i, skill := range p.SkillsToLearn[:n] {
		priority := "Medium"
		if i == 0 {
			priority = "High"
		}
		recs = append(recs, Recommendation{
			Skill:    skill,
			Course:   "Master " + skill,
			Duration: "6-8 weeks",
			Level:    "Intermediate",
			Priority: priority,
		})
	}
	return recs
}

// ScoredSkill is a current skill on a 0..100 scale.
type ScoredSkill struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// WeakSkills returns the current skills scoring below threshold, where a
// skill's score is its proficiency times ten. A threshold <= 0 uses
// WeakScoreThreshold.
func WeakSkills(p onboarding.Profile, threshold int) []ScoredSkill {
	if threshold <= 0 {
		threshold = WeakScoreThreshold
	}
	var weak []ScoredSkill
	for _, s := range p.CurrentSkills {
		if score := s.Proficiency * 10; score < threshold {
			weak = append(weak, ScoredSkill{Name: s.Name, Score: score})
		}
	}
	return weak
}

// FirstName returns the part of fullName before the first space.
func FirstName(fullName string) string {
	first, _, _ := strings.Cut(fullName, " ")
	return first
}

// SkillView is a current skill with its display label and tier.
type SkillView struct {
	onboarding.Skill
	Label string `json:"label"`
	Tier  string `json:"tier"`
}

// Dashboard bundles everything the dashboard view renders for one profile.
type Dashboard struct {
	Greeting        string           `json:"greeting"`
	TargetRole      string           `json:"target_role"`
	Timeline        string           `json:"timeline"`
	Metrics         Metrics          `json:"metrics"`
	Skills          []SkillView      `json:"skills"`
	Recommendations []Recommendation `json:"recommendations"`
	WeakSkills      []ScoredSkill    `json:"weak_skills"`
}

// BuildDashboard computes the dashboard for p.
func BuildDashboard(p onboarding.Profile) Dashboard {
	skills := make([]SkillView, len(p.CurrentSkills))
	for i, s := range p.CurrentSkills {
		skills[i] = SkillView{Skill: s, Label: ProficiencyLabel(s.Proficiency), Tier: ProficiencyTier(s.Proficiency)}
	}
	return Dashboard{
		Greeting:        FirstName(p.FullName),
		TargetRole:      p.TargetRole,
		Timeline:        string(p.Timeline),
		Metrics:         Compute(p),
		Skills:          skills,
		Recommendations: Recommendations(p),
		WeakSkills:      WeakSkills(p, WeakScoreThreshold),
	}
}
