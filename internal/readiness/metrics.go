// Package readiness derives dashboard metrics from a completed onboarding
// Profile. Every function here is pure.
package readiness

import (
	"math"
	"strings"

	"github.com/kalambet/upskill/internal/onboarding"
)

// Metrics summarises a Profile's skill coverage and progress.
type Metrics struct {
	TotalCurrentSkills int `json:"total_current_skills"`
	AverageProficiency int `json:"average_proficiency"`
	TargetSkillCount   int `json:"target_skill_count"`
	SkillsAlreadyKnown int `json:"skills_already_known"`
	SkillGapPercentage int `json:"skill_gap_percentage"`
	OverallProgress    int `json:"overall_progress"`
}

const (
	coverageWeight    = 0.7
	proficiencyWeight = 0.3
)

// Compute derives Metrics from p.
//
// OverallProgress blends coverage (70%) with proficiency (30%) and is not
// clamped; Profile invariants keep it within [0,100].
func Compute(p onboarding.Profile) Metrics {
	var m Metrics

	m.TotalCurrentSkills = len(p.CurrentSkills)
	if m.TotalCurrentSkills > 0 {
		sum := 0
		for _, s := range p.CurrentSkills {
			sum += s.Proficiency
		}
		m.AverageProficiency = round(float64(sum) / float64(m.TotalCurrentSkills))
	}

	m.TargetSkillCount = len(p.SkillsToLearn)
	for _, target := range p.SkillsToLearn {
		if knows(p.CurrentSkills, target) {
			m.SkillsAlreadyKnown++
		}
	}

	if m.TargetSkillCount > 0 {
		missing := m.TargetSkillCount - m.SkillsAlreadyKnown
		m.SkillGapPercentage = round(float64(missing) / float64(m.TargetSkillCount) * 100)
		m.OverallProgress = round(float64(100-m.SkillGapPercentage)*coverageWeight +
			float64(m.AverageProficiency*10)*proficiencyWeight)
	} else {
		m.OverallProgress = m.AverageProficiency * 10
	}

	return m
}

func knows(skills []onboarding.Skill, name string) bool {
	name = strings.ToLower(name)
	for _, s := range skills {
		if strings.ToLower(s.Name) == name {
			return true
		}
	}
	return false
}

// round rounds half up to the nearest integer.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}
