package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kalambet/upskill/internal/onboarding"
)

func TestProficiencyLabel(t *testing.T) {
	cases := map[int]string{
		1: "Beginner", 3: "Beginner",
		4: "Intermediate", 5: "Intermediate",
		6: "Advanced", 7: "Advanced",
		8: "Expert", 10: "Expert",
	}
	for p, want := range cases {
		assert.Equal(t, want, ProficiencyLabel(p), "proficiency %d", p)
	}
	assert.Equal(t, "strong", ProficiencyTier(9))
	assert.Equal(t, "novice", ProficiencyTier(2))
}

func TestRecommendations(t *testing.T) {
	p := onboarding.Profile{SkillsToLearn: []string{"Go", "Kubernetes", "SQL", "Terraform"}}
	recs := Recommendations(p)

	assert.Len(t, recs, 3)
	assert.Equal(t, Recommendation{
		Skill: "Go", Course: "Master Go", Duration: "6-8 weeks", Level: "Intermediate", Priority: "High",
	}, recs[0])
	assert.Equal(t, "Medium", recs[1].Priority)
	assert.Equal(t, "SQL", recs[2].Skill)

	assert.Empty(t, Recommendations(onboarding.Profile{}))
}

func TestWeakSkills(t *testing.T) {
	p := onboarding.Profile{CurrentSkills: skills("React", 9, "Data Structures", 4, "System Design", 6, "CSS", 5)}

	assert.Equal(t, []ScoredSkill{
		{Name: "Data Structures", Score: 40},
		{Name: "CSS", Score: 50},
	}, WeakSkills(p, 0))

	assert.Equal(t, []ScoredSkill{{Name: "Data Structures", Score: 40}}, WeakSkills(p, 45))
	assert.Empty(t, WeakSkills(onboarding.Profile{}, 60))
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Ada", FirstName("Ada Lovelace"))
	assert.Equal(t, "Cher", FirstName("Cher"))
	assert.Equal(t, "", FirstName(""))
}

func TestBuildDashboard(t *testing.T) {
	p := onboarding.Profile{
		FullName:      "Alex Johnson",
		TargetRole:    "Senior Frontend Engineer",
		Timeline:      onboarding.Timeline6Months,
		CurrentSkills: skills("React", 8, "Data Structures", 4),
		SkillsToLearn: []string{"System Design"},
	}
	d := BuildDashboard(p)

	assert.Equal(t, "Alex", d.Greeting)
	assert.Equal(t, "6-months", d.Timeline)
	assert.Equal(t, Compute(p), d.Metrics)
	assert.Equal(t, "Expert", d.Skills[0].Label)
	assert.Equal(t, "developing", d.Skills[1].Tier)
	assert.Len(t, d.Recommendations, 1)
	assert.Equal(t, []ScoredSkill{{Name: "Data Structures", Score: 40}}, d.WeakSkills)
}
