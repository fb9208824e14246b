package onboarding

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON form of a Mutation:
//
//	{"op": "set_full_name", "value": "Ada Lovelace"}
//	{"op": "add_skill", "name": "Go"}
//	{"op": "set_proficiency", "name": "Go", "proficiency": 8}
//	{"op": "add_target_skill", "name": "Kubernetes"}
type Envelope struct {
	Op          string `json:"op"`
	Value       string `json:"value,omitempty"`
	Name        string `json:"name,omitempty"`
	Proficiency *int   `json:"proficiency,omitempty"`
}

// Encode converts m to its wire form.
func Encode(m Mutation) Envelope {
	e := Envelope{Op: m.Op()}
	switch v := m.(type) {
	case SetFullName:
		e.Value = v.Value
	case SetCurrentRole:
		e.Value = v.Value
	case SetExperienceLevel:
		e.Value = string(v.Value)
	case SetIndustry:
		e.Value = v.Value
	case AddSkill:
		e.Name = v.Name
	case RemoveSkill:
		e.Name = v.Name
	case SetProficiency:
		e.Name = v.Name
		p := v.Value
		e.Proficiency = &p
	case SetTargetRole:
		e.Value = v.Value
	case AddTargetSkill:
		e.Name = v.Skill
	case RemoveTargetSkill:
		e.Name = v.Skill
	case SetTimeline:
		e.Value = string(v.Value)
	case SetLearningPace:
		e.Value = string(v.Value)
	case SetWeeklyHours:
		e.Value = string(v.Value)
	case SetGoals:
		e.Value = v.Value
	}
	return e
}

// Mutation converts the envelope back into a typed Mutation. It does not
// range-check values; Wizard.Apply does that.
func (e Envelope) Mutation() (Mutation, error) {
	switch e.Op {
	case "set_full_name":
		return SetFullName{Value: e.Value}, nil
	case "set_current_role":
		return SetCurrentRole{Value: e.Value}, nil
	case "set_experience_level":
		return SetExperienceLevel{Value: ExperienceLevel(e.Value)}, nil
	case "set_industry":
		return SetIndustry{Value: e.Value}, nil
	case "add_skill":
		return AddSkill{Name: e.Name}, nil
	case "remove_skill":
		return RemoveSkill{Name: e.Name}, nil
	case "set_proficiency":
		if e.Proficiency == nil {
			return nil, fmt.Errorf("%w: set_proficiency requires proficiency", ErrInvalidMutation)
		}
		return SetProficiency{Name: e.Name, Value: *e.Proficiency}, nil
	case "set_target_role":
		return SetTargetRole{Value: e.Value}, nil
	case "add_target_skill":
		return AddTargetSkill{Skill: e.Name}, nil
	case "remove_target_skill":
		return RemoveTargetSkill{Skill: e.Name}, nil
	case "set_timeline":
		return SetTimeline{Value: Timeline(e.Value)}, nil
	case "set_learning_pace":
		return SetLearningPace{Value: LearningPace(e.Value)}, nil
	case "set_weekly_hours":
		return SetWeeklyHours{Value: WeeklyHours(e.Value)}, nil
	case "set_goals":
		return SetGoals{Value: e.Value}, nil
	case "":
		return nil, fmt.Errorf("%w: op is required", ErrInvalidMutation)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidMutation, e.Op)
	}
}

// DecodeMutation parses one JSON envelope.
func DecodeMutation(data []byte) (Mutation, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMutation, err)
	}
	return e.Mutation()
}
