package recovery

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a career coach. A student targeting the role of %q has the following weak skills: %s.

Create a short, actionable 3-step recovery plan.
For each step, suggest a specific type of resource (e.g., "Practice LeetCode medium problems", "Watch System Design Prime video").
Keep it concise and encouraging.
Format as a simple HTML list (<ul><li>...</li></ul>) string.`

// BuildPrompt renders the plan prompt. Only skill names reach the model.
func BuildPrompt(weak []WeakSkill, targetRole string) string {
	names := make([]string, len(weak))
	for i, s := range weak {
		names[i] = s.Name
	}
	return fmt.Sprintf(promptTemplate, targetRole, strings.Join(names, ", "))
}
