package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kalambet/upskill/internal/api"
	"github.com/kalambet/upskill/internal/config"
	"github.com/kalambet/upskill/internal/onboarding"
	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/storage"
)

// --- onboard ---

// answers is the YAML form of a completed questionnaire.
type answers struct {
	FullName        string        `yaml:"full_name"`
	CurrentRole     string        `yaml:"current_role"`
	ExperienceLevel string        `yaml:"experience_level"`
	Industry        string        `yaml:"industry"`
	CurrentSkills   []skillAnswer `yaml:"current_skills"`
	TargetRole      string        `yaml:"target_role"`
	SkillsToLearn   []string      `yaml:"skills_to_learn"`
	Timeline        string        `yaml:"timeline"`
	LearningPace    string        `yaml:"learning_pace"`
	WeeklyHours     string        `yaml:"weekly_hours"`
	Goals           string        `yaml:"goals"`
}

type skillAnswer struct {
	Name        string `yaml:"name"`
	Proficiency int    `yaml:"proficiency"`
}

func loadAnswers(path string) (answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return answers{}, fmt.Errorf("reading answers: %w", err)
	}
	var a answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return answers{}, fmt.Errorf("parsing answers: %w", err)
	}
	return a, nil
}

// stepBatches turns answers into one mutation batch per wizard step. Empty
// answers produce no mutation, so an edit session keeps the stored value.
func stepBatches(a answers) [][]onboarding.Envelope {
	var personal, skills, target, prefs []onboarding.Mutation

	if a.FullName != "" {
		personal = append(personal, onboarding.SetFullName{Value: a.FullName})
	}
	if a.CurrentRole != "" {
		personal = append(personal, onboarding.SetCurrentRole{Value: a.CurrentRole})
	}
	if a.ExperienceLevel != "" {
		personal = append(personal, onboarding.SetExperienceLevel{Value: onboarding.ExperienceLevel(a.ExperienceLevel)})
	}
	if a.Industry != "" {
		personal = append(personal, onboarding.SetIndustry{Value: a.Industry})
	}

	for _, s := range a.CurrentSkills {
		skills = append(skills, onboarding.AddSkill{Name: s.Name})
		if s.Proficiency != 0 {
			skills = append(skills, onboarding.SetProficiency{Name: s.Name, Value: s.Proficiency})
		}
	}

	if a.TargetRole != "" {
		target = append(target, onboarding.SetTargetRole{Value: a.TargetRole})
	}
	for _, s := range a.SkillsToLearn {
		target = append(target, onboarding.AddTargetSkill{Skill: s})
	}
	if a.Timeline != "" {
		target = append(target, onboarding.SetTimeline{Value: onboarding.Timeline(a.Timeline)})
	}

	if a.LearningPace != "" {
		prefs = append(prefs, onboarding.SetLearningPace{Value: onboarding.LearningPace(a.LearningPace)})
	}
	if a.WeeklyHours != "" {
		prefs = append(prefs, onboarding.SetWeeklyHours{Value: onboarding.WeeklyHours(a.WeeklyHours)})
	}
	if a.Goals != "" {
		prefs = append(prefs, onboarding.SetGoals{Value: a.Goals})
	}

	batches := make([][]onboarding.Envelope, 0, onboarding.TotalSteps)
	for _, ms := range [][]onboarding.Mutation{personal, skills, target, prefs} {
		batch := make([]onboarding.Envelope, len(ms))
		for i, m := range ms {
			batch[i] = onboarding.Encode(m)
		}
		batches = append(batches, batch)
	}
	return batches
}

// runWizard drives an onboarding session through every step and returns the
// completion response.
func runWizard(ctx context.Context, client *apiClient, view api.SessionView, batches [][]onboarding.Envelope) (api.AdvanceResponse, error) {
	var res api.AdvanceResponse
	for i, batch := range batches {
		step := onboarding.Step(i + 1)
		printStep("Step %d/%d: %s", step, onboarding.TotalSteps, step.Title())

		if len(batch) > 0 {
			body := map[string]any{"mutations": batch}
			if err := client.postJSON(ctx, "/onboarding/"+view.ID+"/mutations", body, &view); err != nil {
				return res, fmt.Errorf("step %d: %w", step, err)
			}
		}
		if err := client.postJSON(ctx, "/onboarding/"+view.ID+"/advance", nil, &res); err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		if res.Outcome == onboarding.Rejected.String() {
			return res, fmt.Errorf("step %d (%s) is incomplete", step, step.Title())
		}
	}
	return res, nil
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create or edit a profile from a YAML answers file",
	Long: `Create or edit a profile from a YAML answers file.

Examples:
  upskill onboard --file answers.yaml
  upskill onboard --file changes.yaml --profile 3f2c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		profileID, _ := cmd.Flags().GetString("profile")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		a, err := loadAnswers(file)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var view api.SessionView
		if profileID != "" {
			err = client.postJSON(ctx, "/profiles/"+profileID+"/edit", nil, &view)
		} else {
			err = client.postJSON(ctx, "/onboarding", map[string]string{"initial_name": a.FullName}, &view)
		}
		if err != nil {
			return err
		}

		res, err := runWizard(ctx, client, view, stepBatches(a))
		if err != nil {
			if _, delErr := client.delete(ctx, "/onboarding/"+view.ID); delErr != nil {
				printWarning("could not abandon session %s: %v", view.ID, delErr)
			}
			return err
		}

		printSuccess("Profile %s saved", res.ProfileID)
		if res.Metrics != nil {
			printMetrics(*res.Metrics)
		}
		return nil
	},
}

func init() {
	onboardCmd.Flags().String("file", "", "YAML answers file")
	onboardCmd.Flags().String("profile", "", "edit this existing profile instead of creating one")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect stored profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var items []api.ProfileListItem
		if err := client.getJSON(cmd.Context(), fmt.Sprintf("/profiles?limit=%d", limit), &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No profiles found.")
			return nil
		}

		tw := newTable(os.Stdout)
		fmt.Fprintln(tw, "ID\tNAME\tTARGET ROLE\tPROGRESS\tUPDATED")
		for _, p := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\n",
				colorize(colorCyan, shortID(p.ID)),
				p.FullName,
				p.TargetRole,
				p.OverallProgress,
				p.UpdatedAt.Format(time.DateTime),
			)
		}
		return tw.Flush()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var stored profile.Stored
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[0], &stored); err != nil {
			return err
		}

		if asJSON {
			return printJSON(stored)
		}
		fmt.Println(profile.Summary(stored))
		return nil
	},
}

var profileMetricsCmd = &cobra.Command{
	Use:   "metrics <id>",
	Short: "Show readiness metrics for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var m readiness.Metrics
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[0]+"/metrics", &m); err != nil {
			return err
		}
		printMetrics(m)
		return nil
	},
}

var profileDashboardCmd = &cobra.Command{
	Use:   "dashboard <id>",
	Short: "Show the readiness dashboard for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var d readiness.Dashboard
		if err := client.getJSON(cmd.Context(), "/profiles/"+args[0]+"/dashboard", &d); err != nil {
			return err
		}
		printDashboard(d)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/profiles/"+args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted profile %s", args[0])
		return nil
	},
}

func init() {
	profileListCmd.Flags().Int("limit", 20, "maximum number of profiles to list")
	profileShowCmd.Flags().Bool("json", false, "print the full profile as JSON")
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileMetricsCmd)
	profileCmd.AddCommand(profileDashboardCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMetrics(m readiness.Metrics) {
	fmt.Printf("  Overall progress   %s\n", progressBar(m.OverallProgress, 20))
	fmt.Printf("  Skill gap          %d%% (%d of %d target skills known)\n", m.SkillGapPercentage, m.SkillsAlreadyKnown, m.TargetSkillCount)
	fmt.Printf("  Avg proficiency    %d/10 across %d skills\n", m.AverageProficiency, m.TotalCurrentSkills)
}

func printDashboard(d readiness.Dashboard) {
	fmt.Printf("%s\n", colorize(colorBold, "Welcome back, "+d.Greeting))
	if d.TargetRole != "" {
		fmt.Printf("Target: %s (%s)\n\n", d.TargetRole, d.Timeline)
	}
	printMetrics(d.Metrics)

	if len(d.Skills) > 0 {
		fmt.Printf("\n%s\n", colorize(colorBold, "Skills"))
		tw := newTable(os.Stdout)
		for _, s := range d.Skills {
			fmt.Fprintf(tw, "  %s\t%d/10\t%s\n", s.Name, s.Proficiency, s.Label)
		}
		tw.Flush()
	}

	if len(d.Recommendations) > 0 {
		fmt.Printf("\n%s\n", colorize(colorBold, "Recommended next"))
		for _, r := range d.Recommendations {
			fmt.Printf("  [%s] %s, %s, %s\n", r.Priority, r.Course, r.Duration, r.Level)
		}
	}

	if len(d.WeakSkills) > 0 {
		names := make([]string, len(d.WeakSkills))
		for i, s := range d.WeakSkills {
			names[i] = fmt.Sprintf("%s (%d)", s.Name, s.Score)
		}
		fmt.Printf("\n%s %s\n", colorize(colorYellow, "Needs work:"), strings.Join(names, ", "))
	}
}

// --- plan ---

// parseSkillFlags parses repeated --skill name=score values.
func parseSkillFlags(values []string) ([]recovery.WeakSkill, error) {
	skills := make([]recovery.WeakSkill, 0, len(values))
	for _, v := range values {
		name, raw, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --skill %q: want name=score", v)
		}
		score, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid score in --skill %q: %w", v, err)
		}
		skills = append(skills, recovery.WeakSkill{Name: name, Score: score})
	}
	return skills, nil
}

// waitForPlan polls a queued plan until it completes or ctx expires.
func waitForPlan(ctx context.Context, client *apiClient, id string, interval time.Duration) (api.PlanView, error) {
	for {
		var plan api.PlanView
		if err := client.getJSON(ctx, "/recovery-plans/"+id, &plan); err != nil {
			return plan, err
		}
		if plan.Status == storage.PlanCompleted {
			return plan, nil
		}

		select {
		case <-ctx.Done():
			return plan, fmt.Errorf("plan %s still %s: %w", id, plan.Status, ctx.Err())
		case <-time.After(interval):
		}
	}
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a recovery plan for weak skills",
	Long: `Generate a recovery plan for weak skills.

Examples:
  upskill plan --profile 3f2c...
  upskill plan --role "Senior Frontend Engineer" --skill "Data Structures=40" --skill CSS=50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profileID, _ := cmd.Flags().GetString("profile")
		role, _ := cmd.Flags().GetString("role")
		skillFlags, _ := cmd.Flags().GetStringArray("skill")
		wait, _ := cmd.Flags().GetDuration("wait")

		if profileID == "" && role == "" {
			return fmt.Errorf("one of --profile or --role is required")
		}
		weak, err := parseSkillFlags(skillFlags)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := api.PlanRequest{ProfileID: profileID, TargetRole: role, WeakSkills: weak}
		var queued map[string]string
		if err := client.postJSON(cmd.Context(), "/recovery-plans", req, &queued); err != nil {
			return err
		}
		printStep("Queued plan %s", queued["id"])

		ctx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()
		plan, err := waitForPlan(ctx, client, queued["id"], time.Second)
		if err != nil {
			return err
		}

		if plan.Fallback {
			printWarning("plan unavailable (%s)", plan.Reason)
		}
		fmt.Println(plan.Text)
		return nil
	},
}

func init() {
	planCmd.Flags().String("profile", "", "derive weak skills and target role from this profile")
	planCmd.Flags().String("role", "", "target role")
	planCmd.Flags().StringArray("skill", nil, "weak skill as name=score (repeatable)")
	planCmd.Flags().Duration("wait", 90*time.Second, "how long to wait for the plan")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		tw := newTable(os.Stdout)
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(tw, "  %s\t= %s\t(%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return tw.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", ") + ".\n" +
		"Secrets (*_api_key) are written to " + config.SecretHint() + ".",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if strings.HasSuffix(key, "_api_key") {
			printSuccess("Stored %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
