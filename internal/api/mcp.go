package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/upskill/internal/profile"
	"github.com/kalambet/upskill/internal/readiness"
	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/telemetry"
)

// MCPPlanner generates recovery plans for the MCP layer.
type MCPPlanner interface {
	Plan(ctx context.Context, weak []recovery.WeakSkill, targetRole string) recovery.Result
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Profiles      *profile.Manager
	Planner       MCPPlanner         // optional; if nil, recovery_plan answers with the missing-key fallback
	Metrics       *telemetry.Metrics // optional
	WeakThreshold int
}

// NewMCPServer creates an MCP server with the readiness tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"upskill",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("upskill: career readiness profiles, metrics and recovery plans."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("readiness_metrics",
			mcp.WithDescription("Compute readiness metrics for a stored profile."),
			mcp.WithString("profile_id", mcp.Description("Profile ID"), mcp.Required()),
		),
		mcpReadinessMetrics(deps),
	)

	s.AddTool(
		mcp.NewTool("recovery_plan",
			mcp.WithDescription("Generate a short study plan for weak skills. Pass profile_id, or target_role with weak_skills."),
			mcp.WithString("profile_id", mcp.Description("Derive weak skills and target role from this profile")),
			mcp.WithString("target_role", mcp.Description("Role the plan works towards")),
			mcp.WithString("weak_skills", mcp.Description(`JSON array of {"name", "score"} objects`)),
		),
		mcpRecoveryPlan(deps),
	)

	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List stored profiles with their overall progress."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("profile_summary",
			mcp.WithDescription("Return a one-paragraph summary of a stored profile."),
			mcp.WithString("profile_id", mcp.Description("Profile ID"), mcp.Required()),
		),
		mcpProfileSummary(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"profiles://list",
			"Profiles",
			mcp.WithResourceDescription("Most recent stored profiles as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	return s
}

func mcpReadinessMetrics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("profile_id")
		if err != nil {
			return mcpError("profile_id is required"), nil
		}

		s, err := deps.Profiles.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}

		b, err := json.Marshal(readiness.Compute(s.Profile))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal metrics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecoveryPlan(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		role := req.GetString("target_role", "")
		var weak []recovery.WeakSkill

		if id := req.GetString("profile_id", ""); id != "" {
			s, err := deps.Profiles.Get(id)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
			}
			weak = weakSkills(s, deps.WeakThreshold)
			if role == "" {
				role = s.Profile.TargetRole
			}
		} else if raw := req.GetString("weak_skills", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &weak); err != nil {
				return mcpError(fmt.Sprintf("invalid weak_skills JSON: %v", err)), nil
			}
		}
		if role == "" {
			return mcpError("target_role or profile_id is required"), nil
		}

		planner := deps.Planner
		if planner == nil {
			planner = recovery.NewPlanner(nil, 0)
		}
		res := planner.Plan(ctx, weak, role)
		deps.Metrics.PlanGenerated(string(res.Reason), res.Elapsed)

		return mcpText(res.Text), nil
	}
}

type profileListEntry struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	TargetRole      string `json:"target_role"`
	OverallProgress int    `json:"overall_progress"`
	UpdatedAt       string `json:"updated_at"`
}

func profileEntries(list []profile.Stored) []profileListEntry {
	entries := make([]profileListEntry, len(list))
	for i, s := range list {
		entries[i] = profileListEntry{
			ID:              s.ID,
			FullName:        s.Profile.FullName,
			TargetRole:      s.Profile.TargetRole,
			OverallProgress: readiness.Compute(s.Profile).OverallProgress,
			UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
		}
	}
	return entries
}

func mcpListProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		list, err := deps.Profiles.List(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list profiles: %v", err)), nil
		}
		if len(list) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(profileEntries(list))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profiles: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpProfileSummary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("profile_id")
		if err != nil {
			return mcpError("profile_id is required"), nil
		}

		s, err := deps.Profiles.Get(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get profile: %v", err)), nil
		}
		return mcpText(profile.Summary(s)), nil
	}
}

func mcpResourceProfiles(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Profiles.List(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}

		b, err := json.Marshal(profileEntries(list))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
