// Package recovery turns a list of weak skills into a short study plan using
// a remote text generator. Every failure mode degrades to a fixed fallback
// string; callers never see an error.
package recovery

import (
	"context"
	"log/slog"
	"time"
)

// Fallback texts returned instead of a generated plan.
const (
	FallbackMissingKey  = "Unable to generate plan. API Key missing."
	FallbackEmpty       = "No plan generated."
	FallbackRemoteError = "Error generating plan. Please try again later."
)

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 30 * time.Second

// WeakSkill is a skill the user scored low on, 0..100.
type WeakSkill struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Generator produces text for a prompt. Implementations make one request
// and honour ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Reason says why a Result is a fallback. ReasonNone means generated text.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonEmpty              Reason = "empty"
	ReasonRemoteError        Reason = "remote_error"
)

// Result is either generated plan text or a fallback message.
type Result struct {
	Text     string        `json:"text"`
	Fallback bool          `json:"fallback"`
	Reason   Reason        `json:"reason,omitempty"`
	Elapsed  time.Duration `json:"-"`
}

// Planner generates recovery plans. A nil Planner, or one with a nil
// Generator, always returns FallbackMissingKey.
type Planner struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewPlanner returns a Planner that bounds each request by timeout. A
// non-positive timeout uses DefaultTimeout.
func NewPlanner(gen Generator, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Planner{gen: gen, timeout: timeout, logger: slog.Default()}
}

// Configured reports whether the planner has a generator.
func (p *Planner) Configured() bool { return p != nil && p.gen != nil }

// Plan asks the generator for a plan for weak in the context of targetRole.
// It makes exactly one attempt.
func (p *Planner) Plan(ctx context.Context, weak []WeakSkill, targetRole string) Result {
	start := time.Now()
	res := p.plan(ctx, weak, targetRole)
	res.Elapsed = time.Since(start)
	return res
}

func (p *Planner) plan(ctx context.Context, weak []WeakSkill, targetRole string) Result {
	if !p.Configured() {
		slog.Default().Warn("recovery plan requested without credentials")
		return fallback(FallbackMissingKey, ReasonMissingCredentials)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.gen.Generate(ctx, BuildPrompt(weak, targetRole))
	if err != nil {
		p.logger.Error("recovery plan generation failed", "target_role", targetRole, "error", err)
		return fallback(FallbackRemoteError, ReasonRemoteError)
	}
	if text == "" {
		return fallback(FallbackEmpty, ReasonEmpty)
	}
	return Result{Text: text}
}

func fallback(text string, reason Reason) Result {
	return Result{Text: text, Fallback: true, Reason: reason}
}
