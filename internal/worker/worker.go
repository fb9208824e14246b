// Package worker generates recovery plans in the background from the SQLite
// job queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/upskill/internal/recovery"
	"github.com/kalambet/upskill/internal/storage"
	"github.com/kalambet/upskill/internal/telemetry"
)

// JobType is the job queue type for plan generation.
const JobType = "recovery_plan"

// JobStore abstracts the job queue and plan operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	SavePlan(p storage.RecoveryPlan) error
	GetPlan(id string) (storage.RecoveryPlan, error)
	CompletePlan(id, text string, fallback bool, reason string) error
}

// Planner produces a plan or a fallback; it never fails.
type Planner interface {
	Plan(ctx context.Context, weak []recovery.WeakSkill, targetRole string) recovery.Result
}

type planPayload struct {
	PlanID string `json:"plan_id"`
}

// Enqueue records a pending plan and queues a job to generate it. It returns
// the plan ID. Jobs get a single attempt; a failed generation is stored as a
// fallback plan rather than retried.
func Enqueue(store JobStore, profileID, targetRole string, weak []recovery.WeakSkill) (string, error) {
	if weak == nil {
		weak = []recovery.WeakSkill{}
	}
	weakJSON, err := json.Marshal(weak)
	if err != nil {
		return "", fmt.Errorf("marshalling weak skills: %w", err)
	}

	planID := uuid.NewString()
	if err := store.SavePlan(storage.RecoveryPlan{
		ID:             planID,
		ProfileID:      profileID,
		TargetRole:     targetRole,
		WeakSkillsJSON: string(weakJSON),
	}); err != nil {
		return "", fmt.Errorf("saving plan: %w", err)
	}

	payload, _ := json.Marshal(planPayload{PlanID: planID})
	if err := store.EnqueueJob(storage.Job{
		ID:          uuid.NewString(),
		Type:        JobType,
		PayloadJSON: string(payload),
		MaxAttempts: 1,
	}); err != nil {
		return "", fmt.Errorf("enqueuing plan job: %w", err)
	}
	return planID, nil
}

// Worker processes recovery_plan jobs.
type Worker struct {
	store   JobStore
	planner Planner
	metrics *telemetry.Metrics
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
// metrics may be nil.
func NewWorker(store JobStore, planner Planner, metrics *telemetry.Metrics, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		planner: planner,
		metrics: metrics,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled. It always returns nil so it can
// sit in an errgroup next to the HTTP server.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single recovery_plan job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		if job.Attempts+1 >= job.MaxAttempts {
			w.abandonPlan(job)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload planPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	plan, err := w.store.GetPlan(payload.PlanID)
	if err != nil {
		return fmt.Errorf("loading plan %s: %w", payload.PlanID, err)
	}

	var weak []recovery.WeakSkill
	if err := json.Unmarshal([]byte(plan.WeakSkillsJSON), &weak); err != nil {
		return fmt.Errorf("parsing weak skills for plan %s: %w", plan.ID, err)
	}

	res := w.planner.Plan(ctx, weak, plan.TargetRole)
	w.metrics.PlanGenerated(string(res.Reason), res.Elapsed)
	w.logger.Info("recovery plan generated",
		"plan_id", plan.ID, "fallback", res.Fallback, "reason", res.Reason, "elapsed", res.Elapsed)

	if err := w.store.CompletePlan(plan.ID, res.Text, res.Fallback, string(res.Reason)); err != nil {
		return fmt.Errorf("storing plan %s: %w", plan.ID, err)
	}
	return nil
}

// abandonPlan settles the plan of a job that will not run again with the
// remote-error fallback, so pollers see a completed plan instead of waiting
// on a pending one forever.
func (w *Worker) abandonPlan(job *storage.Job) {
	var payload planPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil || payload.PlanID == "" {
		return
	}
	err := w.store.CompletePlan(payload.PlanID, recovery.FallbackRemoteError, true, string(recovery.ReasonRemoteError))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.logger.Error("failed to settle abandoned plan", "plan_id", payload.PlanID, "error", err)
		return
	}
	if err == nil {
		w.metrics.PlanGenerated(string(recovery.ReasonRemoteError), 0)
	}
}
