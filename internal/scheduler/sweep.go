// Package scheduler finds due prompts and fans them out into prompt runs and
// jobs. A sweep is safe to repeat: the run is unique per prompt and batch
// window, so a re-run lands on the same run row and the job tuple constraint
// skips everything a previous sweep already created.
package scheduler

import (
	"context"
	"time"

	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
	"github.com/jonesrussell/mindshare/internal/telemetry"
)

// PromptStore is the prompt surface the sweep needs.
type PromptStore interface {
	ListDue(ctx context.Context, cutoff time.Time) ([]domain.Prompt, error)
	TouchLastRun(ctx context.Context, promptID string) error
}

// ModelStore resolves the prompt's model references.
type ModelStore interface {
	ListByIDs(ctx context.Context, ids []string) ([]domain.Model, error)
}

// RunStore creates and finalizes prompt runs.
type RunStore interface {
	Create(ctx context.Context, promptID, batchKey string) (string, error)
	MarkEnqueued(ctx context.Context, runID string, totalJobs int) error
	MarkExecutedFinished(ctx context.Context) (int64, error)
}

// JobStore creates jobs and recovers stuck or forgotten ones.
type JobStore interface {
	CreateIgnoreDuplicate(ctx context.Context, job *domain.PromptJob) (string, bool, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ListQueuedIDs(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// Dispatcher pushes job triggers onto the executor queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) (string, error)
}

// SweepResult summarizes one sweep for the trigger endpoint response.
type SweepResult struct {
	BatchKey    string `json:"batch_key"`
	PromptCount int    `json:"prompt_count"`
	JobsCreated int    `json:"jobs_created"`
}

// Scheduler owns the sweep and reconcile passes.
type Scheduler struct {
	prompts    PromptStore
	models     ModelStore
	runs       RunStore
	jobs       JobStore
	dispatcher Dispatcher
	telemetry  *telemetry.Provider
	logger     logger.Logger

	dueAfter     time.Duration
	leaseTimeout time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a scheduler. The telemetry provider may be nil.
func New(
	prompts PromptStore,
	models ModelStore,
	runs RunStore,
	jobs JobStore,
	dispatcher Dispatcher,
	tel *telemetry.Provider,
	log logger.Logger,
	dueAfter, leaseTimeout time.Duration,
) *Scheduler {
	return &Scheduler{
		prompts:      prompts,
		models:       models,
		runs:         runs,
		jobs:         jobs,
		dispatcher:   dispatcher,
		telemetry:    tel,
		logger:       log,
		dueAfter:     dueAfter,
		leaseTimeout: leaseTimeout,
		now:          time.Now,
	}
}

// Sweep finds all due prompts and fans each out into one run with its jobs,
// then dispatches triggers for the created jobs. One prompt failing does not
// stop the rest.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	started := s.now()
	batchKey := domain.BatchKeyFor(started)
	cutoff := started.Add(-s.dueAfter)

	due, err := s.prompts.ListDue(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{BatchKey: batchKey}
	for i := range due {
		created := s.sweepPrompt(ctx, &due[i], batchKey)
		if created < 0 {
			continue
		}
		result.PromptCount++
		result.JobsCreated += created
	}

	if s.telemetry != nil {
		s.telemetry.RecordSweep(time.Since(started), result.JobsCreated)
	}
	s.logger.Info("sweep complete",
		logger.String("batch_key", batchKey),
		logger.Int("prompts", result.PromptCount),
		logger.Int("jobs_created", result.JobsCreated))
	return result, nil
}

// sweepPrompt fans one prompt out. Returns the number of jobs created, or -1
// when the prompt could not be swept at all.
func (s *Scheduler) sweepPrompt(ctx context.Context, prompt *domain.Prompt, batchKey string) int {
	if err := prompt.Validate(); err != nil {
		s.logger.Warn("skipping invalid prompt",
			logger.String("prompt_id", prompt.ID), logger.Error(err))
		return -1
	}

	ids := make([]string, 0, len(prompt.Models))
	for _, ref := range prompt.Models {
		ids = append(ids, ref.ID)
	}
	models, err := s.models.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("model lookup failed",
			logger.String("prompt_id", prompt.ID), logger.Error(err))
		return -1
	}
	if len(models) == 0 {
		s.logger.Warn("prompt references no known models",
			logger.String("prompt_id", prompt.ID))
		return -1
	}
	if len(models) < len(ids) {
		s.logger.Warn("prompt references unknown models, skipping those",
			logger.String("prompt_id", prompt.ID),
			logger.Int("known", len(models)),
			logger.Int("referenced", len(ids)))
	}

	runID, err := s.runs.Create(ctx, prompt.ID, batchKey)
	if err != nil {
		s.logger.Error("run creation failed",
			logger.String("prompt_id", prompt.ID), logger.Error(err))
		return -1
	}

	effectiveRuns := prompt.EffectiveRuns()
	createdIDs := make([]string, 0, len(models)*effectiveRuns)
	for _, model := range models {
		for runIndex := 0; runIndex < effectiveRuns; runIndex++ {
			jobID, created, createErr := s.jobs.CreateIgnoreDuplicate(ctx, &domain.PromptJob{
				PromptRunID:    runID,
				ModelID:        model.ID,
				RunIndex:       runIndex,
				UsingWebSearch: prompt.WebSearchVariant(runIndex),
			})
			if createErr != nil {
				s.logger.Error("job creation failed",
					logger.String("run_id", runID),
					logger.String("model_id", model.ID),
					logger.Int("run_index", runIndex),
					logger.Error(createErr))
				continue
			}
			if created {
				createdIDs = append(createdIDs, jobID)
			}
		}
	}

	if err := s.runs.MarkEnqueued(ctx, runID, len(models)*effectiveRuns); err != nil {
		s.logger.Error("mark enqueued failed",
			logger.String("run_id", runID), logger.Error(err))
	}

	// Stamp before dispatch so the prompt leaves the due set even if the
	// triggers take a while to drain.
	if err := s.prompts.TouchLastRun(ctx, prompt.ID); err != nil {
		s.logger.Error("touch last run failed",
			logger.String("prompt_id", prompt.ID), logger.Error(err))
	}

	for _, jobID := range createdIDs {
		if _, err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
			// The job row stays queued; the reconciler re-dispatches it.
			s.logger.Warn("trigger dispatch failed",
				logger.String("job_id", jobID), logger.Error(err))
		}
	}

	return len(createdIDs)
}
