// Package executor runs one claimed prompt job end to end: ask the model,
// normalize the answer into a canonical entity, record the response, and roll
// the outcome up into the run counters.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
	"github.com/jonesrussell/mindshare/internal/provider"
	"github.com/jonesrussell/mindshare/internal/resolver"
	"github.com/jonesrussell/mindshare/internal/telemetry"
)

// JobStore is the job queue surface the executor needs. The terminal marks
// are compare-and-set on processing status and report whether this executor
// won the transition.
type JobStore interface {
	Claim(ctx context.Context, jobID string) (*domain.PromptJob, error)
	GetByID(ctx context.Context, jobID string) (*domain.PromptJob, error)
	MarkSucceeded(ctx context.Context, jobID string) (bool, error)
	MarkFailed(ctx context.Context, jobID, errorMsg string) (bool, error)
}

// RunStore aggregates job outcomes into run counters.
type RunStore interface {
	GetByID(ctx context.Context, runID string) (*domain.PromptRun, error)
	IncrementSuccessful(ctx context.Context, runID string) error
	IncrementFailed(ctx context.Context, runID string) error
}

// PromptStore provides prompt lookup and last-run stamping.
type PromptStore interface {
	GetByID(ctx context.Context, promptID string) (*domain.Prompt, error)
	TouchLastRun(ctx context.Context, promptID string) error
}

// ModelStore provides model lookup.
type ModelStore interface {
	GetByID(ctx context.Context, modelID string) (*domain.Model, error)
}

// EntityStore upserts canonical entities.
type EntityStore interface {
	UpsertMention(ctx context.Context, name, category string) (string, error)
}

// ResponseStore records raw answers.
type ResponseStore interface {
	Insert(ctx context.Context, resp *domain.Response) (string, error)
}

// AdapterSource resolves a provider name to a generation adapter.
type AdapterSource interface {
	For(providerName string) provider.Adapter
}

// Outcome is the result of processing one job, shaped for the process
// endpoint response.
type Outcome struct {
	JobID            string
	Status           domain.JobStatus
	EntityID         string
	ErrorMessage     string
	AlreadyProcessed bool
}

// Executor processes claimed jobs.
type Executor struct {
	jobs      JobStore
	runs      RunStore
	prompts   PromptStore
	models    ModelStore
	entities  EntityStore
	responses ResponseStore
	adapters  AdapterSource
	telemetry *telemetry.Provider
	logger    logger.Logger
}

// New creates an executor. The telemetry provider may be nil.
func New(
	jobs JobStore,
	runs RunStore,
	prompts PromptStore,
	models ModelStore,
	entities EntityStore,
	responses ResponseStore,
	adapters AdapterSource,
	tel *telemetry.Provider,
	log logger.Logger,
) *Executor {
	return &Executor{
		jobs:      jobs,
		runs:      runs,
		prompts:   prompts,
		models:    models,
		entities:  entities,
		responses: responses,
		adapters:  adapters,
		telemetry: tel,
		logger:    log,
	}
}

// Process claims and executes one job by id.
//
// The claim is the concurrency gate: when another executor got there first,
// Process returns the job's stored state with AlreadyProcessed set and runs
// no side effects. A missing job surfaces domain.ErrNotFound. Any failure
// after a successful claim marks the job failed and bumps only the run's
// failed counter, provided this executor still holds the job: when the lease
// expired and another executor settled the job first, the late result is
// dropped without side effects. The returned error is nil in those cases
// because the outcome was recorded (or deliberately discarded).
func (e *Executor) Process(ctx context.Context, jobID string) (*Outcome, error) {
	job, err := e.jobs.Claim(ctx, jobID)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		e.logger.Debug("job already processed",
			logger.String("job_id", jobID),
			logger.String("status", string(job.Status)))
		return &Outcome{
			JobID:            job.ID,
			Status:           job.Status,
			ErrorMessage:     derefString(job.ErrorMessage),
			AlreadyProcessed: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	started := time.Now()
	outcome, providerName := e.execute(ctx, job)
	duration := time.Since(started)

	if e.telemetry != nil && !outcome.AlreadyProcessed {
		if outcome.Status == domain.JobStatusSucceeded {
			e.telemetry.RecordJobSuccess(providerName, duration)
		} else {
			e.telemetry.RecordJobFailure(providerName, "execution", duration)
		}
	}
	return outcome, nil
}

// execute runs the post-claim pipeline. The job is already in processing
// state; every exit path either lands it in a terminal state or leaves it
// processing for the lease reclaim to retry.
func (e *Executor) execute(ctx context.Context, job *domain.PromptJob) (*Outcome, string) {
	run, err := e.runs.GetByID(ctx, job.PromptRunID)
	if err != nil {
		return e.fail(ctx, job, "load run: "+err.Error()), ""
	}

	prompt, err := e.prompts.GetByID(ctx, run.PromptID)
	if err != nil {
		return e.fail(ctx, job, "load prompt: "+err.Error()), ""
	}

	model, err := e.models.GetByID(ctx, job.ModelID)
	if err != nil {
		return e.fail(ctx, job, "load model: "+err.Error()), ""
	}

	adapter := e.adapters.For(model.Provider)
	if adapter == nil {
		return e.fail(ctx, job, "no adapter configured for provider "+model.Provider), model.Provider
	}

	result, err := adapter.Generate(ctx, provider.Params{
		ModelName:            model.Name,
		Question:             prompt.Question,
		UseWebSearch:         job.UsingWebSearch,
		SupportsObjectOutput: model.SupportsObjectOutput,
		SupportsTemperature:  model.SupportsTemperature,
	})
	if err != nil {
		return e.fail(ctx, job, err.Error()), model.Provider
	}

	name := resolver.Normalize(result.Answer)
	if name == "" {
		return e.fail(ctx, job, "empty entity after normalization"), model.Provider
	}

	// Settle the job before recording the answer. Winning this
	// compare-and-set means the mention, response and counter below run
	// exactly once even when the lease expired mid-generation and the job
	// was handed to another executor.
	marked, err := e.jobs.MarkSucceeded(ctx, job.ID)
	if err != nil {
		// The job stays processing and the lease reclaim retries it.
		e.logger.Error("mark succeeded failed",
			logger.String("job_id", job.ID), logger.Error(err))
		return &Outcome{
			JobID:        job.ID,
			Status:       domain.JobStatusProcessing,
			ErrorMessage: err.Error(),
		}, model.Provider
	}
	if !marked {
		return e.dropLateResult(ctx, job), model.Provider
	}

	entityID, err := e.entities.UpsertMention(ctx, name, prompt.Category)
	if err != nil {
		e.logger.Error("upsert entity failed",
			logger.String("job_id", job.ID), logger.Error(err))
	} else {
		response := &domain.Response{
			PromptID:     prompt.ID,
			ModelID:      model.ID,
			EntityID:     entityID,
			ResponseText: result.Answer,
		}
		if result.Sources != nil {
			sources := domain.SourceList(result.Sources)
			response.WebSearchSources = &sources
		}
		if _, err := e.responses.Insert(ctx, response); err != nil {
			e.logger.Error("record response failed",
				logger.String("job_id", job.ID), logger.Error(err))
		}
	}

	if err := e.runs.IncrementSuccessful(ctx, job.PromptRunID); err != nil {
		e.logger.Error("increment successful failed",
			logger.String("run_id", job.PromptRunID), logger.Error(err))
	}
	if err := e.prompts.TouchLastRun(ctx, prompt.ID); err != nil {
		e.logger.Warn("touch last run failed",
			logger.String("prompt_id", prompt.ID), logger.Error(err))
	}

	e.logger.Info("job succeeded",
		logger.String("job_id", job.ID),
		logger.String("entity", name),
		logger.String("model", model.Name),
		logger.Bool("web_search", job.UsingWebSearch))

	return &Outcome{
		JobID:    job.ID,
		Status:   domain.JobStatusSucceeded,
		EntityID: entityID,
	}, model.Provider
}

// fail lands the job in failed state and bumps the run's failed counter. The
// successful counter is never touched on this path, and the counter only
// moves when this executor won the terminal transition.
func (e *Executor) fail(ctx context.Context, job *domain.PromptJob, message string) *Outcome {
	marked, err := e.jobs.MarkFailed(ctx, job.ID, message)
	if err != nil {
		e.logger.Error("mark failed failed",
			logger.String("job_id", job.ID), logger.Error(err))
	}
	if !marked {
		if err == nil {
			return e.dropLateResult(ctx, job)
		}
		return &Outcome{
			JobID:        job.ID,
			Status:       domain.JobStatusProcessing,
			ErrorMessage: message,
		}
	}

	if err := e.runs.IncrementFailed(ctx, job.PromptRunID); err != nil {
		e.logger.Error("increment failed failed",
			logger.String("run_id", job.PromptRunID), logger.Error(err))
	}

	e.logger.Warn("job failed",
		logger.String("job_id", job.ID),
		logger.String("error", message))

	return &Outcome{
		JobID:        job.ID,
		Status:       domain.JobStatusFailed,
		ErrorMessage: message,
	}
}

// dropLateResult handles a lost lease: the job was reclaimed and settled by
// someone else while this executor was working, so its result is discarded
// with no side effects.
func (e *Executor) dropLateResult(ctx context.Context, job *domain.PromptJob) *Outcome {
	status := job.Status
	if current, err := e.jobs.GetByID(ctx, job.ID); err == nil {
		status = current.Status
	}
	e.logger.Warn("job settled elsewhere, dropping result",
		logger.String("job_id", job.ID),
		logger.String("status", string(status)))
	return &Outcome{
		JobID:            job.ID,
		Status:           status,
		AlreadyProcessed: true,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
