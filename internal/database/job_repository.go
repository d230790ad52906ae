package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

// jobSelectList is the column list for SELECT/RETURNING on prompt_jobs
// (single source for schema changes).
const jobSelectList = `id, prompt_run_id, model_id, run_index, using_web_search,
	status, error_message, attempt_count, scheduled_for, started_at,
	finished_at, created_at`

// statusQueryLimit caps the job status endpoint result set.
const statusQueryLimit = 100

// JobRepository manages the durable prompt job queue in PostgreSQL.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateIgnoreDuplicate inserts a queued job, ignoring the insert when the
// (prompt_run_id, model_id, run_index, using_web_search) tuple already exists.
// Returns the new job id and true only when a row was actually created, which
// makes fan-out idempotent under sweep re-entry.
func (r *JobRepository) CreateIgnoreDuplicate(ctx context.Context, job *domain.PromptJob) (string, bool, error) {
	query := `
		INSERT INTO prompt_jobs (prompt_run_id, model_id, run_index, using_web_search, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (prompt_run_id, model_id, run_index, using_web_search) DO NOTHING
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		job.PromptRunID, job.ModelID, job.RunIndex, job.UsingWebSearch,
		domain.JobStatusQueued, job.ScheduledFor,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("create job: %w", err)
	}
	return id, true, nil
}

// Claim atomically transitions a job from queued to processing, recording the
// start time and bumping the attempt count. This conditional update is the
// sole concurrency gate: at most one caller proceeds past it for a given job.
//
// When no queued row matches, Claim distinguishes the two cases the caller
// must handle differently: a missing job returns domain.ErrNotFound, an
// existing non-queued job returns the current row together with
// domain.ErrAlreadyProcessed so the caller can short-circuit idempotently.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (*domain.PromptJob, error) {
	query := `
		UPDATE prompt_jobs
		SET status = $2,
		    started_at = NOW(),
		    attempt_count = attempt_count + 1
		WHERE id = $1 AND status = $3
		RETURNING ` + jobSelectList

	var job domain.PromptJob
	err := r.db.GetContext(ctx, &job, query, jobID, domain.JobStatusProcessing, domain.JobStatusQueued)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	existing, getErr := r.GetByID(ctx, jobID)
	if getErr != nil {
		return nil, getErr
	}
	return existing, domain.ErrAlreadyProcessed
}

// GetByID retrieves a single job.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.PromptJob, error) {
	query := `SELECT ` + jobSelectList + ` FROM prompt_jobs WHERE id = $1`

	var job domain.PromptJob
	err := r.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// MarkSucceeded transitions a processing job to succeeded. The compare-and-set
// on status reports false when the job was no longer processing, which means
// its lease expired and the reclaim handed it to another executor. The caller
// must drop its result in that case.
func (r *JobRepository) MarkSucceeded(ctx context.Context, jobID string) (bool, error) {
	query := `
		UPDATE prompt_jobs
		SET status = $2, finished_at = NOW()
		WHERE id = $1 AND status = $3`
	return r.execReportRows(ctx, "mark succeeded", query,
		jobID, domain.JobStatusSucceeded, domain.JobStatusProcessing)
}

// MarkFailed transitions a processing job to failed with the captured error
// message. Same compare-and-set semantics as MarkSucceeded.
func (r *JobRepository) MarkFailed(ctx context.Context, jobID, errorMsg string) (bool, error) {
	query := `
		UPDATE prompt_jobs
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1 AND status = $4`
	return r.execReportRows(ctx, "mark failed", query,
		jobID, domain.JobStatusFailed, errorMsg, domain.JobStatusProcessing)
}

// ReclaimStale re-queues jobs that have sat in processing longer than the
// lease timeout. This handles jobs claimed by an executor that crashed before
// reaching a terminal state.
func (r *JobRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE prompt_jobs
		SET status = $1, started_at = NULL
		WHERE status = $2
		  AND started_at < NOW() - $3::interval`

	result, err := r.db.ExecContext(ctx, query,
		domain.JobStatusQueued, domain.JobStatusProcessing, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reclaim stale: %w", err)
	}
	return result.RowsAffected()
}

// ListQueuedIDs returns ids of jobs still queued and scheduled before the
// cutoff, oldest first. The reconciler uses it to re-dispatch jobs whose
// trigger never arrived.
func (r *JobRepository) ListQueuedIDs(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM prompt_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, domain.JobStatusQueued, before, limit); err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	return ids, nil
}

// JobFilter narrows the status query. Zero values mean "no filter".
type JobFilter struct {
	JobID       string
	PromptRunID string
	PromptID    string
	BatchKey    string
	Status      string
}

// JobDetail is a job joined with prompt and model identity for the status
// endpoint.
type JobDetail struct {
	domain.PromptJob
	PromptID      string `db:"prompt_id"      json:"prompt_id"`
	Question      string `db:"question"       json:"question"`
	Category      string `db:"category"       json:"category"`
	ModelName     string `db:"model_name"     json:"model_name"`
	ModelProvider string `db:"model_provider" json:"model_provider"`
}

// List returns up to 100 most-recent jobs matching the filter, joined with
// prompt/model identity.
func (r *JobRepository) List(ctx context.Context, filter JobFilter) ([]JobDetail, error) {
	query := `
		SELECT j.id, j.prompt_run_id, j.model_id, j.run_index, j.using_web_search,
		       j.status, j.error_message, j.attempt_count, j.scheduled_for,
		       j.started_at, j.finished_at, j.created_at,
		       p.id AS prompt_id, p.question, p.category,
		       m.name AS model_name, m.provider AS model_provider
		FROM prompt_jobs j
		JOIN prompt_runs r ON j.prompt_run_id = r.id
		JOIN prompts p ON r.prompt_id = p.id
		JOIN models m ON j.model_id = m.id`

	var conditions []string
	var args []any
	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, clause+"$"+strconv.Itoa(len(args)))
	}

	if filter.JobID != "" {
		addCondition("j.id = ", filter.JobID)
	}
	if filter.PromptRunID != "" {
		addCondition("r.id = ", filter.PromptRunID)
	}
	if filter.PromptID != "" {
		addCondition("p.id = ", filter.PromptID)
	}
	if filter.BatchKey != "" {
		addCondition("r.batch_key = ", filter.BatchKey)
	}
	if filter.Status != "" {
		addCondition("j.status = ", filter.Status)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += "\n\t\tWHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += "\n\t\tORDER BY j.created_at DESC\n\t\tLIMIT " + strconv.Itoa(statusQueryLimit)

	jobs := make([]JobDetail, 0, statusQueryLimit)
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// execReportRows runs an exec and reports whether any row was affected.
func (r *JobRepository) execReportRows(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return false, fmt.Errorf("%s: get affected rows: %w", op, rowsErr)
	}
	return rows > 0, nil
}
