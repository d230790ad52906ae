package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

const runSelectList = `id, prompt_id, batch_key, status, total_jobs,
	successful_jobs, failed_jobs, executed_at, created_at, updated_at`

// RunRepository manages prompt run batches.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run in processing state, or returns the existing run for
// the same prompt and batch window. Reusing the run id is what lets the job
// tuple constraint catch duplicate fan-out when a sweep repeats.
func (r *RunRepository) Create(ctx context.Context, promptID, batchKey string) (string, error) {
	query := `
		INSERT INTO prompt_runs (prompt_id, batch_key, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (prompt_id, batch_key) DO UPDATE SET updated_at = NOW()
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query, promptID, batchKey, domain.RunStatusProcessing).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// GetByID retrieves a single run.
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*domain.PromptRun, error) {
	query := `SELECT ` + runSelectList + ` FROM prompt_runs WHERE id = $1`

	var run domain.PromptRun
	err := r.db.GetContext(ctx, &run, query, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// MarkEnqueued records that fan-out finished for the run: the total job count
// is final and the enqueue phase is complete. Job outcomes keep accumulating
// in the counters afterwards. GREATEST keeps a repeated sweep that created no
// new jobs from shrinking the total.
func (r *RunRepository) MarkEnqueued(ctx context.Context, runID string, totalJobs int) error {
	query := `
		UPDATE prompt_runs
		SET status = $2, total_jobs = GREATEST(total_jobs, $3), updated_at = NOW()
		WHERE id = $1`
	return r.execExpectOneRow(ctx, "mark enqueued", query, runID, domain.RunStatusCompleted, totalJobs)
}

// IncrementSuccessful adds one to the run's successful job counter. The
// increment is relative in SQL so concurrent executors never lose updates.
func (r *RunRepository) IncrementSuccessful(ctx context.Context, runID string) error {
	query := `
		UPDATE prompt_runs
		SET successful_jobs = successful_jobs + 1, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectOneRow(ctx, "increment successful", query, runID)
}

// IncrementFailed adds one to the run's failed job counter.
func (r *RunRepository) IncrementFailed(ctx context.Context, runID string) error {
	query := `
		UPDATE prompt_runs
		SET failed_jobs = failed_jobs + 1, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectOneRow(ctx, "increment failed", query, runID)
}

// MarkExecutedFinished stamps executed_at on enqueued runs whose job counters
// have reached the total, and returns how many runs were stamped. Called
// periodically by the reconciler.
func (r *RunRepository) MarkExecutedFinished(ctx context.Context) (int64, error) {
	query := `
		UPDATE prompt_runs
		SET executed_at = NOW(), updated_at = NOW()
		WHERE executed_at IS NULL
		  AND status = $1
		  AND total_jobs > 0
		  AND successful_jobs + failed_jobs >= total_jobs`

	result, err := r.db.ExecContext(ctx, query, domain.RunStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("mark executed: %w", err)
	}
	return result.RowsAffected()
}

func (r *RunRepository) execExpectOneRow(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("%s: get affected rows: %w", op, rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
