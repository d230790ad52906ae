package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

const promptSelectList = `id, category, question, frequency, runs,
	use_web_search, active, models, last_run_at, created_at`

// PromptRepository provides access to tracked prompts.
type PromptRepository struct {
	db *sqlx.DB
}

// NewPromptRepository creates a new repository.
func NewPromptRepository(db *sqlx.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// ListDue returns active daily prompts that have never run or whose last run
// started at or before the cutoff.
func (r *PromptRepository) ListDue(ctx context.Context, cutoff time.Time) ([]domain.Prompt, error) {
	query := `
		SELECT ` + promptSelectList + `
		FROM prompts
		WHERE active = TRUE
		  AND frequency = $1
		  AND (last_run_at IS NULL OR last_run_at <= $2)
		ORDER BY created_at ASC`

	var prompts []domain.Prompt
	if err := r.db.SelectContext(ctx, &prompts, query, domain.FrequencyDaily, cutoff); err != nil {
		return nil, fmt.Errorf("list due prompts: %w", err)
	}
	return prompts, nil
}

// GetByID retrieves a single prompt.
func (r *PromptRepository) GetByID(ctx context.Context, promptID string) (*domain.Prompt, error) {
	query := `SELECT ` + promptSelectList + ` FROM prompts WHERE id = $1`

	var prompt domain.Prompt
	err := r.db.GetContext(ctx, &prompt, query, promptID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &prompt, nil
}

// TouchLastRun stamps last_run_at with the current time. The scheduler calls
// it right after fan-out so the prompt falls out of the due set even if job
// execution lags, and the executor refreshes it on each successful job.
func (r *PromptRepository) TouchLastRun(ctx context.Context, promptID string) error {
	query := `UPDATE prompts SET last_run_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, promptID)
	if err != nil {
		return fmt.Errorf("touch last run: %w", err)
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("touch last run: get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
