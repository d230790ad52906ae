package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mindshare/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var jobColumns = []string{
	"id", "prompt_run_id", "model_id", "run_index", "using_web_search",
	"status", "error_message", "attempt_count", "scheduled_for", "started_at",
	"finished_at", "created_at",
}

func jobRow(id string, status domain.JobStatus, attempts int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumns).
		AddRow(id, "run-1", "model-1", 0, false, status, nil, attempts, nil, now, nil, now)
}

func TestJobRepository_Claim(t *testing.T) {
	t.Run("claims a queued job", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectQuery(`UPDATE prompt_jobs`).
			WithArgs("job-1", string(domain.JobStatusProcessing), string(domain.JobStatusQueued)).
			WillReturnRows(jobRow("job-1", domain.JobStatusProcessing, 1))

		job, err := repo.Claim(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, job.Status)
		assert.Equal(t, 1, job.AttemptCount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already claimed job returns current state without side effects", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectQuery(`UPDATE prompt_jobs`).
			WithArgs("job-1", string(domain.JobStatusProcessing), string(domain.JobStatusQueued)).
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectQuery(`SELECT .+ FROM prompt_jobs WHERE id = \$1`).
			WithArgs("job-1").
			WillReturnRows(jobRow("job-1", domain.JobStatusSucceeded, 1))

		job, err := repo.Claim(context.Background(), "job-1")
		require.ErrorIs(t, err, domain.ErrAlreadyProcessed)
		require.NotNil(t, job)
		assert.Equal(t, domain.JobStatusSucceeded, job.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job returns not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectQuery(`UPDATE prompt_jobs`).
			WillReturnRows(sqlmock.NewRows(jobColumns))
		mock.ExpectQuery(`SELECT .+ FROM prompt_jobs WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(jobColumns))

		_, err := repo.Claim(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestJobRepository_CreateIgnoreDuplicate(t *testing.T) {
	t.Run("inserts a new job", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectQuery(`INSERT INTO prompt_jobs`).
			WithArgs("run-1", "model-1", 2, true, string(domain.JobStatusQueued), nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-9"))

		id, created, err := repo.CreateIgnoreDuplicate(context.Background(), &domain.PromptJob{
			PromptRunID:    "run-1",
			ModelID:        "model-1",
			RunIndex:       2,
			UsingWebSearch: true,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "job-9", id)
	})

	t.Run("duplicate tuple is a no-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectQuery(`INSERT INTO prompt_jobs`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		id, created, err := repo.CreateIgnoreDuplicate(context.Background(), &domain.PromptJob{
			PromptRunID: "run-1",
			ModelID:     "model-1",
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Empty(t, id)
	})
}

func TestJobRepository_ReclaimStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	mock.ExpectExec(`UPDATE prompt_jobs`).
		WithArgs(string(domain.JobStatusQueued), string(domain.JobStatusProcessing), "10m0s").
		WillReturnResult(sqlmock.NewResult(0, 3))

	reclaimed, err := repo.ReclaimStale(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reclaimed)
}

func TestJobRepository_MarkSucceeded(t *testing.T) {
	t.Run("settles only a processing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND status = \$3`).
			WithArgs("job-1", string(domain.JobStatusSucceeded), string(domain.JobStatusProcessing)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		marked, err := repo.MarkSucceeded(context.Background(), "job-1")
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("reports lost transition when the row left processing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND status = \$3`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		marked, err := repo.MarkSucceeded(context.Background(), "job-1")
		require.NoError(t, err)
		assert.False(t, marked)
	})
}

func TestJobRepository_MarkFailed(t *testing.T) {
	t.Run("settles only a processing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND status = \$4`).
			WithArgs("job-1", string(domain.JobStatusFailed), "provider timeout",
				string(domain.JobStatusProcessing)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		marked, err := repo.MarkFailed(context.Background(), "job-1", "provider timeout")
		require.NoError(t, err)
		assert.True(t, marked)
	})

	t.Run("reports lost transition when the row left processing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewJobRepository(db)

		mock.ExpectExec(`WHERE id = \$1 AND status = \$4`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		marked, err := repo.MarkFailed(context.Background(), "missing", "x")
		require.NoError(t, err)
		assert.False(t, marked)
	})
}

func TestJobRepository_ListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobRepository(db)

	detailColumns := append(append([]string{}, jobColumns...),
		"prompt_id", "question", "category", "model_name", "model_provider")
	now := time.Now()
	rows := sqlmock.NewRows(detailColumns).
		AddRow("job-1", "run-1", "model-1", 0, false, domain.JobStatusSucceeded,
			nil, 1, nil, now, now, now,
			"prompt-1", "Best TV show?", "tv", "gpt-4o", "openai")

	mock.ExpectQuery(regexp.QuoteMeta(`r.batch_key = $1 AND j.status = $2`)).
		WithArgs("2026-08-29", string(domain.JobStatusSucceeded)).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background(), JobFilter{
		BatchKey: "2026-08-29",
		Status:   string(domain.JobStatusSucceeded),
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "gpt-4o", jobs[0].ModelName)
	assert.Equal(t, "prompt-1", jobs[0].PromptID)
}
