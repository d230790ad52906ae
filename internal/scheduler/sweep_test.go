package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
)

type fakeBackend struct {
	prompts []domain.Prompt
	models  map[string]domain.Model

	existingJobs map[string]bool // tuple key -> exists
	createErr    error
	touchErr     error

	runs           map[string]string // promptID/batchKey -> run id
	createdRuns    []string
	enqueuedTotals map[string]int
	createdJobs    []domain.PromptJob
	touched        []string
	dispatched     []string
	reclaimed      int64
	stamped        int64
	queuedIDs      []string

	// events records call order for ordering assertions.
	events []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		models:         make(map[string]domain.Model),
		existingJobs:   make(map[string]bool),
		runs:           make(map[string]string),
		enqueuedTotals: make(map[string]int),
	}
}

func (f *fakeBackend) ListDue(context.Context, time.Time) ([]domain.Prompt, error) {
	return f.prompts, nil
}

func (f *fakeBackend) TouchLastRun(_ context.Context, promptID string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, promptID)
	f.events = append(f.events, "touch:"+promptID)
	return nil
}

func (f *fakeBackend) ListByIDs(_ context.Context, ids []string) ([]domain.Model, error) {
	var models []domain.Model
	for _, id := range ids {
		if m, ok := f.models[id]; ok {
			models = append(models, m)
		}
	}
	return models, nil
}

// Create mirrors the repository's insert-or-get: one run per prompt and
// batch window, a repeat call returns the stored id.
func (f *fakeBackend) Create(_ context.Context, promptID, batchKey string) (string, error) {
	if f.createErr != nil && promptID == "prompt-broken" {
		return "", f.createErr
	}
	key := promptID + "/" + batchKey
	if id, ok := f.runs[key]; ok {
		return id, nil
	}
	runID := fmt.Sprintf("run-%d", len(f.runs)+1)
	f.runs[key] = runID
	f.createdRuns = append(f.createdRuns, runID)
	return runID, nil
}

func (f *fakeBackend) MarkEnqueued(_ context.Context, runID string, totalJobs int) error {
	f.enqueuedTotals[runID] = totalJobs
	return nil
}

func (f *fakeBackend) MarkExecutedFinished(context.Context) (int64, error) {
	return f.stamped, nil
}

func (f *fakeBackend) CreateIgnoreDuplicate(_ context.Context, job *domain.PromptJob) (string, bool, error) {
	key := fmt.Sprintf("%s/%s/%d/%t", job.PromptRunID, job.ModelID, job.RunIndex, job.UsingWebSearch)
	if f.existingJobs[key] {
		return "", false, nil
	}
	f.existingJobs[key] = true
	f.createdJobs = append(f.createdJobs, *job)
	return "job-" + key, true, nil
}

func (f *fakeBackend) ReclaimStale(context.Context, time.Duration) (int64, error) {
	return f.reclaimed, nil
}

func (f *fakeBackend) ListQueuedIDs(context.Context, time.Time, int) ([]string, error) {
	return f.queuedIDs, nil
}

func (f *fakeBackend) Dispatch(_ context.Context, jobID string) (string, error) {
	f.dispatched = append(f.dispatched, jobID)
	f.events = append(f.events, "dispatch:"+jobID)
	return "msg-" + jobID, nil
}

func boolPtr(b bool) *bool { return &b }

func newScheduler(f *fakeBackend) *Scheduler {
	s := New(f, f, f, f, f, nil, logger.NewNop(), 24*time.Hour, 10*time.Minute)
	s.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestScheduler_Sweep(t *testing.T) {
	t.Run("fixed variant fans out runs x models jobs", func(t *testing.T) {
		f := newFakeBackend()
		f.models["m1"] = domain.Model{ID: "m1", Name: "gpt-4o", Provider: "openai"}
		f.models["m2"] = domain.Model{ID: "m2", Name: "claude", Provider: "anthropic"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "Best TV show?", Runs: 3,
			UseWebSearch: boolPtr(false),
			Models:       domain.ModelRefs{{ID: "m1"}, {ID: "m2"}},
		}}

		result, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "2026-08-29", result.BatchKey)
		assert.Equal(t, 1, result.PromptCount)
		assert.Equal(t, 6, result.JobsCreated)
		assert.Len(t, f.dispatched, 6)
		assert.Equal(t, 6, f.enqueuedTotals["run-1"])
		for _, job := range f.createdJobs {
			assert.False(t, job.UsingWebSearch)
		}
	})

	t.Run("tri-state nil doubles runs with alternating variants", func(t *testing.T) {
		f := newFakeBackend()
		f.models["m1"] = domain.Model{ID: "m1"}
		f.models["m2"] = domain.Model{ID: "m2"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "Best TV show?", Runs: 3,
			Models: domain.ModelRefs{{ID: "m1"}, {ID: "m2"}},
		}}

		result, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 12, result.JobsCreated)

		webCount := 0
		for _, job := range f.createdJobs {
			if job.UsingWebSearch {
				webCount++
			}
		}
		assert.Equal(t, 6, webCount)
	})

	t.Run("run count is capped", func(t *testing.T) {
		f := newFakeBackend()
		f.models["m1"] = domain.Model{ID: "m1"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "q", Runs: 50,
			UseWebSearch: boolPtr(true),
			Models:       domain.ModelRefs{{ID: "m1"}},
		}}

		result, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.MaxRunsPerModel, result.JobsCreated)
	})

	t.Run("repeat sweep creates and dispatches nothing new", func(t *testing.T) {
		f := newFakeBackend()
		f.models["m1"] = domain.Model{ID: "m1"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "q", Runs: 2,
			UseWebSearch: boolPtr(false),
			Models:       domain.ModelRefs{{ID: "m1"}},
		}}
		s := newScheduler(f)

		first, err := s.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, first.JobsCreated)

		second, err := s.Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.JobsCreated)
		assert.Len(t, f.dispatched, 2)
	})

	t.Run("re-entry reuses the run even when the last-run stamp fails", func(t *testing.T) {
		f := newFakeBackend()
		f.touchErr = errors.New("db down")
		f.models["m1"] = domain.Model{ID: "m1"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "q", Runs: 2,
			UseWebSearch: boolPtr(false),
			Models:       domain.ModelRefs{{ID: "m1"}},
		}}
		s := newScheduler(f)

		first, err := s.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, first.JobsCreated)

		// The prompt is still due, so it is swept again. The run row is
		// reused and the job tuples collide, so nothing is duplicated.
		second, err := s.Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, second.JobsCreated)
		assert.Len(t, f.createdRuns, 1)
		assert.Len(t, f.createdJobs, 2)
		assert.Equal(t, 2, f.enqueuedTotals["run-1"])
	})

	t.Run("one broken prompt does not stop the sweep", func(t *testing.T) {
		f := newFakeBackend()
		f.createErr = errors.New("db down")
		f.models["m1"] = domain.Model{ID: "m1"}
		f.prompts = []domain.Prompt{
			{ID: "prompt-broken", Question: "q", Runs: 1,
				UseWebSearch: boolPtr(false), Models: domain.ModelRefs{{ID: "m1"}}},
			{ID: "p2", Question: "q", Runs: 1,
				UseWebSearch: boolPtr(false), Models: domain.ModelRefs{{ID: "m1"}}},
		}

		result, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.PromptCount)
		assert.Equal(t, 1, result.JobsCreated)
	})

	t.Run("last run is stamped before triggers go out", func(t *testing.T) {
		f := newFakeBackend()
		f.models["m1"] = domain.Model{ID: "m1"}
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "q", Runs: 1,
			UseWebSearch: boolPtr(false),
			Models:       domain.ModelRefs{{ID: "m1"}},
		}}

		_, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, f.events)
		assert.Equal(t, "touch:p1", f.events[0])
	})

	t.Run("prompt with only unknown models is skipped", func(t *testing.T) {
		f := newFakeBackend()
		f.prompts = []domain.Prompt{{
			ID: "p1", Question: "q", Runs: 1,
			Models: domain.ModelRefs{{ID: "ghost"}},
		}}

		result, err := newScheduler(f).Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, result.PromptCount)
		assert.Empty(t, f.createdRuns)
	})
}

func TestScheduler_Reconcile(t *testing.T) {
	f := newFakeBackend()
	f.stamped = 2
	f.reclaimed = 1
	f.queuedIDs = []string{"job-a", "job-b"}

	newScheduler(f).Reconcile(context.Background())
	assert.Equal(t, []string{"job-a", "job-b"}, f.dispatched)
}
