package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/mindshare/internal/domain"
	"github.com/jonesrussell/mindshare/internal/logger"
	"github.com/jonesrussell/mindshare/internal/provider"
)

type fakeStores struct {
	job    *domain.PromptJob
	run    *domain.PromptRun
	prompt *domain.Prompt
	model  *domain.Model

	claimErr    error
	generateErr error
	answer      string
	sources     []string

	// leaseLost makes the terminal marks lose their compare-and-set, as if
	// the job was reclaimed and settled by another executor mid-flight.
	leaseLost bool

	succeeded      []string
	failed         map[string]string
	runSuccessful  int
	runFailed      int
	touchedPrompts []string
	upsertedNames  []string
	responses      []*domain.Response
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		job: &domain.PromptJob{
			ID:          "job-1",
			PromptRunID: "run-1",
			ModelID:     "model-1",
			Status:      domain.JobStatusProcessing,
		},
		run:    &domain.PromptRun{ID: "run-1", PromptID: "prompt-1"},
		prompt: &domain.Prompt{ID: "prompt-1", Category: "tv", Question: "Best TV show?"},
		model: &domain.Model{
			ID: "model-1", Name: "gpt-4o", Provider: domain.ProviderOpenAI,
		},
		answer: "Breaking Bad",
		failed: make(map[string]string),
	}
}

func (f *fakeStores) Claim(_ context.Context, jobID string) (*domain.PromptJob, error) {
	if f.claimErr != nil {
		return f.job, f.claimErr
	}
	if jobID != f.job.ID {
		return nil, domain.ErrNotFound
	}
	return f.job, nil
}

func (f *fakeStores) MarkSucceeded(_ context.Context, jobID string) (bool, error) {
	if f.leaseLost {
		return false, nil
	}
	f.succeeded = append(f.succeeded, jobID)
	return true, nil
}

func (f *fakeStores) MarkFailed(_ context.Context, jobID, msg string) (bool, error) {
	if f.leaseLost {
		return false, nil
	}
	f.failed[jobID] = msg
	return true, nil
}

func (f *fakeStores) GetByID(_ context.Context, id string) (*domain.PromptRun, error) {
	if id != f.run.ID {
		return nil, domain.ErrNotFound
	}
	return f.run, nil
}

func (f *fakeStores) IncrementSuccessful(context.Context, string) error {
	f.runSuccessful++
	return nil
}

func (f *fakeStores) IncrementFailed(context.Context, string) error {
	f.runFailed++
	return nil
}

func (f *fakeStores) TouchLastRun(_ context.Context, promptID string) error {
	f.touchedPrompts = append(f.touchedPrompts, promptID)
	return nil
}

func (f *fakeStores) UpsertMention(_ context.Context, name, _ string) (string, error) {
	f.upsertedNames = append(f.upsertedNames, name)
	return "entity-1", nil
}

func (f *fakeStores) Insert(_ context.Context, resp *domain.Response) (string, error) {
	f.responses = append(f.responses, resp)
	return "response-1", nil
}

func (f *fakeStores) Generate(context.Context, provider.Params) (*provider.Result, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &provider.Result{Answer: f.answer, Sources: f.sources}, nil
}

func (f *fakeStores) Name() string { return domain.ProviderOpenAI }

func (f *fakeStores) For(string) provider.Adapter { return f }

type jobStores struct{ *fakeStores }

func (j jobStores) GetByID(_ context.Context, id string) (*domain.PromptJob, error) {
	if id != j.job.ID {
		return nil, domain.ErrNotFound
	}
	return j.job, nil
}

type promptStores struct{ *fakeStores }

func (p promptStores) GetByID(_ context.Context, id string) (*domain.Prompt, error) {
	if id != p.prompt.ID {
		return nil, domain.ErrNotFound
	}
	return p.prompt, nil
}

type modelStores struct{ *fakeStores }

func (m modelStores) GetByID(_ context.Context, id string) (*domain.Model, error) {
	if id != m.model.ID {
		return nil, domain.ErrNotFound
	}
	return m.model, nil
}

func newExecutor(f *fakeStores) *Executor {
	return New(jobStores{f}, f, promptStores{f}, modelStores{f}, f, f, f, nil, logger.NewNop())
}

func TestExecutor_Process(t *testing.T) {
	t.Run("success records response and rolls up counters", func(t *testing.T) {
		f := newFakeStores()
		outcome, err := newExecutor(f).Process(context.Background(), "job-1")

		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSucceeded, outcome.Status)
		assert.Equal(t, "entity-1", outcome.EntityID)
		assert.False(t, outcome.AlreadyProcessed)

		assert.Equal(t, []string{"job-1"}, f.succeeded)
		assert.Equal(t, 1, f.runSuccessful)
		assert.Zero(t, f.runFailed)
		assert.Equal(t, []string{"prompt-1"}, f.touchedPrompts)

		require.Len(t, f.responses, 1)
		assert.Equal(t, "Breaking Bad", f.responses[0].ResponseText)
		assert.Nil(t, f.responses[0].WebSearchSources)
	})

	t.Run("answer is normalized before the entity upsert", func(t *testing.T) {
		f := newFakeStores()
		f.answer = `"The Last of Us" — because it's critically acclaimed.`

		_, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"The Last Of Us"}, f.upsertedNames)
		// The stored response keeps the raw answer.
		assert.Equal(t, f.answer, f.responses[0].ResponseText)
	})

	t.Run("web search job stores a non-nil source list", func(t *testing.T) {
		f := newFakeStores()
		f.job.UsingWebSearch = true
		f.sources = []string{}

		_, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		require.NotNil(t, f.responses[0].WebSearchSources)
		assert.Empty(t, *f.responses[0].WebSearchSources)
	})

	t.Run("already processed job short-circuits with no side effects", func(t *testing.T) {
		f := newFakeStores()
		f.job.Status = domain.JobStatusSucceeded
		f.claimErr = domain.ErrAlreadyProcessed

		outcome, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.True(t, outcome.AlreadyProcessed)
		assert.Equal(t, domain.JobStatusSucceeded, outcome.Status)

		assert.Empty(t, f.succeeded)
		assert.Empty(t, f.failed)
		assert.Zero(t, f.runSuccessful)
		assert.Zero(t, f.runFailed)
		assert.Empty(t, f.responses)
	})

	t.Run("unknown job surfaces not found", func(t *testing.T) {
		f := newFakeStores()
		_, err := newExecutor(f).Process(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("generation failure marks failed and bumps only the failed counter", func(t *testing.T) {
		f := newFakeStores()
		f.generateErr = &domain.GenerationError{
			Provider: domain.ProviderOpenAI, Model: "gpt-4o",
			Err: errors.New("rate limited"),
		}

		outcome, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, outcome.Status)
		assert.Contains(t, outcome.ErrorMessage, "rate limited")

		assert.Contains(t, f.failed["job-1"], "rate limited")
		assert.Zero(t, f.runSuccessful)
		assert.Equal(t, 1, f.runFailed)
		assert.Empty(t, f.touchedPrompts)
		assert.Empty(t, f.responses)
	})

	t.Run("reclaimed job drops the late result without side effects", func(t *testing.T) {
		f := newFakeStores()
		f.leaseLost = true

		outcome, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.True(t, outcome.AlreadyProcessed)

		assert.Empty(t, f.succeeded)
		assert.Empty(t, f.upsertedNames)
		assert.Empty(t, f.responses)
		assert.Zero(t, f.runSuccessful)
		assert.Zero(t, f.runFailed)
	})

	t.Run("reclaimed job does not bump the failed counter either", func(t *testing.T) {
		f := newFakeStores()
		f.leaseLost = true
		f.generateErr = &domain.GenerationError{
			Provider: domain.ProviderOpenAI, Model: "gpt-4o",
			Err: errors.New("timeout"),
		}

		outcome, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.True(t, outcome.AlreadyProcessed)
		assert.Empty(t, f.failed)
		assert.Zero(t, f.runFailed)
	})

	t.Run("whitespace-only answer fails the job", func(t *testing.T) {
		f := newFakeStores()
		f.answer = "   "

		outcome, err := newExecutor(f).Process(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, outcome.Status)
		assert.Contains(t, outcome.ErrorMessage, "empty entity")
	})
}
