package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestPrompt_EffectiveRuns(t *testing.T) {
	tests := []struct {
		name         string
		runs         int
		useWebSearch *bool
		want         int
	}{
		{"fixed variant keeps configured runs", 3, boolPtr(false), 3},
		{"web-only variant keeps configured runs", 3, boolPtr(true), 3},
		{"tri-state nil doubles runs", 3, nil, 6},
		{"runs are capped", 50, boolPtr(false), MaxRunsPerModel},
		{"tri-state cap applies before doubling", 50, nil, MaxRunsPerModel * 2},
		{"zero runs means one", 0, boolPtr(false), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Prompt{Runs: tt.runs, UseWebSearch: tt.useWebSearch}
			assert.Equal(t, tt.want, p.EffectiveRuns())
		})
	}
}

func TestPrompt_WebSearchVariant(t *testing.T) {
	t.Run("fixed flag applies to every index", func(t *testing.T) {
		p := Prompt{UseWebSearch: boolPtr(true)}
		for i := 0; i < 4; i++ {
			assert.True(t, p.WebSearchVariant(i))
		}
	})

	t.Run("nil flag alternates per index", func(t *testing.T) {
		p := Prompt{}
		assert.False(t, p.WebSearchVariant(0))
		assert.True(t, p.WebSearchVariant(1))
		assert.False(t, p.WebSearchVariant(2))
		assert.True(t, p.WebSearchVariant(3))
	})
}

func TestBatchKeyFor(t *testing.T) {
	// Late evening in a western timezone still buckets to the UTC date.
	loc := time.FixedZone("PST", -8*3600)
	local := time.Date(2026, 8, 28, 22, 30, 0, 0, loc)
	assert.Equal(t, "2026-08-29", BatchKeyFor(local))

	utc := time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, "2026-08-29", BatchKeyFor(utc))
}

func TestPromptRun_Finished(t *testing.T) {
	assert.False(t, (&PromptRun{TotalJobs: 0}).Finished())
	assert.False(t, (&PromptRun{TotalJobs: 6, SuccessfulJobs: 3, FailedJobs: 2}).Finished())
	assert.True(t, (&PromptRun{TotalJobs: 6, SuccessfulJobs: 4, FailedJobs: 2}).Finished())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusSucceeded.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.True(t, JobStatusSkipped.IsTerminal())
}
