package domain

import "time"

// RunStatus tracks the enqueue phase of a prompt run. "completed" means the
// fan-out finished inserting jobs, not that the jobs have executed; execution
// completion is recorded separately in ExecutedAt by the reconciler.
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
)

// PromptRun is one execution batch of a prompt, aggregating job outcomes.
//
// Invariant: SuccessfulJobs + FailedJobs <= TotalJobs at all times. Counters
// only move by atomic relative increments in the store.
type PromptRun struct {
	ID             string     `db:"id"              json:"id"`
	PromptID       string     `db:"prompt_id"       json:"prompt_id"`
	Status         RunStatus  `db:"status"          json:"status"`
	BatchKey       string     `db:"batch_key"       json:"batch_key"`
	TotalJobs      int        `db:"total_jobs"      json:"total_jobs"`
	SuccessfulJobs int        `db:"successful_jobs" json:"successful_jobs"`
	FailedJobs     int        `db:"failed_jobs"     json:"failed_jobs"`
	ExecutedAt     *time.Time `db:"executed_at"     json:"executed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}

// Finished reports whether every job reached a terminal state.
func (r *PromptRun) Finished() bool {
	return r.TotalJobs > 0 && r.SuccessfulJobs+r.FailedJobs >= r.TotalJobs
}

// BatchKeyFor returns the UTC date bucket for a sweep time.
func BatchKeyFor(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
