package domain

import "time"

// JobStatus is the prompt job state machine:
// queued -> processing -> succeeded | failed.
// skipped is a reserved terminal state for jobs intentionally not run; the
// current flow never produces it but every status check treats it as terminal.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSkipped    JobStatus = "skipped"
)

// IsTerminal reports whether the status is final.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusSkipped:
		return true
	default:
		return false
	}
}

// PromptJob is one (model, run index, web-search variant) unit of work inside
// a prompt run. The tuple (PromptRunID, ModelID, RunIndex, UsingWebSearch) is
// unique, which makes fan-out idempotent under sweep re-entry.
type PromptJob struct {
	ID             string     `db:"id"               json:"id"`
	PromptRunID    string     `db:"prompt_run_id"    json:"prompt_run_id"`
	ModelID        string     `db:"model_id"         json:"model_id"`
	RunIndex       int        `db:"run_index"        json:"run_index"`
	UsingWebSearch bool       `db:"using_web_search" json:"using_web_search"`
	Status         JobStatus  `db:"status"           json:"status"`
	ErrorMessage   *string    `db:"error_message"    json:"error_message,omitempty"`
	AttemptCount   int        `db:"attempt_count"    json:"attempt_count"`
	ScheduledFor   *time.Time `db:"scheduled_for"    json:"scheduled_for,omitempty"`
	StartedAt      *time.Time `db:"started_at"       json:"started_at,omitempty"`
	FinishedAt     *time.Time `db:"finished_at"      json:"finished_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
}

// JobStatusSummary counts jobs per status for the status endpoint.
type JobStatusSummary struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Add counts one job into the summary.
func (s *JobStatusSummary) Add(status JobStatus) {
	s.Total++
	switch status {
	case JobStatusQueued:
		s.Queued++
	case JobStatusProcessing:
		s.Processing++
	case JobStatusSucceeded:
		s.Succeeded++
	case JobStatusFailed:
		s.Failed++
	case JobStatusSkipped:
		s.Skipped++
	}
}
