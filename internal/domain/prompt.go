// Package domain contains the core domain models for the mindshare service.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Frequency values for prompt scheduling.
const (
	FrequencySingle = "single"
	FrequencyDaily  = "daily"
)

// MaxRunsPerModel caps the configured run count for a single sweep.
const MaxRunsPerModel = 10

// ModelRef is a reference to a model stored inside the prompt's models column.
type ModelRef struct {
	ID string `json:"id"`
}

// ModelRefs is a JSONB-backed list of model references.
type ModelRefs []ModelRef

// Value implements driver.Valuer for JSONB storage.
func (m ModelRefs) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB storage.
func (m *ModelRefs) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.New("model refs: expected []byte from database")
	}
	return json.Unmarshal(b, m)
}

// Prompt is a reusable question template with a schedule and a target model set.
//
// UseWebSearch is tri-state: true means web-search runs only, false means
// no-web runs only, nil means both variants are scheduled.
type Prompt struct {
	ID           string     `db:"id"             json:"id"`
	Category     string     `db:"category"       json:"category"`
	Question     string     `db:"question"       json:"question"`
	Frequency    string     `db:"frequency"      json:"frequency"`
	Runs         int        `db:"runs"           json:"runs"`
	UseWebSearch *bool      `db:"use_web_search" json:"use_web_search,omitempty"`
	Active       bool       `db:"active"         json:"active"`
	Models       ModelRefs  `db:"models"         json:"models"`
	LastRunAt    *time.Time `db:"last_run_at"    json:"last_run_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"     json:"created_at"`
}

// EffectiveRuns returns the per-model run count for one sweep, capped at
// MaxRunsPerModel and doubled when both web-search variants are scheduled.
func (p *Prompt) EffectiveRuns() int {
	runs := p.Runs
	if runs > MaxRunsPerModel {
		runs = MaxRunsPerModel
	}
	if runs < 1 {
		runs = 1
	}
	if p.UseWebSearch == nil {
		runs *= 2
	}
	return runs
}

// WebSearchVariant returns the web-search flag for the given run index.
// With a tri-state nil flag, even indexes run without web search and odd
// indexes with it, so both variants get an equal share of the doubled runs.
func (p *Prompt) WebSearchVariant(runIndex int) bool {
	if p.UseWebSearch != nil {
		return *p.UseWebSearch
	}
	return runIndex%2 == 1
}

// Validate checks prompt fields that the scheduler depends on.
func (p *Prompt) Validate() error {
	if p.Question == "" {
		return errors.New("prompt question is required")
	}
	if len(p.Models) == 0 {
		return fmt.Errorf("prompt %s has no models", p.ID)
	}
	return nil
}
