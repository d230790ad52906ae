package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full DDL for the service. Statements are idempotent so
// EnsureSchema can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS prompts (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	category VARCHAR(100) NOT NULL,
	question TEXT NOT NULL,
	frequency VARCHAR(50) NOT NULL DEFAULT 'single',
	runs INTEGER NOT NULL DEFAULT 1,
	use_web_search BOOLEAN,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	models JSONB NOT NULL DEFAULT '[]',
	last_run_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS models (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name VARCHAR(100) NOT NULL,
	provider VARCHAR(100) NOT NULL,
	supports_object_output BOOLEAN NOT NULL DEFAULT FALSE,
	supports_temperature BOOLEAN NOT NULL DEFAULT FALSE,
	native_web_search BOOLEAN NOT NULL DEFAULT FALSE,
	category TEXT NOT NULL DEFAULT '',
	CONSTRAINT idx_models_name_provider UNIQUE (name, provider)
);

CREATE TABLE IF NOT EXISTS prompt_runs (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	prompt_id UUID NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
	status VARCHAR(20) NOT NULL DEFAULT 'processing',
	batch_key VARCHAR(50) NOT NULL,
	total_jobs INTEGER NOT NULL DEFAULT 0,
	successful_jobs INTEGER NOT NULL DEFAULT 0,
	failed_jobs INTEGER NOT NULL DEFAULT 0,
	executed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT idx_prompt_runs_unique UNIQUE (prompt_id, batch_key)
);

CREATE TABLE IF NOT EXISTS prompt_jobs (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	prompt_run_id UUID NOT NULL REFERENCES prompt_runs(id) ON DELETE CASCADE,
	model_id UUID NOT NULL REFERENCES models(id) ON DELETE CASCADE,
	run_index BIGINT NOT NULL,
	using_web_search BOOLEAN NOT NULL DEFAULT FALSE,
	status VARCHAR(20) NOT NULL DEFAULT 'queued',
	error_message TEXT,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	scheduled_for TIMESTAMPTZ,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT idx_prompt_jobs_unique UNIQUE (prompt_run_id, model_id, run_index, using_web_search)
);

CREATE INDEX IF NOT EXISTS idx_prompt_jobs_status ON prompt_jobs (status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_prompt_jobs_run ON prompt_jobs (prompt_run_id, created_at);

CREATE TABLE IF NOT EXISTS entities (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	name VARCHAR(255) NOT NULL UNIQUE,
	category VARCHAR(100) NOT NULL DEFAULT '',
	total_mentions BIGINT NOT NULL DEFAULT 0,
	last_mentioned_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_entities_category ON entities (category);

CREATE TABLE IF NOT EXISTS responses (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	prompt_id UUID NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
	model_id UUID NOT NULL REFERENCES models(id) ON DELETE CASCADE,
	entity_id UUID NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	response_text TEXT,
	web_search_sources JSONB,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_responses_prompt_model_time ON responses (prompt_id, model_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_responses_entity ON responses (entity_id);
`

// EnsureSchema creates all tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
