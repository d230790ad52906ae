package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

// ResponseRepository records raw model answers linked to canonical entities.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository creates a new repository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Insert writes one immutable response row. WebSearchSources stays NULL when
// the job ran without web search.
func (r *ResponseRepository) Insert(ctx context.Context, resp *domain.Response) (string, error) {
	query := `
		INSERT INTO responses (prompt_id, model_id, entity_id, response_text, web_search_sources)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id string
	err := r.db.QueryRowContext(ctx, query,
		resp.PromptID, resp.ModelID, resp.EntityID, resp.ResponseText, resp.WebSearchSources,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert response: %w", err)
	}
	return id, nil
}

// PromptEntityStat is one row of per-prompt analytics: how often each entity
// was named, broken down by model.
type PromptEntityStat struct {
	EntityID   string `db:"entity_id"   json:"entity_id"`
	EntityName string `db:"entity_name" json:"entity_name"`
	ModelID    string `db:"model_id"    json:"model_id"`
	ModelName  string `db:"model_name"  json:"model_name"`
	Mentions   int64  `db:"mentions"    json:"mentions"`
}

// PromptAnalytics aggregates responses for one prompt by entity and model.
func (r *ResponseRepository) PromptAnalytics(ctx context.Context, promptID string) ([]PromptEntityStat, error) {
	query := `
		SELECT e.id AS entity_id, e.name AS entity_name,
		       m.id AS model_id, m.name AS model_name,
		       COUNT(*) AS mentions
		FROM responses r
		JOIN entities e ON r.entity_id = e.id
		JOIN models m ON r.model_id = m.id
		WHERE r.prompt_id = $1
		GROUP BY e.id, e.name, m.id, m.name
		ORDER BY mentions DESC, e.name ASC`

	var stats []PromptEntityStat
	if err := r.db.SelectContext(ctx, &stats, query, promptID); err != nil {
		return nil, fmt.Errorf("prompt analytics: %w", err)
	}
	return stats, nil
}
