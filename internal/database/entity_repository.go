package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

// EntityRepository manages canonical entities and their mention counters.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository creates a new repository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// UpsertMention inserts the entity or, when the name already exists, bumps
// its mention counter and refreshes last_mentioned_at. The increment is a
// single atomic statement so concurrent executors never undercount. Returns
// the canonical entity id.
func (r *EntityRepository) UpsertMention(ctx context.Context, name, category string) (string, error) {
	query := `
		INSERT INTO entities (name, category, total_mentions, last_mentioned_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET total_mentions = entities.total_mentions + 1,
		    last_mentioned_at = NOW()
		RETURNING id`

	var id string
	if err := r.db.QueryRowContext(ctx, query, name, category).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert entity: %w", err)
	}
	return id, nil
}

// TopEntities returns entities ordered by total mentions, most mentioned
// first, optionally filtered by category.
func (r *EntityRepository) TopEntities(ctx context.Context, category string, limit int) ([]domain.Entity, error) {
	query := `
		SELECT id, name, category, total_mentions, last_mentioned_at
		FROM entities`
	args := []any{}
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += fmt.Sprintf(`
		ORDER BY total_mentions DESC, name ASC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var entities []domain.Entity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, fmt.Errorf("top entities: %w", err)
	}
	return entities, nil
}
