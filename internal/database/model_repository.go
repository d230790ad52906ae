package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mindshare/internal/domain"
)

const modelSelectList = `id, name, provider, supports_object_output,
	supports_temperature, native_web_search, category`

// ModelRepository provides access to the model catalog.
type ModelRepository struct {
	db *sqlx.DB
}

// NewModelRepository creates a new repository.
func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// GetByID retrieves a single model.
func (r *ModelRepository) GetByID(ctx context.Context, modelID string) (*domain.Model, error) {
	query := `SELECT ` + modelSelectList + ` FROM models WHERE id = $1`

	var model domain.Model
	err := r.db.GetContext(ctx, &model, query, modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &model, nil
}

// ListByIDs retrieves the models matching the given ids. Unknown ids are
// simply absent from the result, so the caller can detect and skip them.
func (r *ModelRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Model, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+modelSelectList+` FROM models WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build model query: %w", err)
	}
	query = r.db.Rebind(query)

	var models []domain.Model
	if err := r.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}
