package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
)

const collectionColumns = `id, query, ai_answer, video_ids, metadata_json, created_at`

// CollectionsRepository handles data access for saved collections.
type CollectionsRepository struct {
	db *pgxpool.Pool
}

// NewCollectionsRepository creates a new collections repository.
func NewCollectionsRepository(db *pgxpool.Pool) *CollectionsRepository {
	return &CollectionsRepository{db: db}
}

func scanCollection(row pgx.Row, extra ...any) (models.Collection, error) {
	var c models.Collection

	dest := []any{&c.ID, &c.Query, &c.AIAnswer, &c.VideoIDs, &c.Metadata, &c.CreatedAt}
	err := row.Scan(append(dest, extra...)...)

	return c, err
}

func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}

	return pgvector.NewVector(v)
}

// Create inserts a collection. c.ID must be set by the caller.
func (r *CollectionsRepository) Create(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	videoIDs := c.VideoIDs
	if videoIDs == nil {
		videoIDs = []string{}
	}

	metadata := c.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO collections (id, query, query_embedding, ai_answer, video_ids, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+collectionColumns,
		c.ID, c.Query, nullableVector(c.QueryEmbedding), c.AIAnswer, videoIDs, metadata,
	)

	created, err := scanCollection(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &created, nil
}

// GetByID retrieves one collection.
func (r *CollectionsRepository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	c, err := scanCollection(r.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("collection", "collection not found")
		}

		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &c, nil
}

// List returns collections newest first.
func (r *CollectionsRepository) List(ctx context.Context, limit, offset int) ([]models.Collection, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+collectionColumns+`
		FROM collections
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	defer rows.Close()

	var out []models.Collection

	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return out, nil
}

// Delete removes a collection.
func (r *CollectionsRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("collection", "collection not found")
	}

	return nil
}

// Similar returns collections whose query embedding similarity to queryEmbedding is above
// minSimilarity, most similar first. Collections saved for excludeText (trimmed, case-insensitive)
// are left out before the limit applies.
func (r *CollectionsRepository) Similar(
	ctx context.Context, queryEmbedding []float32, excludeText string, minSimilarity float64, limit int,
) ([]models.CollectionMatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+collectionColumns+`, 1 - (query_embedding <=> $1) AS similarity
		FROM collections
		WHERE query_embedding IS NOT NULL
		  AND lower(regexp_replace(query, '^\s+|\s+$', '', 'g')) <> $2
		  AND 1 - (query_embedding <=> $1) > $3
		ORDER BY query_embedding <=> $1, id
		LIMIT $4`,
		pgvector.NewVector(queryEmbedding), normalizeQueryText(excludeText), minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similar collections: %w", err)
	}

	defer rows.Close()

	var out []models.CollectionMatch

	for rows.Next() {
		var similarity float64

		c, err := scanCollection(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("scan similar collection: %w", err)
		}

		out = append(out, models.CollectionMatch{Collection: c, Similarity: similarity})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating similar collections: %w", err)
	}

	return out, nil
}

// SetQueryEmbedding stores the embedding of a collection's query.
func (r *CollectionsRepository) SetQueryEmbedding(ctx context.Context, id string, embedding []float32) error {
	result, err := r.db.Exec(ctx,
		`UPDATE collections SET query_embedding = $2 WHERE id = $1`,
		id, nullableVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("set collection embedding: %w", err)
	}

	if result.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("collection", "collection not found")
	}

	return nil
}

// ListIDsForBackfill returns ids of collections without a query embedding.
func (r *CollectionsRepository) ListIDsForBackfill(ctx context.Context) ([]string, error) {
	return queryIDs(ctx, r.db, `
		SELECT id FROM collections
		WHERE query_embedding IS NULL
		ORDER BY created_at`)
}
