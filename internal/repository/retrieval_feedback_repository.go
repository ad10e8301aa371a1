package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tipsearch/hub/internal/models"
)

// RetrievalFeedbackRepository handles data access for the retrieval_feedback table.
type RetrievalFeedbackRepository struct {
	db *pgxpool.Pool
}

// NewRetrievalFeedbackRepository creates a new retrieval feedback repository.
func NewRetrievalFeedbackRepository(db *pgxpool.Pool) *RetrievalFeedbackRepository {
	return &RetrievalFeedbackRepository{db: db}
}

// Upsert inserts or replaces the label for (query, video_id). On conflict updates the label,
// the query embedding and updated_at.
func (r *RetrievalFeedbackRepository) Upsert(
	ctx context.Context, query string, queryEmbedding []float32, videoID string, label models.FeedbackLabel,
) (*models.FeedbackRecord, error) {
	now := time.Now()

	var rec models.FeedbackRecord

	err := r.db.QueryRow(ctx, `
		INSERT INTO retrieval_feedback (query, query_embedding, video_id, feedback, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (query, video_id)
		DO UPDATE SET feedback = EXCLUDED.feedback, query_embedding = EXCLUDED.query_embedding, updated_at = $5
		RETURNING query, video_id, feedback, created_at, updated_at`,
		query, pgvector.NewVector(queryEmbedding), videoID, string(label), now,
	).Scan(&rec.Query, &rec.VideoID, &rec.Label, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("retrieval feedback upsert: %w", err)
	}

	return &rec, nil
}

// Delete removes the label for (query, video_id) and returns the number of rows removed.
func (r *RetrievalFeedbackRepository) Delete(ctx context.Context, query, videoID string) (int64, error) {
	result, err := r.db.Exec(ctx,
		`DELETE FROM retrieval_feedback WHERE query = $1 AND video_id = $2`,
		query, videoID,
	)
	if err != nil {
		return 0, fmt.Errorf("retrieval feedback delete: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanVideoFeedback(rows pgx.Rows) ([]models.VideoFeedback, error) {
	defer rows.Close()

	var out []models.VideoFeedback

	for rows.Next() {
		var vf models.VideoFeedback
		if err := rows.Scan(&vf.VideoID, &vf.Label); err != nil {
			return nil, fmt.Errorf("scan video feedback: %w", err)
		}

		out = append(out, vf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating video feedback: %w", err)
	}

	return out, nil
}

// LabelsForVideos returns the most recent label per video among videoIDs for an exact query.
func (r *RetrievalFeedbackRepository) LabelsForVideos(
	ctx context.Context, query string, videoIDs []string,
) ([]models.VideoFeedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (video_id) video_id, feedback
		FROM retrieval_feedback
		WHERE query = $1 AND video_id = ANY($2)
		ORDER BY video_id, updated_at DESC`, query, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("labels for videos: %w", err)
	}

	return scanVideoFeedback(rows)
}

// ListByQuery returns every label stored under an exact query text, most recent first.
func (r *RetrievalFeedbackRepository) ListByQuery(ctx context.Context, query string) ([]models.VideoFeedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT video_id, feedback
		FROM retrieval_feedback
		WHERE query = $1
		ORDER BY updated_at DESC, video_id`, query)
	if err != nil {
		return nil, fmt.Errorf("list feedback by query: %w", err)
	}

	return scanVideoFeedback(rows)
}

// SimilarQueries returns distinct past queries whose embedding similarity to queryEmbedding is above
// minSimilarity, with the good and bad video ids recorded under each. Queries equal to excludeText
// after trimming and case folding are skipped before the limit applies.
func (r *RetrievalFeedbackRepository) SimilarQueries(
	ctx context.Context, queryEmbedding []float32, excludeText string, minSimilarity float64, limit int,
) ([]models.SimilarQuery, error) {
	rows, err := r.db.Query(ctx, `
		WITH candidates AS (
			SELECT query, MIN(query_embedding <=> $1) AS distance
			FROM retrieval_feedback
			WHERE query_embedding IS NOT NULL
			  AND lower(regexp_replace(query, '^\s+|\s+$', '', 'g')) <> $2
			GROUP BY query
			HAVING 1 - MIN(query_embedding <=> $1) > $3
			ORDER BY distance, query
			LIMIT $4
		)
		SELECT c.query, 1 - c.distance,
			COALESCE(array_agg(f.video_id ORDER BY f.video_id) FILTER (WHERE f.feedback = 'good'), '{}'),
			COALESCE(array_agg(f.video_id ORDER BY f.video_id) FILTER (WHERE f.feedback = 'bad'), '{}')
		FROM candidates c
		INNER JOIN retrieval_feedback f ON f.query = c.query
		GROUP BY c.query, c.distance
		ORDER BY c.distance, c.query`,
		pgvector.NewVector(queryEmbedding), normalizeQueryText(excludeText), minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similar queries: %w", err)
	}

	defer rows.Close()

	var out []models.SimilarQuery

	for rows.Next() {
		var sq models.SimilarQuery
		if err := rows.Scan(&sq.Query, &sq.Similarity, &sq.GoodVideos, &sq.BadVideos); err != nil {
			return nil, fmt.Errorf("scan similar query: %w", err)
		}

		out = append(out, sq)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating similar queries: %w", err)
	}

	return out, nil
}

// normalizeQueryText matches the SQL lower(trim(query)) comparison used to drop the caller's own query.
func normalizeQueryText(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
