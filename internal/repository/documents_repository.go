// Package repository provides PostgreSQL data access for videos, transcripts, feedback and collections.
package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
)

const documentColumns = `
	v.id, v.source, v.url, v.title, v.description, v.author, v.duration_sec, v.lang,
	v.metadata_json, v.created_at, COALESCE(t.text, '')`

// DocumentsRepository handles data access for videos and their transcripts.
type DocumentsRepository struct {
	db *pgxpool.Pool
}

// NewDocumentsRepository creates a new documents repository.
func NewDocumentsRepository(db *pgxpool.Pool) *DocumentsRepository {
	return &DocumentsRepository{db: db}
}

func scanDocument(row pgx.Row, extra ...any) (models.Document, error) {
	var doc models.Document

	dest := []any{
		&doc.VideoID, &doc.Source, &doc.URL, &doc.Title, &doc.Description, &doc.Author,
		&doc.DurationSec, &doc.Lang, &doc.Metadata, &doc.CreatedAt, &doc.TranscriptText,
	}

	err := row.Scan(append(dest, extra...)...)

	return doc, err
}

// NearestByEmbedding returns up to k documents ordered by ascending cosine distance to queryEmbedding,
// ties broken by video id. Only transcripts with an embedding take part. efSearch > 0 raises
// hnsw.ef_search for this transaction; failing to set it is not an error.
func (r *DocumentsRepository) NearestByEmbedding(
	ctx context.Context, queryEmbedding []float32, k, efSearch int,
) ([]models.Candidate, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin ann transaction: %w", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if efSearch > 0 {
		_ = setEfSearch(ctx, tx, efSearch)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+documentColumns+`, t.embedding <=> $1 AS distance
		FROM transcripts t
		INNER JOIN videos v ON v.id = t.video_id
		WHERE t.embedding IS NOT NULL
		ORDER BY t.embedding <=> $1
		LIMIT $2`, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("ann query: %w", err)
	}

	defer rows.Close()

	var candidates []models.Candidate

	for rows.Next() {
		var distance float64

		doc, err := scanDocument(rows, &distance)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		candidates = append(candidates, models.NewCandidate(doc, distance))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ann transaction: %w", err)
	}

	sortByDistance(candidates)

	return candidates, nil
}

// sortByDistance breaks distance ties by video id. Distance is the only SQL sort key so the
// HNSW index can serve the ORDER BY.
func sortByDistance(candidates []models.Candidate) {
	slices.SortStableFunc(candidates, func(x, y models.Candidate) int {
		return cmp.Or(cmp.Compare(x.ANNDistance, y.ANNDistance), strings.Compare(x.VideoID, y.VideoID))
	})
}

// setEfSearch runs inside a savepoint so a failure leaves the outer transaction usable.
func setEfSearch(ctx context.Context, tx pgx.Tx, efSearch int) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}

	if _, err := sp.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)); err != nil {
		_ = sp.Rollback(ctx)

		return err
	}

	return sp.Commit(ctx)
}

// GetByIDs returns the documents that exist among ids, in no particular order.
func (r *DocumentsRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM videos v
		LEFT JOIN transcripts t ON t.video_id = v.id
		WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get documents by ids: %w", err)
	}

	defer rows.Close()

	var docs []models.Document

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// GetByID retrieves one document with its transcript text.
func (r *DocumentsRepository) GetByID(ctx context.Context, videoID string) (*models.Document, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM videos v
		LEFT JOIN transcripts t ON t.video_id = v.id
		WHERE v.id = $1`, videoID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// GetTranscript returns the transcript of an existing video. A video without a transcript row
// yields empty text.
func (r *DocumentsRepository) GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error) {
	var t models.Transcript

	err := r.db.QueryRow(ctx, `
		SELECT v.id, COALESCE(t.text, ''), COALESCE(t.updated_at, v.created_at)
		FROM videos v
		LEFT JOIN transcripts t ON t.video_id = v.id
		WHERE v.id = $1`, videoID,
	).Scan(&t.VideoID, &t.Text, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("get transcript: %w", err)
	}

	return &t, nil
}

// PutTranscript replaces the transcript text and clears its embedding until it is recomputed.
func (r *DocumentsRepository) PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error) {
	now := time.Now()

	var t models.Transcript

	err := r.db.QueryRow(ctx, `
		INSERT INTO transcripts (video_id, text, embedding, updated_at)
		SELECT v.id, $2, NULL, $3 FROM videos v WHERE v.id = $1
		ON CONFLICT (video_id)
		DO UPDATE SET text = EXCLUDED.text, embedding = NULL, updated_at = EXCLUDED.updated_at
		RETURNING video_id, text, updated_at`,
		videoID, text, now,
	).Scan(&t.VideoID, &t.Text, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, huberrors.NewNotFoundError("video", "video not found")
		}

		return nil, fmt.Errorf("put transcript: %w", err)
	}

	return &t, nil
}

// SetEmbedding stores the transcript embedding computed from sourceText. A nil embedding clears it.
// When the stored text no longer equals sourceText nothing is written and huberrors.ErrConflict is
// returned; a missing transcript is huberrors.ErrNotFound.
func (r *DocumentsRepository) SetEmbedding(
	ctx context.Context, videoID, sourceText string, embedding []float32,
) error {
	var updated, exists bool

	err := r.db.QueryRow(ctx, `
		WITH updated AS (
			UPDATE transcripts SET embedding = $2
			WHERE video_id = $1 AND text = $3
			RETURNING video_id
		)
		SELECT EXISTS (SELECT 1 FROM updated),
			EXISTS (SELECT 1 FROM transcripts WHERE video_id = $1)`,
		videoID, nullableVector(embedding), sourceText,
	).Scan(&updated, &exists)
	if err != nil {
		return fmt.Errorf("set transcript embedding: %w", err)
	}

	switch {
	case updated:
		return nil
	case exists:
		return huberrors.NewConflictError("transcript", "transcript changed while it was being embedded")
	default:
		return huberrors.NewNotFoundError("transcript", "transcript not found")
	}
}

// ListVideoIDsForBackfill returns ids of transcripts with non-empty text and no embedding.
func (r *DocumentsRepository) ListVideoIDsForBackfill(ctx context.Context) ([]string, error) {
	return queryIDs(ctx, r.db, `
		SELECT video_id FROM transcripts
		WHERE embedding IS NULL AND btrim(text) != ''
		ORDER BY video_id`)
}

func queryIDs(ctx context.Context, db *pgxpool.Pool, sql string, args ...any) ([]string, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ids: %w", err)
	}

	return ids, nil
}
