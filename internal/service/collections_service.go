package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tipsearch/hub/internal/models"
)

const (
	similarCollectionThreshold = 0.50
	similarCollectionLimit     = 10
	defaultCollectionPageSize  = 50
)

// CollectionStore is the collections data access the service needs.
type CollectionStore interface {
	Create(ctx context.Context, c *models.Collection) (*models.Collection, error)
	GetByID(ctx context.Context, id string) (*models.Collection, error)
	List(ctx context.Context, limit, offset int) ([]models.Collection, error)
	Delete(ctx context.Context, id string) error
	Similar(
		ctx context.Context, queryEmbedding []float32, excludeText string, minSimilarity float64, limit int,
	) ([]models.CollectionMatch, error)
}

// DocumentLookup resolves video ids to documents.
type DocumentLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.Document, error)
}

// CollectionEnqueuer schedules a query embedding for a stored collection.
type CollectionEnqueuer interface {
	EnqueueCollection(ctx context.Context, collectionID string) error
}

// CollectionsService manages saved collections and finds collections similar to a query.
type CollectionsService struct {
	embedder QueryEmbedder
	store    CollectionStore
	docs     DocumentLookup
	enqueuer CollectionEnqueuer
	logger   *slog.Logger
}

// CollectionsServiceParams configures CollectionsService. Enqueuer may be nil.
type CollectionsServiceParams struct {
	Embedder QueryEmbedder
	Store    CollectionStore
	Docs     DocumentLookup
	Enqueuer CollectionEnqueuer
	Logger   *slog.Logger
}

// NewCollectionsService creates a CollectionsService.
func NewCollectionsService(p CollectionsServiceParams) *CollectionsService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &CollectionsService{
		embedder: p.Embedder,
		store:    p.Store,
		docs:     p.Docs,
		enqueuer: p.Enqueuer,
		logger:   logger,
	}
}

// CreateCollection stores a collection with its query embedding. When embedding fails the collection
// is saved without one and a background job is scheduled to fill it in.
func (s *CollectionsService) CreateCollection(ctx context.Context, req *models.CreateCollectionRequest) (*models.Collection, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}

	c := &models.Collection{
		ID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		Query:    req.Query,
		AIAnswer: req.AIAnswer,
		VideoIDs: req.VideoIDs,
		Metadata: req.Metadata,
	}

	vec, embedErr := s.embedder.EmbedQuery(ctx, req.Query)
	if embedErr == nil {
		c.QueryEmbedding = vec
	}

	created, err := s.store.Create(ctx, c)
	if err != nil {
		return nil, err
	}

	if embedErr != nil {
		s.logger.WarnContext(ctx, "collection saved without query embedding",
			"collection_id", created.ID, "error", embedErr)

		if s.enqueuer != nil {
			_ = s.enqueuer.EnqueueCollection(ctx, created.ID)
		}
	}

	return created, nil
}

// GetCollection returns a collection with its videos in stored order. Deleted videos are skipped.
func (s *CollectionsService) GetCollection(ctx context.Context, id string) (*models.CollectionDetail, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	docs, err := s.documentsByID(ctx, c.VideoIDs)
	if err != nil {
		return nil, err
	}

	detail := collectionDetail(c, docs, false)

	return &detail, nil
}

// ListCollections returns collection summaries, newest first.
func (s *CollectionsService) ListCollections(
	ctx context.Context, filters *models.ListCollectionsFilters,
) ([]models.CollectionSummary, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultCollectionPageSize
	}

	list, err := s.store.List(ctx, limit, max(0, filters.Offset))
	if err != nil {
		return nil, err
	}

	out := make([]models.CollectionSummary, 0, len(list))
	for _, c := range list {
		out = append(out, models.CollectionSummary{
			ID:         c.ID,
			Query:      c.Query,
			AIAnswer:   c.AIAnswer,
			VideoCount: len(c.VideoIDs),
			CreatedAt:  c.CreatedAt,
		})
	}

	return out, nil
}

// DeleteCollection removes a collection; a missing id is huberrors.ErrNotFound.
func (s *CollectionsService) DeleteCollection(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// FindSimilarCollections returns up to 10 collections whose query similarity is above 0.5, with
// their videos resolved and scored from the collection metadata. Collections saved for the same
// query text (trimmed, case-insensitive) are never returned.
func (s *CollectionsService) FindSimilarCollections(ctx context.Context, query string) ([]models.SimilarCollection, error) {
	if strings.TrimSpace(query) == "" {
		return []models.SimilarCollection{}, nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	matches, err := s.store.Similar(ctx, vec, query, similarCollectionThreshold, similarCollectionLimit)
	if err != nil {
		return nil, err
	}

	self := strings.ToLower(strings.TrimSpace(query))
	matches = slices.DeleteFunc(matches, func(m models.CollectionMatch) bool {
		return strings.ToLower(strings.TrimSpace(m.Query)) == self
	})

	var ids []string
	for i := range matches {
		ids = append(ids, matches[i].VideoIDs...)
	}

	docs, err := s.documentsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.SimilarCollection, 0, len(matches))
	for i := range matches {
		out = append(out, models.SimilarCollection{
			CollectionDetail: collectionDetail(&matches[i].Collection, docs, true),
			Similarity:       matches[i].Similarity,
		})
	}

	return out, nil
}

func (s *CollectionsService) documentsByID(ctx context.Context, ids []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	docs, err := s.docs.GetByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, err
	}

	for _, d := range docs {
		out[d.VideoID] = d
	}

	return out, nil
}

// collectionDetail resolves videos in stored order. preferScores picks metadata.source_scores over
// metadata.sources when both carry a score.
func collectionDetail(c *models.Collection, docs map[string]models.Document, preferScores bool) models.CollectionDetail {
	scores := c.SourceScores()
	sources := c.SourceDetails()

	videos := make([]models.CollectionVideo, 0, len(c.VideoIDs))

	for _, id := range c.VideoIDs {
		doc, ok := docs[id]
		if !ok {
			continue
		}

		src := sources[id]

		score := src.Score
		if s, ok := scores[id]; ok && (preferScores || score == nil) {
			score = &s
		}

		videos = append(videos, models.CollectionVideo{
			VideoID:     doc.VideoID,
			Title:       doc.Title,
			Author:      doc.Author,
			URL:         doc.URL,
			Description: doc.Description,
			Score:       score,
			Snippet:     src.Snippet,
		})
	}

	return models.CollectionDetail{
		ID:        c.ID,
		Query:     c.Query,
		AIAnswer:  c.AIAnswer,
		Videos:    videos,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
	}
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))

	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
