package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
)

const (
	similarQueryThreshold = 0.85
	similarQueryLimit     = 5
)

// FeedbackStore is the retrieval_feedback data access the service needs.
type FeedbackStore interface {
	Upsert(
		ctx context.Context, query string, queryEmbedding []float32, videoID string, label models.FeedbackLabel,
	) (*models.FeedbackRecord, error)
	Delete(ctx context.Context, query, videoID string) (int64, error)
	LabelsForVideos(ctx context.Context, query string, videoIDs []string) ([]models.VideoFeedback, error)
	ListByQuery(ctx context.Context, query string) ([]models.VideoFeedback, error)
	SimilarQueries(
		ctx context.Context, queryEmbedding []float32, excludeText string, minSimilarity float64, limit int,
	) ([]models.SimilarQuery, error)
}

// FeedbackService records relevance judgments and finds past queries similar to a new one.
type FeedbackService struct {
	embedder QueryEmbedder
	store    FeedbackStore
	metrics  observability.RetrievalMetrics
	logger   *slog.Logger
}

// NewFeedbackService creates a FeedbackService. metrics may be nil.
func NewFeedbackService(
	embedder QueryEmbedder, store FeedbackStore, metrics observability.RetrievalMetrics, logger *slog.Logger,
) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackService{embedder: embedder, store: store, metrics: metrics, logger: logger}
}

// SaveFeedback validates the label, embeds the query and upserts the judgment for (query, videoID).
func (s *FeedbackService) SaveFeedback(ctx context.Context, req *models.SaveFeedbackRequest) (*models.FeedbackRecord, error) {
	label, err := models.ParseFeedbackLabel(req.Feedback)
	if err != nil {
		return nil, huberrors.NewValidationError("feedback", err.Error())
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, huberrors.NewValidationError("query", ErrEmptyQuery.Error())
	}

	if strings.TrimSpace(req.VideoID) == "" {
		return nil, huberrors.NewValidationError("video_id", "video_id is required")
	}

	vec, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	rec, err := s.store.Upsert(ctx, req.Query, vec, req.VideoID, label)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordFeedbackSaved(ctx, string(label))
	}

	s.logger.InfoContext(ctx, "feedback saved", "video_id", req.VideoID, "feedback", label)

	return rec, nil
}

// DeleteFeedback removes the judgment for (query, videoID). A missing pair deletes nothing and is not an error.
func (s *FeedbackService) DeleteFeedback(ctx context.Context, query, videoID string) (int64, error) {
	deleted, err := s.store.Delete(ctx, query, videoID)
	if err != nil {
		return 0, err
	}

	if s.metrics != nil && deleted > 0 {
		s.metrics.RecordFeedbackDeleted(ctx, deleted)
	}

	return deleted, nil
}

// GetFeedback returns the latest label for each of videoIDs that has one under query.
func (s *FeedbackService) GetFeedback(ctx context.Context, query string, videoIDs []string) ([]models.VideoFeedback, error) {
	if len(videoIDs) == 0 {
		return []models.VideoFeedback{}, nil
	}

	labels, err := s.store.LabelsForVideos(ctx, query, videoIDs)
	if err != nil {
		return nil, err
	}

	if labels == nil {
		labels = []models.VideoFeedback{}
	}

	return labels, nil
}

// ListFeedbackByQuery returns every judgment stored under an exact query text.
func (s *FeedbackService) ListFeedbackByQuery(ctx context.Context, query string) ([]models.VideoFeedback, error) {
	return s.store.ListByQuery(ctx, query)
}

// FindSimilarQueries returns up to 5 past queries with similarity above 0.85, excluding the query itself.
func (s *FeedbackService) FindSimilarQueries(ctx context.Context, query string) ([]models.SimilarQuery, error) {
	if strings.TrimSpace(query) == "" {
		return []models.SimilarQuery{}, nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	similar, err := s.store.SimilarQueries(ctx, vec, query, similarQueryThreshold, similarQueryLimit)
	if err != nil {
		return nil, err
	}

	if similar == nil {
		similar = []models.SimilarQuery{}
	}

	return similar, nil
}
