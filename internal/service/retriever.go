package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
)

// NearestRepository is the ANN read operation the retriever needs.
type NearestRepository interface {
	NearestByEmbedding(ctx context.Context, queryEmbedding []float32, k, efSearch int) ([]models.Candidate, error)
}

// Retriever runs approximate nearest-neighbour search over transcript embeddings.
type Retriever struct {
	repo     NearestRepository
	efSearch int
	metrics  observability.RetrievalMetrics
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. efSearch <= 0 keeps the index default; metrics may be nil.
func NewRetriever(repo NearestRepository, efSearch int, metrics observability.RetrievalMetrics, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}

	return &Retriever{repo: repo, efSearch: efSearch, metrics: metrics, logger: logger}
}

// Search returns at most k candidates by ascending cosine distance. Store errors wrap ErrRetrieval.
func (r *Retriever) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Candidate, error) {
	if k <= 0 {
		return []models.Candidate{}, nil
	}

	start := time.Now()

	candidates, err := r.repo.NearestByEmbedding(ctx, queryEmbedding, k, r.efSearch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	if r.metrics != nil {
		r.metrics.RecordANNSearch(ctx, len(candidates), time.Since(start))
	}

	r.logger.DebugContext(ctx, "ann search", "k", k, "candidates", len(candidates))

	if candidates == nil {
		candidates = []models.Candidate{}
	}

	return candidates, nil
}
