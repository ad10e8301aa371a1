package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/reranker"
)

const (
	defaultSearchK    = 10
	defaultSearchKANN = 50
)

// QueryEmbedder embeds query text (cached by the embeddings provider).
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CandidateRetriever is the ANN step.
type CandidateRetriever interface {
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Candidate, error)
}

// Ranker reorders candidates; it never fails.
type Ranker interface {
	Rerank(ctx context.Context, query string, docs []models.Candidate, field reranker.TextField) []models.RankedHit
}

// SearchService embeds a query, retrieves ANN candidates and reranks them.
type SearchService struct {
	embedder  QueryEmbedder
	retriever CandidateRetriever
	ranker    Ranker
	logger    *slog.Logger
}

// SearchServiceParams configures SearchService.
type SearchServiceParams struct {
	Embedder  QueryEmbedder
	Retriever CandidateRetriever
	Ranker    Ranker
	Logger    *slog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(p SearchServiceParams) *SearchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SearchService{
		embedder:  p.Embedder,
		retriever: p.Retriever,
		ranker:    p.Ranker,
		logger:    logger,
	}
}

// Search returns the top k reranked hits for the query out of kANN ANN candidates.
// A blank query returns an empty response without any model call.
func (s *SearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	resp := &models.SearchResponse{Query: req.Query, Hits: []models.SearchHit{}}

	if strings.TrimSpace(req.Query) == "" {
		return resp, nil
	}

	k := req.K
	if k <= 0 {
		k = defaultSearchK
	}

	kANN := req.KANN
	if kANN <= 0 {
		kANN = defaultSearchKANN
	}

	hits, total, err := s.Retrieve(ctx, req.Query, kANN, k)
	if err != nil {
		return nil, err
	}

	for i := range hits {
		h := &hits[i]
		resp.Hits = append(resp.Hits, models.SearchHit{
			VideoID:     h.VideoID,
			Title:       h.Title,
			Author:      h.Author,
			URL:         h.URL,
			Description: h.Description,
			Score:       h.RerankScore,
			Snippet:     h.Snippet,
		})
	}

	resp.Total = total

	return resp, nil
}

// Retrieve runs embed, ANN and rerank and returns at most limit hits with snippets, plus the number
// of ANN candidates considered.
func (s *SearchService) Retrieve(ctx context.Context, query string, kANN, limit int) ([]models.RankedHit, int, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	candidates, err := s.retriever.Search(ctx, vec, kANN)
	if err != nil {
		return nil, 0, err
	}

	ranked := s.ranker.Rerank(ctx, query, candidates, reranker.FieldCombined)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	for i := range ranked {
		ranked[i].Snippet = MakeSnippet(ranked[i].TranscriptText, query)
	}

	s.logger.DebugContext(ctx, "search completed",
		"candidates", len(candidates), "hits", len(ranked))

	return ranked, len(candidates), nil
}
