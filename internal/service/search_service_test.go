package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/reranker"
)

type fakeRetriever struct {
	candidates []models.Candidate
	err        error
	lastK      int
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, k int) ([]models.Candidate, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}

	if len(f.candidates) > k {
		return f.candidates[:k], nil
	}

	return f.candidates, nil
}

type scorerFunc func(ctx context.Context, query string, texts []string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	return f(ctx, query, texts)
}

func newTestReranker(scores map[string]float64) *reranker.Reranker {
	return reranker.New(reranker.Params{
		Load: func(context.Context) (reranker.Scorer, error) {
			return scorerFunc(func(_ context.Context, _ string, texts []string) ([]float64, error) {
				out := make([]float64, len(texts))
				for i, text := range texts {
					for marker, s := range scores {
						if strings.Contains(text, marker) {
							out[i] = s
						}
					}
				}

				return out, nil
			}), nil
		},
	})
}

func pastaCandidates() []models.Candidate {
	return []models.Candidate{
		models.NewCandidate(doc("v1", "Pasta basics", "marker-one boil the pasta in salted water"), 0.1),
		models.NewCandidate(doc("v2", "Sauce", "marker-two a quick tomato sauce for pasta"), 0.3),
		models.NewCandidate(doc("v3", "Plating", "marker-three plating cooked pasta"), 0.5),
	}
}

func TestSearchService_Search(t *testing.T) {
	t.Run("cooking pasta reranks three candidates", func(t *testing.T) {
		svc := NewSearchService(SearchServiceParams{
			Embedder:  &fakeEmbedder{},
			Retriever: &fakeRetriever{candidates: pastaCandidates()},
			Ranker:    newTestReranker(map[string]float64{"marker-one": 1, "marker-two": 3, "marker-three": 2}),
		})

		resp, err := svc.Search(context.Background(), &models.SearchRequest{Query: "cooking pasta"})
		require.NoError(t, err)
		require.LessOrEqual(t, len(resp.Hits), 3)
		assert.Equal(t, 3, resp.Total)

		var sum float64
		for _, h := range resp.Hits {
			sum += h.Score
		}
		assert.InDelta(t, 1.0, sum, 1e-6)

		assert.Equal(t, []string{"v2", "v3", "v1"}, []string{resp.Hits[0].VideoID, resp.Hits[1].VideoID, resp.Hits[2].VideoID})

		again, err := svc.Search(context.Background(), &models.SearchRequest{Query: "cooking pasta"})
		require.NoError(t, err)
		assert.Equal(t, resp.Hits[0].VideoID, again.Hits[0].VideoID)
	})

	t.Run("defaults and k truncation", func(t *testing.T) {
		retriever := &fakeRetriever{candidates: pastaCandidates()}
		svc := NewSearchService(SearchServiceParams{
			Embedder:  &fakeEmbedder{},
			Retriever: retriever,
			Ranker:    newTestReranker(nil),
		})

		resp, err := svc.Search(context.Background(), &models.SearchRequest{Query: "pasta", K: 2})
		require.NoError(t, err)
		assert.Equal(t, defaultSearchKANN, retriever.lastK)
		assert.Len(t, resp.Hits, 2)
	})

	t.Run("blank query returns empty response without embedding", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		svc := NewSearchService(SearchServiceParams{Embedder: embedder, Retriever: &fakeRetriever{}, Ranker: newTestReranker(nil)})

		resp, err := svc.Search(context.Background(), &models.SearchRequest{Query: "   "})
		require.NoError(t, err)
		assert.Empty(t, resp.Hits)
		assert.Equal(t, 0, resp.Total)
		assert.Equal(t, int32(0), embedder.calls.Load())
	})

	t.Run("embedding failure is fatal", func(t *testing.T) {
		svc := NewSearchService(SearchServiceParams{
			Embedder:  &fakeEmbedder{err: huberrors.NewUnavailableError("embedding model", errors.New("no key"))},
			Retriever: &fakeRetriever{},
			Ranker:    newTestReranker(nil),
		})

		_, err := svc.Search(context.Background(), &models.SearchRequest{Query: "pasta"})
		assert.ErrorIs(t, err, ErrEmbedding)
		assert.ErrorIs(t, err, huberrors.ErrUnavailable)
	})

	t.Run("retrieval failure is fatal", func(t *testing.T) {
		svc := NewSearchService(SearchServiceParams{
			Embedder:  &fakeEmbedder{},
			Retriever: NewRetriever(failingNearest{}, 0, nil, nil),
			Ranker:    newTestReranker(nil),
		})

		_, err := svc.Search(context.Background(), &models.SearchRequest{Query: "pasta"})
		assert.ErrorIs(t, err, ErrRetrieval)
	})
}

type failingNearest struct{}

func (failingNearest) NearestByEmbedding(context.Context, []float32, int, int) ([]models.Candidate, error) {
	return nil, errors.New("connection refused")
}

type countingNearest struct{ calls int }

func (c *countingNearest) NearestByEmbedding(context.Context, []float32, int, int) ([]models.Candidate, error) {
	c.calls++
	return nil, nil
}

func TestRetriever_Search(t *testing.T) {
	t.Run("non-positive k skips the store", func(t *testing.T) {
		repo := &countingNearest{}
		r := NewRetriever(repo, 40, nil, nil)

		got, err := r.Search(context.Background(), []float32{1}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 0, repo.calls)
	})

	t.Run("nil result becomes empty slice", func(t *testing.T) {
		r := NewRetriever(&countingNearest{}, 40, nil, nil)

		got, err := r.Search(context.Background(), []float32{1}, 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
