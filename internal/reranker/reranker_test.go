package reranker

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/models"
)

type mockScorer struct {
	scoreFunc func(ctx context.Context, query string, texts []string) ([]float64, error)
	calls     atomic.Int32
}

func (m *mockScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	m.calls.Add(1)
	return m.scoreFunc(ctx, query, texts)
}

func newTestReranker(s Scorer) *Reranker {
	return New(Params{
		Load:    func(context.Context) (Scorer, error) { return s, nil },
		Timeout: time.Second,
	})
}

func candidates(ids ...string) []models.Candidate {
	out := make([]models.Candidate, len(ids))
	for i, id := range ids {
		out[i] = models.NewCandidate(models.Document{VideoID: id, Title: "title " + id, TranscriptText: "transcript " + id}, float64(i)*0.1)
	}
	return out
}

func ids(hits []models.RankedHit) []string {
	out := make([]string, len(hits))
	for i := range hits {
		out[i] = hits[i].VideoID
	}
	return out
}

func TestRerank_SortsByScoreAndNormalizes(t *testing.T) {
	scorer := &mockScorer{scoreFunc: func(_ context.Context, _ string, texts []string) ([]float64, error) {
		require.Len(t, texts, 4)
		return []float64{0.5, 3.0, -1.0, 3.0}, nil
	}}
	r := newTestReranker(scorer)

	hits := r.Rerank(context.Background(), "pasta", candidates("a", "b", "c", "d"), FieldCombined)

	require.Len(t, hits, 4)
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(hits), "ties keep ANN order")

	var sum float64
	for i, h := range hits {
		sum += h.RerankScore
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].RerankScore, h.RerankScore)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.InDelta(t, hits[0].RerankScore, hits[1].RerankScore, 1e-12)
	assert.Equal(t, int32(1), scorer.calls.Load(), "all pairs are scored in one batch")
}

func TestRerank_EmptyInputSkipsScorer(t *testing.T) {
	var loads atomic.Int32
	r := New(Params{Load: func(context.Context) (Scorer, error) {
		loads.Add(1)
		return nil, errors.New("must not load")
	}})

	hits := r.Rerank(context.Background(), "pasta", nil, FieldCombined)

	assert.NotNil(t, hits)
	assert.Empty(t, hits)
	assert.Equal(t, int32(0), loads.Load())
}

func TestRerank_Fallback(t *testing.T) {
	tests := []struct {
		name string
		r    *Reranker
	}{
		{
			name: "scorer error",
			r: newTestReranker(&mockScorer{scoreFunc: func(context.Context, string, []string) ([]float64, error) {
				return nil, errors.New("connection refused")
			}}),
		},
		{
			name: "wrong number of scores",
			r: newTestReranker(&mockScorer{scoreFunc: func(context.Context, string, []string) ([]float64, error) {
				return []float64{1}, nil
			}}),
		},
		{
			name: "non finite score",
			r: newTestReranker(&mockScorer{scoreFunc: func(context.Context, string, []string) ([]float64, error) {
				return []float64{1, math.NaN(), 2}, nil
			}}),
		},
		{
			name: "scorer fails to load",
			r: New(Params{Load: func(context.Context) (Scorer, error) {
				return nil, errors.New("model not found")
			}}),
		},
		{
			name: "deadline exceeded",
			r: New(Params{
				Timeout: 10 * time.Millisecond,
				Load: func(context.Context) (Scorer, error) {
					return &mockScorer{scoreFunc: func(ctx context.Context, _ string, _ []string) ([]float64, error) {
						<-ctx.Done()
						return nil, ctx.Err()
					}}, nil
				},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := tt.r.Rerank(context.Background(), "pasta", candidates("a", "b", "c"), FieldCombined)

			assert.Equal(t, []string{"a", "b", "c"}, ids(hits), "input order preserved")
			for _, h := range hits {
				assert.Zero(t, h.RerankScore)
			}
		})
	}
}

func TestRerank_LoadsScorerOnce(t *testing.T) {
	var loads atomic.Int32
	scorer := &mockScorer{scoreFunc: func(_ context.Context, _ string, texts []string) ([]float64, error) {
		return make([]float64, len(texts)), nil
	}}
	r := New(Params{Load: func(context.Context) (Scorer, error) {
		loads.Add(1)
		return scorer, nil
	}})

	for range 3 {
		r.Rerank(context.Background(), "pasta", candidates("a", "b"), FieldTranscript)
	}

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, int32(3), scorer.calls.Load())
}

func TestRerank_ScoresSelectedField(t *testing.T) {
	var got []string
	scorer := &mockScorer{scoreFunc: func(_ context.Context, _ string, texts []string) ([]float64, error) {
		got = texts
		return make([]float64, len(texts)), nil
	}}
	r := newTestReranker(scorer)

	r.Rerank(context.Background(), "xyz", candidates("a"), FieldCombined)
	assert.Equal(t, []string{"Title: title a\n\nDescription: \n\nTranscript: transcript a"}, got)

	r.Rerank(context.Background(), "xyz", candidates("a"), FieldTranscript)
	assert.Equal(t, []string{"transcript a"}, got)
}

func TestSoftmax(t *testing.T) {
	t.Run("sums to one and keeps order", func(t *testing.T) {
		p := Softmax([]float64{2, 1, 0.1})

		assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-9)
		assert.Greater(t, p[0], p[1])
		assert.Greater(t, p[1], p[2])
	})

	t.Run("large logits do not overflow", func(t *testing.T) {
		p := Softmax([]float64{1000, 999})

		assert.False(t, math.IsNaN(p[0]))
		assert.InDelta(t, 1.0, p[0]+p[1], 1e-9)
	})

	t.Run("single score becomes one", func(t *testing.T) {
		assert.Equal(t, []float64{1}, Softmax([]float64{-7.3}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Softmax(nil))
	})
}
