package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorer_Score(t *testing.T) {
	t.Run("maps results back to input order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rerank", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var req rerankRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "pasta", req.Query)
			assert.Equal(t, []string{"a", "b", "c"}, req.Texts)
			assert.True(t, req.RawScores)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 2, Score: 5}, {Index: 0, Score: 1}, {Index: 1, Score: -2}})
		}))
		defer server.Close()

		s, err := NewHTTPScorer(HTTPScorerOptions{BaseURL: server.URL + "/", APIKey: "secret"})
		require.NoError(t, err)

		scores, err := s.Score(context.Background(), "pasta", []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, -2, 5}, scores)
	})

	t.Run("returns error on non 200", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "model loading", http.StatusBadRequest)
		}))
		defer server.Close()

		s, err := NewHTTPScorer(HTTPScorerOptions{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = s.Score(context.Background(), "pasta", []string{"a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
	})

	t.Run("rejects duplicate indexes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}, {Index: 0, Score: 2}})
		}))
		defer server.Close()

		s, err := NewHTTPScorer(HTTPScorerOptions{BaseURL: server.URL})
		require.NoError(t, err)

		_, err = s.Score(context.Background(), "pasta", []string{"a", "b"})
		assert.ErrorIs(t, err, ErrInvalidScores)
	})
}

func TestNewHTTPScorer_ValidatesURL(t *testing.T) {
	_, err := NewHTTPScorer(HTTPScorerOptions{BaseURL: ""})
	require.Error(t, err)

	_, err = NewHTTPScorer(HTTPScorerOptions{BaseURL: "localhost:8081"})
	require.Error(t, err)
}
