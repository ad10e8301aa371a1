package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/service"
)

func TestSearchHandler_Query(t *testing.T) {
	t.Run("success returns hits", func(t *testing.T) {
		search := &mockSearch{}
		search.On("Search", mock.Anything, &models.SearchRequest{Query: "quick pasta", K: 3}).
			Return(&models.SearchResponse{
				Query: "quick pasta",
				Hits:  []models.SearchHit{{VideoID: "v1", Score: 0.9, Snippet: "boil water"}},
				Total: 7,
			}, nil)

		rec := httptest.NewRecorder()
		NewSearchHandler(search, nil, nil).Query(rec, jsonRequest(http.MethodPost, "/v1/search/query", `{"query":"quick pasta","k":3}`))

		require.Equal(t, http.StatusOK, rec.Code)

		var body models.SearchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, 7, body.Total)
		require.Len(t, body.Hits, 1)
		assert.Equal(t, "v1", body.Hits[0].VideoID)
		search.AssertExpectations(t)
	})

	t.Run("invalid body returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSearchHandler(&mockSearch{}, nil, nil).Query(rec, jsonRequest(http.MethodPost, "/v1/search/query", `{"query":`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("k above limit returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSearchHandler(&mockSearch{}, nil, nil).Query(rec, jsonRequest(http.MethodPost, "/v1/search/query", `{"query":"x","k":500}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("retrieval failure returns 500 without cause", func(t *testing.T) {
		search := &mockSearch{}
		search.On("Search", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", service.ErrRetrieval, errors.New("password=hunter2")))

		rec := httptest.NewRecorder()
		NewSearchHandler(search, nil, nil).Query(rec, jsonRequest(http.MethodPost, "/v1/search/query", `{"query":"x"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}

func TestSearchHandler_RAG(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		rag := &mockRAG{}
		rag.On("Answer", mock.Anything, &models.RAGRequest{Query: "hiking boots"}).Return(&models.RAGResponse{
			Query:          "hiking boots",
			Answer:         "Waterproof boots [1].",
			Sources:        []models.RAGSource{{VideoID: "v2", SourceType: models.ProvenanceSearch}},
			ExcludedVideos: []models.ExcludedVideo{},
		}, nil)

		rec := httptest.NewRecorder()
		NewSearchHandler(nil, rag, nil).RAG(rec, jsonRequest(http.MethodPost, "/v1/search/rag", `{"query":"hiking boots"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"answer":"Waterproof boots [1]."`)
		rag.AssertExpectations(t)
	})

	t.Run("empty query returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSearchHandler(nil, &mockRAG{}, nil).RAG(rec, jsonRequest(http.MethodPost, "/v1/search/rag", `{"query":""}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unavailable generator returns 503", func(t *testing.T) {
		rag := &mockRAG{}
		rag.On("Answer", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: %w", service.ErrGeneration,
				huberrors.NewUnavailableError("generation model", errors.New("no key"))))

		rec := httptest.NewRecorder()
		NewSearchHandler(nil, rag, nil).RAG(rec, jsonRequest(http.MethodPost, "/v1/search/rag", `{"query":"q"}`))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("service validation error returns 400", func(t *testing.T) {
		rag := &mockRAG{}
		rag.On("Answer", mock.Anything, mock.Anything).
			Return(nil, huberrors.NewValidationError("query", "query must not be blank"))

		rec := httptest.NewRecorder()
		NewSearchHandler(nil, rag, nil).RAG(rec, jsonRequest(http.MethodPost, "/v1/search/rag", `{"query":"   "}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "query must not be blank")
	})
}

func TestSearchHandler_SimilarCollections(t *testing.T) {
	finder := &mockSimilarCollections{}
	finder.On("FindSimilarCollections", mock.Anything, "boots").Return(nil, nil)

	rec := httptest.NewRecorder()
	NewSearchHandler(nil, nil, finder).SimilarCollections(rec,
		jsonRequest(http.MethodPost, "/v1/search/similar-collections", `{"query":"boots"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"query":"boots","collections":[]}`, rec.Body.String())
}
