package handlers

import (
	"context"
	"net/http"

	"github.com/tipsearch/hub/internal/api/response"
	"github.com/tipsearch/hub/internal/models"
)

// SearchService runs the rerank-backed transcript search.
type SearchService interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
}

// RAGService answers a question from the indexed transcripts.
type RAGService interface {
	Answer(ctx context.Context, req *models.RAGRequest) (*models.RAGResponse, error)
}

// SimilarCollectionsService finds saved collections close to a query.
type SimilarCollectionsService interface {
	FindSimilarCollections(ctx context.Context, query string) ([]models.SimilarCollection, error)
}

// SearchHandler serves /v1/search/query, /v1/search/rag and /v1/search/similar-collections.
type SearchHandler struct {
	search      SearchService
	rag         RAGService
	collections SimilarCollectionsService
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(search SearchService, rag RAGService, collections SimilarCollectionsService) *SearchHandler {
	return &SearchHandler{search: search, rag: rag, collections: collections}
}

// SimilarCollectionsResponse is the body returned by POST /v1/search/similar-collections.
type SimilarCollectionsResponse struct {
	Query       string                     `json:"query"`
	Collections []models.SimilarCollection `json:"collections"`
}

// Query handles POST /v1/search/query.
func (h *SearchHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.search.Search(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Search failed")
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// RAG handles POST /v1/search/rag.
func (h *SearchHandler) RAG(w http.ResponseWriter, r *http.Request) {
	var req models.RAGRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.rag.Answer(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to generate answer")
		return
	}

	response.RespondJSON(w, http.StatusOK, res)
}

// SimilarCollections handles POST /v1/search/similar-collections.
func (h *SearchHandler) SimilarCollections(w http.ResponseWriter, r *http.Request) {
	var req models.SimilarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	found, err := h.collections.FindSimilarCollections(r.Context(), req.Query)
	if err != nil {
		respondServiceError(w, r, err, "Failed to find similar collections")
		return
	}

	if found == nil {
		found = []models.SimilarCollection{}
	}

	response.RespondJSON(w, http.StatusOK, SimilarCollectionsResponse{Query: req.Query, Collections: found})
}
