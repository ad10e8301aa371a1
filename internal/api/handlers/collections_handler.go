package handlers

import (
	"context"
	"net/http"

	"github.com/tipsearch/hub/internal/api/response"
	"github.com/tipsearch/hub/internal/api/validation"
	"github.com/tipsearch/hub/internal/models"
)

// CollectionsService manages saved answers.
type CollectionsService interface {
	CreateCollection(ctx context.Context, req *models.CreateCollectionRequest) (*models.Collection, error)
	GetCollection(ctx context.Context, id string) (*models.CollectionDetail, error)
	ListCollections(ctx context.Context, filters *models.ListCollectionsFilters) ([]models.CollectionSummary, error)
	DeleteCollection(ctx context.Context, id string) error
}

// CollectionsHandler serves /v1/collections.
type CollectionsHandler struct {
	service CollectionsService
}

// NewCollectionsHandler creates a collections handler.
func NewCollectionsHandler(service CollectionsService) *CollectionsHandler {
	return &CollectionsHandler{service: service}
}

// DeleteCollectionResponse is returned by DELETE /v1/collections/{id}.
type DeleteCollectionResponse struct {
	Message      string `json:"message"`
	CollectionID string `json:"collection_id"`
}

// Create handles POST /v1/collections.
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCollectionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.service.CreateCollection(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to create collection")
		return
	}

	response.RespondJSON(w, http.StatusCreated, c)
}

// List handles GET /v1/collections.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var filters models.ListCollectionsFilters
	if err := validation.ValidateAndDecodeQueryParams(r, &filters); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	list, err := h.service.ListCollections(r.Context(), &filters)
	if err != nil {
		respondServiceError(w, r, err, "Failed to list collections")
		return
	}

	response.RespondJSON(w, http.StatusOK, list)
}

// Get handles GET /v1/collections/{id}.
func (h *CollectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCollection(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to get collection")
		return
	}

	response.RespondJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /v1/collections/{id}.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.DeleteCollection(r.Context(), id); err != nil {
		respondServiceError(w, r, err, "Failed to delete collection")
		return
	}

	response.RespondJSON(w, http.StatusOK, DeleteCollectionResponse{
		Message:      "Collection deleted successfully",
		CollectionID: id,
	})
}
