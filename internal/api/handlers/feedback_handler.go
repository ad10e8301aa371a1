package handlers

import (
	"context"
	"net/http"

	"github.com/tipsearch/hub/internal/api/response"
	"github.com/tipsearch/hub/internal/models"
)

// FeedbackService stores and looks up retrieval feedback.
type FeedbackService interface {
	SaveFeedback(ctx context.Context, req *models.SaveFeedbackRequest) (*models.FeedbackRecord, error)
	DeleteFeedback(ctx context.Context, query, videoID string) (int64, error)
	GetFeedback(ctx context.Context, query string, videoIDs []string) ([]models.VideoFeedback, error)
	FindSimilarQueries(ctx context.Context, query string) ([]models.SimilarQuery, error)
}

// FeedbackHandler serves the /v1/search/feedback routes and similar-queries.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// SaveFeedbackResponse is returned by POST /v1/search/feedback.
type SaveFeedbackResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message"`
	Feedback *models.FeedbackRecord `json:"feedback"`
}

// DeleteFeedbackResponse is returned by DELETE /v1/search/feedback.
type DeleteFeedbackResponse struct {
	Deleted int64 `json:"deleted"`
}

// GetFeedbackResponse is returned by POST /v1/search/feedback/get.
type GetFeedbackResponse struct {
	Query    string                 `json:"query"`
	Feedback []models.VideoFeedback `json:"feedback"`
}

// SimilarQueriesResponse is returned by POST /v1/search/similar-queries.
type SimilarQueriesResponse struct {
	Query          string                `json:"query"`
	SimilarQueries []models.SimilarQuery `json:"similar_queries"`
}

// Save handles POST /v1/search/feedback.
func (h *FeedbackHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req models.SaveFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	record, err := h.service.SaveFeedback(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err, "Failed to save feedback")
		return
	}

	response.RespondJSON(w, http.StatusCreated, SaveFeedbackResponse{
		Status:   "success",
		Message:  "Feedback saved",
		Feedback: record,
	})
}

// Delete handles DELETE /v1/search/feedback. Deleting feedback that does not exist reports 0.
func (h *FeedbackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deleted, err := h.service.DeleteFeedback(r.Context(), req.Query, req.VideoID)
	if err != nil {
		respondServiceError(w, r, err, "Failed to delete feedback")
		return
	}

	response.RespondJSON(w, http.StatusOK, DeleteFeedbackResponse{Deleted: deleted})
}

// Get handles POST /v1/search/feedback/get.
func (h *FeedbackHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req models.GetFeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}

	labels, err := h.service.GetFeedback(r.Context(), req.Query, req.VideoIDs)
	if err != nil {
		respondServiceError(w, r, err, "Failed to get feedback")
		return
	}

	if labels == nil {
		labels = []models.VideoFeedback{}
	}

	response.RespondJSON(w, http.StatusOK, GetFeedbackResponse{Query: req.Query, Feedback: labels})
}

// SimilarQueries handles POST /v1/search/similar-queries.
func (h *FeedbackHandler) SimilarQueries(w http.ResponseWriter, r *http.Request) {
	var req models.SimilarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	similar, err := h.service.FindSimilarQueries(r.Context(), req.Query)
	if err != nil {
		respondServiceError(w, r, err, "Failed to find similar queries")
		return
	}

	if similar == nil {
		similar = []models.SimilarQuery{}
	}

	response.RespondJSON(w, http.StatusOK, SimilarQueriesResponse{Query: req.Query, SimilarQueries: similar})
}
