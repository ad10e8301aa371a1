package handlers

import (
	"context"
	"net/http"

	"github.com/tipsearch/hub/internal/api/response"
	"github.com/tipsearch/hub/internal/models"
)

// TranscriptsService reads and replaces transcripts.
type TranscriptsService interface {
	GetTranscript(ctx context.Context, videoID string) (*models.Transcript, error)
	PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error)
}

// TranscriptsHandler serves /v1/videos/{video_id}/transcript.
type TranscriptsHandler struct {
	service TranscriptsService
}

// NewTranscriptsHandler creates a transcripts handler.
func NewTranscriptsHandler(service TranscriptsService) *TranscriptsHandler {
	return &TranscriptsHandler{service: service}
}

// Get handles GET /v1/videos/{video_id}/transcript.
func (h *TranscriptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTranscript(r.Context(), r.PathValue("video_id"))
	if err != nil {
		respondServiceError(w, r, err, "Failed to get transcript")
		return
	}

	response.RespondJSON(w, http.StatusOK, t)
}

// Put handles PUT /v1/videos/{video_id}/transcript. The embedding is recomputed in the background.
func (h *TranscriptsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req models.PutTranscriptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := h.service.PutTranscript(r.Context(), r.PathValue("video_id"), req.Text)
	if err != nil {
		respondServiceError(w, r, err, "Failed to update transcript")
		return
	}

	response.RespondJSON(w, http.StatusOK, t)
}
