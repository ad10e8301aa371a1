package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
)

func transcriptsMux(svc TranscriptsService) *http.ServeMux {
	h := NewTranscriptsHandler(svc)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/videos/{video_id}/transcript", h.Get)
	mux.HandleFunc("PUT /v1/videos/{video_id}/transcript", h.Put)

	return mux
}

func TestTranscriptsHandler(t *testing.T) {
	t.Run("put replaces text", func(t *testing.T) {
		svc := &mockTranscripts{}
		svc.On("PutTranscript", mock.Anything, "yt_1", "new text").
			Return(&models.Transcript{VideoID: "yt_1", Text: "new text", UpdatedAt: time.Now()}, nil)

		rec := httptest.NewRecorder()
		transcriptsMux(svc).ServeHTTP(rec, jsonRequest(http.MethodPut, "/v1/videos/yt_1/transcript", `{"text":"new text"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"text":"new text"`)
	})

	t.Run("put for unknown video returns 404", func(t *testing.T) {
		svc := &mockTranscripts{}
		svc.On("PutTranscript", mock.Anything, "nope", "x").Return(nil, huberrors.NewNotFoundError("video", "video not found"))

		rec := httptest.NewRecorder()
		transcriptsMux(svc).ServeHTTP(rec, jsonRequest(http.MethodPut, "/v1/videos/nope/transcript", `{"text":"x"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("oversized body returns 413", func(t *testing.T) {
		svc := &mockTranscripts{}

		req := jsonRequest(http.MethodPut, "/v1/videos/yt_1/transcript", `{"text":"far too long for the limit"}`)
		rec := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(rec, req.Body, 10)

		transcriptsMux(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "PutTranscript", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("get failure returns 500", func(t *testing.T) {
		svc := &mockTranscripts{}
		svc.On("GetTranscript", mock.Anything, "yt_1").Return(nil, errors.New("conn reset"))

		rec := httptest.NewRecorder()
		transcriptsMux(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/videos/yt_1/transcript", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("down") })).
		Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
