package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipsearch/hub/internal/models"
)

func TestClient_PutTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/videos/yt%2F1/transcript", r.URL.EscapedPath())
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req models.PutTranscriptRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Transcript{VideoID: "yt/1", Text: req.Text})
	}))
	defer server.Close()

	got, err := NewClient(server.URL+"/", "key").PutTranscript(context.Background(), "yt/1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
}

func TestClient_ErrorsCarryProblemDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"video not found"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "key").PutTranscript(context.Background(), "nope", "x")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "video not found")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		_ = json.NewEncoder(w).Encode(models.SearchResponse{Query: "boots", Total: 3})
	}))
	defer server.Close()

	res, err := NewClient(server.URL, "key", WithRetryMax(2)).Search(context.Background(), &models.SearchRequest{Query: "boots"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, int32(2), calls.Load())
}
