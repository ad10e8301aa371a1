package googleai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), "test-key", WithBaseURL(server.URL))
	require.NoError(t, err)

	return client
}

func TestClient_Generate(t *testing.T) {
	client := newTestClient(t, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Wear boots."}]}}]}`)

	out, err := client.Generate(context.Background(), "what to wear?")
	require.NoError(t, err)
	assert.Equal(t, "Wear boots.", out)
}

func TestClient_Generate_EmptyReplyIsNotAnError(t *testing.T) {
	for name, body := range map[string]string{
		"no candidates": `{"candidates":[]}`,
		"blank text":    `{"candidates":[{"content":{"role":"model","parts":[{"text":""}]},"finishReason":"SAFETY"}]}`,
		"no parts":      `{"candidates":[{"finishReason":"SAFETY"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := newTestClient(t, body).Generate(context.Background(), "what to wear?")
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestClient_Generate_EmptyPrompt(t *testing.T) {
	client := newTestClient(t, `{}`)

	_, err := client.Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}
