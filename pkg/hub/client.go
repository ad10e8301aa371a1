// Package hub is a Go client for the transcript hub HTTP API.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tipsearch/hub/internal/models"
)

const defaultTimeout = 120 * time.Second

// APIError is a non-2xx response. Title and Detail come from the RFC 7807 body when present.
type APIError struct {
	StatusCode int
	Title      string `json:"title"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("hub: %d %s: %s", e.StatusCode, e.Title, e.Detail)
	}

	return fmt.Sprintf("hub: status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the hub.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the hub API with an API key. Transient failures (connection errors, 5xx, 429)
// are retried.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*retryablehttp.Client)

// WithRetryMax sets the number of retries after the first attempt.
func WithRetryMax(n int) Option {
	return func(c *retryablehttp.Client) { c.RetryMax = n }
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *retryablehttp.Client) { c.HTTPClient.Timeout = d }
}

// NewClient creates a client for the hub at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = defaultTimeout

	for _, opt := range opts {
		opt(rc)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    rc.StandardClient(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("hub: encode request: %w", err)
		}

		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("hub: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hub: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)

		return apiErr
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hub: decode response: %w", err)
	}

	return nil
}

// Search runs POST /v1/search/query.
func (c *Client) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search/query", req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Answer runs POST /v1/search/rag.
func (c *Client) Answer(ctx context.Context, req *models.RAGRequest) (*models.RAGResponse, error) {
	var out models.RAGResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search/rag", req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SaveFeedback runs POST /v1/search/feedback.
func (c *Client) SaveFeedback(ctx context.Context, query, videoID string, label models.FeedbackLabel) error {
	return c.do(ctx, http.MethodPost, "/v1/search/feedback", &models.SaveFeedbackRequest{
		Query: query, VideoID: videoID, Feedback: string(label),
	}, nil)
}

// CreateCollection runs POST /v1/collections.
func (c *Client) CreateCollection(ctx context.Context, req *models.CreateCollectionRequest) (*models.Collection, error) {
	var out models.Collection
	if err := c.do(ctx, http.MethodPost, "/v1/collections", req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// PutTranscript replaces a video's transcript; the hub re-embeds it in the background.
func (c *Client) PutTranscript(ctx context.Context, videoID, text string) (*models.Transcript, error) {
	var out models.Transcript

	path := "/v1/videos/" + url.PathEscape(videoID) + "/transcript"
	if err := c.do(ctx, http.MethodPut, path, &models.PutTranscriptRequest{Text: text}, &out); err != nil {
		return nil, err
	}

	return &out, nil
}
