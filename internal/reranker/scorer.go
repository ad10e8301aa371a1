package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Scorer assigns one relevance score per (query, text) pair in a single batch call.
// The returned slice is index-aligned with texts.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ErrInvalidScores is returned when a scoring response does not cover every input exactly once.
var ErrInvalidScores = errors.New("reranker: invalid scores in response")

// HTTPScorerOptions configures an HTTPScorer.
type HTTPScorerOptions struct {
	// BaseURL of a text-embeddings-inference style server exposing POST /rerank.
	BaseURL string
	APIKey  string
	// RetryMax is the number of retries on connection errors and 5xx (default: 1).
	RetryMax int
	// Timeout per HTTP attempt (default: 20s).
	Timeout time.Duration
}

// HTTPScorer calls a cross-encoder served over HTTP.
type HTTPScorer struct {
	endpoint   string
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewHTTPScorer validates opts and creates an HTTPScorer.
func NewHTTPScorer(opts HTTPScorerOptions) (*HTTPScorer, error) {
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("reranker: base URL is required")
	}

	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("reranker: base URL must be http(s): %q", opts.BaseURL)
	}

	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 1
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil

	return &HTTPScorer{
		endpoint:   base + "/rerank",
		apiKey:     opts.APIKey,
		httpClient: retryClient,
	}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score posts all pairs in one request and returns raw (pre-sigmoid) logits in input order.
func (s *HTTPScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts, RawScores: true, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	return alignScores(results, len(texts))
}

func alignScores(results []rerankResult, n int) ([]float64, error) {
	if len(results) != n {
		return nil, fmt.Errorf("%w: got %d scores for %d texts", ErrInvalidScores, len(results), n)
	}

	scores := make([]float64, n)
	seen := make([]bool, n)

	for _, r := range results {
		if r.Index < 0 || r.Index >= n || seen[r.Index] {
			return nil, fmt.Errorf("%w: bad index %d", ErrInvalidScores, r.Index)
		}

		seen[r.Index] = true
		scores[r.Index] = r.Score
	}

	return scores, nil
}
