// Package reranker reorders ANN candidates with a cross-encoder and normalizes the scores
// into a probability distribution over the batch.
package reranker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
)

// TextField selects which document text is scored.
type TextField string

const (
	// FieldCombined scores "Title / Description / Transcript".
	FieldCombined TextField = "combined"
	// FieldTranscript scores the transcript only.
	FieldTranscript TextField = "transcript"
)

// DocumentText returns the text of doc that is scored for field.
func DocumentText(doc *models.Document, field TextField) string {
	if field == FieldTranscript {
		return doc.TranscriptText
	}

	return fmt.Sprintf("Title: %s\n\nDescription: %s\n\nTranscript: %s", doc.Title, doc.Description, doc.TranscriptText)
}

// LoadFunc constructs the scorer; it runs at most once per Reranker.
type LoadFunc func(ctx context.Context) (Scorer, error)

// Params holds dependencies for New.
type Params struct {
	Load    LoadFunc
	Window  WindowOptions
	Timeout time.Duration
	Metrics observability.RetrievalMetrics
	Logger  *slog.Logger
}

// Reranker scores candidates against a query. It never fails: when the scorer cannot be
// loaded or scoring fails, candidates come back in their input order with score 0.
type Reranker struct {
	scorer  func() (Scorer, error)
	window  WindowOptions
	timeout time.Duration
	metrics observability.RetrievalMetrics
	logger  *slog.Logger
}

// New creates a Reranker. The scorer is loaded lazily on the first non-empty Rerank call.
func New(params Params) *Reranker {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	window := params.Window
	if window.Radius <= 0 || window.PrefixLength <= 0 {
		window = DefaultWindowOptions
	}

	load := params.Load
	if load == nil {
		load = func(context.Context) (Scorer, error) { return nil, errors.New("no scorer configured") }
	}

	return &Reranker{
		scorer: sync.OnceValues(func() (Scorer, error) {
			s, err := load(context.Background())
			if err != nil {
				logger.Error("reranker: scorer failed to load, results will keep ANN order", "error", err)
				return nil, err
			}

			return s, nil
		}),
		window:  window,
		timeout: params.Timeout,
		metrics: params.Metrics,
		logger:  logger,
	}
}

// Rerank scores every candidate in one batch and returns them sorted by descending score,
// ties keeping their ANN order, with scores softmax-normalized to sum to 1.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []models.Candidate, field TextField) []models.RankedHit {
	if len(docs) == 0 {
		r.record(ctx, "empty", 0)
		return []models.RankedHit{}
	}

	start := time.Now()

	scores, err := r.score(ctx, query, docs, field)
	if err != nil {
		r.logger.WarnContext(ctx, "reranker: scoring failed, using ANN order",
			"error", err, "candidates", len(docs))
		r.record(ctx, "fallback", time.Since(start))

		return fallback(docs)
	}

	hits := make([]models.RankedHit, len(docs))
	for i := range docs {
		hits[i] = models.RankedHit{Candidate: docs[i], RerankScore: scores[i]}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RerankScore > hits[j].RerankScore
	})

	raw := make([]float64, len(hits))
	for i := range hits {
		raw[i] = hits[i].RerankScore
	}

	for i, p := range Softmax(raw) {
		hits[i].RerankScore = p
	}

	r.logger.DebugContext(ctx, "reranker: scored candidates",
		"candidates", len(hits), "top_video_id", hits[0].VideoID, "top_score", hits[0].RerankScore)
	r.record(ctx, "ok", time.Since(start))

	return hits
}

func (r *Reranker) score(ctx context.Context, query string, docs []models.Candidate, field TextField) ([]float64, error) {
	scorer, err := r.scorer()
	if err != nil {
		return nil, fmt.Errorf("load scorer: %w", err)
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = SelectWindow(DocumentText(&docs[i].Document, field), query, r.window)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	scores, err := scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	if len(scores) != len(docs) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates", ErrInvalidScores, len(scores), len(docs))
	}

	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: non-finite score", ErrInvalidScores)
		}
	}

	return scores, nil
}

func (r *Reranker) record(ctx context.Context, outcome string, d time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordRerank(ctx, outcome, d)
	}
}

func fallback(docs []models.Candidate) []models.RankedHit {
	hits := make([]models.RankedHit, len(docs))
	for i := range docs {
		hits[i] = models.RankedHit{Candidate: docs[i], RerankScore: 0}
	}

	return hits
}

// Softmax maps raw scores to probabilities summing to 1. The maximum is subtracted before
// exponentiation so large logits do not overflow.
func Softmax(raw []float64) []float64 {
	out := make([]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	maxScore := raw[0]
	for _, s := range raw[1:] {
		maxScore = max(maxScore, s)
	}

	var sum float64
	for i, s := range raw {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}
