// Package workers provides River job workers that keep transcript and collection embeddings current.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/internal/service"
)

const (
	documentKind   = "document"
	collectionKind = "collection"

	embeddingJobTimeout = 30 * time.Second
	maxEmbeddingChars   = 5000

	// supersededSnooze delays the rerun of a job whose transcript changed mid-flight.
	supersededSnooze = 5 * time.Second
)

// Embedder produces a document embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// documentEmbeddingStore is the minimal interface needed by the document worker.
type documentEmbeddingStore interface {
	GetByID(ctx context.Context, videoID string) (*models.Document, error)
	SetEmbedding(ctx context.Context, videoID, sourceText string, embedding []float32) error
}

// DocumentEmbeddingText is what gets embedded for a video: its caption and transcript, capped at
// 5000 characters.
func DocumentEmbeddingText(doc *models.Document) string {
	text := "Caption: " + doc.Description + "\n\nTranscript: " + doc.TranscriptText

	runes := []rune(text)
	if len(runes) > maxEmbeddingChars {
		return string(runes[:maxEmbeddingChars]) + "..."
	}

	return text
}

// DocumentEmbeddingWorker computes and stores the embedding of one transcript.
type DocumentEmbeddingWorker struct {
	river.WorkerDefaults[service.DocumentEmbeddingArgs]

	store    documentEmbeddingStore
	embedder Embedder
	limiter  *rate.Limiter
	metrics  observability.EmbeddingMetrics
}

// NewDocumentEmbeddingWorker creates the worker. limiter and metrics may be nil.
func NewDocumentEmbeddingWorker(
	store documentEmbeddingStore, embedder Embedder, limiter *rate.Limiter, metrics observability.EmbeddingMetrics,
) *DocumentEmbeddingWorker {
	return &DocumentEmbeddingWorker{store: store, embedder: embedder, limiter: limiter, metrics: metrics}
}

// Timeout limits how long a single embedding job can run.
func (w *DocumentEmbeddingWorker) Timeout(*river.Job[service.DocumentEmbeddingArgs]) time.Duration {
	return embeddingJobTimeout
}

// Work loads the document, embeds or clears it, and persists the result. The write only lands if
// the transcript still holds the text that was embedded; otherwise the job is snoozed and reruns
// against the new text, since a running job absorbs the enqueue made by the later update.
func (w *DocumentEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.DocumentEmbeddingArgs]) error {
	videoID := job.Args.VideoID
	start := time.Now()
	o := outcome{ctx: ctx, kind: documentKind, start: start, metrics: w.metrics}

	doc, err := w.store.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			o.workerError("load_failed")
			o.done("failed_final")
			slog.WarnContext(ctx, "embedding: video no longer exists", "video_id", videoID)

			return nil
		}

		o.workerError("load_failed")
		o.done("failed")

		return fmt.Errorf("load document: %w", err)
	}

	if strings.TrimSpace(doc.TranscriptText) == "" {
		err := w.store.SetEmbedding(ctx, videoID, doc.TranscriptText, nil)
		if errors.Is(err, huberrors.ErrConflict) {
			return w.superseded(ctx, videoID, &o)
		}

		if err != nil && !errors.Is(err, huberrors.ErrNotFound) {
			o.workerError("update_failed")
			o.done("failed")

			return fmt.Errorf("clear transcript embedding: %w", err)
		}

		o.done("cleared")
		slog.InfoContext(ctx, "embedding: cleared (empty transcript)", "video_id", videoID)

		return nil
	}

	embedding, err := embedWithLimit(ctx, w.embedder, w.limiter, DocumentEmbeddingText(doc), job.JobRow, &o)
	if errors.Is(err, errFinalAttempt) {
		return nil
	}

	if err != nil {
		return err
	}

	if err := w.store.SetEmbedding(ctx, videoID, doc.TranscriptText, embedding); err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			o.done("skipped")
			return nil
		}

		if errors.Is(err, huberrors.ErrConflict) {
			return w.superseded(ctx, videoID, &o)
		}

		o.workerError("update_failed")
		o.done("failed")

		return fmt.Errorf("set transcript embedding: %w", err)
	}

	o.done("success")
	slog.InfoContext(ctx, "embedding: stored", "video_id", videoID, "duration", time.Since(start))

	return nil
}

func (w *DocumentEmbeddingWorker) superseded(ctx context.Context, videoID string, o *outcome) error {
	o.done("superseded")
	slog.InfoContext(ctx, "embedding: transcript changed, rerunning", "video_id", videoID)

	return river.JobSnooze(supersededSnooze)
}
