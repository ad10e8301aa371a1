package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/internal/service"
)

type collectionEmbeddingStore interface {
	GetByID(ctx context.Context, id string) (*models.Collection, error)
	SetQueryEmbedding(ctx context.Context, id string, embedding []float32) error
}

// CollectionEmbeddingWorker fills in the query embedding of a saved collection.
type CollectionEmbeddingWorker struct {
	river.WorkerDefaults[service.CollectionEmbeddingArgs]

	store    collectionEmbeddingStore
	embedder Embedder
	limiter  *rate.Limiter
	metrics  observability.EmbeddingMetrics
}

// NewCollectionEmbeddingWorker creates the worker. limiter and metrics may be nil.
func NewCollectionEmbeddingWorker(
	store collectionEmbeddingStore, embedder Embedder, limiter *rate.Limiter, metrics observability.EmbeddingMetrics,
) *CollectionEmbeddingWorker {
	return &CollectionEmbeddingWorker{store: store, embedder: embedder, limiter: limiter, metrics: metrics}
}

// Timeout limits how long a single embedding job can run.
func (w *CollectionEmbeddingWorker) Timeout(*river.Job[service.CollectionEmbeddingArgs]) time.Duration {
	return embeddingJobTimeout
}

func (w *CollectionEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.CollectionEmbeddingArgs]) error {
	id := job.Args.CollectionID
	o := outcome{ctx: ctx, kind: collectionKind, start: time.Now(), metrics: w.metrics}

	c, err := w.store.GetByID(ctx, id)
	if err != nil {
		o.workerError("load_failed")

		if errors.Is(err, huberrors.ErrNotFound) {
			o.done("failed_final")
			return nil
		}

		o.done("failed")

		return fmt.Errorf("load collection: %w", err)
	}

	embedding, err := embedWithLimit(ctx, w.embedder, w.limiter, c.Query, job.JobRow, &o)
	if errors.Is(err, errFinalAttempt) {
		return nil
	}

	if err != nil {
		return err
	}

	if err := w.store.SetQueryEmbedding(ctx, id, embedding); err != nil {
		if errors.Is(err, huberrors.ErrNotFound) {
			o.done("skipped")
			return nil
		}

		o.workerError("update_failed")
		o.done("failed")

		return fmt.Errorf("set collection embedding: %w", err)
	}

	o.done("success")
	slog.InfoContext(ctx, "embedding: collection query stored", "collection_id", id)

	return nil
}
