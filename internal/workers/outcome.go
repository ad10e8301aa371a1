package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/observability"
)

// errFinalAttempt tells Work to drop the job instead of letting River retry it.
var errFinalAttempt = errors.New("final embedding attempt failed")

// outcome records the metrics of one job run.
type outcome struct {
	ctx     context.Context //nolint:containedctx // scoped to a single Work call
	kind    string
	start   time.Time
	metrics observability.EmbeddingMetrics
}

func (o *outcome) workerError(reason string) {
	if o.metrics != nil {
		o.metrics.RecordWorkerError(o.ctx, o.kind, reason)
	}
}

func (o *outcome) done(status string) {
	if o.metrics != nil {
		o.metrics.RecordEmbeddingOutcome(o.ctx, o.kind, status, time.Since(o.start))
	}
}

// embedWithLimit waits for the limiter and embeds text. An unavailable model cancels the job and
// a failure on the last attempt returns errFinalAttempt.
func embedWithLimit(
	ctx context.Context, embedder Embedder, limiter *rate.Limiter, text string, row *rivertype.JobRow, o *outcome,
) ([]float32, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			o.workerError("rate_limited")
			o.done("failed")

			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	embedding, err := embedder.Embed(ctx, text)
	if err == nil {
		return embedding, nil
	}

	o.workerError("embed_failed")

	if errors.Is(err, huberrors.ErrUnavailable) {
		o.done("failed_final")
		slog.ErrorContext(ctx, "embedding: model unavailable, cancelling job", "kind", o.kind, "error", err)

		return nil, river.JobCancel(err)
	}

	if row != nil && row.Attempt >= row.MaxAttempts {
		o.done("failed_final")
		slog.ErrorContext(ctx, "embedding: failed (final attempt)", "kind", o.kind, "error", err)

		return nil, errFinalAttempt
	}

	o.done("failed")

	return nil, fmt.Errorf("embed: %w", err)
}
