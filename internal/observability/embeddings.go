package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records the background embedding pipeline (enqueue, worker outcomes).
type EmbeddingMetrics interface {
	RecordJobsEnqueued(ctx context.Context, kind string, count int64)
	RecordEmbeddingOutcome(ctx context.Context, kind, status string, duration time.Duration)
	RecordWorkerError(ctx context.Context, kind, reason string)
}

type embeddingMetrics struct {
	jobsEnqueued metric.Int64Counter
	outcomes     metric.Int64Counter
	workerErrors metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameEmbeddingJobsEnqueued,
		metric.WithDescription("Embedding jobs enqueued, by kind (document, collection)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameEmbeddingOutcomes,
		metric.WithDescription("Embedding job outcomes by kind and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding outcomes counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(
		MetricNameEmbeddingWorkerErrors,
		metric.WithDescription("Embedding worker errors by kind and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding worker errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{
		jobsEnqueued: jobsEnqueued,
		outcomes:     outcomes,
		workerErrors: workerErrors,
		duration:     duration,
	}, nil
}

func attrKind(kind string) attribute.KeyValue {
	return attribute.String(AttrKind, NormalizeReason(kind, AllowedEmbeddingKinds))
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, kind string, count int64) {
	e.jobsEnqueued.Add(ctx, count, metric.WithAttributes(attrKind(kind)))
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, kind, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attrKind(kind),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedEmbeddingStatuses)),
	)
	e.outcomes.Add(ctx, 1, attrs)
	e.duration.Record(ctx, duration.Seconds(), attrs)
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, kind, reason string) {
	e.workerErrors.Add(ctx, 1, metric.WithAttributes(
		attrKind(kind),
		attribute.String(AttrReason, NormalizeReason(reason, AllowedEmbeddingWorkerReasons)),
	))
}
