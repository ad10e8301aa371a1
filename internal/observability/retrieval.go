package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RetrievalMetrics records the query path: ANN search, reranking, RAG assembly and feedback writes.
type RetrievalMetrics interface {
	RecordANNSearch(ctx context.Context, candidates int, duration time.Duration)
	RecordRerank(ctx context.Context, outcome string, duration time.Duration)
	RecordRAG(ctx context.Context, outcome string, duration time.Duration)
	RecordRAGSources(ctx context.Context, provenance string, count int)
	RecordRAGExcluded(ctx context.Context, reason string, count int)
	RecordFeedbackSaved(ctx context.Context, label string)
	RecordFeedbackDeleted(ctx context.Context, count int64)
	RecordGenerationError(ctx context.Context)
}

type retrievalMetrics struct {
	annDuration      metric.Float64Histogram
	annCandidates    metric.Int64Histogram
	rerankOutcomes   metric.Int64Counter
	rerankDuration   metric.Float64Histogram
	ragRequests      metric.Int64Counter
	ragDuration      metric.Float64Histogram
	ragSources       metric.Int64Counter
	ragExcluded      metric.Int64Counter
	feedbackSaved    metric.Int64Counter
	feedbackDeleted  metric.Int64Counter
	generationErrors metric.Int64Counter
}

// NewRetrievalMetrics creates RetrievalMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRetrievalMetrics(meter metric.Meter) (RetrievalMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	var (
		m   retrievalMetrics
		err error
	)

	if m.annDuration, err = meter.Float64Histogram(MetricNameANNDuration,
		metric.WithDescription("ANN query duration (seconds), ef_search tuning included"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create ann duration histogram: %w", err)
	}

	if m.annCandidates, err = meter.Int64Histogram(MetricNameANNCandidates,
		metric.WithDescription("Candidates returned per ANN query")); err != nil {
		return nil, fmt.Errorf("create ann candidates histogram: %w", err)
	}

	if m.rerankOutcomes, err = meter.Int64Counter(MetricNameRerankOutcomes,
		metric.WithDescription("Rerank calls by outcome (ok, fallback, empty)")); err != nil {
		return nil, fmt.Errorf("create rerank counter: %w", err)
	}

	if m.rerankDuration, err = meter.Float64Histogram(MetricNameRerankDuration,
		metric.WithDescription("Cross-encoder scoring duration (seconds)"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create rerank duration histogram: %w", err)
	}

	if m.ragRequests, err = meter.Int64Counter(MetricNameRAGRequests,
		metric.WithDescription("RAG requests by outcome (answered, no_result, error)")); err != nil {
		return nil, fmt.Errorf("create rag requests counter: %w", err)
	}

	if m.ragDuration, err = meter.Float64Histogram(MetricNameRAGDuration,
		metric.WithDescription("End-to-end RAG duration (seconds)"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create rag duration histogram: %w", err)
	}

	if m.ragSources, err = meter.Int64Counter(MetricNameRAGSources,
		metric.WithDescription("Sources returned by RAG, by provenance")); err != nil {
		return nil, fmt.Errorf("create rag sources counter: %w", err)
	}

	if m.ragExcluded, err = meter.Int64Counter(MetricNameRAGExcluded,
		metric.WithDescription("Videos excluded from fresh retrieval, by reason")); err != nil {
		return nil, fmt.Errorf("create rag excluded counter: %w", err)
	}

	if m.feedbackSaved, err = meter.Int64Counter(MetricNameFeedbackSaved,
		metric.WithDescription("Feedback upserts by label")); err != nil {
		return nil, fmt.Errorf("create feedback saved counter: %w", err)
	}

	if m.feedbackDeleted, err = meter.Int64Counter(MetricNameFeedbackDeleted,
		metric.WithDescription("Feedback rows deleted")); err != nil {
		return nil, fmt.Errorf("create feedback deleted counter: %w", err)
	}

	if m.generationErrors, err = meter.Int64Counter(MetricNameGenerationErrors,
		metric.WithDescription("Answer generation failures")); err != nil {
		return nil, fmt.Errorf("create generation errors counter: %w", err)
	}

	return &m, nil
}

func (m *retrievalMetrics) RecordANNSearch(ctx context.Context, candidates int, duration time.Duration) {
	m.annDuration.Record(ctx, duration.Seconds())
	m.annCandidates.Record(ctx, int64(candidates))
}

func (m *retrievalMetrics) RecordRerank(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedRerankOutcomes)))
	m.rerankOutcomes.Add(ctx, 1, attrs)
	m.rerankDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *retrievalMetrics) RecordRAG(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedRAGOutcomes)))
	m.ragRequests.Add(ctx, 1, attrs)
	m.ragDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *retrievalMetrics) RecordRAGSources(ctx context.Context, provenance string, count int) {
	if count <= 0 {
		return
	}
	m.ragSources.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrProvenance, NormalizeReason(provenance, AllowedProvenances))))
}

func (m *retrievalMetrics) RecordRAGExcluded(ctx context.Context, reason string, count int) {
	if count <= 0 {
		return
	}
	m.ragExcluded.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrReason, NormalizeReason(reason, AllowedExclusionReasons))))
}

func (m *retrievalMetrics) RecordFeedbackSaved(ctx context.Context, label string) {
	m.feedbackSaved.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrLabel, label)))
}

func (m *retrievalMetrics) RecordFeedbackDeleted(ctx context.Context, count int64) {
	m.feedbackDeleted.Add(ctx, count)
}

func (m *retrievalMetrics) RecordGenerationError(ctx context.Context) {
	m.generationErrors.Add(ctx, 1)
}
