package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric collectors. When metrics are disabled, NewMetrics returns nil and
// components receive nil interfaces, which they treat as "do not record".
type Metrics struct {
	Cache      CacheMetrics
	Embeddings EmbeddingMetrics
	Retrieval  RetrievalMetrics
	API        APIMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	retrieval, err := NewRetrievalMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("retrieval metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		Cache:      cache,
		Embeddings: embeddings,
		Retrieval:  retrieval,
		API:        api,
	}, nil
}
