package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/tipsearch/hub"

// Tracer returns the tracer for retrieval spans. Without a registered TracerProvider it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationScope)
}
