package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// GlobalTracer is used by the middleware chain; with no exporter
// configured the spans are no-ops.
var GlobalTracer trace.Tracer = otel.Tracer("gatehouse")
