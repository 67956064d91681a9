package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the instrumentation scope of every relayfeed span.
	TracerName = "relayfeed"
	// instrumentationVersion changes when span names or attributes change.
	instrumentationVersion = "1"
)

// GetTracer goes through the global provider on each call, so a provider installed
// after package init (Install, or a test recorder) is picked up.
func GetTracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName, trace.WithInstrumentationVersion(instrumentationVersion))
}
