// Package tracing provides OpenTelemetry tracing helpers.
//
// Spans are created through the globally registered provider, so a process that
// never installs an SDK provider pays only for no-op spans. The admin API wraps its
// mux with Middleware; the dispatch pipeline opens "dispatch.pass" and
// "dispatch.entry" spans through GetTracer.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "dispatch.entry")
//	defer span.End()
package tracing
