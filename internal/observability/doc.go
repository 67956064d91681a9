// Package observability groups the logging, metrics and tracing setup shared by the
// relayfeed worker and CLI.
//
// Subpackages:
//   - logging: slog construction from LOG_LEVEL and per-component loggers
//   - metrics: ledger and database gauges refreshed by a background collector
//   - tracing: OpenTelemetry provider, tracer and HTTP middleware
package observability
