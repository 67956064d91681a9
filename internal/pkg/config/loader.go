// Package config loads validated settings from the environment with a fail-open policy:
// a value that is missing uses its default silently, a value that fails to parse or
// validate uses its default with a logged warning and a fallback metric. Loading never
// returns an error.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult is the outcome of loading one value.
type LoadResult[T any] struct {
	Value           T
	Warning         string
	FallbackApplied bool
}

func fallback[T any](envKey, raw string, def T, err error) LoadResult[T] {
	return LoadResult[T]{
		Value:           def,
		Warning:         fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, def),
		FallbackApplied: true,
	}
}

// LoadEnvString returns the variable, or defaultValue when it is unset or empty.
func LoadEnvString(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and validates it. validator may be nil.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) LoadResult[string] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[string]{Value: defaultValue}
	}
	if validator != nil {
		if err := validator(raw); err != nil {
			return fallback(envKey, raw, defaultValue, err)
		}
	}
	return LoadResult[string]{Value: raw}
}

// LoadEnvDuration parses a Go duration ("90s", "1h30m") and validates it.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult[time.Duration] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[time.Duration]{Value: defaultValue}
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback(envKey, raw, defaultValue, err)
	}
	if validator != nil {
		if err := validator(d); err != nil {
			return fallback(envKey, raw, defaultValue, err)
		}
	}
	return LoadResult[time.Duration]{Value: d}
}

// LoadEnvInt parses a base-10 integer and validates it.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) LoadResult[int] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[int]{Value: defaultValue}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback(envKey, raw, defaultValue, err)
	}
	if validator != nil {
		if err := validator(n); err != nil {
			return fallback(envKey, raw, defaultValue, err)
		}
	}
	return LoadResult[int]{Value: n}
}

// LoadEnvBool accepts the forms strconv.ParseBool accepts.
func LoadEnvBool(envKey string, defaultValue bool) LoadResult[bool] {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return LoadResult[bool]{Value: defaultValue}
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback(envKey, raw, defaultValue, err)
	}
	return LoadResult[bool]{Value: b}
}

// Loader applies the Load* functions and reports every fallback through a logger and
// ConfigMetrics. Field names become the metric label.
type Loader struct {
	logger   *slog.Logger
	metrics  *ConfigMetrics
	fellBack bool
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(logger *slog.Logger, metrics *ConfigMetrics) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, metrics: metrics}
}

func report[T any](l *Loader, field, envKey string, r LoadResult[T]) T {
	if r.FallbackApplied {
		l.fellBack = true
		if l.metrics != nil {
			l.metrics.RecordValidationError(field)
			l.metrics.RecordFallback(field)
		}
		l.logger.Warn("Configuration fallback applied",
			slog.String("field", field),
			slog.String("env_key", envKey),
			slog.String("warning", r.Warning))
	}
	return r.Value
}

// String loads a validated string.
func (l *Loader) String(field, envKey, def string, validator func(string) error) string {
	return report(l, field, envKey, LoadEnvWithFallback(envKey, def, validator))
}

// Duration loads a validated duration.
func (l *Loader) Duration(field, envKey string, def time.Duration, validator func(time.Duration) error) time.Duration {
	return report(l, field, envKey, LoadEnvDuration(envKey, def, validator))
}

// Int loads a validated integer.
func (l *Loader) Int(field, envKey string, def int, validator func(int) error) int {
	return report(l, field, envKey, LoadEnvInt(envKey, def, validator))
}

// Bool loads a boolean.
func (l *Loader) Bool(field, envKey string, def bool) bool {
	return report(l, field, envKey, LoadEnvBool(envKey, def))
}

// Done records the load timestamp and whether any fallback is active, and reports
// whether one was applied.
func (l *Loader) Done() bool {
	if l.metrics != nil {
		l.metrics.SetFallbackActive(l.fellBack)
		l.metrics.RecordLoadTimestamp()
	}
	return l.fellBack
}
