package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name      string
		env       string
		want      string
		wantFallb bool
	}{
		{"unset uses default", "", "@every 60s", false},
		{"valid descriptor", "@every 5m", "@every 5m", false},
		{"valid five-field", "*/10 * * * *", "*/10 * * * *", false},
		{"invalid falls back", "every minute", "@every 60s", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_POLL_SCHEDULE", tt.env)
			r := LoadEnvWithFallback("TEST_POLL_SCHEDULE", "@every 60s", ValidateCronSchedule)
			assert.Equal(t, tt.want, r.Value)
			assert.Equal(t, tt.wantFallb, r.FallbackApplied)
			if tt.wantFallb {
				assert.Contains(t, r.Warning, "TEST_POLL_SCHEDULE")
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	within := func(d time.Duration) error { return ValidateDuration(d, 0, time.Minute) }

	t.Setenv("TEST_PAUSE", "250ms")
	assert.Equal(t, 250*time.Millisecond, LoadEnvDuration("TEST_PAUSE", time.Second, within).Value)

	t.Setenv("TEST_PAUSE", "2m")
	r := LoadEnvDuration("TEST_PAUSE", time.Second, within)
	assert.True(t, r.FallbackApplied)
	assert.Equal(t, time.Second, r.Value)

	t.Setenv("TEST_PAUSE", "soon")
	assert.True(t, LoadEnvDuration("TEST_PAUSE", time.Second, nil).FallbackApplied)
}

func TestLoadEnvInt(t *testing.T) {
	t.Setenv("TEST_ATTEMPTS", " 5 ")
	assert.Equal(t, 5, LoadEnvInt("TEST_ATTEMPTS", 3, nil).Value)

	t.Setenv("TEST_ATTEMPTS", "0")
	r := LoadEnvInt("TEST_ATTEMPTS", 3, func(v int) error { return ValidateIntRange(v, 1, 10) })
	assert.Equal(t, 3, r.Value)
	assert.True(t, r.FallbackApplied)

	t.Setenv("TEST_ATTEMPTS", "three")
	assert.Equal(t, 3, LoadEnvInt("TEST_ATTEMPTS", 3, nil).Value)
}

func TestLoadEnvBool(t *testing.T) {
	t.Setenv("TEST_AUTOSTART", "false")
	assert.False(t, LoadEnvBool("TEST_AUTOSTART", true).Value)

	t.Setenv("TEST_AUTOSTART", "maybe")
	r := LoadEnvBool("TEST_AUTOSTART", true)
	assert.True(t, r.Value)
	assert.True(t, r.FallbackApplied)
}

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "")
	assert.Equal(t, "def", LoadEnvString("TEST_FEED_URL", "def"))
	t.Setenv("TEST_FEED_URL", "https://example.org/rss")
	assert.Equal(t, "https://example.org/rss", LoadEnvString("TEST_FEED_URL", "def"))
}

func TestLoader_ReportsFallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConfigMetricsWith(promauto.With(reg), "test")
	var buf bytes.Buffer
	l := NewLoader(slog.New(slog.NewTextHandler(&buf, nil)), m)

	t.Setenv("TEST_PORT", "80")
	t.Setenv("TEST_TZ", "UTC")

	port := l.Int("health_port", "TEST_PORT", 9091, ValidatePort)
	tz := l.String("timezone", "TEST_TZ", "Asia/Tokyo", ValidateTimezone)

	assert.Equal(t, 9091, port)
	assert.Equal(t, "UTC", tz)
	assert.True(t, l.Done())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("health_port")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackActive))
	assert.Contains(t, buf.String(), "TEST_PORT")
}

func TestLoader_NoFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConfigMetricsWith(promauto.With(reg), "clean")
	l := NewLoader(nil, m)

	t.Setenv("TEST_ENABLED", "1")
	assert.True(t, l.Bool("enabled", "TEST_ENABLED", false))
	assert.False(t, l.Done())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(m.LoadTimestamp), 0.0)
}
