package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"relayfeed/internal/pkg/config"
)

// WorkerMetrics embeds the configuration metrics of the worker process and adds
// process-level gauges:
//
//	relayfeed_worker_config_*                      (from ConfigMetrics)
//	relayfeed_worker_build_info{version}
//	relayfeed_worker_component_enabled{component}
//	relayfeed_worker_startup_duration_seconds
//	relayfeed_worker_ready
type WorkerMetrics struct {
	*config.ConfigMetrics

	BuildInfo        *prometheus.GaugeVec
	ComponentEnabled *prometheus.GaugeVec
	StartupDuration  prometheus.Gauge
	Ready            prometheus.Gauge
}

// NewWorkerMetrics registers the worker metrics with the default registry.
// Call it once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWorkerMetricsWith registers the worker metrics through f.
func NewWorkerMetricsWith(f promauto.Factory) *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith(f, "relayfeed_worker"),

		BuildInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayfeed_worker_build_info",
			Help: "Always 1, labelled with the running version",
		}, []string{"version"}),

		ComponentEnabled: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relayfeed_worker_component_enabled",
			Help: "1 if an optional component (telegram, discord, slack, kafka, redis, admin_api) is wired",
		}, []string{"component"}),

		StartupDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "relayfeed_worker_startup_duration_seconds",
			Help: "Time from process start until the worker reported ready",
		}),

		Ready: f.NewGauge(prometheus.GaugeOpts{
			Name: "relayfeed_worker_ready",
			Help: "1 while the worker is ready to serve, 0 otherwise",
		}),
	}
}

// RecordBuildInfo sets the build info gauge for version.
func (m *WorkerMetrics) RecordBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}

// SetComponentEnabled records whether an optional component is wired.
func (m *WorkerMetrics) SetComponentEnabled(component string, enabled bool) {
	v := 0.0
	if enabled {
		v = 1
	}
	m.ComponentEnabled.WithLabelValues(component).Set(v)
}

// RecordStartup records how long startup took.
func (m *WorkerMetrics) RecordStartup(d time.Duration) {
	m.StartupDuration.Set(d.Seconds())
}

// SetReady mirrors the readiness probe.
func (m *WorkerMetrics) SetReady(ready bool) {
	if ready {
		m.Ready.Set(1)
		return
	}
	m.Ready.Set(0)
}
