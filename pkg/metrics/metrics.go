// Package metrics exposes Prometheus instrumentation for the validation and
// deployment pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors registered for the service.
type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec
	DeploymentsTotal   *prometheus.CounterVec
	DeploymentDuration prometheus.Histogram
	EngineHealthy      prometheus.Gauge
	AutoHealJobsTotal  *prometheus.CounterVec
	AutoHealQueueDepth prometheus.Gauge
}

// New registers the collectors on reg and returns them. Passing
// prometheus.DefaultRegisterer wires them into the default /metrics output.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clixen",
			Name:      "validations_total",
			Help:      "Validation chain runs partitioned by failed layer, or 'none' on success.",
		}, []string{"layer"}),
		DeploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clixen",
			Name:      "deployments_total",
			Help:      "Deployment attempts partitioned by terminal status.",
		}, []string{"status"}),
		DeploymentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clixen",
			Name:      "deployment_duration_seconds",
			Help:      "Wall time of deployment attempts, validation included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		EngineHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clixen",
			Name:      "engine_healthy",
			Help:      "1 when the last engine health probe succeeded, 0 otherwise.",
		}),
		AutoHealJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clixen",
			Name:      "autoheal_jobs_total",
			Help:      "Auto-heal jobs partitioned by outcome.",
		}, []string{"outcome"}),
		AutoHealQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clixen",
			Name:      "autoheal_queue_depth",
			Help:      "Jobs currently pending in the auto-heal queue.",
		}),
	}

	reg.MustRegister(
		m.ValidationsTotal,
		m.DeploymentsTotal,
		m.DeploymentDuration,
		m.EngineHealthy,
		m.AutoHealJobsTotal,
		m.AutoHealQueueDepth,
	)

	return m
}
