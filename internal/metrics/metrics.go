// Package metrics exports the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	JobsCreated   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsExpired   prometheus.Counter
	JobsInFlight  prometheus.Gauge

	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{
		JobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videovault_jobs_created_total",
			Help: "Download jobs accepted via the API.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videovault_jobs_completed_total",
			Help: "Download jobs that reached the completed state.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videovault_jobs_failed_total",
			Help: "Download jobs that reached the error state.",
		}),
		JobsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "videovault_jobs_expired_total",
			Help: "Download jobs expired by the retention window.",
		}),
		JobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "videovault_jobs_in_flight",
			Help: "Extractions currently running.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "videovault_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status code.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		registry: reg,
	}

	factory(m.JobsCreated)
	factory(m.JobsCompleted)
	factory(m.JobsFailed)
	factory(m.JobsExpired)
	factory(m.JobsInFlight)
	factory(m.RequestDuration)

	return m
}

// Handler serves the /metrics endpoint for this registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
