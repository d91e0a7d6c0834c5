package backend

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the backend's Prometheus collectors, kept on their own
// registry so several services can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	runsTotal       *prometheus.CounterVec
	runsActive      prometheus.Gauge
	runProgress     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinaos",
				Subsystem: "backend",
				Name:      "requests_total",
				Help:      "Total number of wizard requests by operation and result",
			},
			[]string{"op", "result"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "twinaos",
				Subsystem: "backend",
				Name:      "request_duration_seconds",
				Help:      "Duration of wizard requests in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"op"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twinaos",
				Subsystem: "backend",
				Name:      "provisioning_runs_total",
				Help:      "Total number of finished provisioning runs by result",
			},
			[]string{"result"},
		),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinaos",
			Subsystem: "backend",
			Name:      "provisioning_active",
			Help:      "Whether a provisioning run is in progress (1) or not (0)",
		}),
		runProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "twinaos",
			Subsystem: "backend",
			Name:      "provisioning_percent",
			Help:      "Last reported progress of the current provisioning run",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.runsTotal,
		m.runsActive,
		m.runProgress,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) recordRequest(op string, err error, took time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.requestsTotal.WithLabelValues(op, result).Inc()
	m.requestDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) recordRunStarted() {
	m.runsActive.Set(1)
	m.runProgress.Set(0)
}

func (m *Metrics) recordProgress(percent int) {
	m.runProgress.Set(float64(percent))
}

func (m *Metrics) recordRunFinished(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runsTotal.WithLabelValues(result).Inc()
	m.runsActive.Set(0)
}
