// Package metrics exposes gateway counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Metrics contains the receive/publish pipeline metrics.
type Metrics struct {
	registry *prometheus.Registry

	PacketsReceived   prometheus.Counter
	PacketsDropped    *prometheus.CounterVec
	ReadingsPublished *prometheus.CounterVec
	PublishErrors     prometheus.Counter
	LastRSSI          prometheus.Gauge
	ProcessDuration   prometheus.Histogram
}

// New creates the metrics on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "packets_received_total",
			Help:      "Total number of frames received from the radio",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "packets_dropped_total",
			Help:      "Total number of frames dropped, by reason",
		}, []string{"reason"}),
		ReadingsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "readings_published_total",
			Help:      "Total number of readings published, by topic",
		}, []string{"topic"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broker",
			Name:      "publish_errors_total",
			Help:      "Total number of failed publishes",
		}),
		LastRSSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "radio",
			Name:      "last_rssi_dbm",
			Help:      "Signal strength of the last received frame",
		}),
		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "Time from frame receipt to publish",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2},
		}),
	}
	m.registry.MustRegister(
		m.PacketsReceived,
		m.PacketsDropped,
		m.ReadingsPublished,
		m.PublishErrors,
		m.LastRSSI,
		m.ProcessDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
