// Package promexport implements a Prometheus scrape backend for the metrics
// package.
//
// Collectors live in a private registry which Handler exposes over HTTP, so
// the server mounts it on its metrics path and nothing else imports
// client_golang.
package promexport

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/natijti/internal/metrics"
)

// Backend is a Prometheus implementation of metrics.Backend.
type Backend struct {
	reg *prometheus.Registry

	tasks    *prometheus.CounterVec
	rows     *prometheus.CounterVec
	batches  *prometheus.CounterVec
	cache    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewBackend builds the collectors and registers them with a fresh registry,
// along with the Go runtime and process collectors.
func NewBackend() (*Backend, error) {
	b := &Backend{
		reg: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.TasksTotal,
			Help: "Ingestion tasks that reached a terminal status.",
		}, []string{"status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Ingested rows by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batch commits by status.",
		}, []string{"status"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.CacheRequests,
			Help: "Cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Duration of named steps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"step", "status"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"tasks":    b.tasks,
		"rows":     b.rows,
		"batches":  b.batches,
		"cache":    b.cache,
		"duration": b.duration,
		"go":       collectors.NewGoCollector(),
		"process":  collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("promexport: register %s collector: %w", name, err)
		}
	}
	return b, nil
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.TasksTotal:
		b.tasks.WithLabelValues(labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(labels["outcome"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.WithLabelValues(labels["status"]).Add(delta)
	case metrics.CacheRequests:
		b.cache.WithLabelValues(labels["kind"], labels["result"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.duration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Handler serves the registry in the Prometheus text format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{Registry: b.reg})
}
