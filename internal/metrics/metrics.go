// Package metrics records operational metrics for ingestion and the read path
// through a pluggable Backend.
//
// The default backend is a no-op, so callers never check whether metrics are
// configured. Concrete systems live in subpackages (see promexport) and are
// installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	TasksTotal    = "natijti_ingest_tasks_total"
	RowsTotal     = "natijti_ingest_rows_total"
	BatchesTotal  = "natijti_ingest_batches_total"
	StepDuration  = "natijti_step_duration_seconds"
	CacheRequests = "natijti_cache_requests_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system implements.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a latency style value.
	ObserveHistogram(name string, value float64, labels Labels)
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordTask counts an ingestion task reaching a terminal status.
func RecordTask(terminal string) {
	current().IncCounter(TasksTotal, 1, Labels{"status": terminal})
}

// RecordRows counts ingested rows by outcome ("success" or "error").
func RecordRows(outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"outcome": outcome})
}

// RecordBatch counts one batch commit.
func RecordBatch(err error) {
	current().IncCounter(BatchesTotal, 1, Labels{"status": status(err)})
}

// RecordStep observes the duration of a named step such as "parse" or "rank".
func RecordStep(step string, err error, d time.Duration) {
	current().ObserveHistogram(StepDuration, d.Seconds(), Labels{"step": step, "status": status(err)})
}

// RecordCache counts a cache lookup as a hit or a miss.
func RecordCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	current().IncCounter(CacheRequests, 1, Labels{"kind": kind, "result": result})
}
