// Package metrics records operational metrics from the badge jobs behind a
// pluggable Backend.
//
// The global backend defaults to a no-op, so the Record helpers are always
// safe to call. Concrete systems live in subpackages (prompush, datadog) and
// are installed with SetBackend by the binaries.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers.
const (
	StepTotal       = "badges_step_total"
	StepDuration    = "badges_step_duration_seconds"
	RecordsTotal    = "badges_records_total"
	BatchesTotal    = "badges_batches_total"
	PartitionsTotal = "badges_partitions_total"
)

// Record kinds used with RecordRows.
const (
	KindLoaded       = "loaded"
	KindCastFailures = "cast_failures"
	KindAnomalies    = "anomalies"
	KindViolations   = "domain_violations"
	KindExported     = "exported"
	KindMirrored     = "mirrored"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a job step and records its duration,
// labelled success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Time runs fn as step and records it with RecordStep.
func Time(job, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	RecordStep(job, step, err, time.Since(start))
	return err
}

// RecordRows adds delta to the record counter for kind. Non-positive deltas
// are ignored.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches counts mirror batches flushed to storage.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordPartitions counts partition directories written by an export.
func RecordPartitions(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(PartitionsTotal, float64(delta), Labels{"job": job})
}
