// Package metrics records pipeline metrics through a pluggable backend.
//
// The default backend is a no-op, so every helper is safe to call when no
// metrics system is configured. Concrete systems live in subpackages
// (prompush, datadog) and are installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by the helpers below.
const (
	StepTotal        = "cyberetl_step_total"
	StepDuration     = "cyberetl_step_duration_seconds"
	RecordsTotal     = "cyberetl_records_total"
	ValidationTotal  = "cyberetl_validation_total"
	ValidationErrors = "cyberetl_validation_errors_total"
	AlertsTotal      = "cyberetl_alerts_total"
	DatasetAge       = "cyberetl_dataset_age_seconds"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style observation.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
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
func Flush() error { return current().Flush() }

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// RecordStep counts and times one pipeline step (extract, transform,
// validate, load).
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{"job": job, "step": step, "status": status(err == nil)}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRecords counts records per dataset and kind ("extracted",
// "skipped", "loaded").
func RecordRecords(job, dataset, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"job": job, "dataset": dataset, "kind": kind})
}

// RecordValidation counts one dataset validation outcome and its errors.
func RecordValidation(job, dataset string, passed bool, errors int) {
	st := "passed"
	if !passed {
		st = "failed"
	}
	b := current()
	b.IncCounter(ValidationTotal, 1, Labels{"job": job, "dataset": dataset, "status": st})
	if errors > 0 {
		b.IncCounter(ValidationErrors, float64(errors), Labels{"job": job, "dataset": dataset})
	}
}

// RecordAlert counts an alert raised by the monitor.
func RecordAlert(job, kind string) {
	current().IncCounter(AlertsTotal, 1, Labels{"job": job, "kind": kind})
}

// SetDatasetAge reports how old a source's data was at check time.
func SetDatasetAge(job, dataset string, age time.Duration) {
	current().SetGauge(DatasetAge, age.Seconds(), Labels{"job": job, "dataset": dataset})
}
