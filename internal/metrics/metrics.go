// Package metrics is a small, backend-agnostic facade for run metrics.
//
// The default backend is a no-op, so instrumented code is always safe to
// call. cmd/loginetl installs a Pushgateway or DogStatsD backend when
// configured and flushes it once at the end of the run; a short-lived job
// has no scrape endpoint, so metrics are pushed rather than pulled.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal       = "loginetl_step_total"
	StepDuration    = "loginetl_step_duration_seconds"
	RecordsTotal    = "loginetl_records_total"
	RunOutcomeTotal = "loginetl_run_outcome_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style value.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil keeps the current backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error { return backend.Flush() }

// RecordStep counts one execution of a pipeline step (receive, build, load)
// and observes its duration, labelled by success or failure.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta to the record counter for kind (received, loaded,
// upserted, rejected). Non-positive deltas are ignored.
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordOutcome counts a finished run by outcome (loaded, no_message,
// failed).
func RecordOutcome(job, outcome string) {
	backend.IncCounter(RunOutcomeTotal, 1, Labels{"job": job, "outcome": outcome})
}
