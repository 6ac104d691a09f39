package datadog

import (
	"reflect"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"

	"cyberetl/internal/metrics"
)

var _ metrics.Backend = (*Backend)(nil)

type sent struct {
	kind  string
	name  string
	value float64
	tags  []string
}

// fakeStatsd records the calls the backend makes; anything else panics
// through the nil embedded interface.
type fakeStatsd struct {
	statsd.ClientInterface
	calls  []sent
	closed bool
}

func (f *fakeStatsd) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, sent{"count", name, float64(value), tags})
	return nil
}

func (f *fakeStatsd) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, sent{"histogram", name, value, tags})
	return nil
}

func (f *fakeStatsd) Gauge(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, sent{"gauge", name, value, tags})
	return nil
}

func (f *fakeStatsd) Close() error {
	f.closed = true
	return nil
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("expected error for empty Addr")
	}
}

func TestBackend_Sends(t *testing.T) {
	f := &fakeStatsd{}
	b := &Backend{client: f}

	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load", "job": "cyber"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, nil)
	b.SetGauge(metrics.DatasetAge, 60, metrics.Labels{"dataset": "companies"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []sent{
		{"count", metrics.StepTotal, 2, []string{"job:cyber", "step:load"}},
		{"histogram", metrics.StepDuration, 0.25, nil},
		{"gauge", metrics.DatasetAge, 60, []string{"dataset:companies"}},
	}
	if !reflect.DeepEqual(f.calls, want) {
		t.Fatalf("calls=%+v; want %+v", f.calls, want)
	}
	if !f.closed {
		t.Fatalf("Flush did not close the client")
	}
}
