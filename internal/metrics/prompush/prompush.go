// Package prompush pushes pipeline metrics to a Prometheus Pushgateway.
//
// A batch job has no scrape endpoint, so collectors live in a private
// registry that Flush pushes under the job grouping key. The job label is
// therefore dropped from individual series.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"cyberetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter      *prometheus.CounterVec
	stepDuration     *prometheus.SummaryVec
	recordCounter    *prometheus.CounterVec
	validationTotal  *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	datasetAge       *prometheus.GaugeVec

	// pusher is replaced in tests.
	pusher func() error
}

// NewBackend constructs a backend that pushes to gatewayURL as jobName
// ("cyberetl" when empty).
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "cyberetl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline step executions by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Pipeline step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		recordCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records per dataset and kind (extracted, skipped, loaded).",
		}, []string{"dataset", "kind"}),
		validationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ValidationTotal,
			Help: "Dataset validations by outcome.",
		}, []string{"dataset", "status"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ValidationErrors,
			Help: "Validation error messages per dataset.",
		}, []string{"dataset"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.AlertsTotal,
			Help: "Monitor alerts by kind.",
		}, []string{"kind"}),
		datasetAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metrics.DatasetAge,
			Help: "Age of each source's data at check time.",
		}, []string{"dataset"}),
	}
	for _, c := range []prometheus.Collector{
		b.stepCounter, b.stepDuration, b.recordCounter,
		b.validationTotal, b.validationErrors, b.alerts, b.datasetAge,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	b.pusher = func() error {
		return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(l["step"], l["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(l["dataset"], l["kind"]).Add(delta)
	case metrics.ValidationTotal:
		b.validationTotal.WithLabelValues(l["dataset"], l["status"]).Add(delta)
	case metrics.ValidationErrors:
		b.validationErrors.WithLabelValues(l["dataset"]).Add(delta)
	case metrics.AlertsTotal:
		b.alerts.WithLabelValues(l["kind"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(l["step"], l["status"]).Observe(value)
}

func (b *Backend) SetGauge(name string, value float64, l metrics.Labels) {
	if name != metrics.DatasetAge {
		return
	}
	b.datasetAge.WithLabelValues(l["dataset"]).Set(value)
}

// Flush pushes the registry to the Pushgateway, replacing the job's group.
func (b *Backend) Flush() error {
	if err := b.pusher(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
