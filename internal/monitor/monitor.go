// Package monitor checks extracted data against operational expectations
// (freshness, record counts, integrity) and raises alerts when they fail.
package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cyberetl/internal/logging"
	"cyberetl/internal/metrics"
)

// ErrDataQuality marks failures caused by the data rather than the system.
var ErrDataQuality = errors.New("data quality")

// Notifier delivers an alert.
type Notifier interface {
	Notify(subject, message string) error
}

// Monitor runs checks and alerts on failure.
type Monitor struct {
	Job      string
	Notifier Notifier
	Logger   *slog.Logger

	// nowFn is replaced in tests.
	nowFn func() time.Time
}

// New returns a Monitor for job that alerts through n; a nil n only logs.
func New(job string, n Notifier, log *slog.Logger) *Monitor {
	return &Monitor{Job: job, Notifier: n, Logger: logging.OrDefault(log), nowFn: time.Now}
}

func (m *Monitor) now() time.Time {
	if m.nowFn == nil {
		return time.Now()
	}
	return m.nowFn()
}

// Alert sends subject and message through the notifier. Without one, or when
// delivery fails, the alert is logged at WARN so it is never lost.
func (m *Monitor) Alert(kind, subject, message string) {
	log := logging.OrDefault(m.Logger)
	metrics.RecordAlert(m.Job, kind)
	if m.Notifier == nil {
		log.Warn("monitor: alert", "subject", subject, "message", message)
		return
	}
	if err := m.Notifier.Notify(subject, message); err != nil {
		log.Error("monitor: alert delivery failed", "subject", subject, "err", err)
		log.Warn("monitor: alert", "subject", subject, "message", message)
		return
	}
	log.Info("monitor: alert sent", "subject", subject)
}

// CheckFreshness fails when last is zero or older than maxAge, alerting in
// the latter case. The age is also published as a gauge.
func (m *Monitor) CheckFreshness(dataset string, last time.Time, maxAge time.Duration) error {
	if last.IsZero() {
		return fmt.Errorf("monitor: %s: no last update timestamp found: %w", dataset, ErrDataQuality)
	}
	age := m.now().Sub(last)
	metrics.SetDatasetAge(m.Job, dataset, age)
	if maxAge > 0 && age > maxAge {
		msg := fmt.Sprintf("Data is %.1f hours old (max: %g)", age.Hours(), maxAge.Hours())
		m.Alert("freshness", "Data Freshness Alert", dataset+": "+msg)
		return fmt.Errorf("monitor: %s: %s: %w", dataset, msg, ErrDataQuality)
	}
	return nil
}

// CheckRecordCount fails when n is below lo or, for hi > 0, above hi.
func (m *Monitor) CheckRecordCount(dataset string, n, lo, hi int) error {
	var msg string
	switch {
	case n < lo:
		msg = fmt.Sprintf("Record count %d below minimum %d", n, lo)
	case hi > 0 && n > hi:
		msg = fmt.Sprintf("Record count %d above maximum %d", n, hi)
	default:
		return nil
	}
	m.Alert("record_count", "Record Count Alert", dataset+": "+msg)
	return fmt.Errorf("monitor: %s: %s: %w", dataset, msg, ErrDataQuality)
}
