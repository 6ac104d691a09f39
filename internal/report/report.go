// Package report runs validation and profiling across a collection of
// datasets and aggregates the outcome into one ValidationReport.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
	"cyberetl/internal/profile"
	"cyberetl/internal/validate"
)

// Status is the overall verdict of a run.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// DatasetResult is the validation outcome for one dataset.
type DatasetResult struct {
	Passed      bool     `json:"passed"`
	Errors      []string `json:"errors"`
	RecordCount int      `json:"record_count"`
}

// Report is built fresh per run and never mutated by this package after Run
// returns.
type Report struct {
	RunID          string                     `json:"run_id"`
	Timestamp      time.Time                  `json:"timestamp"`
	OverallStatus  Status                     `json:"overall_status"`
	DatasetResults map[string]DatasetResult   `json:"dataset_results"`
	CrossTable     validate.Result            `json:"cross_table_results"`
	Profiles       map[string]profile.Profile `json:"data_profiles"`
}

// Passed reports whether OverallStatus is PASSED.
func (r *Report) Passed() bool { return r.OverallStatus == StatusPassed }

// Errors flattens every error in the report, datasets first in name order.
// Dataset messages already start with "<dataset>.<field>".
func (r *Report) Errors() []string {
	var out []string
	for _, n := range sortedNames(r.DatasetResults) {
		out = append(out, r.DatasetResults[n].Errors...)
	}
	return append(out, r.CrossTable.Errors...)
}

// WriteJSON encodes the report, indented.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes the report as JSON to path, creating parent directories.
// The document is encoded to a temporary file in the same directory and
// renamed into place, so a failed write never leaves a partial report.
func (r *Report) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("report: create: %w", err)
	}
	tmp := f.Name()
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: close: %w", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: chmod: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: rename: %w", err)
	}
	return nil
}

// Aggregator orchestrates per-dataset validation, profiling and the
// cross-table pass.
type Aggregator struct {
	Validator *validate.Validator
	// Constraints defaults to validate.DefaultConstraints when nil.
	Constraints []validate.Constraint
	// Parallelism > 1 validates and profiles datasets concurrently.
	Parallelism int
	Logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAggregator returns an aggregator over v with default constraints.
func NewAggregator(v *validate.Validator) *Aggregator {
	return &Aggregator{Validator: v}
}

type datasetOutcome struct {
	name    string
	result  DatasetResult
	profile profile.Profile
}

// Run builds the report for coll. Absent, nil and empty datasets are skipped
// without an entry. The only error is ctx cancellation.
func (a *Aggregator) Run(ctx context.Context, coll dataset.Collection) (*Report, error) {
	log := logging.OrDefault(a.Logger)
	v := a.Validator
	if v == nil {
		v = validate.New(nil, a.Logger)
	}
	now := a.now
	if now == nil {
		now = time.Now
	}
	newID := a.newID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	var names []string
	for _, n := range sortedNames(coll) {
		if coll[n].Empty() {
			log.Debug("report: skipping empty dataset", "dataset", n)
			continue
		}
		names = append(names, n)
	}

	outcomes := make([]datasetOutcome, len(names))
	work := func(i int) {
		n := names[i]
		ds := coll[n]
		res := v.ValidateDataset(ds, n)
		outcomes[i] = datasetOutcome{
			name:    n,
			result:  DatasetResult{Passed: res.Passed, Errors: res.Errors, RecordCount: ds.Len()},
			profile: profile.Compute(ds, n),
		}
	}

	if a.Parallelism > 1 && len(names) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.Parallelism)
		for i := range names {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				work(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
	} else {
		for i := range names {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("report: %w", err)
			}
			work(i)
		}
	}

	rep := &Report{
		RunID:          newID(),
		Timestamp:      now(),
		OverallStatus:  StatusPassed,
		DatasetResults: make(map[string]DatasetResult, len(outcomes)),
		Profiles:       make(map[string]profile.Profile, len(outcomes)),
	}
	for _, o := range outcomes {
		rep.DatasetResults[o.name] = o.result
		rep.Profiles[o.name] = o.profile
		if !o.result.Passed {
			rep.OverallStatus = StatusFailed
		}
	}

	constraints := a.Constraints
	if constraints == nil {
		constraints = validate.DefaultConstraints()
	}
	rep.CrossTable = v.CheckCrossTable(coll, constraints...)
	if !rep.CrossTable.Passed {
		rep.OverallStatus = StatusFailed
	}

	log.Info("report: validation complete",
		"run_id", rep.RunID, "status", rep.OverallStatus, "datasets", len(outcomes))
	return rep, nil
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
