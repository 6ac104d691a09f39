// Package validate interprets schema contracts against datasets and checks
// constraints that span datasets.
//
// Data-quality problems are reported as Result values, never as Go errors:
// a failing dataset still yields a complete list of everything wrong with it.
package validate

import (
	"fmt"
	"log/slog"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
	"cyberetl/internal/schema"
)

// Result is the outcome of one validation pass. Passed is true iff Errors is
// empty.
type Result struct {
	Passed bool     `json:"passed"`
	Errors []string `json:"errors"`
}

func newResult(errs []string) Result {
	if errs == nil {
		errs = []string{}
	}
	return Result{Passed: len(errs) == 0, Errors: errs}
}

// Validator runs registered contracts.
type Validator struct {
	Registry *schema.Registry
	// StrictUnknown fails datasets that have no registered contract instead
	// of passing them with a warning.
	StrictUnknown bool
	Logger        *slog.Logger
}

// New returns a validator over reg. A nil reg means the builtin contracts.
func New(reg *schema.Registry, logger *slog.Logger) *Validator {
	if reg == nil {
		reg = schema.Builtin()
	}
	return &Validator{Registry: reg, Logger: logger}
}

// ValidateDataset checks ds against the contract registered for name. Every
// declared field is checked and every violation collected; checks report
// once per failing rule, not once per failing row.
func (v *Validator) ValidateDataset(ds *dataset.Dataset, name string) Result {
	log := logging.OrDefault(v.Logger)
	c, ok := v.Registry.Lookup(name)
	if !ok {
		if v.StrictUnknown {
			msg := fmt.Sprintf("no schema defined for %s", name)
			log.Error("validate: "+msg, "dataset", name)
			return newResult([]string{msg})
		}
		log.Warn("validate: no schema defined", "dataset", name)
		return newResult(nil)
	}

	var errs []string
	for _, f := range c.Fields {
		errs = append(errs, checkField(ds, name, f)...)
	}

	res := newResult(errs)
	if res.Passed {
		log.Info("validate: dataset passed", "dataset", name, "records", ds.Len())
	} else {
		log.Error("validate: dataset failed", "dataset", name, "records", ds.Len(), "errors", len(errs))
		for _, e := range errs {
			log.Error("validate: " + e)
		}
	}
	return res
}

// failure tracks how many rows broke a rule and where it first happened.
type failure struct {
	count int
	row   int
	value any
}

func (f *failure) add(row int, v any) {
	if f.count == 0 {
		f.row, f.value = row, v
	}
	f.count++
}

func checkField(ds *dataset.Dataset, name string, f schema.Field) []string {
	path := name + "." + f.Name
	if !ds.HasColumn(f.Name) {
		if f.Nullable {
			return nil
		}
		return []string{fmt.Sprintf("%s: column missing", path)}
	}

	var (
		errs   []string
		nulls  failure
		badTyp failure
		rows   []int
		vals   []any
	)
	for i, r := range ds.Rows {
		raw := r[f.Name]
		if dataset.IsNull(raw) {
			nulls.add(i, nil)
			continue
		}
		cv, ok := coerce(raw, f.Type)
		if !ok {
			badTyp.add(i, raw)
			continue
		}
		rows = append(rows, i)
		vals = append(vals, cv)
	}

	if nulls.count > 0 && !f.Nullable {
		errs = append(errs, fmt.Sprintf("%s: %d null value(s) in non-nullable column (first at row %d)",
			path, nulls.count, nulls.row))
	}
	if badTyp.count > 0 {
		errs = append(errs, fmt.Sprintf("%s: %d value(s) not of type %s (first at row %d: %v)",
			path, badTyp.count, f.Type, badTyp.row, badTyp.value))
	}
	for _, ch := range f.Checks {
		var bad failure
		for j, cv := range vals {
			ok, err := ch.Eval(cv)
			if err != nil || !ok {
				bad.add(rows[j], cv)
			}
		}
		if bad.count > 0 {
			errs = append(errs, fmt.Sprintf("%s: check %s failed for %d row(s) (first at row %d: %v)",
				path, ch.Describe(), bad.count, bad.row, display(bad.value)))
		}
	}
	return errs
}

// coerce converts a non-null raw value to the field's kind. Strings must
// already be strings; other kinds accept their textual forms.
func coerce(v any, k dataset.Kind) (any, bool) {
	if k == dataset.KindString {
		s, ok := v.(string)
		return s, ok
	}
	return dataset.Convert(v, k)
}

func display(v any) any {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return dataset.AsString(v)
}
