package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cyberetl/internal/dataset"
	"cyberetl/internal/logging"
	"cyberetl/internal/schema"
)

// Constraint is an integrity rule spanning one or more datasets. Violations
// come back as messages; err is for checks that could not run at all.
type Constraint interface {
	Name() string
	Check(coll dataset.Collection) (violations []string, err error)
}

// DefaultConstraints are the disclosure-analysis cross checks.
func DefaultConstraints() []Constraint {
	return []Constraint{
		ReferentialIntegrity{
			Child: schema.StockPrices, ChildField: "company_id",
			Parent: schema.Companies, ParentField: "company_id",
		},
		TemporalOrder{
			Dataset: schema.CybersecurityIncidents,
			Earlier: "breach_date",
			Later:   "disclosure_date",
			Label:   "incidents with disclosure before breach",
		},
	}
}

// CheckCrossTable runs every constraint over coll. A constraint that errors
// or panics contributes one error string and the rest still run.
func (v *Validator) CheckCrossTable(coll dataset.Collection, constraints ...Constraint) Result {
	log := logging.OrDefault(v.Logger)
	var errs []string
	for _, c := range constraints {
		msgs, err := runConstraint(c, coll)
		if err != nil {
			log.Error("validate: cross-table check error", "constraint", c.Name(), "err", err)
			errs = append(errs, fmt.Sprintf("%s: %v", c.Name(), err))
			continue
		}
		errs = append(errs, msgs...)
	}
	res := newResult(errs)
	if res.Passed {
		log.Info("validate: cross-table checks passed", "constraints", len(constraints))
	} else {
		for _, e := range errs {
			log.Error("validate: cross-table " + e)
		}
	}
	return res
}

func runConstraint(c Constraint, coll dataset.Collection) (msgs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			msgs, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return c.Check(coll)
}

// ReferentialIntegrity requires every non-null Child.ChildField value to
// appear in Parent.ParentField. It is skipped unless both datasets exist.
type ReferentialIntegrity struct {
	Child, ChildField   string
	Parent, ParentField string
}

func (r ReferentialIntegrity) Name() string {
	return fmt.Sprintf("referential_integrity(%s.%s -> %s.%s)", r.Child, r.ChildField, r.Parent, r.ParentField)
}

func (r ReferentialIntegrity) Check(coll dataset.Collection) ([]string, error) {
	child, parent := coll[r.Child], coll[r.Parent]
	if child == nil || parent == nil {
		return nil, nil
	}
	if !child.HasColumn(r.ChildField) {
		return nil, fmt.Errorf("%s: column %s missing", r.Child, r.ChildField)
	}
	if !parent.HasColumn(r.ParentField) {
		return nil, fmt.Errorf("%s: column %s missing", r.Parent, r.ParentField)
	}

	valid := make(map[string]struct{}, parent.Len())
	for _, v := range parent.Values(r.ParentField) {
		if !dataset.IsNull(v) {
			valid[keyOf(v)] = struct{}{}
		}
	}
	orphans := make(map[string]struct{})
	for _, v := range child.Values(r.ChildField) {
		if dataset.IsNull(v) {
			continue
		}
		k := keyOf(v)
		if _, ok := valid[k]; !ok {
			orphans[k] = struct{}{}
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}
	return []string{fmt.Sprintf("%s reference invalid %s values (%d): [%s]",
		r.Child, r.ChildField, len(orphans), strings.Join(sortedKeys(orphans), ", "))}, nil
}

// keyOf normalizes ids so "7", 7 and 7.0 compare equal.
func keyOf(v any) string {
	if n, ok := dataset.AsInt(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return strings.TrimSpace(dataset.AsString(v))
}

// sortedKeys orders numerically when every key is an integer.
func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseInt(out[i], 10, 64)
		b, errB := strconv.ParseInt(out[j], 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// TemporalOrder flags rows whose non-null Later timestamp is strictly before
// Earlier. Equal timestamps and null Later values pass.
type TemporalOrder struct {
	Dataset        string
	Earlier, Later string
	// Label describes the violating rows in the message.
	Label string
}

func (t TemporalOrder) Name() string {
	return fmt.Sprintf("temporal_order(%s: %s <= %s)", t.Dataset, t.Earlier, t.Later)
}

func (t TemporalOrder) Check(coll dataset.Collection) ([]string, error) {
	ds := coll[t.Dataset]
	if ds == nil {
		return nil, nil
	}
	for _, col := range []string{t.Earlier, t.Later} {
		if !ds.HasColumn(col) {
			return nil, fmt.Errorf("%s: column %s missing", t.Dataset, col)
		}
	}
	bad := 0
	for i, r := range ds.Rows {
		lv := r[t.Later]
		if dataset.IsNull(lv) {
			continue
		}
		later, ok := dataset.AsTime(lv)
		if !ok {
			return nil, fmt.Errorf("%s row %d: %s %v is not a timestamp", t.Dataset, i, t.Later, lv)
		}
		ev := r[t.Earlier]
		if dataset.IsNull(ev) {
			continue
		}
		earlier, ok := dataset.AsTime(ev)
		if !ok {
			return nil, fmt.Errorf("%s row %d: %s %v is not a timestamp", t.Dataset, i, t.Earlier, ev)
		}
		if later.Before(earlier) {
			bad++
		}
	}
	if bad == 0 {
		return nil, nil
	}
	label := t.Label
	if label == "" {
		label = fmt.Sprintf("rows with %s before %s", t.Later, t.Earlier)
	}
	return []string{fmt.Sprintf("Found %d %s", bad, label)}, nil
}
