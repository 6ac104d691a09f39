package monitor

import (
	"fmt"
	"sort"
	"strings"

	"cyberetl/internal/dataset"
)

// DefaultMaxNullPct is the null share above which a required column is
// reported.
const DefaultMaxNullPct = 10.0

// IntegrityRule lists what one dataset must satisfy.
type IntegrityRule struct {
	Required []string
	Unique   []string
	// MaxNullPct bounds nulls in required columns; DefaultMaxNullPct when zero.
	MaxNullPct float64
}

// CheckIntegrity returns human-readable integrity violations for ds. An
// empty dataset reports only missing columns and emptiness.
func CheckIntegrity(ds *dataset.Dataset, rule IntegrityRule) []string {
	var errs []string
	if ds == nil {
		ds = dataset.New("")
	}

	var missing []string
	for _, c := range rule.Required {
		if !ds.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		errs = append(errs, fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")))
	}
	if ds.Empty() {
		return append(errs, "Dataset is empty")
	}

	for _, c := range rule.Unique {
		if !ds.HasColumn(c) {
			continue
		}
		if d := duplicates(ds.Values(c)); d > 0 {
			errs = append(errs, fmt.Sprintf("Found %d duplicate values in %s", d, c))
		}
	}

	limit := rule.MaxNullPct
	if limit <= 0 {
		limit = DefaultMaxNullPct
	}
	for _, c := range rule.Required {
		if !ds.HasColumn(c) {
			continue
		}
		nulls := 0
		for _, v := range ds.Values(c) {
			if dataset.IsNull(v) {
				nulls++
			}
		}
		if pct := float64(nulls) / float64(ds.Len()) * 100; pct > limit {
			errs = append(errs, fmt.Sprintf("Column %s has %.1f%% null values", c, pct))
		}
	}
	return errs
}

// duplicates counts values equal to an earlier one. Nulls compare equal to
// each other.
func duplicates(vals []any) int {
	seen := make(map[string]struct{}, len(vals))
	n := 0
	for _, v := range vals {
		k := "\x00"
		if !dataset.IsNull(v) {
			k = "v" + dataset.AsString(v)
		}
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}
