// Package profile computes descriptive statistics for a dataset. Profiles do
// not depend on validation outcome.
package profile

import (
	"bytes"
	"math"
	"time"

	"github.com/zeebo/xxh3"

	"cyberetl/internal/dataset"
)

// Profile is the per-dataset summary carried in the validation report.
type Profile struct {
	Dataset       string                  `json:"dataset"`
	RecordCount   int                     `json:"record_count"`
	ColumnCount   int                     `json:"column_count"`
	MemoryBytes   int64                   `json:"memory_bytes"`
	MemoryMB      float64                 `json:"memory_usage_mb"`
	NullCounts    map[string]int          `json:"null_counts"`
	DuplicateRows int                     `json:"duplicate_rows"`
	Numeric       map[string]NumericStats `json:"numeric_stats"`
}

// hashFn is swapped in tests to force collisions.
var hashFn = xxh3.Hash

// Compute profiles ds. A nil dataset gives a zero profile.
func Compute(ds *dataset.Dataset, name string) Profile {
	p := Profile{
		Dataset:    name,
		NullCounts: map[string]int{},
		Numeric:    map[string]NumericStats{},
	}
	if ds == nil {
		return p
	}
	cols := ds.ColumnNames()
	p.RecordCount = ds.Len()
	p.ColumnCount = len(cols)
	p.MemoryBytes = estimateBytes(ds, cols)
	p.MemoryMB = float64(p.MemoryBytes) / 1024 / 1024
	p.DuplicateRows = duplicateRows(ds, cols)

	for _, c := range cols {
		nulls := 0
		for _, r := range ds.Rows {
			if dataset.IsNull(r[c]) {
				nulls++
			}
		}
		p.NullCounts[c] = nulls
		if xs, nonFinite, ok := numericValues(ds, c); ok {
			st := summarize(xs)
			st.NonFinite = nonFinite
			p.Numeric[c] = st
		}
	}
	return p
}

// numericValues returns the non-null values of a numeric column. A column
// is numeric when its kind is integer or float; undeclared columns also
// qualify when every non-null value parses as a number, as text loaded
// from CSV does. NaN and ±Inf are left out of the values and counted
// separately.
func numericValues(ds *dataset.Dataset, col string) ([]float64, int, bool) {
	declared := dataset.KindUnknown
	for _, c := range ds.Columns {
		if c.Name == col {
			declared = c.Kind
			break
		}
	}
	kind := ds.KindOf(col)
	textual := declared == dataset.KindUnknown && kind == dataset.KindString
	if !kind.Numeric() && !textual {
		return nil, 0, false
	}
	var (
		xs        []float64
		nonFinite int
	)
	for _, r := range ds.Rows {
		v := r[col]
		if dataset.IsNull(v) {
			continue
		}
		if _, isBool := v.(bool); isBool {
			return nil, 0, false
		}
		f, ok := dataset.AsFloat(v)
		if !ok {
			if textual {
				return nil, 0, false
			}
			continue
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			nonFinite++
			continue
		}
		xs = append(xs, f)
	}
	if textual && len(xs) == 0 && nonFinite == 0 {
		return nil, 0, false
	}
	return xs, nonFinite, true
}

// duplicateRows counts rows identical across all columns to an earlier row.
func duplicateRows(ds *dataset.Dataset, cols []string) int {
	seen := make(map[uint64][][]byte, ds.Len())
	dups := 0
	var buf bytes.Buffer
	for _, r := range ds.Rows {
		buf.Reset()
		encodeRow(&buf, r, cols)
		key := buf.Bytes()
		h := hashFn(key)
		found := false
		for _, prev := range seen[h] {
			if bytes.Equal(prev, key) {
				found = true
				break
			}
		}
		if found {
			dups++
			continue
		}
		seen[h] = append(seen[h], append([]byte(nil), key...))
	}
	return dups
}

// encodeRow writes a type-tagged encoding so that nil, "" and "<nil>" differ.
func encodeRow(buf *bytes.Buffer, r dataset.Record, cols []string) {
	for _, c := range cols {
		v := r[c]
		switch v.(type) {
		case nil:
			buf.WriteByte('N')
		case string:
			buf.WriteByte('S')
		case bool:
			buf.WriteByte('B')
		case time.Time:
			buf.WriteByte('T')
		default:
			if _, ok := dataset.AsFloat(v); ok {
				buf.WriteByte('F')
			} else {
				buf.WriteByte('O')
			}
		}
		if v != nil {
			buf.WriteString(dataset.AsString(v))
		}
		buf.WriteByte(0x1f)
	}
}

// estimateBytes applies a fixed per-value size model: 8 bytes for scalars
// and nulls, 24 for timestamps, 16 plus length for strings, 16 otherwise.
// Column names are counted once.
func estimateBytes(ds *dataset.Dataset, cols []string) int64 {
	var n int64
	for _, c := range cols {
		n += int64(16 + len(c))
	}
	for _, r := range ds.Rows {
		for _, c := range cols {
			switch v := r[c].(type) {
			case nil, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
				n += 8
			case time.Time:
				n += 24
			case string:
				n += int64(16 + len(v))
			default:
				n += 16
			}
		}
	}
	return n
}
