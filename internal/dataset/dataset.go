// Package dataset holds the in-memory tabular model shared by extraction,
// transformation, validation, profiling and loading.
//
// A Dataset is a named, ordered set of columns plus a slice of loosely typed
// records. Values stay whatever the producer emitted (strings from CSV, typed
// values from pgx) until a consumer converts them with the As* helpers.
package dataset

import (
	"sort"
	"time"
)

// Record is a single row keyed by column name. A nil value is a null.
type Record = map[string]any

// Kind is the logical type of a column.
type Kind string

const (
	KindUnknown   Kind = ""
	KindString    Kind = "string"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindBoolean   Kind = "boolean"
	KindTimestamp Kind = "timestamp"
)

// ParseKind maps loose type names (including database-ish ones) onto a Kind.
func ParseKind(s string) Kind {
	switch normalizeTypeName(s) {
	case "int", "integer", "bigint", "int8", "int4", "int2":
		return KindInteger
	case "float", "float64", "double", "real", "numeric", "decimal":
		return KindFloat
	case "bool", "boolean":
		return KindBoolean
	case "date", "timestamp", "timestamptz", "datetime", "time":
		return KindTimestamp
	case "string", "text", "str", "varchar":
		return KindString
	default:
		return KindUnknown
	}
}

// Numeric reports whether the kind holds numbers. Booleans are not numeric.
func (k Kind) Numeric() bool { return k == KindInteger || k == KindFloat }

// Column describes one column of a dataset.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind,omitempty"`
}

// Dataset is a tabular collection of homogeneous records.
type Dataset struct {
	Name    string
	Columns []Column
	Rows    []Record
}

// Collection maps a dataset name to its table.
type Collection map[string]*Dataset

// New returns an empty dataset with the given columns.
func New(name string, columns ...Column) *Dataset {
	return &Dataset{Name: name, Columns: append([]Column(nil), columns...)}
}

// Append adds a record. Keys not yet declared become columns of unknown kind
// so that ColumnNames always covers every key seen.
func (d *Dataset) Append(rec Record) {
	for k := range rec {
		if !d.HasColumn(k) {
			d.Columns = append(d.Columns, Column{Name: k})
		}
	}
	d.Rows = append(d.Rows, rec)
}

// Len returns the number of rows; a nil dataset has zero rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset is nil or has no rows.
func (d *Dataset) Empty() bool { return d.Len() == 0 }

// HasColumn reports whether name is a declared column.
func (d *Dataset) HasColumn(name string) bool {
	return d.columnIndex(name) >= 0
}

func (d *Dataset) columnIndex(name string) int {
	if d == nil {
		return -1
	}
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnNames returns column names in declaration order.
func (d *Dataset) ColumnNames() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// SetColumn declares (or re-declares) a column's kind, adding it if missing.
func (d *Dataset) SetColumn(name string, kind Kind) {
	if i := d.columnIndex(name); i >= 0 {
		d.Columns[i].Kind = kind
		return
	}
	d.Columns = append(d.Columns, Column{Name: name, Kind: kind})
}

// Values returns the column as a slice aligned with Rows. Missing cells are nil.
func (d *Dataset) Values(name string) []any {
	out := make([]any, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

// KindOf returns the declared kind of a column or, when undeclared, a kind
// inferred from its non-null values.
func (d *Dataset) KindOf(name string) Kind {
	if i := d.columnIndex(name); i >= 0 && d.Columns[i].Kind != KindUnknown {
		return d.Columns[i].Kind
	}
	return InferKind(d.Values(name))
}

// Clone returns a deep copy of the dataset's slices and records. Values
// themselves are shared.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Name:    d.Name,
		Columns: append([]Column(nil), d.Columns...),
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, r := range d.Rows {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Sort stably sorts rows in place.
func (d *Dataset) Sort(less func(a, b Record) bool) {
	sort.SliceStable(d.Rows, func(i, j int) bool { return less(d.Rows[i], d.Rows[j]) })
}

// InferKind guesses a kind from values. Strings are never promoted to numbers;
// only natively typed values (as emitted by SQL drivers or coercion) are.
func InferKind(values []any) Kind {
	kind := KindUnknown
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		var k Kind
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			k = KindInteger
		case float32, float64:
			k = KindFloat
		case bool:
			k = KindBoolean
		case string:
			k = KindString
		case time.Time:
			k = KindTimestamp
		default:
			return KindUnknown
		}
		switch {
		case kind == KindUnknown:
			kind = k
		case kind == k:
		case kind.Numeric() && k.Numeric():
			kind = KindFloat
		default:
			return KindUnknown
		}
	}
	return kind
}
