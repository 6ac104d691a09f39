// Package ddl renders CREATE TABLE statements for loaded datasets.
//
// A TableDef is derived from a schema contract plus whatever extra columns
// the dataset carries (derived columns such as returns). Each SQL backend
// supplies a Dialect for quoting, type mapping and the "create if missing"
// wrapper.
package ddl

import (
	"fmt"
	"strings"

	"cyberetl/internal/dataset"
	"cyberetl/internal/schema"
)

// ColumnDef is one column of a table definition.
type ColumnDef struct {
	Name     string
	Kind     dataset.Kind
	Nullable bool
}

// TableDef holds a dotted table name and ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect adapts rendering to one SQL engine.
type Dialect struct {
	// Name prefixes error messages.
	Name string
	// Quote quotes one identifier segment.
	Quote func(string) string
	// Type maps a column kind to a SQL type.
	Type func(dataset.Kind) string
	// Wrap turns a bare CREATE TABLE into an idempotent script. The quoted
	// table name is passed alongside. Nil means "CREATE TABLE IF NOT EXISTS".
	Wrap func(quotedFQN, body string) string
}

// FromDataset builds a table definition for ds. Contract fields come first
// in contract order, with their nullability; remaining dataset columns
// follow as nullable. A nil contract uses only the dataset's columns.
func FromDataset(fqn string, ds *dataset.Dataset, c *schema.Contract) TableDef {
	td := TableDef{FQN: fqn}
	seen := map[string]bool{}
	if c != nil {
		for _, f := range c.Fields {
			// Columns the dataset lacks load as NULL, so they cannot be NOT NULL.
			nullable := f.Nullable || !ds.HasColumn(f.Name)
			td.Columns = append(td.Columns, ColumnDef{Name: f.Name, Kind: f.Type, Nullable: nullable})
			seen[f.Name] = true
		}
	}
	for _, col := range ds.Columns {
		if seen[col.Name] {
			continue
		}
		td.Columns = append(td.Columns, ColumnDef{Name: col.Name, Kind: ds.KindOf(col.Name), Nullable: true})
	}
	return td
}

// QuoteFQN quotes each dot-separated segment of fqn with d.Quote.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.Quote(p))
		}
	}
	return strings.Join(out, ".")
}

// CreateTable renders t in dialect d.
func (d Dialect) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table name must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: table %s has no columns", d.Name, fqn)
	}
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		line := d.Quote(name) + " " + d.Type(c.Kind)
		if !c.Nullable {
			line += " NOT NULL"
		}
		cols = append(cols, line)
	}
	q := d.QuoteFQN(fqn)
	body := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", q, strings.Join(cols, ",\n  "))
	if d.Wrap != nil {
		return d.Wrap(q, body), nil
	}
	return strings.Replace(body, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1) + ";", nil
}

// DoubleQuote is the ANSI identifier quoting shared by Postgres and SQLite.
func DoubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
