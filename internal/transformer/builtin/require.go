package builtin

import (
	"slices"

	"cyberetl/internal/dataset"
)

// Require drops records with a null value (see dataset.IsNull) in any of
// Fields. Primary keys such as company_id or ticker are the usual targets.
type Require struct {
	Fields []string
}

func (r Require) Apply(in []dataset.Record) []dataset.Record {
	return slices.DeleteFunc(in, func(rec dataset.Record) bool {
		return slices.ContainsFunc(r.Fields, func(f string) bool { return dataset.IsNull(rec[f]) })
	})
}
