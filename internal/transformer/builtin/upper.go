package builtin

import (
	"strings"

	"cyberetl/internal/dataset"
)

// Upper upper-cases the given string fields in place.
type Upper struct {
	Fields []string
}

func (u Upper) Apply(in []dataset.Record) []dataset.Record {
	for _, r := range in {
		for _, f := range u.Fields {
			if s, ok := r[f].(string); ok {
				r[f] = strings.ToUpper(s)
			}
		}
	}
	return in
}
