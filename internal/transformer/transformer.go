// Package transformer composes record-level transforms. Transforms operate
// on a dataset's rows and may mutate records in place or filter the slice.
package transformer

import "cyberetl/internal/dataset"

type Transformer interface {
	Apply([]dataset.Record) []dataset.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []dataset.Record) []dataset.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

// Func adapts a plain function to Transformer.
type Func func([]dataset.Record) []dataset.Record

func (f Func) Apply(in []dataset.Record) []dataset.Record { return f(in) }

// ApplyTo runs t over ds.Rows and stores the result back.
func ApplyTo(ds *dataset.Dataset, t Transformer) *dataset.Dataset {
	if ds == nil || t == nil {
		return ds
	}
	ds.Rows = t.Apply(ds.Rows)
	return ds
}
