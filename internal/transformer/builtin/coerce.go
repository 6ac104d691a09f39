package builtin

import "cyberetl/internal/dataset"

// Coerce converts fields to typed values. Types maps field to a type name
// understood by dataset.ParseKind ("int", "float", "bool", "date", ...).
//
// Values that cannot be converted become nil, the way a numeric coercion
// with errors="coerce" behaves; set Keep to leave them untouched instead.
type Coerce struct {
	Types  map[string]string
	Layout string // extra date layout tried before the defaults
	Keep   bool
}

func (c Coerce) Apply(in []dataset.Record) []dataset.Record {
	if len(c.Types) == 0 {
		return in
	}
	kinds := make(map[string]dataset.Kind, len(c.Types))
	for f, typ := range c.Types {
		kinds[f] = dataset.ParseKind(typ)
	}
	for _, r := range in {
		for field, kind := range kinds {
			v, ok := r[field]
			if !ok || dataset.IsNull(v) {
				if ok {
					r[field] = nil
				}
				continue
			}
			var (
				cv  any
				cok bool
			)
			if kind == dataset.KindTimestamp {
				cv, cok = dataset.AsTime(v, c.Layout)
			} else {
				cv, cok = dataset.Convert(v, kind)
			}
			switch {
			case cok:
				r[field] = cv
			case !c.Keep:
				r[field] = nil
			}
		}
	}
	return in
}

// Kinds returns the column kinds the coerced fields end up with.
func (c Coerce) Kinds() map[string]dataset.Kind {
	out := make(map[string]dataset.Kind, len(c.Types))
	for f, typ := range c.Types {
		if k := dataset.ParseKind(typ); k != dataset.KindUnknown {
			out[f] = k
		}
	}
	return out
}
