// Package builtin contains simple, reusable transformers used in the ETL.
package builtin

import (
	"strings"

	"cyberetl/internal/dataset"
)

const nbspace = "\u00a0"

// Normalize trims surrounding whitespace from every string value and
// replaces no-break spaces with ASCII spaces. With BlankToNil, strings that
// end up empty become nil.
type Normalize struct {
	BlankToNil bool
}

func (n Normalize) Apply(in []dataset.Record) []dataset.Record {
	for _, r := range in {
		for k, v := range r {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if strings.Contains(s, nbspace) {
				s = strings.ReplaceAll(s, nbspace, " ")
			}
			if HasEdgeSpace(s) {
				s = strings.TrimSpace(s)
			}
			if n.BlankToNil && s == "" {
				r[k] = nil
				continue
			}
			r[k] = s
		}
	}
	return in
}

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
