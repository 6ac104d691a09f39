package schema

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"cyberetl/internal/dataset"
)

// CheckKind names a predicate.
type CheckKind string

const (
	GreaterThan          CheckKind = "greater_than"
	GreaterThanOrEqualTo CheckKind = "greater_than_or_equal_to"
	LessThan             CheckKind = "less_than"
	LessThanOrEqualTo    CheckKind = "less_than_or_equal_to"
	Between              CheckKind = "between"
	StrMatches           CheckKind = "str_matches"
	StrLength            CheckKind = "str_length"
	IsIn                 CheckKind = "isin"
	NotContains          CheckKind = "not_contains"
)

// Check is one declarative predicate over a column value.
//
// Numeric kinds use Min/Max. Between is inclusive at an end unless the
// matching Exclusive flag is set. StrLength uses Min/Max as rune counts; a nil
// bound is open. IsIn and NotContains use Values.
type Check struct {
	Kind         CheckKind `json:"kind" yaml:"kind"`
	Min          *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64  `json:"max,omitempty" yaml:"max,omitempty"`
	MinExclusive bool      `json:"min_exclusive,omitempty" yaml:"min_exclusive,omitempty"`
	MaxExclusive bool      `json:"max_exclusive,omitempty" yaml:"max_exclusive,omitempty"`
	Pattern      string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Values       []string  `json:"values,omitempty" yaml:"values,omitempty"`

	re *lazyRegexp
}

type lazyRegexp struct {
	once sync.Once
	re   *regexp.Regexp
	err  error
}

func (l *lazyRegexp) get(pattern string) (*regexp.Regexp, error) {
	l.once.Do(func() { l.re, l.err = regexp.Compile(pattern) })
	return l.re, l.err
}

func f64(v float64) *float64 { return &v }

// Gt and friends build checks; they keep the builtin table readable.
func Gt(v float64) Check { return Check{Kind: GreaterThan, Min: f64(v)} }
func Ge(v float64) Check { return Check{Kind: GreaterThanOrEqualTo, Min: f64(v)} }
func Lt(v float64) Check { return Check{Kind: LessThan, Max: f64(v)} }
func Le(v float64) Check { return Check{Kind: LessThanOrEqualTo, Max: f64(v)} }
func In(v ...string) Check { return Check{Kind: IsIn, Values: v} }

func Range(lo, hi float64, loExclusive, hiExclusive bool) Check {
	return Check{Kind: Between, Min: f64(lo), Max: f64(hi), MinExclusive: loExclusive, MaxExclusive: hiExclusive}
}

func Matches(pattern string) Check {
	return Check{Kind: StrMatches, Pattern: pattern, re: &lazyRegexp{}}
}

// Length bounds string length; a negative bound is open.
func Length(lo, hi int) Check {
	c := Check{Kind: StrLength}
	if lo >= 0 {
		c.Min = f64(float64(lo))
	}
	if hi >= 0 {
		c.Max = f64(float64(hi))
	}
	return c
}

func Excludes(substrings ...string) Check {
	return Check{Kind: NotContains, Values: substrings}
}

// Numeric reports whether the check compares numbers.
func (c Check) Numeric() bool {
	switch c.Kind {
	case GreaterThan, GreaterThanOrEqualTo, LessThan, LessThanOrEqualTo, Between:
		return true
	}
	return false
}

// Describe renders the rule for error messages. The text is stable.
func (c Check) Describe() string {
	switch c.Kind {
	case GreaterThan:
		return fmt.Sprintf("greater_than(%s)", num(c.Min))
	case GreaterThanOrEqualTo:
		return fmt.Sprintf("greater_than_or_equal_to(%s)", num(c.Min))
	case LessThan:
		return fmt.Sprintf("less_than(%s)", num(c.Max))
	case LessThanOrEqualTo:
		return fmt.Sprintf("less_than_or_equal_to(%s)", num(c.Max))
	case Between:
		lo, hi := "[", "]"
		if c.MinExclusive {
			lo = "("
		}
		if c.MaxExclusive {
			hi = ")"
		}
		return fmt.Sprintf("in_range%s%s, %s%s", lo, num(c.Min), num(c.Max), hi)
	case StrMatches:
		return fmt.Sprintf("str_matches(%q)", c.Pattern)
	case StrLength:
		return fmt.Sprintf("str_length(min=%s, max=%s)", num(c.Min), num(c.Max))
	case IsIn:
		return fmt.Sprintf("isin(%s)", strings.Join(c.Values, ", "))
	case NotContains:
		return fmt.Sprintf("not_contains(%s)", strings.Join(c.Values, ", "))
	}
	return string(c.Kind)
}

func num(p *float64) string {
	if p == nil {
		return "none"
	}
	return dataset.AsString(*p)
}

// Eval reports whether v satisfies the check. v must already be non-null.
// An error means the value cannot be evaluated by this rule at all (a string
// under a numeric check, for instance).
func (c Check) Eval(v any) (bool, error) {
	if c.Numeric() {
		f, ok := dataset.AsFloat(v)
		if !ok {
			return false, fmt.Errorf("%v is not numeric", v)
		}
		return c.evalNumber(f), nil
	}
	s, ok := v.(string)
	if !ok {
		s = dataset.AsString(v)
	}
	switch c.Kind {
	case StrMatches:
		re, err := c.compiled()
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	case StrLength:
		n := float64(len([]rune(s)))
		if c.Min != nil && n < *c.Min {
			return false, nil
		}
		if c.Max != nil && n > *c.Max {
			return false, nil
		}
		return true, nil
	case IsIn:
		for _, want := range c.Values {
			if s == want {
				return true, nil
			}
		}
		return false, nil
	case NotContains:
		for _, sub := range c.Values {
			if sub != "" && strings.Contains(s, sub) {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown check kind %q", c.Kind)
}

func (c Check) evalNumber(f float64) bool {
	switch c.Kind {
	case GreaterThan:
		return f > *c.Min
	case GreaterThanOrEqualTo:
		return f >= *c.Min
	case LessThan:
		return f < *c.Max
	case LessThanOrEqualTo:
		return f <= *c.Max
	case Between:
		if c.MinExclusive && f <= *c.Min || !c.MinExclusive && f < *c.Min {
			return false
		}
		if c.MaxExclusive && f >= *c.Max || !c.MaxExclusive && f > *c.Max {
			return false
		}
		return true
	}
	return false
}

func (c Check) compiled() (*regexp.Regexp, error) {
	if c.re == nil {
		// Decoded checks have no cache; compile per call.
		return regexp.Compile(c.Pattern)
	}
	return c.re.get(c.Pattern)
}

// compile rejects checks missing the operands their kind needs.
func (c *Check) compile() error {
	switch c.Kind {
	case GreaterThan, GreaterThanOrEqualTo:
		if c.Min == nil {
			return fmt.Errorf("%s: min is required", c.Kind)
		}
	case LessThan, LessThanOrEqualTo:
		if c.Max == nil {
			return fmt.Errorf("%s: max is required", c.Kind)
		}
	case Between:
		if c.Min == nil || c.Max == nil {
			return fmt.Errorf("between: min and max are required")
		}
		if *c.Min > *c.Max {
			return fmt.Errorf("between: min %v > max %v", *c.Min, *c.Max)
		}
	case StrMatches:
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return fmt.Errorf("str_matches: %w", err)
		}
		if c.re == nil {
			c.re = &lazyRegexp{}
		}
	case StrLength:
		if c.Min == nil && c.Max == nil {
			return fmt.Errorf("str_length: min or max is required")
		}
	case IsIn, NotContains:
		if len(c.Values) == 0 {
			return fmt.Errorf("%s: values are required", c.Kind)
		}
	default:
		return fmt.Errorf("unknown check kind %q", c.Kind)
	}
	return nil
}
