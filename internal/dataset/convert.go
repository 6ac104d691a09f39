package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayouts are tried in order by AsTime for string values.
var DateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"20060102",
}

// default truthy/falsy sets (lowercased).
var (
	defaultTruthy = map[string]struct{}{
		"1": {}, "t": {}, "true": {}, "yes": {}, "y": {},
	}
	defaultFalsy = map[string]struct{}{
		"0": {}, "f": {}, "false": {}, "no": {}, "n": {},
	}
)

func normalizeTypeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsNull reports whether v counts as a missing value: nil, an empty or blank
// string, a NaN float, or a zero time.
func IsNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case time.Time:
		return t.IsZero()
	case *time.Time:
		return t == nil || t.IsZero()
	case *string:
		return t == nil
	case *int64:
		return t == nil
	case *float64:
		return t == nil
	}
	return false
}

// AsString converts common types to string without incurring the overhead
// of fmt.Sprint; falls back to fmt.Sprint for uncommon types.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// AsFloat converts numeric values and numeric strings to float64.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), !math.IsNaN(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		// pgtype.Numeric and similar driver types render as decimal text.
		return AsFloat(t.String())
	}
	return 0, false
}

// Floats in [minInt64Float, maxInt64Float) convert to int64 without wrapping.
const (
	minInt64Float = -9.223372036854775808e18
	maxInt64Float = 9.223372036854775808e18
)

// AsInt converts integers, integral floats and integer strings to int64.
// Values outside the int64 range do not convert.
func AsInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float64:
		if math.IsNaN(t) || t != math.Trunc(t) || t < minInt64Float || t >= maxInt64Float {
			return 0, false
		}
		return int64(t), true
	case float32:
		return AsInt(float64(t))
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		// "12.0" is a common export artifact of integer columns.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return AsInt(f)
		}
	}
	return 0, false
}

// AsBool converts bools, recognized truthy/falsy strings and the integers 0
// and 1 of any width.
func AsBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if _, ok := defaultTruthy[s]; ok {
			return true, true
		}
		if _, ok := defaultFalsy[s]; ok {
			return false, true
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		if n, ok := AsInt(t); ok && (n == 0 || n == 1) {
			return n == 1, true
		}
	}
	return false, false
}

// AsTime converts time.Time values and date strings. Extra layouts are tried
// before DateLayouts.
func AsTime(v any, layouts ...string) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, l := range layouts {
			if l == "" {
				continue
			}
			if tm, err := time.Parse(l, s); err == nil {
				return tm, true
			}
		}
		for _, l := range DateLayouts {
			if tm, err := time.Parse(l, s); err == nil {
				return tm, true
			}
		}
	}
	return time.Time{}, false
}

// Convert converts v to the Go representation of kind: string, int64,
// float64, bool or time.Time. Unknown kinds return v unchanged.
func Convert(v any, kind Kind) (any, bool) {
	switch kind {
	case KindString:
		return AsString(v), true
	case KindInteger:
		return AsInt(v)
	case KindFloat:
		return AsFloat(v)
	case KindBoolean:
		return AsBool(v)
	case KindTimestamp:
		return AsTime(v)
	}
	return v, true
}
