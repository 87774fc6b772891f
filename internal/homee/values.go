package homee

import (
	"encoding/json"
	"math"
	"net/url"
	"reflect"
	"strconv"
)

// toFloat converts a decoded JSON scalar into a float64.
// Booleans are treated as 0/1 because the hub reports flags that way.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// toInt converts an integral JSON number into an int.
func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// isNumeric reports whether v is a number (not a boolean or string).
func isNumeric(v any) bool {
	if _, isBool := v.(bool); isBool {
		return false
	}
	_, ok := toFloat(v)
	return ok
}

// isNonZero implements the hub's "active" test: any value that is not
// numerically zero. Missing and non-numeric values count as inactive.
func isNonZero(v any) bool {
	f, ok := toFloat(v)
	return ok && f != 0
}

// valuesEqual compares decoded JSON values. Nested maps and slices are
// compared structurally; numbers compare by value regardless of Go type.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumeric(a) && isNumeric(b) {
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// formatValue renders a value for the target_value query parameter.
func formatValue(v any) string {
	switch n := v.(type) {
	case string:
		return url.QueryEscape(n)
	case bool:
		if n {
			return "1"
		}
		return "0"
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return url.QueryEscape(toString(v))
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// unescape percent-decodes hub text. Invalid escapes are kept verbatim.
func unescape(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
