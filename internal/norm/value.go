package norm

import (
	"encoding/json"
	"math"
	"strconv"
)

// Loose accessors over decoded JSON. Wire payloads are untrusted and
// historically sloppy about types (numbers as strings, ints as floats), so
// every read goes through these instead of direct type assertions.

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case json.Number:
		return x.String(), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		if x == "true" {
			return true, true
		}
		if x == "false" {
			return false, true
		}
	case float64:
		return x != 0, true
	}
	return false, false
}

// field returns the first present key, trying each alias in order.
func field(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	if v, ok := field(m, keys...); ok {
		return asString(v)
	}
	return "", false
}

func int64Field(m map[string]any, keys ...string) (int64, bool) {
	if v, ok := field(m, keys...); ok {
		return asInt64(v)
	}
	return 0, false
}

func floatField(m map[string]any, keys ...string) (float64, bool) {
	if v, ok := field(m, keys...); ok {
		return asFloat(v)
	}
	return 0, false
}

func boolField(m map[string]any, keys ...string) bool {
	if v, ok := field(m, keys...); ok {
		b, _ := asBool(v)
		return b
	}
	return false
}
