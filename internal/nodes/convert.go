package nodes

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// asString renders any scalar value as a string; composite values are JSON
// encoded.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprint(v)
	}
}

// cfgString reads a string config value.
func cfgString(cfg map[string]any, key string) string {
	if v, ok := cfg[key]; ok {
		return asString(v)
	}
	return ""
}

// cfgInt reads an integer config value, tolerating JSON numbers and numeric
// strings.
func cfgInt(cfg map[string]any, key string, fallback int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// cfgFloat reads a float config value.
func cfgFloat(cfg map[string]any, key string, fallback float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// firstInput returns the first non-empty value among the given input keys.
func firstInput(inputs map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := inputs[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v
		}
	}
	return nil
}
