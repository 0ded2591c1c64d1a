package config

import (
	"fmt"
	"strconv"
)

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// OptInt extracts an integer from a provider Options map. YAML integers and
// numeric strings are accepted; ok is false when the key is absent or the
// value is not a whole number.
func OptInt(opts map[string]any, key string) (n int, ok bool) {
	switch v := opts[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
	}
	return 0, false
}

func optionString(v any) string { return fmt.Sprint(v) }
