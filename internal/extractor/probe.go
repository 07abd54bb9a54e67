package extractor

import (
	"encoding/json"
	"strings"
)

// ProbeJSON tries to read s as serialized JSON. Anything that is not a JSON
// object or array, including parse failures, is reported as no data.
func ProbeJSON(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// probeObject is ProbeJSON restricted to objects.
func probeObject(s string) (map[string]any, bool) {
	v, ok := ProbeJSON(s)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// trimmed returns the trimmed string value stored under key, or "".
func trimmed(m map[string]any, key string) string {
	return strings.TrimSpace(asString(m[key]))
}
