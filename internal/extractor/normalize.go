package extractor

import "strings"

// Query-bearing field names.
const (
	FieldHiddenQueries   = "search_model_queries"
	FieldVisibleQueries  = "search_queries"
	FieldFallbackQueries = "queries"
)

// queryKeys are probed in order on structured query entries.
var queryKeys = []string{"text", "query", "q", "search_query"}

// FieldShape classifies the value found at a query-bearing field.
type FieldShape int

const (
	ShapeAbsent FieldShape = iota
	ShapeFlatSequence
	ShapeWrappedQueries
	ShapeWrappedItems
	ShapeUnrecognized
)

func (s FieldShape) String() string {
	switch s {
	case ShapeAbsent:
		return "absent"
	case ShapeFlatSequence:
		return "flat"
	case ShapeWrappedQueries:
		return "wrapped-queries"
	case ShapeWrappedItems:
		return "wrapped-items"
	default:
		return "unrecognized"
	}
}

// FieldValue is a classified field with its raw entries, each a string or an object.
type FieldValue struct {
	Shape   FieldShape
	Entries []any
}

// ClassifyField resolves a field value into one of the known shapes. A string
// holding serialized JSON is classified as its parsed value, one level deep.
func ClassifyField(v any) FieldValue {
	return classify(v, true)
}

func classify(v any, allowSerialized bool) FieldValue {
	switch t := v.(type) {
	case nil:
		return FieldValue{Shape: ShapeAbsent}
	case []any:
		return FieldValue{Shape: ShapeFlatSequence, Entries: t}
	case map[string]any:
		if q, ok := t["queries"].([]any); ok {
			return FieldValue{Shape: ShapeWrappedQueries, Entries: q}
		}
		if items, ok := t["items"].([]any); ok {
			return FieldValue{Shape: ShapeWrappedItems, Entries: items}
		}
	case string:
		if allowSerialized {
			if parsed, ok := ProbeJSON(t); ok {
				return classify(parsed, false)
			}
		}
	}
	return FieldValue{Shape: ShapeUnrecognized}
}

// ExtractQueryStrings maps raw entries to trimmed, non-empty query strings.
// Entries that yield nothing are dropped.
func ExtractQueryStrings(entries []any) []string {
	var out []string
	for _, e := range entries {
		switch t := e.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, key := range queryKeys {
				if s := trimmed(t, key); s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}
	return out
}

// NormalizeQueries classifies v and extracts its query strings.
func NormalizeQueries(v any) []string {
	return ExtractQueryStrings(ClassifyField(v).Entries)
}
