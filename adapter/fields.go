package adapter

// Field accessors used by concrete adapters. Records come from encoding/json,
// so values are string, float64, bool, []any, map[string]any or nil. Adapters
// must be total: a field of an unexpected shape reads as absent and the
// adapter keeps the raw value in the residue instead.

// String reads a string field, or "" when absent or differently shaped.
func String(record map[string]any, key string) string {
	s, _ := record[key].(string)
	return s
}

// Map reads an object field, or nil.
func Map(record map[string]any, key string) map[string]any {
	m, _ := record[key].(map[string]any)
	return m
}

// Slice reads an array field, or nil.
func Slice(record map[string]any, key string) []any {
	s, _ := record[key].([]any)
	return s
}

// Number reads a numeric field. ok is false when absent or non-numeric.
func Number(record map[string]any, key string) (float64, bool) {
	n, ok := record[key].(float64)
	return n, ok
}

// StringSlice reads an array field, keeping only its string elements.
func StringSlice(record map[string]any, key string) []string {
	var out []string
	for _, v := range Slice(record, key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CloneValue deep-copies a JSON-shaped value so residue never aliases the
// caller's record.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return t
	}
}
