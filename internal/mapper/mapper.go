// Package mapper normalizes inbound webhook payloads into model types.
// Extraction is tolerant: tracker cloud and server editions nest fields
// differently, and code-host payloads omit optional blocks, so every
// lookup degrades to a zero value instead of failing.
package mapper

func asMap(value any) map[string]any {
	m, _ := value.(map[string]any)
	return m
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

// asInt accepts both native ints and the float64 that encoding/json
// produces for numbers inside map[string]any.
func asInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
