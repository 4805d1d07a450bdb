package common

import (
	"regexp"
	"sort"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeFileKey sanitizes a ticket key for filesystem use. Empty input
// falls back to "UNKNOWN".
func SafeFileKey(key string) string {
	if key == "" {
		key = "UNKNOWN"
	}
	return unsafeFileChars.ReplaceAllString(key, "-")
}

// ExtractText pulls human-readable text out of a decoded JSON tree,
// such as an Atlassian document format description or a nested API
// envelope. Strings pass through, lists join their non-empty parts, and
// maps prefer a "text" leaf before recursing into well-known container
// keys. Anything else contributes nothing.
func ExtractText(value any) string {
	return extractText(value, " ")
}

func extractText(value any, joiner string) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if part := extractText(item, joiner); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, joiner)
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return strings.TrimSpace(text)
		}
		for _, key := range []string{"plain_text", "plaintext", "content", "result", "data", "response"} {
			nested, ok := v[key]
			if !ok {
				continue
			}
			if candidate := extractText(nested, joiner); candidate != "" {
				return candidate
			}
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			if part := extractText(v[key], joiner); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, joiner)
	default:
		return ""
	}
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// FirstNonBlank returns the first value that is non-empty after
// trimming, or "".
func FirstNonBlank(values []string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
