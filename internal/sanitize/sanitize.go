// Package sanitize cleans text that originates from an uploaded document
// before it is returned to a client.
package sanitize

import "strings"

// MaxLength is the longest string, in characters, that survives sanitization.
const MaxLength = 10000

var stripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// String removes < > " ' and truncates to MaxLength characters.
func String(s string) string {
	s = stripper.Replace(s)
	if len(s) <= MaxLength {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxLength {
			return s[:i]
		}
		n++
	}
	return s
}

// Value sanitizes strings and, recursively, the strings held in slices and
// string-keyed maps. Any other value is returned unchanged.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Value(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, s := range t {
			out[k] = String(s)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Value(item)
		}
		return out
	default:
		return v
	}
}
