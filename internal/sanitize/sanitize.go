// Package sanitize strips keys that could trigger prototype pollution in a
// dynamically-typed consumer of stored JSON. It runs after schema validation
// and before any write, independent of how strict the schema is.
package sanitize

var blockedKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Blocked reports whether a key is stripped by Clean.
func Blocked(key string) bool {
	_, ok := blockedKeys[key]
	return ok
}

// Clean returns a copy of v with blocked keys removed at every nesting depth.
// It is idempotent: Clean(Clean(v)) equals Clean(v).
func Clean(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CleanMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clean(item)
		}
		return out
	default:
		return v
	}
}

// CleanMap removes blocked keys from a decoded JSON object, recursively.
func CleanMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if Blocked(k) {
			continue
		}
		out[k] = Clean(v)
	}
	return out
}
