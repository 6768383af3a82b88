// Package attrs reads values out of slog-style key/value slices.
package attrs

import "fmt"

// ExtractString returns the value paired with key in a [k1, v1, k2, v2, ...]
// slice. Strings are returned as is and fmt.Stringer values (identity keys,
// request ids) are rendered. Anything else, or a missing key, yields "".
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}
