package template

import (
	"fmt"
	"strconv"
	"strings"
)

func splitDotted(path string) []string {
	return strings.Split(path, ".")
}

func joinDotted(segs []string) string {
	return strings.Join(segs, ".")
}

// toString renders a looked-up value as its template string representation.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// truthy decides whether a looked-up value counts as true for #if/#unless:
// false, nil, "", 0, and empty slices/maps are falsy; everything else is
// truthy. Mirrors the determinism contract in §4.3 — no implicit coercion
// surprises across renders of the same input.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
