// Package recording implements the capture-and-generate path (§4.5):
// forwarding unmatched requests to an upstream, normalizing the concrete
// path into a parameterized pattern, and appending a new endpoint to the
// owning service's YAML definition.
package recording

import (
	"regexp"
	"strconv"
	"strings"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
var alphanumericIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{16,}$|^[0-9a-zA-Z_-]{20,}$`)

// NormalizePath rewrites a concrete request path into a parameterized
// pattern by replacing UUID, numeric, and hash-like segments with
// sequential {param_N} placeholders, e.g. /users/42/orders/a1b2c3d4e5f6a1b2c3d4
// becomes /users/{param_0}/orders/{param_1}.
func NormalizePath(path string) string {
	segments := strings.Split(path, "/")
	result := make([]string, len(segments))
	paramIndex := 0

	for i, seg := range segments {
		if seg == "" {
			result[i] = seg
			continue
		}
		if isVariableSegment(seg) {
			result[i] = "{param_" + strconv.Itoa(paramIndex) + "}"
			paramIndex++
			continue
		}
		result[i] = seg
	}

	return strings.Join(result, "/")
}

func isVariableSegment(seg string) bool {
	if isUUID(seg) || isNumericID(seg) || isAlphanumericID(seg) {
		return true
	}
	return false
}

func isUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

func isNumericID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isAlphanumericID(s string) bool {
	if len(s) < 16 {
		return false
	}
	return alphanumericIDPattern.MatchString(s)
}
