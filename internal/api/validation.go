package api

import (
	"fmt"
	"strings"
)

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// pathSegment returns the n-th slash-separated segment of the path, or ""
// when the path is shorter. "/api/sources/abc/retry" has "abc" at index 3.
func pathSegment(path string, n int) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}
