package utils

import "strings"

const ellipsis = "..."

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// Collapse flattens whitespace runs, including newlines, into single spaces so
// multi-line payloads stay on one log line.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
