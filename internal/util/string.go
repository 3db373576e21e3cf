// Package util provides small helpers shared across the application.
package util

// TruncateRunes truncates a string to a maximum number of runes. Counting
// runes rather than bytes keeps multi-byte UTF-8 characters intact. If the
// string is truncated, "..." is appended within the limit.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
