// Package utils provides shared utilities for text and logging.
package utils

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// Preview returns the first n characters of s followed by "...". When always is
// false the ellipsis is only added if s was cut. n <= 0 keeps the whole text.
func Preview(s string, n int, always bool) string {
	if !always {
		return Truncate(s, n)
	}
	r := []rune(s)
	if n > 0 && len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}
