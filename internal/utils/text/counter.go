// Package text holds small rune-aware string helpers shared by the
// pipeline stages and the report renderer.
package text

import "strings"

// Truncate returns at most n runes of s. It never splits a multi-byte
// character. n <= 0 yields the empty string.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FirstLine returns s up to the first newline.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
