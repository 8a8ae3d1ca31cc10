// Package strings holds rune offset and nullable string helpers
// Import it as pstr next to the standard library package
package strings

import (
	std "strings"
	"unicode/utf8"
)

// RuneLen returns the number of runes in s
func RuneLen(s string) int { return utf8.RuneCountInString(s) }

// Slice returns the runes of s in [start, end), clamped to the string
func Slice(s string, start, end int) string {
	r := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end {
		return ""
	}
	return string(r[start:end])
}

// ByteToRune maps every byte offset of s (plus len(s)) to its rune offset
// Offsets inside a multi byte rune map to that rune's index
func ByteToRune(s string) []int {
	idx := make([]int, len(s)+1)
	n := 0
	for i := range s {
		idx[i] = n
		n++
	}
	// fill continuation bytes with the index of the rune they belong to
	last := 0
	for i := 0; i < len(s); i++ {
		if utf8.RuneStart(s[i]) {
			last = idx[i]
		}
		idx[i] = last
	}
	idx[len(s)] = n
	return idx
}

// IsBlank reports whether s has no non space content
func IsBlank(s string) bool { return std.TrimSpace(s) == "" }

// Ptr returns a pointer to s
func Ptr(s string) *string { return &s }

// Deref returns "" for nil
func Deref(ps *string) string {
	if ps == nil {
		return ""
	}
	return *ps
}

// SQLNull returns nil for blank strings so query args bind NULL
func SQLNull(s string) any {
	if IsBlank(s) {
		return nil
	}
	return s
}

// IfEmpty returns def when v has no elements
func IfEmpty[T any](v, def []T) []T {
	if len(v) == 0 {
		return def
	}
	return v
}
