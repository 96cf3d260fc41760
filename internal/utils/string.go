package utils

import (
	"strings"
	"unicode"
	"unicode/utf16"
)

// StripTagPrefix removes a single leading '#' from a tag or query.
func StripTagPrefix(s string) string {
	return strings.TrimPrefix(s, "#")
}

// IsTagRune reports whether r may appear inside an inline tag.
func IsTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '/'
}

// IsOnlyNumbers checks if a string consists entirely of numeric digits
func IsOnlyNumbers(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TextLen returns the length of s in UTF-16 code units, the unit carets are
// measured in by editor hosts.
func TextLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ClampCaret bounds caret to [0, TextLen(text)].
func ClampCaret(text string, caret int) int {
	if caret < 0 {
		return 0
	}
	if max := TextLen(text); caret > max {
		return max
	}
	return caret
}
