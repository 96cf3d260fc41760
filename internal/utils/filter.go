package utils

// IsValidToken checks if an in-progress token should be matched against tags.
// Rejects empty tokens, tokens made only of digits (not valid tags) and tokens
// containing characters a tag cannot hold.
func IsValidToken(s string) bool {
	s = StripTagPrefix(s)
	if len(s) == 0 {
		return false
	}
	if IsOnlyNumbers(s) {
		return false
	}
	for _, r := range s {
		if !IsTagRune(r) {
			return false
		}
	}
	return true
}
