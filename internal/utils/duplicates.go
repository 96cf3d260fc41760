package utils

// SuggestionFilter drops tags that were already emitted.
// Matching is exact: the tag index keeps case variants as distinct tags.
type SuggestionFilter struct {
	seen map[string]struct{}
}

// NewSuggestionFilter creates a filter that treats the given tags as already seen.
func NewSuggestionFilter(exclude ...string) *SuggestionFilter {
	seen := make(map[string]struct{}, len(exclude)+16)
	for _, tag := range exclude {
		seen[tag] = struct{}{}
	}
	return &SuggestionFilter{seen: seen}
}

// ShouldInclude reports whether tag is new and records it as seen.
func (f *SuggestionFilter) ShouldInclude(tag string) bool {
	if _, ok := f.seen[tag]; ok {
		return false
	}
	f.seen[tag] = struct{}{}
	return true
}

// Seen returns how many distinct tags passed through the filter.
func (f *SuggestionFilter) Seen() int {
	return len(f.seen)
}

// CreateRankList creates a slice of ranks based on position.
// The rank starts at 1 for the first item and increments for subsequent items.
func CreateRankList(count int) []uint16 {
	if count <= 0 {
		return []uint16{}
	}
	ranks := make([]uint16, count)
	for i := 0; i < count; i++ {
		ranks[i] = uint16(i + 1)
	}
	return ranks
}
