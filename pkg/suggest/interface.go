// Package suggest ranks known tags against an in-progress token.
//
// Three case-insensitive tiers are tried in a fixed order, prefix, then
// suffix, then substring, and merged with first-seen de-duplication. The
// result for a given tag set, token and settings is always the same list.
package suggest

// SuggestionLimit caps the list returned to input widgets.
const SuggestionLimit = 12

// Suggester is the capability input widgets consume.
type Suggester interface {
	// Suggest returns up to SuggestionLimit ranked tags for token.
	Suggest(token string) []string
}

// Tier names a match strategy.
type Tier uint8

const (
	TierPrefix Tier = iota + 1
	TierSuffix
	TierSubstring
)

func (t Tier) String() string {
	switch t {
	case TierPrefix:
		return "prefix"
	case TierSuffix:
		return "suffix"
	case TierSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// Suggestion is a ranked tag with the tier that first produced it.
type Suggestion struct {
	Tag  string
	Rank uint16
	Tier Tier
}
