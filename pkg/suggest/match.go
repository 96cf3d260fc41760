package suggest

import (
	"strings"

	"github.com/bastiangx/tagfilter/internal/utils"
)

// normalizeQuery strips one leading '#' and lowercases.
func normalizeQuery(query string) string {
	return strings.ToLower(utils.StripTagPrefix(query))
}

func match(tags []string, query string, limit int, pred func(tag, q string) bool) []string {
	q := normalizeQuery(query)
	if q == "" {
		return nil
	}
	var out []string
	for _, tag := range tags {
		if !pred(strings.ToLower(tag), q) {
			continue
		}
		out = append(out, tag)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// MatchPrefix returns the tags starting with query, in input order.
// limit <= 0 means no limit.
func MatchPrefix(tags []string, query string, limit int) []string {
	return match(tags, query, limit, strings.HasPrefix)
}

// MatchSuffix returns the tags ending with query, in input order.
func MatchSuffix(tags []string, query string, limit int) []string {
	return match(tags, query, limit, strings.HasSuffix)
}

// MatchSubstring returns the tags containing query, in input order.
func MatchSubstring(tags []string, query string, limit int) []string {
	return match(tags, query, limit, strings.Contains)
}

// MergeOrdered concatenates the prefix, suffix and substring tiers in that
// order, skipping tags an earlier tier already produced, and stops once limit
// tags are collected (limit <= 0 means no cap).
func MergeOrdered(prefix, suffix, substring []string, limit int) []string {
	merged := mergeTiers(limit,
		tierResult{TierPrefix, prefix},
		tierResult{TierSuffix, suffix},
		tierResult{TierSubstring, substring},
	)
	out := make([]string, len(merged))
	for i, s := range merged {
		out[i] = s.Tag
	}
	return out
}

type tierResult struct {
	tier Tier
	tags []string
}

func mergeTiers(limit int, tiers ...tierResult) []Suggestion {
	filter := utils.NewSuggestionFilter()
	var out []Suggestion
collect:
	for _, tr := range tiers {
		for _, tag := range tr.tags {
			if limit > 0 && len(out) >= limit {
				break collect
			}
			if !filter.ShouldInclude(tag) {
				continue
			}
			out = append(out, Suggestion{Tag: tag, Tier: tr.tier})
		}
	}
	ranks := utils.CreateRankList(len(out))
	for i := range out {
		out[i].Rank = ranks[i]
	}
	return out
}
