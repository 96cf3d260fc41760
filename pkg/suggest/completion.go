package suggest

import (
	"sync"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/pkg/config"
	"github.com/bastiangx/tagfilter/pkg/tagindex"
	"github.com/charmbracelet/log"
)

// SnapshotSource yields the current tag snapshot. *tagindex.Index satisfies it.
type SnapshotSource interface {
	Snapshot() *tagindex.Snapshot
}

// Provider runs the enabled tiers against the live tag index.
type Provider struct {
	index    SnapshotSource
	hotCache *HotCache
	log      *log.Logger

	mu       sync.RWMutex
	settings config.MatchConfig
}

// NewProvider creates a provider over index with the given tier settings.
func NewProvider(index SnapshotSource, settings config.MatchConfig) *Provider {
	return &Provider{
		index:    index,
		hotCache: NewHotCache(256),
		log:      logger.New("suggest"),
		settings: settings,
	}
}

// SetMatchConfig swaps the tier settings and drops cached results.
func (p *Provider) SetMatchConfig(settings config.MatchConfig) {
	p.mu.Lock()
	p.settings = settings
	p.mu.Unlock()
	p.hotCache.Reset()
}

// MatchConfig returns the active tier settings.
func (p *Provider) MatchConfig() config.MatchConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Suggest implements Suggester.
func (p *Provider) Suggest(token string) []string {
	return tagsOf(p.Complete(token, SuggestionLimit))
}

// Expand returns every tag the token stands for, up to limit, using the same
// tier order as suggestions.
func (p *Provider) Expand(token string, limit int) []string {
	return tagsOf(p.complete(p.index.Snapshot(), token, limit))
}

// Complete returns ranked suggestions for token, at most limit of them.
func (p *Provider) Complete(token string, limit int) []Suggestion {
	snap := p.index.Snapshot()
	key := cacheKey{token: token, limit: limit, tiers: tierMask(p.MatchConfig())}
	if cached, ok := p.hotCache.get(snap, key); ok {
		return append([]Suggestion(nil), cached...)
	}
	results := p.complete(snap, token, limit)
	p.hotCache.put(snap, key, results)
	return append([]Suggestion(nil), results...)
}

func (p *Provider) complete(snap *tagindex.Snapshot, token string, limit int) []Suggestion {
	q := normalizeQuery(token)
	if q == "" {
		return nil
	}
	settings := p.MatchConfig()
	tags := snap.Tags()

	var tiers []tierResult
	if settings.EnablePrefix {
		tiers = append(tiers, tierResult{TierPrefix, snap.WithPrefix(q, limit)})
	}
	if settings.EnableSuffix {
		tiers = append(tiers, tierResult{TierSuffix, MatchSuffix(tags, q, limit)})
	}
	if settings.EnableSubstring {
		tiers = append(tiers, tierResult{TierSubstring, MatchSubstring(tags, q, limit)})
	}
	results := mergeTiers(limit, tiers...)
	p.log.Debug("completed token", "token", token, "results", len(results))
	return results
}

// Stats reports cache counters.
func (p *Provider) Stats() map[string]int {
	stats := p.hotCache.Stats()
	stats["totalTags"] = p.index.Snapshot().Len()
	return stats
}

func tierMask(m config.MatchConfig) uint8 {
	var mask uint8
	if m.EnablePrefix {
		mask |= 1 << TierPrefix
	}
	if m.EnableSuffix {
		mask |= 1 << TierSuffix
	}
	if m.EnableSubstring {
		mask |= 1 << TierSubstring
	}
	return mask
}

func tagsOf(s []Suggestion) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i].Tag
	}
	return out
}
