package suggest

import (
	"math"
	"sync"

	"github.com/bastiangx/tagfilter/pkg/tagindex"
	"github.com/charmbracelet/log"
)

type cacheKey struct {
	token string
	limit int
	tiers uint8
}

type cacheEntry struct {
	results []Suggestion
	access  int64
}

// HotCache memoizes recent completions for one tag snapshot. Publishing a new
// snapshot empties it.
type HotCache struct {
	entries     map[cacheKey]*cacheEntry
	snapshot    *tagindex.Snapshot
	accessCount int64
	hits        int64
	maxEntries  int
	mu          sync.Mutex
}

func NewHotCache(maxEntries int) *HotCache {
	return &HotCache{
		entries:    make(map[cacheKey]*cacheEntry, maxEntries),
		maxEntries: maxEntries,
	}
}

// get returns cached results for key computed against snap.
func (hc *HotCache) get(snap *tagindex.Snapshot, key cacheKey) ([]Suggestion, bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.snapshot != snap {
		return nil, false
	}
	e, ok := hc.entries[key]
	if !ok {
		return nil, false
	}
	hc.hits++
	e.access = hc.nextAccess()
	return e.results, true
}

// put stores results, resetting the cache when snap is newer than its content.
func (hc *HotCache) put(snap *tagindex.Snapshot, key cacheKey, results []Suggestion) {
	if hc.maxEntries <= 0 {
		return
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.snapshot != snap {
		hc.resetLocked()
		hc.snapshot = snap
	}
	if len(hc.entries) >= hc.maxEntries {
		hc.evictLRU()
	}
	hc.entries[key] = &cacheEntry{results: results, access: hc.nextAccess()}
}

// Reset drops every entry.
func (hc *HotCache) Reset() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.resetLocked()
}

func (hc *HotCache) Stats() map[string]int {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	return map[string]int{
		"hotCacheEntries": len(hc.entries),
		"maxHotEntries":   hc.maxEntries,
		"hotCacheHits":    int(hc.hits),
	}
}

func (hc *HotCache) resetLocked() {
	hc.entries = make(map[cacheKey]*cacheEntry, hc.maxEntries)
	hc.snapshot = nil
}

func (hc *HotCache) nextAccess() int64 {
	hc.accessCount++
	return hc.accessCount
}

func (hc *HotCache) evictLRU() {
	var oldest cacheKey
	var oldestTime int64 = math.MaxInt64
	found := false

	for k, e := range hc.entries {
		if e.access < oldestTime {
			oldestTime = e.access
			oldest = k
			found = true
		}
	}

	if found {
		delete(hc.entries, oldest)
		log.Debugf("Evicted token '%s' from hot cache", oldest.token)
	}
}
