// Package tagindex keeps the set of known tags across all documents.
//
// The index is rebuilt wholesale from a Source and published as an immutable
// Snapshot; readers never observe a half-built set.
package tagindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Source enumerates documents and their structural tags (front-matter lists
// and inline annotations).
type Source interface {
	List(ctx context.Context) ([]string, error)
	Metadata(ctx context.Context, id string) ([]string, error)
}

// Snapshot is an immutable, sorted, de-duplicated tag set.
type Snapshot struct {
	tags    []string
	trie    *patricia.Trie
	builtAt time.Time
}

// NewSnapshot normalizes tags (leading '#' stripped, blanks dropped), removes
// duplicates and sorts them ascending.
func NewSnapshot(tags []string) *Snapshot {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = Normalize(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	sorted := make([]string, 0, len(set))
	for t := range set {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	trie := patricia.NewTrie()
	for i, t := range sorted {
		key := patricia.Prefix(strings.ToLower(t))
		if item := trie.Get(key); item != nil {
			trie.Set(key, append(item.([]int), i))
			continue
		}
		trie.Insert(key, []int{i})
	}
	return &Snapshot{tags: sorted, trie: trie, builtAt: time.Now()}
}

// Normalize strips surrounding space and a single leading '#'.
func Normalize(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "#")
}

// Tags returns the sorted tag list. Callers must not modify it.
func (s *Snapshot) Tags() []string {
	return s.tags
}

// Len returns the number of tags.
func (s *Snapshot) Len() int {
	return len(s.tags)
}

// BuiltAt reports when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// WithPrefix returns the tags whose lowercase form starts with lowerPrefix,
// in snapshot order, at most limit of them (limit <= 0 means all).
func (s *Snapshot) WithPrefix(lowerPrefix string, limit int) []string {
	if lowerPrefix == "" {
		return nil
	}
	var idx []int
	err := s.trie.VisitSubtree(patricia.Prefix(lowerPrefix), func(_ patricia.Prefix, item patricia.Item) error {
		idx = append(idx, item.([]int)...)
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting tag trie: %v", err)
		return nil
	}
	sort.Ints(idx)
	if limit > 0 && len(idx) > limit {
		idx = idx[:limit]
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = s.tags[j]
	}
	return out
}

// Index publishes the current Snapshot.
type Index struct {
	current atomic.Pointer[Snapshot]
	log     *log.Logger
}

// New creates an empty index.
func New() *Index {
	ix := &Index{log: logger.New("tagindex")}
	ix.current.Store(NewSnapshot(nil))
	return ix
}

// Snapshot returns the most recently published snapshot.
func (ix *Index) Snapshot() *Snapshot {
	return ix.current.Load()
}

// Replace publishes a snapshot built from tags.
func (ix *Index) Replace(tags []string) *Snapshot {
	s := NewSnapshot(tags)
	ix.current.Store(s)
	return s
}

// Rebuild scans every document in src and publishes a fresh snapshot.
// A failed listing keeps the previous snapshot; a document whose metadata
// cannot be read is skipped.
func (ix *Index) Rebuild(ctx context.Context, src Source) ([]string, error) {
	start := time.Now()
	ids, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var all []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tags, err := src.Metadata(ctx, id)
		if err != nil {
			ix.log.Warn("skipping document metadata", "doc", id, "err", err)
			continue
		}
		all = append(all, tags...)
	}

	s := ix.Replace(all)
	ix.log.Debug("rebuilt tag index", "docs", len(ids), "tags", s.Len(), "took", s.BuiltAt().Sub(start))
	return s.Tags(), nil
}
