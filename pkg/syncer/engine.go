// Package syncer keeps the managed filter region of each document in step with
// the search box the user types into.
//
// Every box runs a small state machine (idle, composing, pending, writing).
// Keystrokes are recorded immediately and written back after a quiet period;
// input-method compositions are held until they commit. A write cycle always
// reads the document fresh, re-locates the region, renders the filter from
// the current tag index and writes the whole text back.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bastiangx/tagfilter/internal/clock"
	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/pkg/blockstore"
	"github.com/bastiangx/tagfilter/pkg/config"
	"github.com/bastiangx/tagfilter/pkg/filter"
	"github.com/bastiangx/tagfilter/pkg/region"
	"github.com/bastiangx/tagfilter/pkg/suggest"
	"github.com/bastiangx/tagfilter/pkg/tagindex"
	"github.com/charmbracelet/log"
)

// DocumentStore reads and writes whole documents.
type DocumentStore interface {
	Read(ctx context.Context, id string) (string, error)
	Write(ctx context.Context, id, text string) error
}

// Reporter receives write-cycle failures. It must not block.
type Reporter func(id blockstore.Identity, err error)

// Options configures an Engine. Docs is required; the rest have defaults.
type Options struct {
	Docs DocumentStore
	// Source enables index rebuilds on structural notifications.
	Source   tagindex.Source
	Index    *tagindex.Index
	Clock    clock.Clock
	Reporter Reporter
	Config   *config.Config
}

// Engine owns the tag index, the block state caches and one scheduler per box.
type Engine struct {
	ctx       context.Context
	cancel    context.CancelFunc
	docs      DocumentStore
	index     *tagindex.Index
	provider  *suggest.Provider
	store     *blockstore.Store
	persisted *blockstore.PersistedLoader
	rebuilder *tagindex.Rebuilder
	source    tagindex.Source
	clk       clock.Clock
	report    Reporter
	log       *log.Logger

	mu           sync.Mutex
	blocks       map[blockstore.Identity]*block
	debounce     time.Duration
	writeTimeout time.Duration
	maxTags      int
	stats        Stats
}

// Stats counts write-cycle outcomes.
type Stats struct {
	Writes    int
	Unchanged int
	Failures  int
	Fallbacks int
}

// New creates an engine. The engine's background work stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Docs == nil {
		return nil, errors.New("syncer: document store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Index == nil {
		opts.Index = tagindex.New()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	ctx, cancel := context.WithCancel(ctx)
	e := &Engine{
		ctx:          ctx,
		cancel:       cancel,
		docs:         opts.Docs,
		index:        opts.Index,
		provider:     suggest.NewProvider(opts.Index, cfg.Match),
		store:        blockstore.NewStore(),
		persisted:    blockstore.NewPersistedLoader(opts.Docs),
		source:       opts.Source,
		clk:          opts.Clock,
		report:       opts.Reporter,
		log:          logger.New("syncer"),
		blocks:       make(map[blockstore.Identity]*block),
		debounce:     cfg.Sync.Debounce(),
		writeTimeout: cfg.Sync.WriteTimeout(),
		maxTags:      cfg.Filter.MaxTagsPerTerm,
	}
	if opts.Source != nil {
		e.rebuilder = tagindex.NewRebuilder(ctx, opts.Index, opts.Source, opts.Clock, cfg.Sync.IndexDebounce())
	}
	return e, nil
}

// SetReporter replaces the write failure reporter.
func (e *Engine) SetReporter(r Reporter) {
	e.mu.Lock()
	e.report = r
	e.mu.Unlock()
}

// RebuildIndex rebuilds the tag index right away.
func (e *Engine) RebuildIndex(ctx context.Context) error {
	if e.source == nil {
		return errors.New("syncer: no tag source configured")
	}
	_, err := e.index.Rebuild(ctx, e.source)
	return err
}

// Index returns the tag index the engine expands filters against.
func (e *Engine) Index() *tagindex.Index {
	return e.index
}

// Provider returns the suggestion provider.
func (e *Engine) Provider() *suggest.Provider {
	return e.provider
}

// Suggest returns up to suggest.SuggestionLimit tags for token.
func (e *Engine) Suggest(token string) []string {
	return e.provider.Suggest(token)
}

// Restore returns the state a box should show: the in-memory state first,
// then the state embedded in the document, else empty.
func (e *Engine) Restore(ctx context.Context, id blockstore.Identity) blockstore.State {
	if st, ok := e.store.Get(id); ok {
		return st
	}
	if st, ok := e.persisted.Load(ctx, id.DocumentID); ok {
		st = st.Clamped()
		e.store.Set(id, st)
		return st
	}
	return blockstore.State{}
}

// UpdateSettings applies new match and timing settings. Countdowns already
// running keep their delay.
func (e *Engine) UpdateSettings(match config.MatchConfig, sc config.SyncConfig) {
	e.provider.SetMatchConfig(match)
	e.mu.Lock()
	e.debounce = sc.Debounce()
	e.writeTimeout = sc.WriteTimeout()
	e.mu.Unlock()
	if e.rebuilder != nil {
		e.rebuilder.SetDelay(sc.IndexDebounce())
	}
	e.log.Debug("settings updated", "debounce", sc.Debounce(), "match", match)
}

// HandleNotification reacts to a document change: persisted state is
// forgotten, block state follows renames and deletions, and structural changes
// schedule a tag index rebuild.
func (e *Engine) HandleNotification(n Notification) {
	e.log.Debug("notification", "kind", n.Kind, "doc", n.DocumentID, "old", n.OldID)
	switch n.Kind {
	case Modified, StructuralResolved, Created:
		e.persisted.Invalidate(n.DocumentID)
	case Renamed:
		e.persisted.Invalidate(n.OldID)
		e.persisted.Invalidate(n.DocumentID)
		e.store.Rename(n.OldID, n.DocumentID)
		e.renameBlocks(n.OldID, n.DocumentID)
	case Deleted:
		e.persisted.Invalidate(n.DocumentID)
		e.forgetDocument(n.DocumentID)
	}
	if n.structural() && e.rebuilder != nil {
		e.rebuilder.Trigger()
	}
}

// Stats returns a copy of the write counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Close flushes pending writes and stops background work.
func (e *Engine) Close() {
	e.FlushAll()
	if e.rebuilder != nil {
		e.rebuilder.Stop()
	}
	e.mu.Lock()
	for _, b := range e.blocks {
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
	}
	e.mu.Unlock()
	e.cancel()
}

// writeCycle reads the document, renders st into its managed region and
// writes it back. Nothing cached is trusted: the region is located in the
// text read here.
func (e *Engine) writeCycle(b *block, id blockstore.Identity, st blockstore.State) error {
	e.mu.Lock()
	timeout := e.writeTimeout
	e.mu.Unlock()
	ctx, cancel := context.WithTimeout(e.ctx, timeout)
	defer cancel()

	text, err := e.docs.Read(ctx, id.DocumentID)
	if err != nil {
		return fmt.Errorf("read %s: %w", id.DocumentID, err)
	}
	withRegion, r := region.EnsureRegion(text)
	terms := filter.Expand(st.Input, e.provider, e.maxTags)
	body := filter.Body(st.Input, st.Caret, terms)
	out, relocated := region.ReplaceRegionBody(withRegion, r, body)
	if !relocated {
		e.log.Warn("region markers not found, using previous offsets", "doc", id.DocumentID)
		e.count(func(s *Stats) { s.Fallbacks++ })
	}
	if out == text {
		e.count(func(s *Stats) { s.Unchanged++ })
		return nil
	}
	if e.writeAbandoned(b) {
		e.log.Debug("document deleted, dropping write", "doc", id.DocumentID, "ordinal", id.Ordinal)
		return nil
	}
	if err := e.docs.Write(ctx, id.DocumentID, out); err != nil {
		return fmt.Errorf("write %s: %w", id.DocumentID, err)
	}
	e.persisted.Invalidate(id.DocumentID)
	e.count(func(s *Stats) { s.Writes++ })
	e.log.Debug("wrote filter", "doc", id.DocumentID, "ordinal", id.Ordinal, "terms", len(terms))
	return nil
}

func (e *Engine) count(f func(*Stats)) {
	e.mu.Lock()
	f(&e.stats)
	e.mu.Unlock()
}
