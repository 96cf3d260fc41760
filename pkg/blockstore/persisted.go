package blockstore

import (
	"context"
	"strconv"
	"sync"

	"github.com/bastiangx/tagfilter/internal/logger"
	"github.com/bastiangx/tagfilter/pkg/region"
	"github.com/bastiangx/tagfilter/pkg/statecodec"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Reader fetches the whole text of a document.
type Reader interface {
	Read(ctx context.Context, id string) (string, error)
}

type memoEntry struct {
	state State
	found bool
}

// PersistedLoader reads the state embedded in a document's managed region.
// Each document is read at most once until it is invalidated; concurrent
// loads for the same document share one read.
type PersistedLoader struct {
	reader Reader
	group  singleflight.Group
	log    *log.Logger

	mu   sync.Mutex
	memo map[string]memoEntry
	// gens and inflight only hold documents with a load in progress.
	gens     map[string]uint64
	inflight map[string]int
	reads    int
}

// NewPersistedLoader creates a loader reading through r.
func NewPersistedLoader(r Reader) *PersistedLoader {
	return &PersistedLoader{
		reader:   r,
		log:      logger.New("blockstore"),
		memo:     make(map[string]memoEntry),
		gens:     make(map[string]uint64),
		inflight: make(map[string]int),
	}
}

// Load returns the persisted state of docID. It reports false when the
// document has no region or no state lines. Read errors are logged, reported
// as absent and not memoized.
func (l *PersistedLoader) Load(ctx context.Context, docID string) (State, bool) {
	l.mu.Lock()
	if e, ok := l.memo[docID]; ok {
		l.mu.Unlock()
		return e.state, e.found
	}
	gen := l.gens[docID]
	l.inflight[docID]++
	l.mu.Unlock()
	defer l.settle(docID)

	key := docID + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := l.group.Do(key, func() (any, error) {
		l.mu.Lock()
		if e, ok := l.memo[docID]; ok {
			l.mu.Unlock()
			return e, nil
		}
		l.reads++
		l.mu.Unlock()

		text, err := l.reader.Read(ctx, docID)
		if err != nil {
			return nil, err
		}
		e := parse(text)

		l.mu.Lock()
		if l.gens[docID] == gen {
			l.memo[docID] = e
		}
		l.mu.Unlock()
		return e, nil
	})
	if err != nil {
		l.log.Warn("could not load persisted state", "doc", docID, "err", err)
		return State{}, false
	}
	e := v.(memoEntry)
	return e.state, e.found
}

// Invalidate drops the memo for docID. A load already in flight is still
// answered but its result is not kept.
func (l *PersistedLoader) Invalidate(docID string) {
	l.mu.Lock()
	delete(l.memo, docID)
	if l.inflight[docID] > 0 {
		l.gens[docID]++
	}
	l.mu.Unlock()
}

func (l *PersistedLoader) settle(docID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inflight[docID] > 1 {
		l.inflight[docID]--
		return
	}
	delete(l.inflight, docID)
	delete(l.gens, docID)
}

// Reads returns how many document reads the loader has issued.
func (l *PersistedLoader) Reads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reads
}

func parse(text string) memoEntry {
	r, ok := region.Locate(text)
	if !ok {
		return memoEntry{}
	}
	st, ok := statecodec.ParseState(r.Body(text))
	if !ok {
		return memoEntry{}
	}
	return memoEntry{state: State{Input: st.Input, Caret: st.Caret}, found: true}
}
