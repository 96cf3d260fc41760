package syncer

import (
	"time"

	"github.com/bastiangx/tagfilter/internal/clock"
	"github.com/bastiangx/tagfilter/pkg/blockstore"
)

// block is the scheduler state of one box. Guarded by Engine.mu.
type block struct {
	id        blockstore.Identity
	phase     Phase
	composing bool
	// dirty records edits that arrived while a write was in flight.
	dirty bool
	// commit makes the next countdown fire immediately.
	commit  bool
	closing bool
	// deleted marks a block whose document went away mid-write.
	deleted bool
	timer   clock.Timer
	gen     uint64
}

func (e *Engine) blockLocked(id blockstore.Identity) *block {
	b, ok := e.blocks[id]
	if !ok {
		b = &block{id: id}
		e.blocks[id] = b
	}
	return b
}

// HandleEvent feeds one edit event into the box's state machine. It records
// input right away and never waits on I/O.
func (e *Engine) HandleEvent(id blockstore.Identity, ev Event) {
	if ev.Kind == EventInput {
		e.store.Set(id, blockstore.State{Input: ev.Input, Caret: ev.Caret})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.blockLocked(id)
	b.closing = false
	from := b.phase

	switch ev.Kind {
	case EventInput:
		switch {
		case b.phase == PhaseWriting:
			b.dirty = true
		case b.composing:
			e.stopLocked(b)
			b.phase = PhaseComposing
		default:
			e.scheduleLocked(b, e.delayLocked(b))
		}
	case EventCompositionStart:
		b.composing = true
		if b.phase == PhasePending {
			e.stopLocked(b)
			b.phase = PhaseComposing
		}
	case EventCompositionEnd:
		b.composing = false
		switch b.phase {
		case PhaseComposing:
			b.commit = true
			e.scheduleLocked(b, 0)
		case PhaseWriting:
			if b.dirty {
				b.commit = true
			}
		}
	}
	e.log.Debug("event", "block", id, "kind", ev.Kind, "from", from, "to", b.phase)
}

// Phase returns the scheduler state of id.
func (e *Engine) Phase(id blockstore.Identity) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.blocks[id]; ok {
		return b.phase
	}
	return PhaseIdle
}

// CloseDocument forgets the boxes of docID. Boxes with a countdown running or
// a write in flight keep their state until that write settles; the document's
// remaining state is evicted once the last of them does.
func (e *Engine) CloseDocument(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	busy := false
	for id, b := range e.blocks {
		if id.DocumentID != docID {
			continue
		}
		if b.phase == PhasePending || b.phase == PhaseWriting {
			b.closing = true
			busy = true
			continue
		}
		e.stopLocked(b)
		delete(e.blocks, id)
		e.store.Evict(id)
	}
	if !busy {
		e.store.EvictDocument(docID)
	}
}

// forgetDocument drops every box of docID, cancelling countdowns. A write
// already in flight still completes.
func (e *Engine) forgetDocument(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, b := range e.blocks {
		if id.DocumentID != docID {
			continue
		}
		if b.phase == PhaseWriting {
			b.closing = true
			b.deleted = true
			b.dirty = false
			continue
		}
		e.stopLocked(b)
		b.phase = PhaseIdle
		delete(e.blocks, id)
	}
	e.store.EvictDocument(docID)
}

// FlushAll runs every pending write now, on the calling goroutine.
func (e *Engine) FlushAll() {
	type due struct {
		b   *block
		gen uint64
	}
	var todo []due
	e.mu.Lock()
	for _, b := range e.blocks {
		if b.phase == PhasePending {
			todo = append(todo, due{b, b.gen})
		}
	}
	e.mu.Unlock()
	for _, d := range todo {
		e.fire(d.b, d.gen)
	}
}

func (e *Engine) delayLocked(b *block) time.Duration {
	if b.commit {
		return 0
	}
	return e.debounce
}

// scheduleLocked (re)starts the countdown. Bumping gen makes a timer that
// already fired but has not taken the lock yet a no-op.
func (e *Engine) scheduleLocked(b *block, d time.Duration) {
	e.stopLocked(b)
	b.phase = PhasePending
	gen := b.gen
	b.timer = e.clk.AfterFunc(d, func() { e.fire(b, gen) })
}

func (e *Engine) stopLocked(b *block) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (e *Engine) fire(b *block, gen uint64) {
	e.mu.Lock()
	if b.gen != gen || b.phase != PhasePending || e.blocks[b.id] != b {
		e.mu.Unlock()
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	b.phase = PhaseWriting
	b.commit = false
	id := b.id
	e.mu.Unlock()

	var err error
	if st, ok := e.store.Get(id); ok {
		err = e.writeCycle(b, id, st)
	}
	if err != nil {
		e.count(func(s *Stats) { s.Failures++ })
		e.log.Warn("write cycle failed", "doc", id.DocumentID, "ordinal", id.Ordinal, "err", err)
		e.mu.Lock()
		report := e.report
		e.mu.Unlock()
		if report != nil {
			report(id, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleLocked(b)
}

// settleLocked leaves PhaseWriting. Edits made during the write start a new
// countdown so they are never dropped.
func (e *Engine) settleLocked(b *block) {
	b.deleted = false
	switch {
	case b.dirty && b.composing:
		b.dirty = false
		b.phase = PhaseComposing
	case b.dirty:
		b.dirty = false
		e.scheduleLocked(b, e.delayLocked(b))
	case b.closing:
		b.phase = PhaseIdle
		if e.blocks[b.id] == b {
			delete(e.blocks, b.id)
		}
		e.store.Evict(b.id)
		if !e.hasBlocksLocked(b.id.DocumentID) {
			e.store.EvictDocument(b.id.DocumentID)
		}
	default:
		b.phase = PhaseIdle
	}
}

func (e *Engine) hasBlocksLocked(docID string) bool {
	for id := range e.blocks {
		if id.DocumentID == docID {
			return true
		}
	}
	return false
}

// writeAbandoned reports whether b's document was deleted while it was
// being written.
func (e *Engine) writeAbandoned(b *block) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return b.deleted
}

// renameBlocks moves the boxes of oldID to newID. Countdowns keep running and
// write to the new document.
func (e *Engine) renameBlocks(oldID, newID string) {
	if oldID == newID {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var moved []*block
	for id, b := range e.blocks {
		if id.DocumentID == oldID {
			delete(e.blocks, id)
			moved = append(moved, b)
		}
	}
	for _, b := range moved {
		b.id.DocumentID = newID
		e.blocks[b.id] = b
	}
}
