package tagindex

import (
	"context"
	"sync"
	"time"

	"github.com/bastiangx/tagfilter/internal/clock"
)

// Rebuilder debounces rebuild requests so bulk renames or deletes cause one
// rebuild instead of a storm.
type Rebuilder struct {
	ix    *Index
	src   Source
	clk   clock.Clock
	delay time.Duration
	ctx   context.Context

	mu      sync.Mutex
	timer   clock.Timer
	running bool
	again   bool
	stopped bool
}

// NewRebuilder creates a debounced trigger for ix.Rebuild(ctx, src).
func NewRebuilder(ctx context.Context, ix *Index, src Source, clk clock.Clock, delay time.Duration) *Rebuilder {
	return &Rebuilder{ix: ix, src: src, clk: clk, delay: delay, ctx: ctx}
}

// Trigger (re)starts the quiet-period countdown.
func (r *Rebuilder) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.running {
		r.again = true
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = r.clk.AfterFunc(r.delay, r.fire)
}

// SetDelay changes the quiet period for subsequent triggers.
func (r *Rebuilder) SetDelay(d time.Duration) {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
}

// Stop cancels any scheduled rebuild.
func (r *Rebuilder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Rebuilder) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.running = true
	r.mu.Unlock()

	if _, err := r.ix.Rebuild(r.ctx, r.src); err != nil {
		r.ix.log.Warn("tag index rebuild failed", "err", err)
	}

	r.mu.Lock()
	r.running = false
	again := r.again
	r.again = false
	r.mu.Unlock()
	if again {
		r.Trigger()
	}
}
