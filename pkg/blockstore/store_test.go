package blockstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/tagfilter/pkg/statecodec"
	"github.com/charmbracelet/log"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func TestStoreLastWriteWins(t *testing.T) {
	s := NewStore()
	id := Identity{DocumentID: "a.md", Ordinal: 0}
	if _, ok := s.Get(id); ok {
		t.Fatal("empty store returned state")
	}
	s.Set(id, State{Input: "#pro", Caret: 4})
	s.Set(id, State{Input: "#proj", Caret: 5})
	got, ok := s.Get(id)
	if !ok || got != (State{Input: "#proj", Caret: 5}) {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestStoreClampsCaret(t *testing.T) {
	s := NewStore()
	id := Identity{DocumentID: "a.md"}
	s.Set(id, State{Input: "ab", Caret: 10})
	if got, _ := s.Get(id); got.Caret != 2 {
		t.Errorf("caret = %d, want 2", got.Caret)
	}
	s.Set(id, State{Input: "ab", Caret: -3})
	if got, _ := s.Get(id); got.Caret != 0 {
		t.Errorf("caret = %d, want 0", got.Caret)
	}
}

func TestStoreEvict(t *testing.T) {
	s := NewStore()
	s.Set(Identity{"a.md", 0}, State{Input: "x"})
	s.Set(Identity{"a.md", 1}, State{Input: "y"})
	s.Set(Identity{"b.md", 0}, State{Input: "z"})

	s.Evict(Identity{"b.md", 0})
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
	if n := s.EvictDocument("a.md"); n != 2 {
		t.Errorf("EvictDocument = %d, want 2", n)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after evicting", s.Len())
	}
}

type fakeReader struct {
	mu    sync.Mutex
	docs  map[string]string
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeReader) Read(_ context.Context, id string) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.docs[id], nil
}

func (f *fakeReader) set(id, text string) {
	f.mu.Lock()
	f.docs[id] = text
	f.mu.Unlock()
}

func doc(input string, caret int) string {
	return "# Note\n\n```base\n# BEGIN FILTERS (managed by tagfilter)\n" +
		statecodec.SerializeState(input, caret) +
		"filters:\n# END FILTERS\n```\n"
}

func TestPersistedLoaderMemoizes(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("#proj x", 3)}}
	l := NewPersistedLoader(r)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		st, ok := l.Load(ctx, "a.md")
		if !ok || st != (State{Input: "#proj x", Caret: 3}) {
			t.Fatalf("Load = %+v, %v", st, ok)
		}
	}
	if l.Reads() != 1 {
		t.Errorf("Reads = %d, want 1", l.Reads())
	}
}

func TestPersistedLoaderAbsentIsMemoized(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"plain.md": "no region here\n"}}
	l := NewPersistedLoader(r)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, ok := l.Load(ctx, "plain.md"); ok {
			t.Fatal("expected absent")
		}
	}
	if l.Reads() != 1 {
		t.Errorf("Reads = %d, want 1", l.Reads())
	}
}

func TestPersistedLoaderErrorsNotMemoized(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("x", 1)}, err: errors.New("disk gone")}
	l := NewPersistedLoader(r)
	ctx := context.Background()
	if _, ok := l.Load(ctx, "a.md"); ok {
		t.Fatal("expected absent on error")
	}
	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()
	if st, ok := l.Load(ctx, "a.md"); !ok || st.Input != "x" {
		t.Errorf("Load after recovery = %+v, %v", st, ok)
	}
	if l.Reads() != 2 {
		t.Errorf("Reads = %d, want 2", l.Reads())
	}
}

func TestPersistedLoaderInvalidate(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("old", 3)}}
	l := NewPersistedLoader(r)
	ctx := context.Background()

	l.Load(ctx, "a.md")
	r.set("a.md", doc("new", 1))
	if st, _ := l.Load(ctx, "a.md"); st.Input != "old" {
		t.Fatalf("memo not used: %+v", st)
	}
	l.Invalidate("a.md")
	if st, _ := l.Load(ctx, "a.md"); st != (State{Input: "new", Caret: 1}) {
		t.Errorf("after invalidate = %+v", st)
	}
}

func TestPersistedLoaderInvalidateDuringLoad(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("old", 3)}, gate: make(chan struct{})}
	l := NewPersistedLoader(r)
	ctx := context.Background()

	done := make(chan State)
	go func() {
		st, _ := l.Load(ctx, "a.md")
		done <- st
	}()
	deadline := time.Now().Add(5 * time.Second)
	for l.Reads() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("load never started")
		}
		time.Sleep(time.Millisecond)
	}
	l.Invalidate("a.md")
	r.set("a.md", doc("new", 1))
	close(r.gate)
	if st := <-done; st.Input != "old" {
		t.Errorf("in-flight load = %+v", st)
	}

	if st, _ := l.Load(ctx, "a.md"); st.Input != "new" {
		t.Errorf("stale result was memoized: %+v", st)
	}
	if l.Reads() != 2 {
		t.Errorf("Reads = %d, want 2", l.Reads())
	}
}

func TestPersistedLoaderDoesNotGrowOnInvalidate(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("x", 1)}}
	l := NewPersistedLoader(r)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("note-%d.md", i)
		l.Invalidate(id)
		l.Load(ctx, "a.md")
		l.Invalidate("a.md")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.gens) != 0 || len(l.inflight) != 0 {
		t.Errorf("gens = %d, inflight = %d, want both empty", len(l.gens), len(l.inflight))
	}
}

func TestPersistedLoaderSharesConcurrentReads(t *testing.T) {
	r := &fakeReader{docs: map[string]string{"a.md": doc("shared", 6)}, gate: make(chan struct{})}
	l := NewPersistedLoader(r)

	var wg sync.WaitGroup
	results := make([]State, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = l.Load(context.Background(), "a.md")
		}(i)
	}
	close(r.gate)
	wg.Wait()

	for i, st := range results {
		if st.Input != "shared" {
			t.Errorf("result %d = %+v", i, st)
		}
	}
	if l.Reads() != 1 {
		t.Errorf("Reads = %d, want 1", l.Reads())
	}
}

func TestStoreRename(t *testing.T) {
	s := NewStore()
	s.Set(Identity{"old.md", 0}, State{Input: "a", Caret: 1})
	s.Set(Identity{"old.md", 2}, State{Input: "b", Caret: 1})
	s.Set(Identity{"other.md", 0}, State{Input: "c", Caret: 1})

	if n := s.Rename("old.md", "new.md"); n != 2 {
		t.Fatalf("Rename = %d, want 2", n)
	}
	if _, ok := s.Get(Identity{"old.md", 0}); ok {
		t.Error("old identity still present")
	}
	if st, ok := s.Get(Identity{"new.md", 2}); !ok || st.Input != "b" {
		t.Errorf("renamed state = %+v, %v", st, ok)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d", s.Len())
	}
}
