// Package blockstore remembers the last known input text and caret of every
// live search box so re-renders can restore them without touching the
// document.
package blockstore

import (
	"fmt"
	"sync"

	"github.com/bastiangx/tagfilter/internal/utils"
)

// Identity names one search box: the document it lives in and its position
// among the boxes rendered for that document.
type Identity struct {
	DocumentID string
	Ordinal    int
}

func (id Identity) String() string {
	return fmt.Sprintf("%s#%d", id.DocumentID, id.Ordinal)
}

// State is the input text and caret of one box. Caret is in UTF-16 code units.
type State struct {
	Input string
	Caret int
}

// Clamped returns s with its caret bounded to the input length.
func (s State) Clamped() State {
	s.Caret = utils.ClampCaret(s.Input, s.Caret)
	return s
}

// Store is a concurrency-safe Identity -> State map. Last write wins.
type Store struct {
	mu     sync.RWMutex
	states map[Identity]State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{states: make(map[Identity]State)}
}

// Get returns the state for id with its caret clamped.
func (s *Store) Get(id Identity) (State, bool) {
	s.mu.RLock()
	st, ok := s.states[id]
	s.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	return st.Clamped(), true
}

// Set records st for id.
func (s *Store) Set(id Identity, st State) {
	s.mu.Lock()
	s.states[id] = st.Clamped()
	s.mu.Unlock()
}

// Evict forgets id.
func (s *Store) Evict(id Identity) {
	s.mu.Lock()
	delete(s.states, id)
	s.mu.Unlock()
}

// EvictDocument forgets every box of docID and returns how many were dropped.
func (s *Store) EvictDocument(docID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.states {
		if id.DocumentID == docID {
			delete(s.states, id)
			n++
		}
	}
	return n
}

// Rename moves every box of oldID to newID, keeping ordinals.
func (s *Store) Rename(oldID, newID string) int {
	if oldID == newID {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	moved := make(map[Identity]State)
	for id, st := range s.states {
		if id.DocumentID == oldID {
			delete(s.states, id)
			moved[Identity{DocumentID: newID, Ordinal: id.Ordinal}] = st
		}
	}
	for id, st := range moved {
		s.states[id] = st
	}
	return len(moved)
}

// Len returns the number of tracked boxes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
