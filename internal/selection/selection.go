// Package selection tracks which records go into a photo report and which
// of their images is currently chosen.
package selection

import (
	"errors"
	"sync"
)

// ErrNotFound is returned for record IDs that are not part of the selection.
var ErrNotFound = errors.New("record not in selection")

// Entry is the selection state of one eligible record.
type Entry struct {
	RecordID   string `json:"record_id"`
	Included   bool   `json:"included"`
	ImageIndex int    `json:"image_index"`
}

// Candidate describes a record when a selection is opened.
type Candidate struct {
	RecordID       string
	ImageCount     int
	PreferredIndex *int // last persisted choice, may be stale
}

// Store holds the selection for one report workflow. It is safe for
// concurrent use; nothing is shared between stores.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
}

// Open creates a store for the eligible candidates (those with at least
// one image). Every eligible record starts included; its index is the
// persisted preference when that is still in range, 0 otherwise.
func Open(candidates []Candidate) *Store {
	s := &Store{
		entries: make(map[string]*Entry, len(candidates)),
	}
	for _, c := range candidates {
		if c.ImageCount <= 0 {
			continue
		}
		if _, dup := s.entries[c.RecordID]; dup {
			continue
		}
		idx := 0
		if c.PreferredIndex != nil && *c.PreferredIndex >= 0 && *c.PreferredIndex < c.ImageCount {
			idx = *c.PreferredIndex
		}
		s.order = append(s.order, c.RecordID)
		s.entries[c.RecordID] = &Entry{RecordID: c.RecordID, Included: true, ImageIndex: idx}
	}
	return s
}

// Toggle flips inclusion of a record and returns the new state.
// The second value is false when the record is not eligible.
func (s *Store) Toggle(recordID string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[recordID]
	if !ok {
		return false, false
	}
	e.Included = !e.Included
	return e.Included, true
}

// SetIncluded sets inclusion of a single record.
func (s *Store) SetIncluded(recordID string, included bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[recordID]
	if !ok {
		return ErrNotFound
	}
	e.Included = included
	return nil
}

// SetAll includes or excludes every eligible record.
func (s *Store) SetAll(included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.Included = included
	}
}

// Advance moves the chosen image of a record by delta, wrapping around a
// list of listLength images, and returns the new index. A zero-length list
// or an unknown record leaves the state untouched.
func (s *Store) Advance(recordID string, delta, listLength int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[recordID]
	if !ok {
		return 0
	}
	if listLength <= 0 {
		return e.ImageIndex
	}
	e.ImageIndex = ((e.ImageIndex+delta)%listLength + listLength) % listLength
	return e.ImageIndex
}

// SetIndex selects a specific image. Negative indexes are rejected; an
// index past the end is kept and clamped when the report is built.
func (s *Store) SetIndex(recordID string, index int) error {
	if index < 0 {
		return errors.New("image index must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[recordID]
	if !ok {
		return ErrNotFound
	}
	e.ImageIndex = index
	return nil
}

// Entry returns a copy of the entry for a record.
func (s *Store) Entry(recordID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[recordID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Included reports whether a record is eligible and checked.
func (s *Store) Included(recordID string) bool {
	e, ok := s.Entry(recordID)
	return ok && e.Included
}

// Entries returns copies of all entries in the order they were opened.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.entries[id])
	}
	return out
}

// IncludedCount returns how many records are currently checked.
func (s *Store) IncludedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Included {
			n++
		}
	}
	return n
}

// Len returns the number of eligible records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
