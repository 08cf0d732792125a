// Package history keeps a bounded in-memory record of locked verdicts for
// the display feed and session statistics.
package history

import (
	"sync"
	"time"
)

// Event is emitted whenever a verdict is recorded.
type Event struct {
	Label      string
	Confidence float64
}

// Entry is one recorded verdict.
type Entry struct {
	Timestamp  time.Time
	Label      string
	Confidence float64
}

// Store interface for verdict history operations.
type Store interface {
	Record(label string, confidence float64)
	Recent(n int) []Entry
	Counts() map[string]int
	Events() <-chan Event
}

// MemoryStore implements in-memory verdict history with a size cap.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
	now      func() time.Time
}

// NewStore creates a verdict history store.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
		now:      time.Now,
	}
}

// Record stores a verdict and notifies listeners (non-blocking).
func (s *MemoryStore) Record(label string, confidence float64) {
	s.mu.Lock()
	s.entries = append(s.entries, Entry{
		Timestamp:  s.now(),
		Label:      label,
		Confidence: confidence,
	})
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	select {
	case s.eventsCh <- Event{Label: label, Confidence: confidence}:
	default:
	}
}

// Recent returns up to n verdicts, newest first.
func (s *MemoryStore) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	result := make([]Entry, n)
	for i := 0; i < n; i++ {
		result[i] = s.entries[len(s.entries)-1-i]
	}
	return result
}

// Counts returns how often each label has been recorded.
func (s *MemoryStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.entries {
		counts[e.Label]++
	}
	return counts
}

// Events returns the channel for verdict events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}
