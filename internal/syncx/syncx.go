// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Mailbox is a single-slot, overwrite-on-write hand-off cell: one writer
// publishes values, any number of readers take the latest without blocking.
// Unread values are silently replaced; there is no backlog.
type Mailbox[T any] struct {
	mu  sync.RWMutex
	val T
	set bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Put replaces the stored value, discarding any previous one.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.val = v
	m.set = true
	m.mu.Unlock()
}

// Latest returns the most recently stored value, or false before the first Put.
func (m *Mailbox[T]) Latest() (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.val, m.set
}

// Clear empties the slot.
func (m *Mailbox[T]) Clear() {
	m.mu.Lock()
	var zero T
	m.val = zero
	m.set = false
	m.mu.Unlock()
}

// RWGuard wraps RWMutex with scoped lock helpers that return values.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Get returns a copy of the value (T should be value type or immutable).
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set atomically replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Update executes fn while holding the write lock, returning a result.
func (g *RWGuard[T]) Update(fn func(*T) any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn(&g.value)
}
