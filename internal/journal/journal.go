// Package journal keeps append-only, group-keyed logs of transactions and chat messages.
package journal

import (
	"slices"
	"sync"

	"gitlab.com/flik/groupledger/internal/models"
)

// Entry is anything that belongs to a group.
type Entry interface {
	GroupKey() string
}

// Log is an append-only log that preserves insertion order. It is safe for concurrent use.
type Log[T Entry] struct {
	mu      sync.RWMutex
	entries []T
	byGroup map[string][]int
}

// New returns an empty log.
func New[T Entry]() *Log[T] {
	return &Log[T]{byGroup: make(map[string][]int)}
}

// Append adds entries at the end of the log.
func (l *Log[T]) Append(entries ...T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLocked(entries)
}

// Replace discards all entries and appends entries in their place.
func (l *Log[T]) Replace(entries ...T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.byGroup = nil
	l.appendLocked(entries)
}

func (l *Log[T]) appendLocked(entries []T) {
	if l.byGroup == nil {
		l.byGroup = make(map[string][]int)
	}
	for _, e := range entries {
		key := e.GroupKey()
		l.byGroup[key] = append(l.byGroup[key], len(l.entries))
		l.entries = append(l.entries, e)
	}
}

// ListByGroup returns the entries of a group, most recent last.
func (l *Log[T]) ListByGroup(groupID string) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.byGroup[groupID]
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = l.entries[j]
	}
	return out
}

// Filter returns every entry for which keep returns true, in insertion order.
func (l *Log[T]) Filter(keep func(T) bool) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []T
	for _, e := range l.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry in insertion order.
func (l *Log[T]) All() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *Log[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Transactions is the log of payments and requests.
type Transactions = Log[models.Transaction]

// Messages is the chat log.
type Messages = Log[models.ChatMessage]
