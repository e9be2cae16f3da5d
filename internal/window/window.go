// Package window keeps the last N keyed values of a live stream for display.
package window

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry is one keyed value in a window snapshot.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Window is a bounded, insertion-ordered map. Adding beyond capacity evicts
// the oldest entries first. Re-adding an existing key updates its value in
// place without moving it.
type Window[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[K, V]
}

// New creates a window holding at most capacity entries.
func New[K comparable, V any](capacity int) *Window[K, V] {
	if capacity <= 0 {
		panic("window: capacity must be > 0")
	}
	return &Window[K, V]{
		capacity: capacity,
		entries:  orderedmap.New[K, V](),
	}
}

// Add inserts the value and returns the resulting window contents, oldest first.
func (w *Window[K, V]) Add(key K, value V) []Entry[K, V] {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries.Set(key, value)
	for w.entries.Len() > w.capacity {
		oldest := w.entries.Oldest()
		w.entries.Delete(oldest.Key)
	}
	return w.snapshotLocked()
}

// Snapshot returns the window contents, oldest first.
func (w *Window[K, V]) Snapshot() []Entry[K, V] {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Window[K, V]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries.Len()
}

func (w *Window[K, V]) Cap() int {
	return w.capacity
}

func (w *Window[K, V]) snapshotLocked() []Entry[K, V] {
	out := make([]Entry[K, V], 0, w.entries.Len())
	for pair := w.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry[K, V]{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// Values strips the keys from a snapshot.
func Values[K comparable, V any](entries []Entry[K, V]) []V {
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}
