// Package observable provides thread-safe values that notify observers
// asynchronously when a new value is posted.
package observable

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/srg/imurec/internal/groutine"
)

// Value holds the latest posted value of a field consumed by a view layer.
//
// Post never blocks on observers: it stores the value and wakes a dispatcher
// goroutine, which hands the newest value to every observer. Rapid posts may be
// coalesced, so observers are guaranteed to see the last value but not every
// intermediate one. Order is preserved per Value.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	posted  bool

	observers *hashmap.Map[uint64, func(T)]
	nextID    atomic.Uint64

	wake      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a Value with the given initial value and starts its dispatcher.
// Close must be called to stop the dispatcher.
func New[T any](name string, initial T) *Value[T] {
	ctx, cancel := context.WithCancel(context.Background())
	v := &Value[T]{
		current:   initial,
		observers: hashmap.New[uint64, func(T)](),
		wake:      make(chan struct{}, 1),
		cancel:    cancel,
	}
	groutine.Go(ctx, "observable:"+name, v.dispatch)
	return v
}

// Post stores val and schedules observer notification. Safe from any goroutine.
func (v *Value[T]) Post(val T) {
	v.mu.Lock()
	v.current = val
	v.posted = true
	v.mu.Unlock()

	select {
	case v.wake <- struct{}{}:
	default:
		// a notification is already pending and will pick up val
	}
}

// Get returns the latest value and whether anything has been posted yet.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current, v.posted
}

// Observe registers fn and returns a function that unregisters it.
func (v *Value[T]) Observe(fn func(T)) (cancel func()) {
	id := v.nextID.Add(1)
	v.observers.Set(id, fn)
	return func() {
		v.observers.Del(id)
	}
}

// Close stops the dispatcher. Values may still be posted and read afterwards,
// but observers are no longer notified.
func (v *Value[T]) Close() {
	v.closeOnce.Do(v.cancel)
}

func (v *Value[T]) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.wake:
			val, _ := v.Get()
			v.observers.Range(func(_ uint64, fn func(T)) bool {
				fn(val)
				return true
			})
		}
	}
}
