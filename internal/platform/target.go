package platform

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

// Subscription pairs a listener with the registry it was added to.
// Release removes it; releasing twice, or a nil subscription, is a no-op.
type Subscription struct {
	released atomic.Bool
	release  func()
}

// NewSubscription wraps a removal function. Sensor implementations use it
// to hand out their own listener handles.
func NewSubscription(release func()) *Subscription {
	return &Subscription{release: release}
}

func (s *Subscription) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.release != nil {
		s.release()
	}
}

// Released reports whether Release was called.
func (s *Subscription) Released() bool {
	return s != nil && s.released.Load()
}

// Target is a listener registry for one event type.
type Target[E any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]func(E)
}

// NewTarget creates an empty registry.
func NewTarget[E any]() *Target[E] {
	return &Target[E]{listeners: make(map[uint64]func(E))}
}

// Listen registers fn and returns the handle needed to remove it.
func (t *Target[E]) Listen(fn func(E)) *Subscription {
	t.mu.Lock()
	if t.listeners == nil {
		t.listeners = make(map[uint64]func(E))
	}
	id := t.next
	t.next++
	t.listeners[id] = fn
	t.mu.Unlock()

	return NewSubscription(func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	})
}

// Dispatch calls every listener registered at the time of the call, in
// registration order. Listeners run outside the lock and may release
// their own subscription.
func (t *Target[E]) Dispatch(ev E) {
	type entry struct {
		id uint64
		fn func(E)
	}
	t.mu.RLock()
	entries := make([]entry, 0, len(t.listeners))
	for id, fn := range t.listeners {
		entries = append(entries, entry{id, fn})
	}
	t.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.id, b.id) })
	for _, e := range entries {
		e.fn(ev)
	}
}

// Len returns the number of registered listeners.
func (t *Target[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}
