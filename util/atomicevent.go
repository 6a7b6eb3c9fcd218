package util

import (
	"sync"
)

// AtomicMapEvent collects keyed values (e.g. pin states by pin name)
// until a reader consumes them. Later values for the same key replace
// earlier ones.
type AtomicMapEvent[T any] struct {
	mu     sync.Mutex
	value  map[string]T
	notify chan struct{}
}

// NewAtomicMapEvent creates a new AtomicMapEvent instance.
func NewAtomicMapEvent[T any]() *AtomicMapEvent[T] {
	return &AtomicMapEvent[T]{
		notify: make(chan struct{}, 1),
		value:  make(map[string]T),
	}
}

// Send stores event under key. It never blocks.
func (ae *AtomicMapEvent[T]) Send(key string, event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value[key] = event
	select {
	case ae.notify <- struct{}{}:
	default:
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicMapEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// ConsumeValues returns everything sent since the last call and clears
// both the map and any pending notification.
func (ae *AtomicMapEvent[T]) ConsumeValues() map[string]T {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ret := ae.value
	ae.value = make(map[string]T)
	select {
	case <-ae.notify:
	default:
	}
	return ret
}

// HasPending checks if a notification is waiting to be consumed.
func (ae *AtomicMapEvent[T]) HasPending() bool {
	return len(ae.notify) > 0
}
