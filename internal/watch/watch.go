// Package watch provides a single-slot broadcast cell: the latest value plus a
// change notification.
//
// Any number of receivers may subscribe. A receiver observes changes in order
// but only ever sees the most recent value; intermediate values written between
// two reads are skipped. Writers never block on receivers.
package watch

import (
	"context"
	"sync"
)

// Value holds the latest value of type T.
type Value[T any] struct {
	mu      sync.RWMutex
	v       T
	version uint64
	changed chan struct{}
}

// New creates a cell holding v.
func New[T any](v T) *Value[T] {
	return &Value[T]{
		v:       v,
		changed: make(chan struct{}),
	}
}

// Load returns the current value.
func (w *Value[T]) Load() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.v
}

// Version returns the number of stores since creation.
func (w *Value[T]) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Store replaces the value and wakes every receiver.
func (w *Value[T]) Store(v T) {
	w.mu.Lock()
	w.v = v
	w.publishLocked()
	w.mu.Unlock()
}

// Update applies fn to the current value under the write lock and stores the
// result. It returns the stored value.
func (w *Value[T]) Update(fn func(T) T) T {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.v = fn(w.v)
	w.publishLocked()
	return w.v
}

// CompareAndStore stores v only if eq reports it differs from the current
// value. It returns true when a store happened.
func (w *Value[T]) CompareAndStore(v T, eq func(a, b T) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if eq(w.v, v) {
		return false
	}
	w.v = v
	w.publishLocked()
	return true
}

func (w *Value[T]) publishLocked() {
	w.version++
	close(w.changed)
	w.changed = make(chan struct{})
}

// Subscribe returns a receiver positioned at the current version: the value
// present now counts as already seen.
func (w *Value[T]) Subscribe() *Receiver[T] {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return &Receiver[T]{w: w, seen: w.version}
}

var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Receiver tracks which version of a Value its owner has seen. A Receiver is
// not safe for concurrent use; each goroutine subscribes its own.
type Receiver[T any] struct {
	w    *Value[T]
	seen uint64
}

// Changed returns a channel that is closed once the cell holds a version the
// receiver has not seen yet. Call Borrow after it fires.
func (r *Receiver[T]) Changed() <-chan struct{} {
	r.w.mu.RLock()
	defer r.w.mu.RUnlock()
	if r.w.version != r.seen {
		return closed
	}
	return r.w.changed
}

// HasChanged reports whether an unseen version is available.
func (r *Receiver[T]) HasChanged() bool {
	r.w.mu.RLock()
	defer r.w.mu.RUnlock()
	return r.w.version != r.seen
}

// Borrow returns the latest value and marks it seen.
func (r *Receiver[T]) Borrow() T {
	r.w.mu.RLock()
	defer r.w.mu.RUnlock()
	r.seen = r.w.version
	return r.w.v
}

// Wait blocks until an unseen version is available, then returns it.
func (r *Receiver[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.Changed():
		return r.Borrow(), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
