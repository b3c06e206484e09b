// Package relay implements a single-slot "latest value wins" handoff
// between one producer and consumers running on their own schedule.
package relay

import "sync"

// Slot is the contract shared by the display and network paths.
type Slot[T any] interface {
	// Publish replaces the held value and returns its sequence number.
	Publish(v T) uint64
	// TakeIfDirty returns the held value if it was published after the last take.
	TakeIfDirty() (T, bool)
	// Peek returns the most recent value and its sequence without consuming it.
	// Relays that own their values report nothing once the value was taken.
	Peek() (T, uint64, bool)
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Seq         uint64 `json:"seq"`
	Published   uint64 `json:"published"`
	Taken       uint64 `json:"taken"`
	Overwritten uint64 `json:"overwritten"`
	Dirty       bool   `json:"dirty"`
}

// Relay is a mutex-guarded single slot. Publish and TakeIfDirty never block
// on each other beyond the value swap.
type Relay[T any] struct {
	mu        sync.Mutex
	value     T
	has       bool
	dirty     bool
	seq       uint64
	taken     uint64
	overwrite uint64
	onDiscard func(T)
}

var _ Slot[int] = (*Relay[int])(nil)

// Option configures a Relay.
type Option[T any] func(*Relay[T])

// WithDiscard registers fn to receive values that were overwritten before
// any consumer took them. fn runs outside the lock.
//
// A relay with a discard hook owns what it holds, so TakeIfDirty moves the
// value out and leaves the slot empty; Peek then reports nothing until the
// next Publish. Recycling a taken value cannot leak into a later Peek.
func WithDiscard[T any](fn func(T)) Option[T] {
	return func(r *Relay[T]) {
		r.onDiscard = fn
	}
}

// New creates an empty relay.
func New[T any](opts ...Option[T]) *Relay[T] {
	r := &Relay[T]{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish implements Slot.
func (r *Relay[T]) Publish(v T) uint64 {
	r.mu.Lock()
	prev, discard := r.value, r.dirty
	r.value = v
	r.has = true
	r.dirty = true
	r.seq++
	seq := r.seq
	if discard {
		r.overwrite++
	}
	r.mu.Unlock()

	if discard && r.onDiscard != nil {
		r.onDiscard(prev)
	}
	return seq
}

// TakeIfDirty implements Slot.
func (r *Relay[T]) TakeIfDirty() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		var zero T
		return zero, false
	}
	r.dirty = false
	r.taken++
	v := r.value
	if r.onDiscard != nil {
		var zero T
		r.value = zero
		r.has = false
	}
	return v, true
}

// Peek implements Slot.
func (r *Relay[T]) Peek() (T, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.seq, r.has
}

// Stats returns the current counters.
func (r *Relay[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Seq:         r.seq,
		Published:   r.seq,
		Taken:       r.taken,
		Overwritten: r.overwrite,
		Dirty:       r.dirty,
	}
}
