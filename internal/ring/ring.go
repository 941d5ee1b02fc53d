// Package ring provides the fixed-capacity circular storage
// used by the protected buffers. It is not safe for concurrent use.
package ring

import "errors"

// ErrInvalidCapacity is returned when the capacity is lower than 1.
var ErrInvalidCapacity = errors.New("ring buffer: capacity must be at least 1")

// Buffer is a fixed-capacity FIFO ring of slots.
// The caller must guarantee exclusive access during every call.
type Buffer[T any] struct {
	slots []T

	// head is the index of the next slot to read
	head int
	// count is the number of occupied slots
	count int
}

// New returns a new ring buffer with the given capacity.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	return &Buffer[T]{
		slots: make([]T, capacity),
	}, nil
}

// Put inserts the item at the tail.
// It returns false if the buffer is full.
func (b *Buffer[T]) Put(item T) bool {
	if b.count == len(b.slots) {
		return false
	}

	tail := (b.head + b.count) % len(b.slots)
	b.slots[tail] = item
	b.count++

	return true
}

// Get removes and returns the item at the head.
// It returns false if the buffer is empty.
func (b *Buffer[T]) Get() (T, bool) {
	var zero T

	if b.count == 0 {
		return zero, false
	}

	item := b.slots[b.head]

	// Drop the reference so the item is owned by the caller only
	b.slots[b.head] = zero

	b.head = (b.head + 1) % len(b.slots)
	b.count--

	return item, true
}

// Len returns the number of occupied slots.
func (b *Buffer[T]) Len() int {
	return b.count
}

// Cap returns the capacity of the buffer.
func (b *Buffer[T]) Cap() int {
	return len(b.slots)
}
