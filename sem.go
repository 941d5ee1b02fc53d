package pbuffer

import (
	"context"
	"time"

	"github.com/FerroO2000/pbuffer/internal/sem"
)

var _ Buffer[any] = (*SemBuffer[any])(nil)

// SemBuffer is a protected buffer synchronized by two counting semaphores.
// The permits carry the occupancy of the buffer, the mutex only serializes
// the ring mutation.
type SemBuffer[T any] struct {
	*core[T]

	// fullSlots holds one permit per item that can be taken
	fullSlots *sem.Semaphore
	// emptySlots holds one permit per slot that can be filled
	emptySlots *sem.Semaphore
}

// NewSemBuffer returns a new semaphore based buffer.
func NewSemBuffer[T any](capacity int, opts ...Option[T]) (*SemBuffer[T], error) {
	c, err := newCore(capacity, StrategySemaphore, opts)
	if err != nil {
		return nil, err
	}

	return &SemBuffer[T]{
		core: c,

		fullSlots:  sem.New(capacity, 0),
		emptySlots: sem.New(capacity, capacity),
	}, nil
}

// pop takes an item once a full slot permit is held.
func (b *SemBuffer[T]) pop(op Operation) T {
	b.mux.Lock()
	item := b.extract(op)
	b.mux.Unlock()

	b.emptySlots.Release()

	return item
}

// push inserts the item once an empty slot permit is held.
func (b *SemBuffer[T]) push(op Operation, item T) {
	b.mux.Lock()
	b.insert(op, item)
	b.mux.Unlock()

	b.fullSlots.Release()
}

// acquire takes a permit, without waiting if one is available right away.
func acquire(ctx context.Context, permits *sem.Semaphore) bool {
	if permits.TryAcquire() {
		return true
	}

	return permits.AcquireContext(ctx) == nil
}

// Get removes and returns the oldest item.
// It blocks until an item is available.
func (b *SemBuffer[T]) Get() T {
	b.fullSlots.Acquire()
	return b.pop(OpGet)
}

// Put inserts the item.
// It blocks until an empty slot is available.
func (b *SemBuffer[T]) Put(item T) {
	b.emptySlots.Acquire()
	b.push(OpPut, item)
}

// Remove removes and returns the oldest item without blocking.
// It returns false if the buffer is empty.
func (b *SemBuffer[T]) Remove() (T, bool) {
	if !b.fullSlots.TryAcquire() {
		b.fail(OpRemove)

		var zero T
		return zero, false
	}

	return b.pop(OpRemove), true
}

// Add inserts the item without blocking.
// It returns false if the buffer is full.
func (b *SemBuffer[T]) Add(item T) bool {
	if !b.emptySlots.TryAcquire() {
		b.fail(OpAdd)
		return false
	}

	b.push(OpAdd, item)

	return true
}

// Poll removes and returns the oldest item, waiting no longer than the deadline.
func (b *SemBuffer[T]) Poll(deadline time.Time) (T, bool) {
	ctx, cancelCtx := deadlineContext(deadline)
	defer cancelCtx()

	return b.PollContext(ctx)
}

// Offer inserts the item, waiting no longer than the deadline.
func (b *SemBuffer[T]) Offer(item T, deadline time.Time) bool {
	ctx, cancelCtx := deadlineContext(deadline)
	defer cancelCtx()

	return b.OfferContext(ctx, item)
}

// PollContext removes and returns the oldest item, waiting until the context is done.
func (b *SemBuffer[T]) PollContext(ctx context.Context) (T, bool) {
	if !acquire(ctx, b.fullSlots) {
		b.fail(OpPoll)

		var zero T
		return zero, false
	}

	return b.pop(OpPoll), true
}

// OfferContext inserts the item, waiting until the context is done.
func (b *SemBuffer[T]) OfferContext(ctx context.Context, item T) bool {
	if !acquire(ctx, b.emptySlots) {
		b.fail(OpOffer)
		return false
	}

	b.push(OpOffer, item)

	return true
}

// permits returns the number of free full and empty slot permits.
func (b *SemBuffer[T]) permits() (full, empty int) {
	return b.fullSlots.Available(), b.emptySlots.Available()
}
