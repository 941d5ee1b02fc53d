package pbuffer

import (
	"context"
	"sync"
	"time"
)

var _ Buffer[any] = (*CondBuffer[any])(nil)

// CondBuffer is a protected buffer synchronized by a mutex
// and two condition variables.
type CondBuffer[T any] struct {
	*core[T]

	// fullSlot is broadcast when a full slot appears
	fullSlot *sync.Cond
	// emptySlot is broadcast when an empty slot appears
	emptySlot *sync.Cond
}

// NewCondBuffer returns a new condition variable based buffer.
func NewCondBuffer[T any](capacity int, opts ...Option[T]) (*CondBuffer[T], error) {
	c, err := newCore(capacity, StrategyCondVar, opts)
	if err != nil {
		return nil, err
	}

	return &CondBuffer[T]{
		core: c,

		fullSlot:  sync.NewCond(&c.mux),
		emptySlot: sync.NewCond(&c.mux),
	}, nil
}

func (b *CondBuffer[T]) isEmpty() bool {
	return b.ring.Len() == 0
}

func (b *CondBuffer[T]) isFull() bool {
	return b.ring.Len() == b.ring.Cap()
}

// await blocks on cond until the slot predicate is no longer true
// or the context is done. The caller must hold mux.
// It returns false if the context was done first.
func (b *CondBuffer[T]) await(ctx context.Context, cond *sync.Cond, blocked func() bool) bool {
	if !blocked() {
		return true
	}

	if ctx.Err() != nil {
		return false
	}

	// Wake up the waiters when the context is done. Taking the lock
	// orders the broadcast after the context check of the waiter,
	// so the wake up cannot be lost
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			b.mux.Lock()
			cond.Broadcast()
			b.mux.Unlock()
		})
		defer stop()
	}

	// Other waiters may steal the slot, re-check after every wake up
	for blocked() {
		if ctx.Err() != nil {
			return false
		}

		cond.Wait()
	}

	return true
}

func (b *CondBuffer[T]) pop(ctx context.Context, op Operation) (T, bool) {
	b.mux.Lock()

	if !b.await(ctx, b.fullSlot, b.isEmpty) {
		b.mux.Unlock()

		b.fail(op)

		var zero T
		return zero, false
	}

	item := b.extract(op)
	b.emptySlot.Broadcast()

	b.mux.Unlock()

	return item, true
}

func (b *CondBuffer[T]) push(ctx context.Context, op Operation, item T) bool {
	b.mux.Lock()

	if !b.await(ctx, b.emptySlot, b.isFull) {
		b.mux.Unlock()

		b.fail(op)

		return false
	}

	b.insert(op, item)
	b.fullSlot.Broadcast()

	b.mux.Unlock()

	return true
}

// Get removes and returns the oldest item.
// It blocks until an item is available.
func (b *CondBuffer[T]) Get() T {
	item, _ := b.pop(context.Background(), OpGet)
	return item
}

// Put inserts the item.
// It blocks until an empty slot is available.
func (b *CondBuffer[T]) Put(item T) {
	b.push(context.Background(), OpPut, item)
}

// Remove removes and returns the oldest item without blocking.
// It returns false if the buffer is empty or the lock is held by someone else.
func (b *CondBuffer[T]) Remove() (T, bool) {
	var zero T

	if !b.mux.TryLock() {
		b.fail(OpRemove)
		return zero, false
	}

	if b.isEmpty() {
		b.mux.Unlock()
		b.fail(OpRemove)
		return zero, false
	}

	item := b.extract(OpRemove)
	b.emptySlot.Broadcast()

	b.mux.Unlock()

	return item, true
}

// Add inserts the item without blocking.
// It returns false if the buffer is full or the lock is held by someone else.
func (b *CondBuffer[T]) Add(item T) bool {
	if !b.mux.TryLock() {
		b.fail(OpAdd)
		return false
	}

	if b.isFull() {
		b.mux.Unlock()
		b.fail(OpAdd)
		return false
	}

	b.insert(OpAdd, item)
	b.fullSlot.Broadcast()

	b.mux.Unlock()

	return true
}

// Poll removes and returns the oldest item, waiting no longer than the deadline.
func (b *CondBuffer[T]) Poll(deadline time.Time) (T, bool) {
	ctx, cancelCtx := deadlineContext(deadline)
	defer cancelCtx()

	return b.pop(ctx, OpPoll)
}

// Offer inserts the item, waiting no longer than the deadline.
func (b *CondBuffer[T]) Offer(item T, deadline time.Time) bool {
	ctx, cancelCtx := deadlineContext(deadline)
	defer cancelCtx()

	return b.push(ctx, OpOffer, item)
}

// PollContext removes and returns the oldest item, waiting until the context is done.
func (b *CondBuffer[T]) PollContext(ctx context.Context) (T, bool) {
	return b.pop(ctx, OpPoll)
}

// OfferContext inserts the item, waiting until the context is done.
func (b *CondBuffer[T]) OfferContext(ctx context.Context, item T) bool {
	return b.push(ctx, OpOffer, item)
}
