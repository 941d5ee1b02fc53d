// Package pbuffer provides bounded, thread-safe FIFO buffers ("protected buffers")
// built over a fixed-capacity ring buffer.
//
// Every buffer exposes the same six access modes:
//
//	Get / Put       block until the operation is possible
//	Remove / Add    never block, they fail if the operation is not possible right away
//	Poll / Offer    block, but no longer than the given deadline
//
// Two synchronization strategies implement the contract: a mutex with two
// condition variables (StrategyCondVar) and a mutex with two counting
// semaphores (StrategySemaphore). Callers select one at construction and
// use the returned Buffer without knowing which one backs it.
package pbuffer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/FerroO2000/pbuffer/internal"
	"github.com/FerroO2000/pbuffer/internal/ring"
	"golang.org/x/sys/cpu"
)

// ErrInvalidCapacity is returned when a buffer is created with a capacity lower than 1.
var ErrInvalidCapacity = ring.ErrInvalidCapacity

// ErrUnknownStrategy is returned when a buffer is created with an unknown strategy.
var ErrUnknownStrategy = errors.New("pbuffer: unknown strategy")

// Strategy is the concurrency-control strategy backing a buffer.
type Strategy uint8

const (
	// StrategyCondVar uses a mutex and two condition variables.
	StrategyCondVar Strategy = iota
	// StrategySemaphore uses a mutex and two counting semaphores.
	StrategySemaphore
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyCondVar, StrategySemaphore}

func (s Strategy) String() string {
	switch s {
	case StrategyCondVar:
		return "condvar"
	case StrategySemaphore:
		return "semaphore"
	default:
		return "unknown"
	}
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "condvar", "cond":
		return StrategyCondVar, nil
	case "semaphore", "sem":
		return StrategySemaphore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Buffer is a bounded, thread-safe FIFO buffer.
type Buffer[T any] interface {
	// Get removes and returns the oldest item.
	// It blocks until an item is available.
	Get() T
	// Put inserts the item.
	// It blocks until an empty slot is available.
	Put(item T)

	// Remove removes and returns the oldest item without blocking.
	// It returns false if the buffer is empty or busy.
	Remove() (T, bool)
	// Add inserts the item without blocking.
	// It returns false if the buffer is full or busy.
	Add(item T) bool

	// Poll removes and returns the oldest item, waiting no longer than the deadline.
	// It returns false if the deadline elapsed before an item was available.
	Poll(deadline time.Time) (T, bool)
	// Offer inserts the item, waiting no longer than the deadline.
	// It returns false if the deadline elapsed before an empty slot was available.
	Offer(item T, deadline time.Time) bool

	// PollContext is like Poll, but the wait is bounded by the context.
	PollContext(ctx context.Context) (T, bool)
	// OfferContext is like Offer, but the wait is bounded by the context.
	OfferContext(ctx context.Context, item T) bool

	// Len returns the number of items in the buffer.
	Len() int
	// Cap returns the capacity of the buffer.
	Cap() int
}

// New returns a new buffer backed by the given strategy.
func New[T any](capacity int, strategy Strategy, opts ...Option[T]) (Buffer[T], error) {
	switch strategy {
	case StrategyCondVar:
		return NewCondBuffer(capacity, opts...)
	case StrategySemaphore:
		return NewSemBuffer(capacity, opts...)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, strategy)
	}
}

// core holds the state shared by both strategies.
type core[T any] struct {
	// mux guards ring
	mux  sync.Mutex
	ring *ring.Buffer[T]

	_ cpu.CacheLinePad

	tel      *internal.Telemetry
	metrics  *bufferMetrics
	observer Observer[T]
}

func newCore[T any](capacity int, strategy Strategy, opts []Option[T]) (*core[T], error) {
	rb, err := ring.New[T](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer: %w", strategy, err)
	}

	o := newOptions(opts)

	tel := internal.NewTelemetry("buffer", o.name, o.telemetryOptions()...)

	c := &core[T]{
		ring: rb,

		tel:      tel,
		metrics:  newBufferMetrics(tel),
		observer: o.observer,
	}

	c.metrics.init()

	tel.LogDebug("buffer created", "strategy", strategy, "capacity", capacity)

	return c, nil
}

// insert puts the item into the ring. The caller must hold mux
// and guarantee that an empty slot exists.
func (c *core[T]) insert(op Operation, item T) {
	c.ring.Put(item)
	c.notify(op, item, true)
}

// extract gets the oldest item from the ring. The caller must hold mux
// and guarantee that a full slot exists.
func (c *core[T]) extract(op Operation) T {
	item, _ := c.ring.Get()
	c.notify(op, item, true)
	return item
}

func (c *core[T]) fail(op Operation) {
	var zero T
	c.notify(op, zero, false)
}

func (c *core[T]) notify(op Operation, item T, ok bool) {
	c.metrics.record(op, ok)

	if c.observer != nil {
		c.observer.Observe(op, item, ok)
	}
}

// Cap returns the capacity of the buffer.
func (c *core[T]) Cap() int {
	return c.ring.Cap()
}

// Len returns the number of items in the buffer.
func (c *core[T]) Len() int {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.ring.Len()
}

func deadlineContext(deadline time.Time) (context.Context, context.CancelFunc) {
	return context.WithDeadline(context.Background(), deadline)
}
