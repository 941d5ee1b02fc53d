// Package sem provides the counting semaphore used by the semaphore strategy.
package sem

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting semaphore holding at most limit permits.
// Each call acquires or releases exactly one permit.
type Semaphore struct {
	weighted *semaphore.Weighted
	limit    int

	// available mirrors the number of free permits for inspection only
	available atomic.Int64
}

// New returns a semaphore with the given limit and initial number of permits.
// The initial value is clamped to [0, limit].
func New(limit, initial int) *Semaphore {
	initial = max(0, min(initial, limit))

	s := &Semaphore{
		weighted: semaphore.NewWeighted(int64(limit)),
		limit:    limit,
	}

	// The weighted semaphore starts with all permits free,
	// hold back the ones that are not initially available
	if held := int64(limit - initial); held > 0 {
		s.weighted.TryAcquire(held)
	}

	s.available.Store(int64(initial))

	return s
}

// Acquire blocks until a permit becomes available, then acquires it.
func (s *Semaphore) Acquire() {
	// The background context is never done, so the error is always nil
	_ = s.AcquireContext(context.Background())
}

// AcquireContext blocks until a permit becomes available or the context is done.
// On failure no permit is held and the context error is returned.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	if err := s.weighted.Acquire(ctx, 1); err != nil {
		return err
	}

	s.available.Add(-1)

	return nil
}

// TryAcquire acquires a permit without blocking.
// It returns false if no permit is available.
func (s *Semaphore) TryAcquire() bool {
	if !s.weighted.TryAcquire(1) {
		return false
	}

	s.available.Add(-1)

	return true
}

// Release returns a permit to the semaphore.
// It panics if it would exceed the limit.
func (s *Semaphore) Release() {
	s.weighted.Release(1)
	s.available.Add(1)
}

// Available returns the number of free permits.
// The value is only exact when no acquire/release is in flight.
func (s *Semaphore) Available() int {
	return int(s.available.Load())
}

// Limit returns the maximum number of permits.
func (s *Semaphore) Limit() int {
	return s.limit
}

func (s *Semaphore) String() string {
	return fmt.Sprintf("Semaphore(%d/%d)", s.Available(), s.limit)
}
