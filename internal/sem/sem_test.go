package sem

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_New(t *testing.T) {
	assert := assert.New(t)

	s := New(4, 0)
	assert.Equal(0, s.Available())
	assert.Equal(4, s.Limit())
	assert.False(s.TryAcquire())
	assert.Equal("Semaphore(0/4)", s.String())

	s = New(4, 4)
	assert.Equal(4, s.Available())
	for range 4 {
		assert.True(s.TryAcquire())
	}
	assert.False(s.TryAcquire())

	// Out of range initial values are clamped
	assert.Equal(2, New(2, 8).Available())
	assert.Equal(0, New(2, -1).Available())
}

func Test_Release(t *testing.T) {
	assert := assert.New(t)

	s := New(1, 0)
	s.Release()
	assert.Equal(1, s.Available())

	assert.Panics(func() { s.Release() })
}

func Test_AcquireContext(t *testing.T) {
	assert := assert.New(t)

	s := New(1, 0)

	ctx, cancelCtx := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancelCtx()

	start := time.Now()
	err := s.AcquireContext(ctx)
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.GreaterOrEqual(time.Since(start), 20*time.Millisecond)

	// The failed acquire must not leak a permit
	assert.Equal(0, s.Available())
	s.Release()
	assert.True(s.TryAcquire())
}

func Test_AcquireBlocks(t *testing.T) {
	assert := assert.New(t)

	s := New(1, 0)

	var acquired atomic.Bool
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Acquire()
		acquired.Store(true)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(acquired.Load())

	s.Release()
	wg.Wait()

	assert.True(acquired.Load())
	assert.Equal(0, s.Available())
}
