package session

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/FerroO2000/pbuffer/internal"
	"go.opentelemetry.io/otel/metric"
)

///////////////
//  METRICS  //
///////////////

type workerMetrics struct {
	tel *internal.Telemetry

	produced   atomic.Int64
	consumed   atomic.Int64
	duplicates atomic.Int64
	retries    atomic.Int64
	timeouts   atomic.Int64

	waitTime *internal.Histogram
}

// newWorkerMetrics creates the wait time histogram right away,
// the counters are registered by init.
func newWorkerMetrics(tel *internal.Telemetry) *workerMetrics {
	return &workerMetrics{
		tel: tel,

		waitTime: tel.NewHistogram("operation_wait_time", metric.WithUnit("us")),
	}
}

func (wm *workerMetrics) init() {
	wm.tel.NewCounter("produced_items", func() int64 { return wm.produced.Load() })
	wm.tel.NewCounter("consumed_items", func() int64 { return wm.consumed.Load() })
	wm.tel.NewCounter("duplicated_items", func() int64 { return wm.duplicates.Load() })
	wm.tel.NewCounter("retries", func() int64 { return wm.retries.Load() })
	wm.tel.NewCounter("timeouts", func() int64 { return wm.timeouts.Load() })
}

func (wm *workerMetrics) recordWait(ctx context.Context, start time.Time) {
	wm.waitTime.Record(ctx, time.Since(start).Microseconds())
}

//////////////
//  WORKER  //
//////////////

// accessor performs the inserts and takes of a worker
// according to the session mode.
type accessor struct {
	buffer  pbuffer.Buffer[Item]
	metrics *workerMetrics

	mode       Mode
	timeout    time.Duration
	retryDelay time.Duration
}

// insert puts the item into the buffer.
// It returns false only if the context is done.
func (a *accessor) insert(ctx context.Context, item Item) bool {
	start := time.Now()
	defer a.metrics.recordWait(ctx, start)

	switch a.mode {
	case ModeNonBlocking:
		for !a.buffer.Add(item) {
			a.metrics.retries.Add(1)

			if !pause(ctx, a.retryDelay) {
				return false
			}
		}

		return true

	case ModeTimed:
		for !a.buffer.Offer(item, time.Now().Add(a.timeout)) {
			a.metrics.timeouts.Add(1)

			if ctx.Err() != nil {
				return false
			}
		}

		return true

	default:
		return a.buffer.OfferContext(ctx, item)
	}
}

// take gets an item from the buffer.
// It returns false only if the context is done.
func (a *accessor) take(ctx context.Context) (Item, bool) {
	start := time.Now()
	defer a.metrics.recordWait(ctx, start)

	switch a.mode {
	case ModeNonBlocking:
		for {
			if item, ok := a.buffer.Remove(); ok {
				return item, true
			}

			a.metrics.retries.Add(1)

			if !pause(ctx, a.retryDelay) {
				return Item{}, false
			}
		}

	case ModeTimed:
		for {
			if item, ok := a.buffer.Poll(time.Now().Add(a.timeout)); ok {
				return item, true
			}

			a.metrics.timeouts.Add(1)

			if ctx.Err() != nil {
				return Item{}, false
			}
		}

	default:
		return a.buffer.PollContext(ctx)
	}
}

// pause waits for the delay, it returns false if the context is done first.
// A zero delay only yields the processor.
func pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		runtime.Gosched()
		return ctx.Err() == nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// occupancyObserver tracks the peak number of resident items for the report.
// The current occupancy is exported by the buffer itself (occupied_slots).
// Successful operations are reported under the buffer lock,
// hence the updates are serialized.
type occupancyObserver struct {
	inner pbuffer.Observer[Item]

	occupied    atomic.Int64
	maxOccupied atomic.Int64
}

func (oo *occupancyObserver) Observe(op pbuffer.Operation, item Item, ok bool) {
	if oo.inner != nil {
		oo.inner.Observe(op, item, ok)
	}

	if !ok {
		return
	}

	if !op.IsInsert() {
		oo.occupied.Add(-1)
		return
	}

	if curr := oo.occupied.Add(1); curr > oo.maxOccupied.Load() {
		oo.maxOccupied.Store(curr)
	}
}
