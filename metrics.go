package pbuffer

import (
	"sync/atomic"

	"github.com/FerroO2000/pbuffer/internal"
)

type bufferMetrics struct {
	tel *internal.Telemetry

	succeeded [operationCount]atomic.Int64
	failed    [operationCount]atomic.Int64

	// occupied tracks the resident items without taking the buffer lock
	occupied atomic.Int64
}

func newBufferMetrics(tel *internal.Telemetry) *bufferMetrics {
	return &bufferMetrics{
		tel: tel,
	}
}

func (bm *bufferMetrics) init() {
	for _, op := range Operations {
		bm.tel.NewCounter(op.String()+"_succeeded", func() int64 { return bm.succeeded[op].Load() })
		bm.tel.NewCounter(op.String()+"_failed", func() int64 { return bm.failed[op].Load() })
	}

	bm.tel.NewUpDownCounter("occupied_slots", func() int64 { return bm.occupied.Load() })
}

func (bm *bufferMetrics) record(op Operation, ok bool) {
	if !ok {
		bm.failed[op].Add(1)
		return
	}

	bm.succeeded[op].Add(1)

	if op.IsInsert() {
		bm.occupied.Add(1)
	} else {
		bm.occupied.Add(-1)
	}
}
