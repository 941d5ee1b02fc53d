package pbuffer

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

const (
	opKindAdd = iota
	opKindRemove
	opKindOffer
	opKindPoll
	opKindPut
	opKindGet
)

// Test_SequentialModel checks every buffer against a slice model:
// FIFO order holds and the occupancy stays in [0, capacity] for any capacity.
func Test_SequentialModel(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, strategy Strategy) {
		rapid.Check(t, func(rt *rapid.T) {
			capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
			ops := rapid.SliceOfN(rapid.IntRange(opKindAdd, opKindGet), 1, 100).Draw(rt, "ops")

			buf, err := New[int](capacity, strategy)
			if err != nil {
				rt.Fatalf("failed to create buffer: %v", err)
			}

			past := time.Now().Add(-time.Second)
			model := []int{}
			next := 0

			for step, op := range ops {
				full := len(model) == capacity
				empty := len(model) == 0

				switch op {
				case opKindAdd, opKindOffer, opKindPut:
					var ok bool
					switch {
					case op == opKindAdd:
						ok = buf.Add(next)
					case op == opKindOffer:
						ok = buf.Offer(next, past)
					case full:
						// A blocking put would never return
						continue
					default:
						buf.Put(next)
						ok = true
					}

					if ok == full {
						rt.Fatalf("step %d: insert returned %v with %d/%d items", step, ok, len(model), capacity)
					}

					if ok {
						model = append(model, next)
					}
					next++

				case opKindRemove, opKindPoll, opKindGet:
					var item int
					var ok bool
					switch {
					case op == opKindRemove:
						item, ok = buf.Remove()
					case op == opKindPoll:
						item, ok = buf.Poll(past)
					case empty:
						continue
					default:
						item, ok = buf.Get(), true
					}

					if ok == empty {
						rt.Fatalf("step %d: take returned %v with %d/%d items", step, ok, len(model), capacity)
					}

					if ok {
						if item != model[0] {
							rt.Fatalf("step %d: got %d, expected %d", step, item, model[0])
						}
						model = model[1:]
					}
				}

				if buf.Len() != len(model) {
					rt.Fatalf("step %d: buffer holds %d items, expected %d", step, buf.Len(), len(model))
				}
			}
		})
	})
}
