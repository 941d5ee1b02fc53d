package pbuffer

import "github.com/FerroO2000/pbuffer/internal"

// Operation identifies one of the buffer access modes.
type Operation uint8

const (
	// OpGet is the blocking take.
	OpGet Operation = iota
	// OpPut is the blocking insert.
	OpPut
	// OpRemove is the non-blocking take.
	OpRemove
	// OpAdd is the non-blocking insert.
	OpAdd
	// OpPoll is the timed take.
	OpPoll
	// OpOffer is the timed insert.
	OpOffer

	operationCount = iota
)

// Operations lists every operation.
var Operations = []Operation{OpGet, OpPut, OpRemove, OpAdd, OpPoll, OpOffer}

func (op Operation) String() string {
	switch op {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpRemove:
		return "remove"
	case OpAdd:
		return "add"
	case OpPoll:
		return "poll"
	case OpOffer:
		return "offer"
	default:
		return "unknown"
	}
}

// IsInsert states whether the operation inserts an item.
func (op Operation) IsInsert() bool {
	return op == OpPut || op == OpAdd || op == OpOffer
}

// Observer is notified once for every completed operation.
//
// For a successful operation, item is the inserted or removed item and ok is true.
// A failed non-blocking or timed operation reports the zero item and ok set to false.
// Successful operations are reported while the buffer lock is held, hence
// the observer must be fast and must not call the buffer back.
type Observer[T any] interface {
	Observe(op Operation, item T, ok bool)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc[T any] func(op Operation, item T, ok bool)

// Observe calls f(op, item, ok).
func (f ObserverFunc[T]) Observe(op Operation, item T, ok bool) {
	f(op, item, ok)
}

type logObserver[T any] struct {
	tel *internal.Telemetry
}

// NewLogObserver returns an observer that logs every operation at debug level.
func NewLogObserver[T any](name string) Observer[T] {
	return &logObserver[T]{
		tel: internal.NewTelemetry("activity", name),
	}
}

func (lo *logObserver[T]) Observe(op Operation, item T, ok bool) {
	if !ok {
		lo.tel.LogDebug("task activity", "operation", op, "done", false)
		return
	}

	lo.tel.LogDebug("task activity", "operation", op, "done", true, "item", item)
}
