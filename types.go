// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

// Queue is the combined producer-consumer interface for a bounded FIFO
// queue.
//
// Queue provides non-blocking Enqueue and Dequeue operations. Both
// operations return ErrWouldBlock when they cannot proceed (queue full
// or empty).
//
// Len, Empty and Full are advisory: accurate counts in lock-free
// algorithms would require cross-core synchronization, so the values are
// snapshots that may already be stale when returned. They are exact only
// on a quiescent queue.
//
// Example:
//
//	q := lockfree.NewMPMC[int](1024)
//
//	// Enqueue
//	val := 42
//	if err := q.Enqueue(&val); err != nil {
//	    // Handle full queue
//	}
//
//	// Dequeue
//	elem, err := q.Dequeue()
//	if err == nil {
//	    fmt.Println(elem)
//	}
type Queue[T any] interface {
	Producer[T]
	Consumer[T]

	// Cap returns the usable capacity. Constant for the queue's lifetime.
	Cap() int
	// Len returns the approximate number of buffered elements.
	Len() int
	// Empty reports whether the queue appears empty.
	Empty() bool
	// Full reports whether the queue appears full.
	Full() bool
}

// Producer is the interface for enqueueing elements.
//
// Producer provides non-blocking enqueue operations. The element is passed
// by pointer to avoid copying large structs. The queue stores a copy of
// the pointed-to value, so the original can be modified after Enqueue
// returns.
type Producer[T any] interface {
	// Enqueue adds an element to the queue (non-blocking).
	// The element is copied into the queue's internal buffer.
	// Returns nil on success, ErrWouldBlock if the queue is full.
	//
	// Thread safety depends on queue type:
	//   - SPSC/SPMC: single producer goroutine only
	//   - MPSC/MPMC: multiple producers safe
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
//
// Consumer provides non-blocking dequeue operations. The element is
// returned by value (copied from the queue's internal buffer). The
// original slot is cleared to allow garbage collection of referenced
// objects.
type Consumer[T any] interface {
	// Dequeue removes and returns an element from the queue (non-blocking).
	// Returns the dequeued element on success.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	//
	// Thread safety depends on queue type:
	//   - SPSC/MPSC: single consumer goroutine only
	//   - SPMC/MPMC: multiple consumers safe
	Dequeue() (T, error)
}
