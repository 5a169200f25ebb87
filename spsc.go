// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import "code.hybscloud.com/atomix"

// SPSC is a single-producer single-consumer bounded queue.
//
// Based on Lamport's ring buffer with cached index optimization.
// The producer caches the consumer's dequeue index, and vice versa,
// reducing cross-core cache line traffic. No per-slot sequence numbers
// are needed: each slot alternates between exactly one producer and one
// consumer goroutine, so acquire/release on the two indices suffices.
//
// One slot stays permanently in reserve to disambiguate full from empty,
// so a queue built over n physical slots reports Cap() == n-1.
//
// Calling Enqueue from more than one goroutine (or Dequeue, respectively)
// is undefined behavior by contract, not defended against.
//
// Memory: O(n) with minimal per-slot overhead
type SPSC[T any] struct {
	_          pad
	head       atomix.Uint64 // Consumer reads from here
	_          pad
	cachedTail uint64 // Consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // Producer writes here
	_          pad
	cachedHead uint64 // Producer's cached view of head
	_          pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates a new SPSC queue.
// Physical slot count rounds up to the next power of 2 n; usable
// capacity is n-1. Panics if capacity < 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 2 {
		panic("lockfree: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Enqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSC[T]) Enqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.mask {
			return ErrWouldBlock
		}
	}

	q.buffer[tail&q.mask] = *elem
	// The release store publishes the buffered write: the consumer's
	// acquire load of tail happens-after it.
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSC[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}

	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	// Symmetric release: the producer's next full-check observes the
	// consumed slot safely.
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Cap returns the usable queue capacity (one slot less than the physical
// slot count).
func (q *SPSC[T]) Cap() int {
	return int(q.mask)
}

// Len returns the approximate number of buffered elements.
// Exact only while the queue is quiescent.
func (q *SPSC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Empty reports whether the queue appears empty. Advisory.
func (q *SPSC[T]) Empty() bool {
	return q.Len() == 0
}

// Full reports whether the queue appears full. Advisory.
func (q *SPSC[T]) Full() bool {
	return q.Len() >= q.Cap()
}
