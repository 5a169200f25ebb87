// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPMC is a multi-producer multi-consumer bounded queue.
//
// Producers and consumers race symmetrically: producers CAS the tail,
// consumers CAS the head, and the per-slot sequence number arbitrates
// who may touch a slot at a given position (see [MPSC] for the state
// encoding). The sequence protocol is also the ABA defense: a slot
// claimed and re-armed by other goroutines presents a different
// sequence, so a stale position check simply retries.
//
// Full ABA safety, works with both distinct and non-distinct values,
// good performance under moderate contention.
//
// Memory: n slots (16+ bytes per slot)
type MPMC[T any] struct {
	_        pad
	tail     atomix.Uint64 // Producers CAS here
	_        pad
	head     atomix.Uint64 // Consumers CAS here
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

// NewMPMC creates a new MPMC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewMPMC[T any](capacity int) *MPMC[T] {
	if capacity < 2 {
		panic("lockfree: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &MPMC[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue.
// Returns ErrWouldBlock if the queue is full.
func (q *MPMC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	pos := q.tail.LoadRelaxed()
	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			if q.tail.CompareAndSwapRelaxed(pos, pos+1) {
				slot.data = *elem
				slot.seq.StoreRelease(pos + 1)
				return nil
			}
			pos = q.tail.LoadRelaxed()
			sw.Once()
		case diff < 0:
			return ErrWouldBlock
		default:
			pos = q.tail.LoadRelaxed()
			sw.Once()
		}
	}
}

// Dequeue removes and returns an element from the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPMC[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	pos := q.head.LoadRelaxed()
	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.seq.LoadAcquire()
		// A readable slot holds seq == pos+1.
		diff := int64(seq) - int64(pos+1)

		switch {
		case diff == 0:
			if q.head.CompareAndSwapRelaxed(pos, pos+1) {
				elem := slot.data
				var zero T
				slot.data = zero
				slot.seq.StoreRelease(pos + q.capacity)
				return elem, nil
			}
			pos = q.head.LoadRelaxed()
			sw.Once()
		case diff < 0:
			var zero T
			return zero, ErrWouldBlock
		default:
			// Another consumer already claimed this slot; chase the head.
			pos = q.head.LoadRelaxed()
			sw.Once()
		}
	}
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int {
	return int(q.capacity)
}

// Len returns the approximate number of buffered elements.
// Exact only while the queue is quiescent.
func (q *MPMC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Empty reports whether the queue appears empty. Advisory.
func (q *MPMC[T]) Empty() bool {
	return q.Len() == 0
}

// Full reports whether the queue appears full. Advisory.
func (q *MPMC[T]) Full() bool {
	return q.Len() >= q.Cap()
}
