// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SPMC is a single-producer multi-consumer bounded queue.
//
// The single producer writes sequentially with plain loads and stores on
// the tail index. Consumers claim slots by CAS on the head index,
// validated against the per-slot sequence number (see [MPSC] for the
// state encoding).
//
// Memory: n slots (16+ bytes per slot)
type SPMC[T any] struct {
	_        pad
	head     atomix.Uint64 // Consumers CAS here
	_        pad
	tail     atomix.Uint64 // Producer writes here
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

// NewSPMC creates a new SPMC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewSPMC[T any](capacity int) *SPMC[T] {
	if capacity < 2 {
		panic("lockfree: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &SPMC[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue (single producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPMC[T]) Enqueue(elem *T) error {
	pos := q.tail.LoadRelaxed()
	slot := &q.buffer[pos&q.mask]
	seq := slot.seq.LoadAcquire()

	if int64(seq)-int64(pos) != 0 {
		return ErrWouldBlock
	}

	slot.data = *elem
	slot.seq.StoreRelease(pos + 1)
	q.tail.StoreRelease(pos + 1)

	return nil
}

// Dequeue removes and returns an element (multiple consumers safe).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPMC[T]) Dequeue() (T, error) {
	sw := spin.Wait{}
	pos := q.head.LoadRelaxed()
	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.seq.LoadAcquire()
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
			pos = q.head.LoadRelaxed()
			sw.Once()
		}
	}
}

// Cap returns the queue capacity.
func (q *SPMC[T]) Cap() int {
	return int(q.capacity)
}

// Len returns the approximate number of buffered elements.
// Exact only while the queue is quiescent.
func (q *SPMC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Empty reports whether the queue appears empty. Advisory.
func (q *SPMC[T]) Empty() bool {
	return q.Len() == 0
}

// Full reports whether the queue appears full. Advisory.
func (q *SPMC[T]) Full() bool {
	return q.Len() >= q.Cap()
}
