// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSC is a multi-producer single-consumer bounded queue.
//
// Producers claim slots by CAS on the tail index, validated against a
// per-slot sequence number. The single consumer reads sequentially with
// plain loads and stores on the head index, since no other goroutine
// mutates it.
//
// A slot's sequence encodes its state relative to position pos:
//
//	seq == pos     slot is empty, writable
//	seq == pos+1   slot is full, readable
//	seq == pos+n   slot was consumed, re-armed for the next round
//
// Memory: n slots (16+ bytes per slot)
type MPSC[T any] struct {
	_        pad
	head     atomix.Uint64 // Consumer reads from here
	_        pad
	tail     atomix.Uint64 // Producers CAS here
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

// seqSlot pairs an element with its sequence counter, padded out to a
// cache line so neighboring slots do not false-share.
type seqSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort
}

// NewMPSC creates a new MPSC queue.
// Capacity rounds up to the next power of 2. Panics if capacity < 2.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 2 {
		panic("lockfree: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &MPSC[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full.
func (q *MPSC[T]) Enqueue(elem *T) error {
	sw := spin.Wait{}
	pos := q.tail.LoadRelaxed()
	for {
		slot := &q.buffer[pos&q.mask]
		seq := slot.seq.LoadAcquire()
		// Signed difference stays correct across unsigned wraparound.
		diff := int64(seq) - int64(pos)

		switch {
		case diff == 0:
			// Slot is free at this position; claim it. The CAS itself
			// needs no ordering — the release store of seq below is what
			// publishes the data write.
			if q.tail.CompareAndSwapRelaxed(pos, pos+1) {
				slot.data = *elem
				slot.seq.StoreRelease(pos + 1)
				return nil
			}
			pos = q.tail.LoadRelaxed()
			sw.Once()
		case diff < 0:
			// Consumer has not re-armed this slot yet: queue is full.
			return ErrWouldBlock
		default:
			// Another producer already claimed this slot; chase the tail.
			pos = q.tail.LoadRelaxed()
			sw.Once()
		}
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPSC[T]) Dequeue() (T, error) {
	pos := q.head.LoadRelaxed()
	slot := &q.buffer[pos&q.mask]
	seq := slot.seq.LoadAcquire()

	if int64(seq)-int64(pos+1) != 0 {
		var zero T
		return zero, ErrWouldBlock
	}

	elem := slot.data
	var zero T
	slot.data = zero
	// Re-arm the slot for the next production round.
	slot.seq.StoreRelease(pos + q.capacity)
	q.head.StoreRelease(pos + 1)

	return elem, nil
}

// Cap returns the queue capacity.
func (q *MPSC[T]) Cap() int {
	return int(q.capacity)
}

// Len returns the approximate number of buffered elements.
// Exact only while the queue is quiescent.
func (q *MPSC[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Empty reports whether the queue appears empty. Advisory.
func (q *MPSC[T]) Empty() bool {
	return q.Len() == 0
}

// Full reports whether the queue appears full. Advisory.
func (q *MPSC[T]) Full() bool {
	return q.Len() >= q.Cap()
}
