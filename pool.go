// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"fmt"

	"code.hybscloud.com/atomix"
)

// Pool is a lock-free fixed-size-block allocator.
//
// Blocks live in chunked slab storage; free blocks are threaded onto a
// tagged-word free list (the same algorithm as [Stack]), so allocate and
// deallocate are a single 64-bit CAS each. Growth (appending a chunk
// when the free list runs dry) is the only locked operation, guarded by
// a [SpinLock] scoped strictly to the chunk directory. Growth occurs at
// most once per chunkCapacity allocations.
//
// Contract: every Allocate is paired with exactly one Deallocate (and
// Construct with Destroy). Double-deallocation and deallocation of
// foreign pointers are caller bugs; the latter panics, the former is
// undefined.
//
// All methods are safe for concurrent use.
type Pool[T any] struct {
	_         pad
	free      taggedList[T]
	_         pad
	allocated atomix.Int64
	_         pad
	arena     arena[T]
	growable  bool
}

// PoolOption configures pool construction.
type PoolOption func(*poolOptions)

type poolOptions struct {
	growable      bool
	chunkCapacity int
}

// NonGrowable fixes the pool at its initial capacity; Allocate returns
// ErrWouldBlock once all blocks are outstanding.
func NonGrowable() PoolOption {
	return func(o *poolOptions) {
		o.growable = false
	}
}

// WithChunkCapacity sets the block count of each growth chunk.
// Defaults to the pool's initial capacity. Panics if n < 1.
func WithChunkCapacity(n int) PoolOption {
	if n < 1 {
		panic("lockfree: chunk capacity must be >= 1")
	}
	return func(o *poolOptions) {
		o.chunkCapacity = n
	}
}

// NewPool creates a pool with initialCapacity preallocated blocks.
// The pool is growable unless configured with [NonGrowable].
// Panics if initialCapacity < 1.
func NewPool[T any](initialCapacity int, opts ...PoolOption) *Pool[T] {
	if initialCapacity < 1 {
		panic("lockfree: pool capacity must be >= 1")
	}

	o := poolOptions{growable: true, chunkCapacity: initialCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool[T]{growable: o.growable}
	p.arena.init(uint64(initialCapacity), uint64(o.chunkCapacity))

	p.arena.growLock.Lock()
	c := p.arena.grow()
	p.arena.growLock.Unlock()
	for i := range c.slots {
		p.free.push(&p.arena, c.start+uint64(i))
	}

	return p
}

// Allocate hands out a zeroed block.
// Returns ErrWouldBlock when the pool is exhausted and cannot grow.
func (p *Pool[T]) Allocate() (*T, error) {
	idx, ok := p.free.pop(&p.arena)
	if !ok {
		if !p.growable {
			return nil, ErrWouldBlock
		}

		p.arena.growLock.Lock()
		// A goroutine that held the lock before us may have grown already.
		idx, ok = p.free.pop(&p.arena)
		if !ok {
			c := p.arena.grow()
			for i := range c.slots {
				p.free.push(&p.arena, c.start+uint64(i))
			}
		}
		p.arena.growLock.Unlock()

		if !ok {
			// One retry after growth. Under extreme contention the fresh
			// blocks may already be gone; surface that as would-block
			// rather than growing again.
			idx, ok = p.free.pop(&p.arena)
			if !ok {
				return nil, ErrWouldBlock
			}
		}
	}

	p.allocated.Add(1)
	return &p.arena.slotAt(idx).data, nil
}

// Deallocate returns a block to the pool. The block is zeroed so the
// garbage collector can reclaim anything it referenced. No-op on nil.
// Panics if ptr was not handed out by this pool.
func (p *Pool[T]) Deallocate(ptr *T) {
	if ptr == nil {
		return
	}
	idx, ok := p.arena.indexOf(ptr)
	if !ok {
		panic("lockfree: Deallocate of pointer not owned by this pool")
	}

	var zero T
	*ptr = zero
	p.free.push(&p.arena, idx)
	p.allocated.Add(-1)
}

// Construct allocates a block and initializes it with v.
// Returns ErrWouldBlock when the pool is exhausted and cannot grow.
func (p *Pool[T]) Construct(v T) (*T, error) {
	ptr, err := p.Allocate()
	if err != nil {
		return nil, err
	}
	*ptr = v
	return ptr, nil
}

// Destroy zeroes a block and returns it to the pool; the counterpart of
// [Pool.Construct]. No-op on nil.
func (p *Pool[T]) Destroy(ptr *T) {
	p.Deallocate(ptr)
}

// Close verifies that every block has been returned. Returns an error
// wrapping [ErrOutstanding] when blocks are still allocated. The pool
// remains usable either way; Close is a leak check, not a teardown.
func (p *Pool[T]) Close() error {
	if n := p.allocated.Load(); n != 0 {
		return fmt.Errorf("%w: %d block(s)", ErrOutstanding, n)
	}
	return nil
}

// Capacity returns the total block count across all chunks.
func (p *Pool[T]) Capacity() int {
	return int(p.arena.capacity())
}

// AllocatedCount returns the number of blocks currently handed out.
func (p *Pool[T]) AllocatedCount() int {
	return int(p.allocated.Load())
}

// AvailableCount returns the number of free blocks.
// AllocatedCount() + AvailableCount() == Capacity() at quiescent points.
func (p *Pool[T]) AvailableCount() int {
	return p.Capacity() - p.AllocatedCount()
}

// ChunkCount returns the number of storage chunks.
func (p *Pool[T]) ChunkCount() int {
	return p.arena.chunkCount()
}

// IsGrowable reports whether the pool appends chunks on exhaustion.
func (p *Pool[T]) IsGrowable() bool {
	return p.growable
}

// BlockSize returns the byte size of one block, including the free-list
// link. Every block is validly aligned for both its live and free
// interpretations.
func (p *Pool[T]) BlockSize() int {
	return int(p.arena.stride)
}

// IsLockFree reports whether allocate/deallocate are lock-free. Always
// true on the hot path: the free list is a single 64-bit CAS. Only chunk
// growth locks, and never the free list itself.
func (p *Pool[T]) IsLockFree() bool {
	return true
}
