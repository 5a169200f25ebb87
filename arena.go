// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// arenaSlot is one fixed-size block of arena storage. While a slot is
// allocated, data holds the live value and next is dead storage; while it
// sits on a taggedList, next holds the link to the following slot. This
// is the Go-safe equivalent of threading a free list through the blocks
// themselves: both interpretations coexist in the struct, so no
// reinterpretation of raw memory is needed, and the list discipline
// guarantees only one of them is meaningful at a time.
//
// data is the first field: a slot's address and its data address
// coincide, which lets the pool hand out *T and map it back to an index.
type arenaSlot[T any] struct {
	data T
	next atomix.Uint64 // link (index+1) of the next slot on a list; 0 = nil
}

// arenaChunk is one contiguous run of slots covering the global index
// range [start, start+len(slots)).
type arenaChunk[T any] struct {
	start uint64
	slots []arenaSlot[T]
}

// arena is chunked slab storage addressed by a dense global slot index.
// Chunks are never freed or moved, so a slot's index and address are
// stable for the arena's lifetime. The chunk directory is published
// copy-on-write: readers never synchronize, and growLock serializes the
// rare growth path only.
type arena[T any] struct {
	chunks   atomic.Pointer[[]*arenaChunk[T]]
	growLock SpinLock
	total    atomix.Int64
	firstLen uint64  // slot count of chunk 0
	chunkLen uint64  // slot count of every later chunk
	stride   uintptr // byte distance between adjacent slots
}

// init prepares an empty arena. firstLen applies to the first grow call,
// chunkLen to every one after it.
func (a *arena[T]) init(firstLen, chunkLen uint64) {
	probe := make([]arenaSlot[T], 2)
	a.stride = uintptr(unsafe.Pointer(&probe[1])) - uintptr(unsafe.Pointer(&probe[0]))
	a.firstLen = firstLen
	a.chunkLen = chunkLen
	chunks := make([]*arenaChunk[T], 0, 1)
	a.chunks.Store(&chunks)
}

// grow appends one chunk and returns it. Callers must hold growLock.
func (a *arena[T]) grow() *arenaChunk[T] {
	old := *a.chunks.Load()
	n := a.chunkLen
	start := uint64(0)
	if len(old) == 0 {
		n = a.firstLen
	} else {
		last := old[len(old)-1]
		start = last.start + uint64(len(last.slots))
	}

	c := &arenaChunk[T]{
		start: start,
		slots: make([]arenaSlot[T], n),
	}
	chunks := make([]*arenaChunk[T], len(old)+1)
	copy(chunks, old)
	chunks[len(old)] = c
	a.chunks.Store(&chunks)
	a.total.Add(int64(n))
	return c
}

// slotAt resolves a global slot index. The index must have been handed
// out by this arena.
func (a *arena[T]) slotAt(idx uint64) *arenaSlot[T] {
	chunks := *a.chunks.Load()
	if idx < a.firstLen {
		return &chunks[0].slots[idx]
	}
	ci := 1 + (idx-a.firstLen)/a.chunkLen
	return &chunks[ci].slots[(idx-a.firstLen)%a.chunkLen]
}

// indexOf maps a data pointer handed out by this arena back to its
// global slot index. Walks the chunk directory; ok is false for foreign
// pointers.
func (a *arena[T]) indexOf(ptr *T) (uint64, bool) {
	p := uintptr(unsafe.Pointer(ptr))
	for _, c := range *a.chunks.Load() {
		base := uintptr(unsafe.Pointer(&c.slots[0]))
		span := a.stride * uintptr(len(c.slots))
		if p < base || p >= base+span {
			continue
		}
		off := p - base
		if off%a.stride != 0 {
			return 0, false
		}
		return c.start + uint64(off/a.stride), true
	}
	return 0, false
}

// capacity returns the total slot count across all chunks.
func (a *arena[T]) capacity() int64 {
	return a.total.Load()
}

// chunkCount returns the number of chunks.
func (a *arena[T]) chunkCount() int {
	return len(*a.chunks.Load())
}

// taggedList is a Treiber list of arena slots linked through their next
// fields. The head is a single tagged word (see tagged.go); every
// successful push or pop increments the tag, defeating stale CAS
// attempts on recycled slots. CAS failure is silent retry, never an
// error.
type taggedList[T any] struct {
	head atomix.Uint64
}

// push links the slot at idx onto the list.
func (l *taggedList[T]) push(a *arena[T], idx uint64) {
	slot := a.slotAt(idx)
	sw := spin.Wait{}
	old := l.head.LoadRelaxed()
	for {
		slot.next.StoreRelaxed(old & taggedIndexMask)
		if l.head.CompareAndSwapAcqRel(old, packTagged(idx, taggedTag(old)+1)) {
			return
		}
		old = l.head.LoadRelaxed()
		sw.Once()
	}
}

// pop unlinks and returns the head slot's index.
// Returns false if the list is empty.
func (l *taggedList[T]) pop(a *arena[T]) (uint64, bool) {
	sw := spin.Wait{}
	old := l.head.LoadAcquire()
	for {
		idx, ok := taggedIndex(old)
		if !ok {
			return 0, false
		}
		// The slot may be concurrently popped and recycled by another
		// goroutine, making this next link stale. The stale read itself
		// is benign (slots are never freed), and the tag comparison in
		// the CAS rejects the outdated head.
		next := a.slotAt(idx).next.LoadRelaxed()
		if l.head.CompareAndSwapAcqRel(old, (taggedTag(old)+1)<<taggedIndexBits|next) {
			return idx, true
		}
		old = l.head.LoadAcquire()
		sw.Once()
	}
}

// empty reports whether the list has no slots. Advisory under
// concurrent mutation.
func (l *taggedList[T]) empty() bool {
	_, ok := taggedIndex(l.head.LoadAcquire())
	return !ok
}
