// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

// stackChunkLen is the node count of each arena chunk backing a Stack.
const stackChunkLen = 256

// Stack is an ABA-safe lock-free LIFO stack (a Treiber stack).
//
// The head is a single 64-bit tagged word: 48 bits of node index plus a
// 16-bit version tag that increments on every successful push or pop.
// The tag is the ABA defense — when a node is popped, recycled and
// pushed again at the same index, a stalled goroutine's CAS still
// expecting the old tag fails and retries instead of corrupting the
// list.
//
// Nodes live in an internal slab and are recycled through a second
// tagged list rather than returned to the garbage collector, so reading
// a just-popped node's link is always memory-safe; pairing the stack
// with its own pool is what makes the classic "dereference after free"
// hazard of tagged-pointer stacks disappear.
//
// Push and Pop are safe from any number of goroutines. The stack grows
// without bound; only node recycling bounds its footprint.
type Stack[T any] struct {
	_     pad
	live  taggedList[T] // the stack itself
	_     pad
	spare taggedList[T] // recycled nodes
	_     pad
	arena arena[T]
}

// NewStack creates an empty stack.
func NewStack[T any]() *Stack[T] {
	s := &Stack[T]{}
	s.arena.init(stackChunkLen, stackChunkLen)
	return s
}

// Push adds a value on top of the stack.
func (s *Stack[T]) Push(v T) {
	idx := s.acquireNode()
	slot := s.arena.slotAt(idx)
	slot.data = v
	// The paired release in the head CAS publishes the data write to
	// whichever goroutine later pops this node.
	s.live.push(&s.arena, idx)
}

// Pop removes and returns the value on top of the stack.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *Stack[T]) Pop() (T, error) {
	idx, ok := s.live.pop(&s.arena)
	if !ok {
		var zero T
		return zero, ErrWouldBlock
	}

	slot := s.arena.slotAt(idx)
	v := slot.data
	var zero T
	slot.data = zero
	s.spare.push(&s.arena, idx)
	return v, nil
}

// Empty reports whether the stack appears empty. Advisory under
// concurrent mutation.
func (s *Stack[T]) Empty() bool {
	return s.live.empty()
}

// IsLockFree reports whether stack operations are lock-free. Always true
// on the hot path: the head is a single 64-bit CAS. Slab growth takes a
// narrow spinlock, but growth is amortized away by node recycling.
func (s *Stack[T]) IsLockFree() bool {
	return true
}

// acquireNode returns a free node index, growing the slab when no
// recycled node is available.
func (s *Stack[T]) acquireNode() uint64 {
	for {
		if idx, ok := s.spare.pop(&s.arena); ok {
			return idx
		}

		s.arena.growLock.Lock()
		// Whoever held the lock before us may have already grown.
		if idx, ok := s.spare.pop(&s.arena); ok {
			s.arena.growLock.Unlock()
			return idx
		}
		c := s.arena.grow()
		for i := range c.slots {
			s.spare.push(&s.arena, c.start+uint64(i))
		}
		s.arena.growLock.Unlock()
	}
}
