// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/valyala/fastrand"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lockfree"
)

// =============================================================================
// Stack
// =============================================================================

// TestStackBasic tests LIFO ordering and the empty-pop error.
func TestStackBasic(t *testing.T) {
	s := lockfree.NewStack[int]()

	if !s.Empty() {
		t.Fatal("new stack: Empty() = false")
	}
	if _, err := s.Pop(); !errors.Is(err, lockfree.ErrWouldBlock) {
		t.Fatalf("Pop on empty: got %v, want ErrWouldBlock", err)
	}

	for i := range 10 {
		s.Push(i)
	}
	if s.Empty() {
		t.Fatal("Empty after pushes: got true")
	}

	for i := 9; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if v != i {
			t.Fatalf("Pop: got %d, want %d", v, i)
		}
	}

	if !s.Empty() {
		t.Fatal("Empty after draining: got false")
	}
	if _, err := s.Pop(); !errors.Is(err, lockfree.ErrWouldBlock) {
		t.Fatalf("Pop on drained: got %v, want ErrWouldBlock", err)
	}

	if !s.IsLockFree() {
		t.Fatal("IsLockFree: got false")
	}
}

// TestStackGrowth pushes well past the initial slab so node storage
// grows, then verifies order across the whole range.
func TestStackGrowth(t *testing.T) {
	s := lockfree.NewStack[int]()

	const n = 10000
	for i := range n {
		s.Push(i)
	}
	for i := n - 1; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if v != i {
			t.Fatalf("Pop: got %d, want %d", v, i)
		}
	}
}

// TestStackConcurrent hammers the stack from many goroutines mixing
// pushes and pops at random, then checks that the multiset of values is
// conserved: everything pushed is popped exactly once. Node recycling
// makes this the classic ABA scenario; a lost or duplicated value here
// means the tag failed to defend the head CAS.
func TestStackConcurrent(t *testing.T) {
	if lockfree.RaceEnabled {
		t.Skip("skip: atomix accesses are invisible to the race detector")
	}

	const (
		goroutines = 8
		pushesEach = 10000
	)
	s := lockfree.NewStack[int]()
	popped := make([]atomix.Int32, goroutines*pushesEach)
	var wg sync.WaitGroup

	record := func(v int) {
		if v < 0 || v >= len(popped) {
			t.Errorf("popped value out of range: %d", v)
			return
		}
		popped[v].Add(1)
	}

	for g := range goroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := fastrand.RNG{}
			rng.Seed(uint32(id + 1))
			next := id * pushesEach
			limit := next + pushesEach
			for next < limit {
				if rng.Uint32n(2) == 0 {
					s.Push(next)
					next++
				} else if v, err := s.Pop(); err == nil {
					record(v)
				}
			}
		}(g)
	}
	wg.Wait()

	// Drain what the mixed phase left behind.
	for {
		v, err := s.Pop()
		if err != nil {
			break
		}
		record(v)
	}

	if !s.Empty() {
		t.Fatal("stack not empty after drain")
	}
	for i := range popped {
		if n := popped[i].Load(); n != 1 {
			t.Fatalf("value %d popped %d times, want 1", i, n)
		}
	}
}

// =============================================================================
// SpinLock
// =============================================================================

// TestSpinLockMutualExclusion verifies that increments under the lock
// are never lost.
func TestSpinLockMutualExclusion(t *testing.T) {
	if lockfree.RaceEnabled {
		t.Skip("skip: atomix accesses are invisible to the race detector")
	}

	const (
		goroutines = 8
		iterations = 10000
	)
	var (
		lock    lockfree.SpinLock
		counter int
		wg      sync.WaitGroup
	)

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterations {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*iterations {
		t.Fatalf("counter: got %d, want %d", counter, goroutines*iterations)
	}
}

// TestSpinLockTryLock verifies TryLock on held and released locks.
func TestSpinLockTryLock(t *testing.T) {
	var lock lockfree.SpinLock

	if !lock.TryLock() {
		t.Fatal("TryLock on unlocked: got false")
	}
	if lock.TryLock() {
		t.Fatal("TryLock on held: got true")
	}
	lock.Unlock()
	if !lock.TryLock() {
		t.Fatal("TryLock after Unlock: got false")
	}
	lock.Unlock()
}
