// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lockfree provides lock-free concurrent building blocks and a
// cooperative job scheduler built on top of them.
//
// The package contains four layers, leaves first:
//
//   - Bounded ring queues: SPSC, MPSC, SPMC and MPMC variants with
//     per-slot sequence numbers (except SPSC, which needs none).
//   - An ABA-safe stack whose head is a single 64-bit word packing a
//     slot index and a version tag, compared-and-swapped atomically.
//   - A lock-free memory pool: a chunked, free-list allocator handing
//     out fixed-size blocks, hardened against ABA with the same tagged
//     word as the stack.
//   - A job system: worker goroutines pull jobs from an MPMC queue,
//     jobs are allocated from a pool, and counters track fork-join
//     completion.
//
// # Queues
//
// Direct constructors:
//
//	q := lockfree.NewSPSC[Event](1024)
//	q := lockfree.NewMPMC[*Request](4096)
//
// Builder API auto-selects the variant based on declared constraints:
//
//	q := lockfree.Build[Event](lockfree.New(1024).SingleProducer().SingleConsumer()) // → SPSC
//	q := lockfree.Build[Event](lockfree.New(1024).SingleConsumer())                  // → MPSC
//	q := lockfree.Build[Event](lockfree.New(1024).SingleProducer())                  // → SPMC
//	q := lockfree.Build[Event](lockfree.New(1024))                                   // → MPMC
//
// All queues share the same non-blocking interface:
//
//	value := 42
//	err := q.Enqueue(&value)
//	if lockfree.IsWouldBlock(err) {
//	    // Queue is full - handle backpressure
//	}
//
//	elem, err := q.Dequeue()
//	if lockfree.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// Capacity rounds up to the next power of 2. MPSC/SPMC/MPMC use all n
// slots; SPSC keeps one slot in reserve and reports Cap() == n-1.
// Minimum requested capacity is 2; smaller values panic.
//
// Len, Empty and Full are advisory snapshots. Under concurrent mutation
// they are approximate by nature of lock-free algorithms; treat them as
// hints, never as transactional state.
//
// # Stack
//
// Stack is a Treiber stack over an internal slab of nodes. The head word
// packs a 48-bit node index with a 16-bit version tag that increments on
// every successful mutation, so a stalled compare-and-swap that observes
// a recycled node fails on the tag instead of succeeding wrongly (the
// classic ABA hazard):
//
//	s := lockfree.NewStack[int]()
//	s.Push(42)
//	v, err := s.Pop() // 42, nil
//	_, err = s.Pop()  // ErrWouldBlock
//
// # Memory pool
//
// Pool hands out fixed-size blocks from chunked storage. The free list is
// threaded through the blocks themselves and guarded by the same tagged
// word as the stack. Growth is the only locked path (a narrow spinlock
// around the chunk directory) and is expected to be rare:
//
//	pool := lockfree.NewPool[Bullet](1024)
//	b, err := pool.Construct(Bullet{X: x, Y: y})
//	...
//	pool.Destroy(b)
//
// Every Construct must be paired with exactly one Destroy (or Allocate
// with Deallocate). Close reports blocks that were never returned.
//
// # Job system
//
// JobSystem runs a fixed set of worker goroutines over an MPMC queue of
// jobs allocated from a growable pool:
//
//	js := lockfree.NewJobSystem()
//	defer js.Close()
//
//	var c lockfree.Counter
//	for i := range 100 {
//	    js.Schedule(func() { process(i) }, &c)
//	}
//	js.WaitForCounter(&c) // all 100 side effects are visible here
//
// Waiting is cooperative: a goroutine blocked in WaitForCounter or
// WaitAll executes pending jobs itself instead of idling, falling back
// to adaptive backoff only when the queue is momentarily empty.
//
// Jobs may fork children via AllocateJob with a parent; a parent is not
// finished until every descendant has finished, modeling a fork-join
// tree. A panicking job function is recovered, the job is still finished
// so counters stay consistent, and the recovered value is passed to the
// WithPanicHandler callback when one is configured.
//
// # Error Handling
//
// All hot-path failures are the single semantic signal [ErrWouldBlock],
// sourced from [code.hybscloud.com/iox] for ecosystem consistency: queue
// full or empty, stack empty, pool exhausted. It is a control flow
// signal, not a failure; retry with backoff:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(&item)
//	    if err == nil {
//	        break
//	    }
//	    backoff.Wait()
//	}
//
// Internal compare-and-swap failures are never surfaced; they trigger
// silent retry, which is the defining trait of lock-freedom: the system
// as a whole makes progress even when an individual goroutine retries.
//
// # Thread Safety
//
// Queue operations are safe within their access pattern constraints
// (e.g. one producer goroutine for SPSC/SPMC). Violating them causes
// data corruption; the contracts are documented preconditions, not
// runtime checks, matching the zero-overhead intent. Stack and Pool
// operations are safe from any number of goroutines.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships that
// these algorithms establish through atomic memory orderings on separate
// variables, so it reports false positives for the generic queue
// variants. Affected tests are excluded via //go:build !race; the
// algorithms themselves are verified by stress and consistency tests
// without the detector.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions.
package lockfree
