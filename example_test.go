// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

// This file contains examples that use atomix concurrency primitives.
// These trigger false positives with Go's race detector because atomix
// atomic operations appear as regular memory accesses to the detector.
// The examples are correct; they're excluded from race testing.

package lockfree_test

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lockfree"
)

// ExampleNewSPSC demonstrates a basic SPSC queue for pipeline stages.
func ExampleNewSPSC() {
	// One slot is reserved: capacity 8 buffers up to 7 elements
	q := lockfree.NewSPSC[int](8)

	// Producer sends 5 values
	for i := 1; i <= 5; i++ {
		v := i * 10
		q.Enqueue(&v)
	}

	// Consumer receives values
	for range 5 {
		v, _ := q.Dequeue()
		fmt.Println(v)
	}

	// Output:
	// 10
	// 20
	// 30
	// 40
	// 50
}

// ExampleNewMPMC demonstrates a multi-producer multi-consumer queue.
func ExampleNewMPMC() {
	q := lockfree.NewMPMC[string](16)

	// Producers
	var wg sync.WaitGroup
	for p := range 3 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			backoff := iox.Backoff{}
			msg := fmt.Sprintf("msg from producer %d", id)
			for q.Enqueue(&msg) != nil {
				backoff.Wait()
			}
		}(p)
	}

	// Wait for producers then consume
	wg.Wait()

	for {
		msg, err := q.Dequeue()
		if err != nil {
			break
		}
		fmt.Println(msg)
	}

	// Unordered output:
	// msg from producer 0
	// msg from producer 1
	// msg from producer 2
}

// ExampleNew demonstrates builder-based algorithm selection.
func ExampleNew() {
	// One enqueueing goroutine, one dequeueing goroutine: the builder
	// selects the wait-free SPSC ring.
	q := lockfree.BuildSPSC[string](
		lockfree.New(64).SingleProducer().SingleConsumer(),
	)

	v := "hello"
	q.Enqueue(&v)
	got, _ := q.Dequeue()
	fmt.Println(got)

	// Output:
	// hello
}

// ExampleNewStack demonstrates LIFO order and the empty-pop error.
func ExampleNewStack() {
	s := lockfree.NewStack[string]()

	s.Push("first")
	s.Push("second")
	s.Push("third")

	for {
		v, err := s.Pop()
		if err != nil {
			break
		}
		fmt.Println(v)
	}

	// Output:
	// third
	// second
	// first
}

// ExampleNewPool demonstrates the allocate/deallocate contract.
func ExampleNewPool() {
	type vertex struct{ x, y, z float32 }

	p := lockfree.NewPool[vertex](64)

	v, _ := p.Construct(vertex{x: 1, y: 2, z: 3})
	fmt.Println(v.x, v.y, v.z)
	fmt.Println("allocated:", p.AllocatedCount())

	p.Destroy(v)
	fmt.Println("allocated:", p.AllocatedCount())
	fmt.Println("leak check:", p.Close())

	// Output:
	// 1 2 3
	// allocated: 1
	// allocated: 0
	// leak check: <nil>
}

// ExampleNewJobSystem demonstrates fan-out/fan-in with a counter.
func ExampleNewJobSystem() {
	js := lockfree.NewJobSystem(lockfree.WithWorkers(4))
	defer js.Close()

	var sum atomix.Int64
	var counter lockfree.Counter
	for i := 1; i <= 100; i++ {
		n := int64(i)
		js.Schedule(func() { sum.Add(n) }, &counter)
	}

	// Waiters execute pending jobs themselves instead of idling
	js.WaitForCounter(&counter)
	fmt.Println(sum.Load())

	// Output:
	// 5050
}
