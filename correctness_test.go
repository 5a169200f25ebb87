// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lockfree"
)

// =============================================================================
// Queues - Concurrent Correctness
// =============================================================================

// queueStressTest launches numP producers and numC consumers against a
// queue and verifies that every produced value is consumed exactly once.
// Values are encoded as producerID*1000000 + sequence.
type queueStressTest struct {
	t            *testing.T
	numP, numC   int
	itemsPerProd int
	timeout      time.Duration
}

func (st *queueStressTest) run(
	enqueue func(v int) error,
	dequeue func() (int, error),
) {
	t := st.t
	if lockfree.RaceEnabled {
		t.Skip("skip: atomix accesses are invisible to the race detector")
	}

	var wg sync.WaitGroup
	expectedTotal := st.numP * st.itemsPerProd
	seen := make([]atomix.Int32, expectedTotal)
	var consumed atomix.Int64
	var timedOut atomix.Bool

	for p := range st.numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			deadline := time.Now().Add(st.timeout)
			backoff := iox.Backoff{}
			for i := range st.itemsPerProd {
				v := id*1000000 + i
				for enqueue(v) != nil {
					if time.Now().After(deadline) {
						timedOut.Store(true)
						return
					}
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}

	for range st.numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(st.timeout)
			backoff := iox.Backoff{}
			for consumed.Load() < int64(expectedTotal) {
				if time.Now().After(deadline) {
					timedOut.Store(true)
					return
				}
				v, err := dequeue()
				if err != nil {
					backoff.Wait()
					continue
				}
				backoff.Reset()
				id, seq := v/1000000, v%1000000
				if id < 0 || id >= st.numP || seq < 0 || seq >= st.itemsPerProd {
					t.Errorf("value out of range: %d", v)
				} else {
					seen[id*st.itemsPerProd+seq].Add(1)
				}
				consumed.Add(1)
			}
		}()
	}

	wg.Wait()

	if timedOut.Load() {
		t.Fatalf("timeout: consumed %d of %d", consumed.Load(), expectedTotal)
	}
	if got := consumed.Load(); got != int64(expectedTotal) {
		t.Fatalf("consumed %d values, want %d", got, expectedTotal)
	}
	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("value %d consumed %d times, want 1", i, n)
		}
	}
}

// TestMPMCConcurrent verifies exactly-once delivery with contending
// producers and consumers on a queue much smaller than the item count.
func TestMPMCConcurrent(t *testing.T) {
	q := lockfree.NewMPMC[int](512)
	st := &queueStressTest{t: t, numP: 4, numC: 4, itemsPerProd: 5000, timeout: 30 * time.Second}
	st.run(
		func(v int) error { return q.Enqueue(&v) },
		q.Dequeue,
	)
}

// TestMPSCConcurrent verifies exactly-once delivery with contending
// producers and a single consumer.
func TestMPSCConcurrent(t *testing.T) {
	q := lockfree.NewMPSC[int](512)
	st := &queueStressTest{t: t, numP: 4, numC: 1, itemsPerProd: 5000, timeout: 30 * time.Second}
	st.run(
		func(v int) error { return q.Enqueue(&v) },
		q.Dequeue,
	)
}

// TestSPMCConcurrent verifies exactly-once delivery with a single
// producer and contending consumers.
func TestSPMCConcurrent(t *testing.T) {
	q := lockfree.NewSPMC[int](512)
	st := &queueStressTest{t: t, numP: 1, numC: 4, itemsPerProd: 20000, timeout: 30 * time.Second}
	st.run(
		func(v int) error { return q.Enqueue(&v) },
		q.Dequeue,
	)
}

// TestSPSCConcurrent verifies in-order exactly-once delivery between one
// producer and one consumer goroutine.
func TestSPSCConcurrent(t *testing.T) {
	if lockfree.RaceEnabled {
		t.Skip("skip: atomix accesses are invisible to the race detector")
	}

	const total = 100000
	q := lockfree.NewSPSC[int](1024)

	var wg sync.WaitGroup
	var timedOut atomix.Bool
	deadline := time.Now().Add(30 * time.Second)

	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		for i := range total {
			for q.Enqueue(&i) != nil {
				if time.Now().After(deadline) {
					timedOut.Store(true)
					return
				}
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	backoff := iox.Backoff{}
	for want := 0; want < total; {
		v, err := q.Dequeue()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout waiting for value %d", want)
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		if v != want {
			t.Fatalf("out of order: got %d, want %d", v, want)
		}
		want++
	}

	wg.Wait()
	if timedOut.Load() {
		t.Fatal("producer timed out")
	}
	if !q.Empty() {
		t.Fatalf("queue not drained: Len=%d", q.Len())
	}
}
