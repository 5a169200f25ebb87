// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// Default sizing for NewJobSystem.
const (
	DefaultJobQueueCapacity = 4096
	DefaultJobPoolCapacity  = 4096
)

// Counter tracks the number of outstanding jobs in a logical group.
// Reaching zero is the wait condition of [JobSystem.WaitForCounter].
//
// A Counter's lifetime is independent of any job: it is caller-owned and
// typically lives on the scheduling scope's stack. The zero value is a
// ready-to-use counter at zero.
type Counter struct {
	value atomix.Int32
}

// Increment raises the counter by one. [JobSystem.Schedule] calls this
// for you before the job becomes visible to workers.
func (c *Counter) Increment() {
	c.value.Add(1)
}

// Decrement lowers the counter by one.
// Returns true if this decrement brought it to zero.
func (c *Counter) Decrement() bool {
	return c.value.AddAcqRel(-1) == 0
}

// IsZero reports whether every job in the group has finished.
func (c *Counter) IsZero() bool {
	return c.value.LoadAcquire() == 0
}

// Value returns the current count.
func (c *Counter) Value() int32 {
	return c.value.LoadAcquire()
}

// Job is one unit of work, allocated from the job system's pool at
// schedule time and returned to it when finished. A job is owned by
// whichever side currently holds its pointer: the queue after
// scheduling, the executing worker afterwards.
type Job struct {
	fn      func()
	counter *Counter
	parent  *Job

	// Outstanding work for this job: itself plus unfinished children.
	// The job is returned to the pool when it reaches zero.
	unfinished atomix.Int32
}

// Option configures a JobSystem.
type Option func(*jobOptions)

type jobOptions struct {
	workers  int
	queueCap int
	poolCap  int
	onPanic  func(recovered any)
}

// WithWorkers sets the worker goroutine count.
// Defaults to runtime.NumCPU(). Panics if n < 1.
func WithWorkers(n int) Option {
	if n < 1 {
		panic("lockfree: worker count must be >= 1")
	}
	return func(o *jobOptions) { o.workers = n }
}

// WithQueueCapacity sets the job queue capacity (rounds up to a power
// of 2). Defaults to DefaultJobQueueCapacity.
func WithQueueCapacity(n int) Option {
	return func(o *jobOptions) { o.queueCap = n }
}

// WithPoolCapacity sets the initial job pool capacity. The pool grows on
// demand. Defaults to DefaultJobPoolCapacity.
func WithPoolCapacity(n int) Option {
	return func(o *jobOptions) { o.poolCap = n }
}

// WithPanicHandler installs a callback invoked with the recovered value
// when a job function panics. The panicking job is still finished, so
// counters and parents stay consistent and waiters do not hang. Without
// a handler the recovered value is discarded.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(o *jobOptions) { o.onPanic = fn }
}

// JobSystem schedules jobs onto a fixed set of worker goroutines.
//
// Jobs flow through an [MPMC] queue; their storage comes from a growable
// [Pool]. Counters provide fan-out/fan-in: schedule N jobs against one
// counter, then [JobSystem.WaitForCounter] until all N have finished.
// Parent links model fork-join trees: a parent job is not finished until
// every descendant has finished.
//
// Waiting is cooperative. Workers and waiters alike pull jobs from the
// shared queue; a goroutine waiting on a counter executes pending jobs
// itself, contributing throughput instead of idling, and falls back to
// adaptive backoff only when the queue is momentarily empty. None of the
// primitives block on OS primitives; this trades CPU for latency, which
// fits short job bodies.
type JobSystem struct {
	queue *MPMC[*Job]
	pool  *Pool[Job]

	running atomix.Bool
	pending atomix.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	workers  int
	onPanic  func(recovered any)
}

// NewJobSystem creates a job system and starts its workers.
func NewJobSystem(opts ...Option) *JobSystem {
	o := jobOptions{
		workers:  runtime.NumCPU(),
		queueCap: DefaultJobQueueCapacity,
		poolCap:  DefaultJobPoolCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &JobSystem{
		queue:   NewMPMC[*Job](o.queueCap),
		pool:    NewPool[Job](o.poolCap),
		workers: o.workers,
		onPanic: o.onPanic,
	}
	s.running.StoreRelease(true)

	s.wg.Add(o.workers)
	for range o.workers {
		go s.worker()
	}

	return s
}

// Schedule allocates a job running fn and enqueues it. counter may be
// nil; when set, it is incremented before the job becomes visible to any
// worker, so a concurrent WaitForCounter can never observe a false zero.
//
// Returns ErrNotRunning after Close.
func (s *JobSystem) Schedule(fn func(), counter *Counter) error {
	job, err := s.AllocateJob(fn, counter, nil)
	if err != nil {
		return err
	}
	if counter != nil {
		counter.Increment()
	}
	return s.ScheduleJob(job)
}

// AllocateJob hands out a job from the pool without scheduling it.
// Setting parent links the new job into a fork-join tree and raises the
// parent's outstanding-work count. The counter is recorded but not
// incremented: [JobSystem.ScheduleJob] leaves counter bookkeeping to
// the caller.
//
// Returns ErrNotRunning after Close.
func (s *JobSystem) AllocateJob(fn func(), counter *Counter, parent *Job) (*Job, error) {
	if !s.running.LoadAcquire() {
		return nil, ErrNotRunning
	}

	job, err := s.pool.Allocate()
	if err != nil {
		return nil, err
	}
	job.fn = fn
	job.counter = counter
	job.parent = parent
	job.unfinished.Store(1)
	if parent != nil {
		parent.unfinished.Add(1)
	}
	return job, nil
}

// ScheduleJob enqueues a job previously obtained from
// [JobSystem.AllocateJob]. When the queue is full the caller cooperates:
// it pops and executes one pending job, then retries — scheduling from
// inside a job body therefore cannot deadlock on a full queue.
//
// Returns ErrNotRunning after Close; the job is returned to the pool in
// that case.
func (s *JobSystem) ScheduleJob(job *Job) error {
	if !s.running.LoadAcquire() {
		s.pool.Destroy(job)
		return ErrNotRunning
	}

	s.pending.Add(1)
	backoff := iox.Backoff{}
	for s.queue.Enqueue(&job) != nil {
		if s.runOne() {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}
	return nil
}

// WaitForCounter blocks until the counter reaches zero, executing
// pending jobs while it waits.
func (s *JobSystem) WaitForCounter(counter *Counter) {
	backoff := iox.Backoff{}
	for !counter.IsZero() {
		if s.runOne() {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}
}

// WaitAll blocks until no scheduled job remains unfinished, executing
// pending jobs while it waits.
func (s *JobSystem) WaitAll() {
	backoff := iox.Backoff{}
	for s.pending.LoadAcquire() > 0 {
		if s.runOne() {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}
}

// Close stops the workers, waits for them to exit, and destroys jobs
// left in the queue. Drained jobs never ran; counters they reference
// stay nonzero. Close is idempotent.
func (s *JobSystem) Close() {
	s.stopOnce.Do(func() {
		s.running.StoreRelease(false)
		s.wg.Wait()

		for {
			job, err := s.queue.Dequeue()
			if err != nil {
				break
			}
			s.pool.Destroy(job)
			s.pending.Add(-1)
		}
	})
}

// WorkerCount returns the number of worker goroutines.
func (s *JobSystem) WorkerCount() int {
	return s.workers
}

// PendingJobs returns the approximate number of scheduled jobs that have
// not finished yet.
func (s *JobSystem) PendingJobs() int {
	return int(s.pending.LoadAcquire())
}

// IsRunning reports whether the workers are accepting jobs.
func (s *JobSystem) IsRunning() bool {
	return s.running.LoadAcquire()
}

// worker is the main loop of one worker goroutine.
func (s *JobSystem) worker() {
	defer s.wg.Done()

	backoff := iox.Backoff{}
	for s.running.LoadAcquire() {
		if s.runOne() {
			backoff.Reset()
		} else {
			backoff.Wait()
		}
	}
}

// runOne pops and fully processes one job.
// Returns false if the queue was empty.
func (s *JobSystem) runOne() bool {
	job, err := s.queue.Dequeue()
	if err != nil {
		return false
	}
	s.execute(job)
	s.finish(job)
	return true
}

// execute runs the job body, containing panics so a failing job cannot
// take its worker down or wedge waiters.
func (s *JobSystem) execute(job *Job) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(r)
		}
	}()
	if job.fn != nil {
		job.fn()
	}
}

// finish settles a job's outstanding count; when it reaches zero the
// job is fully done: signal its counter, return it to the pool and walk
// up the parent chain, since a parent is not done until all descendants
// are. The walk is iterative so deep fork-join trees cannot overflow
// the goroutine stack.
func (s *JobSystem) finish(job *Job) {
	for j := job; j != nil; {
		if j.unfinished.AddAcqRel(-1) != 0 {
			break
		}
		if j.counter != nil {
			j.counter.Decrement()
		}
		parent := j.parent
		s.pool.Destroy(j)
		s.pending.Add(-1)
		j = parent
	}
}
