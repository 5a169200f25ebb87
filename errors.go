// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For Enqueue/Push: the structure is full (backpressure)
// For Dequeue/Pop: the structure is empty (no data available)
// For Pool.Allocate: the pool is exhausted and not growable
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrOutstanding is returned by [Pool.Close] when blocks are still
// allocated, i.e. the caller leaked Allocate/Construct results without
// the matching Deallocate/Destroy.
var ErrOutstanding = errors.New("lockfree: allocated blocks outstanding")

// ErrNotRunning is returned by JobSystem scheduling operations after
// [JobSystem.Close] has stopped the workers.
var ErrNotRunning = errors.New("lockfree: job system is not running")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
