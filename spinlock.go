// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lockfree

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SpinLock is a test-and-set spinlock with CPU-pause backoff.
//
// It exists for rare, short critical sections that sit off the lock-free
// hot paths — in this package, only the pool's chunk growth takes it.
// Waiters burn their scheduler slice instead of parking, so it is the
// wrong tool for long or contended sections; use sync.Mutex there.
//
// The zero value is an unlocked SpinLock. A SpinLock must not be copied
// after first use.
type SpinLock struct {
	locked atomix.Bool
}

// Lock acquires the lock, spinning until it is available.
func (l *SpinLock) Lock() {
	sw := spin.Wait{}
	for !l.locked.CompareAndSwapAcqRel(false, true) {
		sw.Once()
	}
}

// TryLock attempts to acquire the lock without spinning.
// Returns true if the lock was acquired.
func (l *SpinLock) TryLock() bool {
	return l.locked.CompareAndSwapAcqRel(false, true)
}

// Unlock releases the lock. Calling Unlock on an unlocked SpinLock is a
// caller bug; it is not detected.
func (l *SpinLock) Unlock() {
	l.locked.StoreRelease(false)
}
