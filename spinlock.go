package walstream

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a userspace spinlock, the direct translation of the
// SpinLockAcquire/SpinLockRelease pair spec.md §4.B and §9 call for: a
// lock cheap enough to take around a two-field write (a slot's logID
// and recOf)
// without the scheduling overhead of a full mutex, on the assumption
// that it is never held across a blocking call. It yields to the Go
// scheduler after a few spins rather than burning a core indefinitely,
// since unlike PostgreSQL's backends a goroutine holding the lock can be
// preempted without a full OS thread going idle.
type spinlock struct {
	locked atomic.Bool
}

func (s *spinlock) Lock() {
	for i := 0; ; i++ {
		if s.locked.CompareAndSwap(false, true) {
			return
		}
		if i > 16 {
			runtime.Gosched()
		}
	}
}

func (s *spinlock) Unlock() {
	s.locked.Store(false)
}
