package walstream

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Latch is a one-bit, edge-triggered, cross-goroutine/cross-process wake
// primitive (spec.md §3, §4.C, §9). Set is idempotent and safe to call
// from anywhere, including a signal-notification goroutine, because it
// only does an atomic compare-and-swap plus a non-blocking single-byte
// pipe write — never logging, never allocation. It is built on a
// self-pipe precisely so it composes with socket readiness in a single
// poll(2) call (spec.md §9's "self-pipe / eventfd / equivalent").
//
// A Latch can be owned by exactly one consumer at a time; Own/Disown
// bracket that ownership the way spec.md §3 requires for a slot's latch.
type Latch struct {
	set   atomic.Bool
	owned atomic.Bool
	r, w  *os.File
}

// NewLatch creates an unowned, unset latch backed by a fresh pipe.
func NewLatch() (*Latch, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("walstream: create latch pipe: %w", err)
	}
	return &Latch{r: r, w: w}, nil
}

// Close releases the latch's pipe. Only call this once nothing can
// possibly still be waiting on or setting the latch.
func (l *Latch) Close() error {
	rErr := l.r.Close()
	wErr := l.w.Close()
	if rErr != nil {
		return rErr
	}
	return wErr
}

// Own claims the latch for the calling consumer. Mirrors OwnLatch in
// spec.md §4.G's Init.
func (l *Latch) Own() {
	l.owned.Store(true)
}

// Disown releases ownership without touching the set/unset bit. Mirrors
// DisownLatch in spec.md §4.G's Kill.
func (l *Latch) Disown() {
	l.owned.Store(false)
}

// Owned reports whether the latch is currently owned by a consumer.
func (l *Latch) Owned() bool {
	return l.owned.Load()
}

// Set arms the latch. Idempotent: a second Set before the first is
// observed is a no-op, not two wakeups (the "idempotent wake" law in
// spec.md §8).
func (l *Latch) Set() {
	if l.set.CompareAndSwap(false, true) {
		// Best-effort, non-blocking: if the pipe buffer is full the latch
		// is already going to read as set on the next drain, so a short
		// write here can never be lost information.
		l.w.Write([]byte{0})
	}
}

// Reset clears the latch. Callers must re-test whatever condition they
// were waiting on after Reset, since wakes may be spurious (spec.md
// §4.C).
func (l *Latch) Reset() {
	if l.set.CompareAndSwap(true, false) {
		drainPipe(l.r)
	}
}

// IsSet reports whether the latch is currently armed, without clearing
// it.
func (l *Latch) IsSet() bool {
	return l.set.Load()
}

func drainPipe(r *os.File) {
	r.SetReadDeadline(time.Time{})
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		if n < len(buf) || err != nil {
			return
		}
	}
}

// fd returns the latch's readable self-pipe file descriptor, for use
// with unix.Poll in WaitLatchOrSocket (wait_unix.go).
func (l *Latch) fd() int {
	return int(l.r.Fd())
}

// Wait blocks until the latch is set, with no socket and no timeout.
// Equivalent to WaitLatchOrSocket(l, -1, 0).
func (l *Latch) Wait() error {
	_, _, err := WaitLatchOrSocket(l, -1, 0)
	return err
}

const (
	// pollInfiniteTimeout matches unix.Poll's convention: a negative
	// timeout blocks forever.
	pollInfiniteTimeout = -1
)

// WaitLatchOrSocket blocks until any of: latch is set, sockFD (if >= 0)
// is readable, or timeout elapses (0 means no timeout / wait forever,
// matching spec.md §4.C's contract exactly — note this differs from
// unix.Poll's own zero-means-return-immediately convention, translated
// in wait_unix.go). Spurious wakes are permitted; callers must re-test
// their condition (spec.md §4.C, §9).
func WaitLatchOrSocket(l *Latch, sockFD int, timeout time.Duration) (latchSet, sockReady bool, err error) {
	return waitLatchOrSocketImpl(l, sockFD, timeout)
}
