package walstream

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SignalState holds the async-safe flags spec.md §4.C's signal table
// sets. In PostgreSQL these are sig_atomic_t globals written directly
// from a signal handler; the Go translation is a goroutine fed by
// os/signal.Notify that does nothing but flip an atomic.Bool and call
// wake — never logging, never allocating, matching the "async-safe
// flags only" rule.
//
// The original ties one signal set to one sender, because each sender
// is its own OS process. A Go daemon that hosts many Sender goroutines
// in one process (cmd/walsendd's default) has exactly one signal
// handler for all of them, so wake is a callback rather than a single
// Latch — the daemon passes (*SlotTable).WakeAll so that every sender's
// own wait unblocks and re-tests the shared flags.
type SignalState struct {
	gotConfigReload   atomic.Bool
	shutdownRequested atomic.Bool
	readyToStop       atomic.Bool

	wake func()
	ch   chan os.Signal
	done chan struct{}
}

// NewSignalState creates a SignalState that calls wake whenever one of
// HUP, TERM, USR1, or USR2 arrives (QUIT is handled separately, since
// it terminates the process immediately and never touches the flags).
func NewSignalState(wake func()) *SignalState {
	return &SignalState{
		wake: wake,
		ch:   make(chan os.Signal, 8),
		done: make(chan struct{}),
	}
}

// Start installs the handlers described in spec.md §4.C and §6 and
// begins servicing them in a background goroutine. Call Stop to
// unregister.
func (s *SignalState) Start() {
	signal.Notify(s.ch,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	// spec.md §6: INT, ALRM, PIPE, CHLD, TTIN, TTOU, CONT, WINCH are
	// ignored or reset to default. PIPE in particular must be ignored so
	// that a broken standby socket surfaces as a write error (handled in
	// the streaming loop) rather than killing the process outright.
	signal.Ignore(syscall.SIGINT, syscall.SIGALRM, syscall.SIGPIPE)
	signal.Reset(syscall.SIGCHLD, syscall.SIGTTIN, syscall.SIGTTOU, syscall.SIGCONT, syscall.SIGWINCH)

	go s.loop()
}

// Stop unregisters the handlers and stops the servicing goroutine.
func (s *SignalState) Stop() {
	signal.Stop(s.ch)
	close(s.done)
}

func (s *SignalState) loop() {
	for {
		select {
		case sig := <-s.ch:
			switch sig {
			case syscall.SIGHUP:
				s.gotConfigReload.Store(true)
				s.wake()
			case syscall.SIGTERM:
				s.shutdownRequested.Store(true)
				s.wake()
			case syscall.SIGQUIT:
				// Emergency crash: no cleanup, exit(2) immediately. Shared
				// memory may be inconsistent, so this deliberately skips
				// every deferred release path (spec.md §4.C, §5).
				os.Exit(2)
			case syscall.SIGUSR1:
				s.wake()
			case syscall.SIGUSR2:
				s.readyToStop.Store(true)
				s.wake()
			}
		case <-s.done:
			return
		}
	}
}

// GotConfigReload reports and clears the HUP flag, mirroring
// `if (got_SIGHUP) { got_SIGHUP = false; ... }` in the original loop.
func (s *SignalState) GotConfigReload() bool {
	return s.gotConfigReload.CompareAndSwap(true, false)
}

// ShutdownRequested reports the TERM (or promoted USR2) flag without
// clearing it — once true it stays true for the rest of the sender's
// life.
func (s *SignalState) ShutdownRequested() bool {
	return s.shutdownRequested.Load()
}

// RequestShutdown promotes ready-to-stop to shutdown-requested once the
// drain completes (spec.md §4.E step 3).
func (s *SignalState) RequestShutdown() {
	s.shutdownRequested.Store(true)
}

// ReadyToStop reports the USR2 "drain and exit" flag without clearing
// it.
func (s *SignalState) ReadyToStop() bool {
	return s.readyToStop.Load()
}
