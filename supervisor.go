package walstream

import "syscall"

// Supervisor is the external process a sender polls for liveness
// (spec.md §4.D, §4.E step 1, §5 "Supervisor death"). The real
// supervisor is the daemon that forked this sender; SupervisorPID and
// AlwaysAlive are minimal stand-ins, and the demo daemon and the tests
// use AlwaysAlive.
type Supervisor interface {
	Alive() bool
}

// SupervisorPID checks liveness by signaling a PID with signal 0, the
// same probe process_id.go's isProcessAlive uses to decide whether a
// recorded slot owner is still running.
type SupervisorPID int

var _ Supervisor = SupervisorPID(0)

// Alive reports whether the process still exists and is signalable.
func (p SupervisorPID) Alive() bool {
	if p <= 0 {
		return false
	}
	err := syscall.Kill(int(p), 0)
	if err == nil {
		return true
	}
	if errno, ok := err.(syscall.Errno); ok {
		// ESRCH: no such process. EPERM: exists but owned by someone
		// else, which on a single-host supervisor/child pair never
		// happens, but EPERM still means "alive" rather than "gone".
		return errno != syscall.ESRCH
	}
	return false
}

// AlwaysAlive never reports death; useful for tests and for the demo
// daemon when it runs senders as goroutines rather than child processes.
type AlwaysAlive struct{}

var _ Supervisor = AlwaysAlive{}

func (AlwaysAlive) Alive() bool { return true }
