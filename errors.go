package walstream

import "errors"

// Sentinel errors for the kinds spec.md §7 distinguishes. Sender code
// wraps these with fmt.Errorf("...: %w", ...) so errors.Is still
// matches while the message carries call-specific detail.
var (
	// ErrProtocolViolation: unexpected message type or malformed frame.
	// Fatal; the caller logs and exits 0.
	ErrProtocolViolation = errors.New("walstream: protocol violation")

	// ErrPeerClosed: the standby sent 'X' or closed the connection.
	// Clean; exit 0.
	ErrPeerClosed = errors.New("walstream: peer closed connection")

	// ErrIOError: an open/seek/read failure other than a missing
	// segment. Logged; exit.
	ErrIOError = errors.New("walstream: I/O error")

	// ErrTooManySenders: no free slot at Init. Fatal; exit.
	ErrTooManySenders = ErrOutOfSlots

	// ErrWrongWALLevel: the configured logging level is too minimal for
	// streaming. Fatal at START_REPLICATION; exit.
	ErrWrongWALLevel = errors.New("walstream: wal_level too low for replication")

	// ErrStillInRecovery: this instance is itself a standby and cannot
	// serve as a primary to another standby. Fatal at Init; exit.
	ErrStillInRecovery = errors.New("walstream: server is still in recovery")

	// ErrSupervisorDead: the liveness probe found the supervisor gone.
	// Exit 1.
	ErrSupervisorDead = errors.New("walstream: supervisor process is gone")

	// ErrFlushFailure: the socket write failed. Clean loop break; exit 0.
	// Log output never goes to the peer socket, so nothing is redirected.
	ErrFlushFailure = errors.New("walstream: flush to peer failed")
)

// ExitCode maps an error observed by the top-level run loop to the
// process exit code spec.md §6 specifies. A nil error is the graceful
// no-more-work case (exit 0).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrSupervisorDead):
		return 1
	default:
		return 0
	}
}
