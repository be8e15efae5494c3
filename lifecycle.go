package walstream

import "errors"

// ServeConnection runs one sender end to end over conn: Init, the
// at-exit release of its slot (via defer, Go's equivalent of
// walsender.c's on_shmem_exit hook), and the handshake-then-streaming
// Run. It returns the process exit code spec.md §6 specifies, so a
// caller spawning one OS process per connection can pass it straight
// to os.Exit, and a caller running many senders as goroutines in one
// process (cmd/walsendd's default mode) can log it and move on.
func ServeConnection(cfg SenderConfig, identity IdentitySource, table *SlotTable, flush FlushTracker,
	conn Transport, sig *SignalState, sup Supervisor, baseBackup BaseBackupFunc, inRecovery bool) (code int) {

	log := createLogger(cfg.Log)
	defer func() {
		if r := recover(); r != nil {
			log.Error("sender panicked", "error", ErrIOError, "panic", r)
			code = ExitCode(ErrIOError)
		}
	}()

	s, err := NewSender(cfg, identity, table, flush, conn, sig, sup, baseBackup, inRecovery)
	if err != nil {
		log.Error("sender init failed", "error", err)
		return exitCodeForInitError(err)
	}

	runErr := s.Run()
	switch {
	case runErr == nil:
		log.Info("sender exiting cleanly", "sent", s.sentPtr.String())
	case errors.Is(runErr, ErrPeerClosed):
		log.Info("peer closed connection", "sent", s.sentPtr.String())
	case errors.Is(runErr, ErrSupervisorDead):
		log.Error("supervisor is gone, exiting", "sent", s.sentPtr.String())
	default:
		log.Error("sender exiting after error", "error", runErr, "sent", s.sentPtr.String())
	}

	return ExitCode(runErr)
}

// exitCodeForInitError maps an Init-time failure to spec.md §7's "fatal
// at Init; exit" policy — none of these ever reach the streaming loop,
// so they're always exit 0 except supervisor death.
func exitCodeForInitError(err error) int {
	if errors.Is(err, ErrSupervisorDead) {
		return 1
	}
	return 0
}
