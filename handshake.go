package walstream

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Transport is the pluggable byte-stream collaborator spec.md §1 calls
// out as external: the sender only needs to read, write, close, and
// set a read deadline for its liveness/signal polling. A *net.Conn
// (TCP or a Unix socket from the accept loop) satisfies this directly.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
}

// BaseBackupFunc is the single entry point into the external
// base-backup streamer (spec.md §1, §4.D). Sender only calls it; it
// never inspects or produces the backup bytes itself.
type BaseBackupFunc func(cmd BaseBackupCmd) error

// IdentitySource supplies the (systemid, timeline) pair IDENTIFY_SYSTEM
// reports (spec.md §4.D conformance test 1). A fixed Identity value
// implements this trivially for tests and the demo daemon.
type IdentitySource interface {
	SystemID() uint64
	Timeline() uint32
}

// Identity is the simplest IdentitySource: two fixed values.
type Identity struct {
	ID uint64
	TL uint32
}

func (i Identity) SystemID() uint64 { return i.ID }
func (i Identity) Timeline() uint32 { return i.TL }

// runHandshake implements spec.md §4.D: read exactly one command at a
// time until START_REPLICATION hands control to the streaming loop, or
// the peer terminates, or a fatal condition aborts the sender. While
// waiting for input it also polls supervisor liveness and services a
// pending config-reload signal, which is why reads happen under a
// short, renewed deadline rather than one indefinite blocking read.
func (s *Sender) runHandshake() error {
	if err := s.fw.WriteReadyForQuery('I'); err != nil {
		return fmt.Errorf("%w: initial ReadyForQuery: %w", ErrFlushFailure, err)
	}
	if err := s.fw.Flush(); err != nil {
		return fmt.Errorf("%w: initial ReadyForQuery: %w", ErrFlushFailure, err)
	}

	for {
		msgType, payload, err := s.readMessageWithPolling()
		if err != nil {
			return err
		}

		switch msgType {
		case msgTerminate:
			return ErrPeerClosed

		case msgQuery:
			done, err := s.dispatchQuery(ParseQuery(payload))
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// readMessageWithPolling blocks for one framed message but re-checks
// supervisor liveness and got_config_reload every tick while it waits,
// matching spec.md §4.D's "while waiting for input, also polls
// supervisor liveness ... and services got_config_reload".
func (s *Sender) readMessageWithPolling() (byte, []byte, error) {
	for {
		if !s.sup.Alive() {
			return 0, nil, ErrSupervisorDead
		}
		if s.sig != nil && s.sig.GotConfigReload() {
			s.log.Info("config reload requested during handshake")
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Concurrency.SendDelay)); err != nil {
			return 0, nil, fmt.Errorf("%w: %w", ErrIOError, err)
		}
		msgType, payload, err := s.fr.ReadMessage()
		if err == nil {
			return msgType, payload, nil
		}
		if isTimeout(err) {
			continue
		}
		if errors.Is(err, ErrProtocolViolation) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %w", ErrIOError, err)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// dispatchQuery executes one parsed replication command. done reports
// whether the handshake loop should exit (only true for
// START_REPLICATION, per spec.md §4.D).
func (s *Sender) dispatchQuery(query string) (done bool, err error) {
	cmd, err := Parse(query)
	if err != nil {
		return false, err
	}

	switch c := cmd.(type) {
	case IdentifySystemCmd:
		return false, s.handleIdentifySystem()
	case StartReplicationCmd:
		return true, s.handleStartReplication(c)
	case BaseBackupCmd:
		return false, s.handleBaseBackup(c)
	default:
		// spec.md §8's open-question resolution: an unrecognized node
		// type from the parser is fatal, never a silent skip.
		return false, fmt.Errorf("%w: unhandled command type %T", ErrProtocolViolation, cmd)
	}
}

func (s *Sender) handleIdentifySystem() error {
	if err := s.fw.WriteRowDescription([]ResultColumn{{Name: "systemid"}, {Name: "timeline"}}); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	row := [][]byte{
		[]byte(formatUint64(s.identity.SystemID())),
		[]byte(formatUint64(uint64(s.identity.Timeline()))),
	}
	if err := s.fw.WriteDataRow(row); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	if err := s.fw.WriteCommandComplete("SELECT"); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	if err := s.fw.WriteReadyForQuery('I'); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	return s.fw.Flush()
}

func (s *Sender) handleStartReplication(cmd StartReplicationCmd) error {
	if s.cfg.WALLevel < WALLevelReplica {
		return ErrWrongWALLevel
	}
	s.compressing = cmd.Compress && s.cfg.Compression.Enabled
	if s.compressing {
		enc, err := newZstdFrameEncoder()
		if err != nil {
			return fmt.Errorf("walstream: init frame compressor: %w", err)
		}
		s.zstdEnc = enc
	}

	if err := s.fw.WriteCopyBothResponse(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	if err := s.fw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}

	s.sentPtr = cmd.StartPoint
	s.slot.Publish(s.sentPtr)
	s.slot.SetState(StateCatchup)
	return nil
}

func (s *Sender) handleBaseBackup(cmd BaseBackupCmd) error {
	if s.baseBackup == nil {
		return fmt.Errorf("walstream: BASE_BACKUP requested but no base-backup streamer configured")
	}
	if err := s.baseBackup(cmd); err != nil {
		return fmt.Errorf("walstream: base backup failed: %w", err)
	}
	if err := s.fw.WriteCommandComplete("SELECT"); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	if err := s.fw.WriteReadyForQuery('I'); err != nil {
		return fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	return s.fw.Flush()
}
