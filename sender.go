package walstream

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
)

func currentPID() int { return os.Getpid() }

// Sender is one WAL streaming sender: the translation of walsender.c's
// per-backend global state into a value with no process-wide globals,
// so that a single Go process can host many of these concurrently
// (cmd/walsendd does exactly that, one goroutine per accepted
// connection).
//
// A Sender is not safe for concurrent use from more than one goroutine
// — same as the original, which is single-threaded per OS process
// (spec.md §5).
type Sender struct {
	cfg      SenderConfig
	log      Logger
	identity IdentitySource

	table *SlotTable
	slot  *Slot
	flush FlushTracker

	segReader *SegmentReader
	conn      Transport
	fw        *FrameWriter
	fr        *FrameReader

	sig *SignalState
	sup Supervisor

	baseBackup BaseBackupFunc

	sentPtr     LogPosition
	compressing bool
	zstdEnc     *zstd.Encoder
	outBuf      []byte

	statusText string
	Metrics    SenderMetrics
}

// NewSender runs spec.md §4.G's Init: refuses a still-recovering
// server, allocates a slot, and leaves the sender ready for
// runHandshake. inRecovery models the "is this instance itself a
// standby" check the original does against shared recovery state.
func NewSender(cfg SenderConfig, identity IdentitySource, table *SlotTable, flush FlushTracker,
	conn Transport, sig *SignalState, sup Supervisor, baseBackup BaseBackupFunc, inRecovery bool) (*Sender, error) {
	if inRecovery {
		return nil, ErrStillInRecovery
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pid := int32(currentPID())
	slot, err := table.Allocate(pid)
	if err != nil {
		return nil, err
	}

	s := &Sender{
		cfg:        cfg,
		log:        createLogger(cfg.Log),
		identity:   identity,
		table:      table,
		slot:       slot,
		flush:      flush,
		segReader:  NewSegmentReader(cfg.Storage.Dir, cfg.Storage.Layout, flush),
		conn:       conn,
		fw:         NewFrameWriter(conn),
		fr:         NewFrameReader(conn),
		sig:        sig,
		sup:        sup,
		baseBackup: baseBackup,
		outBuf:     make([]byte, 1+WalDataHeaderSize+int(cfg.MaxSendSize)),
	}
	return s, nil
}

// Kill is the at-exit hook spec.md §4.G specifies: pid := 0 needs no
// lock (nobody else writes this slot's pid), then disown the latch.
// Call this exactly once, however the sender's run ends.
func (s *Sender) Kill() {
	s.table.Release(s.slot)
	s.segReader.Close()
	s.conn.Close()
}

// StatusText reports what the sender is doing right now, the
// process-title equivalent spec.md's supplemented features section
// describes (set_ps_display in the original).
func (s *Sender) StatusText() string {
	if s.statusText == "" {
		return "idle"
	}
	return s.statusText
}

// Run executes the handshake followed by the streaming loop, returning
// the terminal error (nil for a clean shutdown). Callers map the
// result to an exit code with ExitCode.
func (s *Sender) Run() error {
	defer s.Kill()

	if err := s.runHandshake(); err != nil {
		return err
	}
	return s.streamLoop()
}

// streamLoop is spec.md §4.E's state machine, run after
// START_REPLICATION has handed control here.
func (s *Sender) streamLoop() error {
	for {
		if !s.sup.Alive() {
			return ErrSupervisorDead
		}

		if s.sig.GotConfigReload() {
			s.log.Info("config reload requested")
		}

		if s.sig.ReadyToStop() {
			caughtUp, err := s.sendBatch()
			if err != nil {
				return err
			}
			if caughtUp {
				s.sig.RequestShutdown()
			}
		}

		if s.sig.ShutdownRequested() {
			if err := s.fw.WriteCommandComplete("COPY 0"); err != nil {
				return fmt.Errorf("%w: %w", ErrFlushFailure, err)
			}
			if err := s.fw.Flush(); err != nil {
				return fmt.Errorf("%w: %w", ErrFlushFailure, err)
			}
			return nil
		}

		caughtUp, err := s.sendBatch()
		if err != nil {
			return err
		}

		if caughtUp {
			s.slot.Latch().Reset()
			caughtUp2, err := s.sendBatch()
			if err != nil {
				return err
			}
			if caughtUp2 && !s.sig.GotConfigReload() {
				s.Metrics.CaughtUpWaits.Add(1)
				if _, _, err := WaitLatchOrSocket(s.slot.Latch(), s.socketFD(), s.cfg.Concurrency.SendDelay); err != nil {
					return fmt.Errorf("%w: %w", ErrIOError, err)
				}
			}

			closed, err := s.checkPeerClosed()
			if err != nil {
				return err
			}
			if closed {
				return nil
			}

			s.slot.SetState(StateStreaming)
		} else {
			s.slot.SetState(StateCatchup)
		}
	}
}

// sendBatch implements spec.md §4.E's SendBatch algorithm exactly:
// clamp to MaxSendSize, clamp at a logid boundary, round down to a
// page boundary unless the batch reaches flushPtr, fill the frame, and
// send it. Returns whether the sender is now caught up with flushPtr.
func (s *Sender) sendBatch() (caughtUp bool, err error) {
	flushPtr := s.flush.FlushRecPtr()
	if flushPtr.LessEq(s.sentPtr) {
		return true, nil
	}

	start := s.sentPtr
	if start.RecOff >= s.cfg.Storage.Layout.LogFileSize {
		start = LogPosition{LogID: start.LogID + 1, RecOff: 0}
	}

	end := start.Advance(s.cfg.MaxSendSize)
	if end.RecOff > s.cfg.Storage.Layout.LogFileSize || end.RecOff < start.RecOff {
		end = LogPosition{LogID: start.LogID, RecOff: s.cfg.Storage.Layout.LogFileSize}
	}

	if end.LessEq(flushPtr) && end != flushPtr {
		pageSize := s.cfg.Storage.Layout.PageSize
		end.RecOff -= end.RecOff % pageSize
		caughtUp = false
	} else {
		end = flushPtr
		caughtUp = true
	}

	nbytes := start.Sub(end)
	if nbytes > s.cfg.MaxSendSize {
		return false, fmt.Errorf("walstream: internal error: batch size %d exceeds MaxSendSize %d", nbytes, s.cfg.MaxSendSize)
	}
	if nbytes == 0 {
		return true, nil
	}

	frame := s.outBuf[:1+WalDataHeaderSize+int(nbytes)]
	frame[0] = msgCopyDataMarkerWAL
	walBytes := frame[1+WalDataHeaderSize:]
	if err := s.segReader.Read(walBytes, start); err != nil {
		return false, err
	}

	hdr := WalDataHeader{DataStart: start, WalEnd: end, SendTime: time.Now().UnixMicro()}
	hdr.Encode(frame[1 : 1+WalDataHeaderSize])

	payload := frame
	if s.compressing {
		payload = compressFrame(s.zstdEnc, frame)
	}

	if err := s.fw.WriteCopyData(payload); err != nil {
		s.Metrics.ErrorCount.Add(1)
		return false, fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	if err := s.fw.Flush(); err != nil {
		s.Metrics.ErrorCount.Add(1)
		return false, fmt.Errorf("%w: %w", ErrFlushFailure, err)
	}
	s.Metrics.FramesSent.Add(1)
	s.Metrics.BytesSent.Add(uint64(nbytes))
	if s.compressing {
		s.Metrics.CompressedBytes.Add(uint64(len(payload)))
	}

	s.sentPtr = end
	s.slot.Publish(s.sentPtr)
	if s.cfg.UpdateStatus {
		s.statusText = fmt.Sprintf("streaming %s", s.sentPtr)
	}

	return caughtUp, nil
}

// checkPeerClosed implements the non-blocking peek spec.md §4.E step 5
// describes: a short read deadline, then a one-byte peek. No byte
// means "still connected, nothing to report"; 'X' means terminate;
// anything else is a protocol violation.
func (s *Sender) checkPeerClosed() (closed bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false, fmt.Errorf("%w: %w", ErrIOError, err)
	}
	defer s.conn.SetReadDeadline(time.Time{})

	b, err := s.fr.PeekByte()
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, ErrPeerClosed
	}
	if b == msgTerminate {
		return true, nil
	}
	return false, fmt.Errorf("%w: unexpected byte %q while streaming", ErrProtocolViolation, b)
}

// socketFD extracts the raw file descriptor from conn for
// WaitLatchOrSocket, when the transport is a real *net.TCPConn or
// *net.UnixConn; returns -1 for transports that don't support it
// (e.g. an in-memory pipe in tests), in which case the wait still
// works, just without the socket-half of "or socket readable".
func (s *Sender) socketFD() int {
	sc, ok := s.conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	raw.Control(func(f uintptr) { fd = int(f) })
	return fd
}
