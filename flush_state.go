package walstream

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// flushStateLayout mirrors the teacher's MmapCoordinationState: a small,
// fixed-size, atomic-only struct mapped into a shared-memory file so
// that the external WAL writer/flusher (out of scope per spec.md §1) and
// every sender process can observe the same monotonically-advancing
// flush pointer and removed-segment watermark without any lock.
type flushStateLayout struct {
	FlushLogID   atomic.Uint32
	FlushRecOff  atomic.Uint32
	RemovedLogID atomic.Uint32
	RemovedSeg   atomic.Uint32
	_reserved    [48]byte
}

const flushStateSize = 64

func init() {
	if unsafe.Sizeof(flushStateLayout{}) != flushStateSize {
		panic(fmt.Sprintf("walstream: flushStateLayout must be %d bytes, got %d",
			flushStateSize, unsafe.Sizeof(flushStateLayout{})))
	}
}

// SharedFlushState is a mmap-backed FlushTracker. It stands in for the
// primary's real WAL writer/flusher and checkpointer: those own the
// flush pointer and the last-removed-segment watermark in the actual
// server, and are explicitly out of scope here (spec.md §1). Tests use
// SharedFlushState's mutating methods to play that external role; the
// demo daemon uses InMemoryFlushState instead.
type SharedFlushState struct {
	file  *os.File
	data  []byte
	state *flushStateLayout
}

// OpenSharedFlushState maps (creating if necessary) the flush-state file
// at path, sized to hold exactly one flushStateLayout.
func OpenSharedFlushState(path string) (*SharedFlushState, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("walstream: open flush state: %w", err)
	}

	if stat, err := f.Stat(); err != nil {
		f.Close()
		return nil, err
	} else if stat.Size() < flushStateSize {
		if err := f.Truncate(flushStateSize); err != nil {
			f.Close()
			return nil, err
		}
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, flushStateSize,
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("walstream: mmap flush state: %w", err)
	}

	return &SharedFlushState{
		file:  f,
		data:  data,
		state: (*flushStateLayout)(unsafe.Pointer(&data[0])),
	}, nil
}

// Close unmaps and closes the backing file.
func (s *SharedFlushState) Close() error {
	if s.data != nil {
		syscall.Munmap(s.data)
		s.data = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// FlushRecPtr implements FlushTracker.
func (s *SharedFlushState) FlushRecPtr() LogPosition {
	return LogPosition{
		LogID:  s.state.FlushLogID.Load(),
		RecOff: s.state.FlushRecOff.Load(),
	}
}

// LastRemovedSegment implements FlushTracker.
func (s *SharedFlushState) LastRemovedSegment() (logID, segIndex uint32) {
	return s.state.RemovedLogID.Load(), s.state.RemovedSeg.Load()
}

// AdvanceFlush publishes a new flush pointer. The caller (the external
// flusher, in the real system) is responsible for never publishing a
// position that points into the middle of a WAL record (spec.md §4.E
// rationale) and for never moving it backwards.
func (s *SharedFlushState) AdvanceFlush(pos LogPosition) {
	s.state.FlushLogID.Store(pos.LogID)
	s.state.FlushRecOff.Store(pos.RecOff)
}

// MarkRemoved publishes a new last-removed-segment watermark, simulating
// the checkpointer recycling a segment out from under a lagging sender.
func (s *SharedFlushState) MarkRemoved(logID, segIndex uint32) {
	s.state.RemovedLogID.Store(logID)
	s.state.RemovedSeg.Store(segIndex)
}

var _ FlushTracker = (*SharedFlushState)(nil)

// InMemoryFlushState is a non-shared FlushTracker for unit tests that
// don't need the mmap round trip.
type InMemoryFlushState struct {
	flush      atomic.Uint64
	removedLog atomic.Uint32
	removedSeg atomic.Uint32
}

// NewInMemoryFlushState returns a tracker starting at ZeroPosition with
// nothing marked removed.
func NewInMemoryFlushState() *InMemoryFlushState {
	return &InMemoryFlushState{}
}

func packPosition(p LogPosition) uint64 {
	return uint64(p.LogID)<<32 | uint64(p.RecOff)
}

func unpackPosition(v uint64) LogPosition {
	return LogPosition{LogID: uint32(v >> 32), RecOff: uint32(v)}
}

func (s *InMemoryFlushState) FlushRecPtr() LogPosition {
	return unpackPosition(s.flush.Load())
}

func (s *InMemoryFlushState) LastRemovedSegment() (uint32, uint32) {
	return s.removedLog.Load(), s.removedSeg.Load()
}

func (s *InMemoryFlushState) AdvanceFlush(pos LogPosition) {
	s.flush.Store(packPosition(pos))
}

func (s *InMemoryFlushState) MarkRemoved(logID, segIndex uint32) {
	s.removedLog.Store(logID)
	s.removedSeg.Store(segIndex)
}

var _ FlushTracker = (*InMemoryFlushState)(nil)
