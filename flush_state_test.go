package walstream

import (
	"path/filepath"
	"testing"
)

func TestInMemoryFlushState(t *testing.T) {
	f := NewInMemoryFlushState()
	if got := f.FlushRecPtr(); got != ZeroPosition {
		t.Fatalf("initial FlushRecPtr = %v, want zero", got)
	}
	f.AdvanceFlush(LogPosition{LogID: 1, RecOff: 0x2000})
	if got := f.FlushRecPtr(); got != (LogPosition{LogID: 1, RecOff: 0x2000}) {
		t.Errorf("FlushRecPtr after AdvanceFlush = %v", got)
	}
	f.MarkRemoved(1, 3)
	logID, seg := f.LastRemovedSegment()
	if logID != 1 || seg != 3 {
		t.Errorf("LastRemovedSegment = (%d, %d), want (1, 3)", logID, seg)
	}
}

func TestSharedFlushStatePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flush.state")

	s1, err := OpenSharedFlushState(path)
	if err != nil {
		t.Fatalf("OpenSharedFlushState: %v", err)
	}
	s1.AdvanceFlush(LogPosition{LogID: 0, RecOff: 0x4000})
	s1.MarkRemoved(0, 1)
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSharedFlushState(path)
	if err != nil {
		t.Fatalf("re-open OpenSharedFlushState: %v", err)
	}
	defer s2.Close()

	if got := s2.FlushRecPtr(); got != (LogPosition{LogID: 0, RecOff: 0x4000}) {
		t.Errorf("FlushRecPtr after reopen = %v", got)
	}
	logID, seg := s2.LastRemovedSegment()
	if logID != 0 || seg != 1 {
		t.Errorf("LastRemovedSegment after reopen = (%d, %d)", logID, seg)
	}
}
