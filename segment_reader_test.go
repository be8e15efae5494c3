package walstream

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSegment(t *testing.T, dir string, layout WALLayout, logID, segIndex uint32, fill byte) {
	t.Helper()
	name := layout.segmentName(logID, segIndex)
	data := make([]byte, layout.SegSize)
	for i := range data {
		data[i] = fill
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("writeSegment: %v", err)
	}
}

func TestSegmentReaderReadsWithinOneSegment(t *testing.T) {
	dir := t.TempDir()
	layout := WALLayout{SegSize: 0x1000, PageSize: 0x100}
	writeSegment(t, dir, layout, 0, 0, 0xAA)

	flush := NewInMemoryFlushState()
	r := NewSegmentReader(dir, layout, flush)
	defer r.Close()

	dst := make([]byte, 0x200)
	if err := r.Read(dst, LogPosition{LogID: 0, RecOff: 0x100}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range dst {
		if b != 0xAA {
			t.Fatalf("byte %d = %#x, want 0xAA", i, b)
		}
	}
}

func TestSegmentReaderCrossesSegmentBoundary(t *testing.T) {
	dir := t.TempDir()
	layout := WALLayout{SegSize: 0x1000, PageSize: 0x100}
	writeSegment(t, dir, layout, 0, 0, 0x11)
	writeSegment(t, dir, layout, 0, 1, 0x22)

	flush := NewInMemoryFlushState()
	r := NewSegmentReader(dir, layout, flush)
	defer r.Close()

	dst := make([]byte, 0x200)
	if err := r.Read(dst, LogPosition{LogID: 0, RecOff: 0xF00}); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < 0x100; i++ {
		if dst[i] != 0x11 {
			t.Fatalf("byte %d in first segment = %#x, want 0x11", i, dst[i])
		}
	}
	for i := 0x100; i < 0x200; i++ {
		if dst[i] != 0x22 {
			t.Fatalf("byte %d in second segment = %#x, want 0x22", i, dst[i])
		}
	}
}

func TestSegmentReaderMissingSegmentIsGone(t *testing.T) {
	dir := t.TempDir()
	layout := WALLayout{SegSize: 0x1000, PageSize: 0x100}
	flush := NewInMemoryFlushState()
	r := NewSegmentReader(dir, layout, flush)
	defer r.Close()

	dst := make([]byte, 0x10)
	err := r.Read(dst, LogPosition{LogID: 0, RecOff: 0})
	if _, ok := asSegmentGone(err); !ok {
		t.Fatalf("Read error = %v, want *SegmentGoneError", err)
	}
}

func TestSegmentReaderPostReadWatermarkCheck(t *testing.T) {
	dir := t.TempDir()
	layout := WALLayout{SegSize: 0x1000, PageSize: 0x100}
	writeSegment(t, dir, layout, 0, 0, 0x33)

	flush := NewInMemoryFlushState()
	flush.MarkRemoved(0, 0) // segment 0 already recycled before the read even starts
	r := NewSegmentReader(dir, layout, flush)
	defer r.Close()

	dst := make([]byte, 0x10)
	err := r.Read(dst, LogPosition{LogID: 0, RecOff: 0})
	if _, ok := asSegmentGone(err); !ok {
		t.Fatalf("Read error = %v, want *SegmentGoneError", err)
	}
}

func asSegmentGone(err error) (*SegmentGoneError, bool) {
	gone, ok := err.(*SegmentGoneError)
	return gone, ok
}
