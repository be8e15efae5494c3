package walstream

import (
	"fmt"
)

// WAL layout constants. SegSize must be a power of two and a multiple of
// PageSize (spec.md §6). Defaults match PostgreSQL's traditional 16MiB
// segment / 8KiB page.
const (
	DefaultSegSize  = 16 << 20
	DefaultPageSize = 8 << 10

	// LogFileSize is the number of RecOff bytes in one logical log file,
	// i.e. the point at which LogID increments and RecOff resets to zero.
	// PostgreSQL makes it the largest whole number of segments that fits
	// in a 32-bit RecOff; for this module it is configurable via
	// WALLayout.LogFileSize and defaults to the original's 0xFF000000,
	// i.e. 255 segments of 16MiB per logical file.
	DefaultLogFileSize = 0xFF000000
)

// WALLayout captures the on-disk geometry a segment reader needs to turn
// a LogPosition into a file path and byte offset. It is immutable for the
// lifetime of one sender (timelines never change mid-stream, per
// spec.md's Non-goals).
type WALLayout struct {
	Timeline    uint32
	SegSize     uint32
	PageSize    uint32
	LogFileSize uint32
}

// Validate checks the invariants spec.md §6 requires of the geometry.
func (l WALLayout) Validate() error {
	if l.SegSize == 0 || l.SegSize&(l.SegSize-1) != 0 {
		return fmt.Errorf("walstream: SegSize %d is not a power of two", l.SegSize)
	}
	if l.PageSize == 0 {
		return fmt.Errorf("walstream: PageSize must be non-zero")
	}
	if l.SegSize%l.PageSize != 0 {
		return fmt.Errorf("walstream: SegSize %d not a multiple of PageSize %d", l.SegSize, l.PageSize)
	}
	return nil
}

// segmentIndex derives (logid, segment index within that logid, offset
// within segment) from a LogPosition, per spec.md §3 "Segment file
// identity".
func (l WALLayout) segmentIndex(pos LogPosition) (logID, segIndex, within uint32) {
	segIndex = pos.RecOff / l.SegSize
	within = pos.RecOff % l.SegSize
	return pos.LogID, segIndex, within
}

// segmentName renders the canonical "<timeline><logid><segment>" segment
// file name (spec.md §6), 8 hex digits per component, matching
// PostgreSQL's XLogFileName.
func (l WALLayout) segmentName(logID, segIndex uint32) string {
	return fmt.Sprintf("%08X%08X%08X", l.Timeline, logID, segIndex)
}

// SegmentGoneError reports that the requested segment has already been
// recycled by the (external) retention/checkpointer subsystem. Per
// spec.md §4.A this can surface either because the file is missing or
// because the post-read watermark check found recycling happened during
// the read.
type SegmentGoneError struct {
	SegmentName string
}

func (e *SegmentGoneError) Error() string {
	return fmt.Sprintf("requested WAL segment %s has already been removed", e.SegmentName)
}

// FlushTracker is the external collaborator that publishes the
// globally-visible flush pointer and the last-removed-segment watermark
// (spec.md §3, §4.A). The real implementation lives in the WAL
// writer/flusher and the checkpointer, both explicitly out of scope per
// spec.md §1; SharedFlushState and InMemoryFlushState (flush_state.go)
// are minimal stand-ins that let tests and the demo daemon exercise the
// sender against something concrete.
type FlushTracker interface {
	// FlushRecPtr returns the highest position known to be durable.
	FlushRecPtr() LogPosition
	// LastRemovedSegment returns the logid/segment index of the most
	// recently recycled segment, used by the segment reader's post-read
	// watermark check.
	LastRemovedSegment() (logID, segIndex uint32)
}
