package walstream

import "sync/atomic"

// SenderMetrics tracks per-sender counters, the Go analogue of the
// teacher's mmap-backed metrics state (metrics_mmap.go) minus the mmap
// itself: these are process-local (one sender == one goroutine, never
// shared across processes), so a plain struct of atomics is enough —
// nothing outside this Sender's own goroutines ever needs to observe
// them through shared memory.
type SenderMetrics struct {
	FramesSent      atomic.Uint64
	BytesSent       atomic.Uint64
	CompressedBytes atomic.Uint64
	CaughtUpWaits   atomic.Uint64
	ErrorCount      atomic.Uint64
}

// Snapshot returns a point-in-time copy of every counter.
func (m *SenderMetrics) Snapshot() SenderMetricsSnapshot {
	return SenderMetricsSnapshot{
		FramesSent:      m.FramesSent.Load(),
		BytesSent:       m.BytesSent.Load(),
		CompressedBytes: m.CompressedBytes.Load(),
		CaughtUpWaits:   m.CaughtUpWaits.Load(),
		ErrorCount:      m.ErrorCount.Load(),
	}
}

// SenderMetricsSnapshot is a plain-value copy of SenderMetrics, safe to
// log or serialize.
type SenderMetricsSnapshot struct {
	FramesSent      uint64
	BytesSent       uint64
	CompressedBytes uint64
	CaughtUpWaits   uint64
	ErrorCount      uint64
}
