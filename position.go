package walstream

import "fmt"

// LogPosition is a 64-bit monotonically-increasing byte offset into a
// logical WAL stream, represented as the pair PostgreSQL's wire format
// uses: a logical log file id and an offset that resets at each log file
// boundary. Two positions are equal iff both fields are equal; ordering
// compares LogID first, then RecOff.
type LogPosition struct {
	LogID  uint32
	RecOff uint32
}

// ZeroPosition is the position at the very start of the WAL stream.
var ZeroPosition = LogPosition{}

// Less reports whether p sorts strictly before other.
func (p LogPosition) Less(other LogPosition) bool {
	if p.LogID != other.LogID {
		return p.LogID < other.LogID
	}
	return p.RecOff < other.RecOff
}

// LessEq reports whether p sorts at or before other.
func (p LogPosition) LessEq(other LogPosition) bool {
	return p == other || p.Less(other)
}

// Advance returns p moved forward by n bytes within the current LogID.
// Callers are responsible for handling LogID boundary crossings (see
// sendBatch in sender.go); Advance itself never rolls over RecOff.
func (p LogPosition) Advance(n uint32) LogPosition {
	p.RecOff += n
	return p
}

// Sub returns the number of bytes between p and other, which must share
// the same LogID and satisfy other >= p.
func (p LogPosition) Sub(other LogPosition) uint32 {
	if p.LogID != other.LogID {
		panic("walstream: Sub across logid boundary")
	}
	return other.RecOff - p.RecOff
}

// String renders the position in PostgreSQL's canonical "logid/recoff"
// hexadecimal form, as used by pg_stat_get_wal_senders and the
// START_REPLICATION wire syntax.
func (p LogPosition) String() string {
	return fmt.Sprintf("%X/%X", p.LogID, p.RecOff)
}

// ParsePosition parses the "logid/recoff" hexadecimal form produced by
// String. It is the inverse used by the replication command scanner when
// decoding a START_REPLICATION argument.
func ParsePosition(s string) (LogPosition, error) {
	var logID, recOff uint32
	n, err := fmt.Sscanf(s, "%X/%X", &logID, &recOff)
	if err != nil || n != 2 {
		return LogPosition{}, fmt.Errorf("walstream: invalid log position %q", s)
	}
	return LogPosition{LogID: logID, RecOff: recOff}, nil
}
