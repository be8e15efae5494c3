package walstream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Message type bytes for the wire subset spec.md §4.F names. Outgoing:
// row description, data row, command complete, ready-for-query,
// copy-both response, copy-data. Incoming: simple query, terminate.
const (
	msgRowDescription    byte = 'T'
	msgDataRow           byte = 'D'
	msgCommandComplete   byte = 'C'
	msgReadyForQuery     byte = 'Z'
	msgCopyBothResponse  byte = 'W'
	msgCopyData          byte = 'd'
	msgQuery             byte = 'Q'
	msgTerminate         byte = 'X'
	msgCopyDataMarkerWAL byte = 'w'
)

// WalDataHeaderSize is the fixed on-wire size of WalDataHeader: two
// LogPositions (4+4 bytes each) plus an 8-byte timestamp.
const WalDataHeaderSize = 4 + 4 + 4 + 4 + 8

// WalDataHeader prefixes every streamed WAL payload, immediately after
// the 'w' marker byte (spec.md §4.F, §4.E). It is opaque to a standby
// that only cares about the bytes that follow it, but its shape is
// fixed on the wire.
type WalDataHeader struct {
	DataStart LogPosition
	WalEnd    LogPosition
	SendTime  int64 // microseconds since epoch
}

// Encode writes the header in its 24-byte big-endian wire form into dst,
// which must be at least WalDataHeaderSize long.
func (h WalDataHeader) Encode(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], h.DataStart.LogID)
	binary.BigEndian.PutUint32(dst[4:8], h.DataStart.RecOff)
	binary.BigEndian.PutUint32(dst[8:12], h.WalEnd.LogID)
	binary.BigEndian.PutUint32(dst[12:16], h.WalEnd.RecOff)
	binary.BigEndian.PutUint64(dst[16:24], uint64(h.SendTime))
}

// DecodeWalDataHeader parses a 24-byte big-endian header from src.
func DecodeWalDataHeader(src []byte) (WalDataHeader, error) {
	if len(src) < WalDataHeaderSize {
		return WalDataHeader{}, fmt.Errorf("walstream: short WalDataHeader (%d bytes)", len(src))
	}
	return WalDataHeader{
		DataStart: LogPosition{
			LogID:  binary.BigEndian.Uint32(src[0:4]),
			RecOff: binary.BigEndian.Uint32(src[4:8]),
		},
		WalEnd: LogPosition{
			LogID:  binary.BigEndian.Uint32(src[8:12]),
			RecOff: binary.BigEndian.Uint32(src[12:16]),
		},
		SendTime: int64(binary.BigEndian.Uint64(src[16:24])),
	}, nil
}

// FrameWriter serializes the outgoing half of the wire subset: every
// message is type byte + 4-byte big-endian length (inclusive of the
// length field itself, exclusive of the type byte) + payload, exactly
// as spec.md §4.F specifies.
type FrameWriter struct {
	w *bufio.Writer
}

// NewFrameWriter wraps w for framed writes. w is buffered internally so
// a full CopyData frame reaches the wire as one write where possible.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: bufio.NewWriter(w)}
}

func (f *FrameWriter) writeFrame(msgType byte, payload []byte) error {
	var hdr [5]byte
	hdr[0] = msgType
	binary.BigEndian.PutUint32(hdr[1:5], uint32(len(payload)+4))
	if _, err := f.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := f.w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// WriteCopyBothResponse sends the 'W' message that turns the connection
// into a bidirectional copy stream (spec.md §4.D, START_REPLICATION).
// The format byte is 0 (textual/binary split doesn't apply to raw WAL
// bytes) and there are zero per-column format codes, matching what a
// replication connection's CopyBothResponse actually carries.
func (f *FrameWriter) WriteCopyBothResponse() error {
	payload := []byte{0, 0, 0}
	return f.writeFrame(msgCopyBothResponse, payload)
}

// WriteCopyData sends one CopyData ('d') frame wrapping payload
// verbatim — payload is expected to already be the 'w' marker plus
// header plus WAL bytes (or, with compression requested, the
// zstd-compressed form of that same triple; see compressFrame and
// Sender.sendBatch).
func (f *FrameWriter) WriteCopyData(payload []byte) error {
	return f.writeFrame(msgCopyData, payload)
}

// WriteCommandComplete sends a 'C' message with the given command tag
// (e.g. "COPY 0", spec.md §4.E's shutdown signal).
func (f *FrameWriter) WriteCommandComplete(tag string) error {
	payload := make([]byte, 0, len(tag)+1)
	payload = append(payload, tag...)
	payload = append(payload, 0)
	return f.writeFrame(msgCommandComplete, payload)
}

// WriteReadyForQuery sends a 'Z' message with the given transaction
// status byte ('I' for idle, the only status this server ever reports).
func (f *FrameWriter) WriteReadyForQuery(status byte) error {
	return f.writeFrame(msgReadyForQuery, []byte{status})
}

// ResultColumn describes one column of a RowDescription/DataRow pair,
// as used by IDENTIFY_SYSTEM's single-row result set (spec.md §4.D).
type ResultColumn struct {
	Name string
}

// WriteRowDescription sends a 'T' message naming the result columns of
// the single-row reply IDENTIFY_SYSTEM produces.
func (f *FrameWriter) WriteRowDescription(cols []ResultColumn) error {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(len(cols)))
	for _, c := range cols {
		payload = append(payload, c.Name...)
		payload = append(payload, 0)
		// table oid, column attnum, type oid, type size, type modifier,
		// format code — all zero/text, this server never claims a real
		// catalog type for these synthetic rows.
		var rest [18]byte
		payload = append(payload, rest[:]...)
	}
	return f.writeFrame(msgRowDescription, payload)
}

// WriteDataRow sends a 'D' message carrying one row of text-format
// column values (nil entries are encoded as SQL NULL, -1 length).
func (f *FrameWriter) WriteDataRow(values [][]byte) error {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(len(values)))
	for _, v := range values {
		if v == nil {
			payload = binary.BigEndian.AppendUint32(payload, 0xFFFFFFFF)
			continue
		}
		payload = binary.BigEndian.AppendUint32(payload, uint32(len(v)))
		payload = append(payload, v...)
	}
	return f.writeFrame(msgDataRow, payload)
}

// Flush pushes any buffered bytes to the underlying writer. The
// streaming loop calls this once per batch, after the frame is fully
// written (spec.md §4.E: "Flush; on flush failure return false").
func (f *FrameWriter) Flush() error {
	return f.w.Flush()
}

// FrameReader parses the incoming half of the wire subset: a leading
// type byte, then a 4-byte big-endian length, then the payload (the
// length minus the 4 bytes of the length field itself).
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for framed reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadMessage reads one frontend message: its type byte, and its
// payload (length-prefixed, exclusive of the 4-byte length field
// itself). Incoming types this server understands are 'Q' (simple
// query) and 'X' (terminate); anything else is a protocol violation
// spec.md's Open-Questions decision resolves as fatal (§7).
func (f *FrameReader) ReadMessage() (msgType byte, payload []byte, err error) {
	msgType, err = f.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 4 {
		return 0, nil, fmt.Errorf("%w: message length %d below minimum", ErrProtocolViolation, length)
	}
	payload = make([]byte, length-4)
	if len(payload) > 0 {
		if _, err := io.ReadFull(f.r, payload); err != nil {
			return 0, nil, err
		}
	}
	switch msgType {
	case msgQuery, msgTerminate:
		return msgType, payload, nil
	default:
		return 0, nil, fmt.Errorf("%w: unexpected message type %q", ErrProtocolViolation, msgType)
	}
}

// PeekByte returns the next unread byte without consuming it, for the
// streaming loop's non-blocking "did the peer send anything" check
// (spec.md §4.E step 5). Callers arrange the non-blocking part by
// giving the underlying connection a short read deadline before
// calling this.
func (f *FrameReader) PeekByte() (byte, error) {
	b, err := f.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ParseQuery extracts the NUL-terminated query string from a 'Q'
// message's payload.
func ParseQuery(payload []byte) string {
	for i, b := range payload {
		if b == 0 {
			return string(payload[:i])
		}
	}
	return string(payload)
}
