package walstream

import (
	"bytes"
	"testing"
)

func TestWalDataHeaderRoundTrip(t *testing.T) {
	hdr := WalDataHeader{
		DataStart: LogPosition{LogID: 1, RecOff: 0x2000},
		WalEnd:    LogPosition{LogID: 1, RecOff: 0x3000},
		SendTime:  123456789,
	}
	buf := make([]byte, WalDataHeaderSize)
	hdr.Encode(buf)

	got, err := DecodeWalDataHeader(buf)
	if err != nil {
		t.Fatalf("DecodeWalDataHeader: %v", err)
	}
	if got != hdr {
		t.Errorf("round trip = %+v, want %+v", got, hdr)
	}
}

func TestDecodeWalDataHeaderShortBuffer(t *testing.T) {
	if _, err := DecodeWalDataHeader(make([]byte, 10)); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestFrameWriterCopyData(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	payload := []byte("hello wal bytes")
	if err := fw.WriteCopyData(payload); err != nil {
		t.Fatalf("WriteCopyData: %v", err)
	}
	if err := fw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.Bytes()
	if out[0] != msgCopyData {
		t.Fatalf("type byte = %q, want 'd'", out[0])
	}
	length := int(out[1])<<24 | int(out[2])<<16 | int(out[3])<<8 | int(out[4])
	if length != len(payload)+4 {
		t.Errorf("length field = %d, want %d", length, len(payload)+4)
	}
	if !bytes.Equal(out[5:], payload) {
		t.Errorf("payload = %q, want %q", out[5:], payload)
	}
}

func TestFrameReaderReadsQueryAndTerminate(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	fw.writeFrame(msgQuery, append([]byte("IDENTIFY_SYSTEM"), 0))
	fw.writeFrame(msgTerminate, nil)
	fw.Flush()

	fr := NewFrameReader(&buf)

	msgType, payload, err := fr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (query): %v", err)
	}
	if msgType != msgQuery {
		t.Fatalf("msgType = %q, want 'Q'", msgType)
	}
	if got := ParseQuery(payload); got != "IDENTIFY_SYSTEM" {
		t.Errorf("ParseQuery = %q", got)
	}

	msgType, _, err = fr.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (terminate): %v", err)
	}
	if msgType != msgTerminate {
		t.Fatalf("msgType = %q, want 'X'", msgType)
	}
}

func TestFrameReaderRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	fw.writeFrame('Z', nil) // ReadyForQuery is never a valid *incoming* type
	fw.Flush()

	fr := NewFrameReader(&buf)
	if _, _, err := fr.ReadMessage(); err == nil {
		t.Error("expected protocol violation for unexpected incoming type")
	}
}

func TestRowDescriptionAndDataRow(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	if err := fw.WriteRowDescription([]ResultColumn{{Name: "systemid"}, {Name: "timeline"}}); err != nil {
		t.Fatalf("WriteRowDescription: %v", err)
	}
	if err := fw.WriteDataRow([][]byte{[]byte("42"), nil}); err != nil {
		t.Fatalf("WriteDataRow: %v", err)
	}
	if err := fw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected bytes written")
	}
}
