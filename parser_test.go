package walstream

import (
	"errors"
	"testing"
)

func TestParseIdentifySystem(t *testing.T) {
	cmd, err := Parse("IDENTIFY_SYSTEM")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := cmd.(IdentifySystemCmd); !ok {
		t.Fatalf("got %T, want IdentifySystemCmd", cmd)
	}
}

func TestParseStartReplication(t *testing.T) {
	cmd, err := Parse("START_REPLICATION 0/1000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sr, ok := cmd.(StartReplicationCmd)
	if !ok {
		t.Fatalf("got %T, want StartReplicationCmd", cmd)
	}
	if sr.StartPoint != (LogPosition{LogID: 0, RecOff: 0x1000}) {
		t.Errorf("StartPoint = %v", sr.StartPoint)
	}
	if sr.Compress {
		t.Error("Compress should default to false")
	}
}

func TestParseStartReplicationWithCompress(t *testing.T) {
	cmd, err := Parse("START_REPLICATION 0/1000 COMPRESS")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sr := cmd.(StartReplicationCmd)
	if !sr.Compress {
		t.Error("expected Compress = true")
	}
}

func TestParseBaseBackup(t *testing.T) {
	cmd, err := Parse("BASE_BACKUP LABEL 'nightly' PROGRESS FAST")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	bb, ok := cmd.(BaseBackupCmd)
	if !ok {
		t.Fatalf("got %T, want BaseBackupCmd", cmd)
	}
	if bb.Label != "nightly" || !bb.Progress || !bb.FastCheckpoint {
		t.Errorf("bb = %+v", bb)
	}
}

func TestParseUnknownCommandIsProtocolViolation(t *testing.T) {
	_, err := Parse("DROP TABLE wal")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("error = %v, want ErrProtocolViolation", err)
	}
}

func TestParseStartReplicationMissingPosition(t *testing.T) {
	if _, err := Parse("START_REPLICATION"); err == nil {
		t.Error("expected error for missing position")
	}
}
