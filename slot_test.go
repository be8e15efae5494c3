package walstream

import "testing"

func TestSlotTableAllocateAndRelease(t *testing.T) {
	table, err := NewSlotTable(2)
	if err != nil {
		t.Fatalf("NewSlotTable: %v", err)
	}
	defer table.Close()

	s1, err := table.Allocate(111)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if s1.PID() != 111 {
		t.Errorf("PID = %d, want 111", s1.PID())
	}

	_, err = table.Allocate(222)
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}

	if _, err := table.Allocate(333); err != ErrOutOfSlots {
		t.Fatalf("third Allocate err = %v, want ErrOutOfSlots", err)
	}

	table.Release(s1)
	if s1.PID() != 0 {
		t.Errorf("PID after Release = %d, want 0", s1.PID())
	}
	if _, err := table.Allocate(444); err != nil {
		t.Fatalf("Allocate after Release: %v", err)
	}
}

func TestSlotPublishAndSnapshot(t *testing.T) {
	table, err := NewSlotTable(1)
	if err != nil {
		t.Fatalf("NewSlotTable: %v", err)
	}
	defer table.Close()

	s, err := table.Allocate(1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	s.Publish(LogPosition{LogID: 0, RecOff: 0x1000})
	s.SetState(StateStreaming)

	pos, state := s.Snapshot()
	if pos != (LogPosition{LogID: 0, RecOff: 0x1000}) {
		t.Errorf("Snapshot position = %v", pos)
	}
	if state != StateStreaming {
		t.Errorf("Snapshot state = %v, want STREAMING", state)
	}
}

func TestSlotSetStateShortCircuitsWithoutChange(t *testing.T) {
	table, err := NewSlotTable(1)
	if err != nil {
		t.Fatalf("NewSlotTable: %v", err)
	}
	defer table.Close()

	s, _ := table.Allocate(1)
	s.SetState(StateCatchup)
	s.SetState(StateCatchup) // should be a no-op, not a crash or a lock re-entry issue
	if _, state := s.Snapshot(); state != StateCatchup {
		t.Errorf("state = %v, want CATCHUP", state)
	}
}

func TestSlotTableRows(t *testing.T) {
	table, err := NewSlotTable(3)
	if err != nil {
		t.Fatalf("NewSlotTable: %v", err)
	}
	defer table.Close()

	s, _ := table.Allocate(7)
	s.Publish(LogPosition{LogID: 0, RecOff: 0x500})
	s.SetState(StateBackup)

	rows := table.Rows()
	if len(rows) != 1 {
		t.Fatalf("len(Rows()) = %d, want 1", len(rows))
	}
	if rows[0].PID != 7 || rows[0].State != StateBackup {
		t.Errorf("row = %+v", rows[0])
	}
	if got := rows[0].String(); got != "pid=7 state=BACKUP sent=0/500" {
		t.Errorf("String() = %q", got)
	}
}

func TestSenderStateString(t *testing.T) {
	tests := map[SenderState]string{
		StateStartup:    "STARTUP",
		StateBackup:     "BACKUP",
		StateCatchup:    "CATCHUP",
		StateStreaming:  "STREAMING",
		SenderState(99): "UNKNOWN",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
