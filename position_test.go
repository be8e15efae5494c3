package walstream

import "testing"

func TestLogPositionOrdering(t *testing.T) {
	tests := []struct {
		name     string
		a, b     LogPosition
		wantLess bool
	}{
		{"equal", LogPosition{0, 0x1000}, LogPosition{0, 0x1000}, false},
		{"same logid, lower recoff", LogPosition{0, 0x1000}, LogPosition{0, 0x2000}, true},
		{"lower logid wins regardless of recoff", LogPosition{0, 0xFFFFFFFF}, LogPosition{1, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.wantLess {
				t.Errorf("Less() = %v, want %v", got, tt.wantLess)
			}
		})
	}
}

func TestLogPositionAdvanceAndSub(t *testing.T) {
	start := LogPosition{LogID: 0, RecOff: 0x1000}
	end := start.Advance(0x800)
	if end != (LogPosition{LogID: 0, RecOff: 0x1800}) {
		t.Fatalf("Advance = %v", end)
	}
	if got := start.Sub(end); got != 0x800 {
		t.Errorf("Sub = %#x, want 0x800", got)
	}
}

func TestLogPositionSubAcrossLogIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for cross-logid Sub")
		}
	}()
	LogPosition{LogID: 0, RecOff: 0}.Sub(LogPosition{LogID: 1, RecOff: 0})
}

func TestPositionStringRoundTrip(t *testing.T) {
	tests := []LogPosition{
		{0, 0},
		{0, 0x1000},
		{0xAB, 0xCD1234},
	}
	for _, p := range tests {
		s := p.String()
		got, err := ParsePosition(s)
		if err != nil {
			t.Fatalf("ParsePosition(%q): %v", s, err)
		}
		if got != p {
			t.Errorf("round trip %v -> %q -> %v", p, s, got)
		}
	}
}

func TestParsePositionRejectsGarbage(t *testing.T) {
	if _, err := ParsePosition("not-a-position"); err == nil {
		t.Error("expected error for malformed position")
	}
}
