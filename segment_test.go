package walstream

import "testing"

func TestWALLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  WALLayout
		wantErr bool
	}{
		{"default-like", WALLayout{SegSize: 16 << 20, PageSize: 8 << 10}, false},
		{"segsize not power of two", WALLayout{SegSize: 3 << 20, PageSize: 8 << 10}, true},
		{"segsize not multiple of pagesize", WALLayout{SegSize: 16 << 20, PageSize: 7000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSegmentIndex(t *testing.T) {
	l := WALLayout{SegSize: 0x1000, PageSize: 0x100}
	logID, segIndex, within := l.segmentIndex(LogPosition{LogID: 2, RecOff: 0x2500})
	if logID != 2 || segIndex != 2 || within != 0x500 {
		t.Errorf("segmentIndex = (%d, %d, %d), want (2, 2, 0x500)", logID, segIndex, within)
	}
}

func TestSegmentName(t *testing.T) {
	l := WALLayout{Timeline: 1}
	got := l.segmentName(0, 5)
	want := "0000000100000000" + "00000005"
	if got != want {
		t.Errorf("segmentName = %q, want %q", got, want)
	}
}

func TestSegmentGoneErrorMessage(t *testing.T) {
	err := &SegmentGoneError{SegmentName: "000000010000000000000005"}
	want := "requested WAL segment 000000010000000000000005 has already been removed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
