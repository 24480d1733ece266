package rawfile

import "testing"

func TestIsSupportedVersion(t *testing.T) {
	tests := []struct {
		version uint32
		want    bool
	}{
		{56, false},
		{57, true},
		{60, true},
		{66, true},
		{67, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := IsSupportedVersion(tt.version); got != tt.want {
			t.Errorf("IsSupportedVersion(%d) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestScanIndexEntrySize(t *testing.T) {
	tests := []struct {
		version uint32
		want    int
	}{
		{57, 72},
		{63, 72},
		{64, 80},
		{65, 88},
		{66, 88},
	}
	for _, tt := range tests {
		if got := ScanIndexEntrySize(tt.version); got != tt.want {
			t.Errorf("ScanIndexEntrySize(%d) = %d, want %d", tt.version, got, tt.want)
		}
	}
}

func TestUses64BitAddresses(t *testing.T) {
	if Uses64BitAddresses(63) {
		t.Error("v63 should not use 64-bit addresses")
	}
	if !Uses64BitAddresses(64) {
		t.Error("v64 should use 64-bit addresses")
	}
}

func TestScanEventPreambleSize(t *testing.T) {
	tests := []struct {
		version uint32
		want    int
	}{
		{50, 41},
		{57, 80},
		{62, 120},
		{63, 128},
		{64, 128},
		{65, 132},
		{66, 132},
	}
	for _, tt := range tests {
		if got := ScanEventPreambleSize(tt.version); got != tt.want {
			t.Errorf("ScanEventPreambleSize(%d) = %d, want %d", tt.version, got, tt.want)
		}
	}
}

func TestReactionSize(t *testing.T) {
	tests := []struct {
		version uint32
		want    int
	}{
		{30, 24},
		{31, 32},
		{64, 32},
		{65, 48},
		{66, 56},
	}
	for _, tt := range tests {
		if got := ReactionSize(tt.version); got != tt.want {
			t.Errorf("ReactionSize(%d) = %d, want %d", tt.version, got, tt.want)
		}
	}
}
