package rawfile

import (
	"encoding/binary"
	"math"
	"testing"
)

func putF64(data []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(data[off:], math.Float64bits(v))
}

func putI32(data []byte, off int, v int32) { binary.LittleEndian.PutUint32(data[off:], uint32(v)) }

// writeLegacyEntry writes one 72-byte ScanIndexEntry (no 64-bit DataOffset,
// no CycleNumber) at data[start:start+72].
func writeLegacyEntry(data []byte, start int, dataOffset uint32, scanNumber int32, rt, tic float64) {
	putU32(data, start, dataOffset)
	putI32(data, start+4, 10)                  // trailerOffset
	putU32(data, start+8, 5|(2<<16))            // scanEvent=5, scanSegment=2
	putI32(data, start+12, scanNumber)
	putU32(data, start+16, 1)  // packetType
	putI32(data, start+20, 50) // numberPackets
	putF64(data, start+24, rt)
	putF64(data, start+32, tic)
	putF64(data, start+40, 500)   // basePeakIntensity
	putF64(data, start+48, 200.5) // basePeakMZ
	putF64(data, start+56, 100)   // lowMZ
	putF64(data, start+64, 1000)  // highMZ
}

func TestParseScanIndexLegacy32Bit(t *testing.T) {
	data := make([]byte, 3*72)
	writeLegacyEntry(data, 0, 1000, 1, 0.1, 1000.0)
	writeLegacyEntry(data, 72, 2000, 2, 0.2, 1100.0)
	writeLegacyEntry(data, 144, 3000, 3, 0.3, 1200.0)

	entries, err := parseScanIndex(data, 0, 60, 3)
	if err != nil {
		t.Fatalf("parseScanIndex() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].Offset != 1000 || entries[1].Offset != 2000 || entries[2].Offset != 3000 {
		t.Errorf("Offsets = %d, %d, %d", entries[0].Offset, entries[1].Offset, entries[2].Offset)
	}
	if entries[0].ScanEvent != 5 || entries[0].ScanSegment != 2 {
		t.Errorf("ScanEvent/ScanSegment = %d/%d, want 5/2", entries[0].ScanEvent, entries[0].ScanSegment)
	}
	if entries[1].ScanNumber != 2 {
		t.Errorf("ScanNumber = %d, want 2", entries[1].ScanNumber)
	}
	if entries[2].RT != 0.3 {
		t.Errorf("RT = %v, want 0.3", entries[2].RT)
	}
}

func TestParseScanIndex64BitWithCycleNumber(t *testing.T) {
	data := make([]byte, 88)
	putU32(data, 0, 999) // dataSize, since entrySize>=80
	putI32(data, 4, 20)  // trailerOffset
	putU32(data, 8, 7|(1<<16))
	putI32(data, 12, 42) // scanNumber
	putU32(data, 16, 2)  // packetType
	putI32(data, 20, 10) // numberPackets
	putF64(data, 24, 0.5)
	putF64(data, 32, 5000)
	putF64(data, 40, 800)
	putF64(data, 48, 300.25)
	putF64(data, 56, 150)
	putF64(data, 64, 900)
	putU64(data, 72, 123456) // DataOffset
	putI32(data, 80, 7)      // CycleNumber

	entries, err := parseScanIndex(data, 0, 65, 1)
	if err != nil {
		t.Fatalf("parseScanIndex() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Offset != 123456 {
		t.Errorf("Offset = %d, want 123456", e.Offset)
	}
	if e.DataSize != 999 {
		t.Errorf("DataSize = %d, want 999", e.DataSize)
	}
	if e.CycleNumber != 7 {
		t.Errorf("CycleNumber = %d, want 7", e.CycleNumber)
	}
	if e.ScanNumber != 42 {
		t.Errorf("ScanNumber = %d, want 42", e.ScanNumber)
	}
}

func TestDetectEntrySizeFallsBackTo72(t *testing.T) {
	data := make([]byte, 300)
	putF64(data, 24, 0.1)     // entry0 RT under either stride, valid
	putF64(data, 112, 9999.0) // entry1 RT under the documented 88-byte stride: out of range

	got := detectEntrySize(data, 0, 2, 65)
	if got != 72 {
		t.Errorf("detectEntrySize() = %d, want 72 (fallback)", got)
	}
}

func TestIsValidStrideRejectsOutOfRangeRT(t *testing.T) {
	data := make([]byte, 100)
	putF64(data, 24, 2000.0) // above the 1440-minute ceiling
	if isValidStride(data, 0, 1, 72) {
		t.Error("expected isValidStride to reject an out-of-range RT")
	}
}

func TestIsValidStrideRejectsNonMonotonicRT(t *testing.T) {
	data := make([]byte, 150)
	putF64(data, 24, 5.0)
	putF64(data, 96, 1.0) // entry1 RT at offset+72+24=96, decreasing
	if isValidStride(data, 0, 2, 72) {
		t.Error("expected isValidStride to reject non-monotonic RT")
	}
}
