// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"math"
)

// ScanIndexEntry is one fixed-size record of the ScanIndex array: the
// location of a scan's packet data, its trailer offset, and a handful of
// summary values (RT, TIC, base peak) cached so chromatogram queries
// don't need to decode every scan's packet.
type ScanIndexEntry struct {
	Offset        uint64
	TrailerOffset int32
	ScanEvent     uint16
	ScanSegment   uint16
	ScanNumber    int32
	PacketType    uint32
	NumberPackets int32
	DataSize      uint32
	RT            float64
	TIC           float64
	BasePeakIntensity float64
	BasePeakMZ    float64
	LowMZ         float64
	HighMZ        float64
	CycleNumber   int32
}

// detectEntrySize picks the on-disk stride of ScanIndex records. The
// documented per-version size (rawversion.go's ScanIndexEntrySize) is tried
// first; if the first few entries don't validate under that stride,
// entries are assumed to be the legacy 72-byte layout, which some v66
// files use despite the format documenting 88 bytes for that version.
func detectEntrySize(data []byte, offset uint64, nScans uint32, version uint32) int {
	documented := ScanIndexEntrySize(version)
	if isValidStride(data, offset, nScans, documented) {
		return documented
	}
	if documented != 72 {
		return 72
	}
	return documented
}

// isValidStride checks that the RT field (at entry+24) of the first
// min(nScans, 5) entries forms a plausible, non-decreasing retention-time
// sequence within (-0.1, 1440.0] minutes.
func isValidStride(data []byte, offset uint64, nScans uint32, stride int) bool {
	count := int(nScans)
	if count > 5 {
		count = 5
	}
	if count == 0 {
		return true
	}

	prevRT := -1.0
	for i := 0; i < count; i++ {
		rtOff := int(offset) + i*stride + 24
		if rtOff < 0 || rtOff+8 > len(data) {
			return false
		}
		rt := math.Float64frombits(binary.LittleEndian.Uint64(data[rtOff : rtOff+8]))
		if rt <= -0.1 || rt > 1440.0 {
			return false
		}
		if rt < prevRT {
			return false
		}
		prevRT = rt
	}
	return true
}

// parseScanIndex reads nScans consecutive ScanIndexEntry records starting
// at offset. The first 4 bytes of each record hold either a 32-bit
// DataOffset (entrySize < 80) or a DataSize (entrySize >= 80, in which
// case the real 64-bit DataOffset follows at byte 72 of the record). The
// cursor is forcibly resynced to entryStart+entrySize after each record,
// since defensive layouts like this one tolerate tail fields (CycleNumber
// plus its padding) the reader doesn't otherwise need to consume exactly.
func parseScanIndex(data []byte, offset uint64, version uint32, nScans uint32) ([]ScanIndexEntry, error) {
	entrySize := detectEntrySize(data, offset, nScans, version)
	has64BitOffset := entrySize >= 80

	entries := make([]ScanIndexEntry, 0, nScans)
	cur := offset

	for i := uint32(0); i < nScans; i++ {
		entryStart := cur
		r := ReaderAt(data, entryStart)

		field0, err := r.ReadU32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		trailerOffset, err := r.ReadI32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		scanTypeIndex, err := r.ReadU32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		scanNumber, err := r.ReadI32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		packetType, err := r.ReadU32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		numberPackets, err := r.ReadI32()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		rt, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		tic, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		basePeakIntensity, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		basePeakMZ, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		lowMZ, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}
		highMZ, err := r.ReadF64()
		if err != nil {
			return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
		}

		var dataOffset uint64
		var dataSize uint32
		var cycleNumber int32

		if has64BitOffset {
			dataSize = field0
			v, err := r.ReadU64()
			if err != nil {
				return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
			}
			dataOffset = v

			if entrySize >= 88 {
				cycleNumber, err = r.ReadI32()
				if err != nil {
					return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
				}
				if err := r.Skip(4); err != nil {
					return nil, wrapParseError("ScanIndex", int64(entryStart), &version, err)
				}
			}
		} else {
			dataOffset = uint64(field0)
		}

		entries = append(entries, ScanIndexEntry{
			Offset:            dataOffset,
			TrailerOffset:     trailerOffset,
			ScanEvent:         uint16(scanTypeIndex & 0xFFFF),
			ScanSegment:       uint16(scanTypeIndex >> 16),
			ScanNumber:        scanNumber,
			PacketType:        packetType,
			NumberPackets:     numberPackets,
			DataSize:          dataSize,
			RT:                rt,
			TIC:               tic,
			BasePeakIntensity: basePeakIntensity,
			BasePeakMZ:        basePeakMZ,
			LowMZ:             lowMZ,
			HighMZ:            highMZ,
			CycleNumber:       cycleNumber,
		})

		cur = entryStart + uint64(entrySize)
	}

	return entries, nil
}
