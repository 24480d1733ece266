// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "fmt"

// PacketHeader is the 40-byte legacy scan-packet header that precedes a
// scan's profile and centroid sections (packet types 0-5 and 14-17).
type PacketHeader struct {
	Unknown1           uint32
	ProfileSize        uint32
	PeakListSize       uint32
	Layout             uint32
	DescriptorListSize uint32
	UnknownStreamSize  uint32
	TripletStreamSize  uint32
	Unknown2           uint32
	LowMZ              float32
	HighMZ             float32
}

// packetHeaderSize is PacketHeader's on-disk size in bytes.
const packetHeaderSize = 40

func parsePacketHeader(reader *Reader) (*PacketHeader, error) {
	h := &PacketHeader{}
	var err error
	if h.Unknown1, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.ProfileSize, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.PeakListSize, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.Layout, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.DescriptorListSize, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.UnknownStreamSize, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.TripletStreamSize, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.Unknown2, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.LowMZ, err = reader.ReadF32(); err != nil {
		return nil, err
	}
	if h.HighMZ, err = reader.ReadF32(); err != nil {
		return nil, err
	}
	return h, nil
}

// MZRange is a half-open-at-neither-end m/z window used by batch-XIC
// extraction to sum several target ranges in a single pass over one
// scan's centroid data.
type MZRange struct {
	Low  float64
	High float64
}

// boundsCheckPacket validates that a scan's packet data lies within the
// file image, the way scan_data.rs checks entry.data_size (when known) or
// falls back to comparing the absolute offset against the file length.
func boundsCheckPacket(data []byte, absOffset uint64, dataSize uint32) error {
	if dataSize > 0 {
		need := absOffset + uint64(dataSize)
		if need > uint64(len(data)) {
			return &DecodeError{Offset: int(absOffset), Reason: fmt.Sprintf("packet extends past end of file (need %d, have %d)", need, len(data))}
		}
		return nil
	}
	if absOffset > uint64(len(data)) {
		return &DecodeError{Offset: int(absOffset), Reason: "packet offset past end of file"}
	}
	return nil
}

// packetTypeID extracts the low word of a ScanIndexEntry's PacketType,
// which selects the packet decoder: 18-21 is FT/LT, 0-5 and 14-17 is the
// legacy centroid/profile layout, anything else decodes as empty.
func packetTypeID(entry *ScanIndexEntry) uint16 {
	return uint16(entry.PacketType & 0xFFFF)
}

func isFTLTPacketType(id uint16) bool {
	return id >= 18 && id <= 21
}

func isLegacyPacketType(id uint16) bool {
	return id <= 5 || (id >= 14 && id <= 17)
}

// decodeCentroidsOnly decodes just a scan's centroid arrays, skipping
// profile data entirely. Used by XIC extraction, which never needs
// profile data and would otherwise pay for decoding it. A bounds-check
// failure yields an empty result rather than an error: XIC extraction
// isolates a bad scan as a zero contribution instead of aborting the
// whole chromatogram, matching decode_centroids_only in scan_data.rs.
// Only decodeScan/decodeScanLegacy/decodeScanFTLT hard-error on this
// check.
func decodeCentroidsOnly(data []byte, dataAddr uint64, entry *ScanIndexEntry) ([]float64, []float64, error) {
	absOffset := dataAddr + entry.Offset
	if err := boundsCheckPacket(data, absOffset, entry.DataSize); err != nil {
		return nil, nil, nil
	}
	if entry.NumberPackets == 0 && entry.DataSize == 0 {
		return nil, nil, nil
	}
	id := packetTypeID(entry)
	switch {
	case isFTLTPacketType(id):
		return decodeFTLTCentroidsOnly(data, absOffset)
	case isLegacyPacketType(id):
		return decodeLegacyCentroidsOnly(data, absOffset)
	default:
		return nil, nil, nil
	}
}

func decodeLegacyCentroidsOnly(data []byte, absOffset uint64) ([]float64, []float64, error) {
	reader := ReaderAt(data, absOffset)
	header, err := parsePacketHeader(reader)
	if err != nil {
		return nil, nil, err
	}
	if err := reader.Skip(int(header.ProfileSize) * 4); err != nil {
		return nil, nil, err
	}
	return decodeCentroid(reader)
}

// sumCentroidsInMZRange sums the intensity of every centroid peak in a
// scan's packet data that falls within [mzLow, mzHigh], without
// allocating the full centroid arrays. Used by single-target XIC
// extraction. A bounds-check failure yields a zero sum rather than an
// error, per the same per-scan isolation policy as decodeCentroidsOnly.
func sumCentroidsInMZRange(data []byte, dataAddr uint64, entry *ScanIndexEntry, mzLow, mzHigh float64) (float64, error) {
	absOffset := dataAddr + entry.Offset
	if err := boundsCheckPacket(data, absOffset, entry.DataSize); err != nil {
		return 0, nil
	}
	if entry.NumberPackets == 0 && entry.DataSize == 0 {
		return 0, nil
	}
	id := packetTypeID(entry)
	switch {
	case isFTLTPacketType(id):
		return sumCentroidsInRangeFTLT(data, absOffset, mzLow, mzHigh)
	case isLegacyPacketType(id):
		return sumLegacyCentroidsInRange(data, absOffset, mzLow, mzHigh)
	default:
		return 0, nil
	}
}

func sumLegacyCentroidsInRange(data []byte, absOffset uint64, mzLow, mzHigh float64) (float64, error) {
	reader := ReaderAt(data, absOffset)
	header, err := parsePacketHeader(reader)
	if err != nil {
		return 0, err
	}
	if err := reader.Skip(int(header.ProfileSize) * 4); err != nil {
		return 0, err
	}
	return sumCentroidsInRange(reader, mzLow, mzHigh)
}

// sumCentroidsInRangeFTLT has no direct equivalent in
// scan_data_ftlt.rs (that file exposes no range-summing helpers); the
// original's scan_data.rs dispatch falls through to decoding the full
// centroid arrays and summing over them for FT/LT packets. This mirrors
// that: decode once via decodeFTLTCentroidsOnly, then sum in Go. FT/LT
// centroids are not assumed globally m/z-sorted across segments, so
// unlike the legacy path this scans every peak rather than breaking
// early.
func sumCentroidsInRangeFTLT(data []byte, absOffset uint64, mzLow, mzHigh float64) (float64, error) {
	mz, intensity, err := decodeFTLTCentroidsOnly(data, absOffset)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, v := range mz {
		if v >= mzLow && v <= mzHigh {
			sum += intensity[i]
		}
	}
	return sum, nil
}

// sumCentroidsMultiTarget sums each of ranges' intensity in a single
// pass over one scan's centroid data, for batch-XIC extraction. out must
// be pre-sized to len(ranges); it is not zeroed by this call, so callers
// summing across multiple scans can accumulate directly into it. A
// bounds-check failure leaves out untouched (a zero contribution) rather
// than returning an error, per the same per-scan isolation policy as
// sumCentroidsInMZRange.
func sumCentroidsMultiTarget(data []byte, dataAddr uint64, entry *ScanIndexEntry, ranges []MZRange, out []float64) error {
	absOffset := dataAddr + entry.Offset
	if err := boundsCheckPacket(data, absOffset, entry.DataSize); err != nil {
		return nil
	}
	if entry.NumberPackets == 0 && entry.DataSize == 0 {
		return nil
	}
	id := packetTypeID(entry)
	switch {
	case isFTLTPacketType(id):
		return sumCentroidsMultiTargetFTLT(data, absOffset, ranges, out)
	case isLegacyPacketType(id):
		return sumLegacyCentroidsMultiTarget(data, absOffset, ranges, out)
	default:
		return nil
	}
}

func sumLegacyCentroidsMultiTarget(data []byte, absOffset uint64, ranges []MZRange, out []float64) error {
	reader := ReaderAt(data, absOffset)
	header, err := parsePacketHeader(reader)
	if err != nil {
		return err
	}
	if err := reader.Skip(int(header.ProfileSize) * 4); err != nil {
		return err
	}
	return sumCentroidsMultiTarget(reader, ranges, out)
}

func sumCentroidsMultiTargetFTLT(data []byte, absOffset uint64, ranges []MZRange, out []float64) error {
	mz, intensity, err := decodeFTLTCentroidsOnly(data, absOffset)
	if err != nil {
		return err
	}
	for i, v := range mz {
		for r := range ranges {
			if v >= ranges[r].Low && v <= ranges[r].High {
				out[r] += intensity[i]
			}
		}
	}
	return nil
}

// decodeScan fully decodes a scan's packet data into a Scan: centroid and
// (for profile-mode packets) profile arrays, plus the summary fields
// already cached on the ScanIndexEntry. MsLevel is set to MsLevel1,
// Polarity to PolarityUnknown, and Precursor and FilterString are left
// empty here; the file-level orchestrator (enrichScan) overlays those,
// since packet decoding alone cannot recover them.
func decodeScan(data []byte, dataAddr uint64, entry *ScanIndexEntry, scanNumber uint32, conversionParams []float64) (*Scan, error) {
	absOffset := dataAddr + entry.Offset
	if err := boundsCheckPacket(data, absOffset, entry.DataSize); err != nil {
		return nil, &DecodeError{Offset: int(absOffset), Reason: err.Error()}
	}

	base := &Scan{
		ScanNumber:        scanNumber,
		RT:                entry.RT,
		MsLevel:           MsLevel1,
		Polarity:          PolarityUnknown,
		TIC:               entry.TIC,
		BasePeakMZ:        entry.BasePeakMZ,
		BasePeakIntensity: entry.BasePeakIntensity,
	}

	if entry.NumberPackets == 0 && entry.DataSize == 0 {
		return base, nil
	}

	id := packetTypeID(entry)
	switch {
	case isFTLTPacketType(id):
		return decodeScanFTLT(data, absOffset, id, base, conversionParams)
	case isLegacyPacketType(id):
		return decodeScanLegacy(data, absOffset, base)
	default:
		return base, nil
	}
}

func decodeScanFTLT(data []byte, absOffset uint64, id uint16, base *Scan, conversionParams []float64) (*Scan, error) {
	result, err := decodeFTLTScan(data, absOffset, id, conversionParams)
	if err != nil {
		return nil, &DecodeError{Offset: int(absOffset), Reason: err.Error()}
	}
	base.CentroidMZ = result.CentroidMZ
	base.CentroidIntensity = result.CentroidIntensity
	base.ProfileMZ = result.ProfileMZ
	base.ProfileIntensity = result.ProfileIntensity
	return base, nil
}

// decodeScanLegacy decodes the legacy profile-then-centroid layout.
// Profile and centroid decode failures are swallowed (not propagated),
// matching scan_data.rs's decode_scan_legacy: a corrupt profile or peak
// list degrades the scan to empty arrays for that section rather than
// failing the whole scan, since the reader is repositioned past each
// section's declared byte length regardless of decode outcome.
func decodeScanLegacy(data []byte, absOffset uint64, base *Scan) (*Scan, error) {
	reader := ReaderAt(data, absOffset)
	header, err := parsePacketHeader(reader)
	if err != nil {
		return nil, &DecodeError{Offset: int(absOffset), Reason: err.Error()}
	}

	profileStart := reader.Position()
	profileBytes := int64(header.ProfileSize) * 4
	if header.ProfileSize > 0 {
		if mz, in, perr := decodeProfile(reader, header.Layout); perr == nil {
			base.ProfileMZ, base.ProfileIntensity = mz, in
		}
	}
	reader.SetPosition(profileStart + profileBytes)

	peakStart := reader.Position()
	peakBytes := int64(header.PeakListSize) * 4
	if header.PeakListSize > 0 {
		if mz, in, cerr := decodeCentroid(reader); cerr == nil {
			base.CentroidMZ, base.CentroidIntensity = mz, in
		}
	}
	reader.SetPosition(peakStart + peakBytes)

	return base, nil
}
