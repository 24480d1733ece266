// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FtLtPacketHeader is the 32-byte header (PacketHeaderStruct in the
// decompiled instrument firmware) fronting FT/LT packets (types 18-21),
// used by modern Orbitrap/Exploris/Q Exactive/LTQ instruments in place
// of the legacy 40-byte PacketHeader.
type FtLtPacketHeader struct {
	NumSegments               uint32
	NumProfileWords           uint32
	NumCentroidWords          uint32
	DefaultFeatureWord        uint32
	NumNonDefaultFeatureWords uint32
	NumExpansionWords         uint32
	NumNoiseInfoWords         uint32
	NumDebugInfoWords         uint32
}

// ftltPacketHeaderSize is FtLtPacketHeader's on-disk size in bytes.
const ftltPacketHeaderSize = 32

func parseFTLTPacketHeader(reader *Reader) (*FtLtPacketHeader, error) {
	h := &FtLtPacketHeader{}
	var err error
	if h.NumSegments, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumProfileWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumCentroidWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.DefaultFeatureWord, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumNonDefaultFeatureWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumExpansionWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumNoiseInfoWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	if h.NumDebugInfoWords, err = reader.ReadU32(); err != nil {
		return nil, err
	}
	return h, nil
}

// IsLTMode reports whether this is an LT (Linear Trap) packet; if clear,
// it's an FT (Fourier Transform) packet.
func (h *FtLtPacketHeader) IsLTMode() bool {
	return h.DefaultFeatureWord&0x40 != 0
}

// IsAccurateMass reports whether centroid masses are stored as f64
// rather than f32.
func (h *FtLtPacketHeader) IsAccurateMass() bool {
	return h.DefaultFeatureWord&0x10000 != 0
}

// BytesPerCentroidPeak returns 12 (f64 mass + f32 intensity) for
// accurate-mass packets, 8 (f32 mass + f32 intensity) otherwise.
func (h *FtLtPacketHeader) BytesPerCentroidPeak() int {
	if h.IsAccurateMass() {
		return 12
	}
	return 8
}

// FtLtScanResult is the decoded centroid and (if present) profile arrays
// from one FT/LT scan packet.
type FtLtScanResult struct {
	CentroidMZ        []float64
	CentroidIntensity []float64
	ProfileMZ         []float64
	ProfileIntensity  []float64
}

// decodeFTLTScan decodes a complete FT/LT scan packet at absOffset.
// packetTypeID selects whether the profile section (types 19 and 21
// only) is decoded; conversionParams comes from the scan's ScanEvent and
// is needed for FT frequency-to-m/z conversion of profile abscissas.
func decodeFTLTScan(data []byte, absOffset uint64, packetTypeID uint16, conversionParams []float64) (*FtLtScanResult, error) {
	reader := ReaderAt(data, absOffset)
	header, err := parseFTLTPacketHeader(reader)
	if err != nil {
		return nil, err
	}

	if err := reader.Skip(int(header.NumSegments) * 8); err != nil {
		return nil, err
	}

	profileStart := reader.Position()
	profileBytes := int64(header.NumProfileWords) * 4
	var profileMZ, profileIntensity []float64
	if (packetTypeID == 19 || packetTypeID == 21) && header.NumProfileWords > 0 {
		isFT := !header.IsLTMode()
		if mz, in, perr := decodeFTLTProfile(reader, header, conversionParams, isFT); perr == nil {
			profileMZ, profileIntensity = mz, in
		}
	}
	reader.SetPosition(profileStart + profileBytes)

	centroidStart := reader.Position()
	centroidBytes := int64(header.NumCentroidWords) * 4
	var centroidMZ, centroidIntensity []float64
	if header.NumCentroidWords > 0 {
		if mz, in, cerr := decodeFTLTCentroids(reader, header); cerr == nil {
			centroidMZ, centroidIntensity = mz, in
		}
	}
	reader.SetPosition(centroidStart + centroidBytes)

	// Feature/expansion/noise/debug sections follow but are not needed
	// for m/z + intensity extraction, so decoding stops here.

	return &FtLtScanResult{
		CentroidMZ:        centroidMZ,
		CentroidIntensity: centroidIntensity,
		ProfileMZ:         profileMZ,
		ProfileIntensity:  profileIntensity,
	}, nil
}

// decodeFTLTCentroids decodes each segment's u32 peak count followed by
// that many peaks, 8 or 12 bytes each depending on accurate-mass mode.
func decodeFTLTCentroids(reader *Reader, header *FtLtPacketHeader) ([]float64, []float64, error) {
	accurate := header.IsAccurateMass()
	bytesPerPeak := header.BytesPerCentroidPeak()
	estimated := 0
	if bytesPerPeak > 0 {
		estimated = int(header.NumCentroidWords) * 4 / bytesPerPeak
	}

	mz := make([]float64, 0, estimated)
	intensity := make([]float64, 0, estimated)

	for s := uint32(0); s < header.NumSegments; s++ {
		count, err := reader.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		if count > maxReasonablePeakCount {
			return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("FT/LT centroid: unreasonable peak count %d in segment", count)}
		}
		for i := uint32(0); i < count; i++ {
			var mzVal float64
			if accurate {
				v, err := reader.ReadF64()
				if err != nil {
					return nil, nil, err
				}
				mzVal = v
			} else {
				v, err := reader.ReadF32()
				if err != nil {
					return nil, nil, err
				}
				mzVal = float64(v)
			}
			in, err := reader.ReadF32()
			if err != nil {
				return nil, nil, err
			}
			mz = append(mz, mzVal)
			intensity = append(intensity, float64(in))
		}
	}
	return mz, intensity, nil
}

// decodeFTLTProfile decodes each segment's ProfileSegmentStruct (base
// abscissa, spacing, subsegment count, expanded-word count, padding)
// followed by that many ProfileSubsegmentStruct records (start index,
// word count, then that many u32 words reinterpreted as f32 intensity).
// FT mode stores frequency in base_abscissa and needs conversionParams to
// recover m/z; LT mode stores m/z directly.
func decodeFTLTProfile(reader *Reader, header *FtLtPacketHeader, conversionParams []float64, isFT bool) ([]float64, []float64, error) {
	var mz, intensity []float64

	for s := uint32(0); s < header.NumSegments; s++ {
		baseAbscissa, err := reader.ReadF64()
		if err != nil {
			return nil, nil, err
		}
		abscissaSpacing, err := reader.ReadF64()
		if err != nil {
			return nil, nil, err
		}
		numSubsegments, err := reader.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		if _, err := reader.ReadU32(); err != nil { // num_expanded_words, unused
			return nil, nil, err
		}
		if err := reader.Skip(8); err != nil { // padding
			return nil, nil, err
		}

		if numSubsegments > 100_000 {
			return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("FT/LT profile: unreasonable subsegment count %d", numSubsegments)}
		}

		for sub := uint32(0); sub < numSubsegments; sub++ {
			startIndex, err := reader.ReadU32()
			if err != nil {
				return nil, nil, err
			}
			wordCount, err := reader.ReadU32()
			if err != nil {
				return nil, nil, err
			}
			if wordCount > maxReasonablePeakCount {
				return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("FT/LT profile: unreasonable word count %d", wordCount)}
			}

			for i := uint32(0); i < wordCount; i++ {
				rawBits, err := reader.ReadU32()
				if err != nil {
					return nil, nil, err
				}
				intensityVal := float64(math.Float32frombits(rawBits))
				idx := startIndex + i
				abscissa := baseAbscissa + float64(idx)*abscissaSpacing

				var mzVal float64
				if isFT && len(conversionParams) > 0 {
					mzVal = frequencyToMZ(abscissa, conversionParams)
				} else {
					mzVal = abscissa
				}

				mz = append(mz, mzVal)
				intensity = append(intensity, intensityVal)
			}
		}
	}

	return mz, intensity, nil
}

// decodeFTLTCentroidsOnly decodes only the centroid arrays of an FT/LT
// packet, skipping the profile section (and the expensive
// frequency-to-m/z conversion it can require) entirely. Used by XIC
// extraction. Peaks within a segment are batch-sliced and unpacked by
// hand, the same zero-allocation-per-peak approach as the legacy
// centroid decoder.
func decodeFTLTCentroidsOnly(data []byte, absOffset uint64) ([]float64, []float64, error) {
	reader := ReaderAt(data, absOffset)
	header, err := parseFTLTPacketHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	if err := reader.Skip(int(header.NumSegments) * 8); err != nil {
		return nil, nil, err
	}

	profileBytes := int(header.NumProfileWords) * 4
	if profileBytes > 0 {
		if err := reader.Skip(profileBytes); err != nil {
			return nil, nil, err
		}
	}

	if header.NumCentroidWords == 0 {
		return nil, nil, nil
	}

	accurate := header.IsAccurateMass()
	bytesPerPeak := header.BytesPerCentroidPeak()
	estimated := 0
	if bytesPerPeak > 0 {
		estimated = int(header.NumCentroidWords) * 4 / bytesPerPeak
	}

	mz := make([]float64, 0, estimated)
	intensity := make([]float64, 0, estimated)

	for s := uint32(0); s < header.NumSegments; s++ {
		count, err := reader.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		if count > maxReasonablePeakCount {
			return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("FT/LT centroid: unreasonable peak count %d in segment", count)}
		}
		if count == 0 {
			continue
		}

		peakBytes := int(count) * bytesPerPeak
		raw, err := reader.Slice(peakBytes)
		if err != nil {
			return nil, nil, err
		}
		_ = reader.Skip(peakBytes)

		if accurate {
			for i := 0; i < int(count); i++ {
				base := i * 12
				mz = append(mz, math.Float64frombits(binary.LittleEndian.Uint64(raw[base:base+8])))
				intensity = append(intensity, float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base+8:base+12]))))
			}
		} else {
			for i := 0; i < int(count); i++ {
				base := i * 8
				mz = append(mz, float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base:base+4]))))
				intensity = append(intensity, float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base+4:base+8]))))
			}
		}
	}

	return mz, intensity, nil
}
