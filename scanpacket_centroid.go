// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// maxReasonablePeakCount rejects a centroid peak count that could only
// come from a corrupt count field, long before it turns into a gigabyte
// allocation.
const maxReasonablePeakCount = 10_000_000

// decodeCentroid decodes a legacy centroid peak list: a u32 count
// followed by that many (f32 mz, f32 intensity) pairs. The whole region
// is sliced once and unpacked by hand rather than read peak-by-peak
// through reader, since this is the hottest path in full-scan decoding.
func decodeCentroid(reader *Reader) ([]float64, []float64, error) {
	count, err := reader.ReadU32()
	if err != nil {
		return nil, nil, err
	}
	if count > maxReasonablePeakCount {
		return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("unreasonable centroid peak count %d", count)}
	}
	raw, err := reader.Slice(int(count) * 8)
	if err != nil {
		return nil, nil, err
	}
	_ = reader.Skip(int(count) * 8)

	mz := make([]float64, count)
	intensity := make([]float64, count)
	for i := 0; i < int(count); i++ {
		base := i * 8
		mz[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base : base+4])))
		intensity[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base+4 : base+8])))
	}
	return mz, intensity, nil
}

// sumCentroidsInRange sums the intensity of every peak whose m/z falls
// in [mzLow, mzHigh], breaking as soon as a peak's m/z exceeds mzHigh.
// Centroid peaks within one scan's packet are always stored in
// increasing m/z order, so the early break is safe and avoids decoding
// peaks the caller doesn't need.
func sumCentroidsInRange(reader *Reader, mzLow, mzHigh float64) (float64, error) {
	count, err := reader.ReadU32()
	if err != nil {
		return 0, err
	}
	if count > maxReasonablePeakCount {
		return 0, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("unreasonable centroid peak count %d", count)}
	}
	raw, err := reader.Slice(int(count) * 8)
	if err != nil {
		return 0, err
	}
	_ = reader.Skip(int(count) * 8)

	var sum float64
	for i := 0; i < int(count); i++ {
		base := i * 8
		mz := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base : base+4])))
		if mz > mzHigh {
			break
		}
		if mz >= mzLow {
			sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base+4 : base+8])))
		}
	}
	return sum, nil
}

// sumCentroidsMultiTarget sums several m/z ranges in a single forward
// pass, using a sliding lower bound (rangeStart) into ranges (assumed
// sorted by Low) so that peaks already past the smallest pending range
// are never reconsidered.
func sumCentroidsMultiTarget(reader *Reader, ranges []MZRange, out []float64) error {
	count, err := reader.ReadU32()
	if err != nil {
		return err
	}
	if count > maxReasonablePeakCount {
		return &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("unreasonable centroid peak count %d", count)}
	}
	raw, err := reader.Slice(int(count) * 8)
	if err != nil {
		return err
	}
	_ = reader.Skip(int(count) * 8)

	rangeStart := 0
	for i := 0; i < int(count); i++ {
		base := i * 8
		mz := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base : base+4])))
		for rangeStart < len(ranges) && ranges[rangeStart].High < mz {
			rangeStart++
		}
		for r := rangeStart; r < len(ranges); r++ {
			if ranges[r].Low > mz {
				break
			}
			if mz <= ranges[r].High {
				out[r] += float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[base+4 : base+8])))
			}
		}
	}
	return nil
}
