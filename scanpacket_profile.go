// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeProfile decodes a legacy profile packet: a header (first
// abscissa value, step, chunk count, total bin count) followed by that
// many chunks, each a (first_bin, nbins[, fudge if layout>0]) header plus
// nbins raw f32 intensity samples. m/z for bin i of a chunk is
// firstValue + (first_bin+i)*step; chunks need not be contiguous, so
// each bin's absolute index is computed from its own chunk's first_bin.
func decodeProfile(reader *Reader, layout uint32) ([]float64, []float64, error) {
	firstValue, err := reader.ReadF64()
	if err != nil {
		return nil, nil, err
	}
	step, err := reader.ReadF64()
	if err != nil {
		return nil, nil, err
	}
	peakCount, err := reader.ReadU32()
	if err != nil {
		return nil, nil, err
	}
	nbinsTotal, err := reader.ReadU32()
	if err != nil {
		return nil, nil, err
	}
	if peakCount == 0 || nbinsTotal == 0 {
		return nil, nil, nil
	}
	if peakCount > 1_000_000 || nbinsTotal > 100_000_000 {
		return nil, nil, &DecodeError{Offset: int(reader.Position()), Reason: fmt.Sprintf("unreasonable profile chunk/bin count %d/%d", peakCount, nbinsTotal)}
	}

	mz := make([]float64, 0, nbinsTotal)
	intensity := make([]float64, 0, nbinsTotal)

	for c := uint32(0); c < peakCount; c++ {
		firstBin, err := reader.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		nbins, err := reader.ReadU32()
		if err != nil {
			return nil, nil, err
		}
		if layout > 0 {
			if _, err := reader.ReadF32(); err != nil { // fudge factor, unused
				return nil, nil, err
			}
		}

		signalBytes := int(nbins) * 4
		raw, err := reader.Slice(signalBytes)
		if err != nil {
			return nil, nil, err
		}
		for i := uint32(0); i < nbins; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
			idx := firstBin + i
			mz = append(mz, firstValue+float64(idx)*step)
			intensity = append(intensity, float64(math.Float32frombits(bits)))
		}
		if err := reader.Skip(signalBytes); err != nil {
			return nil, nil, err
		}
	}

	return mz, intensity, nil
}
