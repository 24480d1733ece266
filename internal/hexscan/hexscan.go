// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package hexscan is a reverse-engineering toolkit for locating known
// values inside an undocumented binary layout: brute-force scans for an
// f64/f32/u32/UTF-16LE needle, a repeating-record stride detector, and a
// byte-level diff. It backs `rawdump locate` and is also useful
// standalone when a new file version shifts a field's offset.
package hexscan

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// F64Hit is one offset at which a matching float64 was found.
type F64Hit struct {
	Offset int
	Value  float64
}

// F32Hit is one offset at which a matching float32 was found.
type F32Hit struct {
	Offset int
	Value  float32
}

// withinTolerance reports whether val is within the larger of abs or a
// relative tolerance of target, matching the teacher tool's
// `tolerance.max(target.abs() * tolerance)` rule.
func withinTolerance(val, target, tol float64) bool {
	rel := tol
	if r := math.Abs(target) * tol; r > rel {
		rel = r
	}
	return math.Abs(val-target) <= rel
}

// FindF64 scans data for every little-endian float64 within tolerance of
// target (absolute or relative, whichever is larger).
func FindF64(data []byte, target, tolerance float64) []F64Hit {
	var hits []F64Hit
	if len(data) < 8 {
		return hits
	}
	for i := 0; i <= len(data)-8; i++ {
		bits := binary.LittleEndian.Uint64(data[i : i+8])
		val := math.Float64frombits(bits)
		if !math.IsInf(val, 0) && !math.IsNaN(val) && withinTolerance(val, target, tolerance) {
			hits = append(hits, F64Hit{Offset: i, Value: val})
		}
	}
	return hits
}

// FindF32 scans data for every little-endian float32 within tolerance of
// target.
func FindF32(data []byte, target, tolerance float32) []F32Hit {
	var hits []F32Hit
	if len(data) < 4 {
		return hits
	}
	tol64 := float64(tolerance)
	for i := 0; i <= len(data)-4; i++ {
		bits := binary.LittleEndian.Uint32(data[i : i+4])
		val := math.Float32frombits(bits)
		if !math.IsInf(float64(val), 0) && !math.IsNaN(float64(val)) &&
			withinTolerance(float64(val), float64(target), tol64) {
			hits = append(hits, F32Hit{Offset: i, Value: val})
		}
	}
	return hits
}

// FindU32 scans data for every little-endian uint32 equal to target.
func FindU32(data []byte, target uint32) []int {
	var hits []int
	if len(data) < 4 {
		return hits
	}
	for i := 0; i <= len(data)-4; i++ {
		if binary.LittleEndian.Uint32(data[i:i+4]) == target {
			hits = append(hits, i)
		}
	}
	return hits
}

// FindUTF16 scans data for every occurrence of pattern encoded as
// UTF-16LE.
func FindUTF16(data []byte, pattern string) []int {
	units := utf16.Encode([]rune(pattern))
	encoded := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(encoded[i*2:], u)
	}

	var hits []int
	if len(data) < len(encoded) || len(encoded) == 0 {
		return hits
	}
	for i := 0; i <= len(data)-len(encoded); i++ {
		if string(data[i:i+len(encoded)]) == string(encoded) {
			hits = append(hits, i)
		}
	}
	return hits
}

// StrideCandidate is a hypothesis that a repeating record of the given
// size starts at Offset, confirmed by every value in the probe list
// landing within tolerance at its expected position.
type StrideCandidate struct {
	Offset  int
	Stride  int
	Matched int
}

// DetectStride looks for a repeating record layout: given a sequence of
// values known to appear once per record (e.g. the first N scans'
// retention times), it finds every (offset, stride) pair where every
// value in the sequence appears at offset+i*stride.
func DetectStride(data []byte, values []float64, tolerance float64) []StrideCandidate {
	if len(values) == 0 {
		return nil
	}
	var results []StrideCandidate
	for _, hit := range FindF64(data, values[0], tolerance) {
		for stride := 8; stride <= 256; stride += 4 {
			allMatch := true
			for vi := 1; vi < len(values); vi++ {
				expected := hit.Offset + vi*stride
				if expected+8 > len(data) {
					allMatch = false
					break
				}
				bits := binary.LittleEndian.Uint64(data[expected : expected+8])
				found := math.Float64frombits(bits)
				if !withinTolerance(found, values[vi], tolerance) {
					allMatch = false
					break
				}
			}
			if allMatch {
				results = append(results, StrideCandidate{Offset: hit.Offset, Stride: stride, Matched: len(values)})
			}
		}
	}
	return results
}

// DiffRegion is a contiguous run of differing bytes between two buffers.
type DiffRegion struct {
	Start, End int // End is exclusive
}

// Diff compares a and b byte-for-byte up to their shared length,
// coalescing consecutive differences into regions, and stops after
// maxDiffs regions.
func Diff(a, b []byte, maxDiffs int) []DiffRegion {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var regions []DiffRegion
	inDiff := false
	start := 0
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			if !inDiff {
				start = i
				inDiff = true
			}
			continue
		}
		if inDiff {
			regions = append(regions, DiffRegion{Start: start, End: i})
			inDiff = false
			if maxDiffs > 0 && len(regions) >= maxDiffs {
				return regions
			}
		}
	}
	if inDiff {
		regions = append(regions, DiffRegion{Start: start, End: minLen})
	}
	return regions
}
