// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

// BuildTIC builds a total-ion-current chromatogram straight from the
// ScanIndex's cached per-scan TIC values — no packet decoding needed.
func BuildTIC(entries []ScanIndexEntry) Chromatogram {
	rt := make([]float64, len(entries))
	intensity := make([]float64, len(entries))
	for i, e := range entries {
		rt[i] = e.RT
		intensity[i] = e.TIC
	}
	return Chromatogram{RT: rt, Intensity: intensity}
}

// BuildBPC builds a base-peak chromatogram from the ScanIndex's cached
// per-scan base peak intensities.
func BuildBPC(entries []ScanIndexEntry) Chromatogram {
	rt := make([]float64, len(entries))
	intensity := make([]float64, len(entries))
	for i, e := range entries {
		rt[i] = e.RT
		intensity[i] = e.BasePeakIntensity
	}
	return Chromatogram{RT: rt, Intensity: intensity}
}

// XICTarget is one (m/z, ppm tolerance) extraction target for batch XIC.
type XICTarget struct {
	MZ  float64
	PPM float64
}

// mzWindow returns the [low, high] m/z window for a target m/z and a ppm
// tolerance: half-width = mz * ppm * 1e-6.
func mzWindow(mz, ppm float64) (low, high float64) {
	halfWidth := mz * ppm * 1e-6
	return mz - halfWidth, mz + halfWidth
}

// indexRangeOverlaps reports whether a ScanIndexEntry's cached
// [LowMZ, HighMZ] window could possibly contain a peak in [low, high].
// A zero-valued HighMZ means the entry carries no index-level range (not
// every file version populates it), so overlap must be assumed rather
// than pruned.
func indexRangeOverlaps(e *ScanIndexEntry, low, high float64) bool {
	if e.HighMZ <= 0 {
		return true
	}
	return !(e.HighMZ < low || e.LowMZ > high)
}

// extractXIC is the shared engine behind XIC and XICMS1: for each scan
// (optionally restricted to MS1 scans via msLevels), prune scans whose
// index-level m/z range cannot overlap the target window, and otherwise
// decode centroids-only and sum the window's intensity. msLevels, if
// non-nil, must be parallel to entries.
func extractXIC(data []byte, dataAddr uint64, entries []ScanIndexEntry, low, high float64, msLevels []MsLevel) (Chromatogram, error) {
	rt := make([]float64, 0, len(entries))
	intensity := make([]float64, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		if msLevels != nil && msLevels[i] != MsLevel1 {
			continue
		}
		rt = append(rt, e.RT)
		if !indexRangeOverlaps(e, low, high) {
			intensity = append(intensity, 0)
			continue
		}
		sum, err := sumCentroidsInMZRange(data, dataAddr, e, low, high)
		if err != nil {
			return Chromatogram{}, err
		}
		intensity = append(intensity, sum)
	}

	return Chromatogram{RT: rt, Intensity: intensity}, nil
}

// XIC extracts an extracted-ion chromatogram for a target m/z and ppm
// tolerance over every scan in entries, regardless of MS level.
func XIC(data []byte, dataAddr uint64, entries []ScanIndexEntry, mz, ppm float64) (Chromatogram, error) {
	low, high := mzWindow(mz, ppm)
	return extractXIC(data, dataAddr, entries, low, high, nil)
}

// XICMS1 is XIC restricted to MS1 scans only (the common fast path:
// fragmentation spectra can never contain the target precursor's
// intact-ion peak). msLevels must be parallel to entries, typically
// derived from each scan's ScanEvent.
func XICMS1(data []byte, dataAddr uint64, entries []ScanIndexEntry, msLevels []MsLevel, mz, ppm float64) (Chromatogram, error) {
	low, high := mzWindow(mz, ppm)
	return extractXIC(data, dataAddr, entries, low, high, msLevels)
}

// BatchXICMS1 extracts K XICs over MS1 scans in a single decode pass per
// scan: each scan's centroid peak list is decoded at most once, and all
// K target windows are summed against it together via
// sumCentroidsMultiTarget, rather than decoding the scan once per
// target. batchXIC(targets)[j] is pointwise equal to XICMS1(targets[j])
// up to floating-point summation order.
func BatchXICMS1(data []byte, dataAddr uint64, entries []ScanIndexEntry, msLevels []MsLevel, targets []XICTarget) ([]Chromatogram, error) {
	windows := make([]MZRange, len(targets))
	for i, t := range targets {
		low, high := mzWindow(t.MZ, t.PPM)
		windows[i] = MZRange{Low: low, High: high}
	}

	rt := make([]float64, 0, len(entries))
	perScan := make([][]float64, 0, len(entries))

	for i := range entries {
		e := &entries[i]
		if msLevels != nil && msLevels[i] != MsLevel1 {
			continue
		}
		rt = append(rt, e.RT)

		row := make([]float64, len(targets))
		needsDecode := false
		for _, w := range windows {
			if indexRangeOverlaps(e, w.Low, w.High) {
				needsDecode = true
				break
			}
		}
		if needsDecode {
			if err := sumCentroidsMultiTarget(data, dataAddr, e, windows, row); err != nil {
				return nil, err
			}
		}
		perScan = append(perScan, row)
	}

	chroms := make([]Chromatogram, len(targets))
	for t := range targets {
		chroms[t].RT = rt
		chroms[t].Intensity = make([]float64, len(perScan))
		for i, row := range perScan {
			chroms[t].Intensity[i] = row[t]
		}
	}
	return chroms, nil
}
