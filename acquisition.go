// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"math"
	"sort"
)

// diaWindowRatio is the threshold ratio of (distinct isolation windows /
// total MS2 scans) below which a run is classified DIA: a DIA method
// cycles through a small, fixed set of systematic windows, so each
// window recurs many times over the run, while a DDA method picks a
// fresh data-dependent precursor almost every scan.
const diaWindowRatio = 0.25

// ddaWindowRatio is the ratio above which a run is classified DDA.
const ddaWindowRatio = 0.75

// windowBucket is the m/z granularity used to group isolation windows
// into the "same window" bucket, coarse enough to absorb jitter in the
// instrument's reported center m/z across cycles.
const windowBucket = 0.1

// DeriveMs2ScanInfos builds lightweight MS2 scan summaries from the
// already-parsed scan index and scan events, without decoding any scan
// packet: one entry per scan whose ScanEvent preamble reports MsLevel
// above Ms1, carrying its last Reaction's precursor m/z, isolation
// width, collision energy, and activation.
func DeriveMs2ScanInfos(entries []ScanIndexEntry, events []ScanEvent, firstScan uint32) []Ms2ScanInfo {
	var infos []Ms2ScanInfo

	for idx := range entries {
		e := &entries[idx]
		event, ok := lookupScanEvent(events, e.ScanEvent)
		if !ok || event.Preamble.MsLevel == MsLevel1 {
			continue
		}

		info := Ms2ScanInfo{
			ScanNumber:     firstScan + uint32(idx),
			RT:             e.RT,
			ScanEventIndex: e.ScanEvent,
			TIC:            e.TIC,
		}
		if n := len(event.Reactions); n > 0 {
			rxn := event.Reactions[n-1]
			info.PrecursorMZ = rxn.PrecursorMZ
			info.IsolationWidth = rxn.IsolationWidth
			info.CollisionEnergy = rxn.CollisionEnergy
			info.Activation = rxn.ActivationTypeValue().String()
		}
		infos = append(infos, info)
	}

	return infos
}

func lookupScanEvent(events []ScanEvent, idx uint16) (*ScanEvent, bool) {
	if int(idx) >= len(events) {
		return nil, false
	}
	return &events[idx], true
}

// windowKey buckets a precursor m/z to windowBucket granularity so the
// same systematic DIA window reported with minor jitter across cycles
// groups into one distinct window.
func windowKey(mz float64) int64 {
	return int64(math.Round(mz / windowBucket))
}

// ClassifyAcquisition classifies a run's acquisition strategy from its
// MS2 scan population: no MS2 scans is Ms1Only; a small number of
// distinct, heavily-repeated precursor windows is Dia; precursor m/z
// that varies almost every scan is Dda; anything between the two
// thresholds is Mixed (e.g. a DDA run with occasional targeted
// re-acquisition, or multiple acquisition segments of different kinds).
func ClassifyAcquisition(ms2 []Ms2ScanInfo) AcquisitionType {
	if len(ms2) == 0 {
		return AcquisitionMs1Only
	}

	distinct := make(map[int64]struct{})
	for _, info := range ms2 {
		distinct[windowKey(info.PrecursorMZ)] = struct{}{}
	}

	ratio := float64(len(distinct)) / float64(len(ms2))
	switch {
	case ratio <= diaWindowRatio:
		return AcquisitionDIA
	case ratio >= ddaWindowRatio:
		return AcquisitionDDA
	default:
		return AcquisitionMixed
	}
}

// DeriveIsolationWindows collects the distinct isolation windows used
// across a run's MS2 scans, one per windowKey bucket, keeping the
// first-seen collision energy/activation for that bucket and sorted by
// center m/z. Most useful for DIA runs, where this recovers the
// method's systematic window scheme; for DDA runs it simply lists every
// distinct precursor targeted.
func DeriveIsolationWindows(ms2 []Ms2ScanInfo) []IsolationWindow {
	seen := make(map[int64]IsolationWindow)
	var order []int64

	for _, info := range ms2 {
		key := windowKey(info.PrecursorMZ)
		if _, ok := seen[key]; ok {
			continue
		}
		halfWidth := info.IsolationWidth / 2
		seen[key] = IsolationWindow{
			CenterMZ:        info.PrecursorMZ,
			IsolationWidth:  info.IsolationWidth,
			LowMZ:           info.PrecursorMZ - halfWidth,
			HighMZ:          info.PrecursorMZ + halfWidth,
			CollisionEnergy: info.CollisionEnergy,
			Activation:      info.Activation,
		}
		order = append(order, key)
	}

	windows := make([]IsolationWindow, 0, len(order))
	for _, key := range order {
		windows = append(windows, seen[key])
	}
	sort.Slice(windows, func(i, j int) bool {
		return windows[i].CenterMZ < windows[j].CenterMZ
	})
	return windows
}
