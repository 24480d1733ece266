// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"strconv"
	"strings"
)

// FilterPrecursor is the precursor m/z, activation type, and collision
// energy extracted from an MS2+ scan filter string.
type FilterPrecursor struct {
	MZ              float64
	Activation      string
	CollisionEnergy float64
}

// ScanFilter is a Thermo scan filter string ("FTMS + p NSI Full ms
// [200.00-2000.00]") decomposed into its acquisition parameters.
type ScanFilter struct {
	MsLevel     MsLevel
	Polarity    Polarity
	Analyzer    string
	ScanMode    string
	MassRangeOK bool
	MassLow     float64
	MassHigh    float64
	Precursor   *FilterPrecursor
	RawString   string
}

// ParseFilter parses a Thermo scan filter string. Filters are plain-text
// and not every acquisition parameter is always present, so this is a
// best-effort keyword/substring scan rather than a strict grammar,
// matching the original's own approach.
func ParseFilter(filter string) ScanFilter {
	var polarity Polarity
	switch {
	case strings.Contains(filter, " + "):
		polarity = PolarityPositive
	case strings.Contains(filter, " - "):
		polarity = PolarityNegative
	default:
		polarity = PolarityUnknown
	}

	lower := strings.ToLower(filter)
	var msLevel MsLevel
	switch {
	case strings.Contains(lower, "ms3") || strings.Contains(lower, "ms 3"):
		msLevel = MsLevel3
	case strings.Contains(lower, "ms2") || strings.Contains(lower, "ms 2"):
		msLevel = MsLevel2
	default:
		msLevel = MsLevel1
	}

	analyzer := "Unknown"
	switch {
	case strings.Contains(filter, "FTMS"):
		analyzer = "FTMS"
	case strings.Contains(filter, "ITMS"):
		analyzer = "ITMS"
	}

	scanMode := "Unknown"
	switch {
	case strings.Contains(filter, "Full"):
		scanMode = "Full"
	case strings.Contains(filter, "SIM"):
		scanMode = "SIM"
	case strings.Contains(filter, "SRM"):
		scanMode = "SRM"
	}

	massOK, massLow, massHigh := parseMassRange(filter)

	var precursor *FilterPrecursor
	if msLevel == MsLevel2 || msLevel == MsLevel3 {
		precursor = parsePrecursorFromFilter(filter)
	}

	return ScanFilter{
		MsLevel:     msLevel,
		Polarity:    polarity,
		Analyzer:    analyzer,
		ScanMode:    scanMode,
		MassRangeOK: massOK,
		MassLow:     massLow,
		MassHigh:    massHigh,
		Precursor:   precursor,
		RawString:   filter,
	}
}

// parsePrecursorFromFilter extracts "524.2648@hcd28.00"-shaped precursor
// annotations from a filter string. rfind('@') picks the LAST precursor
// annotation, which for an MS3 filter is the direct (most recent)
// precursor rather than the MS2 parent.
func parsePrecursorFromFilter(filter string) *FilterPrecursor {
	atPos := strings.LastIndex(filter, "@")
	if atPos < 0 {
		return nil
	}

	beforeAt := filter[:atPos]
	mzStart := 0
	for i := len(beforeAt) - 1; i >= 0; i-- {
		c := beforeAt[i]
		if !isASCIIDigit(c) && c != '.' {
			mzStart = i + 1
			break
		}
	}
	mzStr := strings.TrimSpace(beforeAt[mzStart:])
	if mzStr == "" {
		return nil
	}
	precursorMZ, err := strconv.ParseFloat(mzStr, 64)
	if err != nil {
		return nil
	}

	afterAt := filter[atPos+1:]
	typeEnd := len(afterAt)
	for i := 0; i < len(afterAt); i++ {
		c := afterAt[i]
		if isASCIIDigit(c) || c == '.' {
			typeEnd = i
			break
		}
	}
	activation := strings.ToLower(afterAt[:typeEnd])

	ceStr := afterAt[typeEnd:]
	ceEnd := len(ceStr)
	for i := 0; i < len(ceStr); i++ {
		c := ceStr[i]
		if !isASCIIDigit(c) && c != '.' {
			ceEnd = i
			break
		}
	}
	var collisionEnergy float64
	if ceEnd > 0 {
		if v, err := strconv.ParseFloat(ceStr[:ceEnd], 64); err == nil {
			collisionEnergy = v
		}
	}

	return &FilterPrecursor{
		MZ:              precursorMZ,
		Activation:      activation,
		CollisionEnergy: collisionEnergy,
	}
}

// parseMassRange extracts the "[low-high]" mass range bracket.
func parseMassRange(filter string) (ok bool, low, high float64) {
	start := strings.Index(filter, "[")
	if start < 0 {
		return false, 0, 0
	}
	end := strings.Index(filter, "]")
	if end < 0 {
		return false, 0, 0
	}
	rangeStr := filter[start+1 : end]
	parts := strings.Split(rangeStr, "-")
	if len(parts) != 2 {
		return false, 0, 0
	}
	lowVal, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return false, 0, 0
	}
	highVal, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return false, 0, 0
	}
	return true, lowVal, highVal
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
