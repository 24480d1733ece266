// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "fmt"

// DiagnosticStage is the outcome of one step of Diagnose: the parser
// stages run in the order Open itself runs them, so a malformed file
// reveals exactly where parsing would fail.
type DiagnosticStage struct {
	Name    string
	Success bool
	Detail  string
}

// DiagnosticReport is a best-effort, non-fatal walk through every
// parsing stage of a candidate RAW file, for `rawdump diagnose` and bug
// reports against files that don't open cleanly.
type DiagnosticReport struct {
	FileSize uint64
	Stages   []DiagnosticStage
}

func (r *DiagnosticReport) stage(name string, success bool, detail string) {
	r.Stages = append(r.Stages, DiagnosticStage{Name: name, Success: success, Detail: detail})
}

// Diagnose runs every File.Open parsing stage independently, continuing
// past soft failures (trailer layout missing, first scan undecodeable)
// but stopping early on a hard failure (no magic, no controllers) since
// nothing downstream can proceed without it.
func Diagnose(data []byte) *DiagnosticReport {
	report := &DiagnosticReport{FileSize: uint64(len(data))}

	finniganOffset := findFinniganMagic(data)
	if finniganOffset < 0 {
		report.stage("Finnigan magic", false, "magic 0xA101 not found in first 64KB")
		return report
	}
	report.stage("Finnigan magic", true, fmt.Sprintf("found at offset %d", finniganOffset))

	fileHeader, err := parseFileHeader(data, uint64(finniganOffset))
	if err != nil {
		report.stage("FileHeader", false, err.Error())
		return report
	}
	report.stage("FileHeader", true, fmt.Sprintf("tag=%q version=%d", fileHeader.Tag, fileHeader.Version))

	version := fileHeader.Version
	if !IsSupportedVersion(version) {
		report.stage("Version check", false, fmt.Sprintf("version %d unsupported (expect 57-66)", version))
		return report
	}
	report.stage("Version check", true, fmt.Sprintf("version %d supported", version))

	infoBase := uint64(finniganOffset) + fileHeaderSize
	rawFileInfo, infoOffset, err := findRawFileInfo(data, infoBase, version)
	if err != nil {
		report.stage("RawFileInfo", false, err.Error())
		return report
	}
	report.stage("RawFileInfo", true, fmt.Sprintf(
		"found at offset %d, acquired %s, %d controller(s)",
		infoOffset, rawFileInfo.AcquisitionDate(), rawFileInfo.NControllers))

	rhAddr := rawFileInfo.RunHeaderAddr()
	if rhAddr == 0 {
		report.stage("RunHeader", false, "no data controllers (empty/blank acquisition)")
		return report
	}
	runHeader, err := parseRunHeader(data, rhAddr, version)
	if err != nil {
		report.stage("RunHeader", false, err.Error())
		return report
	}
	report.stage("RunHeader", true, fmt.Sprintf(
		"scans %d-%d, RT %.3f-%.3f min, mass %.2f-%.2f, device=%q model=%q",
		runHeader.FirstScan, runHeader.LastScan, runHeader.StartTime, runHeader.EndTime,
		runHeader.LowMass, runHeader.HighMass, runHeader.DeviceName, runHeader.Model))

	nScans := runHeader.NScans()
	siAddr := runHeader.ScanIndexAddr()
	scanIndex, err := parseScanIndex(data, siAddr, version, nScans)
	if err != nil {
		report.stage("ScanIndex", false, err.Error())
		return report
	}
	sample := scanIndex
	if len(sample) > 3 {
		sample = sample[:3]
	}
	report.stage("ScanIndex", true, fmt.Sprintf("%d entries, first 3: %+v", len(scanIndex), sample))

	spectPos := runHeader.ScanIndexAddr()
	trailerExtraPos := runHeader.ScanParamsAddr()
	if trailerExtraPos == 0 || spectPos == 0 {
		report.stage("TrailerLayout", false, "skipped: no trailer addresses in RunHeader")
	} else if header, err := findGenericDataHeader(data, spectPos); err == nil {
		header.RecordsOffset = trailerExtraPos
		layout := NewTrailerLayout(header)
		report.stage("TrailerLayout", true, fmt.Sprintf(
			"%d fields, record size %d, filterIdx=%d masterScanIdx=%d",
			len(layout.Header.Descriptors), layout.RecordSize, layout.FilterTextIdx, layout.MasterScanIdx))
	} else if trailerAddr := runHeader.ScanTrailerAddr(); trailerAddr != 0 {
		if header, err := parseGenericDataHeader(data, trailerAddr); err == nil {
			layout := NewTrailerLayout(header)
			report.stage("TrailerLayout", true, fmt.Sprintf(
				"(legacy fallback) %d fields, record size %d", len(layout.Header.Descriptors), layout.RecordSize))
		} else {
			report.stage("TrailerLayout", false, err.Error())
		}
	} else {
		report.stage("TrailerLayout", false, "no trailer header found via either strategy")
	}

	if len(scanIndex) == 0 {
		return report
	}
	firstEntry := &scanIndex[0]
	scan, err := decodeScan(data, runHeader.DataAddr(), firstEntry, runHeader.FirstScan, nil)
	if err != nil {
		report.stage("First scan decode", false, fmt.Sprintf(
			"abs_offset=%d data_size=%d: %s", runHeader.DataAddr()+firstEntry.Offset, firstEntry.DataSize, err.Error()))
		return report
	}
	report.stage("First scan decode", true, fmt.Sprintf(
		"%d centroids, tic=%.1f, base_peak_mz=%.4f", len(scan.CentroidMZ), scan.TIC, scan.BasePeakMZ))

	return report
}

// DebugInfo is a snapshot of the addresses and counts File.Open resolved,
// for troubleshooting offset-recovery issues.
type DebugInfo struct {
	FileSize           uint64
	Version            uint32
	RunHeaderStart     uint64
	RunHeaderEnd       uint64
	ScanIndexAddr32    uint32
	ScanIndexAddr64    *uint64
	DataAddr32         uint32
	DataAddr64         *uint64
	ScanTrailerAddr32  uint32
	ScanTrailerAddr64  *uint64
	ScanParamsAddr32   uint32
	ScanParamsAddr64   *uint64
	EffectiveDataAddr  uint64
	FirstScanEntries   []ScanIndexEntry
	NScans             uint32
	NScanEvents        int
	InstrumentType     int32
}

// DebugInfo reports the addresses and counts resolved while opening f.
func (f *File) DebugInfo() *DebugInfo {
	rh := f.runHeader
	sample := f.scanIndex
	if len(sample) > 3 {
		sample = sample[:3]
	}
	return &DebugInfo{
		FileSize:          uint64(len(f.buf)),
		Version:           f.version,
		RunHeaderStart:    rh.StartOffset,
		RunHeaderEnd:      rh.EndOffset,
		ScanIndexAddr32:   rh.ScanIndexAddr32,
		ScanIndexAddr64:   rh.ScanIndexAddr64,
		DataAddr32:        rh.DataAddr32,
		DataAddr64:        rh.DataAddr64,
		ScanTrailerAddr32: rh.ScanTrailerAddr32,
		ScanTrailerAddr64: rh.ScanTrailerAddr64,
		ScanParamsAddr32:  rh.ScanParamsAddr32,
		ScanParamsAddr64:  rh.ScanParamsAddr64,
		EffectiveDataAddr: f.dataAddr,
		FirstScanEntries:  sample,
		NScans:            f.NScans(),
		NScanEvents:       len(f.ScanEvents()),
		InstrumentType:    rh.InstrumentType,
	}
}
