// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	mmap "github.com/edsrzf/mmap-go"

	"github.com/scif-oss/rawfile/internal/rawlog"
)

// fingerprintSampleSize caps how much of the file is hashed: the
// Finnigan header is dense with acquisition-specific bytes (timestamps,
// device serial, sample text) in its first few KB, so a full-file hash
// buys little extra discriminating power over a much cheaper prefix hash.
const fingerprintSampleSize = 65536

// Options configures Open/OpenBytes.
type Options struct {
	// Logger receives non-fatal diagnostics (trailer GDH fallback
	// engaged, lazy scan-event parse failed). Defaults to a warn-level
	// stderr logger.
	Logger rawlog.Logger
}

// File is an open Thermo RAW file: the parsed FileHeader/RawFileInfo/
// RunHeader/ScanIndex/TrailerLayout, plus a lazily-parsed scan-event
// cache. A *File is immutable after Open returns, except for the
// sync.Once-guarded scan-event and acquisition-type caches.
type File struct {
	data mmap.MMap // nil when constructed from OpenBytes
	buf  []byte    // the byte slice actually read from, always set

	version       uint32
	fileMetadata  FileMetadata
	runHeader     *RunHeader
	scanIndex     []ScanIndexEntry
	dataAddr      uint64
	trailerLayout *TrailerLayout

	scanEventsAddr uint64
	scanEventsOnce sync.Once
	scanEvents     []ScanEvent

	acquisitionOnce sync.Once
	acquisitionType AcquisitionType

	logger *rawlog.Helper
	f      *os.File
}

func newHelper(opts *Options) *rawlog.Helper {
	var logger rawlog.Logger
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	} else {
		logger = rawlog.NewFilter(rawlog.NewStdLogger(os.Stderr), rawlog.LevelWarn)
	}
	return rawlog.NewHelper(logger)
}

// Open reads a Thermo RAW file entirely into memory and parses it.
func Open(name string, opts *Options) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return fromData(data, nil, nil, opts)
}

// OpenMmap opens a Thermo RAW file using memory-mapping, more
// memory-efficient for large files since the OS pages data on demand.
// The file must not be modified while the File is open.
func OpenMmap(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	file, err := fromData(data, data, f, opts)
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	return file, nil
}

// OpenBytes parses a Thermo RAW file already held in memory.
func OpenBytes(data []byte, opts *Options) (*File, error) {
	return fromData(data, nil, nil, opts)
}

// fromData is the shared parse pipeline behind Open/OpenMmap/OpenBytes:
// locate the Finnigan magic, parse FileHeader, RawFileInfo, RunHeader,
// ScanIndex, and (best-effort) the trailer layout. Scan events are
// parsed lazily on first access.
func fromData(buf []byte, mm mmap.MMap, osFile *os.File, opts *Options) (*File, error) {
	logger := newHelper(opts)

	finniganOffset := findFinniganMagic(buf)
	if finniganOffset < 0 {
		return nil, ErrNotRawFile
	}

	fileHeader, err := parseFileHeader(buf, uint64(finniganOffset))
	if err != nil {
		return nil, wrapParseError("FileHeader", int64(finniganOffset), nil, err)
	}
	version := fileHeader.Version
	if !IsSupportedVersion(version) {
		return nil, ErrUnsupportedVersion(version)
	}

	infoBase := uint64(finniganOffset) + fileHeaderSize
	rawFileInfo, infoOffset, err := findRawFileInfo(buf, infoBase, version)
	if err != nil {
		return nil, wrapParseError("RawFileInfo", int64(infoBase), &version, err)
	}
	_ = infoOffset

	rhAddr := rawFileInfo.RunHeaderAddr()
	if rhAddr == 0 {
		return nil, ErrStreamNotFound("no data controllers")
	}

	runHeader, err := parseRunHeader(buf, rhAddr, version)
	if err != nil {
		return nil, wrapParseError("RunHeader", int64(rhAddr), &version, err)
	}

	nScans := runHeader.NScans()
	siAddr := runHeader.ScanIndexAddr()
	scanIndexEntries, err := parseScanIndex(buf, siAddr, version, nScans)
	if err != nil {
		return nil, wrapParseError("ScanIndex", int64(siAddr), &version, err)
	}

	// DataOffset is relative to PacketPos (the data stream base);
	// absolute scan data offset = PacketPos + entry.Offset.
	dataAddr := runHeader.DataAddr()
	spectPos := runHeader.ScanIndexAddr()
	trailerExtraPos := runHeader.ScanParamsAddr()

	fileMetadata := BuildMetadata(fileHeader, rawFileInfo, runHeader)

	trailerLayout := buildTrailerLayout(buf, runHeader, spectPos, trailerExtraPos, logger)

	file := &File{
		data:           mm,
		buf:            buf,
		version:        version,
		fileMetadata:   fileMetadata,
		runHeader:      runHeader,
		scanIndex:      scanIndexEntries,
		dataAddr:       dataAddr,
		trailerLayout:  trailerLayout,
		scanEventsAddr: runHeader.ScanParamsAddr(),
		logger:         logger,
		f:              osFile,
	}
	return file, nil
}

// buildTrailerLayout eagerly parses the trailer's field layout (header
// only, not every per-scan record). In v66, the GenericDataHeader sits
// several KB before SpectPos in the data stream, not at
// TrailerScanEventsPos/TrailerExtraPos (which are flat record arrays
// with no header of their own), so it is located by searching backward
// from SpectPos and its RecordsOffset is then pointed at
// TrailerExtraPos, where the actual per-scan records live. Failing that,
// a legacy fallback tries a GDH located directly at ScanTrailerAddr.
func buildTrailerLayout(data []byte, rh *RunHeader, spectPos, trailerExtraPos uint64, logger *rawlog.Helper) *TrailerLayout {
	if trailerExtraPos == 0 || spectPos == 0 {
		return nil
	}

	header, err := findGenericDataHeader(data, spectPos)
	if err == nil {
		header.RecordsOffset = trailerExtraPos
		return NewTrailerLayout(header)
	}
	logger.Warnf("trailer GDH search before SpectPos failed, trying legacy fallback: %v", err)

	trailerAddr := rh.ScanTrailerAddr()
	if trailerAddr == 0 {
		return nil
	}
	header, err = parseGenericDataHeader(data, trailerAddr)
	if err != nil {
		logger.Warnf("legacy trailer GDH parse at %d failed: %v", trailerAddr, err)
		return nil
	}
	return NewTrailerLayout(header)
}

// Close releases resources held by a memory-mapped File. A no-op for
// Files constructed from Open or OpenBytes.
func (f *File) Close() error {
	if f.data != nil {
		_ = f.data.Unmap()
	}
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Version returns the Finnigan stream format version.
func (f *File) Version() uint32 { return f.version }

// Metadata returns the file-level identity and provenance summary.
func (f *File) Metadata() FileMetadata { return f.fileMetadata }

// NScans returns the total number of scans.
func (f *File) NScans() uint32 { return uint32(len(f.scanIndex)) }

// FirstScan returns the first scan number.
func (f *File) FirstScan() uint32 { return f.runHeader.FirstScan }

// LastScan returns the last scan number.
func (f *File) LastScan() uint32 { return f.runHeader.LastScan }

// StartTime returns the acquisition start time, in minutes.
func (f *File) StartTime() float64 { return f.runHeader.StartTime }

// EndTime returns the acquisition end time, in minutes.
func (f *File) EndTime() float64 { return f.runHeader.EndTime }

// LowMass returns the low end of the run's configured mass range.
func (f *File) LowMass() float64 { return f.runHeader.LowMass }

// HighMass returns the high end of the run's configured mass range.
func (f *File) HighMass() float64 { return f.runHeader.HighMass }

// FileSize returns the size, in bytes, of the underlying file image.
func (f *File) FileSize() int { return len(f.buf) }

// Fingerprint returns a fast, non-cryptographic hash over a leading
// sample of the file, for cheaply telling two File instances apart (log
// correlation, dedup) without hashing gigabytes of scan data.
func (f *File) Fingerprint() uint64 {
	n := len(f.buf)
	if n > fingerprintSampleSize {
		n = fingerprintSampleSize
	}
	return xxhash.Sum64(f.buf[:n])
}

// RunHeader returns the parsed RunHeader, for diagnostics.
func (f *File) RunHeader() *RunHeader { return f.runHeader }

// ScanIndexEntries returns the raw scan index entries.
func (f *File) ScanIndexEntries() []ScanIndexEntry { return f.scanIndex }

// ScanEvents returns the parsed scan-event templates, lazily parsing
// them from the scan-params stream on first access.
func (f *File) ScanEvents() []ScanEvent {
	f.scanEventsOnce.Do(func() {
		if f.scanEventsAddr == 0 {
			return
		}
		events, err := parseScanEvents(f.buf, f.scanEventsAddr, f.version)
		if err != nil {
			f.logger.Warnf("scan event parsing failed: %v", err)
			return
		}
		f.scanEvents = events
	})
	return f.scanEvents
}

// TrailerFields returns the trailer's field labels, or nil if no
// trailer layout could be located.
func (f *File) TrailerFields() []string {
	if f.trailerLayout == nil {
		return nil
	}
	return f.trailerLayout.FieldLabels()
}

// TrailerExtra returns the decoded trailer fields for one scan.
func (f *File) TrailerExtra(scanNumber uint32) (TrailerExtra, error) {
	if f.trailerLayout == nil {
		return nil, ErrStreamNotFound("trailer extra")
	}
	if scanNumber < f.runHeader.FirstScan {
		return nil, ErrScanOutOfRange(scanNumber)
	}
	scanIdx := scanNumber - f.runHeader.FirstScan
	return parseTrailerExtra(f.buf, f.trailerLayout.Header, scanIdx)
}

// conversionParams looks up the FT frequency-to-m/z conversion
// parameters for a scan from its ScanEvent template.
func (f *File) conversionParams(entry *ScanIndexEntry) []float64 {
	events := f.ScanEvents()
	if int(entry.ScanEvent) >= len(events) {
		return nil
	}
	return events[entry.ScanEvent].ConversionParams
}

// decodeScanRaw decodes a scan's packet without trailer/filter
// enrichment, used by the XIC family which only needs centroid arrays.
func (f *File) decodeScanRaw(entry *ScanIndexEntry, scanNumber uint32) (*Scan, error) {
	return decodeScan(f.buf, f.dataAddr, entry, scanNumber, f.conversionParams(entry))
}

// Scan decodes and enriches a single scan by scan number.
func (f *File) Scan(scanNumber uint32) (*Scan, error) {
	idx, entry, err := f.lookupScan(scanNumber)
	if err != nil {
		return nil, err
	}
	scan, err := f.decodeScanRaw(entry, scanNumber)
	if err != nil {
		return nil, err
	}
	f.enrichScan(scan, idx)
	return scan, nil
}

func (f *File) lookupScan(scanNumber uint32) (uint32, *ScanIndexEntry, error) {
	if scanNumber < f.runHeader.FirstScan {
		return 0, nil, ErrScanOutOfRange(scanNumber)
	}
	idx := scanNumber - f.runHeader.FirstScan
	if int(idx) >= len(f.scanIndex) {
		return 0, nil, ErrScanOutOfRange(scanNumber)
	}
	return idx, &f.scanIndex[idx], nil
}

// ScansRange decodes every scan in [first, last], fanning out over a
// bounded worker pool: results are written into a pre-sized slice
// indexed by position, so output order always matches input order
// regardless of which worker finishes first.
func (f *File) ScansRange(first, last uint32) ([]*Scan, error) {
	if last < first {
		return nil, nil
	}
	n := int(last-first) + 1
	results := make([]*Scan, n)
	errs := make([]error, n)

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				scanNumber := first + uint32(i)
				scan, err := f.Scan(scanNumber)
				results[i], errs[i] = scan, err
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// TIC returns the total-ion-current chromatogram.
func (f *File) TIC() Chromatogram { return BuildTIC(f.scanIndex) }

// BPC returns the base-peak chromatogram.
func (f *File) BPC() Chromatogram { return BuildBPC(f.scanIndex) }

// XIC extracts an extracted-ion chromatogram over every scan,
// regardless of MS level.
func (f *File) XIC(mz, ppm float64) (Chromatogram, error) {
	return XIC(f.buf, f.dataAddr, f.scanIndex, mz, ppm)
}

// XICMS1 extracts an extracted-ion chromatogram restricted to MS1 scans.
func (f *File) XICMS1(mz, ppm float64) (Chromatogram, error) {
	return XICMS1(f.buf, f.dataAddr, f.scanIndex, f.msLevels(), mz, ppm)
}

// BatchXICMS1 extracts K extracted-ion chromatograms over MS1 scans in
// a single decode pass per scan.
func (f *File) BatchXICMS1(targets []XICTarget) ([]Chromatogram, error) {
	return BatchXICMS1(f.buf, f.dataAddr, f.scanIndex, f.msLevels(), targets)
}

// msLevels derives a per-scan MS-level array from trailer metadata (the
// "Master Scan Number" field: nonzero means the scan is MS2+), falling
// back to the scan event template's preamble where no trailer is
// available.
func (f *File) msLevels() []MsLevel {
	levels := make([]MsLevel, len(f.scanIndex))
	events := f.ScanEvents()
	for i := range f.scanIndex {
		levels[i] = MsLevel1
		if f.trailerLayout != nil && f.trailerLayout.MasterScanIdx >= 0 {
			if master, err := f.trailerLayout.ReadI32(f.buf, uint32(i), f.trailerLayout.MasterScanIdx); err == nil {
				if master > 0 {
					levels[i] = MsLevel2
				}
				continue
			}
		}
		entry := &f.scanIndex[i]
		if int(entry.ScanEvent) < len(events) {
			levels[i] = events[entry.ScanEvent].Preamble.MsLevel
		}
	}
	return levels
}

// IsMS1Scan reports whether the scan at scanIdx (0-based: scanNumber -
// FirstScan) is MS1, using trailer metadata when available and
// defaulting to true (assume MS1) when MS level cannot be determined.
func (f *File) IsMS1Scan(scanIdx uint32) bool {
	if f.trailerLayout != nil {
		if f.trailerLayout.MasterScanIdx >= 0 {
			if master, err := f.trailerLayout.ReadI32(f.buf, scanIdx, f.trailerLayout.MasterScanIdx); err == nil {
				return master == 0
			}
		}
		if f.trailerLayout.FilterTextIdx >= 0 {
			if filterStr, err := f.trailerLayout.ReadString(f.buf, scanIdx, f.trailerLayout.FilterTextIdx); err == nil {
				return strings.Contains(filterStr, " ms ") || strings.Contains(filterStr, " Full ms ") || strings.HasPrefix(filterStr, "ms ")
			}
		}
	}
	return true
}

// AcquisitionType classifies the run's acquisition strategy from its
// MS2 scan events, computed once and memoized.
func (f *File) AcquisitionType() AcquisitionType {
	f.acquisitionOnce.Do(func() {
		ms2 := DeriveMs2ScanInfos(f.scanIndex, f.ScanEvents(), f.runHeader.FirstScan)
		f.acquisitionType = ClassifyAcquisition(ms2)
	})
	return f.acquisitionType
}

// IsolationWindows derives the run's distinct MS2 isolation windows.
func (f *File) IsolationWindows() []IsolationWindow {
	ms2 := DeriveMs2ScanInfos(f.scanIndex, f.ScanEvents(), f.runHeader.FirstScan)
	return DeriveIsolationWindows(ms2)
}

// enrichScan fills in MS level, polarity, precursor, and filter string
// using three strategies in order of preference: filter text from the
// trailer (most complete), trailer metadata fields (Master Scan Number),
// or the ScanEvent preamble when there is no trailer or neither trailer
// tier applies.
func (f *File) enrichScan(scan *Scan, scanIdx uint32) {
	if f.trailerLayout != nil {
		if f.enrichFromFilterText(scan, scanIdx) {
			return
		}
		if f.enrichFromTrailerFields(scan, scanIdx) {
			return
		}
	}
	f.enrichFromScanEvent(scan, scanIdx)
}

func (f *File) enrichFromFilterText(scan *Scan, scanIdx uint32) bool {
	if f.trailerLayout.FilterTextIdx < 0 {
		return false
	}
	filterStr, err := f.trailerLayout.ReadString(f.buf, scanIdx, f.trailerLayout.FilterTextIdx)
	if err != nil || filterStr == "" {
		return false
	}

	filter := ParseFilter(filterStr)
	scan.MsLevel = filter.MsLevel
	scan.Polarity = filter.Polarity
	scan.FilterString = filterStr

	if filter.MsLevel != MsLevel1 {
		scan.Precursor = f.buildPrecursorInfo(scanIdx, &filter)
	}
	return true
}

func (f *File) enrichFromTrailerFields(scan *Scan, scanIdx uint32) bool {
	if f.trailerLayout.MasterScanIdx < 0 {
		return false
	}
	master, err := f.trailerLayout.ReadI32(f.buf, scanIdx, f.trailerLayout.MasterScanIdx)
	if err != nil {
		return false
	}
	if master > 0 {
		scan.MsLevel = MsLevel2
		scan.Precursor = f.buildPrecursorInfoFromTrailer(scanIdx)
	}
	return true
}

func (f *File) enrichFromScanEvent(scan *Scan, scanIdx uint32) {
	if int(scanIdx) >= len(f.scanIndex) {
		return
	}
	entry := &f.scanIndex[scanIdx]
	events := f.ScanEvents()
	if int(entry.ScanEvent) >= len(events) {
		return
	}
	event := &events[entry.ScanEvent]

	scan.MsLevel = event.Preamble.MsLevel
	scan.Polarity = event.Preamble.Polarity

	if scan.MsLevel != MsLevel1 && len(event.Reactions) > 0 {
		rxn := event.Reactions[len(event.Reactions)-1]
		activation := rxn.ActivationTypeValue().String()
		var isolationWidth *float64
		if rxn.IsolationWidth > 0 {
			w := rxn.IsolationWidth
			isolationWidth = &w
		}
		ce := rxn.CollisionEnergy
		scan.Precursor = &PrecursorInfo{
			MZ:              rxn.PrecursorMZ,
			IsolationWidth:  isolationWidth,
			ActivationType:  activation,
			CollisionEnergy: &ce,
		}
	}
}

// buildPrecursorInfoFromTrailer builds precursor info from trailer
// metadata fields alone (no filter string available): Monoisotopic M/Z,
// Charge State, and MS2 Isolation Width, read directly from the record.
func (f *File) buildPrecursorInfoFromTrailer(scanIdx uint32) *PrecursorInfo {
	l := f.trailerLayout

	var monoMZ *float64
	if l.MonoMZIdx >= 0 {
		if v, err := l.ReadF64(f.buf, scanIdx, l.MonoMZIdx); err == nil && v > 0 {
			monoMZ = &v
		}
	}
	if monoMZ == nil {
		return nil
	}

	var charge *int32
	if l.ChargeStateIdx >= 0 {
		if v, err := l.ReadI32(f.buf, scanIdx, l.ChargeStateIdx); err == nil && v != 0 {
			charge = &v
		}
	}

	var isolationWidth *float64
	if l.IsolationWidthIdx >= 0 {
		if v, err := l.ReadF64(f.buf, scanIdx, l.IsolationWidthIdx); err == nil && v > 0 && v < 100.0 {
			isolationWidth = &v
		}
	}

	return &PrecursorInfo{MZ: *monoMZ, Charge: charge, IsolationWidth: isolationWidth}
}

// buildPrecursorInfo builds precursor info from trailer fields and the
// parsed filter string, preferring the trailer's monoisotopic m/z (more
// accurate) over the filter string's m/z.
func (f *File) buildPrecursorInfo(scanIdx uint32, filter *ScanFilter) *PrecursorInfo {
	l := f.trailerLayout

	var monoMZ *float64
	if l.MonoMZIdx >= 0 {
		if v, err := l.ReadF64(f.buf, scanIdx, l.MonoMZIdx); err == nil && v > 0 {
			monoMZ = &v
		}
	}

	var charge *int32
	if l.ChargeStateIdx >= 0 {
		if v, err := l.ReadI32(f.buf, scanIdx, l.ChargeStateIdx); err == nil && v != 0 {
			charge = &v
		}
	}

	var isolationWidth *float64
	if l.IsolationWidthIdx >= 0 {
		if v, err := l.ReadF64(f.buf, scanIdx, l.IsolationWidthIdx); err == nil && v > 0 {
			isolationWidth = &v
		}
	}

	mz := 0.0
	switch {
	case monoMZ != nil:
		mz = *monoMZ
	case filter.Precursor != nil:
		mz = filter.Precursor.MZ
	default:
		return nil
	}

	info := &PrecursorInfo{MZ: mz, Charge: charge, IsolationWidth: isolationWidth}
	if filter.Precursor != nil {
		info.ActivationType = filter.Precursor.Activation
		ce := filter.Precursor.CollisionEnergy
		info.CollisionEnergy = &ce
	}
	return info
}
