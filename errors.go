// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the parsing pipeline. Use errors.Is to test
// against these; ErrUnsupportedVersion, ErrStreamNotFound and
// ErrScanOutOfRange are constructors since they carry context.
var (
	// ErrNotRawFile is returned when the Finnigan magic cannot be located
	// inside the OLE2 stream.
	ErrNotRawFile = errors.New("not a valid Thermo RAW file (Finnigan magic not found)")

	// ErrNoControllers describes a file whose RawFileInfo names no data
	// controller, i.e. the acquisition never wrote any scan data. Open
	// does not return this value: it reports that case as a
	// *StreamNotFoundError named "no data controllers".
	ErrNoControllers = errors.New("file has no data controllers (empty/blank acquisition)")

	// ErrOutsideBoundary is returned when a read would extend past the end
	// of the file image.
	ErrOutsideBoundary = errors.New("reading data outside file boundary")
)

// UnsupportedVersionError is returned when the Finnigan stream declares a
// version outside [MinSupportedVersion, MaxSupportedVersion].
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported RAW file version: %d", e.Version)
}

// ErrUnsupportedVersion builds an UnsupportedVersionError.
func ErrUnsupportedVersion(version uint32) error {
	return &UnsupportedVersionError{Version: version}
}

// StreamNotFoundError is returned when an expected stream or structure
// could not be located within the search window the format allows.
type StreamNotFoundError struct {
	Name string
}

func (e *StreamNotFoundError) Error() string {
	return fmt.Sprintf("stream not found: %s", e.Name)
}

// ErrStreamNotFound builds a StreamNotFoundError.
func ErrStreamNotFound(name string) error {
	return &StreamNotFoundError{Name: name}
}

// ScanOutOfRangeError is returned when a requested scan number falls
// outside [FirstScan, LastScan].
type ScanOutOfRangeError struct {
	ScanNumber uint32
}

func (e *ScanOutOfRangeError) Error() string {
	return fmt.Sprintf("scan %d out of range", e.ScanNumber)
}

// ErrScanOutOfRange builds a ScanOutOfRangeError.
func ErrScanOutOfRange(scanNumber uint32) error {
	return &ScanOutOfRangeError{ScanNumber: scanNumber}
}

// DecodeError wraps a failure to decode a scan's packet data at a given
// byte offset, mirroring RawError::ScanDecodeError.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode scan data at offset %d: %s", e.Offset, e.Reason)
}

// BoundsError mirrors the bounds-check message shape of BinaryReader's
// check_remaining, and of the teacher's structUnpack boundary check.
type BoundsError struct {
	Op        string
	Want      int
	Offset    int64
	Remaining int
	Size      int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("%s: need %d bytes at offset %d, but only %d remaining (file size: %d)",
		e.Op, e.Want, e.Offset, e.Remaining, e.Size)
}

// Is lets errors.Is(err, ErrOutsideBoundary) match any BoundsError, the way
// the teacher collapses every boundary failure onto one sentinel.
func (e *BoundsError) Is(target error) bool {
	return target == ErrOutsideBoundary
}

// CorruptedDataError wraps a generic structural inconsistency detected
// during parsing (failed self-referential address recovery, an
// out-of-range count field, a record stride that doesn't validate, etc).
type CorruptedDataError struct {
	Component string
	Offset    int64
	Version   *uint32
	Reason    string
}

func (e *CorruptedDataError) Error() string {
	if e.Version != nil {
		return fmt.Sprintf("%s parsing failed at offset %d (v%d): %s",
			e.Component, e.Offset, *e.Version, e.Reason)
	}
	return fmt.Sprintf("%s parsing failed at offset %d: %s", e.Component, e.Offset, e.Reason)
}

// wrapParseError mirrors original_source's parse_error helper, wrapping a
// component's parse failure with its offset and (if known) file version.
func wrapParseError(component string, offset int64, version *uint32, err error) error {
	return &CorruptedDataError{Component: component, Offset: offset, Version: version, Reason: err.Error()}
}
