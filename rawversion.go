// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

// RAW file version detection and layout sizing.
//
// Thermo RAW files have version numbers typically in the range v57-v66.
// The version determines the exact layout of internal structures:
//
//   - v64: 64-bit addresses, VirtualControllerInfoStruct, RunHeader extended
//     offsets.
//   - v65: ScanIndexEntry gains CycleNumber (84 -> 88 bytes with padding),
//     ScanEventInfoStruct gains new filter flags (128 -> 132 bytes),
//     RawFileInfo gains BlobOffset/BlobSize, ScanEvent gains a Name field,
//     Reaction gains a precursor mass range.
//   - v66: RunHeader gains InstrumentType, Reaction gains
//     IsolationWidthOffset (48 -> 56 bytes).
const (
	// MinSupportedVersion is the lowest Finnigan stream version this
	// package parses.
	MinSupportedVersion uint32 = 57
	// MaxSupportedVersion is the highest Finnigan stream version this
	// package parses.
	MaxSupportedVersion uint32 = 66

	// FinniganMagic is the little-endian magic word opening the Finnigan
	// stream.
	FinniganMagic uint16 = 0xA101
)

// IsSupportedVersion reports whether version falls within
// [MinSupportedVersion, MaxSupportedVersion].
func IsSupportedVersion(version uint32) bool {
	return version >= MinSupportedVersion && version <= MaxSupportedVersion
}

// ScanIndexEntrySize returns the on-disk size, in bytes, of a single
// ScanIndexEntry for the given file version.
//
//   - v65+: 88 bytes (gains CycleNumber + 4 bytes of struct padding).
//   - v64:  80 bytes (gains the 64-bit DataOffset).
//   - v<64: 72 bytes (32-bit DataOffset only).
func ScanIndexEntrySize(version uint32) int {
	switch {
	case version >= 65:
		return 88
	case version >= 64:
		return 80
	default:
		return 72
	}
}

// Uses64BitAddresses reports whether version stores RunHeader/ScanIndex
// addresses as 64-bit fields.
func Uses64BitAddresses(version uint32) bool {
	return version >= 64
}

// ScanEventPreambleSize returns the on-disk size, in bytes, of a
// ScanEventInfoStruct for the given file version.
func ScanEventPreambleSize(version uint32) int {
	switch {
	case version >= 65:
		return 132
	case version >= 63:
		return 128
	case version >= 62:
		return 120
	case version >= 57:
		return 80
	default:
		return 41
	}
}

// ReactionSize returns the on-disk size, in bytes, of a single
// MsReactionStruct for the given file version.
func ReactionSize(version uint32) int {
	switch {
	case version >= 66:
		return 56
	case version >= 65:
		return 48
	case version >= 31:
		return 32
	default:
		return 24
	}
}
