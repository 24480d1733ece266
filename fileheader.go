// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "fmt"

// fileHeaderSize is the fixed on-disk size of a FileHeader, in bytes:
// 2 (magic) + 18 (signature) + 16 (4 unknown u32) + 4 (version) +
// 112 (audit_start) + 112 (audit_end) + 4 (unknown5) + 60 (skip) +
// 2056 (tag) = 2384.
const fileHeaderSize = 2384

// filetimeUnixDiff is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeUnixDiff uint64 = 116_444_736_000_000_000

// auditTagSize is the on-disk size of an AuditTag: an 8-byte FILETIME,
// a 100-byte fixed UTF-16LE string, and a 4-byte unknown trailer.
const auditTagSize = 112

// FileHeader is the first structure in the Finnigan stream: a magic word,
// a "Finnigan" signature, the format version, two audit-trail timestamps
// (creation/modification), the creation user name, and a free text tag.
// The modification audit tag's user name is read but not kept.
type FileHeader struct {
	Magic            uint16
	Signature        string
	Version          uint32
	CreationTime     uint64
	CreationUser     string
	ModificationTime uint64
	Tag              string
}

// parseFileHeader reads a FileHeader starting at offset within data.
func parseFileHeader(data []byte, offset uint64) (*FileHeader, error) {
	r := ReaderAt(data, offset)

	magic, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	signature, err := r.ReadUTF16Fixed(18)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 4; i++ {
		if _, err := r.ReadU32(); err != nil {
			return nil, err
		}
	}
	version, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	creationTime, creationUser, err := readAuditTag(r)
	if err != nil {
		return nil, err
	}
	modificationTime, _, err := readAuditTag(r)
	if err != nil {
		return nil, err
	}

	if _, err := r.ReadU32(); err != nil { // unknown5
		return nil, err
	}
	if err := r.Skip(60); err != nil {
		return nil, err
	}
	tag, err := r.ReadUTF16Fixed(2056)
	if err != nil {
		return nil, err
	}

	return &FileHeader{
		Magic:            magic,
		Signature:        signature,
		Version:          version,
		CreationTime:     creationTime,
		CreationUser:     creationUser,
		ModificationTime: modificationTime,
		Tag:              tag,
	}, nil
}

// readAuditTag reads an AuditTag: an 8-byte FILETIME, a 100-byte fixed
// UTF-16LE tag string, and a 4-byte unknown trailer.
func readAuditTag(r *Reader) (filetime uint64, tag string, err error) {
	filetime, err = r.ReadU64()
	if err != nil {
		return 0, "", err
	}
	tag, err = r.ReadUTF16Fixed(100)
	if err != nil {
		return 0, "", err
	}
	if _, err = r.ReadU32(); err != nil {
		return 0, "", err
	}
	return filetime, tag, nil
}

// filetimeToString converts a Windows FILETIME (100ns ticks since
// 1601-01-01) to an ISO-8601 UTC timestamp, or "unknown" if filetime is
// zero or predates the Unix epoch.
func filetimeToString(filetime uint64) string {
	if filetime == 0 || filetime < filetimeUnixDiff {
		return "unknown"
	}
	unix100ns := filetime - filetimeUnixDiff
	unixSecs := unix100ns / 10_000_000

	days := unixSecs / 86400
	remaining := unixSecs % 86400
	hours := remaining / 3600
	minutes := (remaining % 3600) / 60
	seconds := remaining % 60

	year, month, day := daysToYMD(days)
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", year, month, day, hours, minutes, seconds)
}

// isLeapYear reports whether year is a Gregorian leap year.
func isLeapYear(year uint64) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// daysToYMD converts a count of days since the Unix epoch (1970-01-01)
// into a (year, month, day) calendar date.
func daysToYMD(days uint64) (year, month, day uint64) {
	year = 1970
	for {
		daysInYear := uint64(365)
		if isLeapYear(year) {
			daysInYear = 366
		}
		if days < daysInYear {
			break
		}
		days -= daysInYear
		year++
	}

	var monthDays []uint64
	if isLeapYear(year) {
		monthDays = []uint64{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	} else {
		monthDays = []uint64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	}

	month = 1
	for _, md := range monthDays {
		if days < md {
			break
		}
		days -= md
		month++
	}

	return year, month, days + 1
}
