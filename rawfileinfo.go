// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "fmt"

// maxVCIEntries is the fixed-size array length of both the legacy and
// the v64+ VirtualControllerInfo tables.
const maxVCIEntries = 64

// VirtualControllerInfo names one acquisition sub-system (MS, UV, pump...)
// and the absolute file offset of its RunHeader.
type VirtualControllerInfo struct {
	DeviceType  int32
	DeviceIndex int32
	Offset      int64
}

func (v VirtualControllerInfo) isZero() bool {
	return v.DeviceType == 0 && v.DeviceIndex == 0 && v.Offset == 0
}

// isValidController reports whether v plausibly names a real controller
// whose RunHeader lies inside the file.
func (v VirtualControllerInfo) isValidController(fileSize int64) bool {
	return v.DeviceType >= 0 && v.DeviceType <= 5 && v.Offset > 4096 && v.Offset < fileSize
}

// isValidControllerStrict additionally bounds DeviceIndex, used by the
// VCI-only fallback validator which doesn't have an acquisition date to
// lean on.
func (v VirtualControllerInfo) isValidControllerStrict(fileSize int64) bool {
	return v.DeviceType >= 0 && v.DeviceType <= 5 &&
		v.DeviceIndex >= 0 && v.DeviceIndex <= 7 &&
		v.Offset > 4096 && v.Offset < fileSize
}

// RawFileInfo is the second structure in the Finnigan stream: an
// acquisition timestamp, the virtual controller table (one entry per
// acquired data stream: MS, UV, pump pressure, ...), and a handful of
// free-text headings.
type RawFileInfo struct {
	Year, Month, Day             uint16
	Hour, Minute, Second         uint16
	Millisecond                  uint16
	Controllers                  []VirtualControllerInfo
	NControllers                 uint32
	Headings                     []string
	BlobOffset                   int64
	BlobSize                     uint32
	EndOffset                    uint64
}

// parseRawFileInfo reads a RawFileInfo starting at offset within data.
func parseRawFileInfo(data []byte, offset uint64, version uint32) (*RawFileInfo, error) {
	r := ReaderAt(data, offset)

	if _, err := r.ReadU32(); err != nil { // methodFilePresent
		return nil, err
	}

	year, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	month, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU16(); err != nil { // dayOfWeek
		return nil, err
	}
	day, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	hour, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	minute, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	second, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	millisecond, err := r.ReadU16()
	if err != nil {
		return nil, err
	}

	if _, err := r.ReadU32(); err != nil { // isInAcquisition
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // dataAddr32
		return nil, err
	}
	nControllers, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // nControllers2
		return nil, err
	}

	oldVCI := make([]VirtualControllerInfo, maxVCIEntries)
	for i := range oldVCI {
		deviceType, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		deviceIndex, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		off, err := r.ReadI32()
		if err != nil {
			return nil, err
		}
		oldVCI[i] = VirtualControllerInfo{DeviceType: deviceType, DeviceIndex: deviceIndex, Offset: int64(off)}
	}

	controllers := oldVCI

	var blobOffset int64
	var blobSize uint32

	if Uses64BitAddresses(version) {
		if err := r.Skip(4); err != nil { // alignment padding
			return nil, err
		}
		if _, err := r.ReadU64(); err != nil { // dataAddr64
			return nil, err
		}

		newVCI := make([]VirtualControllerInfo, maxVCIEntries)
		anyNewValid := false
		for i := range newVCI {
			deviceType, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			deviceIndex, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			off, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			newVCI[i] = VirtualControllerInfo{DeviceType: deviceType, DeviceIndex: deviceIndex, Offset: int64(off)}
			if newVCI[i].DeviceType >= 0 && newVCI[i].DeviceType <= 5 && newVCI[i].Offset > 0 {
				anyNewValid = true
			}
		}

		if anyNewValid {
			controllers = newVCI
		} else {
			anyOldValid := false
			for _, v := range oldVCI {
				if v.DeviceType >= 0 && v.DeviceType <= 5 && v.Offset > 0 {
					anyOldValid = true
					break
				}
			}
			if anyOldValid {
				controllers = oldVCI
			} else {
				controllers = newVCI
			}
		}

		if version >= 65 {
			off, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			blobOffset = int64(off)
			blobSize, err = r.ReadU32()
			if err != nil {
				return nil, err
			}
		}
	}

	var headings []string
	for i := 0; i < 5; i++ {
		h, err := r.ReadPascalString()
		if err != nil {
			break
		}
		headings = append(headings, h)
	}
	if version >= 7 {
		if h, err := r.ReadPascalString(); err == nil {
			headings = append(headings, h)
		}
	}

	return &RawFileInfo{
		Year: year, Month: month, Day: day,
		Hour: hour, Minute: minute, Second: second,
		Millisecond:  millisecond,
		Controllers:  controllers,
		NControllers: nControllers,
		Headings:     headings,
		BlobOffset:   blobOffset,
		BlobSize:     blobSize,
		EndOffset:    uint64(r.Position()),
	}, nil
}

// RunHeaderAddr returns the absolute file offset of the primary MS
// RunHeader: the first controller with DeviceType==0 and a positive
// offset, falling back to the first controller with any positive offset,
// or 0 if none qualify.
func (info *RawFileInfo) RunHeaderAddr() uint64 {
	for _, c := range info.Controllers {
		if c.DeviceType == 0 && c.Offset > 0 {
			return uint64(c.Offset)
		}
	}
	for _, c := range info.Controllers {
		if c.Offset > 0 {
			return uint64(c.Offset)
		}
	}
	return 0
}

// Controller looks up a controller by (deviceType, deviceIndex).
func (info *RawFileInfo) Controller(deviceType, deviceIndex int32) (VirtualControllerInfo, bool) {
	for _, c := range info.Controllers {
		if c.DeviceType == deviceType && c.DeviceIndex == deviceIndex {
			return c, true
		}
	}
	return VirtualControllerInfo{}, false
}

// HasValidControllers validates the parsed VCI table against fileSize,
// first trying the strict validator (which leans on the acquisition
// date and NControllers agreeing with the table), then falling back to a
// VCI-only check that ignores both.
func (info *RawFileInfo) HasValidControllers(fileSize int64) bool {
	if info.NControllers > 16 {
		return false
	}
	if info.hasValidControllersStrict(fileSize) {
		return true
	}
	return info.hasValidControllersVCIOnly(fileSize)
}

func (info *RawFileInfo) hasValidControllersStrict(fileSize int64) bool {
	if info.Year < 2000 || info.Year > 2100 {
		return false
	}
	if info.Month < 1 || info.Month > 12 {
		return false
	}
	if info.Day < 1 || info.Day > 31 {
		return false
	}
	if info.Hour > 23 || info.Minute > 59 || info.Second > 59 {
		return false
	}
	if int(info.NControllers) > len(info.Controllers) {
		return false
	}

	n := int(info.NControllers)
	if n == 0 {
		for i := 0; i < 16 && i < len(info.Controllers); i++ {
			if !info.Controllers[i].isZero() {
				return false
			}
		}
		return true
	}

	for i := 0; i < n; i++ {
		if !info.Controllers[i].isValidController(fileSize) {
			return false
		}
	}
	for i := n; i < n+4 && i < len(info.Controllers); i++ {
		if !info.Controllers[i].isZero() {
			return false
		}
	}
	return true
}

func (info *RawFileInfo) hasValidControllersVCIOnly(fileSize int64) bool {
	validCount, zeroCount := 0, 0
	for _, c := range info.Controllers {
		switch {
		case c.isZero():
			zeroCount++
		case c.isValidControllerStrict(fileSize):
			validCount++
		default:
			return false
		}
	}
	return validCount >= 1 && validCount+zeroCount == len(info.Controllers)
}

// AcquisitionDate formats the acquisition timestamp as
// "YYYY-MM-DDTHH:MM:SS".
func (info *RawFileInfo) AcquisitionDate() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d",
		info.Year, info.Month, info.Day, info.Hour, info.Minute, info.Second)
}

// findRawFileInfo locates and parses RawFileInfo near start: it is tried
// first exactly at start, and if that candidate fails HasValidControllers,
// the search scans forward in 2-byte steps (not 4: .NET blobs preceding
// RawFileInfo have variable size with no alignment guarantee) up to
// start+16384, accepting the first candidate that validates.
func findRawFileInfo(data []byte, start uint64, version uint32) (*RawFileInfo, uint64, error) {
	fileSize := int64(len(data))

	if info, err := parseRawFileInfo(data, start, version); err == nil && info.HasValidControllers(fileSize) {
		return info, start, nil
	}

	limit := start + 16384
	if limit > uint64(len(data)) {
		limit = uint64(len(data))
	}
	for off := start; off < limit; off += 2 {
		info, err := parseRawFileInfo(data, off, version)
		if err != nil {
			continue
		}
		if info.HasValidControllers(fileSize) {
			return info, off, nil
		}
	}
	return nil, 0, ErrStreamNotFound("RawFileInfo: no valid VCI controllers found within search range")
}
