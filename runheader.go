// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "encoding/binary"

// RunHeader is the primary index structure for one instrument controller:
// the scan range, time/mass range, and the addresses of ScanIndex,
// the scan data stream, and the two trailer streams.
type RunHeader struct {
	FirstScan, LastScan                                   uint32
	StartTime, EndTime, LowMass, HighMass, MaxIonCurrent   float64
	ScanIndexAddr32, DataAddr32                            uint32
	ScanTrailerAddr32, ScanParamsAddr32                    uint32
	ScanIndexAddr64, DataAddr64                            *uint64
	ScanTrailerAddr64, ScanParamsAddr64                    *uint64
	DeviceName, Model, SerialNumber, SoftwareVersion       string
	SampleTag1, SampleTag2, SampleTag3                     string
	InstrumentType                                         int32
	StartOffset, EndOffset                                 uint64
}

// ScanIndexAddr returns the best available ScanIndex address, preferring
// the 64-bit field when present.
func (rh *RunHeader) ScanIndexAddr() uint64 {
	if rh.ScanIndexAddr64 != nil {
		return *rh.ScanIndexAddr64
	}
	return uint64(rh.ScanIndexAddr32)
}

// DataAddr returns the best available scan data stream address.
func (rh *RunHeader) DataAddr() uint64 {
	if rh.DataAddr64 != nil {
		return *rh.DataAddr64
	}
	return uint64(rh.DataAddr32)
}

// ScanTrailerAddr returns the best available scan-trailer-events address.
func (rh *RunHeader) ScanTrailerAddr() uint64 {
	if rh.ScanTrailerAddr64 != nil {
		return *rh.ScanTrailerAddr64
	}
	return uint64(rh.ScanTrailerAddr32)
}

// ScanParamsAddr returns the best available TrailerExtra (scan event
// params) address.
func (rh *RunHeader) ScanParamsAddr() uint64 {
	if rh.ScanParamsAddr64 != nil {
		return *rh.ScanParamsAddr64
	}
	return uint64(rh.ScanParamsAddr32)
}

// NScans returns LastScan-FirstScan+1, or 0 if the range is inverted.
func (rh *RunHeader) NScans() uint32 {
	if rh.LastScan >= rh.FirstScan {
		return rh.LastScan - rh.FirstScan + 1
	}
	return 0
}

// parseRunHeader reads a RunHeader starting at offset within data.
//
// The area between the fixed 88-byte SampleInfo prefix and the 64-bit
// address block (v64+) holds variable-size fields (sample tags, filename
// strings, unknown padding) whose sizes differ across instrument types.
// Rather than guess field widths, findAddressBlock exploits a
// self-referential invariant: the address block's own RunHeaderPos field
// equals this RunHeader's start address, so scanning for that value as an
// int64 locates the block regardless of what lies between.
func parseRunHeader(data []byte, offset uint64, version uint32) (*RunHeader, error) {
	r := ReaderAt(data, offset)

	if _, err := r.ReadU32(); err != nil { // revisionAndPad
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // datasetID
		return nil, err
	}
	firstScan, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	lastScan, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // instLogLength
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // errorLogLength
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // fileFlag
		return nil, err
	}

	scanIndexAddr32, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	dataAddr32, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // instLogAddr32
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // errorLogAddr32
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // maxPacketAndPad
		return nil, err
	}

	maxIonCurrent, err := r.ReadF64()
	if err != nil {
		return nil, err
	}
	lowMass, err := r.ReadF64()
	if err != nil {
		return nil, err
	}
	highMass, err := r.ReadF64()
	if err != nil {
		return nil, err
	}
	startTime, err := r.ReadF64()
	if err != nil {
		return nil, err
	}
	endTime, err := r.ReadF64()
	if err != nil {
		return nil, err
	}

	var scanIndexAddr64, dataAddr64, scanTrailerAddr64, scanParamsAddr64 *uint64
	var scanTrailerAddr32, scanParamsAddr32 uint32
	var instrumentType int32
	var sampleTag1, sampleTag2, sampleTag3 string

	if Uses64BitAddresses(version) {
		searchFrom := uint64(r.Position())
		addrBlockStart, err := findAddressBlock(data, searchFrom, offset)
		if err != nil {
			return nil, err
		}
		r.SetPosition(int64(addrBlockStart))

		v, err := r.ReadU64() // SpectPos
		if err != nil {
			return nil, err
		}
		scanIndexAddr64 = &v

		v2, err := r.ReadU64() // PacketPos
		if err != nil {
			return nil, err
		}
		dataAddr64 = &v2

		if _, err := r.ReadU64(); err != nil { // StatusLogPos
			return nil, err
		}
		if _, err := r.ReadU64(); err != nil { // ErrorLogPos
			return nil, err
		}
		if _, err := r.ReadU64(); err != nil { // RunHeaderPos
			return nil, err
		}

		v3, err := r.ReadU64() // TrailerScanEventsPos
		if err != nil {
			return nil, err
		}
		scanTrailerAddr64 = &v3

		v4, err := r.ReadU64() // TrailerExtraPos
		if err != nil {
			return nil, err
		}
		scanParamsAddr64 = &v4

		if err := r.Skip(16); err != nil { // VirtualControllerInfoStruct
			return nil, err
		}
		if err := r.Skip(72); err != nil { // Extra0..5
			return nil, err
		}

		if version >= 66 {
			instrumentType, err = r.ReadI32()
			if err != nil {
				return nil, err
			}
		}
	} else {
		if err := r.Skip(56); err != nil { // unknown_area
			return nil, err
		}

		sampleTag1, err = r.ReadUTF16Fixed(88)
		if err != nil {
			return nil, err
		}
		sampleTag2, err = r.ReadUTF16Fixed(40)
		if err != nil {
			return nil, err
		}
		sampleTag3, err = r.ReadUTF16Fixed(320)
		if err != nil {
			return nil, err
		}

		for i := 0; i < 13; i++ {
			if err := r.Skip(520); err != nil {
				return nil, err
			}
		}

		if _, err := r.ReadF64(); err != nil { // unknownDouble1
			return nil, err
		}
		if _, err := r.ReadF64(); err != nil { // unknownDouble2
			return nil, err
		}

		scanTrailerAddr32, err = r.ReadU32()
		if err != nil {
			return nil, err
		}
		scanParamsAddr32, err = r.ReadU32()
		if err != nil {
			return nil, err
		}
		if err := r.Skip(8); err != nil { // unknown_lengths
			return nil, err
		}
		if _, err := r.ReadU32(); err != nil { // nSegments
			return nil, err
		}
		if err := r.Skip(16); err != nil { // unknown4..7
			return nil, err
		}
		if _, err := r.ReadU32(); err != nil { // ownAddr32
			return nil, err
		}
	}

	deviceName, _ := r.ReadPascalString()
	model, _ := r.ReadPascalString()
	serialNumber, _ := r.ReadPascalString()
	softwareVersion, _ := r.ReadPascalString()

	pascalTag1, _ := r.ReadPascalString()
	pascalTag2, _ := r.ReadPascalString()
	pascalTag3, _ := r.ReadPascalString()
	_, _ = r.ReadPascalString() // pascalTag4, unused

	if version >= 64 {
		sampleTag1 = pascalTag1
		sampleTag2 = pascalTag2
		sampleTag3 = pascalTag3
	}

	return &RunHeader{
		FirstScan: firstScan, LastScan: lastScan,
		StartTime: startTime, EndTime: endTime,
		LowMass: lowMass, HighMass: highMass, MaxIonCurrent: maxIonCurrent,
		ScanIndexAddr32: scanIndexAddr32, DataAddr32: dataAddr32,
		ScanTrailerAddr32: scanTrailerAddr32, ScanParamsAddr32: scanParamsAddr32,
		ScanIndexAddr64: scanIndexAddr64, DataAddr64: dataAddr64,
		ScanTrailerAddr64: scanTrailerAddr64, ScanParamsAddr64: scanParamsAddr64,
		DeviceName: deviceName, Model: model, SerialNumber: serialNumber, SoftwareVersion: softwareVersion,
		SampleTag1: sampleTag1, SampleTag2: sampleTag2, SampleTag3: sampleTag3,
		InstrumentType: instrumentType,
		StartOffset:    offset,
		EndOffset:      uint64(r.Position()),
	}, nil
}

// findAddressBlock locates the start of the 64-bit address block: 7
// consecutive int64 fields (SpectPos, PacketPos, StatusLogPos,
// ErrorLogPos, RunHeaderPos, TrailerScanEventsPos, TrailerExtraPos)
// followed by a 16-byte VirtualControllerInfoStruct whose Offset also
// equals runHeaderOffset. Two interpretations of a byte match are tried:
// RunHeaderPos at block+32 (the 5th i64), or the VCI's Offset at
// block+64 (for files where RunHeaderPos itself is zero).
func findAddressBlock(data []byte, searchFrom, runHeaderOffset uint64) (uint64, error) {
	var targetBytes [8]byte
	binary.LittleEndian.PutUint64(targetBytes[:], runHeaderOffset)
	fileSize := uint64(len(data))

	searchStart := int(searchFrom)
	searchEnd := int(searchFrom + 8192)
	if searchEnd > len(data) {
		searchEnd = len(data)
	}

	for pos := searchStart; pos+8 <= searchEnd; pos += 4 {
		if string(data[pos:pos+8]) != string(targetBytes[:]) {
			continue
		}

		if pos >= 32 {
			candidate := pos - 32
			if candidate >= searchStart && candidate+56 <= len(data) &&
				validateAddressBlock(data, candidate, fileSize) {
				return uint64(candidate), nil
			}
		}

		if pos >= 64 {
			candidate := pos - 64
			if candidate >= searchStart && candidate+72 <= len(data) &&
				validateAddressBlockWithVCI(data, candidate, fileSize) {
				return uint64(candidate), nil
			}
		}
	}

	return 0, &CorruptedDataError{
		Component: "RunHeader",
		Offset:    int64(searchFrom),
		Reason: "could not locate 64-bit address block (RunHeaderPos=" +
			itoa(runHeaderOffset) + " not found in search range " +
			itoa(uint64(searchStart)) + ".." + itoa(uint64(searchEnd)) + ")",
	}
}

// validateAddressBlock checks that the first two int64s of a candidate
// address block (SpectPos, PacketPos) are plausible file offsets.
func validateAddressBlock(data []byte, blockStart int, fileSize uint64) bool {
	spect := binary.LittleEndian.Uint64(data[blockStart : blockStart+8])
	packet := binary.LittleEndian.Uint64(data[blockStart+8 : blockStart+16])
	return spect > 0 && spect < fileSize && packet > 0 && packet < fileSize
}

// validateAddressBlockWithVCI additionally requires the VirtualControllerInfoStruct
// at blockStart+56 to hold a plausible DeviceType (0-5) and DeviceIndex (0-7).
func validateAddressBlockWithVCI(data []byte, blockStart int, fileSize uint64) bool {
	spect := binary.LittleEndian.Uint64(data[blockStart : blockStart+8])
	packet := binary.LittleEndian.Uint64(data[blockStart+8 : blockStart+16])
	if !((spect > 0 && spect < fileSize) || (packet > 0 && packet < fileSize)) {
		return false
	}
	vciStart := blockStart + 56
	deviceType := int32(binary.LittleEndian.Uint32(data[vciStart : vciStart+4]))
	deviceIndex := int32(binary.LittleEndian.Uint32(data[vciStart+4 : vciStart+8]))
	return deviceType >= 0 && deviceType <= 5 && deviceIndex >= 0 && deviceIndex <= 7
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
