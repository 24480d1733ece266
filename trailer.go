// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// TrailerExtra is the decoded set of scan-level metadata fields (charge
// state, injection time, filter text, ...) for a single scan.
type TrailerExtra map[string]string

// Trailer field type codes, empirically confirmed for v66 files: the
// active codes are Separator, BoolV66, Flag, I32, F64Alt, ASCII.
const (
	typeCodeSeparator  uint32 = 0x00
	typeCodeBool       uint32 = 0x01
	typeCodeI8         uint32 = 0x02
	typeCodeBoolV66    uint32 = 0x03
	typeCodeFlag       uint32 = 0x04
	typeCodeF32        uint32 = 0x05
	typeCodeF64        uint32 = 0x06
	typeCodeU8         uint32 = 0x07
	typeCodeI32        uint32 = 0x08
	typeCodeU32        uint32 = 0x09
	typeCodeF32Alt     uint32 = 0x0A
	typeCodeF64Alt     uint32 = 0x0B
	typeCodeASCII      uint32 = 0x0C
	typeCodeWideString uint32 = 0x0D
)

// GenericDataDescriptor is a field descriptor in the GenericDataHeader.
type GenericDataDescriptor struct {
	TypeCode uint32
	Length   uint32
	Label    string
}

// GenericDataHeader is the self-describing template for all trailer
// records: a count-prefixed array of field descriptors, followed
// immediately by the scan records themselves.
type GenericDataHeader struct {
	Descriptors   []GenericDataDescriptor
	RecordsOffset uint64
}

// fieldByteSize returns the on-disk size of a field given its type code
// and declared length.
func fieldByteSize(desc GenericDataDescriptor) int {
	switch desc.TypeCode {
	case typeCodeSeparator:
		return 0
	case typeCodeBool, typeCodeI8, typeCodeU8, typeCodeBoolV66, typeCodeFlag:
		return 1
	case typeCodeI32, typeCodeU32, typeCodeF32, typeCodeF32Alt:
		return 4
	case typeCodeF64, typeCodeF64Alt:
		return 8
	case typeCodeASCII, typeCodeWideString:
		return int(desc.Length)
	default:
		return int(desc.Length)
	}
}

// TrailerLayout is a pre-computed field layout for fast per-scan trailer
// access: cached byte offsets plus the indices of the commonly-used
// fields, so repeated lookups don't re-scan the descriptor list.
type TrailerLayout struct {
	Header             GenericDataHeader
	RecordSize         int
	FieldOffsets       []int
	FilterTextIdx      int // -1 if absent
	ChargeStateIdx     int
	MonoMZIdx          int
	InjectionTimeIdx   int
	MasterScanIdx      int
	IsolationWidthIdx  int
}

func findField(descriptors []GenericDataDescriptor, name string) int {
	for i, d := range descriptors {
		label := strings.TrimSpace(strings.TrimSuffix(d.Label, ":"))
		if strings.EqualFold(label, name) {
			return i
		}
	}
	return -1
}

// NewTrailerLayout builds a TrailerLayout from a parsed GenericDataHeader.
func NewTrailerLayout(header GenericDataHeader) *TrailerLayout {
	fieldOffsets := make([]int, len(header.Descriptors))
	offset := 0
	for i, desc := range header.Descriptors {
		fieldOffsets[i] = offset
		offset += fieldByteSize(desc)
	}

	masterScanIdx := findField(header.Descriptors, "Master Scan Number")
	if masterScanIdx == -1 {
		masterScanIdx = findField(header.Descriptors, "Master Index")
	}

	return &TrailerLayout{
		Header:            header,
		RecordSize:        offset,
		FieldOffsets:      fieldOffsets,
		FilterTextIdx:     findField(header.Descriptors, "Filter Text"),
		ChargeStateIdx:    findField(header.Descriptors, "Charge State"),
		MonoMZIdx:         findField(header.Descriptors, "Monoisotopic M/Z"),
		InjectionTimeIdx:  findField(header.Descriptors, "Ion Injection Time (ms)"),
		MasterScanIdx:     masterScanIdx,
		IsolationWidthIdx: findField(header.Descriptors, "MS2 Isolation Width"),
	}
}

// fieldOffset returns the absolute byte offset of a field within a given
// scan's record.
func (l *TrailerLayout) fieldOffset(scanIndex uint32, fieldIdx int) uint64 {
	return l.Header.RecordsOffset + uint64(scanIndex)*uint64(l.RecordSize) + uint64(l.FieldOffsets[fieldIdx])
}

// ReadF64 reads a specific field as float64, widening integer/float32
// fields as needed.
func (l *TrailerLayout) ReadF64(data []byte, scanIndex uint32, fieldIdx int) (float64, error) {
	offset := l.fieldOffset(scanIndex, fieldIdx)
	r := ReaderAt(data, offset)
	desc := l.Header.Descriptors[fieldIdx]
	switch desc.TypeCode {
	case typeCodeF64, typeCodeF64Alt:
		return r.ReadF64()
	case typeCodeF32, typeCodeF32Alt:
		v, err := r.ReadF32()
		return float64(v), err
	case typeCodeI32, typeCodeU32:
		v, err := r.ReadI32()
		return float64(v), err
	case typeCodeFlag, typeCodeBoolV66, typeCodeI8, typeCodeU8:
		v, err := r.ReadU8()
		return float64(v), err
	default:
		return 0, &CorruptedDataError{Component: "TrailerExtra", Offset: int64(offset),
			Reason: fmt.Sprintf("cannot read field %q as f64 (type_code=%#x)", desc.Label, desc.TypeCode)}
	}
}

// ReadI32 reads a specific field as int32.
func (l *TrailerLayout) ReadI32(data []byte, scanIndex uint32, fieldIdx int) (int32, error) {
	offset := l.fieldOffset(scanIndex, fieldIdx)
	r := ReaderAt(data, offset)
	desc := l.Header.Descriptors[fieldIdx]
	switch desc.TypeCode {
	case typeCodeI32:
		return r.ReadI32()
	case typeCodeU32:
		v, err := r.ReadU32()
		return int32(v), err
	case typeCodeFlag, typeCodeBoolV66, typeCodeI8, typeCodeU8:
		v, err := r.ReadU8()
		return int32(v), err
	default:
		return 0, &CorruptedDataError{Component: "TrailerExtra", Offset: int64(offset),
			Reason: fmt.Sprintf("cannot read field %q as i32 (type_code=%#x)", desc.Label, desc.TypeCode)}
	}
}

// ReadString reads a specific field as its string representation.
func (l *TrailerLayout) ReadString(data []byte, scanIndex uint32, fieldIdx int) (string, error) {
	offset := l.fieldOffset(scanIndex, fieldIdx)
	r := ReaderAt(data, offset)
	return readFieldAsString(r, l.Header.Descriptors[fieldIdx])
}

// FieldLabels returns the trimmed label of every descriptor, in order.
func (l *TrailerLayout) FieldLabels() []string {
	labels := make([]string, len(l.Header.Descriptors))
	for i, d := range l.Header.Descriptors {
		labels[i] = strings.TrimSpace(strings.TrimSuffix(d.Label, ":"))
	}
	return labels
}

// parseGenericDataHeader reads the GenericDataHeader at offset: a u32
// field count followed by that many (type_code u32, length u32, label
// PascalStringWin32) descriptors.
func parseGenericDataHeader(data []byte, offset uint64) (GenericDataHeader, error) {
	r := ReaderAt(data, offset)

	nFields, err := r.ReadU32()
	if err != nil {
		return GenericDataHeader{}, err
	}
	if nFields > 10000 {
		return GenericDataHeader{}, &CorruptedDataError{Component: "GenericDataHeader", Offset: int64(offset), Reason: "unreasonable field count"}
	}

	descriptors := make([]GenericDataDescriptor, 0, nFields)
	for i := uint32(0); i < nFields; i++ {
		typeCode, err := r.ReadU32()
		if err != nil {
			return GenericDataHeader{}, err
		}
		length, err := r.ReadU32()
		if err != nil {
			return GenericDataHeader{}, err
		}
		label, err := r.ReadPascalString()
		if err != nil {
			return GenericDataHeader{}, err
		}
		descriptors = append(descriptors, GenericDataDescriptor{TypeCode: typeCode, Length: length, Label: label})
	}

	return GenericDataHeader{Descriptors: descriptors, RecordsOffset: uint64(r.Position())}, nil
}

// validV66TypeCodes are the type codes empirically observed in v66
// GenericDataHeaders.
var validV66TypeCodes = map[uint32]bool{0x00: true, 0x03: true, 0x04: true, 0x08: true, 0x0B: true, 0x0C: true}

// findGenericDataHeader searches backward from spectPos for the
// GenericDataHeader: in v66 files it sits several KB before SpectPos in
// the data stream, not at TrailerScanEventsPos/TrailerExtraPos (which
// point to flat record arrays with no header of their own). A 4-byte
// aligned pass is tried first (n_fields is almost certainly u32-aligned),
// falling back to a byte-by-byte scan.
func findGenericDataHeader(data []byte, spectPos uint64) (GenericDataHeader, error) {
	const searchWindow = 20480
	var searchStart uint64
	if spectPos > searchWindow {
		searchStart = spectPos - searchWindow
	}
	searchEnd := spectPos

	tryAt := func(pos uint64) (GenericDataHeader, bool) {
		if pos+4 > uint64(len(data)) {
			return GenericDataHeader{}, false
		}
		nFields := binary.LittleEndian.Uint32(data[pos : pos+4])
		if nFields < 10 || nFields > 300 {
			return GenericDataHeader{}, false
		}
		header, err := parseGenericDataHeader(data, pos)
		if err != nil {
			return GenericDataHeader{}, false
		}
		if len(header.Descriptors) < 5 {
			return GenericDataHeader{}, false
		}
		for _, d := range header.Descriptors {
			if !validV66TypeCodes[d.TypeCode] {
				return GenericDataHeader{}, false
			}
		}
		return header, true
	}

	alignedStart := (searchStart + 3) &^ 3
	for pos := alignedStart; pos+4 <= searchEnd; pos += 4 {
		if header, ok := tryAt(pos); ok {
			return header, nil
		}
	}

	for pos := searchStart; pos+4 <= searchEnd; pos++ {
		if pos >= alignedStart && (pos-alignedStart)%4 == 0 {
			continue
		}
		if header, ok := tryAt(pos); ok {
			return header, nil
		}
	}

	return GenericDataHeader{}, ErrStreamNotFound("GenericDataHeader not found before SpectPos")
}

// parseTrailerExtra reads the trailer fields for one scan (scanIndex is
// 0-based: scanNumber-firstScan).
func parseTrailerExtra(data []byte, header GenericDataHeader, scanIndex uint32) (TrailerExtra, error) {
	recSize := 0
	for _, d := range header.Descriptors {
		recSize += fieldByteSize(d)
	}
	recOffset := header.RecordsOffset + uint64(scanIndex)*uint64(recSize)

	r := ReaderAt(data, recOffset)
	result := make(TrailerExtra, len(header.Descriptors))

	for _, desc := range header.Descriptors {
		label := strings.TrimSpace(strings.TrimSuffix(desc.Label, ":"))
		value, err := readFieldAsString(r, desc)
		if err != nil {
			return nil, err
		}
		result[label] = value
	}

	return result, nil
}

// readFieldAsString reads one descriptor's field and renders it as a
// string, mirroring each type code's natural text representation.
func readFieldAsString(r *Reader, desc GenericDataDescriptor) (string, error) {
	switch desc.TypeCode {
	case typeCodeSeparator:
		return "", nil
	case typeCodeBool, typeCodeBoolV66:
		v, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		if v != 0 {
			return "true", nil
		}
		return "false", nil
	case typeCodeI8:
		v, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int8(v))), nil
	case typeCodeFlag, typeCodeU8:
		v, err := r.ReadU8()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(v)), nil
	case typeCodeI32:
		v, err := r.ReadI32()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(v)), nil
	case typeCodeU32:
		v, err := r.ReadU32()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(v), 10), nil
	case typeCodeF32, typeCodeF32Alt:
		v, err := r.ReadF32()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case typeCodeF64, typeCodeF64Alt:
		v, err := r.ReadF64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case typeCodeASCII:
		b, err := r.ReadBytes(int(desc.Length))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\x00"), nil
	case typeCodeWideString:
		s, err := r.ReadUTF16Fixed(int(desc.Length))
		if err != nil {
			return "", err
		}
		if i := strings.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		return s, nil
	default:
		if err := r.Skip(fieldByteSize(desc)); err != nil {
			return "", err
		}
		return "", nil
	}
}

// parseTrailerFields returns the trimmed field labels of the
// GenericDataHeader at trailerAddr.
func parseTrailerFields(data []byte, trailerAddr uint64) ([]string, error) {
	header, err := parseGenericDataHeader(data, trailerAddr)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(header.Descriptors))
	for i, d := range header.Descriptors {
		labels[i] = strings.TrimSpace(strings.TrimSuffix(d.Label, ":"))
	}
	return labels, nil
}
