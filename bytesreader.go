// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Reader is a bounds-checked cursor over a byte slice, mirroring
// original_source's BinaryReader. Every primitive read validates enough
// bytes remain before touching the slice, returning a *BoundsError
// shaped exactly like structUnpack's boundary check in the teacher.
type Reader struct {
	data []byte
	pos  int64
}

// NewReader wraps data starting at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReaderAt wraps data starting at the given absolute offset.
func ReaderAt(data []byte, offset uint64) *Reader {
	return &Reader{data: data, pos: int64(offset)}
}

// Position returns the current cursor offset.
func (r *Reader) Position() int64 { return r.pos }

// SetPosition moves the cursor to an absolute offset, without bounds
// checking (mirroring Cursor::set_position, which is like-wise unchecked
// until the next read).
func (r *Reader) SetPosition(pos int64) { r.pos = pos }

// Remaining returns how many bytes lie between the cursor and the end of
// the buffer (0 if the cursor is already past the end).
func (r *Reader) Remaining() int {
	if r.pos >= int64(len(r.data)) {
		return 0
	}
	return len(r.data) - int(r.pos)
}

func (r *Reader) checkRemaining(need int, op string) error {
	remaining := r.Remaining()
	if remaining < need {
		return &BoundsError{Op: op, Want: need, Offset: r.pos, Remaining: remaining, Size: len(r.data)}
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.checkRemaining(1, "read_u8"); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.checkRemaining(2, "read_u16"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.checkRemaining(4, "read_u32"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadI32 reads a little-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.checkRemaining(8, "read_u64"); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadI64 reads a little-endian int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// ReadF32 reads a little-endian IEEE-754 float32.
func (r *Reader) ReadF32() (float32, error) {
	if err := r.checkRemaining(4, "read_f32"); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return math.Float32frombits(bits), nil
}

// ReadF64 reads a little-endian IEEE-754 float64.
func (r *Reader) ReadF64() (float64, error) {
	if err := r.checkRemaining(8, "read_f64"); err != nil {
		return 0, err
	}
	bits := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return math.Float64frombits(bits), nil
}

// ReadBytes reads n bytes into a freshly allocated slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.checkRemaining(n, "read_bytes"); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+int64(n)])
	r.pos += int64(n)
	return out, nil
}

// Skip advances the cursor by n bytes, bounds-checked.
func (r *Reader) Skip(n int) error {
	if err := r.checkRemaining(n, "skip"); err != nil {
		return err
	}
	r.pos += int64(n)
	return nil
}

// Slice returns a zero-copy view of the next len bytes without advancing
// the cursor, mirroring BinaryReader::slice's use in the hot decode paths
// (centroid/profile/FT-LT batch unpacking).
func (r *Reader) Slice(length int) ([]byte, error) {
	if err := r.checkRemaining(length, "slice"); err != nil {
		return nil, err
	}
	return r.data[r.pos : r.pos+int64(length)], nil
}

// ReadUTF16Fixed reads byteLen bytes of UTF-16LE and returns the decoded
// string, trimmed of trailing NUL characters.
func (r *Reader) ReadUTF16Fixed(byteLen int) (string, error) {
	raw, err := r.ReadBytes(byteLen)
	if err != nil {
		return "", err
	}
	return decodeUTF16LE(raw), nil
}

var utf16LEDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// decodeUTF16LE decodes raw little-endian UTF-16 bytes leniently (lossy on
// unpaired surrogates) and trims trailing NUL units, mirroring
// String::from_utf16_lossy(...).trim_end_matches('\0').
func decodeUTF16LE(raw []byte) string {
	// Trim to an even length; a dangling odd byte can't form a code unit.
	n := len(raw) - len(raw)%2
	decoded, err := utf16LEDecoder.Bytes(raw[:n])
	if err != nil {
		decoded = raw[:n]
	}
	s := string(decoded)
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

// SkipPascalString skips a PascalStringWin32 (an int32 character-count
// prefix followed by count*2 bytes of UTF-16LE) without allocating.
func (r *Reader) SkipPascalString() error {
	length, err := r.ReadI32()
	if err != nil {
		return err
	}
	if length < 0 {
		return &CorruptedDataError{Component: "PascalString", Offset: r.pos, Reason: fmt.Sprintf("negative length: %d", length)}
	}
	if length > 0 {
		return r.Skip(int(length) * 2)
	}
	return nil
}

// ReadPascalString reads a PascalStringWin32.
func (r *Reader) ReadPascalString() (string, error) {
	length, err := r.ReadI32()
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", &CorruptedDataError{Component: "PascalString", Offset: r.pos, Reason: fmt.Sprintf("negative length: %d", length)}
	}
	if length == 0 {
		return "", nil
	}
	return r.ReadUTF16Fixed(int(length) * 2)
}

// ReadF32Array reads count consecutive float32 values.
func (r *Reader) ReadF32Array(count int) ([]float32, error) {
	out := make([]float32, 0, count)
	for i := 0; i < count; i++ {
		v, err := r.ReadF32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadF64Array reads count consecutive float64 values.
func (r *Reader) ReadF64Array(count int) ([]float64, error) {
	out := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		v, err := r.ReadF64()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
