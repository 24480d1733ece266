// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import "encoding/binary"

// finniganSearchWindow bounds how far into the stream the magic search
// looks; the FileHeader always starts within the first 64KiB of the
// Finnigan stream in every version this package supports.
const finniganSearchWindow = 65536

// findFinniganMagic scans the first finniganSearchWindow bytes of data for
// the little-endian 0xA101 magic word, then sanity-checks that the
// 4-byte version field 36 bytes further in (2 magic + 18-byte UTF-16
// signature + 16 bytes of unknowns) holds a plausible version number. Returns
// the byte offset of the magic word, or -1 if not found.
func findFinniganMagic(data []byte) int {
	limit := len(data)
	if limit > finniganSearchWindow {
		limit = finniganSearchWindow
	}
	for i := 0; i+1 < limit; i++ {
		if binary.LittleEndian.Uint16(data[i:]) != FinniganMagic {
			continue
		}
		verOffset := i + 36
		if verOffset+4 > len(data) {
			continue
		}
		ver := binary.LittleEndian.Uint32(data[verOffset:])
		if ver > 0 && ver <= 200 {
			return i
		}
	}
	return -1
}
