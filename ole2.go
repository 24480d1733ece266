// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

import (
	"io"

	"github.com/richardlehane/mscfb"
)

// ListOLE2Streams lists every stream path in an OLE2/CFBF compound file,
// in container order. RAW files are nominally OLE2 containers, but the
// Finnigan data stream is always the largest entry by a wide margin and
// can be located directly by scanning file bytes for its magic word
// (see findFinniganMagic), so this helper exists only for diagnostics
// and the streams CLI subcommand, not the main parsing path.
func ListOLE2Streams(r io.Reader) ([]string, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, err
	}

	var names []string
	for entry, nextErr := doc.Next(); nextErr == nil; entry, nextErr = doc.Next() {
		names = append(names, entry.Name)
	}
	return names, nil
}

// ReadOLE2Stream reads the full contents of the named stream from an
// OLE2 compound file.
func ReadOLE2Stream(r io.Reader, name string) ([]byte, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return nil, err
	}

	for entry, nextErr := doc.Next(); nextErr == nil; entry, nextErr = doc.Next() {
		if entry.Name != name {
			continue
		}
		return io.ReadAll(doc)
	}
	return nil, ErrStreamNotFound(name)
}
