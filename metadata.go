// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

// BuildMetadata assembles the file-level FileMetadata summary from the
// three structures that each carry a piece of it. The acquisition date
// prefers RawFileInfo's year/month/day/time-of-day fields (the operator-
// entered acquisition timestamp) and falls back to the FileHeader's
// FILETIME creation time when RawFileInfo carries no year (an
// unpopulated or stripped RawFileInfo block).
func BuildMetadata(header *FileHeader, info *RawFileInfo, runHeader *RunHeader) FileMetadata {
	creationDate := filetimeToString(header.CreationTime)
	if info.Year > 0 {
		creationDate = info.AcquisitionDate()
	}

	return FileMetadata{
		CreationDate:    creationDate,
		InstrumentModel: runHeader.Model,
		InstrumentName:  runHeader.DeviceName,
		SerialNumber:    runHeader.SerialNumber,
		SoftwareVersion: runHeader.SoftwareVersion,
		SampleName:      runHeader.SampleTag1,
		Comment:         runHeader.SampleTag3,
	}
}
