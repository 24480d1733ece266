// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

// Polarity is mass spectrometry ion polarity.
type Polarity int

const (
	PolarityUnknown Polarity = iota
	PolarityPositive
	PolarityNegative
)

func (p Polarity) String() string {
	switch p {
	case PolarityPositive:
		return "positive"
	case PolarityNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// MsLevel is the MS power level of a scan (MS1, MS2, ...).
type MsLevel uint8

const (
	MsLevel1 MsLevel = 1
	MsLevel2 MsLevel = 2
	MsLevel3 MsLevel = 3
)

// Scan is one fully decoded spectrum: its index-level summary values plus
// the decoded centroid/profile arrays and, for MS2+, its precursor.
type Scan struct {
	ScanNumber        uint32
	RT                float64
	MsLevel           MsLevel
	Polarity          Polarity
	TIC               float64
	BasePeakMZ        float64
	BasePeakIntensity float64
	CentroidMZ        []float64
	CentroidIntensity []float64
	ProfileMZ         []float64
	ProfileIntensity  []float64
	Precursor         *PrecursorInfo
	FilterString      string
}

// PrecursorInfo is the MS2+ precursor ion selected for fragmentation.
type PrecursorInfo struct {
	MZ               float64
	Charge           *int32
	IsolationWidth   *float64
	ActivationType   string
	CollisionEnergy  *float64
}

// Chromatogram is a retention-time series (TIC, BPC, or an XIC).
type Chromatogram struct {
	RT        []float64
	Intensity []float64
}

// FileMetadata is the file-level identity and provenance summary exposed
// to callers that don't need the full header structs.
type FileMetadata struct {
	CreationDate     string
	InstrumentModel  string
	InstrumentName   string
	SerialNumber     string
	SoftwareVersion  string
	SampleName       string
	Comment          string
}

// AcquisitionType classifies a run by its MS2 scan event pattern.
type AcquisitionType int

const (
	AcquisitionMs1Only AcquisitionType = iota
	AcquisitionDDA
	AcquisitionDIA
	AcquisitionMixed
)

func (a AcquisitionType) String() string {
	switch a {
	case AcquisitionMs1Only:
		return "ms1-only"
	case AcquisitionDDA:
		return "dda"
	case AcquisitionDIA:
		return "dia"
	case AcquisitionMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// IsolationWindow is a unique DIA isolation window derived from the MS2
// scan events of a run.
type IsolationWindow struct {
	CenterMZ        float64
	IsolationWidth  float64
	LowMZ           float64
	HighMZ          float64
	CollisionEnergy float64
	Activation      string
}

// Ms2ScanInfo is lightweight MS2 scan metadata derived from ScanIndex and
// ScanEvent alone, without decoding the scan's packet data.
type Ms2ScanInfo struct {
	ScanNumber     uint32
	RT             float64
	PrecursorMZ    float64
	IsolationWidth float64
	CollisionEnergy float64
	Activation     string
	ScanEventIndex uint16
	TIC            float64
}
