// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package rawfile

// ScanMode is the acquisition mode recorded in a ScanEvent's preamble.
type ScanMode uint8

const (
	ScanModeCentroid ScanMode = iota
	ScanModeProfile
	ScanModeUnknown
)

func (m ScanMode) String() string {
	switch m {
	case ScanModeCentroid:
		return "centroid"
	case ScanModeProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// ScanType is the instrument scan type recorded in a ScanEvent's preamble.
type ScanType uint8

const (
	ScanTypeFull ScanType = iota
	ScanTypeZoom
	ScanTypeSim
	ScanTypeSrm
	ScanTypeCrm
	ScanTypeQ1Ms
	ScanTypeQ3Ms
	ScanTypeUnknown
)

// IonizationType is the ion source recorded in a ScanEvent's preamble.
type IonizationType uint8

const (
	IonizationEI IonizationType = iota
	IonizationCI
	IonizationFAB
	IonizationESI
	IonizationAPCI
	IonizationNSI
	IonizationTSI
	IonizationFDI
	IonizationMALDI
	IonizationGD
	IonizationAny
	IonizationPSI
	IonizationCNSI
	IonizationUnknown
)

// ActivationType is the fragmentation method of a Reaction.
type ActivationType uint8

const (
	ActivationCID ActivationType = iota
	ActivationMPD
	ActivationECD
	ActivationPQD
	ActivationETD
	ActivationHCD
	ActivationAny
	ActivationSA
	ActivationPTR
	ActivationNETD
	ActivationNPTR
	ActivationUVPD
	ActivationEID
	ActivationUnknown
)

func (a ActivationType) String() string {
	switch a {
	case ActivationCID:
		return "CID"
	case ActivationMPD:
		return "MPD"
	case ActivationECD:
		return "ECD"
	case ActivationPQD:
		return "PQD"
	case ActivationETD:
		return "ETD"
	case ActivationHCD:
		return "HCD"
	case ActivationAny:
		return "Any"
	case ActivationSA:
		return "SA"
	case ActivationPTR:
		return "PTR"
	case ActivationNETD:
		return "NETD"
	case ActivationNPTR:
		return "NPTR"
	case ActivationUVPD:
		return "UVPD"
	case ActivationEID:
		return "EID"
	default:
		return "Unknown"
	}
}

// AnalyzerType is the mass analyzer recorded in a ScanEvent's preamble.
type AnalyzerType uint8

const (
	AnalyzerITMS AnalyzerType = iota
	AnalyzerTQMS
	AnalyzerSQMS
	AnalyzerTOFMS
	AnalyzerFTMS
	AnalyzerSector
	AnalyzerAny
	AnalyzerASTMS
	AnalyzerUnknown
)

func (a AnalyzerType) String() string {
	switch a {
	case AnalyzerITMS:
		return "ITMS"
	case AnalyzerTQMS:
		return "TQMS"
	case AnalyzerSQMS:
		return "SQMS"
	case AnalyzerTOFMS:
		return "TOFMS"
	case AnalyzerFTMS:
		return "FTMS"
	case AnalyzerSector:
		return "Sector"
	case AnalyzerAny:
		return "Any"
	case AnalyzerASTMS:
		return "ASTMS"
	default:
		return "Unknown"
	}
}

// ScanEventPreamble is the fixed-size block of acquisition parameters at
// the start of every ScanEvent record.
type ScanEventPreamble struct {
	Polarity   Polarity
	ScanMode   ScanMode
	MsLevel    MsLevel
	ScanType   ScanType
	Dependent  bool
	Ionization IonizationType
	Activation ActivationType
	Analyzer   AnalyzerType
}

// Reaction is one precursor-fragmentation step recorded in a ScanEvent.
type Reaction struct {
	PrecursorMZ          float64
	IsolationWidth       float64
	CollisionEnergy      float64
	CollisionEnergyValid uint32
	PrecursorRangeValid  bool
	FirstPrecursorMass   float64
	LastPrecursorMass    float64
	IsolationWidthOffset float64
}

// ActivationTypeValue derives the fragmentation method from CollisionEnergyValid:
// bit 0 is a validity flag, bits 1-8 hold the ActivationType enum value.
func (r *Reaction) ActivationTypeValue() ActivationType {
	if r.CollisionEnergyValid == 0 {
		return ActivationCID
	}
	typeBits := (r.CollisionEnergyValid >> 1) & 0xFF
	if typeBits <= uint32(ActivationEID) {
		return ActivationType(typeBits)
	}
	return ActivationUnknown
}

// ScanEvent is a unique acquisition-parameter template referenced by
// ScanIndexEntry.ScanEvent.
type ScanEvent struct {
	Preamble         ScanEventPreamble
	Reactions        []Reaction
	ConversionParams []float64
}

// parsePreamble decodes the well-known byte offsets within a
// ScanEventInfoStruct. Offsets are fixed across every supported version;
// only the struct's total size (and so the gap between one ScanEvent and
// the next) changes.
func parsePreamble(data []byte) ScanEventPreamble {
	p := ScanEventPreamble{
		Polarity:   PolarityUnknown,
		ScanMode:   ScanModeUnknown,
		MsLevel:    MsLevel1,
		ScanType:   ScanTypeFull,
		Ionization: IonizationUnknown,
		Activation: ActivationUnknown,
		Analyzer:   AnalyzerUnknown,
	}

	if len(data) > 4 {
		switch data[4] {
		case 0:
			p.Polarity = PolarityNegative
		case 1:
			p.Polarity = PolarityPositive
		default:
			p.Polarity = PolarityUnknown
		}
	}

	if len(data) > 5 {
		switch data[5] {
		case 0:
			p.ScanMode = ScanModeCentroid
		case 1:
			p.ScanMode = ScanModeProfile
		default:
			p.ScanMode = ScanModeUnknown
		}
	}

	if len(data) > 6 {
		switch n := data[6]; {
		case n == 1:
			p.MsLevel = MsLevel1
		case n == 2:
			p.MsLevel = MsLevel2
		case n == 3:
			p.MsLevel = MsLevel3
		case n > 3 && n <= 10:
			p.MsLevel = MsLevel(n)
		default:
			p.MsLevel = MsLevel1
		}
	}

	if len(data) > 7 {
		switch data[7] {
		case 0:
			p.ScanType = ScanTypeFull
		case 1:
			p.ScanType = ScanTypeZoom
		case 2:
			p.ScanType = ScanTypeSim
		case 3:
			p.ScanType = ScanTypeSrm
		case 4:
			p.ScanType = ScanTypeCrm
		case 7:
			p.ScanType = ScanTypeQ1Ms
		case 8:
			p.ScanType = ScanTypeQ3Ms
		default:
			p.ScanType = ScanTypeUnknown
		}
	}

	p.Dependent = len(data) > 10 && data[10] == 1

	if len(data) > 11 {
		if v := data[11]; v <= uint8(IonizationCNSI) {
			p.Ionization = IonizationType(v)
		} else {
			p.Ionization = IonizationUnknown
		}
	}

	// Byte 24 (SourceFragmentationType) is the source CID type, not the
	// MS/MS activation type; Activation is overwritten by the caller from
	// the last Reaction's CollisionEnergyValid field once reactions are
	// parsed.

	if len(data) > 40 {
		if v := data[40]; v <= uint8(AnalyzerASTMS) {
			p.Analyzer = AnalyzerType(v)
		} else {
			p.Analyzer = AnalyzerUnknown
		}
	}

	return p
}

// readDoublesArray reads a u32 count followed by that many float64 values.
func readDoublesArray(r *Reader) ([]float64, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if count > 10000 {
		return nil, &CorruptedDataError{Component: "ScanEvent", Offset: r.Position(), Reason: "unreasonable doubles array count"}
	}
	return r.ReadF64Array(int(count))
}

// readMassRangeArray reads a u32 count followed by that many (low, high)
// float64 pairs.
func readMassRangeArray(r *Reader) ([][2]float64, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if count > 10000 {
		return nil, &CorruptedDataError{Component: "ScanEvent", Offset: r.Position(), Reason: "unreasonable mass range count"}
	}
	ranges := make([][2]float64, 0, count)
	for i := uint32(0); i < count; i++ {
		low, err := r.ReadF64()
		if err != nil {
			return nil, err
		}
		high, err := r.ReadF64()
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, [2]float64{low, high})
	}
	return ranges, nil
}

// parseReaction reads one Reaction, whose size depends on the file
// version (24/32/48/56 bytes); the cursor is resynced to the record's
// documented end in case a version's trailing fields don't all apply.
func parseReaction(r *Reader, version uint32) (Reaction, error) {
	rxnSize := ReactionSize(version)
	start := r.Position()

	precursorMZ, err := r.ReadF64()
	if err != nil {
		return Reaction{}, err
	}
	isolationWidth, err := r.ReadF64()
	if err != nil {
		return Reaction{}, err
	}
	collisionEnergy, err := r.ReadF64()
	if err != nil {
		return Reaction{}, err
	}

	collisionEnergyValid := uint32(1)
	if version >= 31 {
		collisionEnergyValid, err = r.ReadU32()
		if err != nil {
			return Reaction{}, err
		}
	}

	var rangeValid bool
	var firstMass, lastMass float64
	if version >= 65 {
		v, err := r.ReadI32()
		if err != nil {
			return Reaction{}, err
		}
		rangeValid = v > 0
		firstMass, err = r.ReadF64()
		if err != nil {
			return Reaction{}, err
		}
		lastMass, err = r.ReadF64()
		if err != nil {
			return Reaction{}, err
		}
	}

	var widthOffset float64
	if version >= 66 {
		widthOffset, err = r.ReadF64()
		if err != nil {
			return Reaction{}, err
		}
	}

	expectedEnd := start + int64(rxnSize)
	if r.Position() != expectedEnd {
		r.SetPosition(expectedEnd)
	}

	return Reaction{
		PrecursorMZ:          precursorMZ,
		IsolationWidth:       isolationWidth,
		CollisionEnergy:      collisionEnergy,
		CollisionEnergyValid: collisionEnergyValid,
		PrecursorRangeValid:  rangeValid,
		FirstPrecursorMass:   firstMass,
		LastPrecursorMass:    lastMass,
		IsolationWidthOffset: widthOffset,
	}, nil
}

// parseScanEvent reads one ScanEvent starting at offset: preamble,
// reactions, mass ranges, mass calibrators (conversion params), source
// fragmentations, source fragmentation mass ranges, and (v65+) a name
// string. Returns the event and the offset immediately after it.
func parseScanEvent(data []byte, offset uint64, version uint32) (ScanEvent, uint64, error) {
	preambleSize := ScanEventPreambleSize(version)
	r := ReaderAt(data, offset)

	preambleBytes, err := r.ReadBytes(preambleSize)
	if err != nil {
		return ScanEvent{}, 0, err
	}
	preamble := parsePreamble(preambleBytes)

	nPrecursors, err := r.ReadU32()
	if err != nil {
		return ScanEvent{}, 0, err
	}
	if nPrecursors > 100 {
		return ScanEvent{}, 0, &CorruptedDataError{Component: "ScanEvent", Offset: r.Position(), Reason: "unreasonable n_precursors"}
	}

	reactions := make([]Reaction, 0, nPrecursors)
	for i := uint32(0); i < nPrecursors; i++ {
		rxn, err := parseReaction(r, version)
		if err != nil {
			return ScanEvent{}, 0, err
		}
		reactions = append(reactions, rxn)
	}

	if len(reactions) > 0 {
		preamble.Activation = reactions[len(reactions)-1].ActivationTypeValue()
	}

	if _, err := readMassRangeArray(r); err != nil { // mass ranges, unused
		return ScanEvent{}, 0, err
	}
	conversionParams, err := readDoublesArray(r)
	if err != nil {
		return ScanEvent{}, 0, err
	}
	if _, err := readDoublesArray(r); err != nil { // source fragmentations, unused
		return ScanEvent{}, 0, err
	}
	if _, err := readMassRangeArray(r); err != nil { // source fragmentation mass ranges, unused
		return ScanEvent{}, 0, err
	}

	if version >= 65 {
		if _, err := r.ReadPascalString(); err != nil {
			return ScanEvent{}, 0, err
		}
	}

	return ScanEvent{
		Preamble:         preamble,
		Reactions:        reactions,
		ConversionParams: conversionParams,
	}, uint64(r.Position()), nil
}

// parseScanEvents reads every unique ScanEvent template from the scan
// params stream (a u32 count followed by that many ScanEvent records),
// indexed by ScanIndexEntry.ScanEvent.
func parseScanEvents(data []byte, scanParamsAddr uint64, version uint32) ([]ScanEvent, error) {
	if scanParamsAddr == 0 || scanParamsAddr >= uint64(len(data)) {
		return nil, nil
	}

	r := ReaderAt(data, scanParamsAddr)
	nEvents, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if nEvents > 10000 {
		return nil, &CorruptedDataError{Component: "ScanEvent", Offset: r.Position(), Reason: "unreasonable scan event count"}
	}

	events := make([]ScanEvent, 0, nEvents)
	nextOffset := uint64(r.Position())

	for i := uint32(0); i < nEvents; i++ {
		event, endPos, err := parseScanEvent(data, nextOffset, version)
		if err != nil {
			return nil, err
		}
		nextOffset = endPos
		events = append(events, event)
	}

	return events, nil
}

// frequencyToMZ converts an FTMS/Orbitrap frequency-domain sample to m/z
// using the scan event's conversion parameters: 0 params means the data
// already stores m/z directly, 4 params is the LTQ-FT model, 7 params is
// the Orbitrap polynomial model.
func frequencyToMZ(frequency float64, params []float64) float64 {
	switch len(params) {
	case 0:
		return frequency
	case 4:
		a, b := params[0], params[1]
		freqMHz := frequency / 1e6
		if freqMHz+b != 0.0 {
			return a / (freqMHz + b)
		}
		return frequency
	case 7:
		if frequency == 0.0 {
			return 0.0
		}
		f := frequency
		f2 := f * f
		return params[0]/f2 + params[1]/f + params[2] +
			params[3]*f + params[4]*f2 + params[5]*f2*f + params[6]*f2*f2
	default:
		return frequency
	}
}
