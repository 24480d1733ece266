package rawfile

import "testing"

func TestParsePreambleMS1Positive(t *testing.T) {
	data := make([]byte, 80)
	data[4] = 1  // positive
	data[5] = 1  // profile
	data[6] = 1  // MS1
	data[7] = 0  // Full
	data[10] = 0 // not dependent
	data[11] = 5 // NSI
	data[40] = 4 // FTMS

	p := parsePreamble(data)
	if p.Polarity != PolarityPositive {
		t.Errorf("Polarity = %v, want Positive", p.Polarity)
	}
	if p.ScanMode != ScanModeProfile {
		t.Errorf("ScanMode = %v, want Profile", p.ScanMode)
	}
	if p.MsLevel != MsLevel1 {
		t.Errorf("MsLevel = %v, want Ms1", p.MsLevel)
	}
	if p.ScanType != ScanTypeFull {
		t.Errorf("ScanType = %v, want Full", p.ScanType)
	}
	if p.Dependent {
		t.Error("Dependent should be false")
	}
	if p.Ionization != IonizationNSI {
		t.Errorf("Ionization = %v, want NSI", p.Ionization)
	}
	if p.Analyzer != AnalyzerFTMS {
		t.Errorf("Analyzer = %v, want FTMS", p.Analyzer)
	}
}

func TestParsePreambleMS2Negative(t *testing.T) {
	data := make([]byte, 80)
	data[4] = 0  // negative
	data[5] = 0  // centroid
	data[6] = 2  // MS2
	data[7] = 0  // Full
	data[10] = 1 // dependent (DDA)
	data[40] = 0 // ITMS

	p := parsePreamble(data)
	if p.Polarity != PolarityNegative {
		t.Errorf("Polarity = %v, want Negative", p.Polarity)
	}
	if p.ScanMode != ScanModeCentroid {
		t.Errorf("ScanMode = %v, want Centroid", p.ScanMode)
	}
	if p.MsLevel != MsLevel2 {
		t.Errorf("MsLevel = %v, want Ms2", p.MsLevel)
	}
	if !p.Dependent {
		t.Error("Dependent should be true")
	}
	if p.Analyzer != AnalyzerITMS {
		t.Errorf("Analyzer = %v, want ITMS", p.Analyzer)
	}
}

func TestFrequencyToMZNoParams(t *testing.T) {
	if got := frequencyToMZ(500.0, nil); got != 500.0 {
		t.Errorf("frequencyToMZ() = %v, want 500.0", got)
	}
}

func TestFrequencyToMZLtqFt(t *testing.T) {
	params := []float64{100.0, 0.0, 0.0, 0.0}
	got := frequencyToMZ(1e6, params)
	if diff := got - 100.0; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("frequencyToMZ() = %v, want ~100.0", got)
	}
}

func TestReactionActivationTypeValue(t *testing.T) {
	r := &Reaction{CollisionEnergyValid: 0}
	if got := r.ActivationTypeValue(); got != ActivationCID {
		t.Errorf("ActivationTypeValue() = %v, want CID for zero flag", got)
	}

	r2 := &Reaction{CollisionEnergyValid: 1 | (5 << 1)} // valid, type=5 (HCD)
	if got := r2.ActivationTypeValue(); got != ActivationHCD {
		t.Errorf("ActivationTypeValue() = %v, want HCD", got)
	}
}

func TestParseScanEventRoundTrip(t *testing.T) {
	version := uint32(60)
	preambleSize := ScanEventPreambleSize(version)

	data := make([]byte, preambleSize+4+4+4+4+4)
	data[4] = 1  // positive
	data[6] = 1  // MS1
	data[40] = 4 // FTMS

	// nPrecursors = 0
	putU32(data, preambleSize, 0)
	// mass ranges count = 0
	putU32(data, preambleSize+4, 0)
	// mass calibrators (conversion params) count = 0
	putU32(data, preambleSize+8, 0)
	// source fragmentations count = 0
	putU32(data, preambleSize+12, 0)
	// source fragmentation mass ranges count = 0
	putU32(data, preambleSize+16, 0)

	event, endPos, err := parseScanEvent(data, 0, version)
	if err != nil {
		t.Fatalf("parseScanEvent() error = %v", err)
	}
	if event.Preamble.Polarity != PolarityPositive {
		t.Errorf("Polarity = %v, want Positive", event.Preamble.Polarity)
	}
	if len(event.Reactions) != 0 {
		t.Errorf("len(Reactions) = %d, want 0", len(event.Reactions))
	}
	if int(endPos) != len(data) {
		t.Errorf("endPos = %d, want %d", endPos, len(data))
	}
}
