package rawfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChromTestData() ([]byte, []ScanIndexEntry) {
	rts := []float64{0.1, 0.2, 0.3}
	peaks := [][2]float32{{200.0, 100}, {500.0, 200}}

	var data []byte
	entries := make([]ScanIndexEntry, len(rts))
	for i, rt := range rts {
		packet := buildLegacyScanPacket(nil, peaks)
		entries[i] = ScanIndexEntry{
			Offset:            uint64(len(data)),
			PacketType:        1,
			NumberPackets:     1,
			DataSize:          uint32(len(packet)),
			RT:                rt,
			TIC:               300,
			BasePeakIntensity: 200,
			BasePeakMZ:        500,
		}
		data = append(data, packet...)
	}
	return data, entries
}

func TestBuildTICAndBPC(t *testing.T) {
	_, entries := buildChromTestData()

	tic := BuildTIC(entries)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, tic.RT)
	assert.Equal(t, []float64{300, 300, 300}, tic.Intensity)

	bpc := BuildBPC(entries)
	assert.Equal(t, []float64{200, 200, 200}, bpc.Intensity)
}

func TestXICSingleTarget(t *testing.T) {
	data, entries := buildChromTestData()

	chrom, err := XIC(data, 0, entries, 200.0, 5.0)
	require.NoError(t, err)
	require.Len(t, chrom.Intensity, 3)
	for _, v := range chrom.Intensity {
		assert.InDelta(t, 100.0, v, 1e-6)
	}
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, chrom.RT)
}

func TestXICMS1FiltersNonMS1Scans(t *testing.T) {
	data, entries := buildChromTestData()
	msLevels := []MsLevel{MsLevel1, MsLevel2, MsLevel1}

	chrom, err := XICMS1(data, 0, entries, msLevels, 200.0, 5.0)
	require.NoError(t, err)
	require.Len(t, chrom.RT, 2)
	assert.Equal(t, []float64{0.1, 0.3}, chrom.RT)
}

func TestBatchXICMS1MatchesSingleTargetXIC(t *testing.T) {
	data, entries := buildChromTestData()
	targets := []XICTarget{{MZ: 200.0, PPM: 5.0}, {MZ: 500.0, PPM: 5.0}}

	chroms, err := BatchXICMS1(data, 0, entries, nil, targets)
	require.NoError(t, err)
	require.Len(t, chroms, 2)

	assert.Equal(t, []float64{100, 100, 100}, chroms[0].Intensity)
	assert.Equal(t, []float64{200, 200, 200}, chroms[1].Intensity)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, chroms[0].RT)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, chroms[1].RT)

	single200, err := XIC(data, 0, entries, 200.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, single200.Intensity, chroms[0].Intensity)

	single500, err := XIC(data, 0, entries, 500.0, 5.0)
	require.NoError(t, err)
	assert.Equal(t, single500.Intensity, chroms[1].Intensity)
}

func TestXICZeroPPMYieldsZeroWhenOffTarget(t *testing.T) {
	// A centroid slightly off the exact target m/z should contribute
	// nothing when the ppm tolerance collapses the window to a point.
	packet := buildLegacyScanPacket(nil, [][2]float32{{200.001, 999}})
	entry := ScanIndexEntry{PacketType: 1, NumberPackets: 1, DataSize: uint32(len(packet)), RT: 1.0}

	chrom, err := XIC(packet, 0, []ScanIndexEntry{entry}, 200.0, 0)
	require.NoError(t, err)
	require.Len(t, chrom.Intensity, 1)
	assert.Equal(t, 0.0, chrom.Intensity[0])
}

func TestIndexRangeOverlapsPruning(t *testing.T) {
	e := ScanIndexEntry{LowMZ: 600, HighMZ: 800}
	assert.False(t, indexRangeOverlaps(&e, 100, 200))
	assert.True(t, indexRangeOverlaps(&e, 700, 750))

	zeroRange := ScanIndexEntry{}
	assert.True(t, indexRangeOverlaps(&zeroRange, 100, 200))
}
