package rawfile

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putF32(data []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(data[offset:], math.Float32bits(v))
}

func appendF32(data []byte, v float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return append(data, buf...)
}

func appendF64(data []byte, v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return append(data, buf...)
}

func appendU32(data []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(data, buf...)
}

func TestParsePacketHeaderRoundTrip(t *testing.T) {
	data := make([]byte, packetHeaderSize)
	binary.LittleEndian.PutUint32(data[4:], 10)  // profile_size
	binary.LittleEndian.PutUint32(data[8:], 20)  // peak_list_size
	putF32(data, 32, 100.5)
	putF32(data, 36, 2000.25)

	reader := NewReader(data)
	header, err := parsePacketHeader(reader)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), header.ProfileSize)
	assert.Equal(t, uint32(20), header.PeakListSize)
	assert.InDelta(t, float32(100.5), header.LowMZ, 1e-6)
	assert.InDelta(t, float32(2000.25), header.HighMZ, 1e-6)
	assert.Equal(t, int64(packetHeaderSize), reader.Position())
}

func buildCentroidPeaks(peaks [][2]float32) []byte {
	var data []byte
	data = appendU32(data, uint32(len(peaks)))
	for _, p := range peaks {
		data = appendF32(data, p[0])
		data = appendF32(data, p[1])
	}
	return data
}

func TestDecodeCentroidRoundTrip(t *testing.T) {
	data := buildCentroidPeaks([][2]float32{{200.5, 1000}, {500.25, 2000}, {800.75, 500}})
	reader := NewReader(data)

	mz, intensity, err := decodeCentroid(reader)
	require.NoError(t, err)
	require.Len(t, mz, 3)
	assert.InDelta(t, 200.5, mz[0], 1e-4)
	assert.InDelta(t, 500.25, mz[1], 1e-4)
	assert.InDelta(t, 800.75, mz[2], 1e-4)
	assert.InDelta(t, 1000.0, intensity[0], 1e-2)
	assert.Equal(t, int64(len(data)), reader.Position())
}

func TestSumCentroidsInRange(t *testing.T) {
	data := buildCentroidPeaks([][2]float32{{100, 10}, {200, 20}, {300, 30}, {400, 40}})
	reader := NewReader(data)

	sum, err := sumCentroidsInRange(reader, 150, 350)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, sum, 1e-6) // 20 + 30
}

func TestSumCentroidsMultiTarget(t *testing.T) {
	data := buildCentroidPeaks([][2]float32{{100, 10}, {200, 20}, {300, 30}, {400, 40}})
	reader := NewReader(data)
	ranges := []MZRange{{Low: 90, High: 110}, {Low: 290, High: 310}}
	out := make([]float64, len(ranges))

	err := sumCentroidsMultiTarget(reader, ranges, out)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, out[0], 1e-6)
	assert.InDelta(t, 30.0, out[1], 1e-6)
}

func buildProfileChunks(firstValue, step float64, layout uint32, chunks [][2]uint32, signals [][]float32) []byte {
	var data []byte
	data = appendF64(data, firstValue)
	data = appendF64(data, step)
	data = appendU32(data, uint32(len(chunks)))
	var totalBins uint32
	for _, c := range chunks {
		totalBins += c[1]
	}
	data = appendU32(data, totalBins)
	for i, c := range chunks {
		data = appendU32(data, c[0])
		data = appendU32(data, c[1])
		if layout > 0 {
			data = appendF32(data, 0) // fudge
		}
		for _, v := range signals[i] {
			data = appendF32(data, v)
		}
	}
	return data
}

func TestDecodeProfileRoundTrip(t *testing.T) {
	data := buildProfileChunks(100.0, 0.5, 0, [][2]uint32{{10, 3}}, [][]float32{{1, 2, 3}})
	reader := NewReader(data)

	mz, intensity, err := decodeProfile(reader, 0)
	require.NoError(t, err)
	require.Len(t, mz, 3)
	assert.InDelta(t, 100.0+10*0.5, mz[0], 1e-9)
	assert.InDelta(t, 100.0+11*0.5, mz[1], 1e-9)
	assert.InDelta(t, 100.0+12*0.5, mz[2], 1e-9)
	assert.InDelta(t, 1.0, intensity[0], 1e-6)
	assert.Equal(t, int64(len(data)), reader.Position())
}

func TestDecodeProfileWithFudgeLayout(t *testing.T) {
	data := buildProfileChunks(0.0, 1.0, 1, [][2]uint32{{0, 2}}, [][]float32{{5, 6}})
	reader := NewReader(data)

	mz, intensity, err := decodeProfile(reader, 1)
	require.NoError(t, err)
	require.Len(t, mz, 2)
	assert.InDelta(t, 5.0, intensity[0], 1e-6)
	assert.Equal(t, int64(len(data)), reader.Position())
}

func TestDecodeProfileEmpty(t *testing.T) {
	data := buildProfileChunks(0, 0, 0, nil, nil)
	reader := NewReader(data)

	mz, intensity, err := decodeProfile(reader, 0)
	require.NoError(t, err)
	assert.Nil(t, mz)
	assert.Nil(t, intensity)
}

// FT/LT tests transcribed from original_source's scan_data_ftlt.rs test
// module.

func buildFTLTHeaderBytes(numSegments, numProfileWords, numCentroidWords, defaultFeatureWord uint32) []byte {
	var data []byte
	data = appendU32(data, numSegments)
	data = appendU32(data, numProfileWords)
	data = appendU32(data, numCentroidWords)
	data = appendU32(data, defaultFeatureWord)
	data = appendU32(data, 0) // non-default features
	data = appendU32(data, 0) // expansion
	data = appendU32(data, 0) // noise
	data = appendU32(data, 0) // debug
	return data
}

func TestFTLTHeaderParse(t *testing.T) {
	data := buildFTLTHeaderBytes(1, 100, 50, 0x10000)
	reader := NewReader(data)
	header, err := parseFTLTPacketHeader(reader)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.NumSegments)
	assert.Equal(t, uint32(100), header.NumProfileWords)
	assert.Equal(t, uint32(50), header.NumCentroidWords)
	assert.True(t, header.IsAccurateMass())
	assert.False(t, header.IsLTMode())
}

func TestFTLTHeaderLTMode(t *testing.T) {
	data := buildFTLTHeaderBytes(1, 0, 10, 0x40)
	reader := NewReader(data)
	header, err := parseFTLTPacketHeader(reader)
	require.NoError(t, err)
	assert.True(t, header.IsLTMode())
	assert.False(t, header.IsAccurateMass())
	assert.Equal(t, 8, header.BytesPerCentroidPeak())
}

func TestFTLTCentroidStandardAccuracy(t *testing.T) {
	data := buildFTLTHeaderBytes(1, 0, 7, 0)
	data = appendF32(data, 100.0)
	data = appendF32(data, 1000.0)
	data = appendU32(data, 3)
	data = appendF32(data, 200.5)
	data = appendF32(data, 1000.0)
	data = appendF32(data, 500.25)
	data = appendF32(data, 2000.0)
	data = appendF32(data, 800.75)
	data = appendF32(data, 500.0)

	result, err := decodeFTLTScan(data, 0, 20, nil)
	require.NoError(t, err)
	require.Len(t, result.CentroidMZ, 3)
	assert.InDelta(t, 200.5, result.CentroidMZ[0], 1e-2)
	assert.InDelta(t, 500.25, result.CentroidMZ[1], 1e-2)
	assert.InDelta(t, 800.75, result.CentroidMZ[2], 1e-2)
	assert.InDelta(t, 1000.0, result.CentroidIntensity[0], 0.1)
	assert.Nil(t, result.ProfileMZ)
}

func TestFTLTCentroidAccurateMass(t *testing.T) {
	data := buildFTLTHeaderBytes(1, 0, 7, 0x10000)
	data = appendF32(data, 100.0)
	data = appendF32(data, 1000.0)
	data = appendU32(data, 2)
	data = appendF64(data, 524.264837)
	data = appendF32(data, 50000.0)
	data = appendF64(data, 612.123456)
	data = appendF32(data, 30000.0)

	result, err := decodeFTLTScan(data, 0, 20, nil)
	require.NoError(t, err)
	require.Len(t, result.CentroidMZ, 2)
	assert.InDelta(t, 524.264837, result.CentroidMZ[0], 1e-5)
	assert.InDelta(t, 612.123456, result.CentroidMZ[1], 1e-5)
	assert.InDelta(t, 50000.0, result.CentroidIntensity[0], 0.1)
}

func TestFTLTEmptyScan(t *testing.T) {
	data := buildFTLTHeaderBytes(0, 0, 0, 0)
	result, err := decodeFTLTScan(data, 0, 20, nil)
	require.NoError(t, err)
	assert.Empty(t, result.CentroidMZ)
	assert.Nil(t, result.ProfileMZ)
}

// decodeScan dispatch tests.

func buildLegacyScanPacket(profilePeaks, centroidPeaks [][2]float32) []byte {
	header := make([]byte, packetHeaderSize)
	var profile []byte
	for _, p := range profilePeaks {
		profile = appendF32(profile, p[0])
		profile = appendF32(profile, p[1])
	}
	centroid := buildCentroidPeaks(centroidPeaks)
	// profile_size/peak_list_size are in 4-byte words.
	binary.LittleEndian.PutUint32(header[4:], uint32(len(profile)/4))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(centroid)/4))
	data := append([]byte{}, header...)
	data = append(data, profile...)
	data = append(data, centroid...)
	return data
}

func TestDecodeScanLegacyDispatch(t *testing.T) {
	packet := buildLegacyScanPacket(nil, [][2]float32{{300.0, 999.0}})
	entry := &ScanIndexEntry{
		Offset:        0,
		PacketType:    1,
		NumberPackets: 1,
		DataSize:      uint32(len(packet)),
		RT:            1.5,
		TIC:           999.0,
	}

	scan, err := decodeScan(packet, 0, entry, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), scan.ScanNumber)
	require.Len(t, scan.CentroidMZ, 1)
	assert.InDelta(t, 300.0, scan.CentroidMZ[0], 1e-2)
	assert.Equal(t, 1.5, scan.RT)
}

func TestDecodeScanEmptyShortCircuit(t *testing.T) {
	entry := &ScanIndexEntry{
		Offset:        0,
		PacketType:    1,
		NumberPackets: 0,
		DataSize:      0,
		RT:            2.0,
		TIC:           0,
	}
	scan, err := decodeScan(nil, 0, entry, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), scan.ScanNumber)
	assert.Equal(t, 2.0, scan.RT)
	assert.Nil(t, scan.CentroidMZ)
}

func TestDecodeScanUnknownPacketType(t *testing.T) {
	entry := &ScanIndexEntry{
		Offset:        0,
		PacketType:    9999,
		NumberPackets: 1,
		DataSize:      4,
		RT:            3.0,
	}
	data := make([]byte, 4)
	scan, err := decodeScan(data, 0, entry, 5, nil)
	require.NoError(t, err)
	assert.Nil(t, scan.CentroidMZ)
	assert.Equal(t, MsLevel1, scan.MsLevel)
}

func TestDecodeScanOutOfBounds(t *testing.T) {
	entry := &ScanIndexEntry{
		Offset:        100,
		PacketType:    1,
		NumberPackets: 1,
		DataSize:      50,
	}
	data := make([]byte, 10)
	_, err := decodeScan(data, 0, entry, 1, nil)
	require.Error(t, err)
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}
