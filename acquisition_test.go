package rawfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms2Event(precursorMZ, isolationWidth, collisionEnergy float64) ScanEvent {
	return ScanEvent{
		Preamble: ScanEventPreamble{MsLevel: MsLevel2},
		Reactions: []Reaction{
			{PrecursorMZ: precursorMZ, IsolationWidth: isolationWidth, CollisionEnergy: collisionEnergy},
		},
	}
}

func TestClassifyAcquisitionMs1Only(t *testing.T) {
	events := []ScanEvent{{Preamble: ScanEventPreamble{MsLevel: MsLevel1}}}
	entries := []ScanIndexEntry{{ScanEvent: 0}, {ScanEvent: 0}}

	infos := DeriveMs2ScanInfos(entries, events, 1)
	assert.Empty(t, infos)
	assert.Equal(t, AcquisitionMs1Only, ClassifyAcquisition(infos))
}

func TestClassifyAcquisitionDIA(t *testing.T) {
	// Three systematic windows, repeated over many cycles: ratio = 3/30 = 0.1.
	events := []ScanEvent{
		ms2Event(400.0, 25.0, 27.0),
		ms2Event(500.0, 25.0, 27.0),
		ms2Event(600.0, 25.0, 27.0),
	}
	var entries []ScanIndexEntry
	for i := 0; i < 10; i++ {
		entries = append(entries,
			ScanIndexEntry{ScanEvent: 0},
			ScanIndexEntry{ScanEvent: 1},
			ScanIndexEntry{ScanEvent: 2},
		)
	}

	infos := DeriveMs2ScanInfos(entries, events, 1)
	require.Len(t, infos, 30)
	assert.Equal(t, AcquisitionDIA, ClassifyAcquisition(infos))

	windows := DeriveIsolationWindows(infos)
	require.Len(t, windows, 3)
	assert.Equal(t, 400.0, windows[0].CenterMZ)
	assert.Equal(t, 500.0, windows[1].CenterMZ)
	assert.Equal(t, 600.0, windows[2].CenterMZ)
	assert.InDelta(t, 387.5, windows[0].LowMZ, 1e-9)
	assert.InDelta(t, 412.5, windows[0].HighMZ, 1e-9)
}

func TestClassifyAcquisitionDDA(t *testing.T) {
	// Every MS2 scan targets a distinct precursor: ratio = 1.0.
	events := make([]ScanEvent, 20)
	entries := make([]ScanIndexEntry, 20)
	for i := range events {
		events[i] = ms2Event(300.0+float64(i), 2.0, 30.0)
		entries[i] = ScanIndexEntry{ScanEvent: uint16(i)}
	}

	infos := DeriveMs2ScanInfos(entries, events, 1)
	require.Len(t, infos, 20)
	assert.Equal(t, AcquisitionDDA, ClassifyAcquisition(infos))
}

func TestClassifyAcquisitionMixed(t *testing.T) {
	// Half the scans repeat one window, half are data-dependent: 6 distinct
	// windows over 10 scans, ratio 0.6.
	var events []ScanEvent
	var entries []ScanIndexEntry
	events = append(events, ms2Event(500.0, 25.0, 27.0))
	for i := 0; i < 5; i++ {
		entries = append(entries, ScanIndexEntry{ScanEvent: 0})
	}
	for i := 0; i < 5; i++ {
		events = append(events, ms2Event(700.0+float64(i), 2.0, 30.0))
		entries = append(entries, ScanIndexEntry{ScanEvent: uint16(len(events) - 1)})
	}

	infos := DeriveMs2ScanInfos(entries, events, 1)
	require.Len(t, infos, 10)
	assert.Equal(t, AcquisitionMixed, ClassifyAcquisition(infos))
}
