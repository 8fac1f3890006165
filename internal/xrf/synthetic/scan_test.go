package synthetic

import (
	"testing"

	"github.com/spectra-data/xrf.stream/internal/spectrum"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

type recordedFragment struct {
	row, col, height, width, detector int
	frag                              *spectrum.Spectrum
}

type recorder struct {
	fragments []recordedFragment
}

func (r *recorder) Ingest(row, col, height, width, detectorID int, frag *spectrum.Spectrum) {
	r.fragments = append(r.fragments, recordedFragment{row, col, height, width, detectorID, frag})
}

func TestRun_DeliversFullScanInOrder(t *testing.T) {
	rec := &recorder{}
	Run(ScanConfig{
		Rows:        2,
		Cols:        3,
		Detectors:   2,
		NChannels:   64,
		EnergySlope: 0.01,
		Elements:    xrf.ElementMap{"Fe": {CenterKeV: 0.32, WidthEV: 100}},
	}, rec)

	if len(rec.fragments) != 2*3*2 {
		t.Fatalf("expected 12 fragments, got %d", len(rec.fragments))
	}
	first := rec.fragments[0]
	if first.row != 0 || first.col != 0 {
		t.Fatalf("scan must start at (0,0), got (%d,%d)", first.row, first.col)
	}
	last := rec.fragments[len(rec.fragments)-1]
	if last.row != 1 || last.col != 2 {
		t.Fatalf("scan must end at the sentinel (1,2), got (%d,%d)", last.row, last.col)
	}
	if last.height != 1 || last.width != 2 {
		t.Fatalf("extent should be (1,2), got (%d,%d)", last.height, last.width)
	}
	// The sentinel position is the last delivered for every detector.
	for det := 0; det < 2; det++ {
		var lastFor *recordedFragment
		for i := range rec.fragments {
			if rec.fragments[i].detector == det {
				lastFor = &rec.fragments[i]
			}
		}
		if lastFor.row != lastFor.height || lastFor.col != lastFor.width {
			t.Fatalf("detector %d: last fragment is not the sentinel", det)
		}
	}
}

func TestRun_DetectorsGetIndependentFragments(t *testing.T) {
	rec := &recorder{}
	Run(ScanConfig{
		Rows:        1,
		Cols:        1,
		Detectors:   3,
		NChannels:   16,
		EnergySlope: 0.01,
		Elements:    xrf.ElementMap{"Fe": {CenterKeV: 0.08, WidthEV: 60}},
		Seed:        3,
	}, rec)

	a := rec.fragments[0].frag
	b := rec.fragments[1].frag
	for i := range a.Counts {
		if a.Counts[i] != b.Counts[i] {
			t.Fatalf("detectors at one pixel should see the same spectrum, channel %d differs", i)
		}
	}
	// Consumers fold fragments in place, so copies must not share
	// backing storage.
	a.Counts[0] += 100
	if b.Counts[0] == a.Counts[0] {
		t.Fatal("fragments for different detectors share backing storage")
	}
}

func TestFragment_LineLandsOnCalibratedChannel(t *testing.T) {
	rec := &recorder{}
	Run(ScanConfig{
		Rows:        1,
		Cols:        1,
		Detectors:   1,
		NChannels:   128,
		EnergySlope: 0.01,
		Elements:    xrf.ElementMap{"X": {CenterKeV: 0.64, WidthEV: 100}}, // channel 64
		PeakCounts:  10000,
		Seed:        42,
	}, rec)

	frag := rec.fragments[0].frag
	peak := 0
	for ch, v := range frag.Counts {
		if v > frag.Counts[peak] {
			peak = ch
		}
	}
	if peak < 62 || peak > 66 {
		t.Fatalf("expected line peak near channel 64, got %d", peak)
	}
	if frag.InputCounts != frag.TotalCounts() {
		t.Fatalf("bookkeeping should match total counts")
	}
	if frag.ElapsedLifetime <= 0 {
		t.Fatal("dwell time should be recorded")
	}
}
