package xrf

import (
	"sync/atomic"
	"testing"

	"github.com/spectra-data/xrf.stream/internal/spectrum"
)

func TestFitParamsValue(t *testing.T) {
	p := FitParams{EnergyOffset: 0.05, EnergySlope: 0.01}
	if p.Value(EnergyOffset) != 0.05 {
		t.Fatalf("expected 0.05, got %f", p.Value(EnergyOffset))
	}
	if p.Value("MISSING") != 0 {
		t.Fatalf("missing parameter should read 0, got %f", p.Value("MISSING"))
	}
}

func TestCalibrationModel(t *testing.T) {
	m := &CalibrationModel{Offset: 0.1, Slope: 0.02}
	params := m.FitParameters()
	if params.Value(EnergyOffset) != 0.1 || params.Value(EnergySlope) != 0.02 {
		t.Fatalf("unexpected fit parameters: %+v", params)
	}
}

func TestAnalysisJobLookup(t *testing.T) {
	job := NewAnalysisJob()
	ctx := &DetectorContext{Model: &CalibrationModel{Slope: 1}}
	job.AddDetector(3, ctx)

	got, ok := job.Detector(3)
	if !ok || got != ctx {
		t.Fatal("expected bound context for detector 3")
	}
	if _, ok := job.Detector(7); ok {
		t.Fatal("unbound detector should miss")
	}
	if ids := job.DetectorIDs(); len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("unexpected detector ids: %v", ids)
	}
}

func TestStreamBlockIsComplete(t *testing.T) {
	b := &StreamBlock{Height: 4, Width: 9}
	if b.IsComplete(4, 8) || b.IsComplete(3, 9) {
		t.Fatal("only the exact sentinel position completes a frame")
	}
	if !b.IsComplete(4, 9) {
		t.Fatal("sentinel position should complete the frame")
	}
}

// countingRoutine records how many times it is asked to fit.
type countingRoutine struct {
	calls atomic.Int32
}

func (r *countingRoutine) Initialize(Model, ElementMap, EnergyRange) error { return nil }

func (r *countingRoutine) FitCounts(Model, *spectrum.Spectrum, ElementMap) CountsMap {
	r.calls.Add(1)
	return CountsMap{"Fe": 15}
}

func TestStreamBlockFit_ComputedOncePerFrame(t *testing.T) {
	routine := &countingRoutine{}
	b := &StreamBlock{
		Spectrum: spectrum.New(8),
		Routines: []FitRoutine{routine},
		Model:    &CalibrationModel{Slope: 1},
	}

	first := b.Fit()
	second := b.Fit()
	if routine.calls.Load() != 1 {
		t.Fatalf("a frame routed to several sinks must fit once, got %d fits", routine.calls.Load())
	}
	if first["Fe"] != 15 || second["Fe"] != 15 {
		t.Fatalf("cached fit should return the same counts, got %v and %v", first, second)
	}
}

func TestStreamBlockFit_NoBindings(t *testing.T) {
	b := &StreamBlock{Spectrum: spectrum.New(8)}
	if b.Fit() != nil {
		t.Fatal("a block without routines should not fit")
	}
}
