// Package synthetic generates artificial XRF scans for demos and
// end-to-end tests: per-pixel, per-detector fragments with Gaussian
// element lines, delivered in scan order and ending on the completion
// sentinel.
package synthetic

import (
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/spectra-data/xrf.stream/internal/spectrum"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

// Ingestor is the accumulator-side contract the generator drives.
type Ingestor interface {
	Ingest(row, col, height, width, detectorID int, frag *spectrum.Spectrum)
}

// ScanConfig describes the synthetic scan.
type ScanConfig struct {
	Rows      int // scan rows (extent index Rows-1)
	Cols      int // scan columns (extent index Cols-1)
	Detectors int
	NChannels int

	// Calibration used to place element lines on channels.
	EnergyOffset float64
	EnergySlope  float64

	// Elements to synthesize lines for.
	Elements xrf.ElementMap

	// PeakCounts is the integrated intensity of each line per pixel
	// (default 1000).
	PeakCounts float64

	// DwellSeconds is the per-pixel acquisition time recorded in the
	// fragment bookkeeping (default 0.01).
	DwellSeconds float64

	// Seed for the noise source.
	Seed int64
}

// Run delivers one full scan to the ingestor: every pixel in scan order,
// every detector per pixel, finishing each detector's frame on the
// sentinel fragment at (Rows-1, Cols-1).
func Run(cfg ScanConfig, sink Ingestor) {
	if cfg.PeakCounts == 0 {
		cfg.PeakCounts = 1000
	}
	if cfg.DwellSeconds == 0 {
		cfg.DwellSeconds = 0.01
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	height := cfg.Rows - 1
	width := cfg.Cols - 1
	for row := 0; row < cfg.Rows; row++ {
		for col := 0; col < cfg.Cols; col++ {
			// Every detector sees the same synthesized pixel. Ownership
			// of a fragment transfers on Ingest, so each detector but
			// the last gets its own copy.
			frag := cfg.fragment(rng)
			for det := 0; det < cfg.Detectors; det++ {
				f := frag
				if det != cfg.Detectors-1 {
					f = frag.Clone()
				}
				sink.Ingest(row, col, height, width, det, f)
			}
		}
	}
}

// fragment synthesizes one per-pixel spectrum: a Gaussian line per
// element over a small uniform noise floor.
func (cfg ScanConfig) fragment(rng *rand.Rand) *spectrum.Spectrum {
	s := spectrum.New(cfg.NChannels)

	for i := range s.Counts {
		s.Counts[i] = rng.Float64()
	}

	for _, roi := range cfg.Elements {
		mu := (roi.CenterKeV - cfg.EnergyOffset) / cfg.EnergySlope
		// A line narrower than its integration window: FWHM at half the
		// ROI width, converted from eV to channels.
		sigma := roi.WidthEV / 2 / 2.355 / 1000 / cfg.EnergySlope
		if sigma <= 0 {
			continue
		}
		line := distuv.Normal{Mu: mu, Sigma: sigma}
		for ch := range s.Counts {
			s.Counts[ch] += cfg.PeakCounts * line.Prob(float64(ch))
		}
	}

	s.ElapsedLifetime = cfg.DwellSeconds
	s.ElapsedRealtime = cfg.DwellSeconds
	s.InputCounts = s.TotalCounts()
	s.OutputCounts = s.InputCounts
	return s
}
