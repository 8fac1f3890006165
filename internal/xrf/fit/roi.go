// Package fit implements the fitting strategies that turn a calibrated
// spectrum into per-element counts. Only the ROI routine lives here; the
// nonlinear and matrix strategies are out of scope for the streaming
// pipeline.
package fit

import (
	"math"

	"github.com/spectra-data/xrf.stream/internal/spectrum"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

// ROIRoutine integrates each element's region of interest directly from
// the spectrum. It holds no state and is safe for concurrent callers.
type ROIRoutine struct{}

var _ xrf.FitRoutine = (*ROIRoutine)(nil)

// NewROIRoutine returns the ROI fitting strategy.
func NewROIRoutine() *ROIRoutine {
	return &ROIRoutine{}
}

// Initialize is a no-op: the ROI routine needs no per-detector setup.
// It exists to satisfy the FitRoutine contract shared with strategies
// that do.
func (r *ROIRoutine) Initialize(model xrf.Model, elements xrf.ElementMap, energy xrf.EnergyRange) error {
	return nil
}

// FitCounts sums each element's ROI channel window. ROI centers are in
// keV, widths in eV. Out-of-range windows are silently narrowed by the
// clamp ladder below rather than reported; a severely degenerate ROI can
// legitimately integrate a one-channel window.
func (r *ROIRoutine) FitCounts(model xrf.Model, spec *spectrum.Spectrum, elements xrf.ElementMap) xrf.CountsMap {
	counts := make(xrf.CountsMap, len(elements))
	params := model.FitParameters()
	offset := params.Value(xrf.EnergyOffset)
	slope := params.Value(xrf.EnergySlope)
	n := spec.Len()

	for id, roi := range elements {
		halfKeV := roi.WidthEV / 2.0 / 1000.0
		left := int(math.Floor((roi.CenterKeV - halfKeV - offset) / slope))
		right := int(math.Floor((roi.CenterKeV + halfKeV - offset) / slope))

		// Clamp order matters: each step may feed the next.
		if right >= n {
			right = n - 2
		}
		if left > right {
			left = right - 1
		}
		if left < 0 {
			left = 1
		}
		if right < 0 {
			right = n - 2
		}

		counts[id] = spec.RangeSum(left, right)
	}
	return counts
}
