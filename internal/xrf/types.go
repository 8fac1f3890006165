// Package xrf contains the shared data model for the XRF streaming
// pipeline: fit parameters, element regions of interest, per-detector
// fitting contexts and the StreamBlock frame type that travels from the
// accumulator to downstream sinks.
package xrf

import (
	"github.com/spectra-data/xrf.stream/internal/spectrum"
)

// Fit parameter names. The linear channel-to-energy calibration is
// energy = offset + channel*slope, in keV.
const (
	EnergyOffset = "ENERGY_OFFSET"
	EnergySlope  = "ENERGY_SLOPE"
)

// FitParams is a named set of model fit parameters.
type FitParams map[string]float64

// Value returns the named parameter, or 0 if absent.
func (p FitParams) Value(name string) float64 {
	return p[name]
}

// Model exposes the calibrated fit-parameter set a fit routine reads.
// Implementations must be safe for concurrent readers; the pipeline never
// writes through this interface.
type Model interface {
	FitParameters() FitParams
}

// CalibrationModel is the minimal Model: a linear energy calibration.
type CalibrationModel struct {
	Offset float64 // keV at channel 0
	Slope  float64 // keV per channel
}

// FitParameters implements Model.
func (m *CalibrationModel) FitParameters() FitParams {
	return FitParams{
		EnergyOffset: m.Offset,
		EnergySlope:  m.Slope,
	}
}

// ElementROI defines the integration window for one element line.
// Center is in keV, width in eV; both come from reference data or
// per-detector override files.
type ElementROI struct {
	CenterKeV float64
	WidthEV   float64
}

// ElementMap maps element identifiers (e.g. "Fe", "Ca_K") to their ROIs.
type ElementMap map[string]ElementROI

// CountsMap maps element identifiers to integrated counts. Produced fresh
// per fit call; never shared across calls.
type CountsMap map[string]float64

// EnergyRange is a channel sub-range some fit routines restrict
// themselves to during setup.
type EnergyRange struct {
	Min int
	Max int
}

// FitRoutine is the capability a fitting strategy provides. FitCounts
// must be safe for concurrent callers on independent spectra.
type FitRoutine interface {
	// Initialize performs any per-detector setup the routine needs.
	// Routines without setup return nil.
	Initialize(model Model, elements ElementMap, energy EnergyRange) error

	// FitCounts converts a calibrated spectrum into per-element
	// integrated counts.
	FitCounts(model Model, spec *spectrum.Spectrum, elements ElementMap) CountsMap
}
