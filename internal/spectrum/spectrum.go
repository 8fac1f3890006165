// Package spectrum provides the fixed-channel energy spectrum buffer used
// throughout the XRF streaming pipeline. A Spectrum carries per-channel
// counts plus the dose bookkeeping (elapsed live/real time, input/output
// counts) that detectors report alongside each pixel.
package spectrum

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Spectrum is one energy spectrum: per-channel counts and acquisition
// bookkeeping. The channel count is fixed at construction for a given
// calibration.
type Spectrum struct {
	Counts []float64

	// Acquisition bookkeeping, summed across fragments on Add.
	ElapsedLifetime float64
	ElapsedRealtime float64
	InputCounts     float64
	OutputCounts    float64
}

// New returns a zeroed Spectrum with n channels.
func New(n int) *Spectrum {
	return &Spectrum{Counts: make([]float64, n)}
}

// Len returns the number of channels.
func (s *Spectrum) Len() int {
	return len(s.Counts)
}

// Add folds other into s element-wise and sums the acquisition
// bookkeeping. Channel counts must match.
func (s *Spectrum) Add(other *Spectrum) error {
	if other == nil {
		return nil
	}
	if len(other.Counts) != len(s.Counts) {
		return fmt.Errorf("spectrum: channel count mismatch: %d != %d", len(other.Counts), len(s.Counts))
	}
	floats.Add(s.Counts, other.Counts)
	s.ElapsedLifetime += other.ElapsedLifetime
	s.ElapsedRealtime += other.ElapsedRealtime
	s.InputCounts += other.InputCounts
	s.OutputCounts += other.OutputCounts
	return nil
}

// RangeSum returns the sum of channels over the inclusive range
// [left, right]. An inverted range sums to zero. Bounds outside the
// spectrum are truncated to the valid channel range.
func (s *Spectrum) RangeSum(left, right int) float64 {
	if left < 0 {
		left = 0
	}
	if right >= len(s.Counts) {
		right = len(s.Counts) - 1
	}
	if right < left {
		return 0
	}
	return floats.Sum(s.Counts[left : right+1])
}

// TotalCounts returns the sum over all channels.
func (s *Spectrum) TotalCounts() float64 {
	return floats.Sum(s.Counts)
}

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	c := &Spectrum{
		Counts:          make([]float64, len(s.Counts)),
		ElapsedLifetime: s.ElapsedLifetime,
		ElapsedRealtime: s.ElapsedRealtime,
		InputCounts:     s.InputCounts,
		OutputCounts:    s.OutputCounts,
	}
	copy(c.Counts, s.Counts)
	return c
}
