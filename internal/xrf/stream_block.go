package xrf

import (
	"sync"

	"github.com/spectra-data/xrf.stream/internal/spectrum"
)

// StreamBlock is the in-progress or completed spectral result for one
// (detector, scan-frame) pair. Row/Col track the most recently folded
// position; Height/Width are the expected last row/col indices, so the
// fragment at (Height, Width) is the completion sentinel.
type StreamBlock struct {
	ID         string
	DetectorID int

	Row    int
	Col    int
	Height int
	Width  int

	// Spectrum is the cumulative spectrum. Ownership of incoming
	// fragments transfers into it; fragments must not be touched by the
	// producer after hand-off.
	Spectrum *spectrum.Spectrum

	// Fitting snapshot taken from the analysis job on first fragment.
	Routines []FitRoutine
	Elements ElementMap
	Model    Model

	fitOnce sync.Once
	counts  CountsMap
}

// IsComplete reports whether the given position is this block's
// completion sentinel.
func (b *StreamBlock) IsComplete(row, col int) bool {
	return col == b.Width && row == b.Height
}

// Fit runs the block's first bound fit routine over the cumulative
// spectrum. The result is computed once and cached, so every downstream
// consumer of a completed frame shares one fit. Call only after
// accumulation is finished. Returns nil when the block has no routine,
// no model or no spectrum bound.
func (b *StreamBlock) Fit() CountsMap {
	if len(b.Routines) == 0 || b.Model == nil || b.Spectrum == nil {
		return nil
	}
	b.fitOnce.Do(func() {
		b.counts = b.Routines[0].FitCounts(b.Model, b.Spectrum, b.Elements)
	})
	return b.counts
}
