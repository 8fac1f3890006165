package xrf

import "sync"

// DetectorContext carries the fitting configuration for one detector
// channel: the bound fit routines, the element ROI overrides, and the
// calibrated model. It is assembled once at job setup and read-only
// afterwards.
type DetectorContext struct {
	Routines []FitRoutine
	Elements ElementMap
	Model    Model
}

// AnalysisJob is the per-scan lookup from detector id to its fitting
// context. The accumulator consults it once per new frame.
type AnalysisJob struct {
	mu        sync.RWMutex
	detectors map[int]*DetectorContext
}

// NewAnalysisJob returns an empty job.
func NewAnalysisJob() *AnalysisJob {
	return &AnalysisJob{detectors: make(map[int]*DetectorContext)}
}

// AddDetector binds a fitting context to a detector id, replacing any
// previous binding.
func (j *AnalysisJob) AddDetector(id int, ctx *DetectorContext) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.detectors[id] = ctx
}

// Detector returns the fitting context for a detector id.
func (j *AnalysisJob) Detector(id int) (*DetectorContext, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ctx, ok := j.detectors[id]
	return ctx, ok
}

// DetectorIDs returns the bound detector ids in unspecified order.
func (j *AnalysisJob) DetectorIDs() []int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ids := make([]int, 0, len(j.detectors))
	for id := range j.detectors {
		ids = append(ids, id)
	}
	return ids
}
