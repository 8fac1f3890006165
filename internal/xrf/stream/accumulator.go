// Package stream assembles per-pixel, per-detector spectral fragments
// into complete frames. The Accumulator is the producer side of the
// streaming pipeline: the scan driver feeds it fragments in scan order
// and it hands completed StreamBlocks to a registered output callback.
package stream

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spectra-data/xrf.stream/internal/monitoring"
	"github.com/spectra-data/xrf.stream/internal/spectrum"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

// Job is the analysis-job lookup collaborator. It is consulted once per
// detector when the first fragment of a new frame arrives.
type Job interface {
	Detector(id int) (*xrf.DetectorContext, bool)
}

// Config contains configuration for the Accumulator.
type Config struct {
	// Job supplies per-detector fitting contexts. Required.
	Job Job

	// OutputCallback receives completed frames. May be nil, in which
	// case completed frames are discarded. Replaceable at runtime via
	// SetOutputCallback.
	OutputCallback func(*xrf.StreamBlock)

	// QueueSize bounds the completed-frame hand-off queue (default 8).
	QueueSize int
}

// entry is the pending accumulation state for one detector. Each entry
// carries its own lock so fragments for distinct detectors fold without
// blocking each other; the Accumulator's map lock is only held for
// lookup, insert and remove.
type entry struct {
	mu      sync.Mutex
	block   *xrf.StreamBlock
	removed bool
}

// Accumulator is the stateful map from detector id to in-progress frame.
// Fragments for one detector must arrive in scan order; fragments for
// different detectors may arrive concurrently.
type Accumulator struct {
	job Job

	mu      sync.Mutex
	pending map[int]*entry
	closed  bool

	cbMu     sync.Mutex
	callback func(*xrf.StreamBlock)

	// blockCh serialises output callback invocations so a slow sink
	// never stalls the ingest path.
	blockCh   chan *xrf.StreamBlock
	blockDone chan struct{}

	frameCounter atomic.Int64
	started      atomic.Uint64
	completed    atomic.Uint64
	dropped      atomic.Uint64
	discarded    atomic.Uint64
}

// NewAccumulator creates an Accumulator and starts its callback worker.
// Close must be called to stop the worker and release pending frames.
func NewAccumulator(config Config) (*Accumulator, error) {
	if config.Job == nil {
		return nil, fmt.Errorf("stream: Config.Job is required")
	}
	queueSize := config.QueueSize
	if queueSize == 0 {
		queueSize = 8
	}

	a := &Accumulator{
		job:       config.Job,
		pending:   make(map[int]*entry),
		callback:  config.OutputCallback,
		blockCh:   make(chan *xrf.StreamBlock, queueSize),
		blockDone: make(chan struct{}),
	}
	go a.callbackWorker()
	return a, nil
}

// SetOutputCallback replaces the registered output callback. A nil
// callback means completed frames are discarded.
func (a *Accumulator) SetOutputCallback(fn func(*xrf.StreamBlock)) {
	a.cbMu.Lock()
	a.callback = fn
	a.cbMu.Unlock()
}

func (a *Accumulator) outputCallback() func(*xrf.StreamBlock) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	return a.callback
}

// callbackWorker delivers completed frames one at a time, preserving
// completion order and keeping sink latency off the ingest path.
func (a *Accumulator) callbackWorker() {
	defer close(a.blockDone)
	for block := range a.blockCh {
		if cb := a.outputCallback(); cb != nil {
			cb(block)
		}
	}
}

// Ingest folds one fragment into the pending frame for detectorID,
// starting a new frame when none is pending. Ownership of frag transfers
// to the Accumulator; the caller must not touch it afterwards. When the
// fragment is the completion sentinel (col == width and row == height)
// the finished frame is handed to the output callback and removed from
// the pending set.
func (a *Accumulator) Ingest(row, col, height, width, detectorID int, frag *spectrum.Spectrum) {
	for {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			monitoring.Debugf("[Accumulator] Ingest after Close: dropping fragment for detector %d", detectorID)
			return
		}
		e, ok := a.pending[detectorID]
		if !ok {
			e = &entry{}
			a.pending[detectorID] = e
		}
		a.mu.Unlock()

		e.mu.Lock()
		if e.removed {
			// Raced with a completion that already removed this entry;
			// re-lookup so the fragment starts a fresh frame.
			e.mu.Unlock()
			continue
		}

		if e.block == nil {
			e.block = a.startBlock(row, col, height, width, detectorID, frag)
		} else {
			if err := e.block.Spectrum.Add(frag); err != nil {
				monitoring.Logf("[Accumulator] Dropping fragment for detector %d at (%d,%d): %v", detectorID, row, col, err)
				e.mu.Unlock()
				return
			}
			e.block.Row = row
			e.block.Col = col
		}

		var done *xrf.StreamBlock
		if e.block.IsComplete(row, col) {
			done = e.block
			e.block = nil
			e.removed = true
		}
		e.mu.Unlock()

		if done != nil {
			a.mu.Lock()
			delete(a.pending, detectorID)
			a.mu.Unlock()
			a.completed.Add(1)
			a.dispatch(done)
		}
		return
	}
}

// startBlock seeds a new frame from its first fragment. The fitting
// context snapshot comes from the analysis job; an unknown detector
// still accumulates, it just carries no fit bindings.
func (a *Accumulator) startBlock(row, col, height, width, detectorID int, frag *spectrum.Spectrum) *xrf.StreamBlock {
	block := &xrf.StreamBlock{
		ID:         fmt.Sprintf("det%d-frame-%d", detectorID, a.frameCounter.Add(1)),
		DetectorID: detectorID,
		Row:        row,
		Col:        col,
		Height:     height,
		Width:      width,
		Spectrum:   frag,
	}
	if ctx, ok := a.job.Detector(detectorID); ok {
		block.Routines = ctx.Routines
		block.Elements = ctx.Elements
		block.Model = ctx.Model
	} else {
		monitoring.Logf("[Accumulator] No fitting context for detector %d; frame %s will carry no fit bindings", detectorID, block.ID)
	}
	a.started.Add(1)
	monitoring.Debugf("[Accumulator] Started frame %s at (%d,%d) extent (%d,%d)", block.ID, row, col, height, width)
	return block
}

// dispatch hands a completed frame to the callback worker. The hand-off
// never blocks: when the queue is full the frame is dropped and counted.
// The send happens under a.mu so it is ordered with Close closing the
// channel; a frame that completes after Close is discarded like any
// other late fragment.
func (a *Accumulator) dispatch(block *xrf.StreamBlock) {
	if a.outputCallback() == nil {
		a.discarded.Add(1)
		monitoring.Debugf("[Accumulator] No output callback; discarding completed frame %s", block.ID)
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.discarded.Add(1)
		monitoring.Debugf("[Accumulator] Frame %s completed after Close; discarding", block.ID)
		return
	}
	select {
	case a.blockCh <- block:
		a.mu.Unlock()
		monitoring.Debugf("[Accumulator] Completed frame %s for detector %d", block.ID, block.DetectorID)
	default:
		a.mu.Unlock()
		a.dropped.Add(1)
		monitoring.Logf("[Accumulator] Dropped completed frame %s: callback queue full", block.ID)
	}
}

// Reset discards all pending frames without invoking the output
// callback. Call it when switching scan sources so stale partial frames
// cannot contaminate the next scan.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.releasePendingLocked()
	if n > 0 {
		monitoring.Logf("[Accumulator] Reset: released %d pending frame(s)", n)
	}
}

// releasePendingLocked clears the pending map. Caller holds a.mu.
func (a *Accumulator) releasePendingLocked() int {
	n := 0
	for id, e := range a.pending {
		e.mu.Lock()
		if e.block != nil {
			n++
			a.discarded.Add(1)
		}
		e.block = nil
		e.removed = true
		e.mu.Unlock()
		delete(a.pending, id)
	}
	return n
}

// Close stops the callback worker, waits for queued frames to drain and
// releases any pending incomplete frames without invoking the callback.
// Pending frames lost this way are logged; losing them is not an error.
func (a *Accumulator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	n := a.releasePendingLocked()
	a.mu.Unlock()

	close(a.blockCh)
	<-a.blockDone

	if n > 0 {
		monitoring.Logf("[Accumulator] Close: released %d incomplete frame(s) without delivery", n)
	}
}

// Pending returns the number of in-progress frames.
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Stats is a snapshot of accumulator counters.
type Stats struct {
	FramesStarted   uint64
	FramesCompleted uint64
	FramesDropped   uint64 // completed but dropped: queue full
	FramesDiscarded uint64 // released without delivery: no callback, Reset or Close
}

// Stats returns the current counter snapshot.
func (a *Accumulator) Stats() Stats {
	return Stats{
		FramesStarted:   a.started.Load(),
		FramesCompleted: a.completed.Load(),
		FramesDropped:   a.dropped.Load(),
		FramesDiscarded: a.discarded.Load(),
	}
}
