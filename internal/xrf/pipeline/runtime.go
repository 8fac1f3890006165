// Package pipeline is the composition root for the XRF streaming
// pipeline: it builds the analysis job, the frame accumulator and the
// downstream sinks from a StreamConfig and wires completed frames
// through to them. Layer packages (spectrum, xrf, fit, stream,
// netstream, storage) never import pipeline.
package pipeline

import (
	"database/sql"
	"fmt"

	"github.com/spectra-data/xrf.stream/internal/config"
	"github.com/spectra-data/xrf.stream/internal/monitoring"
	"github.com/spectra-data/xrf.stream/internal/xrf"
	"github.com/spectra-data/xrf.stream/internal/xrf/fit"
	"github.com/spectra-data/xrf.stream/internal/xrf/netstream"
	storage "github.com/spectra-data/xrf.stream/internal/xrf/storage/sqlite"
	"github.com/spectra-data/xrf.stream/internal/xrf/stream"
)

// Options carries test seams and optional overrides for NewRuntime.
type Options struct {
	// SocketFactory overrides PUB socket creation (tests).
	SocketFactory netstream.SocketFactory
}

// Runtime bundles the wired pipeline for one scan session. Construct
// with NewRuntime, feed fragments through Accumulator, Close when done.
type Runtime struct {
	Job         *xrf.AnalysisJob
	Accumulator *stream.Accumulator
	Streamer    *netstream.Streamer
	Store       *storage.CountsStore

	NChannels int
	Detectors int
	Elements  xrf.ElementMap

	db *sql.DB
}

// NewRuntime builds and wires the full pipeline. Configuration errors
// (bad endpoint, unreachable database) fail construction; there is no
// runtime recovery from them.
func NewRuntime(cfg *config.StreamConfig, opts Options) (*Runtime, error) {
	rt := &Runtime{
		Job:       xrf.NewAnalysisJob(),
		NChannels: *cfg.NChannels,
		Detectors: *cfg.Detectors,
	}

	elements := make(xrf.ElementMap, len(cfg.Elements))
	for id, e := range cfg.Elements {
		elements[id] = xrf.ElementROI{CenterKeV: e.CenterKeV, WidthEV: e.WidthEV}
	}
	rt.Elements = elements
	model := &xrf.CalibrationModel{Offset: *cfg.EnergyOffset, Slope: *cfg.EnergySlope}
	energy := xrf.EnergyRange{Min: 0, Max: rt.NChannels - 1}

	for det := 0; det < rt.Detectors; det++ {
		routine := fit.NewROIRoutine()
		if err := routine.Initialize(model, elements, energy); err != nil {
			return nil, fmt.Errorf("pipeline: initialize routine for detector %d: %w", det, err)
		}
		rt.Job.AddDetector(det, &xrf.DetectorContext{
			Routines: []xrf.FitRoutine{routine},
			Elements: elements,
			Model:    model,
		})
	}

	streamer, err := netstream.NewStreamer(netstream.Config{
		Endpoint:      *cfg.Endpoint,
		SendSpectra:   *cfg.SendSpectra,
		SocketFactory: opts.SocketFactory,
	})
	if err != nil {
		return nil, err
	}
	rt.Streamer = streamer

	if *cfg.DBPath != "" {
		db, err := sql.Open("sqlite", *cfg.DBPath)
		if err != nil {
			rt.Streamer.Close()
			return nil, fmt.Errorf("pipeline: open database %s: %w", *cfg.DBPath, err)
		}
		store, err := storage.NewCountsStore(db)
		if err != nil {
			db.Close()
			rt.Streamer.Close()
			return nil, err
		}
		rt.db = db
		rt.Store = store
		monitoring.Logf("[Pipeline] Recording counts to %s (run %s)", *cfg.DBPath, store.RunID())
	}

	acc, err := stream.NewAccumulator(stream.Config{
		Job:            rt.Job,
		QueueSize:      *cfg.CallbackQueue,
		OutputCallback: rt.deliver,
	})
	if err != nil {
		rt.closeSinks()
		return nil, err
	}
	rt.Accumulator = acc

	return rt, nil
}

// deliver fans a completed frame out to every configured sink. It runs
// on the accumulator's callback worker, so sinks execute one frame at a
// time in completion order.
func (rt *Runtime) deliver(block *xrf.StreamBlock) {
	rt.Streamer.Stream(block)
	if rt.Store != nil {
		rt.Store.Sink()(block)
	}
}

// Close shuts the pipeline down in dependency order: the accumulator
// first (draining queued frames into the sinks), then the sinks.
func (rt *Runtime) Close() {
	if rt.Accumulator != nil {
		rt.Accumulator.Close()
	}
	rt.closeSinks()
}

func (rt *Runtime) closeSinks() {
	if rt.Streamer != nil {
		if err := rt.Streamer.Close(); err != nil {
			monitoring.Logf("[Pipeline] Error closing streamer: %v", err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			monitoring.Logf("[Pipeline] Error closing database: %v", err)
		}
	}
}
