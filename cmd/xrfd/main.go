// Command xrfd runs the XRF streaming pipeline: it assembles per-pixel
// detector spectra into frames, fits them and publishes the per-element
// counts on a live feed (and optionally into a sqlite database).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/spectra-data/xrf.stream/internal/config"
	"github.com/spectra-data/xrf.stream/internal/monitoring"
	"github.com/spectra-data/xrf.stream/internal/xrf/pipeline"
	"github.com/spectra-data/xrf.stream/internal/xrf/synthetic"
)

var (
	configPath = flag.String("config", "", "Path to JSON stream configuration")
	endpoint   = flag.String("endpoint", "", "Publish endpoint override (e.g. tcp://*:43434)")
	dbPath     = flag.String("db", "", "SQLite database path override (empty disables persistence)")
	spectra    = flag.Bool("spectra", false, "Publish full spectra instead of per-element counts")
	debug      = flag.Bool("debug", false, "Enable debug logging")

	runSynthetic = flag.Bool("synthetic", false, "Run a synthetic scan and exit")
	rows         = flag.Int("rows", 10, "Synthetic scan rows")
	cols         = flag.Int("cols", 10, "Synthetic scan columns")
)

func main() {
	flag.Parse()
	monitoring.SetDebug(*debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *spectra {
		cfg.SendSpectra = spectra
	}

	rt, err := pipeline.NewRuntime(cfg, pipeline.Options{})
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer rt.Close()

	log.Printf("xrfd: %d detector(s), %d channels, publishing on %s",
		rt.Detectors, rt.NChannels, *cfg.Endpoint)

	if *runSynthetic {
		log.Printf("xrfd: running synthetic %dx%d scan", *rows, *cols)
		synthetic.Run(synthetic.ScanConfig{
			Rows:         *rows,
			Cols:         *cols,
			Detectors:    rt.Detectors,
			NChannels:    rt.NChannels,
			EnergyOffset: *cfg.EnergyOffset,
			EnergySlope:  *cfg.EnergySlope,
			Elements:     rt.Elements,
		}, rt.Accumulator)
		rt.Close()
		logStats(rt)
		return
	}

	// Fragments arrive from an external scan driver; keep the pipeline
	// up until interrupted.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Printf("xrfd: received %v, shutting down", s)
	if pending := rt.Accumulator.Pending(); pending > 0 {
		log.Printf("xrfd: releasing %d incomplete frame(s)", pending)
	}
	rt.Close()
	logStats(rt)
}

func logStats(rt *pipeline.Runtime) {
	acc := rt.Accumulator.Stats()
	pub := rt.Streamer.Stats()
	log.Printf("xrfd: frames started=%d completed=%d dropped=%d discarded=%d; published=%d publish_drops=%d",
		acc.FramesStarted, acc.FramesCompleted, acc.FramesDropped, acc.FramesDiscarded,
		pub.Sent, pub.Dropped)
}
