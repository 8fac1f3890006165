// Package sqlite persists completed frame results. It is the storage
// counterpart to the live network feed: the same output callback that
// feeds the net streamer can record every completed frame here.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/spectra-data/xrf.stream/internal/monitoring"
	"github.com/spectra-data/xrf.stream/internal/xrf"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	run_id     TEXT PRIMARY KEY,
	started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS frame_counts (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	frame_id         TEXT NOT NULL,
	detector         INTEGER NOT NULL,
	scan_row         INTEGER NOT NULL,
	scan_col         INTEGER NOT NULL,
	height           INTEGER NOT NULL,
	width            INTEGER NOT NULL,
	element          TEXT NOT NULL,
	counts           DOUBLE NOT NULL,
	elapsed_lifetime DOUBLE,
	elapsed_realtime DOUBLE,
	input_counts     DOUBLE,
	output_counts    DOUBLE,
	recorded_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY(run_id) REFERENCES scan_runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_frame_counts_frame ON frame_counts(frame_id);
CREATE INDEX IF NOT EXISTS idx_frame_counts_run ON frame_counts(run_id);
`

// CountsStore records per-element integrated counts for completed
// frames, grouped under a scan-run id minted at construction.
type CountsStore struct {
	db    *sql.DB
	runID string
}

// NewCountsStore creates the schema if needed and registers a new scan
// run. The caller owns the *sql.DB lifetime.
func NewCountsStore(db *sql.DB) (*CountsStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	runID := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO scan_runs (run_id) VALUES (?)`, runID); err != nil {
		return nil, fmt.Errorf("sqlite: register scan run: %w", err)
	}
	return &CountsStore{db: db, runID: runID}, nil
}

// RunID returns the scan-run identifier rows are recorded under.
func (s *CountsStore) RunID() string {
	return s.runID
}

// RecordBlock fits the block with its bound routine and inserts one row
// per element. Blocks without fit bindings are skipped.
func (s *CountsStore) RecordBlock(block *xrf.StreamBlock) error {
	counts := block.Fit()
	if counts == nil {
		return fmt.Errorf("sqlite: frame %s has no fit bindings", block.ID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO frame_counts
			(run_id, frame_id, detector, scan_row, scan_col, height, width,
			 element, counts, elapsed_lifetime, elapsed_realtime, input_counts, output_counts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	spec := block.Spectrum
	for element, c := range counts {
		if _, err := stmt.Exec(
			s.runID, block.ID, block.DetectorID,
			block.Row, block.Col, block.Height, block.Width,
			element, c,
			spec.ElapsedLifetime, spec.ElapsedRealtime,
			spec.InputCounts, spec.OutputCounts,
		); err != nil {
			return fmt.Errorf("sqlite: insert %s/%s: %w", block.ID, element, err)
		}
	}
	return tx.Commit()
}

// Sink adapts the store to the accumulator's output-callback signature.
// Persistence failures for a single frame are logged, not propagated:
// one bad frame must not take down the pipeline.
func (s *CountsStore) Sink() func(*xrf.StreamBlock) {
	return func(block *xrf.StreamBlock) {
		if err := s.RecordBlock(block); err != nil {
			monitoring.Logf("[CountsStore] Failed to record frame %s: %v", block.ID, err)
		}
	}
}

// FrameCounts returns the recorded per-element counts for a frame id.
func (s *CountsStore) FrameCounts(frameID string) (xrf.CountsMap, error) {
	rows, err := s.db.Query(
		`SELECT element, counts FROM frame_counts WHERE frame_id = ? AND run_id = ?`,
		frameID, s.runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query frame %s: %w", frameID, err)
	}
	defer rows.Close()

	counts := make(xrf.CountsMap)
	for rows.Next() {
		var element string
		var c float64
		if err := rows.Scan(&element, &c); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		counts[element] = c
	}
	return counts, rows.Err()
}

// FrameIDs returns the distinct frame ids recorded for this run.
func (s *CountsStore) FrameIDs() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT frame_id FROM frame_counts WHERE run_id = ? ORDER BY frame_id`,
		s.runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query frames: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
