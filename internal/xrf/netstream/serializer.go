package netstream

import (
	"encoding/json"

	"github.com/spectra-data/xrf.stream/internal/xrf"
)

// Serializer encodes a completed frame into a transport payload. The
// wire format belongs to the serializer, not the streamer; swapping in a
// different codec does not touch the publish discipline.
type Serializer interface {
	EncodeCounts(block *xrf.StreamBlock) ([]byte, error)
	EncodeSpectra(block *xrf.StreamBlock) ([]byte, error)
}

// countsPayload is the JSON counts message.
type countsPayload struct {
	FrameID         string             `json:"frame_id"`
	Detector        int                `json:"detector"`
	Row             int                `json:"row"`
	Col             int                `json:"col"`
	Height          int                `json:"height"`
	Width           int                `json:"width"`
	ElapsedLifetime float64            `json:"elapsed_lifetime"`
	ElapsedRealtime float64            `json:"elapsed_realtime"`
	InputCounts     float64            `json:"input_counts"`
	OutputCounts    float64            `json:"output_counts"`
	Counts          map[string]float64 `json:"counts"`
}

// spectraPayload is the JSON full-spectrum message.
type spectraPayload struct {
	FrameID         string    `json:"frame_id"`
	Detector        int       `json:"detector"`
	Row             int       `json:"row"`
	Col             int       `json:"col"`
	Height          int       `json:"height"`
	Width           int       `json:"width"`
	ElapsedLifetime float64   `json:"elapsed_lifetime"`
	ElapsedRealtime float64   `json:"elapsed_realtime"`
	InputCounts     float64   `json:"input_counts"`
	OutputCounts    float64   `json:"output_counts"`
	Channels        []float64 `json:"channels"`
}

// JSONSerializer is the default wire codec.
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

// EncodeCounts fits the block with its bound routine and encodes the
// per-element counts.
func (JSONSerializer) EncodeCounts(block *xrf.StreamBlock) ([]byte, error) {
	p := countsPayload{
		FrameID:  block.ID,
		Detector: block.DetectorID,
		Row:      block.Row,
		Col:      block.Col,
		Height:   block.Height,
		Width:    block.Width,
		Counts:   map[string]float64{},
	}
	if s := block.Spectrum; s != nil {
		p.ElapsedLifetime = s.ElapsedLifetime
		p.ElapsedRealtime = s.ElapsedRealtime
		p.InputCounts = s.InputCounts
		p.OutputCounts = s.OutputCounts
	}
	for id, c := range block.Fit() {
		p.Counts[id] = c
	}
	return json.Marshal(p)
}

// EncodeSpectra encodes the full cumulative spectrum.
func (JSONSerializer) EncodeSpectra(block *xrf.StreamBlock) ([]byte, error) {
	p := spectraPayload{
		FrameID:  block.ID,
		Detector: block.DetectorID,
		Row:      block.Row,
		Col:      block.Col,
		Height:   block.Height,
		Width:    block.Width,
	}
	if s := block.Spectrum; s != nil {
		p.ElapsedLifetime = s.ElapsedLifetime
		p.ElapsedRealtime = s.ElapsedRealtime
		p.InputCounts = s.InputCounts
		p.OutputCounts = s.OutputCounts
		p.Channels = s.Counts
	}
	return json.Marshal(p)
}
