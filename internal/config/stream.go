// Package config loads the runtime configuration for the XRF streaming
// daemon. The JSON schema uses pointer-optional fields so a partial file
// overrides only what it names; everything else keeps its default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ElementConfig is one element ROI: center in keV, width in eV.
type ElementConfig struct {
	CenterKeV float64 `json:"center_kev"`
	WidthEV   float64 `json:"width_ev"`
}

// StreamConfig is the root configuration for the streaming pipeline.
type StreamConfig struct {
	// Publish sink
	Endpoint    *string `json:"endpoint,omitempty"`
	SendSpectra *bool   `json:"send_spectra,omitempty"`

	// Detector / calibration
	NChannels    *int     `json:"n_channels,omitempty"`
	Detectors    *int     `json:"detectors,omitempty"`
	EnergyOffset *float64 `json:"energy_offset,omitempty"` // keV
	EnergySlope  *float64 `json:"energy_slope,omitempty"`  // keV per channel

	// Accumulator
	CallbackQueue *int `json:"callback_queue,omitempty"`

	// Storage; empty disables persistence.
	DBPath *string `json:"db_path,omitempty"`

	// Element ROI table. Defaults to a common K-line set when empty.
	Elements map[string]ElementConfig `json:"elements,omitempty"`
}

// Default values.
const (
	DefaultEndpoint    = "tcp://*:43434"
	DefaultNChannels   = 2048
	DefaultDetectors   = 4
	DefaultEnergySlope = 0.01 // 10 eV per channel
	DefaultQueueSize   = 8
)

// defaultElements is the fallback ROI table: common K-alpha lines with a
// 250 eV integration window.
func defaultElements() map[string]ElementConfig {
	return map[string]ElementConfig{
		"Si": {CenterKeV: 1.740, WidthEV: 250},
		"K":  {CenterKeV: 3.314, WidthEV: 250},
		"Ca": {CenterKeV: 3.692, WidthEV: 250},
		"Ti": {CenterKeV: 4.512, WidthEV: 250},
		"Mn": {CenterKeV: 5.899, WidthEV: 250},
		"Fe": {CenterKeV: 6.405, WidthEV: 250},
		"Cu": {CenterKeV: 8.046, WidthEV: 250},
		"Zn": {CenterKeV: 8.637, WidthEV: 250},
	}
}

// Load reads a StreamConfig from a JSON file, applies defaults and
// validates it. An empty path returns the defaults.
func Load(path string) (*StreamConfig, error) {
	cfg := &StreamConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *StreamConfig) ApplyDefaults() {
	if c.Endpoint == nil {
		c.Endpoint = ptrString(DefaultEndpoint)
	}
	if c.SendSpectra == nil {
		c.SendSpectra = ptrBool(false)
	}
	if c.NChannels == nil {
		c.NChannels = ptrInt(DefaultNChannels)
	}
	if c.Detectors == nil {
		c.Detectors = ptrInt(DefaultDetectors)
	}
	if c.EnergyOffset == nil {
		c.EnergyOffset = ptrFloat64(0)
	}
	if c.EnergySlope == nil {
		c.EnergySlope = ptrFloat64(DefaultEnergySlope)
	}
	if c.CallbackQueue == nil {
		c.CallbackQueue = ptrInt(DefaultQueueSize)
	}
	if c.DBPath == nil {
		c.DBPath = ptrString("")
	}
	if len(c.Elements) == 0 {
		c.Elements = defaultElements()
	}
}

// Validate rejects configurations that cannot produce a working
// pipeline. Call after ApplyDefaults.
func (c *StreamConfig) Validate() error {
	if *c.NChannels <= 0 {
		return fmt.Errorf("config: n_channels must be positive, got %d", *c.NChannels)
	}
	if *c.Detectors <= 0 {
		return fmt.Errorf("config: detectors must be positive, got %d", *c.Detectors)
	}
	if *c.EnergySlope <= 0 {
		return fmt.Errorf("config: energy_slope must be positive, got %f", *c.EnergySlope)
	}
	if *c.CallbackQueue < 0 {
		return fmt.Errorf("config: callback_queue must not be negative, got %d", *c.CallbackQueue)
	}
	for id, e := range c.Elements {
		if e.WidthEV <= 0 {
			return fmt.Errorf("config: element %s: width_ev must be positive, got %f", id, e.WidthEV)
		}
	}
	return nil
}

func ptrString(v string) *string { return &v }

func ptrBool(v bool) *bool { return &v }

func ptrInt(v int) *int { return &v }

func ptrFloat64(v float64) *float64 { return &v }
