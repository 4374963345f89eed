// Package config holds the user-facing run parameters and their defaults.
package config

import (
	"errors"

	"fmradio/internal/decoder"
)

// Params collects everything configurable from the command line.
type Params struct {
	SourceType   string
	SourceConfig string
	Frequency    float64 // requested tune frequency override in Hz, 0 = source's own

	Mono          bool
	DeemphasisUS  float64 // microseconds; 0 disables de-emphasis
	IFBandwidth   float64 // Hz
	PeakDeviation float64 // Hz
	PCMRate       int
	ExactAtan     bool

	BufferSecs float64 // >0 enables the buffered output goroutine
	PPSPath    string
	Histogram  bool
	Quiet      bool

	RawPath string
	WavPath string
	Play    bool
}

// New returns run parameters with broadcast-FM defaults.
func New() *Params {
	return &Params{
		SourceType:    "wavfile",
		DeemphasisUS:  decoder.DefaultDeemphasisTau * 1e6,
		IFBandwidth:   decoder.DefaultIFBandwidth,
		PeakDeviation: decoder.DefaultPeakDeviation,
		PCMRate:       decoder.DefaultPCMRate,
	}
}

// Validate checks option combinations before any device is opened.
func (p *Params) Validate() error {
	outputs := 0
	if p.RawPath != "" {
		outputs++
	}
	if p.WavPath != "" {
		outputs++
	}
	if p.Play {
		outputs++
	}
	if outputs > 1 {
		return errors.New("config: choose at most one of raw, wav or playback output")
	}
	if p.PCMRate <= 0 {
		return errors.New("config: PCM rate must be positive")
	}
	if p.BufferSecs < 0 {
		return errors.New("config: buffer length must not be negative")
	}
	return nil
}

// DecoderConfig builds the immutable decoder configuration from the
// device-reported IF rate and the residual tuning offset.
func (p *Params) DecoderConfig(ifRate, tuningOffset float64) decoder.Config {
	return decoder.Config{
		IFRate:        ifRate,
		TuningOffset:  tuningOffset,
		PCMRate:       float64(p.PCMRate),
		Stereo:        !p.Mono,
		DeemphasisTau: p.DeemphasisUS * 1e-6,
		IFBandwidth:   p.IFBandwidth,
		PeakDeviation: p.PeakDeviation,
		Histogram:     p.Histogram,
		ExactAtan:     p.ExactAtan,
	}
}
