package dsp

// Deemphasis is a first-order low-pass IIR filter undoing the transmitter's
// pre-emphasis. One instance per audio channel; state persists across
// blocks.
type Deemphasis struct {
	alpha float64
	prev  float64
}

// NewDeemphasis creates a de-emphasis filter for the given audio sample
// rate and time constant in seconds (50e-6 for Europe, 75e-6 for the US).
func NewDeemphasis(sampleRate float64, tau float64) *Deemphasis {
	dt := 1.0 / sampleRate
	return &Deemphasis{alpha: dt / (tau + dt)}
}

// Filter applies the de-emphasis filter to a single sample.
func (d *Deemphasis) Filter(x float64) float64 {
	d.prev += d.alpha * (x - d.prev)
	return d.prev
}

// ProcessInPlace filters a block of samples in place.
func (d *Deemphasis) ProcessInPlace(block []float32) {
	for i, x := range block {
		block[i] = float32(d.Filter(float64(x)))
	}
}
