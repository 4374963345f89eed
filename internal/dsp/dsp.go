// Package dsp provides the filter and mixer building blocks of the FM
// demodulation pipeline. All block-oriented types carry their delay-line
// state across calls, so feeding a signal in chunks produces the same
// output as feeding it in one piece.
package dsp

import "math"

// IQSample is one complex baseband sample, unit-scaled to roughly [-1,1].
type IQSample = complex64

// DesignLowPassFIR creates a low-pass FIR filter using the windowed-sinc
// method with a Hamming window. cutoff is the -6 dB frequency as a fraction
// of the sample rate. The taps are normalized for unit DC gain.
func DesignLowPassFIR(numTaps int, cutoff float64) []float64 {
	taps := make([]float64, numTaps)
	M := float64(numTaps - 1)
	// Normalize the cutoff to the Nyquist frequency (0.5 * sample rate).
	fc := cutoff * 2
	for n := 0; n < numTaps; n++ {
		x := float64(n) - M/2
		if x == 0 {
			taps[n] = fc
		} else {
			taps[n] = fc * math.Sin(math.Pi*fc*x) / (math.Pi * fc * x)
		}
		// Hamming window
		taps[n] *= 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/M)
	}
	sum := 0.0
	for _, t := range taps {
		sum += t
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}
