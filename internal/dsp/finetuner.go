package dsp

import (
	"math"
	"math/cmplx"
)

// FineTuner rotates a complex baseband stream by a fixed frequency,
// removing the residual offset between the requested and actually tuned
// center frequency so the station sits at DC for the discriminator.
type FineTuner struct {
	rot    complex128
	phasor complex128
	count  int
}

// renormInterval bounds the amplitude drift of the recursive phasor.
const renormInterval = 4096

// NewFineTuner creates a mixer shifting the signal by -offset Hz at the
// given sample rate.
func NewFineTuner(sampleRate, offset float64) *FineTuner {
	w := -2 * math.Pi * offset / sampleRate
	return &FineTuner{
		rot:    complex(math.Cos(w), math.Sin(w)),
		phasor: complex(1, 0),
	}
}

// ProcessInPlace mixes a block of samples in place.
func (t *FineTuner) ProcessInPlace(block []IQSample) {
	for i, s := range block {
		m := complex128(s) * t.phasor
		block[i] = complex(float32(real(m)), float32(imag(m)))
		t.phasor *= t.rot
		t.count++
		if t.count >= renormInterval {
			t.phasor /= complex(cmplx.Abs(t.phasor), 0)
			t.count = 0
		}
	}
}
