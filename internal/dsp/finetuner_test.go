package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFineTunerCentersOffsetTone generates a tone at +offset Hz and checks
// that after mixing its residual phase rotation is near zero.
func TestFineTunerCentersOffsetTone(t *testing.T) {
	const sampleRate = 250000.0
	const offset = 12500.0
	const numSamples = 25000

	block := make([]IQSample, numSamples)
	for i := range block {
		w := 2 * math.Pi * offset * float64(i) / sampleRate
		block[i] = complex(float32(math.Cos(w)), float32(math.Sin(w)))
	}

	NewFineTuner(sampleRate, offset).ProcessInPlace(block)

	// The mixed signal is a constant phasor; consecutive samples rotate by
	// at most the accumulated float rounding.
	for i := 1; i < numSamples; i++ {
		d := complex128(block[i]) * cmplx.Conj(complex128(block[i-1]))
		assert.InDelta(t, 0, cmplx.Phase(d), 1e-3)
	}
}

// TestFineTunerAmplitudeStable verifies the periodic renormalization keeps
// the mixer phasor on the unit circle over long runs.
func TestFineTunerAmplitudeStable(t *testing.T) {
	const sampleRate = 250000.0
	const offset = 7300.0

	tuner := NewFineTuner(sampleRate, offset)
	block := makeConstIQ(4096, complex(1, 0))
	for pass := 0; pass < 200; pass++ {
		copy(block, makeConstIQ(len(block), complex(1, 0)))
		tuner.ProcessInPlace(block)
	}
	for _, s := range block {
		assert.InDelta(t, 1.0, cmplx.Abs(complex128(s)), 1e-3)
	}
}

func TestFineTunerZeroOffsetIsIdentityRotation(t *testing.T) {
	tuner := NewFineTuner(48000, 0)
	block := makeConstIQ(100, complex(0.5, 0.5))
	tuner.ProcessInPlace(block)
	for _, s := range block {
		assert.InDelta(t, 0.5, real(s), 1e-6)
		assert.InDelta(t, 0.5, imag(s), 1e-6)
	}
}
