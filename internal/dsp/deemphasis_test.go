package dsp

import (
	"math"
	"testing"
)

// TestDeemphasisStepResponse drives the filter with a unit step and checks
// the output against the analytic first-order response 1 - exp(-t/tau).
// A sample rate well above 1/tau keeps the discretization error small.
func TestDeemphasisStepResponse(t *testing.T) {
	const sampleRate = 1000000.0
	const tau = 50e-6

	deemph := NewDeemphasis(sampleRate, tau)

	dt := 1.0 / sampleRate
	for i := 0; i < 500; i++ {
		got := deemph.Filter(1.0)
		// The filter has seen the step for i+1 sample intervals.
		want := 1 - math.Exp(-float64(i+1)*dt/tau)
		if math.Abs(got-want) > 0.02 {
			t.Fatalf("sample %d: got %f, want %f", i, got, want)
		}
	}
}

func TestDeemphasisStepMonotoneAndBounded(t *testing.T) {
	const sampleRate = 48000.0
	const tau = 75e-6

	deemph := NewDeemphasis(sampleRate, tau)

	var last float64
	for i := 0; i < 100; i++ {
		out := deemph.Filter(1.0)
		if i > 0 && out < last {
			t.Fatalf("output decreased on step input at sample %d", i)
		}
		if out > 1.0 {
			t.Fatalf("output exceeded input value at sample %d", i)
		}
		last = out
	}

	// After a second of settling the output is at the final value.
	for i := 0; i < int(sampleRate); i++ {
		deemph.Filter(1.0)
	}
	if final := deemph.Filter(1.0); !almostEqual(float32(final), 1.0) {
		t.Errorf("expected settling near 1.0, got %f", final)
	}
}

// TestDeemphasisHighFrequencyAttenuation checks the defining property: a
// tone near the top of the audio band comes out attenuated by roughly
// 1/sqrt(1+(2*pi*f*tau)^2).
func TestDeemphasisHighFrequencyAttenuation(t *testing.T) {
	const sampleRate = 48000.0
	const tau = 50e-6
	const freq = 10000.0

	deemph := NewDeemphasis(sampleRate, tau)

	var peak float64
	for i := 0; i < 4800; i++ {
		out := deemph.Filter(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
		if i > 1000 && math.Abs(out) > peak {
			peak = math.Abs(out)
		}
	}

	want := 1 / math.Sqrt(1+math.Pow(2*math.Pi*freq*tau, 2))
	if math.Abs(peak-want) > 0.1*want {
		t.Errorf("attenuation at %v Hz: got %f, want about %f", freq, peak, want)
	}
}
