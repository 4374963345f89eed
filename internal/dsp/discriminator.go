package dsp

import "math"

// Discriminator converts complex baseband samples into instantaneous
// frequency: the phase difference between consecutive samples, scaled so
// that the configured peak deviation maps to an amplitude of one.
//
// The phase computation is a pure numeric policy chosen once at
// construction: math.Atan2, or a fast rational approximation whose error
// stays below 0.005 radians.
type Discriminator struct {
	prev  IQSample
	gain  float64
	atan2 func(y, x float64) float64
}

// NewDiscriminator creates an FM discriminator. sampleRate is the rate of
// the incoming complex stream, peakDeviation the frequency deviation in Hz
// that maps to full scale, and scale an additional amplitude factor.
// When exact is false the fast approximate arctangent is used.
func NewDiscriminator(sampleRate, peakDeviation, scale float64, exact bool) *Discriminator {
	d := &Discriminator{
		gain:  scale * sampleRate / (2 * math.Pi * peakDeviation),
		atan2: fastAtan2,
	}
	if exact {
		d.atan2 = math.Atan2
	}
	return d
}

// Process demodulates a block of complex samples into baseband amplitudes.
// The first output sample of the stream is computed against a zero state
// and should be treated as a start-up transient.
func (d *Discriminator) Process(input []IQSample, output []float32) []float32 {
	if cap(output) < len(input) {
		output = make([]float32, len(input))
	}
	output = output[:len(input)]
	prev := d.prev
	for i, cur := range input {
		// Multiply by the conjugate of the previous sample; the angle of
		// the product is the phase advance.
		p := cur * complex(real(prev), -imag(prev))
		output[i] = float32(d.atan2(float64(imag(p)), float64(real(p))) * d.gain)
		prev = cur
	}
	d.prev = prev
	return output
}

// Gain returns the phase-to-amplitude scale factor.
func (d *Discriminator) Gain() float64 {
	return d.gain
}

// fastAtan2 is a rational approximation of atan2 with a maximum error of
// about 0.005 radians.
func fastAtan2(y, x float64) float64 {
	if y == 0 && x == 0 {
		return 0
	}
	const coeff1 = math.Pi / 4
	const coeff2 = 3 * math.Pi / 4
	absY := math.Abs(y) + 1e-20

	var angle float64
	if x >= 0 {
		r := (x - absY) / (x + absY)
		angle = 0.1963*r*r*r - 0.9817*r + coeff1
	} else {
		r := (x + absY) / (absY - x)
		angle = 0.1963*r*r*r - 0.9817*r + coeff2
	}
	if y < 0 {
		return -angle
	}
	return angle
}
