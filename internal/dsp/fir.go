package dsp

// IQDownsampler is a stateful decimating FIR filter for complex baseband
// samples. It low-pass filters the input and keeps every factor'th sample,
// reducing the IF rate before the expensive demodulation stages.
type IQDownsampler struct {
	taps   []float64
	factor int
	state  []IQSample
	skip   int
}

// NewIQDownsampler creates a decimator with the given taps and integer
// decimation factor (>= 1).
func NewIQDownsampler(taps []float64, factor int) *IQDownsampler {
	return &IQDownsampler{
		taps:   taps,
		factor: factor,
	}
}

// Process filters and decimates a block of samples, carrying the delay line
// across calls. Returns nil when the buffered input is still shorter than
// the filter.
func (f *IQDownsampler) Process(input []IQSample) []IQSample {
	buffer := make([]IQSample, len(f.state)+len(input))
	copy(buffer, f.state)
	copy(buffer[len(f.state):], input)

	K := len(f.taps)
	if len(buffer) < K {
		f.state = buffer
		return nil
	}

	var output []IQSample
	p := f.skip
	for ; p+K <= len(buffer); p += f.factor {
		var accI, accQ float64
		for j, tap := range f.taps {
			s := buffer[p+j]
			accI += float64(real(s)) * tap
			accQ += float64(imag(s)) * tap
		}
		output = append(output, complex(float32(accI), float32(accQ)))
	}

	// Keep the last K-1 samples as the next delay line and translate the
	// next output position into the retained region.
	newStart := len(buffer) - (K - 1)
	f.state = buffer[newStart:]
	f.skip = p - newStart
	return output
}

// Resampler is a stateful FIR low-pass filter that converts a real-valued
// signal to a lower sample rate by an arbitrary ratio. Output instants that
// fall between input samples are linearly interpolated from the two
// adjacent filter outputs.
type Resampler struct {
	taps  []float64
	step  float64
	state []float32
	pos   float64
}

// NewResampler creates a resampler with the given anti-alias taps.
// ratio = outputRate / inputRate and must be <= 1.
func NewResampler(taps []float64, ratio float64) *Resampler {
	return &Resampler{
		taps: taps,
		step: 1.0 / ratio,
	}
}

func (f *Resampler) dot(buffer []float32, start int) float64 {
	var acc float64
	for j, tap := range f.taps {
		acc += float64(buffer[start+j]) * tap
	}
	return acc
}

// Process filters and resamples a block of input samples, updating the
// filter's internal state. May return nil while the filter fills.
func (f *Resampler) Process(input []float32) []float32 {
	buffer := make([]float32, len(f.state)+len(input))
	copy(buffer, f.state)
	copy(buffer[len(f.state):], input)

	K := len(f.taps)
	if len(buffer) <= K+1 {
		f.state = buffer
		return nil
	}

	var output []float32
	for int(f.pos)+K+1 <= len(buffer) {
		start := int(f.pos)
		frac := f.pos - float64(start)
		y := f.dot(buffer, start)
		if frac > 0 {
			y += frac * (f.dot(buffer, start+1) - y)
		}
		output = append(output, float32(y))
		f.pos += f.step
	}

	newStart := len(buffer) - (K + 1)
	f.state = buffer[newStart:]
	f.pos -= float64(newStart)
	return output
}
