// Package decoder implements the broadcast-FM demodulation pipeline:
// IF downsampling, offset mixing, FM discrimination, pilot tracking,
// stereo decoding, de-emphasis and PCM resampling, with signal-level and
// deviation telemetry on the side.
package decoder

import (
	"fmt"
	"math"

	"fmradio/internal/dsp"
)

// levelAlpha smooths the per-block level estimates.
const levelAlpha = 0.05

// Decoder turns I/Q blocks into PCM blocks. One instance is owned by a
// single processing goroutine; Process must not be called concurrently.
type Decoder struct {
	cfg Config

	downsampler  *dsp.IQDownsampler
	tuner        *dsp.FineTuner
	disc         *dsp.Discriminator
	pll          *PilotPhaseLock
	monoResamp   *dsp.Resampler
	stereoResamp *dsp.Resampler
	deemph       [2]*dsp.Deemphasis
	hist         *Histogram

	ifRateDown float64

	ifLevel       float64
	basebandLevel float64
	offsetEst     float64
	pps           []PpsEvent

	baseband  []float32
	pilotRef  []float32
	stereoRaw []float32
}

// New builds a decoder for the given configuration. Derived parameters
// (downsample factor, PCM bandwidth) are filled in from the defaults when
// unset.
func New(cfg Config) (*Decoder, error) {
	if cfg.IFRate <= 0 {
		return nil, fmt.Errorf("decoder: IF rate %v Hz is not positive", cfg.IFRate)
	}
	cfg.normalize()

	ifRateDown := cfg.IFRate / float64(cfg.DownsampleFactor)
	if ifRateDown < cfg.PCMRate {
		return nil, fmt.Errorf("decoder: decimated IF rate %.0f Hz below PCM rate %.0f Hz", ifRateDown, cfg.PCMRate)
	}

	d := &Decoder{
		cfg:        cfg,
		ifRateDown: ifRateDown,
		pll:        NewPilotPhaseLock(ifRateDown),
	}

	if cfg.DownsampleFactor > 1 {
		taps := dsp.DesignLowPassFIR(10*cfg.DownsampleFactor+1, cfg.IFBandwidth/cfg.IFRate)
		d.downsampler = dsp.NewIQDownsampler(taps, cfg.DownsampleFactor)
	}
	if cfg.TuningOffset != 0 {
		d.tuner = dsp.NewFineTuner(ifRateDown, cfg.TuningOffset)
	}
	d.disc = dsp.NewDiscriminator(ifRateDown, cfg.PeakDeviation, cfg.FreqScale, cfg.ExactAtan)

	audioTaps := dsp.DesignLowPassFIR(121, cfg.PCMBandwidth/ifRateDown)
	ratio := cfg.PCMRate / ifRateDown
	d.monoResamp = dsp.NewResampler(audioTaps, ratio)
	if cfg.Stereo {
		d.stereoResamp = dsp.NewResampler(append([]float64(nil), audioTaps...), ratio)
	}

	if cfg.DeemphasisTau > 0 {
		for i := range d.deemph {
			d.deemph[i] = dsp.NewDeemphasis(cfg.PCMRate, cfg.DeemphasisTau)
		}
	}
	if cfg.Histogram {
		d.hist = &Histogram{}
	}
	return d, nil
}

// Config returns the normalized configuration.
func (d *Decoder) Config() Config {
	return d.cfg
}

// IntermediateRate returns the sample rate after IF downsampling, at which
// the discriminator and the pilot PLL run.
func (d *Decoder) IntermediateRate() float64 {
	return d.ifRateDown
}

// Process decodes one I/Q block into interleaved PCM samples. It may
// return an empty block while the decimation filters fill.
func (d *Decoder) Process(iq []dsp.IQSample) []float32 {
	if len(iq) == 0 {
		return nil
	}

	ds := iq
	if d.downsampler != nil {
		ds = d.downsampler.Process(iq)
	}
	if len(ds) == 0 {
		return nil
	}

	if d.tuner != nil {
		d.tuner.ProcessInPlace(ds)
	}
	d.ifLevel += levelAlpha * (rmsIQ(ds) - d.ifLevel)

	d.baseband = d.disc.Process(ds, d.baseband)
	bb := d.baseband

	mean, rms := meanRMS(bb)
	d.basebandLevel += levelAlpha * (rms - d.basebandLevel)
	devScale := d.cfg.PeakDeviation / d.cfg.FreqScale
	d.offsetEst += levelAlpha * (mean*devScale - d.offsetEst)

	if d.hist != nil {
		for _, v := range bb {
			d.hist.Update(float64(v) * devScale)
		}
	}

	d.pilotRef = grow(d.pilotRef, len(bb))
	d.pll.Process(bb, d.pilotRef)
	d.pps = append(d.pps, d.pll.Events()...)

	mono := d.monoResamp.Process(bb)
	if !d.cfg.Stereo {
		out := make([]float32, len(mono))
		copy(out, mono)
		if d.deemph[0] != nil {
			d.deemph[0].ProcessInPlace(out)
		}
		return out
	}

	// Coherent DSB-SC demodulation of the stereo difference signal. The
	// branch runs even when unlocked so the filter state stays continuous
	// across lock transitions.
	d.stereoRaw = grow(d.stereoRaw, len(bb))
	for i, v := range bb {
		d.stereoRaw[i] = 2 * v * d.pilotRef[i]
	}
	diff := d.stereoResamp.Process(d.stereoRaw[:len(bb)])

	n := len(mono)
	if len(diff) < n {
		n = len(diff)
	}
	out := make([]float32, 2*n)
	if d.pll.Locked() {
		gain := float32(d.cfg.StereoGain)
		for i := 0; i < n; i++ {
			m := mono[i]
			s := gain * diff[i]
			out[2*i] = (m + s) / 2
			out[2*i+1] = (m - s) / 2
		}
	} else {
		for i := 0; i < n; i++ {
			out[2*i] = mono[i]
			out[2*i+1] = mono[i]
		}
	}
	if d.deemph[0] != nil {
		for i := 0; i < n; i++ {
			out[2*i] = float32(d.deemph[0].Filter(float64(out[2*i])))
			out[2*i+1] = float32(d.deemph[1].Filter(float64(out[2*i+1])))
		}
	}
	return out
}

// IFLevel returns the smoothed RMS level of the decimated I/Q signal.
func (d *Decoder) IFLevel() float64 { return d.ifLevel }

// BasebandLevel returns the smoothed RMS level of the demodulated baseband.
func (d *Decoder) BasebandLevel() float64 { return d.basebandLevel }

// PilotLevel returns the smoothed 19 kHz pilot amplitude.
func (d *Decoder) PilotLevel() float64 { return d.pll.PilotLevel() }

// StereoLocked reports whether the pilot PLL is locked.
func (d *Decoder) StereoLocked() bool { return d.pll.Locked() }

// TuningOffsetEstimate returns the estimated residual frequency offset in
// Hz, derived from the mean baseband value.
func (d *Decoder) TuningOffsetEstimate() float64 { return d.offsetEst }

// PpsEvents returns the PPS events accumulated since the previous call and
// clears the list.
func (d *Decoder) PpsEvents() []PpsEvent {
	ev := d.pps
	d.pps = nil
	return ev
}

// Histogram returns the deviation histogram, or nil when disabled.
func (d *Decoder) Histogram() *Histogram { return d.hist }

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

func rmsIQ(block []dsp.IQSample) float64 {
	if len(block) == 0 {
		return 0
	}
	var acc float64
	for _, s := range block {
		acc += float64(real(s))*float64(real(s)) + float64(imag(s))*float64(imag(s))
	}
	return math.Sqrt(acc / float64(len(block)))
}

func meanRMS(block []float32) (mean, rms float64) {
	if len(block) == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, v := range block {
		f := float64(v)
		sum += f
		sq += f * f
	}
	n := float64(len(block))
	return sum / n, math.Sqrt(sq / n)
}
