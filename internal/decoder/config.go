package decoder

import "math"

// Default decoder parameters.
const (
	DefaultDeemphasisTau   = 50e-6  // seconds (Europe; US uses 75e-6)
	DefaultIFBandwidth     = 100000 // Hz, half bandwidth of the FM channel
	DefaultPeakDeviation   = 75000  // Hz
	DefaultExcessBandwidth = 0.075
	DefaultFreqScale       = 1.0
	DefaultStereoGain      = 1.17
	DefaultPCMRate         = 48000
)

// pcmBandwidthCap bounds the audio low-pass to keep the anti-alias filter
// realizable at the PCM rate.
const pcmBandwidthCap = 0.45

// Config holds the immutable per-run decoder parameters. Zero-valued
// derived fields (PCMBandwidth, DownsampleFactor) are filled in by
// normalize when the Decoder is built.
type Config struct {
	IFRate           float64 // input I/Q sample rate, Hz
	TuningOffset     float64 // requested minus actual tuned frequency, Hz
	PCMRate          float64 // output audio rate, Hz
	Stereo           bool
	DeemphasisTau    float64 // seconds; 0 disables de-emphasis
	IFBandwidth      float64 // Hz
	PeakDeviation    float64 // Hz
	PCMBandwidth     float64 // Hz; 0 derives from PCMRate
	DownsampleFactor int     // 0 derives from IFBandwidth
	ExcessBandwidth  float64 // margin for the downsample factor; 0 = default
	FreqScale        float64 // deviation-to-amplitude scale; 0 = default
	StereoGain       float64 // 0 = default
	Histogram        bool
	ExactAtan        bool // exact arctangent discriminator
}

// DownsampleFactor computes the largest integer decimation that keeps the
// decimated rate above twice the occupied IF bandwidth plus the excess
// margin, floored at 1.
func DownsampleFactor(ifRate, ifBandwidth, excess float64) int {
	f := int(math.Floor(ifRate / (2 * ifBandwidth * (1 + excess))))
	if f < 1 {
		return 1
	}
	return f
}

func (c *Config) normalize() {
	if c.PCMRate == 0 {
		c.PCMRate = DefaultPCMRate
	}
	if c.DeemphasisTau < 0 {
		c.DeemphasisTau = 0
	}
	if c.IFBandwidth == 0 {
		c.IFBandwidth = DefaultIFBandwidth
	}
	if c.PeakDeviation == 0 {
		c.PeakDeviation = DefaultPeakDeviation
	}
	if c.ExcessBandwidth == 0 {
		c.ExcessBandwidth = DefaultExcessBandwidth
	}
	if c.FreqScale == 0 {
		c.FreqScale = DefaultFreqScale
	}
	if c.StereoGain == 0 {
		c.StereoGain = DefaultStereoGain
	}
	if maxBW := pcmBandwidthCap * c.PCMRate; c.PCMBandwidth == 0 || c.PCMBandwidth > maxBW {
		c.PCMBandwidth = maxBW
	}
	if c.DownsampleFactor == 0 {
		c.DownsampleFactor = DownsampleFactor(c.IFRate, c.IFBandwidth, c.ExcessBandwidth)
	}
}

// Channels returns the number of interleaved output channels.
func (c *Config) Channels() int {
	if c.Stereo {
		return 2
	}
	return 1
}
