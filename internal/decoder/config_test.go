package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsampleFactor(t *testing.T) {
	cases := []struct {
		ifRate, ifBW, excess float64
		want                 int
	}{
		{1000000, 100000, 0.075, 4},
		{2000000, 100000, 0.075, 9},
		{2400000, 100000, 0.075, 11},
		{250000, 100000, 0.075, 1},
		{100000, 100000, 0.075, 1}, // floors at 1
		{1000000, 100000, 0, 5},
	}
	for _, c := range cases {
		got := DownsampleFactor(c.ifRate, c.ifBW, c.excess)
		assert.Equal(t, c.want, got, "rate=%v bw=%v excess=%v", c.ifRate, c.ifBW, c.excess)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{IFRate: 1000000}
	cfg.normalize()

	assert.Equal(t, float64(DefaultPCMRate), cfg.PCMRate)
	assert.Equal(t, float64(DefaultIFBandwidth), cfg.IFBandwidth)
	assert.Equal(t, float64(DefaultPeakDeviation), cfg.PeakDeviation)
	assert.Equal(t, DefaultFreqScale, cfg.FreqScale)
	assert.Equal(t, DefaultStereoGain, cfg.StereoGain)
	assert.Equal(t, 4, cfg.DownsampleFactor)
	assert.Equal(t, 0.45*cfg.PCMRate, cfg.PCMBandwidth)
}

func TestConfigPCMBandwidthCap(t *testing.T) {
	cfg := Config{IFRate: 1000000, PCMRate: 48000, PCMBandwidth: 30000}
	cfg.normalize()
	assert.Equal(t, 0.45*48000, cfg.PCMBandwidth, "bandwidth above the cap is clamped")

	cfg = Config{IFRate: 1000000, PCMRate: 48000, PCMBandwidth: 15000}
	cfg.normalize()
	assert.Equal(t, 15000.0, cfg.PCMBandwidth)
}

func TestNewRejectsBadRates(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	// Decimated IF rate below the PCM rate cannot be resampled.
	_, err = New(Config{IFRate: 240000, PCMRate: 48000, DownsampleFactor: 6})
	require.Error(t, err)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, 2, (&Config{Stereo: true}).Channels())
	assert.Equal(t, 1, (&Config{}).Channels())
}
