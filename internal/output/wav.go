package output

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavOutput writes 16-bit PCM into a WAV container. The header is
// finalized on Close.
type WavOutput struct {
	file *os.File
	enc  *wav.Encoder
	fmt  *audio.Format
	clip clipper
	ints []int
}

// NewWavOutput creates the WAV sink.
func NewWavOutput(path string, sampleRate, channels int) (*WavOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	return &WavOutput{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, channels, 1),
		fmt:  &audio.Format{NumChannels: channels, SampleRate: sampleRate},
	}, nil
}

func (o *WavOutput) Write(block []float32) error {
	if cap(o.ints) < len(block) {
		o.ints = make([]int, len(block))
	}
	o.ints = o.ints[:len(block)]
	for i, v := range block {
		o.ints[i] = int(o.clip.toInt16(v))
	}
	buf := &audio.IntBuffer{Format: o.fmt, Data: o.ints, SourceBitDepth: 16}
	if err := o.enc.Write(buf); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (o *WavOutput) Close() error {
	if n := o.clip.Clipped(); n > 0 {
		log.Warn("clipped output samples", "count", n)
	}
	if err := o.enc.Close(); err != nil {
		o.file.Close()
		return fmt.Errorf("output: %w", err)
	}
	return o.file.Close()
}

var _ AudioOutput = (*WavOutput)(nil)
