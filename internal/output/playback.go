package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// PlaybackOutput plays PCM on the default audio device through an oto
// player fed by a pipe.
type PlaybackOutput struct {
	player *oto.Player
	pipe   *io.PipeWriter
	clip   clipper
	buf    []byte
}

// NewPlayback opens the default audio device for the given rate and
// channel count and starts playback.
func NewPlayback(sampleRate, channels int) (*PlaybackOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("output: opening audio device: %w", err)
	}
	<-ready

	reader, writer := io.Pipe()
	player := ctx.NewPlayer(reader)
	player.Play()
	return &PlaybackOutput{player: player, pipe: writer}, nil
}

func (o *PlaybackOutput) Write(block []float32) error {
	o.buf = o.clip.toBytes(block, o.buf)
	if _, err := o.pipe.Write(o.buf); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (o *PlaybackOutput) Close() error {
	if n := o.clip.Clipped(); n > 0 {
		log.Warn("clipped output samples", "count", n)
	}
	o.pipe.Close()
	return o.player.Close()
}

var _ AudioOutput = (*PlaybackOutput)(nil)
