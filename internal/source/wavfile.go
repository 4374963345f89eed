package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"fmradio/internal/dsp"
	"fmradio/internal/queue"
)

// ErrUnsupportedFormat is returned for I/Q recordings the file backends
// cannot decode.
var ErrUnsupportedFormat = errors.New("source: unsupported sample format")

const defaultBlockLength = 4096

// throttleFill is how much queued data (in seconds of samples) a file
// source allows before pausing, simulating a real-time device.
const throttleFill = 1.0

func init() {
	Register("wavfile", func() Source { return &WavFileSource{} })
}

// WavFileSource replays a 2-channel WAV container holding an I/Q
// recording. Options: file=PATH (required), center=HZ (capture center
// frequency), freq=HZ (requested tune frequency, default center),
// blklen=N.
type WavFileSource struct {
	file     *os.File
	dec      *wav.Decoder
	blockLen int
	center   float64
	confFreq float64
	scale    float32

	wg sync.WaitGroup
}

func (s *WavFileSource) Configure(config string) error {
	opts, err := parseConfig(config)
	if err != nil {
		return err
	}
	path := opts["file"]
	if path == "" {
		return errors.New("source: wavfile needs file=PATH")
	}

	s.blockLen = defaultBlockLength
	if v, ok := opts["blklen"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("source: bad blklen %q: %w", v, err)
		}
		s.blockLen = clampBlockLength(n)
	}
	if v, ok := opts["center"]; ok {
		if s.center, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("source: bad center %q: %w", v, err)
		}
	}
	s.confFreq = s.center
	if v, ok := opts["freq"]; ok {
		if s.confFreq, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("source: bad freq %q: %w", v, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("source: %s is not a valid WAV file", path)
	}
	if dec.NumChans != 2 {
		f.Close()
		return fmt.Errorf("source: quadrature input needs I and Q channels, %s has %d", path, dec.NumChans)
	}
	switch dec.BitDepth {
	case 16:
		s.scale = 1.0 / 32768
	case 24:
		s.scale = 1.0 / 8388608
	default:
		f.Close()
		return fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedFormat, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return fmt.Errorf("source: seeking to PCM data: %w", err)
	}
	s.file = f
	s.dec = dec
	return nil
}

func (s *WavFileSource) SampleRate() float64 {
	if s.dec == nil {
		return 0
	}
	return float64(s.dec.SampleRate)
}

func (s *WavFileSource) Frequency() float64 { return s.center }

func (s *WavFileSource) ConfiguredFrequency() float64 { return s.confFreq }

func (s *WavFileSource) SpecificParms() string {
	if s.dec == nil {
		return ""
	}
	return fmt.Sprintf("wav %d-bit %d Hz, block %d", s.dec.BitDepth, s.dec.SampleRate, s.blockLen)
}

func (s *WavFileSource) Start(q *queue.SampleQueue[dsp.IQSample], stop *atomic.Bool) error {
	if s.dec == nil {
		return errors.New("source: wavfile not configured")
	}
	s.wg.Add(1)
	go s.run(q, stop)
	return nil
}

func (s *WavFileSource) Stop() error {
	s.wg.Wait()
	return s.file.Close()
}

func (s *WavFileSource) run(q *queue.SampleQueue[dsp.IQSample], stop *atomic.Bool) {
	defer s.wg.Done()
	minfill := int(throttleFill * s.SampleRate())
	buf := &audio.IntBuffer{
		Format: s.dec.Format(),
		Data:   make([]int, 2*s.blockLen),
	}
	for !stop.Load() {
		if !q.IsBelowFillLevel(minfill) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		n, err := s.dec.PCMBuffer(buf)
		if n > 0 {
			block := make([]dsp.IQSample, n/2)
			for i := range block {
				block[i] = complex(float32(buf.Data[2*i])*s.scale, float32(buf.Data[2*i+1])*s.scale)
			}
			q.Push(block)
		}
		if err != nil && err != io.EOF {
			log.Warn("wavfile read error", "err", err)
		}
		if n == 0 || err == io.EOF {
			break
		}
	}
	q.PushEnd()
}
