package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"fmradio/internal/dsp"
	"fmradio/internal/queue"
)

func init() {
	Register("rawfile", func() Source { return &RawFileSource{} })
}

// RawFileSource replays a headerless interleaved I/Q file. Options:
// file=PATH (required), srate=HZ (required), format=s16|u8|f32 (default
// s16), center=HZ, freq=HZ, blklen=N. All multi-byte formats are little
// endian; u8 is offset-128 as produced by RTL-SDR dumps.
type RawFileSource struct {
	file     *os.File
	rd       *bufio.Reader
	format   string
	rate     float64
	center   float64
	confFreq float64
	blockLen int

	wg sync.WaitGroup
}

func (s *RawFileSource) Configure(config string) error {
	opts, err := parseConfig(config)
	if err != nil {
		return err
	}
	path := opts["file"]
	if path == "" {
		return errors.New("source: rawfile needs file=PATH")
	}
	v, ok := opts["srate"]
	if !ok {
		return errors.New("source: rawfile needs srate=HZ")
	}
	if s.rate, err = strconv.ParseFloat(v, 64); err != nil || s.rate <= 0 {
		return fmt.Errorf("source: bad srate %q", v)
	}

	s.format = "s16"
	if v, ok := opts["format"]; ok {
		switch v {
		case "s16", "u8", "f32":
			s.format = v
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedFormat, v)
		}
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

	if s.file, err = os.Open(path); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	s.rd = bufio.NewReaderSize(s.file, 1<<16)
	return nil
}

func (s *RawFileSource) SampleRate() float64 { return s.rate }

func (s *RawFileSource) Frequency() float64 { return s.center }

func (s *RawFileSource) ConfiguredFrequency() float64 { return s.confFreq }

func (s *RawFileSource) SpecificParms() string {
	return fmt.Sprintf("raw %s %.0f Hz, block %d", s.format, s.rate, s.blockLen)
}

func (s *RawFileSource) Start(q *queue.SampleQueue[dsp.IQSample], stop *atomic.Bool) error {
	if s.file == nil {
		return errors.New("source: rawfile not configured")
	}
	s.wg.Add(1)
	go s.run(q, stop)
	return nil
}

func (s *RawFileSource) Stop() error {
	s.wg.Wait()
	return s.file.Close()
}

func (s *RawFileSource) bytesPerSample() int {
	switch s.format {
	case "u8":
		return 2
	case "f32":
		return 8
	default:
		return 4
	}
}

func (s *RawFileSource) convert(raw []byte) []dsp.IQSample {
	n := len(raw) / s.bytesPerSample()
	block := make([]dsp.IQSample, n)
	switch s.format {
	case "u8":
		for i := 0; i < n; i++ {
			block[i] = complex(
				(float32(raw[2*i])-127.5)/128,
				(float32(raw[2*i+1])-127.5)/128)
		}
	case "f32":
		for i := 0; i < n; i++ {
			re := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i+4:]))
			block[i] = complex(re, im)
		}
	default:
		for i := 0; i < n; i++ {
			re := int16(binary.LittleEndian.Uint16(raw[4*i:]))
			im := int16(binary.LittleEndian.Uint16(raw[4*i+2:]))
			block[i] = complex(float32(re)/32768, float32(im)/32768)
		}
	}
	return block
}

func (s *RawFileSource) run(q *queue.SampleQueue[dsp.IQSample], stop *atomic.Bool) {
	defer s.wg.Done()
	minfill := int(throttleFill * s.rate)
	raw := make([]byte, s.blockLen*s.bytesPerSample())
	for !stop.Load() {
		if !q.IsBelowFillLevel(minfill) {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		n, err := io.ReadFull(s.rd, raw)
		n -= n % s.bytesPerSample()
		if n > 0 {
			q.Push(s.convert(raw[:n]))
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Warn("rawfile read error", "err", err)
			}
			break
		}
	}
	q.PushEnd()
}
