package output

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// RawOutput writes interleaved signed 16-bit little-endian PCM to a file,
// or to stdout when the path is "-".
type RawOutput struct {
	w    *bufio.Writer
	file *os.File
	clip clipper
	buf  []byte
}

// NewRawOutput opens the raw PCM sink.
func NewRawOutput(path string) (*RawOutput, error) {
	o := &RawOutput{}
	if path == "-" {
		o.w = bufio.NewWriter(os.Stdout)
		return o, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	o.file = f
	o.w = bufio.NewWriter(f)
	return o, nil
}

func (o *RawOutput) Write(block []float32) error {
	o.buf = o.clip.toBytes(block, o.buf)
	if _, err := o.w.Write(o.buf); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (o *RawOutput) Close() error {
	if n := o.clip.Clipped(); n > 0 {
		log.Warn("clipped output samples", "count", n)
	}
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if o.file != nil {
		return o.file.Close()
	}
	return nil
}

var _ AudioOutput = (*RawOutput)(nil)
var _ io.Closer = (*RawOutput)(nil)
