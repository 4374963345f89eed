// Package output provides the PCM sinks: raw file, WAV file and live
// playback. All sinks take interleaved float32 blocks from the decoder and
// clip to full scale, keeping a count of clipped samples for diagnostics.
package output

import "encoding/binary"

// AudioOutput consumes finished PCM blocks.
type AudioOutput interface {
	Write(block []float32) error
	Close() error
}

// clipper converts float samples to signed 16-bit and counts samples that
// exceeded full scale.
type clipper struct {
	clipped int64
}

func (c *clipper) toInt16(v float32) int16 {
	s := v * 32767
	switch {
	case s > 32767:
		c.clipped++
		return 32767
	case s < -32768:
		c.clipped++
		return -32768
	default:
		return int16(s)
	}
}

// Clipped returns the number of samples clipped so far.
func (c *clipper) Clipped() int64 {
	return c.clipped
}

func (c *clipper) toBytes(block []float32, buf []byte) []byte {
	if cap(buf) < 2*len(block) {
		buf = make([]byte, 2*len(block))
	}
	buf = buf[:2*len(block)]
	for i, v := range block {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(c.toInt16(v)))
	}
	return buf
}
